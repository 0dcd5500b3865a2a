package interpreter

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultCallTimeout = 30 * time.Second
	maxWriteAttempts   = 3
	queueCapacity      = 1024

	// After the end sentinel, stderr may still hold buffered lines that
	// belong to this call; a few bounded polls catch them.
	finalDrainPolls   = 3
	finalDrainTimeout = 100 * time.Millisecond
)

// RunnerOptions tune one runner. Zero values mean defaults.
type RunnerOptions struct {
	Logger *slog.Logger

	// Timeout bounds one call; an expired call kills the interpreter and
	// reports an error event, and the next call restarts it.
	Timeout time.Duration

	// SkipLines is the number of echoed header lines swallowed at the
	// start of each call. Interactive interpreters differ by version in
	// how much of the input they echo back, so this is configuration, not
	// a constant.
	SkipLines int

	// StartCommand overrides the language's default interpreter argv.
	StartCommand []string
}

// process is one live interpreter subprocess together with its shared output
// queue. The queue is written only by the two reader goroutines and read only
// by the single caller draining a run.
type process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	events chan Event
	done   chan struct{}
}

// push enqueues ev unless the process has been terminated, in which case
// in-flight events are discarded.
func (p *process) push(ev Event) {
	select {
	case <-p.done:
	case p.events <- ev:
	}
}

// SubprocessRunner owns one persistent interactive interpreter for one
// language. REPL state (variables, working directory) persists across calls.
// Run is not reentrant; concurrent calls are serialized internally.
type SubprocessRunner struct {
	lang     Language
	logger   *slog.Logger
	timeout  time.Duration
	skip     int
	startCmd []string

	runMu sync.Mutex // one call in flight at a time

	mu   sync.Mutex // guards proc
	proc *process

	stopFlag atomic.Bool
}

// NewSubprocessRunner constructs a runner for lang. The interpreter process
// is not spawned until the first Run.
func NewSubprocessRunner(lang Language, opts RunnerOptions) *SubprocessRunner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	startCmd := opts.StartCommand
	if len(startCmd) == 0 {
		startCmd = lang.StartCommand()
	}
	return &SubprocessRunner{
		lang:     lang,
		logger:   logger,
		timeout:  timeout,
		skip:     opts.SkipLines,
		startCmd: startCmd,
	}
}

// Language returns the language this runner executes.
func (r *SubprocessRunner) Language() Language { return r.lang }

// Run executes code and returns a stream of events for this call. The
// channel is closed when the call completes, errors, times out, or is
// stopped; the runner stays usable afterwards in every case.
func (r *SubprocessRunner) Run(ctx context.Context, code string) <-chan Event {
	out := make(chan Event, 16)
	go func() {
		defer close(out)
		r.runMu.Lock()
		defer r.runMu.Unlock()

		r.stopFlag.Store(false)
		processed := r.lang.Preprocess(code)

		p, err := r.writeWithRestart(processed, out)
		if err != nil {
			out <- Event{Type: EventOutput, Content: err.Error()}
			return
		}
		r.drain(ctx, p, out)
	}()
	return out
}

// writeWithRestart writes the processed code to the interpreter's stdin,
// restarting the subprocess on a broken pipe up to the retry budget. Each
// retry surfaces as an Output event; exhaustion returns a terminal error.
func (r *SubprocessRunner) writeWithRestart(processed string, out chan<- Event) (*process, error) {
	var lastErr error
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		p, err := r.ensureStarted()
		if err != nil {
			lastErr = err
			out <- Event{Type: EventOutput, Content: fmt.Sprintf(
				"failed to start %s interpreter (attempt %d/%d): %v",
				r.lang.Name(), attempt, maxWriteAttempts, err)}
			continue
		}

		flushStale(p)

		if _, err := io.WriteString(p.stdin, processed+"\n"); err != nil {
			lastErr = err
			r.logger.Warn("interpreter write failed, restarting",
				"language", r.lang.Name(), "attempt", attempt, "error", err)
			r.Terminate()
			out <- Event{Type: EventOutput, Content: fmt.Sprintf(
				"write to %s interpreter failed (%v), restarting (attempt %d/%d)",
				r.lang.Name(), err, attempt, maxWriteAttempts)}
			continue
		}
		return p, nil
	}
	return nil, fmt.Errorf("maximum retries reached writing to %s interpreter: %w", r.lang.Name(), lastErr)
}

func (r *SubprocessRunner) ensureStarted() (*process, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.proc != nil {
		return r.proc, nil
	}

	cmd := exec.Command(r.startCmd[0], r.startCmd[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %q: %w", r.startCmd[0], err)
	}

	p := &process{
		cmd:    cmd,
		stdin:  stdin,
		events: make(chan Event, queueCapacity),
		done:   make(chan struct{}),
	}

	var readers sync.WaitGroup
	readers.Add(2)
	go r.readStream(p, stdout, &readers)
	go r.readStream(p, stderr, &readers)
	go func() {
		readers.Wait()
		cmd.Wait()
		p.push(Event{Type: eventProcessExited})
	}()

	r.logger.Debug("interpreter started", "language", r.lang.Name(), "pid", cmd.Process.Pid)
	r.proc = p
	return p, nil
}

// readStream scans one output stream line by line, post-processes each line
// through the language hook, and pushes the resulting events onto the shared
// queue. Events from one stream preserve source order.
func (r *SubprocessRunner) readStream(p *process, stream io.Reader, readers *sync.WaitGroup) {
	defer readers.Done()
	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line, keep := r.lang.PostprocessLine(scanner.Text())
		if !keep {
			continue
		}
		events, done := parseMarkers(line)
		for _, ev := range events {
			p.push(ev)
		}
		if done {
			p.push(Event{Type: eventEndOfRun})
		}
	}
}

// drain forwards events from the shared queue to the caller until the end
// sentinel, a timeout, a dead process, cancellation, or an advisory stop.
func (r *SubprocessRunner) drain(ctx context.Context, p *process, out chan<- Event) {
	skip := r.skip
	deadline := time.NewTimer(r.timeout)
	defer deadline.Stop()

	stopPoll := time.NewTicker(250 * time.Millisecond)
	defer stopPoll.Stop()

	for {
		if r.stopFlag.Load() {
			return
		}
		select {
		case <-stopPoll.C:
			continue
		case <-ctx.Done():
			r.interrupt(p)
			return
		case <-deadline.C:
			out <- Event{Type: EventError, Content: fmt.Sprintf(
				"%s execution timed out after %s", r.lang.Name(), r.timeout)}
			r.Terminate()
			return
		case ev := <-p.events:
			switch ev.Type {
			case eventEndOfRun:
				r.finalDrain(p, out, &skip)
				return
			case eventProcessExited:
				out <- Event{Type: EventError, Content: fmt.Sprintf(
					"%s interpreter exited unexpectedly", r.lang.Name())}
				r.Terminate()
				return
			case EventOutput:
				if skip > 0 {
					skip--
					continue
				}
				out <- ev
			default:
				out <- ev
			}
		}
	}
}

// finalDrain performs a few bounded polls after the end sentinel to catch
// late-arriving buffered lines from the other stream.
func (r *SubprocessRunner) finalDrain(p *process, out chan<- Event, skip *int) {
	for i := 0; i < finalDrainPolls; i++ {
		select {
		case ev := <-p.events:
			switch ev.Type {
			case eventEndOfRun, eventProcessExited:
				return
			case EventOutput:
				if *skip > 0 {
					*skip--
					continue
				}
				out <- ev
			default:
				out <- ev
			}
		case <-time.After(finalDrainTimeout):
			return
		}
	}
}

// flushStale empties leftovers a previous call abandoned in the queue, so
// one call's output draining begins strictly after its own input.
func flushStale(p *process) {
	for {
		select {
		case <-p.events:
		default:
			return
		}
	}
}

// Stop requests a best-effort interrupt of an in-flight call without
// destroying interpreter state. Buffered output may still arrive afterwards;
// consumers discard it.
func (r *SubprocessRunner) Stop() {
	r.stopFlag.Store(true)
	r.mu.Lock()
	p := r.proc
	r.mu.Unlock()
	r.interrupt(p)
}

func (r *SubprocessRunner) interrupt(p *process) {
	if p == nil || p.cmd.Process == nil {
		return
	}
	p.cmd.Process.Signal(os.Interrupt)
}

// Terminate kills the interpreter and closes its pipes. Events still queued
// are discarded. Idempotent; a later Run starts a fresh process.
func (r *SubprocessRunner) Terminate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.proc
	if p == nil {
		return
	}
	r.proc = nil
	close(p.done)
	p.stdin.Close()
	if p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
	r.logger.Debug("interpreter terminated", "language", r.lang.Name())
}
