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
	"time"
)

// OneShotRunner spawns a fresh interpreter process per call, for languages
// that have no usable persistent REPL. A call is bounded by a wall-clock
// wait; a timeout kills that process only, and the runner stays usable.
type OneShotRunner struct {
	lang    Language
	logger  *slog.Logger
	timeout time.Duration

	runMu sync.Mutex

	mu      sync.Mutex
	current *exec.Cmd
}

// NewOneShotRunner constructs a spawn-per-call runner for lang. The
// processed code is passed as the final argv element.
func NewOneShotRunner(lang Language, opts RunnerOptions) *OneShotRunner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &OneShotRunner{lang: lang, logger: logger, timeout: timeout}
}

// Language returns the language this runner executes.
func (r *OneShotRunner) Language() Language { return r.lang }

// Run executes code in a fresh process and streams its events. The channel
// closes when the process exits or the wait times out.
func (r *OneShotRunner) Run(ctx context.Context, code string) <-chan Event {
	out := make(chan Event, 16)
	go func() {
		defer close(out)
		r.runMu.Lock()
		defer r.runMu.Unlock()

		processed := r.lang.Preprocess(code)
		argv := append(append([]string{}, r.lang.StartCommand()...), processed)

		cmd := exec.Command(argv[0], argv[1:]...)
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			out <- Event{Type: EventOutput, Content: fmt.Sprintf("failed to run %s: %v", r.lang.Name(), err)}
			return
		}
		stderr, err := cmd.StderrPipe()
		if err != nil {
			out <- Event{Type: EventOutput, Content: fmt.Sprintf("failed to run %s: %v", r.lang.Name(), err)}
			return
		}
		if err := cmd.Start(); err != nil {
			out <- Event{Type: EventOutput, Content: fmt.Sprintf("failed to start %s: %v", r.lang.Name(), err)}
			return
		}

		r.mu.Lock()
		r.current = cmd
		r.mu.Unlock()
		defer func() {
			r.mu.Lock()
			r.current = nil
			r.mu.Unlock()
		}()

		events := make(chan Event, queueCapacity)
		var readers sync.WaitGroup
		readers.Add(2)
		go r.readStream(events, stdout, &readers)
		go r.readStream(events, stderr, &readers)

		waitErr := make(chan error, 1)
		go func() {
			readers.Wait()
			waitErr <- cmd.Wait()
		}()

		deadline := time.NewTimer(r.timeout)
		defer deadline.Stop()

		for {
			select {
			case <-ctx.Done():
				cmd.Process.Kill()
				return
			case <-deadline.C:
				cmd.Process.Kill()
				out <- Event{Type: EventError, Content: fmt.Sprintf(
					"%s execution timed out after %s", r.lang.Name(), r.timeout)}
				return
			case ev := <-events:
				if ev.Type == eventEndOfRun {
					continue // process exit ends a one-shot call
				}
				out <- ev
			case err := <-waitErr:
				flushRemaining(events, out)
				if err != nil {
					out <- Event{Type: EventError, Content: fmt.Sprintf(
						"%s exited with %v", r.lang.Name(), err)}
				}
				return
			}
		}
	}()
	return out
}

func (r *OneShotRunner) readStream(events chan<- Event, stream io.Reader, readers *sync.WaitGroup) {
	defer readers.Done()
	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line, keep := r.lang.PostprocessLine(scanner.Text())
		if !keep {
			continue
		}
		evs, done := parseMarkers(line)
		for _, ev := range evs {
			events <- ev
		}
		if done {
			events <- Event{Type: eventEndOfRun}
		}
	}
}

func flushRemaining(events <-chan Event, out chan<- Event) {
	for {
		select {
		case ev := <-events:
			if ev.Type == eventEndOfRun || ev.Type == eventProcessExited {
				continue
			}
			out <- ev
		default:
			return
		}
	}
}

// Stop interrupts the in-flight process, if any.
func (r *OneShotRunner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil && r.current.Process != nil {
		r.current.Process.Signal(os.Interrupt)
	}
}

// Terminate kills the in-flight process, if any. There is no persistent
// state to tear down.
func (r *OneShotRunner) Terminate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil && r.current.Process != nil {
		r.current.Process.Kill()
	}
}
