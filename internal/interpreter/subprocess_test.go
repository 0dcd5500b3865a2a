package interpreter

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoLang uses cat as its "interpreter": every line written is echoed back
// verbatim, so the sentinels appended by Preprocess drive the run state
// machine deterministically.
type echoLang struct {
	start      []string
	noSentinel bool
}

func (e echoLang) Name() string          { return "echo" }
func (e echoLang) Aliases() []string     { return nil }
func (e echoLang) FileExtension() string { return "txt" }

func (e echoLang) StartCommand() []string {
	if len(e.start) > 0 {
		return e.start
	}
	return []string{"cat"}
}

func (e echoLang) Preprocess(code string) string {
	if e.noSentinel {
		return code
	}
	return code + "\n" + endOfExecutionMarker
}

func (e echoLang) PostprocessLine(line string) (string, bool) { return line, true }

func requireCat(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
}

func TestSubprocessRunnerRoundTrip(t *testing.T) {
	requireCat(t)
	r := NewSubprocessRunner(echoLang{}, RunnerOptions{})
	defer r.Terminate()

	events := collectEvents(t, r.Run(context.Background(), "alpha\nbeta"), 10*time.Second)
	assert.Equal(t, []string{"alpha", "beta"}, outputs(events))
}

func TestSubprocessRunnerRestartsAfterProcessDeath(t *testing.T) {
	requireCat(t)
	r := NewSubprocessRunner(echoLang{}, RunnerOptions{})
	defer r.Terminate()

	collectEvents(t, r.Run(context.Background(), "warmup"), 10*time.Second)

	// Invalidate the process handle behind the runner's back.
	r.mu.Lock()
	p := r.proc
	r.mu.Unlock()
	require.NotNil(t, p)
	require.NoError(t, p.cmd.Process.Kill())
	time.Sleep(200 * time.Millisecond)

	events := collectEvents(t, r.Run(context.Background(), "revived"), 10*time.Second)
	assert.Contains(t, outputs(events), "revived")
}

func TestSubprocessRunnerMaxRetriesReached(t *testing.T) {
	r := NewSubprocessRunner(echoLang{start: []string{"/nonexistent/interpreter-binary"}}, RunnerOptions{})
	defer r.Terminate()

	events := collectEvents(t, r.Run(context.Background(), "anything"), 10*time.Second)
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	assert.Equal(t, EventOutput, last.Type)
	assert.Contains(t, last.Content, "maximum retries reached")

	attempts := 0
	for _, ev := range events[:len(events)-1] {
		if ev.Type == EventOutput {
			attempts++
		}
	}
	assert.Equal(t, maxWriteAttempts, attempts)
}

func TestSubprocessRunnerStopEndsCall(t *testing.T) {
	requireCat(t)
	r := NewSubprocessRunner(echoLang{noSentinel: true}, RunnerOptions{Timeout: time.Minute})
	defer r.Terminate()

	ch := r.Run(context.Background(), "never finishes")
	// Give the call a moment to start draining, then interrupt it.
	time.Sleep(300 * time.Millisecond)
	r.Stop()

	done := make(chan struct{})
	go func() {
		for range ch {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stop did not end the call")
	}
}

func TestSubprocessRunnerContextCancellation(t *testing.T) {
	requireCat(t)
	r := NewSubprocessRunner(echoLang{noSentinel: true}, RunnerOptions{Timeout: time.Minute})
	defer r.Terminate()

	ctx, cancel := context.WithCancel(context.Background())
	ch := r.Run(ctx, "never finishes")
	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case <-drained(ch):
	case <-time.After(5 * time.Second):
		t.Fatal("cancellation did not end the call")
	}
}

func TestSubprocessRunnerTerminateIdempotent(t *testing.T) {
	requireCat(t)
	r := NewSubprocessRunner(echoLang{}, RunnerOptions{})
	collectEvents(t, r.Run(context.Background(), "x"), 10*time.Second)
	r.Terminate()
	r.Terminate()
}

func TestSubprocessRunnerSkipLines(t *testing.T) {
	requireCat(t)
	r := NewSubprocessRunner(echoLang{}, RunnerOptions{SkipLines: 1})
	defer r.Terminate()

	events := collectEvents(t, r.Run(context.Background(), "header echo\nreal output"), 10*time.Second)
	assert.Equal(t, []string{"real output"}, outputs(events))
}

func drained(ch <-chan Event) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		for range ch {
		}
		close(done)
	}()
	return done
}
