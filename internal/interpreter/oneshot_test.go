package interpreter

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptLang runs each call as `sh -c <processed>`, exercising the
// spawn-per-call path without requiring osascript.
type scriptLang struct{}

func (scriptLang) Name() string            { return "script" }
func (scriptLang) Aliases() []string       { return nil }
func (scriptLang) FileExtension() string   { return "sh" }
func (scriptLang) StartCommand() []string  { return []string{"sh", "-c"} }
func (scriptLang) OneShot() bool           { return true }
func (scriptLang) Preprocess(c string) string {
	return c + "\necho \"" + endOfExecutionMarker + "\""
}
func (scriptLang) PostprocessLine(line string) (string, bool) { return line, true }

func requireSh(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestOneShotRunnerRoundTrip(t *testing.T) {
	requireSh(t)
	r := NewOneShotRunner(scriptLang{}, RunnerOptions{})
	defer r.Terminate()

	events := collectEvents(t, r.Run(context.Background(), "echo one\necho two"), 10*time.Second)
	assert.Equal(t, []string{"one", "two"}, outputs(events))
}

func TestOneShotRunnerTimeoutKillsCallOnly(t *testing.T) {
	requireSh(t)
	r := NewOneShotRunner(scriptLang{}, RunnerOptions{Timeout: 500 * time.Millisecond})
	defer r.Terminate()

	events := collectEvents(t, r.Run(context.Background(), "sleep 30"), 10*time.Second)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, EventError, last.Type)
	assert.Contains(t, last.Content, "timed out")

	// The runner serves the next call normally.
	events = collectEvents(t, r.Run(context.Background(), "echo after"), 10*time.Second)
	assert.Contains(t, outputs(events), "after")
}

func TestOneShotRunnerSurfacesStderr(t *testing.T) {
	requireSh(t)
	r := NewOneShotRunner(scriptLang{}, RunnerOptions{})
	defer r.Terminate()

	events := collectEvents(t, r.Run(context.Background(), "echo oops >&2"), 10*time.Second)
	assert.Contains(t, outputs(events), "oops")
}
