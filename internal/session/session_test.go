package session

import (
	"context"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runcell/internal/history"
	"runcell/internal/interpreter"
)

type memRecorder struct {
	mu   sync.Mutex
	runs []history.Run
}

func (m *memRecorder) Record(_ context.Context, run history.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *memRecorder) all() []history.Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]history.Run(nil), m.runs...)
}

func requireBash(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
}

func drain(t *testing.T, ch <-chan interpreter.Event) []interpreter.Event {
	t.Helper()
	var events []interpreter.Event
	timeout := time.After(15 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("timed out waiting for events")
		}
	}
}

func TestSessionRunRecordsHistory(t *testing.T) {
	requireBash(t)
	rec := &memRecorder{}
	s := New(Options{Recorder: rec})
	defer s.Close()

	ch, err := s.Run(context.Background(), "bash", "echo recorded")
	require.NoError(t, err)
	events := drain(t, ch)
	require.NotEmpty(t, events)

	runs := rec.all()
	require.Len(t, runs, 1)
	assert.Equal(t, s.ID(), runs[0].SessionID)
	assert.Equal(t, "shell", runs[0].Language)
	assert.Equal(t, "echo recorded", runs[0].Code)
	assert.Equal(t, history.StatusOK, runs[0].Status)
	assert.NotEmpty(t, runs[0].ID)
	assert.NotEqual(t, s.ID(), runs[0].ID)
}

func TestSessionRunErrorStatus(t *testing.T) {
	requireBash(t)
	rec := &memRecorder{}
	s := New(Options{Recorder: rec})
	defer s.Close()

	ch, err := s.Run(context.Background(), "bash", "false")
	require.NoError(t, err)
	drain(t, ch)

	runs := rec.all()
	require.Len(t, runs, 1)
	assert.Equal(t, history.StatusError, runs[0].Status)
}

func TestSessionUnsupportedLanguage(t *testing.T) {
	s := New(Options{})
	defer s.Close()

	_, err := s.Run(context.Background(), "cobol", "x")
	assert.ErrorIs(t, err, interpreter.ErrUnsupportedLanguage)
}

func TestSessionCloseRejectsRuns(t *testing.T) {
	s := New(Options{})
	s.Close()
	s.Close() // idempotent

	_, err := s.Run(context.Background(), "bash", "echo hi")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSessionStatePersistsAcrossRuns(t *testing.T) {
	requireBash(t)
	s := New(Options{})
	defer s.Close()

	ch, err := s.Run(context.Background(), "bash", "SESSION_VAR=kept")
	require.NoError(t, err)
	drain(t, ch)

	ch, err = s.Run(context.Background(), "bash", `echo "$SESSION_VAR"`)
	require.NoError(t, err)
	events := drain(t, ch)

	var seen bool
	for _, ev := range events {
		if ev.Type == interpreter.EventOutput && ev.Content == "kept" {
			seen = true
		}
	}
	assert.True(t, seen, "expected output from persisted shell state, got %v", events)
}

func TestSessionNilRecorder(t *testing.T) {
	requireBash(t)
	s := New(Options{})
	defer s.Close()

	ch, err := s.Run(context.Background(), "bash", "echo ok")
	require.NoError(t, err)
	drain(t, ch)
}
