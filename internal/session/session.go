// Package session ties a runner collection to a run recorder under one
// cancellation scope. All execution state lives on the Session value; there
// are no package-level interpreters.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"runcell/internal/history"
	"runcell/internal/interpreter"
)

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("session closed")

// recordTimeout bounds the history write after a run finishes.
const recordTimeout = 5 * time.Second

// Recorder receives one record per finished run. history.Store satisfies it.
type Recorder interface {
	Record(ctx context.Context, run history.Run) error
}

// Options configure a Session. A nil Recorder disables history.
type Options struct {
	Logger   *slog.Logger
	Recorder Recorder
	Runners  map[string]interpreter.RunnerOptions
}

// Session owns a runner collection and records every execution against its
// session ID. Close tears down all interpreter processes.
type Session struct {
	id         string
	logger     *slog.Logger
	recorder   Recorder
	collection *interpreter.Collection

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

// New creates a session with a fresh ID and its own built-in language set.
func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:       id,
		logger:   logger.With("session", id),
		recorder: opts.Recorder,
		collection: interpreter.NewCollection(interpreter.CollectionOptions{
			Logger:  logger,
			Runners: opts.Runners,
		}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// ID returns the session's UUID.
func (s *Session) ID() string { return s.id }

// Languages returns the canonical names of the supported languages.
func (s *Session) Languages() []string { return s.collection.Names() }

// Run executes code and streams its events. The returned channel closes when
// the call completes; the run is then recorded. Closing the session cancels
// in-flight runs.
func (s *Session) Run(ctx context.Context, language, code string) (<-chan interpreter.Event, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	lang, ok := s.collection.Resolve(language)
	if !ok {
		return nil, interpreter.ErrUnsupportedLanguage
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancelRun)

	events, err := s.collection.Run(runCtx, lang.Name(), code)
	if err != nil {
		stop()
		cancelRun()
		return nil, err
	}

	out := make(chan interpreter.Event, 16)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer stop()
		defer cancelRun()
		defer close(out)

		started := time.Now()
		status := history.StatusOK
		for ev := range events {
			if ev.Type == interpreter.EventError {
				status = history.StatusError
			}
			out <- ev
		}
		if runCtx.Err() != nil && status != history.StatusError {
			status = history.StatusStopped
		}
		s.record(lang.Name(), code, status, started)
	}()

	return out, nil
}

func (s *Session) record(language, code, status string, started time.Time) {
	if s.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	err := s.recorder.Record(ctx, history.Run{
		ID:        uuid.NewString(),
		SessionID: s.id,
		Language:  language,
		Code:      code,
		Status:    status,
		Duration:  time.Since(started),
		StartedAt: started,
	})
	if err != nil {
		s.logger.Warn("failed to record run", "language", language, "error", err)
	}
}

// Stop requests a best-effort interrupt of every running interpreter. The
// session stays usable.
func (s *Session) Stop() {
	s.collection.StopAll()
}

// Close cancels in-flight runs and kills all interpreter processes.
// Idempotent.
func (s *Session) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.cancel()
	s.collection.TerminateAll()
	s.wg.Wait()
}
