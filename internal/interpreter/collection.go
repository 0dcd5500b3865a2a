package interpreter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// ErrUnsupportedLanguage reports a language with no registered backend. The
// caller decides whether that is recoverable; it must never crash a session.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Runner executes code for one language and manages its process lifecycle.
type Runner interface {
	Language() Language
	Run(ctx context.Context, code string) <-chan Event
	Stop()
	Terminate()
}

// Languages returns the built-in language set.
func Languages() []Language {
	return []Language{
		Shell{},
		Python{},
		Ruby{},
		R{},
		PHP{},
		JavaScript{},
		AppleScript{},
	}
}

// CollectionOptions configure a Collection. Runner options are keyed by
// canonical language name.
type CollectionOptions struct {
	Logger  *slog.Logger
	Runners map[string]RunnerOptions
}

// Collection routes (language, code) pairs to the right runner, constructing
// and starting each runner lazily on first use and reusing it afterwards so
// REPL state persists across calls.
type Collection struct {
	logger    *slog.Logger
	opts      map[string]RunnerOptions
	languages []Language

	mu      sync.Mutex
	runners map[string]Runner
}

// NewCollection builds a dispatcher over the built-in language set.
func NewCollection(opts CollectionOptions) *Collection {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Collection{
		logger:    logger,
		opts:      opts.Runners,
		languages: Languages(),
		runners:   make(map[string]Runner),
	}
}

// Resolve maps a name or alias, case-insensitively, to its language.
func (c *Collection) Resolve(name string) (Language, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	for _, lang := range c.languages {
		if lang.Name() == needle {
			return lang, true
		}
		for _, alias := range lang.Aliases() {
			if strings.ToLower(alias) == needle {
				return lang, true
			}
		}
	}
	return nil, false
}

// Names returns the canonical language names, sorted.
func (c *Collection) Names() []string {
	names := make([]string, 0, len(c.languages))
	for _, lang := range c.languages {
		names = append(names, lang.Name())
	}
	sort.Strings(names)
	return names
}

// Run resolves language and executes code on its runner, returning the
// call's event stream. An unrecognized language yields
// ErrUnsupportedLanguage rather than a failed stream.
func (c *Collection) Run(ctx context.Context, language, code string) (<-chan Event, error) {
	lang, ok := c.Resolve(language)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, language)
	}
	return c.runner(lang).Run(ctx, code), nil
}

func (c *Collection) runner(lang Language) Runner {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.runners[lang.Name()]; ok {
		return r
	}

	opts := c.opts[lang.Name()]
	if opts.Logger == nil {
		opts.Logger = c.logger
	}

	var r Runner
	if isOneShot(lang) {
		r = NewOneShotRunner(lang, opts)
	} else {
		r = NewSubprocessRunner(lang, opts)
	}
	c.runners[lang.Name()] = r
	c.logger.Debug("runner constructed", "language", lang.Name())
	return r
}

// StopAll requests a best-effort interrupt on every constructed runner.
func (c *Collection) StopAll() {
	for _, r := range c.snapshot() {
		r.Stop()
	}
}

// TerminateAll kills every constructed runner's process. Used at session
// teardown.
func (c *Collection) TerminateAll() {
	for _, r := range c.snapshot() {
		r.Terminate()
	}
}

func (c *Collection) snapshot() []Runner {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Runner, 0, len(c.runners))
	for _, r := range c.runners {
		out = append(out, r)
	}
	return out
}
