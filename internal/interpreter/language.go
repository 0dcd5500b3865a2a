package interpreter

import (
	"fmt"
	"strings"
)

// Language describes one supported execution backend: how to start its
// interpreter and the four pure hooks the runner applies around it.
type Language interface {
	// Name is the canonical language name, lowercase.
	Name() string

	// Aliases are alternative names that resolve to this language,
	// matched case-insensitively.
	Aliases() []string

	// FileExtension is the conventional source extension, without dot.
	FileExtension() string

	// StartCommand is the argv used to spawn the interpreter process.
	StartCommand() []string

	// Preprocess rewrites code before it is written to the interpreter:
	// active-line markers injected where safe, an error handler that
	// guarantees an error sentinel on failure, and a trailing
	// end-of-execution sentinel guaranteed on success.
	Preprocess(code string) string

	// PostprocessLine cleans one raw output line (prompt echoes, REPL
	// noise). The second return is false when the line should be
	// discarded entirely.
	PostprocessLine(line string) (string, bool)
}

// oneShot marks languages whose interpreter cannot be kept alive between
// calls; the runner spawns a fresh process per Run and bounds it with a
// wall-clock wait.
type oneShot interface {
	OneShot() bool
}

func isOneShot(lang Language) bool {
	os, ok := lang.(oneShot)
	return ok && os.OneShot()
}

func activeLineMarker(n int) string {
	return fmt.Sprintf(activeLineFormat, n)
}

// continuationTokens are trailing tokens after which a line continues onto
// the next one, making per-line marker injection unsafe.
var continuationTokens = []string{"\\", "|", "&&", "||", "&"}

func endsWithContinuation(line string) bool {
	trimmed := strings.TrimRight(line, " \t")
	for _, tok := range continuationTokens {
		if strings.HasSuffix(trimmed, tok) {
			return true
		}
	}
	return false
}

// injectLineMarkers prepends marker(i) before each original line, numbered
// from 1. No marker is injected before a line that is the continuation of
// the previous one, or for which skip reports true. Skipped lines keep
// their original numbering since markers are never counted.
func injectLineMarkers(code string, marker func(n int) string, skip func(line string) bool) string {
	lines := strings.Split(code, "\n")
	out := make([]string, 0, len(lines)*2)
	continued := false
	for i, line := range lines {
		if !continued && (skip == nil || !skip(line)) {
			out = append(out, marker(i+1))
		}
		out = append(out, line)
		continued = endsWithContinuation(line)
	}
	return strings.Join(out, "\n")
}
