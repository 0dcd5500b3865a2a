// Package interpreter executes code in per-language subprocess interpreters.
//
// Each language owns a persistent interactive subprocess (or a one-shot
// process per call for languages that cannot keep a REPL alive). Executed
// code is preprocessed to echo sentinel markers back through stdout, which
// the runner parses out of the stream to report line-level progress and to
// detect the end of a call without ever blocking on a silent process.
package interpreter

// EventType tags one element of a run's output stream.
type EventType string

const (
	// EventOutput is a line of stdout or stderr, after marker stripping.
	EventOutput EventType = "output"

	// EventActiveLine reports which source line is currently executing.
	// Lines are 1-based and refer to the caller's original source; injected
	// markers never shift the numbering.
	EventActiveLine EventType = "active_line"

	// EventImage carries a rendered image payload. Reserved for kernel
	// transports; the subprocess runners in this package do not produce it.
	EventImage EventType = "image"

	// EventError is output classified as fatal for this run: a captured
	// traceback or an execution-error sentinel. The runner itself stays
	// usable afterwards.
	EventError EventType = "error"

	// eventEndOfRun is the internal queue sentinel a reader pushes when it
	// sees the end-of-execution marker. Delivering done through the same
	// queue as the data means a consumer can never observe completion with
	// unread items still being enqueued. Never surfaced to callers.
	eventEndOfRun EventType = "end_of_run"

	// eventProcessExited is pushed when both output streams hit EOF, i.e.
	// the subprocess died. Never surfaced to callers directly.
	eventProcessExited EventType = "process_exited"
)

// Event is one element of the stream produced by a run. Within one call the
// stream is a sequence of Output/ActiveLine/Image events, optionally ending
// with a single Error event. Events from one underlying stream preserve
// source order; stdout and stderr are not ordered relative to each other.
type Event struct {
	Type     EventType
	Content  string // Output, Error
	Line     int    // ActiveLine
	Encoding string // Image
	Data     []byte // Image
}
