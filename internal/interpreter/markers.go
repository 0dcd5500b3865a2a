package interpreter

import (
	"regexp"
	"strconv"
	"strings"
)

// Wire format injected into executed code. The postprocessor matches these
// byte-for-byte, so preprocessors must emit them exactly.
const (
	endOfExecutionMarker = "##end_of_execution##"
	executionErrorMarker = "##execution_error##"
	activeLineFormat     = "##active_line%d##"
)

var activeLinePattern = regexp.MustCompile(`##active_line(\d+)##`)

// parseMarkers classifies one post-processed output line. It returns the
// events the line produces, in order, and whether the line carried the
// end-of-execution sentinel. A marker may share a physical line with real
// output; the marker is stripped and the remaining content re-emitted as its
// own Output event.
func parseMarkers(line string) (events []Event, done bool) {
	if m := activeLinePattern.FindStringSubmatch(line); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			events = append(events, Event{Type: EventActiveLine, Line: n})
		}
		line = activeLinePattern.ReplaceAllString(line, "")
	}

	if strings.Contains(line, executionErrorMarker) {
		line = strings.ReplaceAll(line, executionErrorMarker, "")
		if rest := strings.TrimSpace(line); rest != "" {
			events = append(events, Event{Type: EventOutput, Content: rest})
		}
		events = append(events, Event{Type: EventError, Content: "execution error"})
		// An error sentinel also ends the call.
		return events, true
	}

	if strings.Contains(line, endOfExecutionMarker) {
		line = strings.ReplaceAll(line, endOfExecutionMarker, "")
		if rest := strings.TrimSpace(line); rest != "" {
			events = append(events, Event{Type: EventOutput, Content: rest})
		}
		return events, true
	}

	if line != "" {
		events = append(events, Event{Type: EventOutput, Content: line})
	}
	return events, false
}
