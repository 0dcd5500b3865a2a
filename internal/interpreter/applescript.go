package interpreter

import "strings"

// AppleScript runs through osascript, one process per call: there is no
// usable persistent AppleScript REPL. The log command writes to stderr, so
// markers for this language travel on the error stream.
type AppleScript struct{}

func (AppleScript) Name() string { return "applescript" }

func (AppleScript) Aliases() []string { return []string{"osascript"} }

func (AppleScript) FileExtension() string { return "applescript" }

func (AppleScript) StartCommand() []string {
	return []string{"osascript", "-e"}
}

func (AppleScript) OneShot() bool { return true }

var applescriptBlockContinuations = []string{"end", "else", "on"}

func (a AppleScript) Preprocess(code string) string {
	marked := injectLineMarkers(code, func(n int) string {
		return `log "` + activeLineMarker(n) + `"`
	}, func(line string) bool {
		return !markerSafeKeywordLine(line, applescriptBlockContinuations)
	})

	var b strings.Builder
	b.WriteString("try\n")
	b.WriteString(marked)
	b.WriteString("\non error errMsg\n")
	b.WriteString("log errMsg\n")
	b.WriteString(`log "` + executionErrorMarker + `"` + "\n")
	b.WriteString("end try\n")
	b.WriteString(`log "` + endOfExecutionMarker + `"` + "\n")
	return b.String()
}

func (AppleScript) PostprocessLine(line string) (string, bool) {
	if strings.TrimSpace(line) == "" {
		return "", false
	}
	return line, true
}
