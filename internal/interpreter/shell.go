package interpreter

import (
	"os/exec"
	"strings"
)

// Shell is the persistent bash backend. Plain non-interactive bash reads a
// script from stdin without echoing it, which keeps the output stream clean
// of prompt noise.
type Shell struct{}

func (Shell) Name() string { return "shell" }

func (Shell) Aliases() []string { return []string{"bash", "sh", "zsh"} }

func (Shell) FileExtension() string { return "sh" }

func (Shell) StartCommand() []string {
	if _, err := exec.LookPath("bash"); err != nil {
		return []string{"sh"}
	}
	return []string{"bash"}
}

// Preprocess injects an echo marker before each line and arms an ERR trap
// that emits the error sentinel. Per-line markers are skipped entirely when
// the snippet uses multiline constructs, where injecting between lines would
// change meaning.
func (s Shell) Preprocess(code string) string {
	var b strings.Builder
	b.WriteString(`trap 'echo "` + executionErrorMarker + `"' ERR` + "\n")
	if hasMultilineCommands(code) {
		b.WriteString(code)
	} else {
		b.WriteString(injectLineMarkers(code, func(n int) string {
			return `echo "` + activeLineMarker(n) + `"`
		}, func(line string) bool {
			return strings.TrimSpace(line) == ""
		}))
	}
	b.WriteString("\necho \"" + endOfExecutionMarker + "\"\n")
	return b.String()
}

func (Shell) PostprocessLine(line string) (string, bool) {
	return line, true
}

// shellBlockKeywords open constructs that span lines; their presence makes
// per-line injection unsafe.
var shellBlockKeywords = []string{"if", "for", "while", "until", "case", "select", "function"}

func hasMultilineCommands(code string) bool {
	for _, line := range strings.Split(code, "\n") {
		if endsWithContinuation(line) {
			return true
		}
		trimmed := strings.TrimSpace(line)
		fields := strings.Fields(trimmed)
		if len(fields) == 0 {
			continue
		}
		for _, kw := range shellBlockKeywords {
			if fields[0] == kw {
				return true
			}
		}
		if strings.HasSuffix(trimmed, "{") || strings.HasSuffix(trimmed, "(") {
			return true
		}
	}
	return false
}
