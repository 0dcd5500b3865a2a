package interpreter

import "strings"

// Ruby is the persistent irb backend. irb buffers a begin/rescue block until
// it is complete, so the whole wrapped call can be written in one piece.
type Ruby struct{}

func (Ruby) Name() string { return "ruby" }

func (Ruby) Aliases() []string { return []string{"rb", "irb"} }

func (Ruby) FileExtension() string { return "rb" }

func (Ruby) StartCommand() []string {
	return []string{"irb", "-f", "--noecho", "--noprompt"}
}

var rubyBlockContinuations = []string{"else", "elsif", "rescue", "ensure", "when", "end"}

func (r Ruby) Preprocess(code string) string {
	marked := injectLineMarkers(code, func(n int) string {
		return `puts "` + activeLineMarker(n) + `"`
	}, func(line string) bool {
		return !markerSafeKeywordLine(line, rubyBlockContinuations)
	})

	var b strings.Builder
	b.WriteString("begin\n")
	b.WriteString(marked)
	b.WriteString("\nrescue Exception => e\n")
	b.WriteString("  puts e.full_message(highlight: false)\n")
	b.WriteString(`  puts "` + executionErrorMarker + `"` + "\n")
	b.WriteString("end\n")
	b.WriteString(`puts "` + endOfExecutionMarker + `"` + "\n")
	return b.String()
}

func (Ruby) PostprocessLine(line string) (string, bool) {
	if strings.HasPrefix(line, "=> ") {
		return "", false
	}
	cleaned := strings.TrimPrefix(strings.TrimPrefix(line, ">> "), "?> ")
	if strings.TrimSpace(cleaned) == "" {
		return "", false
	}
	return cleaned, true
}

// markerSafeKeywordLine reports whether a marker may be injected before
// line: it must be a zero-indent statement that does not continue an
// enclosing block.
func markerSafeKeywordLine(line string, blockKeywords []string) bool {
	if line == "" || line[0] == ' ' || line[0] == '\t' {
		return false
	}
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	word := trimmed
	if idx := strings.IndexAny(trimmed, " ({;"); idx >= 0 {
		word = trimmed[:idx]
	}
	for _, kw := range blockKeywords {
		if word == kw {
			return false
		}
	}
	return true
}
