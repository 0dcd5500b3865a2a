package interpreter

import "strings"

// JavaScript is the persistent node REPL backend.
type JavaScript struct{}

func (JavaScript) Name() string { return "javascript" }

func (JavaScript) Aliases() []string { return []string{"js", "node"} }

func (JavaScript) FileExtension() string { return "js" }

func (JavaScript) StartCommand() []string {
	return []string{"node", "-i"}
}

var jsBlockContinuations = []string{"}", "else", "catch", "finally", "case", "default"}

func (j JavaScript) Preprocess(code string) string {
	marked := injectLineMarkers(code, func(n int) string {
		return `console.log("` + activeLineMarker(n) + `");`
	}, func(line string) bool {
		return !markerSafeKeywordLine(line, jsBlockContinuations)
	})

	var b strings.Builder
	b.WriteString("try {\n")
	b.WriteString(marked)
	b.WriteString("\n} catch (e) {\n")
	b.WriteString("  console.log(e.stack);\n")
	b.WriteString(`  console.log("` + executionErrorMarker + `");` + "\n")
	b.WriteString("}\n")
	b.WriteString(`console.log("` + endOfExecutionMarker + `");` + "\n")
	return b.String()
}

func (JavaScript) PostprocessLine(line string) (string, bool) {
	cleaned := line
	for strings.HasPrefix(cleaned, "> ") || strings.HasPrefix(cleaned, "... ") {
		cleaned = strings.TrimPrefix(cleaned, "> ")
		cleaned = strings.TrimPrefix(cleaned, "... ")
	}
	trimmed := strings.TrimSpace(cleaned)
	if trimmed == "" || trimmed == "undefined" || strings.HasPrefix(trimmed, "Welcome to Node.js") {
		return "", false
	}
	return cleaned, true
}
