package interpreter

import "strings"

// R is the persistent R backend. The quiet vanilla REPL still echoes input
// with "> " and "+ " prefixes; those echoes are dropped in postprocessing.
type R struct{}

func (R) Name() string { return "r" }

func (R) Aliases() []string { return []string{"rlang", "rscript"} }

func (R) FileExtension() string { return "r" }

func (R) StartCommand() []string {
	return []string{"R", "-q", "--vanilla"}
}

// rContinuationSuffixes end a line whose expression continues onto the next
// one; a marker between the two would split the expression.
var rContinuationSuffixes = []string{",", "+", "-", "*", "/", "%>%", "|>", "<-", "=", "(", "{"}

func rEndsContinuation(line string) bool {
	trimmed := strings.TrimRight(line, " \t")
	for _, suffix := range rContinuationSuffixes {
		if strings.HasSuffix(trimmed, suffix) {
			return true
		}
	}
	return false
}

func (r R) Preprocess(code string) string {
	lines := strings.Split(code, "\n")
	marked := make([]string, 0, len(lines)*2)
	continued := false
	for i, line := range lines {
		indented := line != "" && (line[0] == ' ' || line[0] == '\t')
		blank := strings.TrimSpace(line) == ""
		closer := strings.HasPrefix(strings.TrimSpace(line), "}")
		if !continued && !indented && !blank && !closer {
			marked = append(marked, `cat("`+activeLineMarker(i+1)+`\n")`)
		}
		marked = append(marked, line)
		continued = rEndsContinuation(line)
	}

	var b strings.Builder
	b.WriteString("tryCatch({\n")
	b.WriteString(strings.Join(marked, "\n"))
	b.WriteString("\n}, error = function(e) {\n")
	b.WriteString(`  cat(conditionMessage(e), "\n")` + "\n")
	b.WriteString(`  cat("` + executionErrorMarker + `\n")` + "\n")
	b.WriteString("})\n")
	b.WriteString(`cat("` + endOfExecutionMarker + `\n")` + "\n")
	return b.String()
}

func (R) PostprocessLine(line string) (string, bool) {
	// Input echoes come back prefixed by the REPL prompt.
	if strings.HasPrefix(line, "> ") || strings.HasPrefix(line, "+ ") || line == ">" || line == "+" {
		return "", false
	}
	if strings.TrimSpace(line) == "" {
		return "", false
	}
	return line, true
}
