package interpreter

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Python is the persistent python backend. The REPL is started unbuffered
// and each call is delivered as a single exec() statement wrapping the whole
// body in one exception handler that prints the traceback instead of
// raising, so the process never exits on an uncaught error.
type Python struct{}

func (Python) Name() string { return "python" }

func (Python) Aliases() []string { return []string{"python3", "py"} }

func (Python) FileExtension() string { return "py" }

func (Python) StartCommand() []string {
	return []string{"python3", "-i", "-q", "-u"}
}

func (p Python) Preprocess(code string) string {
	body := pythonInjectMarkers(code)

	var harness strings.Builder
	harness.WriteString("import traceback\n")
	harness.WriteString("try:\n")
	harness.WriteString("    exec(compile(" + pyQuote(body) + ", \"<cell>\", \"exec\"))\n")
	harness.WriteString("except Exception:\n")
	harness.WriteString("    traceback.print_exc()\n")
	harness.WriteString("    print(\"" + executionErrorMarker + "\", flush=True)\n")
	harness.WriteString("print(\"" + endOfExecutionMarker + "\", flush=True)\n")

	// The interactive interpreter executes one simple statement per line;
	// collapsing the harness into a single exec() avoids the blank-line
	// block termination rules entirely.
	return "exec(" + pyQuote(harness.String()) + ")"
}

var pythonPromptPattern = regexp.MustCompile(`^(\s*(>>>|\.\.\.)\s?)+`)

func (Python) PostprocessLine(line string) (string, bool) {
	cleaned := pythonPromptPattern.ReplaceAllString(line, "")
	if strings.TrimSpace(cleaned) == "" {
		return "", false
	}
	return cleaned, true
}

// pyQuote renders s as a Python string literal. JSON string escaping is a
// strict subset of Python's, so the encoded form is reused directly.
func pyQuote(s string) string {
	quoted, err := json.Marshal(s)
	if err != nil {
		return "\"\""
	}
	return string(quoted)
}

// pythonBlockContinuations are zero-indent lines that continue an enclosing
// compound statement; injecting a marker before them is a syntax error.
var pythonBlockContinuations = []string{"else", "elif", "except", "finally"}

// pythonInjectMarkers injects a print marker before each top-level line.
// Indented lines, bracket and string continuations, decorator targets and
// block-continuation keywords are left untouched; the original line
// numbering is preserved either way.
func pythonInjectMarkers(code string) string {
	lines := strings.Split(code, "\n")
	out := make([]string, 0, len(lines)*2)

	depth := 0
	inTriple := false
	tripleDelim := ""
	continued := false

	for i, line := range lines {
		safe := !continued && depth == 0 && !inTriple && markerSafeLine(line)
		if safe {
			out = append(out, "print(\""+activeLineMarker(i+1)+"\", flush=True)")
		}
		out = append(out, line)
		depth, inTriple, tripleDelim = pythonScanLine(line, depth, inTriple, tripleDelim)
		continued = strings.HasSuffix(strings.TrimRight(line, " \t"), "\\") ||
			strings.HasPrefix(strings.TrimSpace(line), "@")
	}
	return strings.Join(out, "\n")
}

func markerSafeLine(line string) bool {
	if line == "" || line[0] == ' ' || line[0] == '\t' {
		return false
	}
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return false
	}
	word := trimmed
	if idx := strings.IndexAny(trimmed, " :("); idx >= 0 {
		word = trimmed[:idx]
	}
	for _, kw := range pythonBlockContinuations {
		if word == kw {
			return false
		}
	}
	return true
}

// pythonScanLine advances the bracket/string state across one line. It is a
// heuristic, not a parser: good enough to decide where marker injection is
// safe, and when in doubt the caller simply skips a line.
func pythonScanLine(line string, depth int, inTriple bool, tripleDelim string) (int, bool, string) {
	i := 0
	for i < len(line) {
		if inTriple {
			if strings.HasPrefix(line[i:], tripleDelim) {
				inTriple = false
				i += 3
				continue
			}
			i++
			continue
		}
		c := line[i]
		switch {
		case strings.HasPrefix(line[i:], `"""`) || strings.HasPrefix(line[i:], "'''"):
			inTriple = true
			tripleDelim = line[i : i+3]
			i += 3
			continue
		case c == '"' || c == '\'':
			// Single-line string; skip to its close or end of line.
			quote := c
			i++
			for i < len(line) {
				if line[i] == '\\' {
					i += 2
					continue
				}
				if line[i] == quote {
					break
				}
				i++
			}
		case c == '#':
			return depth, inTriple, tripleDelim
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			if depth > 0 {
				depth--
			}
		}
		i++
	}
	return depth, inTriple, tripleDelim
}
