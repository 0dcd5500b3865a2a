package interpreter

import "strings"

// PHP is the persistent `php -a` backend.
type PHP struct{}

func (PHP) Name() string { return "php" }

func (PHP) Aliases() []string { return nil }

func (PHP) FileExtension() string { return "php" }

func (PHP) StartCommand() []string {
	return []string{"php", "-a"}
}

var phpBlockContinuations = []string{"}", "else", "elseif", "catch", "finally", "case", "default"}

func (p PHP) Preprocess(code string) string {
	code = strings.TrimSpace(code)
	code = strings.TrimPrefix(code, "<?php")
	code = strings.TrimSuffix(code, "?>")

	marked := injectLineMarkers(code, func(n int) string {
		return `echo "` + activeLineMarker(n) + `\n";`
	}, func(line string) bool {
		return !markerSafeKeywordLine(line, phpBlockContinuations)
	})

	var b strings.Builder
	b.WriteString("try {\n")
	b.WriteString(marked)
	b.WriteString("\n} catch (\\Throwable $e) {\n")
	b.WriteString(`  echo $e->getMessage(), "\n";` + "\n")
	b.WriteString(`  echo "` + executionErrorMarker + `\n";` + "\n")
	b.WriteString("}\n")
	b.WriteString(`echo "` + endOfExecutionMarker + `\n";` + "\n")
	return b.String()
}

func (PHP) PostprocessLine(line string) (string, bool) {
	if strings.HasPrefix(line, "Interactive shell") {
		return "", false
	}
	cleaned := line
	for strings.HasPrefix(cleaned, "php > ") || strings.HasPrefix(cleaned, "php { ") {
		cleaned = cleaned[6:]
	}
	if strings.TrimSpace(cleaned) == "" {
		return "", false
	}
	return cleaned, true
}
