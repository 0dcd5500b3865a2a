package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runcell/internal/toolstream"
)

func TestCodeBlockAccumulatesEveryCharacter(t *testing.T) {
	var out strings.Builder
	b := NewCodeBlock(&out)

	b.Consume(toolstream.FieldDelta{Key: toolstream.KeyLanguage, Delta: "python"})
	for _, delta := range []string{"pri", "nt(1)\npri", "nt(2)"} {
		b.Consume(toolstream.FieldDelta{Key: toolstream.KeyCode, Delta: delta})
	}
	b.Close()

	assert.Equal(t, "print(1)\nprint(2)", b.Code())
	assert.Contains(t, out.String(), "print(1)\n")
	assert.Contains(t, out.String(), "print(2)")
}

func TestCodeBlockHeaderShownOnce(t *testing.T) {
	var out strings.Builder
	b := NewCodeBlock(&out)

	b.Consume(toolstream.FieldDelta{Key: toolstream.KeyName, Delta: "create"})
	b.Consume(toolstream.FieldDelta{Key: toolstream.KeyPath, Delta: "/tmp/a.py"})
	b.Consume(toolstream.FieldDelta{Key: toolstream.KeyFileText, Delta: "x = 1\n"})
	// Label deltas after the header is shown are ignored for display.
	b.Consume(toolstream.FieldDelta{Key: toolstream.KeyPath, Delta: "/ignored"})
	b.Consume(toolstream.FieldDelta{Key: toolstream.KeyFileText, Delta: "y = 2"})
	b.Close()

	rendered := out.String()
	assert.Equal(t, 1, strings.Count(rendered, "/tmp/a.py"))
	assert.NotContains(t, rendered, "/ignored")
	assert.Contains(t, rendered, "x = 1\n")
	assert.Contains(t, rendered, "y = 2")
}

func TestCodeBlockPartialLineHeldUntilClose(t *testing.T) {
	var out strings.Builder
	b := NewCodeBlock(&out)

	b.Consume(toolstream.FieldDelta{Key: toolstream.KeyCode, Delta: "echo one\necho tw"})
	require.Contains(t, out.String(), "echo one\n")
	require.NotContains(t, out.String(), "echo tw")

	b.Close()
	assert.Contains(t, out.String(), "echo tw")
}

func TestCodeBlockCloseIdempotent(t *testing.T) {
	var out strings.Builder
	b := NewCodeBlock(&out)
	b.Consume(toolstream.FieldDelta{Key: toolstream.KeyCode, Delta: "ls"})
	b.Close()
	first := out.String()
	b.Close()
	assert.Equal(t, first, out.String())

	// Deltas after close are dropped from display but the block stays intact.
	b.Consume(toolstream.FieldDelta{Key: toolstream.KeyCode, Delta: "rm"})
	assert.Equal(t, "ls", b.Code())
}

func TestSyntaxHighlightFallsBack(t *testing.T) {
	out, err := SyntaxHighlight("print(1)", "python", "")
	require.NoError(t, err)
	assert.Contains(t, out, "print")

	out, err = SyntaxHighlight("???", "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}
