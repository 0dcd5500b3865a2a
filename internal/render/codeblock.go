// Package render displays a streaming tool call as it arrives.
//
// A CodeBlock consumes the decoder's field deltas: identity fields become a
// header shown once, content fields append to a buffer that is flushed and
// highlighted line by line. Already-rendered lines are never rewritten, and
// no character of accumulated code is ever dropped.
package render

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"runcell/internal/toolstream"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// CodeBlock renders one tool-call block incrementally.
type CodeBlock struct {
	w        io.Writer
	color    bool
	name     string
	path     string
	language string
	headed   bool
	buf      strings.Builder
	flushed  int
	closed   bool
}

// NewCodeBlock constructs a renderer writing to w. Highlighting is enabled
// only when w is a terminal.
func NewCodeBlock(w io.Writer) *CodeBlock {
	color := false
	if f, ok := w.(*os.File); ok {
		color = term.IsTerminal(int(f.Fd()))
	}
	return &CodeBlock{w: w, color: color}
}

// Consume applies one field delta. Label fields update the header until it
// has been shown; content fields append and trigger a flush of any lines
// completed by this delta.
func (b *CodeBlock) Consume(d toolstream.FieldDelta) {
	if b.closed {
		return
	}
	switch d.Key {
	case toolstream.KeyName:
		if !b.headed {
			b.name += d.Delta
		}
	case toolstream.KeyPath:
		if !b.headed {
			b.path += d.Delta
		}
	case toolstream.KeyLanguage:
		if !b.headed {
			b.language += d.Delta
		}
	case toolstream.KeyCode, toolstream.KeyFileText:
		b.ensureHeader()
		b.buf.WriteString(d.Delta)
		b.flushCompleteLines()
	}
}

// Close flushes the trailing partial line and marks the block terminal.
// Safe to call more than once.
func (b *CodeBlock) Close() {
	if b.closed {
		return
	}
	b.ensureHeader()
	rest := b.buf.String()[b.flushed:]
	if rest != "" {
		b.writeCode(rest)
		if !strings.HasSuffix(rest, "\n") {
			fmt.Fprintln(b.w)
		}
		b.flushed = b.buf.Len()
	}
	if b.color {
		fmt.Fprintln(b.w, dimStyle.Render("─── done ───"))
	}
	b.closed = true
}

// Code returns everything accumulated so far.
func (b *CodeBlock) Code() string {
	return b.buf.String()
}

func (b *CodeBlock) ensureHeader() {
	if b.headed {
		return
	}
	b.headed = true

	label := b.name
	if b.path != "" {
		if label != "" {
			label += " "
		}
		label += b.path
	}
	if b.language != "" {
		if label != "" {
			label += " "
		}
		label += "(" + b.language + ")"
	}
	if label == "" {
		return
	}
	if b.color {
		fmt.Fprintln(b.w, headerStyle.Render(label))
	} else {
		fmt.Fprintln(b.w, label)
	}
}

// flushCompleteLines writes every full line not yet rendered, keeping the
// trailing partial line buffered until it completes or the block closes.
func (b *CodeBlock) flushCompleteLines() {
	all := b.buf.String()
	end := strings.LastIndexByte(all, '\n')
	if end < b.flushed {
		return
	}
	b.writeCode(all[b.flushed : end+1])
	b.flushed = end + 1
}

func (b *CodeBlock) writeCode(chunk string) {
	if !b.color {
		io.WriteString(b.w, chunk)
		return
	}
	highlighted, err := SyntaxHighlight(chunk, b.language, b.path)
	if err != nil {
		io.WriteString(b.w, chunk)
		return
	}
	io.WriteString(b.w, highlighted)
}
