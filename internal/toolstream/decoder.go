// Package toolstream reassembles streamed tool-call arguments.
//
// A model delivers one tool call as a sequence of text fragments that
// together form a JSON object. The Decoder consumes those fragments at
// arbitrary split points and emits append-only deltas for each recognized
// field as soon as the field becomes visible, so a caller can render the
// call while it is still arriving.
package toolstream

import (
	"log/slog"
	"strings"

	"runcell/internal/partialjson"
)

// Key identifies a recognized tool-call field.
type Key string

const (
	KeyName     Key = "name"
	KeyPath     Key = "path"
	KeyLanguage Key = "language"
	KeyCode     Key = "code"
	KeyFileText Key = "file_text"
)

// deltaKeys is the emission order within a single Feed call. Identity fields
// come before content fields so a renderer can label a block before code
// starts flowing into it.
var deltaKeys = []Key{KeyName, KeyPath, KeyLanguage, KeyCode, KeyFileText}

// keyAliases maps recognized fields onto the JSON keys models actually
// send, in lookup order. "command" is what editor-style tool calls use for
// the operation name.
var keyAliases = map[Key][]string{
	KeyName:     {"name", "command"},
	KeyPath:     {"path"},
	KeyLanguage: {"language"},
	KeyCode:     {"code"},
	KeyFileText: {"file_text"},
}

// FieldDelta is new content for one field. Deltas for a given key are
// append-only: concatenating them in order reproduces the field value.
type FieldDelta struct {
	Key   Key
	Delta string
}

// Invocation is the tool call reconstructed so far. All fields are declared
// up front; absent fields stay empty.
type Invocation struct {
	Name     string
	Path     string
	Language string
	Code     string
	FileText string
}

func (inv *Invocation) set(key Key, value string) {
	switch key {
	case KeyName:
		inv.Name = value
	case KeyPath:
		inv.Path = value
	case KeyLanguage:
		inv.Language = value
	case KeyCode:
		inv.Code = value
	case KeyFileText:
		inv.FileText = value
	}
}

// Field returns the accumulated value for key.
func (inv *Invocation) Field(key Key) string {
	switch key {
	case KeyName:
		return inv.Name
	case KeyPath:
		return inv.Path
	case KeyLanguage:
		return inv.Language
	case KeyCode:
		return inv.Code
	case KeyFileText:
		return inv.FileText
	}
	return ""
}

// Decoder turns tool-call fragments into FieldDelta events for one content
// block. It is not safe for concurrent use; the stream for a block is
// consumed by a single goroutine.
type Decoder struct {
	raw       strings.Builder
	emitted   map[Key]string
	inv       Invocation
	malformed bool
	closed    bool
	logger    *slog.Logger
}

// NewDecoder constructs a decoder for a single tool-call block.
func NewDecoder(logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{
		emitted: make(map[Key]string),
		logger:  logger,
	}
}

// Feed appends one fragment and returns the field deltas it unlocked.
// Returning no deltas is the steady state while a value is mid-flight; it is
// not an error. Once the accumulated input proves structurally malformed the
// decoder goes quiet until Reset.
func (d *Decoder) Feed(fragment string) []FieldDelta {
	if d.closed || d.malformed || fragment == "" {
		return nil
	}
	d.raw.WriteString(fragment)

	accumulated := d.raw.String()
	obj, ok := partialjson.RepairAndParse(accumulated)
	if !ok {
		if partialjson.Malformed(accumulated) {
			d.malformed = true
			d.logger.Warn("tool-call block is structurally malformed, suppressing further deltas",
				"bytes", len(accumulated))
		}
		return nil
	}

	var deltas []FieldDelta
	for _, key := range deltaKeys {
		value, present := d.lookup(obj, key)
		if !present {
			continue
		}
		prev := d.emitted[key]
		if value == prev {
			continue
		}
		delta := value
		if strings.HasPrefix(value, prev) {
			delta = value[len(prev):]
		}
		// A non-prefix rewrite is an upstream correction; the whole new
		// value becomes the delta rather than crashing or dropping it.
		if delta == "" {
			continue
		}
		d.emitted[key] = value
		d.inv.set(key, value)
		deltas = append(deltas, FieldDelta{Key: key, Delta: delta})
	}
	return deltas
}

func (d *Decoder) lookup(obj map[string]any, key Key) (string, bool) {
	for _, jsonKey := range keyAliases[key] {
		if v, present := obj[jsonKey]; present {
			if s, isString := v.(string); isString {
				return s, true
			}
		}
	}
	return "", false
}

// Invocation returns the call reconstructed so far.
func (d *Decoder) Invocation() Invocation {
	return d.inv
}

// Close finalizes the block and returns the frozen invocation. The end of a
// block is signaled by the stream layer (a content-block-stop event), never
// inferred from the JSON itself. Feeding a closed decoder is a no-op.
func (d *Decoder) Close() Invocation {
	d.closed = true
	return d.inv
}

// Closed reports whether Close has been called.
func (d *Decoder) Closed() bool {
	return d.closed
}

// Raw returns everything fed so far, for lenient whole-document decoding
// once the block has closed.
func (d *Decoder) Raw() string {
	return d.raw.String()
}

// Reset prepares the decoder for the next tool-call block.
func (d *Decoder) Reset() {
	d.raw.Reset()
	d.emitted = make(map[Key]string)
	d.inv = Invocation{}
	d.malformed = false
	d.closed = false
}
