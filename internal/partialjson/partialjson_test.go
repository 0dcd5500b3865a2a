package partialjson

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairAndParseComplete(t *testing.T) {
	obj, ok := RepairAndParse(`{"language": "python", "code": "print(1)"}`)
	require.True(t, ok)
	assert.Equal(t, "python", obj["language"])
	assert.Equal(t, "print(1)", obj["code"])
}

func TestRepairAndParseTruncated(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]any
	}{
		{
			name:  "open string value",
			input: `{"code": "echo hi`,
			want:  map[string]any{"code": "echo hi"},
		},
		{
			name:  "open object",
			input: `{"language": "ruby"`,
			want:  map[string]any{"language": "ruby"},
		},
		{
			name:  "nested array",
			input: `{"items": [1, 2`,
			want:  map[string]any{"items": []any{float64(1), float64(2)}},
		},
		{
			name:  "escaped quote inside open string",
			input: `{"code": "say \"hi`,
			want:  map[string]any{"code": `say "hi`},
		},
		{
			name:  "dangling escape",
			input: `{"code": "line\`,
			want:  map[string]any{"code": "line"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, ok := RepairAndParse(tt.input)
			require.True(t, ok)
			assert.Equal(t, tt.want, obj)
		})
	}
}

func TestRepairAndParseMalformed(t *testing.T) {
	for _, input := range []string{
		`{"a": 1]`,
		`{"a": [1}`,
		`}`,
		`]`,
	} {
		obj, ok := RepairAndParse(input)
		assert.False(t, ok, "input %q should not parse", input)
		assert.Nil(t, obj)
		assert.True(t, Malformed(input), "input %q should be malformed", input)
	}
	assert.False(t, Malformed(`{"a":`), "truncation is not a mismatch")
}

func TestRepairAndParseAmbiguousPrefixes(t *testing.T) {
	// Mid-key and mid-literal prefixes are not parseable yet, but must not
	// be reported as malformed in a way that would panic or mislead.
	for _, input := range []string{``, `{`, `{"lang`, `{"a":`, `{"a": tr`} {
		_, _ = RepairAndParse(input)
	}
}

// Every prefix of a serialized object parses without panicking, and the full
// document round-trips exactly.
func TestRepairAndParseEveryPrefix(t *testing.T) {
	source := map[string]any{
		"language":  "python",
		"code":      "for i in range(3):\n    print(\"x\\\"y\")",
		"file_text": "a\tb\nc",
		"nested":    map[string]any{"list": []any{"a", "b"}, "n": float64(7)},
	}
	raw, err := json.Marshal(source)
	require.NoError(t, err)

	for i := 1; i <= len(raw); i++ {
		obj, ok := RepairAndParse(string(raw[:i]))
		if ok {
			require.NotNil(t, obj)
		}
		if i == len(raw) {
			require.True(t, ok)
			assert.Equal(t, source, obj)
		}
	}
}

func TestUnmarshalLenient(t *testing.T) {
	type params struct {
		Language string `json:"language"`
		Code     string `json:"code"`
	}

	var p params
	require.NoError(t, Unmarshal(`{"language": "shell", "code": "ls"`, &p))
	assert.Equal(t, "shell", p.Language)
	assert.Equal(t, "ls", p.Code)

	var q params
	require.NoError(t, Unmarshal(`{'language': 'shell', 'code': 'ls',}`, &q))
	assert.Equal(t, "shell", q.Language)

	var r params
	err := Unmarshal(``, &r)
	assert.Error(t, err)
}
