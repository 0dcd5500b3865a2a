// Package partialjson parses JSON documents that may still be arriving.
//
// Streaming tool calls deliver their arguments as arbitrary fragments of a
// single JSON object. RepairAndParse closes whatever is still open in a
// prefix of that object so the fields decoded so far become visible before
// the document is complete.
package partialjson

import (
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/kaptinlin/jsonrepair"
)

// RepairAndParse attempts to parse s as a JSON object, repairing a truncated
// tail if needed. It returns (nil, false) when s is malformed beyond a simple
// truncation, e.g. a mismatched closer. The function is pure and is intended
// to be called repeatedly on a growing prefix.
func RepairAndParse(s string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, false
	}

	if obj, ok := parseObject(trimmed); ok {
		return obj, true
	}

	repaired, ok := balance(trimmed)
	if !ok {
		return nil, false
	}
	return parseObject(repaired)
}

// Malformed reports whether s contains a structural mismatch (a closer that
// does not pair with the innermost open construct). A merely truncated
// document is not malformed.
func Malformed(s string) bool {
	_, ok := balance(strings.TrimSpace(s))
	return !ok
}

func parseObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := jsoniter.UnmarshalFromString(s, &obj); err != nil {
		return nil, false
	}
	if obj == nil {
		return nil, false
	}
	return obj, true
}

// balance scans s tracking open strings, braces and brackets, then appends
// the closers still missing. A closer that does not match the innermost open
// construct means the input is malformed rather than truncated, and balance
// reports false instead of guessing.
func balance(s string) (string, bool) {
	var closers []byte
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			closers = append(closers, '}')
		case '[':
			closers = append(closers, ']')
		case '}', ']':
			if len(closers) == 0 || closers[len(closers)-1] != c {
				return "", false
			}
			closers = closers[:len(closers)-1]
		}
	}

	var b strings.Builder
	b.Grow(len(s) + len(closers) + 1)
	if escaped {
		// A trailing backslash would escape the quote we are about to
		// append; drop it and let the next fragment resend the escape.
		b.WriteString(s[:len(s)-1])
	} else {
		b.WriteString(s)
	}
	if inString {
		b.WriteByte('"')
	}
	for i := len(closers) - 1; i >= 0; i-- {
		b.WriteByte(closers[i])
	}
	return b.String(), true
}

// Unmarshal decodes a finalized tool-call payload into v, tolerating the
// mild damage models inflict on completed JSON (a dropped closing brace,
// single quotes, trailing commas). Strict decoding is tried first, then a
// jsonrepair pass. The original decode error is returned if every attempt
// fails.
func Unmarshal(s string, v any) error {
	err := jsoniter.UnmarshalFromString(s, v)
	if err == nil {
		return nil
	}
	original := err

	if err := jsoniter.UnmarshalFromString(s+"}", v); err == nil {
		return nil
	}

	repaired, rerr := jsonrepair.JSONRepair(s)
	if rerr != nil {
		return original
	}
	if err := jsoniter.UnmarshalFromString(repaired, v); err == nil {
		return nil
	}
	return original
}
