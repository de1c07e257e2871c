package parsers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSONObject is returned when a response holds no balanced JSON object.
var ErrNoJSONObject = errors.New("no JSON object found in response")

// ExtractJSONObject returns the first balanced {...} object in raw text.
// Braces inside string literals are ignored, so wrapped answers such as
// markdown fences or chatty preambles are tolerated.
func ExtractJSONObject(raw string) (string, error) {
	start := strings.IndexByte(raw, '{')
	for start >= 0 {
		if end := matchBrace(raw, start); end > start {
			candidate := raw[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, nil
			}
		}
		next := strings.IndexByte(raw[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", ErrNoJSONObject
}

// matchBrace returns the index of the brace closing the one at start, or -1.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
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
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// DecodeJSONObject extracts the first JSON object from raw and decodes it into T.
func DecodeJSONObject[T any](raw string) (*T, error) {
	obj, err := ExtractJSONObject(raw)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal([]byte(obj), &out); err != nil {
		return nil, fmt.Errorf("decode JSON object: %w", err)
	}
	return &out, nil
}

// IsJSONNull reports whether the trimmed response is a bare JSON null,
// optionally inside a markdown fence.
func IsJSONNull(raw string) bool {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s) == "null"
}
