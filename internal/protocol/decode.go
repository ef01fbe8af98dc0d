package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeError is returned for a line that is not a valid request object.
type DecodeError struct {
	Line string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("Invalid JSON data: %v | %s", e.Err, e.Line)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// NormalizeLine undoes the host's extra escaping of unicode sequences and
// trims surrounding whitespace.
func NormalizeLine(line string) string {
	return strings.TrimSpace(unescapeUnicode(line))
}

// DecodeLine parses a normalized line into a Request.
func DecodeLine(line string) (Request, error) {
	var req Request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		return Request{}, &DecodeError{Line: line, Err: err}
	}
	if req.Payload == nil {
		req.Payload = map[string]any{}
	}
	return req, nil
}

// unescapeUnicode collapses a doubled backslash run in front of a \uXXXX
// sequence so the JSON decoder sees a real unicode escape. The host sends
// "\\u4f60" inside JSON strings for every non-ASCII rune; a backslash run of
// even length n followed by uXXXX becomes n/2 backslashes. Odd runs are
// already valid escapes and are left alone.
func unescapeUnicode(s string) string {
	if !strings.Contains(s, `\\u`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			i++
			continue
		}
		j := i
		for j < len(s) && s[j] == '\\' {
			j++
		}
		n := j - i
		if n%2 == 0 && isUnicodeEscape(s[j:]) {
			n /= 2
		}
		b.WriteString(strings.Repeat(`\`, n))
		i = j
	}
	return b.String()
}

func isUnicodeEscape(s string) bool {
	if len(s) < 5 || s[0] != 'u' {
		return false
	}
	for _, c := range s[1:5] {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
