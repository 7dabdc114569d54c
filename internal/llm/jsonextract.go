package llm

import (
	"encoding/json"
	"fmt"
)

// ExtractJSON returns the first balanced JSON object in s. Model replies
// routinely wrap JSON in prose or markdown fences, so a bracket-depth scan
// is used rather than trusting the whole reply to json.Unmarshal.
func ExtractJSON(s string) (json.RawMessage, error) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue // stray close before any open
			}
			depth--
			if depth == 0 {
				candidate := s[start : i+1]
				if json.Valid([]byte(candidate)) {
					return json.RawMessage(candidate), nil
				}
				// Keep scanning; the next balanced object may be valid.
				start = -1
			}
		}
	}
	return nil, fmt.Errorf("no balanced JSON object found")
}
