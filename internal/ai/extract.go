package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON pulls a JSON document out of a model completion. Models
// often wrap output in markdown code fences or prepend prose; this strips
// fences, then falls back to the first balanced object or array.
func ExtractJSON(raw string) (string, error) {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	if json.Valid([]byte(s)) {
		return s, nil
	}

	// Fall back to the first balanced span, whichever opener comes first.
	openers := []byte{'{', '['}
	if obj, arr := strings.IndexByte(s, '{'), strings.IndexByte(s, '['); arr >= 0 && (obj < 0 || arr < obj) {
		openers = []byte{'[', '{'}
	}
	for _, open := range openers {
		if candidate, ok := firstBalanced(s, open); ok && json.Valid([]byte(candidate)) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("ai: no JSON found in response")
}

// firstBalanced finds the first balanced {...} or [...] span, honoring
// string literals and escapes.
func firstBalanced(s string, open byte) (string, bool) {
	var closer byte = '}'
	if open == '[' {
		closer = ']'
	}
	start := strings.IndexByte(s, open)
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
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
			inString = true
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
