package llm

import "strings"

// ExtractJSONObject pulls the first balanced JSON object out of free-form
// model output. Models wrap JSON in prose or markdown fences often enough
// that callers should try this before giving up on a malformed response.
func ExtractJSONObject(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if fenced, ok := stripFence(raw); ok {
		raw = fenced
	}

	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}

func stripFence(raw string) (string, bool) {
	if !strings.HasPrefix(raw, "```") {
		return "", false
	}
	body := strings.TrimPrefix(raw, "```json")
	body = strings.TrimPrefix(body, "```")
	if end := strings.LastIndex(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body), true
}
