package relationship

import (
	"encoding/json"
	"strings"
)

// ExtractJSONArray pulls a JSON array out of free-form oracle output
// that may wrap it in markdown code fences or surround it with
// commentary. Returns nil if no valid array could be found.
func ExtractJSONArray(text string) []map[string]any {
	text = strings.TrimSpace(text)
	text = stripCodeFence(text)

	var direct []map[string]any
	if err := json.Unmarshal([]byte(text), &direct); err == nil {
		return direct
	}

	start := strings.IndexByte(text, '[')
	if start == -1 {
		return nil
	}

	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				var result []map[string]any
				if err := json.Unmarshal([]byte(text[start:i+1]), &result); err == nil {
					return result
				}
				return nil
			}
		}
	}
	return nil
}

func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	end := len(lines)
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			end = i
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines[1:end], "\n"))
}
