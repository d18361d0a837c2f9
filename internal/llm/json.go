package llm

import "strings"

// ExtractJSONObject returns the first balanced JSON object span in raw.
// Models often wrap JSON in markdown fences or surround it with prose; the
// extraction tolerates both. If no object delimiters are found, raw is
// returned unchanged so the caller's unmarshal produces the parse error.
func ExtractJSONObject(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		if i := strings.LastIndex(cleaned, "```"); i >= 0 {
			cleaned = cleaned[:i]
		}
		cleaned = strings.TrimSpace(cleaned)
	}
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		return cleaned[start : end+1]
	}
	return cleaned
}
