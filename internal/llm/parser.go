package llm

import (
	"fmt"
	"strings"
)

// CleanMarkdownWrapper strips a ```json ... ``` fence some models wrap
// around JSON output, then trims anything outside the outermost braces.
func CleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		if nl := strings.Index(content, "\n"); nl >= 0 {
			// Drop the language tag line (e.g. "json").
			content = content[nl+1:]
		}
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}

	return content
}

// ExtractJSONObject returns the JSON object embedded in an LLM response or an
// error if there is none.
func ExtractJSONObject(content string) (string, error) {
	cleaned := CleanMarkdownWrapper(content)
	if !strings.HasPrefix(cleaned, "{") || !strings.HasSuffix(cleaned, "}") {
		return "", fmt.Errorf("no JSON object found in response")
	}
	return cleaned, nil
}
