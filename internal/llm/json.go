package llm

import (
	"encoding/json"
	"log"
	"strings"
)

// ParseJSONResponse parses the JSON object a provider returns for the keyword
// prompt. Models often wrap the payload in markdown code fences despite being
// told not to, so fences are stripped before unmarshaling. Returns nil when
// no JSON object can be recovered.
func ParseJSONResponse(text string) map[string]any {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		endIdx := len(lines) - 1
		for i := len(lines) - 1; i > 0; i-- {
			if strings.TrimSpace(lines[i]) == "```" {
				endIdx = i
				break
			}
		}
		text = strings.Join(lines[1:endIdx], "\n")
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		log.Printf("Failed to parse LLM response as JSON: %v", err)
		return nil
	}

	return result
}
