package llm

import (
	"context"
	"fmt"
	"strings"
)

const extractPrompt = `You are tagging a software issue with topical keywords for similarity search.

Issue title: %s
Issue body:
%s

Respond with ONLY this JSON:
{
    "keywords": ["keyword1", "keyword2", "..."]
}

Rules: 5 to 8 keywords, lower-case, each a short topic tag (component, subsystem,
technology, or failure mode). No generic words like "bug", "issue", or "fix".`

const extractMaxTokens = 256

// Extraction is the result of one keyword extraction call.
type Extraction struct {
	Keywords   []string
	TokensUsed int
}

// Extractor produces topical keywords for an issue. Implementations must be
// safe to skip: absence or failure never blocks profile computation.
type Extractor interface {
	ExtractKeywords(ctx context.Context, title, body string, issueNumber int) (*Extraction, error)
}

// ProviderExtractor extracts keywords through an LLM provider.
type ProviderExtractor struct {
	provider Provider
}

// NewExtractor wraps a provider. A nil provider yields a nil extractor,
// which callers treat as "no extraction".
func NewExtractor(provider Provider) *ProviderExtractor {
	if provider == nil {
		return nil
	}
	return &ProviderExtractor{provider: provider}
}

// ExtractKeywords asks the provider for topical keywords.
func (e *ProviderExtractor) ExtractKeywords(ctx context.Context, title, body string, issueNumber int) (*Extraction, error) {
	if len(body) > 4000 {
		body = body[:4000] + "..."
	}
	if body == "" {
		body = "(no body)"
	}

	prompt := fmt.Sprintf(extractPrompt, title, body)
	response, err := e.provider.Generate(ctx, prompt, extractMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("extracting keywords for issue #%d: %w", issueNumber, err)
	}

	parsed := ParseJSONResponse(response)
	if parsed == nil {
		return nil, fmt.Errorf("keyword response for issue #%d was not valid JSON", issueNumber)
	}

	ext := &Extraction{TokensUsed: estimateTokens(prompt) + estimateTokens(response)}
	if raw, ok := parsed["keywords"]; ok {
		if arr, ok := raw.([]any); ok {
			for _, v := range arr {
				if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
					ext.Keywords = append(ext.Keywords, strings.TrimSpace(s))
				}
			}
		}
	}
	return ext, nil
}

// estimateTokens is a rough 4-chars-per-token estimate for telemetry.
func estimateTokens(s string) int {
	return len(s) / 4
}
