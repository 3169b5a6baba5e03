package llm

import (
	"testing"
)

func keywordsOf(t *testing.T, result map[string]any) []string {
	t.Helper()
	raw, ok := result["keywords"].([]any)
	if !ok {
		t.Fatalf("expected keywords array, got %v", result["keywords"])
	}
	var keywords []string
	for _, v := range raw {
		keywords = append(keywords, v.(string))
	}
	return keywords
}

func TestParseJSONResponseKeywordPayload(t *testing.T) {
	result := ParseJSONResponse(`{"keywords": ["checkout", "payment gateway", "timeout"]}`)
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	got := keywordsOf(t, result)
	if len(got) != 3 || got[0] != "checkout" || got[1] != "payment gateway" {
		t.Errorf("unexpected keywords: %v", got)
	}
}

func TestParseJSONResponseWithCodeFence(t *testing.T) {
	text := "```json\n{\"keywords\": [\"sqlite\", \"migration\"]}\n```"
	result := ParseJSONResponse(text)
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if got := keywordsOf(t, result); len(got) != 2 || got[0] != "sqlite" {
		t.Errorf("unexpected keywords: %v", got)
	}
}

func TestParseJSONResponseWithPlainFence(t *testing.T) {
	text := "```\n{\"keywords\": [\"webhooks\"]}\n```"
	result := ParseJSONResponse(text)
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if got := keywordsOf(t, result); len(got) != 1 || got[0] != "webhooks" {
		t.Errorf("unexpected keywords: %v", got)
	}
}

func TestParseJSONResponseInvalid(t *testing.T) {
	if ParseJSONResponse("the issue is about checkout timeouts") != nil {
		t.Error("expected nil for prose that is not JSON")
	}
}

func TestParseJSONResponseEmpty(t *testing.T) {
	if ParseJSONResponse("") != nil {
		t.Error("expected nil for empty string")
	}
}

func TestParseJSONResponseWhitespace(t *testing.T) {
	result := ParseJSONResponse("  \n  {\"keywords\": [\"indexing\"]}  \n  ")
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if got := keywordsOf(t, result); len(got) != 1 || got[0] != "indexing" {
		t.Errorf("unexpected keywords: %v", got)
	}
}
