// Package keywords guarantees a bounded set of topical keywords per issue.
// When candidate keywords (from an LLM extractor or a parsed comment) are
// missing or low-signal, deterministic heuristics over the issue's own text
// fill the gap.
package keywords

import (
	"regexp"
	"sort"
	"strings"
)

// Default coverage bounds.
const (
	DefaultMin = 5
	DefaultMax = 8
)

// Source weights for heuristic extraction.
const (
	weightTitle    = 5
	weightBody     = 3
	weightSummary  = 3
	weightLabels   = 4
	weightEvidence = 4
	weightPaths    = 3
)

const bodyTruncateLen = 600

// Context carries the issue texts heuristic extraction draws from.
type Context struct {
	Title             string
	Body              string
	ChangeSummary     string
	Labels            []string
	EvidenceSummaries []string
	FilePaths         []string
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "this": true,
	"that": true, "from": true, "when": true, "then": true, "than": true,
	"are": true, "was": true, "were": true, "has": true, "have": true,
	"had": true, "not": true, "but": true, "can": true, "will": true,
	"should": true, "would": true, "could": true, "into": true, "onto": true,
	"about": true, "after": true, "before": true, "between": true,
	"there": true, "their": true, "they": true, "them": true, "been": true,
	"being": true, "also": true, "only": true, "some": true, "such": true,
	"all": true, "any": true, "each": true, "more": true, "most": true,
	"other": true, "same": true, "very": true, "just": true, "because": true,
	"while": true, "where": true, "which": true, "what": true, "does": true,
	"doesn": true, "don": true, "its": true, "it's": true, "you": true,
	"your": true, "our": true, "via": true, "per": true, "using": true,
	"used": true, "use": true, "may": true, "might": true, "still": true,
	"over": true, "under": true, "these": true, "those": true, "here": true,
	"how": true, "why": true, "who": true, "get": true, "got": true,
	"see": true, "now": true, "new": true, "one": true, "two": true,
}

// genericWords are too vague to identify a topic; they survive normalization
// of explicit candidates but count as no signal, and are never produced by
// the heuristics.
var genericWords = map[string]bool{
	"issue": true, "issues": true, "bug": true, "bugs": true, "fix": true,
	"fixes": true, "fixed": true, "error": true, "errors": true,
	"problem": true, "problems": true, "feature": true, "features": true,
	"update": true, "updates": true, "updated": true, "change": true,
	"changes": true, "changed": true, "code": true, "file": true,
	"files": true, "work": true, "works": true, "working": true,
	"broken": true, "breaks": true, "needs": true, "need": true,
	"support": true, "request": true, "question": true, "help": true,
	"general": true, "misc": true, "todo": true, "task": true,
}

// scaffoldingDirs are path segments too common to be topical.
var scaffoldingDirs = map[string]bool{
	"src": true, "test": true, "tests": true, "dist": true, "build": true,
	"lib": true, "libs": true, "bin": true, "out": true, "vendor": true,
	"node_modules": true, "docs": true, "internal": true, "cmd": true,
	"pkg": true, "main": true, "index": true, "common": true, "util": true,
	"utils": true, "helpers": true,
}

// fallbackKeywords pad the result when even heuristics cannot reach the
// minimum. Ordered; never reordered.
var fallbackKeywords = []string{
	"maintenance", "code-change", "bugfix", "enhancement",
	"refactoring", "stability", "follow-up", "cleanup",
}

var disallowedChars = regexp.MustCompile(`[^a-z0-9\-_/ ]+`)
var whitespace = regexp.MustCompile(`\s+`)

// Normalize canonicalizes one raw keyword: lower-cased, stripped to
// [a-z0-9-_/ ], whitespace collapsed. Returns "" for tokens that are too
// short or stop words.
func Normalize(raw string) string {
	kw := strings.ToLower(strings.TrimSpace(raw))
	kw = disallowedChars.ReplaceAllString(kw, "")
	kw = strings.TrimSpace(whitespace.ReplaceAllString(kw, " "))
	if len(kw) < 3 || stopWords[kw] {
		return ""
	}
	return kw
}

// NormalizeSet normalizes a candidate list, de-duplicating while preserving
// first-seen order, capped at maxCount.
func NormalizeSet(candidates []string, maxCount int) []string {
	var result []string
	seen := make(map[string]bool)
	for _, raw := range candidates {
		kw := Normalize(raw)
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		result = append(result, kw)
		if len(result) >= maxCount {
			break
		}
	}
	return result
}

// EnsureCoverage returns between minCount and maxCount keywords for an issue.
// Normalized candidates come first; heuristic extraction over the context
// fills any shortfall (or replaces a candidate set that is entirely generic
// filler); generic fallback keywords pad the rest. Deterministic for
// identical inputs.
func EnsureCoverage(candidates []string, kwctx Context, minCount, maxCount int) []string {
	if minCount <= 0 {
		minCount = DefaultMin
	}
	if maxCount < minCount {
		maxCount = minCount
	}

	result := NormalizeSet(candidates, maxCount)

	if len(result) < minCount || allGeneric(result) {
		for _, kw := range extract(kwctx) {
			if len(result) >= maxCount {
				break
			}
			if !containsKeyword(result, kw) {
				result = append(result, kw)
			}
		}
	}

	for _, kw := range fallbackKeywords {
		if len(result) >= minCount {
			break
		}
		if !containsKeyword(result, kw) {
			result = append(result, kw)
		}
	}

	return result
}

func allGeneric(keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	for _, kw := range keywords {
		if !genericWords[kw] {
			return false
		}
	}
	return true
}

func containsKeyword(keywords []string, kw string) bool {
	for _, k := range keywords {
		if k == kw {
			return true
		}
	}
	return false
}

type weighted struct {
	text     string
	weight   int
	isPhrase bool
}

// extract runs weighted heuristic extraction over the context and returns
// ranked keyword suggestions, phrases before single tokens.
func extract(kwctx Context) []string {
	weights := make(map[string]*weighted)

	addText := func(text string, weight int) {
		tokens := tokenize(text)
		for _, tok := range tokens {
			accumulate(weights, tok, weight, false)
		}
		// 2-3 token phrases over consecutive topical tokens.
		for length := 2; length <= 3; length++ {
			for i := 0; i+length <= len(tokens); i++ {
				phrase := strings.Join(tokens[i:i+length], " ")
				accumulate(weights, phrase, weight*length, true)
			}
		}
	}

	addText(kwctx.Title, weightTitle)

	body := kwctx.Body
	if len(body) > bodyTruncateLen {
		body = body[:bodyTruncateLen]
	}
	addText(body, weightBody)
	addText(kwctx.ChangeSummary, weightSummary)

	for _, label := range kwctx.Labels {
		// Multi-word labels become one hyphenated token.
		tok := Normalize(strings.Join(strings.Fields(label), "-"))
		if tok != "" && !genericWords[tok] {
			accumulate(weights, tok, weightLabels, false)
		}
	}

	for _, summary := range kwctx.EvidenceSummaries {
		addText(summary, weightEvidence)
	}

	for _, path := range kwctx.FilePaths {
		for _, seg := range pathSegments(path) {
			accumulate(weights, seg, weightPaths, false)
		}
	}

	ranked := make([]*weighted, 0, len(weights))
	for _, w := range weights {
		ranked = append(ranked, w)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].isPhrase != ranked[j].isPhrase {
			return ranked[i].isPhrase
		}
		if ranked[i].weight != ranked[j].weight {
			return ranked[i].weight > ranked[j].weight
		}
		return ranked[i].text < ranked[j].text
	})

	result := make([]string, 0, len(ranked))
	for _, w := range ranked {
		result = append(result, w.text)
	}
	return result
}

func accumulate(weights map[string]*weighted, text string, weight int, isPhrase bool) {
	if w, ok := weights[text]; ok {
		w.weight += weight
		return
	}
	weights[text] = &weighted{text: text, weight: weight, isPhrase: isPhrase}
}

// tokenize splits text into normalized topical tokens, dropping stop words
// and generic filler.
func tokenize(text string) []string {
	text = strings.ToLower(text)
	text = disallowedChars.ReplaceAllString(text, " ")
	var tokens []string
	for _, field := range strings.Fields(text) {
		field = strings.Trim(field, "-_/")
		if len(field) < 3 || stopWords[field] || genericWords[field] {
			continue
		}
		tokens = append(tokens, field)
	}
	return tokens
}

// pathSegments breaks a file path into topical segments, filtering common
// scaffolding directories and stripping the extension.
func pathSegments(path string) []string {
	var segments []string
	for _, seg := range strings.Split(strings.ToLower(path), "/") {
		if dot := strings.LastIndex(seg, "."); dot > 0 {
			seg = seg[:dot]
		}
		if len(seg) < 3 || scaffoldingDirs[seg] || stopWords[seg] || genericWords[seg] {
			continue
		}
		segments = append(segments, seg)
	}
	return segments
}
