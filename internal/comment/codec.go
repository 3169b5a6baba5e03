// Package comment renders a risk profile into a tagged markdown block and
// parses that block back into structured fields. Renderer and parser are a
// matched pair: the grammar is a versioned wire format, and any change to one
// side must be mirrored in the other (and in the round-trip tests).
package comment

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/riskradar/riskradar/internal/database"
	"github.com/riskradar/riskradar/internal/gateway"
)

// SentinelTag identifies engine-authored comments among all comments on an
// issue. It is an HTML comment, invisible in GitHub's rendered view.
const SentinelTag = "<!-- riskradar:risk-profile -->"

const noDriversPlaceholder = "No elevated risk factors detected"

var (
	headerPattern   = regexp.MustCompile(`\*\*(Low|Medium|High) risk\*\* · Score (\d+)`)
	updatedPattern  = regexp.MustCompile(`_Last updated: ([^_]+)_`)
	lookbackPattern = regexp.MustCompile(`_Lookback window: (\d+) days?_`)
	linkPattern     = regexp.MustCompile(`^\[([^\]]+)\]\(([^)]+)\)`)
	prNumberPattern = regexp.MustCompile(`PR #(\d+)`)

	metricPatterns = map[string]*regexp.Regexp{
		"prs":     regexp.MustCompile(`^(\d+) linked PRs?$`),
		"commits": regexp.MustCompile(`^(\d+) direct commits?$`),
		"files":   regexp.MustCompile(`^(\d+) files? touched$`),
		"lines":   regexp.MustCompile(`^(\d+) lines? changed$`),
		"reviews": regexp.MustCompile(`^(\d+) review-friction signals?$`),
	}
)

// Parsed holds the fields recovered from an engine-authored comment.
type Parsed struct {
	Level        database.RiskLevel
	Score        float64
	LastUpdated  string // RFC 3339, empty if absent or unparsable
	LookbackDays int

	PRCount            int
	DirectCommitCount  int
	FilesTouched       int
	ChangeVolume       int
	ReviewCommentCount int

	Drivers  []string
	Evidence []database.Evidence
	Keywords []string
}

// Render produces the full markdown body for a profile's mirrored comment.
func Render(p *database.RiskProfile) string {
	var b strings.Builder

	b.WriteString(SentinelTag + "\n")
	fmt.Fprintf(&b, "**%s risk** · Score %d\n", titleLevel(p.RiskLevel), int(math.Round(p.RiskScore)))
	fmt.Fprintf(&b, "_Last updated: %s_\n\n", p.CalculatedAt)

	m := p.Metrics
	b.WriteString("**Key metrics**\n")
	fmt.Fprintf(&b, "- %d linked %s\n", m.PRCount, plural(m.PRCount, "PR", "PRs"))
	fmt.Fprintf(&b, "- %d direct %s\n", m.DirectCommitCount, plural(m.DirectCommitCount, "commit", "commits"))
	fmt.Fprintf(&b, "- %d %s touched\n", m.FilesTouched, plural(m.FilesTouched, "file", "files"))
	fmt.Fprintf(&b, "- %d %s changed\n", m.ChangeVolume, plural(m.ChangeVolume, "line", "lines"))
	fmt.Fprintf(&b, "- %d review-friction %s\n", m.ReviewCommentCount, plural(m.ReviewCommentCount, "signal", "signals"))
	b.WriteString("\n")

	b.WriteString("**Top drivers**\n")
	if len(p.Drivers) == 0 {
		b.WriteString("- " + noDriversPlaceholder + "\n")
	}
	for _, d := range p.Drivers {
		b.WriteString("- " + d + "\n")
	}
	b.WriteString("\n")

	b.WriteString("**Evidence**\n")
	for _, ev := range p.Evidence {
		b.WriteString("- ")
		if ev.URL != "" {
			fmt.Fprintf(&b, "[%s](%s)", ev.Label, ev.URL)
		} else {
			b.WriteString(ev.Label)
		}
		if ev.Detail != "" {
			b.WriteString(" — " + ev.Detail)
		}
		b.WriteString("\n")
	}

	if len(p.Keywords) > 0 {
		b.WriteString("\n**Keywords**\n")
		for _, kw := range p.Keywords {
			b.WriteString("- " + kw + "\n")
		}
	}

	fmt.Fprintf(&b, "\n_Lookback window: %d days_\n", p.LookbackDays)
	return b.String()
}

// Parse recovers structured fields from a comment body. Returns (nil, false)
// when the body lacks the sentinel tag or its header does not match the
// grammar; malformed input never yields a partial result.
func Parse(body string) (*Parsed, bool) {
	if !strings.Contains(body, SentinelTag) {
		return nil, false
	}

	header := headerPattern.FindStringSubmatch(body)
	if header == nil {
		return nil, false
	}

	p := &Parsed{
		Level: database.RiskLevel(strings.ToLower(header[1])),
	}
	fmt.Sscanf(header[2], "%f", &p.Score)

	if m := updatedPattern.FindStringSubmatch(body); m != nil {
		raw := strings.TrimSpace(m[1])
		if _, err := time.Parse(time.RFC3339, raw); err == nil {
			p.LastUpdated = raw
		}
	}
	if m := lookbackPattern.FindStringSubmatch(body); m != nil {
		fmt.Sscanf(m[1], "%d", &p.LookbackDays)
	}

	section := "none"
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		switch line {
		case "**Key metrics**":
			section = "metrics"
			continue
		case "**Top drivers**":
			section = "drivers"
			continue
		case "**Evidence**":
			section = "evidence"
			continue
		case "**Keywords**":
			section = "keywords"
			continue
		}
		if !strings.HasPrefix(line, "- ") {
			continue
		}
		item := strings.TrimPrefix(line, "- ")

		switch section {
		case "metrics":
			parseMetricLine(p, item)
		case "drivers":
			if item != noDriversPlaceholder {
				p.Drivers = append(p.Drivers, item)
			}
		case "evidence":
			p.Evidence = append(p.Evidence, parseEvidenceLine(item))
		case "keywords":
			p.Keywords = append(p.Keywords, item)
		}
	}

	return p, true
}

// Find locates the engine's own comment among an issue's comments. When
// several match, the last one wins (GitHub orders comments oldest first).
func Find(comments []gateway.IssueComment) (*gateway.IssueComment, *Parsed) {
	for i := len(comments) - 1; i >= 0; i-- {
		if parsed, ok := Parse(comments[i].Body); ok {
			return &comments[i], parsed
		}
	}
	return nil, nil
}

func parseMetricLine(p *Parsed, item string) {
	for key, pattern := range metricPatterns {
		m := pattern.FindStringSubmatch(item)
		if m == nil {
			continue
		}
		var n int
		fmt.Sscanf(m[1], "%d", &n)
		switch key {
		case "prs":
			p.PRCount = n
		case "commits":
			p.DirectCommitCount = n
		case "files":
			p.FilesTouched = n
		case "lines":
			p.ChangeVolume = n
		case "reviews":
			p.ReviewCommentCount = n
		}
		return
	}
}

func parseEvidenceLine(item string) database.Evidence {
	var ev database.Evidence

	rest := item
	if m := linkPattern.FindStringSubmatch(item); m != nil {
		ev.Label = m[1]
		ev.URL = m[2]
		rest = item[len(m[0]):]
	} else if idx := strings.Index(item, " — "); idx >= 0 {
		ev.Label = item[:idx]
		rest = item[idx:]
	} else {
		ev.Label = item
		rest = ""
	}

	if idx := strings.Index(rest, " — "); idx >= 0 {
		ev.Detail = rest[idx+len(" — "):]
	}

	if m := prNumberPattern.FindStringSubmatch(ev.Label); m != nil {
		fmt.Sscanf(m[1], "%d", &ev.PRNumber)
	}
	return ev
}

func titleLevel(level database.RiskLevel) string {
	switch level {
	case database.RiskHigh:
		return "High"
	case database.RiskMedium:
		return "Medium"
	default:
		return "Low"
	}
}

func plural(n int, singular, pluralForm string) string {
	if n == 1 {
		return singular
	}
	return pluralForm
}
