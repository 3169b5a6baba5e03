package comment

import (
	"reflect"
	"strings"
	"testing"

	"github.com/riskradar/riskradar/internal/database"
	"github.com/riskradar/riskradar/internal/gateway"
)

func sampleProfile() *database.RiskProfile {
	return &database.RiskProfile{
		Repository:  "acme/widgets",
		IssueNumber: 42,
		RiskLevel:   database.RiskHigh,
		RiskScore:   82.4,
		Metrics: database.RiskMetrics{
			PRCount:            2,
			DirectCommitCount:  0,
			FilesTouched:       31,
			ChangeVolume:       1310,
			ReviewCommentCount: 18,
		},
		Drivers: []string{
			"Took 2 pull requests to resolve",
			"Wide blast radius: 31 files touched",
		},
		Evidence: []database.Evidence{
			{Label: "PR #12", Detail: "31 files, +900/-410", URL: "https://github.com/acme/widgets/pull/12", PRNumber: 12},
			{Label: "PR #15", URL: "https://github.com/acme/widgets/pull/15", PRNumber: 15},
			{Label: "Commit abc1234", Detail: "hotfix"},
		},
		Keywords:     []string{"payments", "checkout", "ledger", "retry-logic", "timeouts"},
		LookbackDays: 180,
		CalculatedAt: "2026-08-01T12:00:00Z",
	}
}

func TestRenderFixedLayout(t *testing.T) {
	body := Render(sampleProfile())

	if !strings.HasPrefix(body, SentinelTag+"\n") {
		t.Error("expected sentinel tag on the first line")
	}
	for _, want := range []string{
		"**High risk** · Score 82",
		"_Last updated: 2026-08-01T12:00:00Z_",
		"- 2 linked PRs",
		"- 0 direct commits",
		"- 31 files touched",
		"- 1310 lines changed",
		"- 18 review-friction signals",
		"**Top drivers**",
		"- [PR #12](https://github.com/acme/widgets/pull/12) — 31 files, +900/-410",
		"- Commit abc1234 — hotfix",
		"_Lookback window: 180 days_",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("rendered comment missing %q\n%s", want, body)
		}
	}
}

func TestRenderSingularForms(t *testing.T) {
	p := sampleProfile()
	p.Metrics = database.RiskMetrics{
		PRCount: 1, DirectCommitCount: 1, FilesTouched: 1,
		ChangeVolume: 1, ReviewCommentCount: 1,
	}
	body := Render(p)
	for _, want := range []string{
		"- 1 linked PR\n",
		"- 1 direct commit\n",
		"- 1 file touched\n",
		"- 1 line changed\n",
		"- 1 review-friction signal\n",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected singular form %q", want)
		}
	}
}

func TestRenderNoDriversPlaceholder(t *testing.T) {
	p := sampleProfile()
	p.Drivers = nil
	body := Render(p)
	if !strings.Contains(body, "- "+noDriversPlaceholder) {
		t.Error("expected placeholder line for empty drivers")
	}
}

func TestRoundTrip(t *testing.T) {
	p := sampleProfile()
	parsed, ok := Parse(Render(p))
	if !ok {
		t.Fatal("expected rendered comment to parse")
	}

	if parsed.Level != p.RiskLevel {
		t.Errorf("level: got %s, want %s", parsed.Level, p.RiskLevel)
	}
	if parsed.Score != 82 {
		t.Errorf("score: got %v, want rounded 82", parsed.Score)
	}
	if parsed.LastUpdated != p.CalculatedAt {
		t.Errorf("last updated: got %q, want %q", parsed.LastUpdated, p.CalculatedAt)
	}
	if parsed.LookbackDays != 180 {
		t.Errorf("lookback: got %d", parsed.LookbackDays)
	}

	m := p.Metrics
	if parsed.PRCount != m.PRCount || parsed.DirectCommitCount != m.DirectCommitCount ||
		parsed.FilesTouched != m.FilesTouched || parsed.ChangeVolume != m.ChangeVolume ||
		parsed.ReviewCommentCount != m.ReviewCommentCount {
		t.Errorf("metrics mismatch: %+v", parsed)
	}

	if !reflect.DeepEqual(parsed.Drivers, p.Drivers) {
		t.Errorf("drivers: got %v, want %v", parsed.Drivers, p.Drivers)
	}
	if !reflect.DeepEqual(parsed.Keywords, p.Keywords) {
		t.Errorf("keywords: got %v, want %v", parsed.Keywords, p.Keywords)
	}

	if len(parsed.Evidence) != len(p.Evidence) {
		t.Fatalf("evidence count: got %d, want %d", len(parsed.Evidence), len(p.Evidence))
	}
	for i, want := range p.Evidence {
		got := parsed.Evidence[i]
		if got.Label != want.Label || got.URL != want.URL || got.Detail != want.Detail || got.PRNumber != want.PRNumber {
			t.Errorf("evidence %d: got %+v, want %+v", i, got, want)
		}
	}
}

func TestRoundTripEmptyDrivers(t *testing.T) {
	p := sampleProfile()
	p.Drivers = nil
	parsed, ok := Parse(Render(p))
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if len(parsed.Drivers) != 0 {
		t.Errorf("placeholder must not become a driver, got %v", parsed.Drivers)
	}
}

func TestRoundTripSingularMetrics(t *testing.T) {
	p := sampleProfile()
	p.Metrics = database.RiskMetrics{
		PRCount: 1, DirectCommitCount: 1, FilesTouched: 1,
		ChangeVolume: 1, ReviewCommentCount: 1,
	}
	parsed, ok := Parse(Render(p))
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if parsed.PRCount != 1 || parsed.DirectCommitCount != 1 || parsed.FilesTouched != 1 ||
		parsed.ChangeVolume != 1 || parsed.ReviewCommentCount != 1 {
		t.Errorf("singular metric lines did not parse: %+v", parsed)
	}
}

func TestParseRejectsForeignComments(t *testing.T) {
	for _, body := range []string{
		"",
		"just a regular comment",
		"**High risk** · Score 80\nlooks like ours but no sentinel",
	} {
		if _, ok := Parse(body); ok {
			t.Errorf("expected %q to be rejected", body)
		}
	}
}

func TestParseRejectsMalformedHeader(t *testing.T) {
	body := SentinelTag + "\n**Extreme risk** · Score 999\n- 2 linked PRs\n"
	if parsed, ok := Parse(body); ok {
		t.Errorf("expected malformed header to be rejected, got %+v", parsed)
	}
}

func TestParseUnparsableTimestampIgnored(t *testing.T) {
	body := strings.Replace(Render(sampleProfile()),
		"_Last updated: 2026-08-01T12:00:00Z_",
		"_Last updated: sometime last week_", 1)
	parsed, ok := Parse(body)
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if parsed.LastUpdated != "" {
		t.Errorf("expected empty LastUpdated, got %q", parsed.LastUpdated)
	}
}

func TestFindPicksLatestEngineComment(t *testing.T) {
	old := sampleProfile()
	old.RiskScore = 20
	old.RiskLevel = database.RiskLow

	comments := []gateway.IssueComment{
		{ID: 1, Body: "unrelated discussion"},
		{ID: 2, Body: Render(old)},
		{ID: 3, Body: Render(sampleProfile())},
		{ID: 4, Body: "more discussion"},
	}

	found, parsed := Find(comments)
	if found == nil {
		t.Fatal("expected a match")
	}
	if found.ID != 3 {
		t.Errorf("expected latest engine comment (ID 3), got %d", found.ID)
	}
	if parsed.Level != database.RiskHigh {
		t.Errorf("expected parsed fields from latest comment, got %s", parsed.Level)
	}
}

func TestFindNoMatch(t *testing.T) {
	found, parsed := Find([]gateway.IssueComment{{ID: 1, Body: "hello"}})
	if found != nil || parsed != nil {
		t.Error("expected no match")
	}
}
