package scoring

import (
	"strings"
	"testing"

	"github.com/riskradar/riskradar/internal/database"
	"github.com/riskradar/riskradar/internal/gateway"
)

func TestComputeMetricsPRsTakePrecedence(t *testing.T) {
	prs := []gateway.PullRequest{
		{Number: 1, ChangedFiles: 10, Additions: 300, Deletions: 100, ReviewComments: 4, DiscussionComments: 2, ChangeRequests: 1},
		{Number: 2, ChangedFiles: 5, Additions: 50, Deletions: 20, ReviewComments: 1},
	}
	commits := []gateway.Commit{
		{SHA: "abc", Additions: 999, Deletions: 999},
	}

	m := ComputeMetrics(prs, commits)
	if m.PRCount != 2 {
		t.Errorf("expected 2 PRs, got %d", m.PRCount)
	}
	if m.DirectCommitCount != 0 {
		t.Errorf("expected direct commits ignored when PRs exist, got %d", m.DirectCommitCount)
	}
	if m.DirectCommitChangeVolume != 0 || m.DirectCommitAdditions != 0 {
		t.Errorf("expected zero direct-commit breakdown, got %+v", m)
	}
	if m.FilesTouched != 15 {
		t.Errorf("expected 15 files, got %d", m.FilesTouched)
	}
	if m.ChangeVolume != 470 {
		t.Errorf("expected change volume 470, got %d", m.ChangeVolume)
	}
	// 4+2+2*1 + 1 = 9
	if m.ReviewCommentCount != 9 {
		t.Errorf("expected review friction 9, got %d", m.ReviewCommentCount)
	}
	if m.PRChangeRequestCount != 1 || m.PRReviewCommentCount != 5 || m.PRDiscussionCommentCount != 2 {
		t.Errorf("unexpected PR breakdown: %+v", m)
	}
}

func TestComputeMetricsCommitsOnly(t *testing.T) {
	commits := []gateway.Commit{
		{SHA: "abc", Additions: 400, Deletions: 100, ChangedFiles: 12},
		{SHA: "def", Additions: 150, Deletions: 50, ChangedFiles: 3},
	}

	m := ComputeMetrics(nil, commits)
	if m.PRCount != 0 || m.DirectCommitCount != 2 {
		t.Errorf("unexpected counts: %+v", m)
	}
	if m.DirectCommitChangeVolume != 700 {
		t.Errorf("expected direct volume 700, got %d", m.DirectCommitChangeVolume)
	}
	if m.ChangeVolume != 700 || m.TotalAdditions != 550 || m.TotalDeletions != 150 {
		t.Errorf("expected shared totals populated from commits, got %+v", m)
	}
	if m.FilesTouched != 15 {
		t.Errorf("expected 15 files touched from commits, got %d", m.FilesTouched)
	}
}

func TestCommitOnlyFileScopeScores(t *testing.T) {
	commits := []gateway.Commit{
		{SHA: "abc", Additions: 900, Deletions: 300, ChangedFiles: 30},
	}

	m := ComputeMetrics(nil, commits)
	if m.FilesTouched != 30 {
		t.Fatalf("expected 30 files touched, got %d", m.FilesTouched)
	}
	// change set 15, file scope 20, churn 20, review 0
	if got := CalculateRiskScore(m); got != 55 {
		t.Errorf("expected score 55, got %v", got)
	}

	drivers := IdentifyDrivers(m)
	found := false
	for _, d := range drivers {
		if strings.Contains(d, "Wide blast radius") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected wide-blast-radius driver for 30 commit files, got %v", drivers)
	}
}

func TestCalculateRiskScoreExample(t *testing.T) {
	m := database.RiskMetrics{
		PRCount:            2,
		FilesTouched:       30,
		ChangeVolume:       1200,
		ReviewCommentCount: 26,
	}
	// Sub-scores (30, 20, 20, 20) -> 90.
	if got := CalculateRiskScore(m); got != 90 {
		t.Errorf("expected score 90, got %v", got)
	}
	if ScoreToLevel(90) != database.RiskHigh {
		t.Error("expected high level at 90")
	}
}

func TestCalculateRiskScoreBounds(t *testing.T) {
	if got := CalculateRiskScore(database.RiskMetrics{}); got != 0 {
		t.Errorf("expected 0 for empty metrics, got %v", got)
	}

	huge := database.RiskMetrics{
		PRCount:            50,
		DirectCommitCount:  50,
		FilesTouched:       10000,
		ChangeVolume:       100000,
		ReviewCommentCount: 1000,
	}
	if got := CalculateRiskScore(huge); got != 100 {
		t.Errorf("expected clamp at 100, got %v", got)
	}
}

func TestCalculateRiskScoreMonotonic(t *testing.T) {
	base := database.RiskMetrics{PRCount: 1, FilesTouched: 10, ChangeVolume: 400, ReviewCommentCount: 5}
	baseScore := CalculateRiskScore(base)

	bumps := []database.RiskMetrics{
		{PRCount: 2, FilesTouched: 10, ChangeVolume: 400, ReviewCommentCount: 5},
		{PRCount: 1, FilesTouched: 20, ChangeVolume: 400, ReviewCommentCount: 5},
		{PRCount: 1, FilesTouched: 10, ChangeVolume: 800, ReviewCommentCount: 5},
		{PRCount: 1, FilesTouched: 10, ChangeVolume: 400, ReviewCommentCount: 15},
	}
	for i, m := range bumps {
		if got := CalculateRiskScore(m); got < baseScore {
			t.Errorf("bump %d: score decreased from %v to %v", i, baseScore, got)
		}
	}
}

func TestScoreToLevelThresholds(t *testing.T) {
	cases := []struct {
		score float64
		want  database.RiskLevel
	}{
		{0, database.RiskLow},
		{39, database.RiskLow},
		{40, database.RiskMedium},
		{69, database.RiskMedium},
		{70, database.RiskHigh},
		{100, database.RiskHigh},
	}
	for _, c := range cases {
		if got := ScoreToLevel(c.score); got != c.want {
			t.Errorf("score %v: expected %s, got %s", c.score, c.want, got)
		}
	}
}

func TestIdentifyDriversOrderAndCap(t *testing.T) {
	m := database.RiskMetrics{
		PRCount:            3,
		FilesTouched:       40,
		ChangeVolume:       2500,
		ReviewCommentCount: 22,
	}
	drivers := IdentifyDrivers(m)
	if len(drivers) != 4 {
		t.Fatalf("expected 4 drivers, got %d: %v", len(drivers), drivers)
	}
	// Fixed priority order: PR count, files, volume, review friction.
	checks := []string{"pull requests", "files touched", "lines changed", "review-friction"}
	for i, want := range checks {
		if !strings.Contains(drivers[i], want) {
			t.Errorf("driver %d: expected to mention %q, got %q", i, want, drivers[i])
		}
	}
}

func TestIdentifyDriversDirectCommits(t *testing.T) {
	m := database.RiskMetrics{
		DirectCommitCount:        2,
		DirectCommitChangeVolume: 800,
		ChangeVolume:             800,
	}
	drivers := IdentifyDrivers(m)
	if len(drivers) != 2 {
		t.Fatalf("expected 2 drivers, got %v", drivers)
	}
	if !strings.Contains(drivers[0], "direct commits") {
		t.Errorf("expected direct-commit driver first, got %q", drivers[0])
	}
	if !strings.Contains(drivers[1], "unreviewed lines") {
		t.Errorf("expected unreviewed-lines driver second, got %q", drivers[1])
	}
}

func TestIdentifyDriversNone(t *testing.T) {
	m := database.RiskMetrics{PRCount: 1, FilesTouched: 3, ChangeVolume: 50}
	if drivers := IdentifyDrivers(m); len(drivers) != 0 {
		t.Errorf("expected no drivers for a small single-PR change, got %v", drivers)
	}
}
