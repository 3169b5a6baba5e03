package hydrator

import (
	"testing"
	"time"

	"github.com/riskradar/riskradar/internal/database"
	"github.com/riskradar/riskradar/internal/gateway"
)

func freshProfile(calculatedAt time.Time) *database.RiskProfile {
	return &database.RiskProfile{
		Repository:   "acme/shop",
		IssueNumber:  42,
		LookbackDays: 180,
		LabelFilters: []string{"bug"},
		CalculatedAt: calculatedAt.UTC().Format(time.RFC3339),
	}
}

func TestIsStaleLookbackDrift(t *testing.T) {
	now := time.Now()
	p := freshProfile(now.Add(-time.Minute))
	issue := gateway.IssueSummary{State: "open", UpdatedAt: now.Add(-time.Hour)}

	if isStale(p, issue, 180, []string{"bug"}, now) {
		t.Error("matching configuration should not be stale")
	}
	if !isStale(p, issue, 90, []string{"bug"}, now) {
		t.Error("changed lookback window must invalidate the profile")
	}
	if !isStale(p, issue, 180, []string{"regression"}, now) {
		t.Error("changed label filters must invalidate the profile")
	}
}

func TestIsStaleUnparsableTimestamp(t *testing.T) {
	now := time.Now()
	p := freshProfile(now)
	p.CalculatedAt = "yesterday-ish"
	issue := gateway.IssueSummary{State: "closed", UpdatedAt: now.Add(-48 * time.Hour)}

	if !isStale(p, issue, 180, []string{"bug"}, now) {
		t.Error("unparsable calculated_at must count as stale")
	}
}

func TestIsStaleIssueUpdatedAfterCalculation(t *testing.T) {
	now := time.Now()
	p := freshProfile(now.Add(-2 * time.Hour))
	issue := gateway.IssueSummary{State: "closed", UpdatedAt: now.Add(-time.Hour)}

	if !isStale(p, issue, 180, []string{"bug"}, now) {
		t.Error("issue activity after calculation must invalidate the profile")
	}
}

func TestIsStaleClosedIssueNeverAges(t *testing.T) {
	now := time.Now()
	p := freshProfile(now.Add(-90 * 24 * time.Hour))
	issue := gateway.IssueSummary{State: "closed", UpdatedAt: now.Add(-180 * 24 * time.Hour)}

	if isStale(p, issue, 180, []string{"bug"}, now) {
		t.Error("closed issues do not expire by age")
	}
}

func TestIsStaleOpenIssueTTL(t *testing.T) {
	now := time.Now()
	issue := gateway.IssueSummary{State: "open", UpdatedAt: now.Add(-30 * 24 * time.Hour)}

	if isStale(freshProfile(now.Add(-time.Hour)), issue, 180, []string{"bug"}, now) {
		t.Error("one-hour-old profile on an open issue should still be fresh")
	}
	if !isStale(freshProfile(now.Add(-7*time.Hour)), issue, 180, []string{"bug"}, now) {
		t.Error("seven-hour-old profile on an open issue should be stale")
	}
}
