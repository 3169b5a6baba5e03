package hydrator

import (
	"time"

	"github.com/riskradar/riskradar/internal/database"
	"github.com/riskradar/riskradar/internal/gateway"
)

// Open-issue profiles expire after this long; closed issues cannot change
// again, so they never expire by time alone.
const cacheTTL = 6 * time.Hour

// isStale decides whether a stored profile needs recomputation for the
// current configuration and issue state.
func isStale(p *database.RiskProfile, issue gateway.IssueSummary, lookbackDays int, labelFilters []string, now time.Time) bool {
	if p.LookbackDays != lookbackDays {
		return true
	}
	if !sameFilters(p.LabelFilters, labelFilters) {
		return true
	}

	calculatedAt, err := time.Parse(time.RFC3339, p.CalculatedAt)
	if err != nil {
		return true
	}
	if issue.UpdatedAt.After(calculatedAt) {
		return true
	}
	if issue.State == "closed" {
		return false
	}
	return now.Sub(calculatedAt) >= cacheTTL
}

func sameFilters(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
