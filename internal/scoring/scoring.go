// Package scoring converts aggregated change metrics into a risk score,
// level, and human-readable drivers. All functions are pure.
package scoring

import (
	"fmt"

	"github.com/riskradar/riskradar/internal/database"
	"github.com/riskradar/riskradar/internal/gateway"
)

// Sub-score caps. The four sub-scores sum to at most 100.
const (
	changeSetCap      = 40
	fileScopeCap      = 20
	churnCap          = 20
	reviewFrictionCap = 20
)

// ComputeMetrics folds linked pull requests and direct commits into one
// metrics record. Pull requests take precedence as the unit of change: when
// any PR exists, commit data is ignored and the direct-commit breakdown
// stays zero.
func ComputeMetrics(pullRequests []gateway.PullRequest, commits []gateway.Commit) database.RiskMetrics {
	var m database.RiskMetrics

	if len(pullRequests) > 0 {
		m.PRCount = len(pullRequests)
		for _, pr := range pullRequests {
			m.FilesTouched += pr.ChangedFiles
			m.TotalAdditions += pr.Additions
			m.TotalDeletions += pr.Deletions
			m.PRReviewCommentCount += pr.ReviewComments
			m.PRDiscussionCommentCount += pr.DiscussionComments
			m.PRChangeRequestCount += pr.ChangeRequests
			m.ReviewCommentCount += pr.ReviewComments + pr.DiscussionComments + 2*pr.ChangeRequests
		}
		m.ChangeVolume = m.TotalAdditions + m.TotalDeletions
		return m
	}

	m.DirectCommitCount = len(commits)
	for _, c := range commits {
		m.FilesTouched += c.ChangedFiles
		m.DirectCommitAdditions += c.Additions
		m.DirectCommitDeletions += c.Deletions
	}
	m.DirectCommitChangeVolume = m.DirectCommitAdditions + m.DirectCommitDeletions
	m.TotalAdditions = m.DirectCommitAdditions
	m.TotalDeletions = m.DirectCommitDeletions
	m.ChangeVolume = m.DirectCommitChangeVolume
	return m
}

// CalculateRiskScore sums four independently capped sub-scores, clamped to
// [0, 100]. Monotonically non-decreasing in each input.
func CalculateRiskScore(m database.RiskMetrics) float64 {
	changeSet := min(changeSetCap, 15*(m.PRCount+m.DirectCommitCount))
	fileScope := min(fileScopeCap, 5*(m.FilesTouched/5))
	churn := min(churnCap, 5*(m.ChangeVolume/200))
	review := min(reviewFrictionCap, 5*(m.ReviewCommentCount/5))

	score := changeSet + fileScope + churn + review
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return float64(score)
}

// ScoreToLevel maps a score to its risk level: high at 70+, medium at 40+.
func ScoreToLevel(score float64) database.RiskLevel {
	switch {
	case score >= 70:
		return database.RiskHigh
	case score >= 40:
		return database.RiskMedium
	default:
		return database.RiskLow
	}
}

// IdentifyDrivers produces ordered natural-language explanations for the
// elevated parts of a metrics record, at most five, in fixed priority order.
func IdentifyDrivers(m database.RiskMetrics) []string {
	var drivers []string

	if m.PRCount >= 2 {
		drivers = append(drivers, fmt.Sprintf("Took %d pull requests to resolve", m.PRCount))
	}
	if m.PRCount == 0 && m.DirectCommitCount > 0 {
		drivers = append(drivers, fmt.Sprintf("Changed via %d direct %s with no pull request review",
			m.DirectCommitCount, pluralize(m.DirectCommitCount, "commit", "commits")))
	}
	if m.FilesTouched >= 25 {
		drivers = append(drivers, fmt.Sprintf("Wide blast radius: %d files touched", m.FilesTouched))
	}
	if m.ChangeVolume >= 1000 {
		drivers = append(drivers, fmt.Sprintf("Large change volume: %d lines changed", m.ChangeVolume))
	}
	if m.ReviewCommentCount >= 15 {
		drivers = append(drivers, fmt.Sprintf("Contentious review: %d review-friction signals", m.ReviewCommentCount))
	}
	if m.PRCount == 0 && m.DirectCommitChangeVolume >= 600 {
		drivers = append(drivers, fmt.Sprintf("%d unreviewed lines changed directly on the default branch",
			m.DirectCommitChangeVolume))
	}

	if len(drivers) > 5 {
		drivers = drivers[:5]
	}
	return drivers
}

func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}
