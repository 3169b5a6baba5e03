package hydrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/riskradar/riskradar/internal/comment"
	"github.com/riskradar/riskradar/internal/database"
	"github.com/riskradar/riskradar/internal/gateway"
)

// RehydrateFromComments rebuilds the local store from comments the engine
// previously published. No scores are recomputed and no comments are written:
// each recovered profile is exactly what its comment encodes. Issues without
// a parseable engine comment are left alone. Returns the number of profiles
// recovered.
func (s *Scheduler) RehydrateFromComments(ctx context.Context, repo string) (int, error) {
	repo = database.NormalizeRepo(repo)

	issues, err := s.client.ListRecentIssues(ctx, repo, s.opts.LookbackDays)
	if err != nil {
		return 0, fmt.Errorf("listing issues for %s: %w", repo, err)
	}

	recovered := 0
	for _, issue := range issues {
		detail, err := s.client.IssueDetails(ctx, repo, issue.Number)
		if err != nil {
			log.Printf("rehydrate: skipping %s#%d: %v", repo, issue.Number, err)
			continue
		}
		found, parsed := comment.Find(detail.Comments)
		if parsed == nil {
			continue
		}

		profile := profileFromParsed(repo, detail, parsed, s.opts.LookbackDays, s.opts.LabelFilters)
		profile.CommentID = found.ID
		if err := s.store.SaveProfile(profile); err != nil {
			log.Printf("rehydrate: saving %s#%d failed: %v", repo, issue.Number, err)
			continue
		}
		s.setSummary(repo, issue.Number, summaryFromProfile(profile, false), profile)
		recovered++
	}

	s.sink.Event("rehydrate.completed",
		map[string]string{"repository": repo},
		map[string]float64{"recovered": float64(recovered), "issues": float64(len(issues))})
	return recovered, nil
}

// profileFromParsed maps a parsed comment back into a stored profile. The
// comment does not carry the file-level breakdown or a change summary, so
// those stay empty until the next full hydration.
func profileFromParsed(repo string, detail *gateway.IssueDetail, parsed *comment.Parsed, lookbackDays int, labelFilters []string) *database.RiskProfile {
	calculatedAt := parsed.LastUpdated
	if calculatedAt == "" {
		calculatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	if parsed.LookbackDays > 0 {
		lookbackDays = parsed.LookbackDays
	}
	return &database.RiskProfile{
		Repository:  repo,
		IssueNumber: detail.Number,
		RiskLevel:   parsed.Level,
		RiskScore:   parsed.Score,
		Metrics: database.RiskMetrics{
			PRCount:            parsed.PRCount,
			DirectCommitCount:  parsed.DirectCommitCount,
			FilesTouched:       parsed.FilesTouched,
			ChangeVolume:       parsed.ChangeVolume,
			ReviewCommentCount: parsed.ReviewCommentCount,
		},
		Evidence:     parsed.Evidence,
		Drivers:      parsed.Drivers,
		LookbackDays: lookbackDays,
		LabelFilters: labelFilters,
		CalculatedAt: calculatedAt,
		Keywords:     parsed.Keywords,
		IssueTitle:   detail.Title,
		IssueLabels:  detail.Labels,
		IssueState:   detail.State,
	}
}
