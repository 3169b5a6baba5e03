package hydrator

import "github.com/riskradar/riskradar/internal/database"

// Status is the lifecycle state of an issue's hydration.
type Status string

const (
	StatusPending Status = "pending"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
	StatusSkipped Status = "skipped"
)

// MetricsBrief is the metrics subset surfaced on summaries.
type MetricsBrief struct {
	PRCount            int
	DirectCommitCount  int
	FilesTouched       int
	ChangeVolume       int
	ReviewCommentCount int
}

// Summary is the projection of an issue's risk state surfaced to consumers.
// Replaced in place as the hydration task progresses; a pending summary is
// advisory, not authoritative.
type Summary struct {
	Status  Status
	Message string

	RiskLevel  database.RiskLevel
	RiskScore  float64
	TopDrivers []string // at most 3
	Metrics    MetricsBrief
	Keywords   []string
	Stale      bool
}

// Task is one queued hydration request, deduplicated by (repository, issue).
// It snapshots the configuration it was enqueued under.
type Task struct {
	Repository   string
	IssueNumber  int
	LookbackDays int
	LabelFilters []string
	Force        bool
}

// Update is one event on the scheduler's stream, emitted for every status
// transition.
type Update struct {
	Repository  string
	IssueNumber int
	Summary     Summary
	Profile     *database.RiskProfile
}

func summaryFromProfile(p *database.RiskProfile, stale bool) Summary {
	s := Summary{
		Status:    StatusReady,
		RiskLevel: p.RiskLevel,
		RiskScore: p.RiskScore,
		Metrics: MetricsBrief{
			PRCount:            p.Metrics.PRCount,
			DirectCommitCount:  p.Metrics.DirectCommitCount,
			FilesTouched:       p.Metrics.FilesTouched,
			ChangeVolume:       p.Metrics.ChangeVolume,
			ReviewCommentCount: p.Metrics.ReviewCommentCount,
		},
		Keywords: p.Keywords,
		Stale:    stale,
	}
	if len(p.Drivers) > 3 {
		s.TopDrivers = p.Drivers[:3]
	} else {
		s.TopDrivers = p.Drivers
	}
	return s
}
