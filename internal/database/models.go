package database

// RiskLevel classifies a computed risk score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RiskMetrics holds the aggregated change statistics a profile is scored from.
// When an issue has linked pull requests, only pull-request data populates the
// shared totals and the direct-commit breakdown stays zero.
type RiskMetrics struct {
	PRCount            int `json:"pr_count"`
	DirectCommitCount  int `json:"direct_commit_count"`
	FilesTouched       int `json:"files_touched"`
	TotalAdditions     int `json:"total_additions"`
	TotalDeletions     int `json:"total_deletions"`
	ChangeVolume       int `json:"change_volume"`
	ReviewCommentCount int `json:"review_comment_count"`

	PRReviewCommentCount     int `json:"pr_review_comment_count"`
	PRDiscussionCommentCount int `json:"pr_discussion_comment_count"`
	PRChangeRequestCount     int `json:"pr_change_request_count"`

	DirectCommitAdditions    int `json:"direct_commit_additions"`
	DirectCommitDeletions    int `json:"direct_commit_deletions"`
	DirectCommitChangeVolume int `json:"direct_commit_change_volume"`
}

// Evidence references a pull request or commit that contributed to a profile.
type Evidence struct {
	Label    string `json:"label"`
	Detail   string `json:"detail,omitempty"`
	URL      string `json:"url,omitempty"`
	PRNumber int    `json:"pr_number,omitempty"`
}

// FileChange is one entry in a profile's ranked file-change listing.
type FileChange struct {
	Path         string   `json:"path"`
	Additions    int      `json:"additions"`
	Deletions    int      `json:"deletions"`
	ChangeVolume int      `json:"change_volume"`
	References   []string `json:"references,omitempty"`
}

// RiskProfile is the computed risk record for one issue. Exactly one profile
// exists per (repository, issue number).
type RiskProfile struct {
	Repository  string      `json:"repository"`
	IssueNumber int         `json:"issue_number"`
	RiskLevel   RiskLevel   `json:"risk_level"`
	RiskScore   float64     `json:"risk_score"`
	Metrics     RiskMetrics `json:"metrics"`

	Evidence []Evidence `json:"evidence,omitempty"`
	Drivers  []string   `json:"drivers,omitempty"`

	// Configuration snapshot the profile was computed under.
	LookbackDays int      `json:"lookback_days"`
	LabelFilters []string `json:"label_filters,omitempty"`

	CalculatedAt string   `json:"calculated_at"`
	Keywords     []string `json:"keywords,omitempty"`

	// Denormalized issue fields for search.
	IssueTitle   string   `json:"issue_title,omitempty"`
	IssueSummary string   `json:"issue_summary,omitempty"`
	IssueLabels  []string `json:"issue_labels,omitempty"`
	IssueState   string   `json:"issue_state,omitempty"`

	ChangeSummary string       `json:"change_summary,omitempty"`
	FileChanges   []FileChange `json:"file_changes,omitempty"`

	// Identifier of the mirrored remote comment, 0 if never published.
	CommentID int64 `json:"comment_id,omitempty"`
}

// KeywordCoverage summarizes how many stored profiles carry keywords.
type KeywordCoverage struct {
	Total        int
	WithKeywords int
	CoveragePct  float64
}

// ProfileKey identifies one profile for batch reads.
type ProfileKey struct {
	Repository  string
	IssueNumber int
}
