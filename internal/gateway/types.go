package gateway

import "time"

// PullRequest is the narrowed shape of a linked pull request. Only fields the
// scoring and aggregation logic consume survive the API boundary.
type PullRequest struct {
	Number             int
	Title              string
	URL                string
	State              string
	UpdatedAt          time.Time
	Additions          int
	Deletions          int
	ChangedFiles       int
	ReviewComments     int
	DiscussionComments int
	ChangeRequests     int
}

// Commit is the narrowed shape of a directly referenced commit.
type Commit struct {
	SHA          string
	Message      string
	URL          string
	Date         time.Time
	Additions    int
	Deletions    int
	ChangedFiles int
}

// FileDelta is one file's diff statistics within a PR or commit.
type FileDelta struct {
	Path      string
	Additions int
	Deletions int
}

// RiskSnapshot is the change history linked to one issue.
type RiskSnapshot struct {
	PullRequests []PullRequest
	Commits      []Commit
}

// IssueComment is one comment on an issue.
type IssueComment struct {
	ID   int64
	Body string
}

// IssueDetail is the narrowed shape of a fetched issue.
type IssueDetail struct {
	Number    int
	Title     string
	Body      string
	State     string
	Labels    []string
	UpdatedAt time.Time
	Comments  []IssueComment
}

// IssueSummary is the lightweight listing shape used to prime hydration.
type IssueSummary struct {
	Number    int
	Title     string
	State     string
	Labels    []string
	UpdatedAt time.Time
}
