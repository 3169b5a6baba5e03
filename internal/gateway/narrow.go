package gateway

import (
	"time"

	"github.com/google/go-github/v62/github"
)

// Stubbed in tests.
var timeNow = time.Now

// narrowPullRequest validates and converts an API pull request. Entries
// without a number are malformed and dropped.
func narrowPullRequest(pr *github.PullRequest) (PullRequest, bool) {
	if pr == nil || pr.GetNumber() == 0 {
		return PullRequest{}, false
	}
	return PullRequest{
		Number:             pr.GetNumber(),
		Title:              pr.GetTitle(),
		URL:                pr.GetHTMLURL(),
		State:              pr.GetState(),
		UpdatedAt:          pr.GetUpdatedAt().Time,
		Additions:          pr.GetAdditions(),
		Deletions:          pr.GetDeletions(),
		ChangedFiles:       pr.GetChangedFiles(),
		ReviewComments:     pr.GetReviewComments(),
		DiscussionComments: pr.GetComments(),
	}, true
}

// narrowCommit validates and converts an API commit.
func narrowCommit(rc *github.RepositoryCommit) (Commit, bool) {
	if rc == nil || rc.GetSHA() == "" {
		return Commit{}, false
	}
	c := Commit{
		SHA: rc.GetSHA(),
		URL: rc.GetHTMLURL(),
	}
	if inner := rc.GetCommit(); inner != nil {
		c.Message = inner.GetMessage()
		c.Date = inner.GetCommitter().GetDate().Time
	}
	if stats := rc.GetStats(); stats != nil {
		c.Additions = stats.GetAdditions()
		c.Deletions = stats.GetDeletions()
	}
	for _, f := range rc.Files {
		if f.GetFilename() != "" {
			c.ChangedFiles++
		}
	}
	return c, true
}

// narrowIssue converts an API issue, without its comments.
func narrowIssue(issue *github.Issue) *IssueDetail {
	d := &IssueDetail{
		Number:    issue.GetNumber(),
		Title:     issue.GetTitle(),
		Body:      issue.GetBody(),
		State:     issue.GetState(),
		UpdatedAt: issue.GetUpdatedAt().Time,
	}
	for _, l := range issue.Labels {
		if l.GetName() != "" {
			d.Labels = append(d.Labels, l.GetName())
		}
	}
	return d
}

// narrowCommitFiles converts a file diff listing, dropping pathless entries
// and capping at 50 files.
func narrowCommitFiles(files []*github.CommitFile) []FileDelta {
	var deltas []FileDelta
	for _, f := range files {
		if f.GetFilename() == "" {
			continue
		}
		deltas = append(deltas, FileDelta{
			Path:      f.GetFilename(),
			Additions: f.GetAdditions(),
			Deletions: f.GetDeletions(),
		})
		if len(deltas) >= maxFilesPerDiff {
			break
		}
	}
	return deltas
}
