// Package gateway is the boundary to the GitHub REST API. Responses are
// narrowed into explicit local shapes before they reach scoring or
// aggregation; nothing downstream sees a go-github struct.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
)

// Linked PRs and commits are bounded per snapshot; file listings per source.
const (
	maxLinkedSources = 3
	maxFilesPerDiff  = 50
	pageSize         = 100
)

// Client defines the remote operations the hydrator depends on.
type Client interface {
	IssueRiskSnapshot(ctx context.Context, repo string, issueNumber int) (*RiskSnapshot, error)
	IssueDetails(ctx context.Context, repo string, issueNumber int) (*IssueDetail, error)
	ListRecentIssues(ctx context.Context, repo string, lookbackDays int) ([]IssueSummary, error)
	PullRequestFiles(ctx context.Context, repo string, number int) ([]FileDelta, error)
	CommitFiles(ctx context.Context, repo string, sha string) ([]FileDelta, error)
	UpsertIssueComment(ctx context.Context, repo string, issueNumber int, body string, commentID int64) (int64, error)
}

// GitHubGateway is the concrete Client backed by the GitHub REST API.
type GitHubGateway struct {
	client *github.Client
}

// New creates a gateway with a rate-limit-aware HTTP client. An empty token
// yields an unauthenticated client, usable against public repositories.
func New(token string) (*GitHubGateway, error) {
	waiter, err := github_ratelimit.NewRateLimitWaiter(nil)
	if err != nil {
		return nil, fmt.Errorf("creating rate limit waiter: %w", err)
	}

	httpClient := &http.Client{Transport: waiter}
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = &http.Client{
			Transport: &oauth2.Transport{Base: waiter, Source: ts},
		}
	}

	return &GitHubGateway{client: github.NewClient(httpClient)}, nil
}

// splitRepo breaks an "owner/name" slug into its parts.
func splitRepo(repo string) (string, string, error) {
	parts := strings.Split(strings.TrimSpace(repo), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository slug %q, want owner/name", repo)
	}
	return parts[0], parts[1], nil
}

// IssueRiskSnapshot walks the issue timeline and returns the most recent
// linked pull requests and referenced commits, newest first, capped at 3 each.
func (g *GitHubGateway) IssueRiskSnapshot(ctx context.Context, repo string, issueNumber int) (*RiskSnapshot, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	var prNumbers []int
	var commitSHAs []string
	seenPR := make(map[int]bool)
	seenSHA := make(map[string]bool)

	opts := &github.ListOptions{PerPage: pageSize}
	for {
		events, resp, err := g.client.Issues.ListIssueTimeline(ctx, owner, name, issueNumber, opts)
		if err != nil {
			return nil, fmt.Errorf("listing timeline for %s#%d: %w", repo, issueNumber, err)
		}
		for _, ev := range events {
			switch ev.GetEvent() {
			case "cross-referenced":
				src := ev.GetSource().GetIssue()
				if src == nil || !src.IsPullRequest() {
					continue
				}
				n := src.GetNumber()
				if n > 0 && !seenPR[n] {
					seenPR[n] = true
					prNumbers = append(prNumbers, n)
				}
			case "referenced":
				sha := ev.GetCommitID()
				if sha != "" && !seenSHA[sha] {
					seenSHA[sha] = true
					commitSHAs = append(commitSHAs, sha)
				}
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	snapshot := &RiskSnapshot{}
	for _, n := range prNumbers {
		pr, _, err := g.client.PullRequests.Get(ctx, owner, name, n)
		if err != nil {
			return nil, fmt.Errorf("fetching PR %s#%d: %w", repo, n, err)
		}
		narrowed, ok := narrowPullRequest(pr)
		if !ok {
			continue
		}
		narrowed.ChangeRequests, err = g.countChangeRequests(ctx, owner, name, n)
		if err != nil {
			return nil, fmt.Errorf("listing reviews for PR %s#%d: %w", repo, n, err)
		}
		snapshot.PullRequests = append(snapshot.PullRequests, narrowed)
	}
	sort.Slice(snapshot.PullRequests, func(i, j int) bool {
		return snapshot.PullRequests[i].UpdatedAt.After(snapshot.PullRequests[j].UpdatedAt)
	})
	if len(snapshot.PullRequests) > maxLinkedSources {
		snapshot.PullRequests = snapshot.PullRequests[:maxLinkedSources]
	}

	// Pull requests take precedence as the unit of change; commits only
	// matter when no PR is linked.
	if len(snapshot.PullRequests) == 0 {
		for _, sha := range commitSHAs {
			commit, _, err := g.client.Repositories.GetCommit(ctx, owner, name, sha, nil)
			if err != nil {
				return nil, fmt.Errorf("fetching commit %s@%s: %w", repo, sha, err)
			}
			if narrowed, ok := narrowCommit(commit); ok {
				snapshot.Commits = append(snapshot.Commits, narrowed)
			}
		}
		sort.Slice(snapshot.Commits, func(i, j int) bool {
			return snapshot.Commits[i].Date.After(snapshot.Commits[j].Date)
		})
		if len(snapshot.Commits) > maxLinkedSources {
			snapshot.Commits = snapshot.Commits[:maxLinkedSources]
		}
	}

	return snapshot, nil
}

func (g *GitHubGateway) countChangeRequests(ctx context.Context, owner, name string, number int) (int, error) {
	count := 0
	opts := &github.ListOptions{PerPage: pageSize}
	for {
		reviews, resp, err := g.client.PullRequests.ListReviews(ctx, owner, name, number, opts)
		if err != nil {
			return 0, err
		}
		for _, r := range reviews {
			if r.GetState() == "CHANGES_REQUESTED" {
				count++
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return count, nil
}

// IssueDetails fetches an issue with all of its comments.
func (g *GitHubGateway) IssueDetails(ctx context.Context, repo string, issueNumber int) (*IssueDetail, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	issue, _, err := g.client.Issues.Get(ctx, owner, name, issueNumber)
	if err != nil {
		return nil, fmt.Errorf("fetching issue %s#%d: %w", repo, issueNumber, err)
	}
	detail := narrowIssue(issue)

	opts := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: pageSize}}
	for {
		comments, resp, err := g.client.Issues.ListComments(ctx, owner, name, issueNumber, opts)
		if err != nil {
			return nil, fmt.Errorf("listing comments for %s#%d: %w", repo, issueNumber, err)
		}
		for _, c := range comments {
			if c.GetID() == 0 {
				continue
			}
			detail.Comments = append(detail.Comments, IssueComment{ID: c.GetID(), Body: c.GetBody()})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return detail, nil
}

// ListRecentIssues lists issues updated within the lookback window, skipping
// pull requests (the issues API returns both).
func (g *GitHubGateway) ListRecentIssues(ctx context.Context, repo string, lookbackDays int) ([]IssueSummary, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	since := timeNow().AddDate(0, 0, -lookbackDays)
	opts := &github.IssueListByRepoOptions{
		State:       "all",
		Since:       since,
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: pageSize},
	}

	var summaries []IssueSummary
	for {
		issues, resp, err := g.client.Issues.ListByRepo(ctx, owner, name, opts)
		if err != nil {
			return nil, fmt.Errorf("listing issues for %s: %w", repo, err)
		}
		for _, issue := range issues {
			if issue.IsPullRequest() || issue.GetNumber() == 0 {
				continue
			}
			labels := make([]string, 0, len(issue.Labels))
			for _, l := range issue.Labels {
				if l.GetName() != "" {
					labels = append(labels, l.GetName())
				}
			}
			summaries = append(summaries, IssueSummary{
				Number:    issue.GetNumber(),
				Title:     issue.GetTitle(),
				State:     issue.GetState(),
				Labels:    labels,
				UpdatedAt: issue.GetUpdatedAt().Time,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return summaries, nil
}

// PullRequestFiles fetches the file-level diff listing for one pull request,
// capped at 50 files.
func (g *GitHubGateway) PullRequestFiles(ctx context.Context, repo string, number int) ([]FileDelta, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	files, _, err := g.client.PullRequests.ListFiles(ctx, owner, name, number,
		&github.ListOptions{PerPage: maxFilesPerDiff})
	if err != nil {
		return nil, fmt.Errorf("listing files for PR %s#%d: %w", repo, number, err)
	}
	return narrowCommitFiles(files), nil
}

// CommitFiles fetches the file-level diff listing for one commit, capped at
// 50 files.
func (g *GitHubGateway) CommitFiles(ctx context.Context, repo string, sha string) ([]FileDelta, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	commit, _, err := g.client.Repositories.GetCommit(ctx, owner, name, sha,
		&github.ListOptions{PerPage: maxFilesPerDiff})
	if err != nil {
		return nil, fmt.Errorf("fetching commit files %s@%s: %w", repo, sha, err)
	}
	return narrowCommitFiles(commit.Files), nil
}

// UpsertIssueComment updates the comment with the given ID, or creates a new
// comment when the ID is zero. Returns the comment's ID.
func (g *GitHubGateway) UpsertIssueComment(ctx context.Context, repo string, issueNumber int, body string, commentID int64) (int64, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return 0, err
	}

	if commentID > 0 {
		c, _, err := g.client.Issues.EditComment(ctx, owner, name, commentID,
			&github.IssueComment{Body: &body})
		if err != nil {
			return 0, fmt.Errorf("editing comment %d on %s#%d: %w", commentID, repo, issueNumber, err)
		}
		return c.GetID(), nil
	}

	c, _, err := g.client.Issues.CreateComment(ctx, owner, name, issueNumber,
		&github.IssueComment{Body: &body})
	if err != nil {
		return 0, fmt.Errorf("creating comment on %s#%d: %w", repo, issueNumber, err)
	}
	return c.GetID(), nil
}
