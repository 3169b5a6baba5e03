package gateway

import (
	"testing"
	"time"

	"github.com/google/go-github/v62/github"
)

func intp(i int) *int       { return &i }
func strp(s string) *string { return &s }

func TestSplitRepo(t *testing.T) {
	owner, name, err := splitRepo("acme/widgets")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if owner != "acme" || name != "widgets" {
		t.Errorf("got %q/%q", owner, name)
	}

	for _, bad := range []string{"", "acme", "acme/", "/widgets", "a/b/c"} {
		if _, _, err := splitRepo(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestNarrowPullRequest(t *testing.T) {
	updated := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	pr := &github.PullRequest{
		Number:         intp(12),
		Title:          strp("Fix checkout race"),
		HTMLURL:        strp("https://github.com/acme/widgets/pull/12"),
		State:          strp("closed"),
		UpdatedAt:      &github.Timestamp{Time: updated},
		Additions:      intp(100),
		Deletions:      intp(40),
		ChangedFiles:   intp(7),
		ReviewComments: intp(5),
		Comments:       intp(3),
	}

	got, ok := narrowPullRequest(pr)
	if !ok {
		t.Fatal("expected narrowing to succeed")
	}
	if got.Number != 12 || got.Additions != 100 || got.Deletions != 40 {
		t.Errorf("unexpected narrowing: %+v", got)
	}
	if got.ReviewComments != 5 || got.DiscussionComments != 3 {
		t.Errorf("review fields wrong: %+v", got)
	}
	if !got.UpdatedAt.Equal(updated) {
		t.Errorf("expected updated %v, got %v", updated, got.UpdatedAt)
	}
}

func TestNarrowPullRequestMalformed(t *testing.T) {
	if _, ok := narrowPullRequest(nil); ok {
		t.Error("expected nil PR to be dropped")
	}
	if _, ok := narrowPullRequest(&github.PullRequest{}); ok {
		t.Error("expected numberless PR to be dropped")
	}
}

func TestNarrowCommit(t *testing.T) {
	date := time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)
	rc := &github.RepositoryCommit{
		SHA:     strp("abc1234"),
		HTMLURL: strp("https://github.com/acme/widgets/commit/abc1234"),
		Commit: &github.Commit{
			Message:   strp("Hotfix ledger rounding"),
			Committer: &github.CommitAuthor{Date: &github.Timestamp{Time: date}},
		},
		Stats: &github.CommitStats{Additions: intp(20), Deletions: intp(4)},
		Files: []*github.CommitFile{
			{Filename: strp("ledger/rounding.go"), Additions: intp(18), Deletions: intp(4)},
			{Filename: strp("ledger/rounding_test.go"), Additions: intp(2)},
			{},
		},
	}

	got, ok := narrowCommit(rc)
	if !ok {
		t.Fatal("expected narrowing to succeed")
	}
	if got.SHA != "abc1234" || got.Additions != 20 || got.Deletions != 4 {
		t.Errorf("unexpected narrowing: %+v", got)
	}
	if got.ChangedFiles != 2 {
		t.Errorf("expected 2 changed files (pathless entry dropped), got %d", got.ChangedFiles)
	}
	if !got.Date.Equal(date) {
		t.Errorf("expected date %v, got %v", date, got.Date)
	}

	if _, ok := narrowCommit(&github.RepositoryCommit{}); ok {
		t.Error("expected SHA-less commit to be dropped")
	}
}

func TestNarrowIssueLabels(t *testing.T) {
	issue := &github.Issue{
		Number: intp(42),
		Title:  strp("Checkout times out"),
		State:  strp("closed"),
		Labels: []*github.Label{
			{Name: strp("bug")},
			{},
			{Name: strp("payments")},
		},
	}

	got := narrowIssue(issue)
	if got.Number != 42 {
		t.Errorf("expected number 42, got %d", got.Number)
	}
	if len(got.Labels) != 2 || got.Labels[0] != "bug" || got.Labels[1] != "payments" {
		t.Errorf("expected nameless label dropped, got %v", got.Labels)
	}
}

func TestNarrowCommitFilesCap(t *testing.T) {
	var files []*github.CommitFile
	for i := 0; i < 60; i++ {
		name := "file" + string(rune('a'+i%26)) + ".go"
		files = append(files, &github.CommitFile{
			Filename:  &name,
			Additions: intp(i),
			Deletions: intp(1),
		})
	}
	files = append(files, &github.CommitFile{}) // pathless, dropped

	got := narrowCommitFiles(files)
	if len(got) != maxFilesPerDiff {
		t.Errorf("expected %d files, got %d", maxFilesPerDiff, len(got))
	}
}
