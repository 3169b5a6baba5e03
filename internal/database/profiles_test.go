package database

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleProfile(repo string, issue int) *RiskProfile {
	return &RiskProfile{
		Repository:  repo,
		IssueNumber: issue,
		RiskLevel:   RiskHigh,
		RiskScore:   82.5,
		Metrics: RiskMetrics{
			PRCount:              2,
			FilesTouched:         31,
			TotalAdditions:       900,
			TotalDeletions:       410,
			ChangeVolume:         1310,
			ReviewCommentCount:   18,
			PRReviewCommentCount: 10,
			PRChangeRequestCount: 4,
		},
		Evidence: []Evidence{
			{Label: "PR #12", Detail: "31 files, +900/-410", URL: "https://github.com/acme/widgets/pull/12", PRNumber: 12},
			{Label: "PR #15", URL: "https://github.com/acme/widgets/pull/15", PRNumber: 15},
		},
		Drivers:      []string{"Multiple pull requests required", "Large change volume"},
		LookbackDays: 180,
		LabelFilters: []string{"bug", "payments"},
		CalculatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC).Format(time.RFC3339),
		Keywords:     []string{"payments", "retry-logic", "checkout", "timeout", "ledger"},
		IssueTitle:   "Checkout intermittently times out",
		IssueSummary: "Payments fail under load",
		IssueLabels:  []string{"bug", "payments"},
		IssueState:   "closed",
		ChangeSummary: "2 pull requests touched 31 files with 1,310 changed lines, " +
			"concentrated in internal/payments.",
		FileChanges: []FileChange{
			{Path: "internal/payments/checkout.go", Additions: 400, Deletions: 200, ChangeVolume: 600, References: []string{"PR #12", "PR #15"}},
			{Path: "internal/payments/ledger.go", Additions: 500, Deletions: 210, ChangeVolume: 710, References: []string{"PR #12"}},
		},
		CommentID: 99001,
	}
}

func TestSaveAndGetProfileRoundTrip(t *testing.T) {
	db := openTestDB(t)
	want := sampleProfile("acme/widgets", 42)
	if err := db.SaveProfile(want); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}

	got, err := db.GetProfile("acme/widgets", 42)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got == nil {
		t.Fatal("expected profile, got nil")
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round-trip mismatch:\n got: %+v\nwant: %+v", got, want)
	}
}

func TestSaveProfileUpsert(t *testing.T) {
	db := openTestDB(t)
	p := sampleProfile("acme/widgets", 7)
	if err := db.SaveProfile(p); err != nil {
		t.Fatalf("first save: %v", err)
	}

	p.RiskScore = 40
	p.RiskLevel = RiskMedium
	p.Keywords = nil
	if err := db.SaveProfile(p); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := db.GetProfile("acme/widgets", 7)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got.RiskScore != 40 || got.RiskLevel != RiskMedium {
		t.Errorf("expected updated score/level, got %v/%v", got.RiskScore, got.RiskLevel)
	}
	if got.Keywords != nil {
		t.Errorf("expected keywords cleared, got %v", got.Keywords)
	}

	all, _ := db.GetAllProfiles("acme/widgets")
	if len(all) != 1 {
		t.Errorf("expected exactly one row after upsert, got %d", len(all))
	}
}

func TestGetProfileMissing(t *testing.T) {
	db := openTestDB(t)
	got, err := db.GetProfile("acme/widgets", 404)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing profile, got %+v", got)
	}
}

func TestRepositoryCaseInsensitive(t *testing.T) {
	db := openTestDB(t)
	if err := db.SaveProfile(sampleProfile("Acme/Widgets", 1)); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	got, err := db.GetProfile("ACME/widgets", 1)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got == nil {
		t.Fatal("expected profile under lower-cased slug")
	}
	if got.Repository != "acme/widgets" {
		t.Errorf("expected normalized slug, got %q", got.Repository)
	}
}

func TestGetProfilesBatch(t *testing.T) {
	db := openTestDB(t)
	db.SaveProfile(sampleProfile("acme/widgets", 1))
	db.SaveProfile(sampleProfile("acme/widgets", 2))

	got, err := db.GetProfiles([]ProfileKey{
		{"acme/widgets", 1},
		{"acme/widgets", 2},
		{"acme/widgets", 3},
	})
	if err != nil {
		t.Fatalf("GetProfiles: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 profiles, got %d", len(got))
	}
}

func TestClosedIssuesWithoutKeywords(t *testing.T) {
	db := openTestDB(t)

	withKw := sampleProfile("acme/widgets", 1)
	db.SaveProfile(withKw)

	noKw := sampleProfile("acme/widgets", 2)
	noKw.Keywords = nil
	db.SaveProfile(noKw)

	openNoKw := sampleProfile("acme/widgets", 3)
	openNoKw.Keywords = nil
	openNoKw.IssueState = "open"
	db.SaveProfile(openNoKw)

	got, err := db.ClosedIssuesWithoutKeywords("acme/widgets", 10)
	if err != nil {
		t.Fatalf("ClosedIssuesWithoutKeywords: %v", err)
	}
	if len(got) != 1 || got[0].IssueNumber != 2 {
		t.Errorf("expected only closed keyword-less issue 2, got %+v", got)
	}
}

func TestSearchByKeywords(t *testing.T) {
	db := openTestDB(t)

	a := sampleProfile("acme/widgets", 1)
	a.Keywords = []string{"payments", "checkout"}
	db.SaveProfile(a)

	b := sampleProfile("acme/widgets", 2)
	b.Keywords = []string{"payments", "checkout", "ledger"}
	db.SaveProfile(b)

	c := sampleProfile("acme/widgets", 3)
	c.Keywords = []string{"frontend"}
	db.SaveProfile(c)

	got, err := db.SearchByKeywords("acme/widgets", []string{"Payments", "ledger"}, 10)
	if err != nil {
		t.Fatalf("SearchByKeywords: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(got))
	}
	if got[0].IssueNumber != 2 {
		t.Errorf("expected issue 2 ranked first (2 matches), got %d", got[0].IssueNumber)
	}

	none, err := db.SearchByKeywords("acme/widgets", nil, 10)
	if err != nil {
		t.Fatalf("SearchByKeywords empty: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no results for empty query, got %d", len(none))
	}
}

func TestGetKeywordCoverage(t *testing.T) {
	db := openTestDB(t)

	a := sampleProfile("acme/widgets", 1)
	db.SaveProfile(a)

	b := sampleProfile("acme/widgets", 2)
	b.Keywords = nil
	db.SaveProfile(b)

	cov, err := db.GetKeywordCoverage("acme/widgets")
	if err != nil {
		t.Fatalf("GetKeywordCoverage: %v", err)
	}
	if cov.Total != 2 || cov.WithKeywords != 1 {
		t.Errorf("expected 2 total / 1 with keywords, got %d/%d", cov.Total, cov.WithKeywords)
	}
	if cov.CoveragePct != 50 {
		t.Errorf("expected 50%% coverage, got %v", cov.CoveragePct)
	}
}

func TestDeleteProfiles(t *testing.T) {
	db := openTestDB(t)
	db.SaveProfile(sampleProfile("acme/widgets", 1))
	db.SaveProfile(sampleProfile("other/repo", 1))

	if err := db.DeleteProfiles("acme/widgets"); err != nil {
		t.Fatalf("DeleteProfiles: %v", err)
	}

	gone, _ := db.GetAllProfiles("acme/widgets")
	if len(gone) != 0 {
		t.Errorf("expected no profiles after delete, got %d", len(gone))
	}
	kept, _ := db.GetAllProfiles("other/repo")
	if len(kept) != 1 {
		t.Errorf("expected other repo untouched, got %d", len(kept))
	}
}
