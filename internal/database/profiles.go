package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// NormalizeRepo lower-cases and trims a repository slug. Every store and cache
// key goes through this so "Org/Repo" and "org/repo" address the same row.
func NormalizeRepo(repo string) string {
	return strings.ToLower(strings.TrimSpace(repo))
}

const profileColumns = `repository, issue_number, risk_level, risk_score, metrics,
	evidence, drivers, lookback_days, label_filters, calculated_at, keywords,
	issue_title, issue_summary, issue_labels, issue_state, change_summary,
	file_changes, comment_id`

// SaveProfile upserts a profile keyed by (repository, issue number).
func (db *DB) SaveProfile(p *RiskProfile) error {
	metrics, err := json.Marshal(p.Metrics)
	if err != nil {
		return fmt.Errorf("encoding metrics: %w", err)
	}
	evidence, err := marshalOrNil(p.Evidence)
	if err != nil {
		return fmt.Errorf("encoding evidence: %w", err)
	}
	drivers, err := marshalOrNil(p.Drivers)
	if err != nil {
		return fmt.Errorf("encoding drivers: %w", err)
	}
	labelFilters, err := marshalOrNil(p.LabelFilters)
	if err != nil {
		return fmt.Errorf("encoding label filters: %w", err)
	}
	keywords, err := marshalOrNil(p.Keywords)
	if err != nil {
		return fmt.Errorf("encoding keywords: %w", err)
	}
	issueLabels, err := marshalOrNil(p.IssueLabels)
	if err != nil {
		return fmt.Errorf("encoding issue labels: %w", err)
	}
	fileChanges, err := marshalOrNil(p.FileChanges)
	if err != nil {
		return fmt.Errorf("encoding file changes: %w", err)
	}

	_, err = db.conn.Exec(`
		INSERT INTO risk_profiles (`+profileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repository, issue_number) DO UPDATE SET
			risk_level = excluded.risk_level,
			risk_score = excluded.risk_score,
			metrics = excluded.metrics,
			evidence = excluded.evidence,
			drivers = excluded.drivers,
			lookback_days = excluded.lookback_days,
			label_filters = excluded.label_filters,
			calculated_at = excluded.calculated_at,
			keywords = excluded.keywords,
			issue_title = excluded.issue_title,
			issue_summary = excluded.issue_summary,
			issue_labels = excluded.issue_labels,
			issue_state = excluded.issue_state,
			change_summary = excluded.change_summary,
			file_changes = excluded.file_changes,
			comment_id = excluded.comment_id,
			updated_at = datetime('now')`,
		NormalizeRepo(p.Repository), p.IssueNumber, string(p.RiskLevel), p.RiskScore,
		string(metrics), evidence, drivers, p.LookbackDays, labelFilters,
		p.CalculatedAt, keywords, p.IssueTitle, p.IssueSummary, issueLabels,
		p.IssueState, p.ChangeSummary, fileChanges, p.CommentID,
	)
	if err != nil {
		return fmt.Errorf("saving profile %s#%d: %w", p.Repository, p.IssueNumber, err)
	}
	return nil
}

// GetProfile returns the profile for one issue, or nil if none is stored.
func (db *DB) GetProfile(repo string, issueNumber int) (*RiskProfile, error) {
	row := db.conn.QueryRow(
		`SELECT `+profileColumns+` FROM risk_profiles
		WHERE repository = ? AND issue_number = ?`,
		NormalizeRepo(repo), issueNumber,
	)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading profile %s#%d: %w", repo, issueNumber, err)
	}
	return p, nil
}

// GetProfiles returns the stored profiles for a batch of keys. Missing rows
// are silently absent from the result.
func (db *DB) GetProfiles(keys []ProfileKey) ([]*RiskProfile, error) {
	var profiles []*RiskProfile
	for _, k := range keys {
		p, err := db.GetProfile(k.Repository, k.IssueNumber)
		if err != nil {
			return nil, err
		}
		if p != nil {
			profiles = append(profiles, p)
		}
	}
	return profiles, nil
}

// GetAllProfiles returns every stored profile for a repository, newest first.
func (db *DB) GetAllProfiles(repo string) ([]*RiskProfile, error) {
	rows, err := db.conn.Query(
		`SELECT `+profileColumns+` FROM risk_profiles
		WHERE repository = ? ORDER BY calculated_at DESC, issue_number DESC`,
		NormalizeRepo(repo),
	)
	if err != nil {
		return nil, fmt.Errorf("listing profiles for %s: %w", repo, err)
	}
	defer rows.Close()
	return scanProfiles(rows)
}

// ClosedIssuesWithoutKeywords returns closed-issue profiles that have no
// keywords yet, oldest first, for backfill runs.
func (db *DB) ClosedIssuesWithoutKeywords(repo string, limit int) ([]*RiskProfile, error) {
	rows, err := db.conn.Query(
		`SELECT `+profileColumns+` FROM risk_profiles
		WHERE repository = ? AND issue_state = 'closed'
		AND (keywords IS NULL OR keywords = '' OR keywords = '[]')
		ORDER BY calculated_at ASC LIMIT ?`,
		NormalizeRepo(repo), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing keyword-less profiles for %s: %w", repo, err)
	}
	defer rows.Close()
	return scanProfiles(rows)
}

// SearchByKeywords returns profiles whose keyword list contains any of the
// given keywords, ranked by how many keywords match.
func (db *DB) SearchByKeywords(repo string, keywords []string, limit int) ([]*RiskProfile, error) {
	profiles, err := db.GetAllProfiles(repo)
	if err != nil {
		return nil, err
	}

	query := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			query[kw] = true
		}
	}
	if len(query) == 0 {
		return nil, nil
	}

	type scored struct {
		profile *RiskProfile
		matches int
	}
	var hits []scored
	for _, p := range profiles {
		matches := 0
		for _, kw := range p.Keywords {
			if query[strings.ToLower(kw)] {
				matches++
			}
		}
		if matches > 0 {
			hits = append(hits, scored{p, matches})
		}
	}

	// Stable: GetAllProfiles is already ordered, sort only by match count.
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].matches > hits[j-1].matches; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}

	var result []*RiskProfile
	for _, h := range hits {
		result = append(result, h.profile)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// GetKeywordCoverage reports how many profiles in a repository carry keywords.
func (db *DB) GetKeywordCoverage(repo string) (*KeywordCoverage, error) {
	var cov KeywordCoverage
	err := db.conn.QueryRow(
		`SELECT COUNT(*),
			COUNT(CASE WHEN keywords IS NOT NULL AND keywords != '' AND keywords != '[]' THEN 1 END)
		FROM risk_profiles WHERE repository = ?`,
		NormalizeRepo(repo),
	).Scan(&cov.Total, &cov.WithKeywords)
	if err != nil {
		return nil, fmt.Errorf("computing keyword coverage for %s: %w", repo, err)
	}
	if cov.Total > 0 {
		cov.CoveragePct = float64(cov.WithKeywords) / float64(cov.Total) * 100
	}
	return &cov, nil
}

// DeleteProfiles removes every profile for a repository. Used on sign-out.
func (db *DB) DeleteProfiles(repo string) error {
	_, err := db.conn.Exec(
		"DELETE FROM risk_profiles WHERE repository = ?", NormalizeRepo(repo),
	)
	if err != nil {
		return fmt.Errorf("deleting profiles for %s: %w", repo, err)
	}
	return nil
}

func marshalOrNil(v any) (*string, error) {
	switch val := v.(type) {
	case []string:
		if len(val) == 0 {
			return nil, nil
		}
	case []Evidence:
		if len(val) == 0 {
			return nil, nil
		}
	case []FileChange:
		if len(val) == 0 {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(data)
	return &s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*RiskProfile, error) {
	var p RiskProfile
	var level string
	var metrics string
	var evidence, drivers, labelFilters, keywords, issueLabels, fileChanges *string
	var issueTitle, issueSummary, issueState, changeSummary *string

	err := row.Scan(&p.Repository, &p.IssueNumber, &level, &p.RiskScore, &metrics,
		&evidence, &drivers, &p.LookbackDays, &labelFilters, &p.CalculatedAt,
		&keywords, &issueTitle, &issueSummary, &issueLabels, &issueState,
		&changeSummary, &fileChanges, &p.CommentID)
	if err != nil {
		return nil, err
	}

	p.RiskLevel = RiskLevel(level)
	if err := json.Unmarshal([]byte(metrics), &p.Metrics); err != nil {
		return nil, fmt.Errorf("decoding metrics: %w", err)
	}
	if err := unmarshalInto(evidence, &p.Evidence); err != nil {
		return nil, fmt.Errorf("decoding evidence: %w", err)
	}
	if err := unmarshalInto(drivers, &p.Drivers); err != nil {
		return nil, fmt.Errorf("decoding drivers: %w", err)
	}
	if err := unmarshalInto(labelFilters, &p.LabelFilters); err != nil {
		return nil, fmt.Errorf("decoding label filters: %w", err)
	}
	if err := unmarshalInto(keywords, &p.Keywords); err != nil {
		return nil, fmt.Errorf("decoding keywords: %w", err)
	}
	if err := unmarshalInto(issueLabels, &p.IssueLabels); err != nil {
		return nil, fmt.Errorf("decoding issue labels: %w", err)
	}
	if err := unmarshalInto(fileChanges, &p.FileChanges); err != nil {
		return nil, fmt.Errorf("decoding file changes: %w", err)
	}
	p.IssueTitle = deref(issueTitle)
	p.IssueSummary = deref(issueSummary)
	p.IssueState = deref(issueState)
	p.ChangeSummary = deref(changeSummary)
	return &p, nil
}

func scanProfiles(rows *sql.Rows) ([]*RiskProfile, error) {
	var profiles []*RiskProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func unmarshalInto(s *string, dest any) error {
	if s == nil || *s == "" {
		return nil
	}
	return json.Unmarshal([]byte(*s), dest)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
