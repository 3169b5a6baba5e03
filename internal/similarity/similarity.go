// Package similarity ranks stored risk profiles against a query keyword set.
package similarity

import (
	"sort"
	"strings"

	"github.com/riskradar/riskradar/internal/database"
)

// Match is one similar profile with its Jaccard score and the keywords the
// query and the profile have in common.
type Match struct {
	Profile        *database.RiskProfile
	Score          float64
	SharedKeywords []string
}

// FindSimilar scans a repository's stored profiles and returns the top limit
// matches by Jaccard similarity over lower-cased keyword sets. The excluded
// issue and profiles without keywords never appear. An empty query yields no
// results: missing signal must not match everything.
func FindSimilar(store *database.DB, repo string, query []string, excludeIssue, limit int) ([]Match, error) {
	querySet := keywordSet(query)
	if len(querySet) == 0 || limit <= 0 {
		return nil, nil
	}

	profiles, err := store.GetAllProfiles(repo)
	if err != nil {
		return nil, err
	}

	var matches []Match
	for _, p := range profiles {
		if p.IssueNumber == excludeIssue {
			continue
		}
		candidateSet := keywordSet(p.Keywords)
		if len(candidateSet) == 0 {
			continue
		}
		score, shared := jaccard(querySet, candidateSet)
		if score == 0 {
			continue
		}
		matches = append(matches, Match{Profile: p, Score: score, SharedKeywords: shared})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Profile.IssueNumber < matches[j].Profile.IssueNumber
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func keywordSet(keywords []string) map[string]bool {
	set := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			set[kw] = true
		}
	}
	return set
}

// jaccard returns |A∩B| / |A∪B| and the sorted intersection.
func jaccard(a, b map[string]bool) (float64, []string) {
	var shared []string
	for kw := range a {
		if b[kw] {
			shared = append(shared, kw)
		}
	}
	if len(shared) == 0 {
		return 0, nil
	}
	sort.Strings(shared)
	union := len(a) + len(b) - len(shared)
	return float64(len(shared)) / float64(union), shared
}
