// Package aggregate merges file-level diff statistics from several pull
// requests or commits into one ranked file-change listing.
package aggregate

import (
	"fmt"
	"log"
	"sort"

	"github.com/riskradar/riskradar/internal/database"
	"github.com/riskradar/riskradar/internal/gateway"
)

const (
	maxFiles         = 50
	maxRefsPerFile   = 5
	maxSourcesPerRun = 3
)

// Source is one pull request or commit with its file diff listing.
type Source struct {
	Label string
	Files []gateway.FileDelta
}

// Fetchers retrieves diff listings for sources. Fetch failures are
// non-fatal: the source is logged and skipped, partial aggregation proceeds.
type Fetchers struct {
	PullRequestFiles func(number int) ([]gateway.FileDelta, error)
	CommitFiles      func(sha string) ([]gateway.FileDelta, error)
}

// PRLabel is the canonical reference label for a pull request.
func PRLabel(number int) string {
	return fmt.Sprintf("PR #%d", number)
}

// CommitLabel is the canonical reference label for a commit.
func CommitLabel(sha string) string {
	if len(sha) > 7 {
		sha = sha[:7]
	}
	return "Commit " + sha
}

// CollectSources builds aggregation sources for up to 3 pull requests, or up
// to 3 commits when no pull requests exist.
func CollectSources(prs []gateway.PullRequest, commits []gateway.Commit, fetch Fetchers) []Source {
	var sources []Source

	if len(prs) > 0 {
		for _, pr := range prs {
			if len(sources) >= maxSourcesPerRun {
				break
			}
			label := PRLabel(pr.Number)
			files, err := fetch.PullRequestFiles(pr.Number)
			if err != nil {
				log.Printf("skipping file listing for %s: %v", label, err)
				continue
			}
			sources = append(sources, Source{Label: label, Files: files})
		}
		return sources
	}

	for _, c := range commits {
		if len(sources) >= maxSourcesPerRun {
			break
		}
		label := CommitLabel(c.SHA)
		files, err := fetch.CommitFiles(c.SHA)
		if err != nil {
			log.Printf("skipping file listing for %s: %v", label, err)
			continue
		}
		sources = append(sources, Source{Label: label, Files: files})
	}
	return sources
}

// Merge folds the sources into one per-path ranking: additions and deletions
// summed, referencing labels unioned (capped at 5 per file), sorted
// descending by change volume and truncated to 50 files.
func Merge(sources []Source) []database.FileChange {
	byPath := make(map[string]*database.FileChange)
	var order []string

	for _, src := range sources {
		files := src.Files
		if len(files) > maxFiles {
			files = files[:maxFiles]
		}
		for _, f := range files {
			fc, ok := byPath[f.Path]
			if !ok {
				fc = &database.FileChange{Path: f.Path}
				byPath[f.Path] = fc
				order = append(order, f.Path)
			}
			fc.Additions += f.Additions
			fc.Deletions += f.Deletions
			if len(fc.References) < maxRefsPerFile && !hasRef(fc.References, src.Label) {
				fc.References = append(fc.References, src.Label)
			}
		}
	}

	changes := make([]database.FileChange, 0, len(order))
	for _, path := range order {
		fc := byPath[path]
		fc.ChangeVolume = fc.Additions + fc.Deletions
		changes = append(changes, *fc)
	}

	sort.Slice(changes, func(i, j int) bool {
		if changes[i].ChangeVolume != changes[j].ChangeVolume {
			return changes[i].ChangeVolume > changes[j].ChangeVolume
		}
		return changes[i].Path < changes[j].Path
	})

	if len(changes) > maxFiles {
		changes = changes[:maxFiles]
	}
	return changes
}

func hasRef(refs []string, label string) bool {
	for _, r := range refs {
		if r == label {
			return true
		}
	}
	return false
}
