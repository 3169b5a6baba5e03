package hydrator

import (
	"sync"

	"github.com/riskradar/riskradar/internal/database"
)

// Cache is the scheduler-owned in-memory view of summaries and profiles,
// keyed by lower-cased repository slug. All writes happen on the scheduler's
// consumer goroutine or under PrimeIssues; reads are non-blocking point
// lookups.
type Cache struct {
	mu        sync.RWMutex
	summaries map[string]map[int]Summary
	profiles  map[string]map[int]*database.RiskProfile
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		summaries: make(map[string]map[int]Summary),
		profiles:  make(map[string]map[int]*database.RiskProfile),
	}
}

// Summary returns the latest cached summary for an issue.
func (c *Cache) Summary(repo string, issueNumber int) (Summary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.summaries[database.NormalizeRepo(repo)][issueNumber]
	return s, ok
}

// Profile returns the latest cached profile for an issue, nil if absent.
func (c *Cache) Profile(repo string, issueNumber int) *database.RiskProfile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.profiles[database.NormalizeRepo(repo)][issueNumber]
}

func (c *Cache) setSummary(repo string, issueNumber int, s Summary) {
	repo = database.NormalizeRepo(repo)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.summaries[repo] == nil {
		c.summaries[repo] = make(map[int]Summary)
	}
	c.summaries[repo][issueNumber] = s
}

func (c *Cache) setProfile(repo string, issueNumber int, p *database.RiskProfile) {
	repo = database.NormalizeRepo(repo)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.profiles[repo] == nil {
		c.profiles[repo] = make(map[int]*database.RiskProfile)
	}
	c.profiles[repo][issueNumber] = p
}

// Clear empties the cache wholesale. Used on sign-out and disposal.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summaries = make(map[string]map[int]Summary)
	c.profiles = make(map[string]map[int]*database.RiskProfile)
}
