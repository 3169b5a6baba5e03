// Package hydrator schedules risk-profile computation: it decides which
// issues need (re)hydration, drains a deduplicated queue one task at a time
// against the remote API, and emits incremental update events.
package hydrator

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/riskradar/riskradar/internal/aggregate"
	"github.com/riskradar/riskradar/internal/comment"
	"github.com/riskradar/riskradar/internal/database"
	"github.com/riskradar/riskradar/internal/gateway"
	"github.com/riskradar/riskradar/internal/keywords"
	"github.com/riskradar/riskradar/internal/llm"
	"github.com/riskradar/riskradar/internal/scoring"
	"github.com/riskradar/riskradar/internal/telemetry"
)

const (
	maxEvidence = 5
	// Smooths request bursts between successive tasks, distinct from the
	// per-call rate-limit backoff inside the gateway.
	defaultTaskDelay = 500 * time.Millisecond
)

// Options configures a Scheduler.
type Options struct {
	LookbackDays    int
	LabelFilters    []string
	PublishComments bool
	TaskDelay       time.Duration
}

// Scheduler owns queue membership and all mutation of cached summaries and
// profiles. One consumer goroutine processes tasks sequentially, bounding
// concurrent load on the remote API to one in-flight computation.
type Scheduler struct {
	store     *database.DB
	client    gateway.Client
	extractor llm.Extractor
	sink      telemetry.Sink
	opts      Options

	cache *Cache
	bus   *Bus

	mu         sync.Mutex
	queue      []Task
	queued     map[string]bool
	processing bool
	disposed   bool

	wake chan struct{}
	done chan struct{}

	now func() time.Time
}

// New creates a scheduler and starts its consumer loop. The extractor and
// sink may be nil.
func New(store *database.DB, client gateway.Client, extractor llm.Extractor, sink telemetry.Sink, opts Options) *Scheduler {
	if opts.TaskDelay == 0 {
		opts.TaskDelay = defaultTaskDelay
	}
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	s := &Scheduler{
		store:     store,
		client:    client,
		extractor: extractor,
		sink:      sink,
		opts:      opts,
		cache:     NewCache(),
		bus:       NewBus(),
		queued:    make(map[string]bool),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		now:       time.Now,
	}
	go s.run()
	return s
}

// Subscribe registers a handler on the scheduler's update stream.
func (s *Scheduler) Subscribe(fn func(Update)) *Subscription {
	return s.bus.Subscribe(fn)
}

// GetSummary is a non-blocking point read of the latest cached summary.
func (s *Scheduler) GetSummary(repo string, issueNumber int) (Summary, bool) {
	return s.cache.Summary(repo, issueNumber)
}

// GetProfile is a non-blocking point read of the latest cached profile.
func (s *Scheduler) GetProfile(repo string, issueNumber int) *database.RiskProfile {
	return s.cache.Profile(repo, issueNumber)
}

// PrimeIssues consults the store and staleness rules for a batch of issue
// summaries, surfaces an immediate summary per issue, and enqueues the ones
// needing fresh data. Per-issue failures never abort siblings and no error
// crosses this boundary.
func (s *Scheduler) PrimeIssues(ctx context.Context, repo string, issues []gateway.IssueSummary) {
	for _, issue := range issues {
		s.primeOne(ctx, repo, issue)
	}
}

func (s *Scheduler) primeOne(_ context.Context, repo string, issue gateway.IssueSummary) {
	closed := issue.State == "closed"

	if !closed && s.outsideLookback(issue.UpdatedAt) {
		s.setSummary(repo, issue.Number, Summary{
			Status:  StatusSkipped,
			Message: fmt.Sprintf("not updated in the last %d days", s.opts.LookbackDays),
		}, nil)
		return
	}
	if !closed && !s.matchesFilters(issue.Labels) {
		s.setSummary(repo, issue.Number, Summary{
			Status:  StatusSkipped,
			Message: "labels do not match the configured filters",
		}, nil)
		return
	}

	stored, err := s.store.GetProfile(repo, issue.Number)
	if err != nil {
		s.setSummary(repo, issue.Number, Summary{Status: StatusError, Message: err.Error()}, nil)
		return
	}

	if stored != nil {
		stale := isStale(stored, issue, s.opts.LookbackDays, s.opts.LabelFilters, s.now())
		s.setSummary(repo, issue.Number, summaryFromProfile(stored, stale), stored)
		if !stale {
			return
		}
	} else {
		s.setSummary(repo, issue.Number, Summary{Status: StatusPending}, nil)
	}

	s.enqueue(Task{
		Repository:   repo,
		IssueNumber:  issue.Number,
		LookbackDays: s.opts.LookbackDays,
		LabelFilters: s.opts.LabelFilters,
	})
}

// QueueHydration enqueues one issue unconditionally. Force makes the task
// post a fresh comment instead of editing the existing one.
func (s *Scheduler) QueueHydration(_ context.Context, repo string, issueNumber int, force bool) {
	s.setSummary(repo, issueNumber, Summary{Status: StatusPending}, nil)
	s.enqueue(Task{
		Repository:   repo,
		IssueNumber:  issueNumber,
		LookbackDays: s.opts.LookbackDays,
		LabelFilters: s.opts.LabelFilters,
		Force:        force,
	})
}

func (s *Scheduler) outsideLookback(updatedAt time.Time) bool {
	cutoff := s.now().AddDate(0, 0, -s.opts.LookbackDays)
	return updatedAt.Before(cutoff)
}

func (s *Scheduler) matchesFilters(labels []string) bool {
	if len(s.opts.LabelFilters) == 0 {
		return true
	}
	for _, label := range labels {
		label = strings.ToLower(strings.TrimSpace(label))
		for _, filter := range s.opts.LabelFilters {
			if label == filter {
				return true
			}
		}
	}
	return false
}

func dedupKey(repo string, issueNumber int) string {
	return fmt.Sprintf("%s#%d", database.NormalizeRepo(repo), issueNumber)
}

func (s *Scheduler) enqueue(task Task) {
	key := dedupKey(task.Repository, task.IssueNumber)
	s.mu.Lock()
	if s.disposed || s.queued[key] {
		s.mu.Unlock()
		return
	}
	s.queued[key] = true
	s.queue = append(s.queue, task)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) pop() (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		s.processing = false
		return Task{}, false
	}
	task := s.queue[0]
	s.queue = s.queue[1:]
	delete(s.queued, dedupKey(task.Repository, task.IssueNumber))
	s.processing = true
	return task, true
}

func (s *Scheduler) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		for {
			task, ok := s.pop()
			if !ok {
				break
			}
			s.process(context.Background(), task)

			select {
			case <-s.done:
				return
			case <-time.After(s.opts.TaskDelay):
			}
		}
	}
}

// process runs one hydration task end to end. Any unexpected failure becomes
// an error summary; the scheduler never retries on its own.
func (s *Scheduler) process(ctx context.Context, task Task) {
	start := s.now()
	profile, summary := s.hydrate(ctx, task)

	s.setSummary(task.Repository, task.IssueNumber, summary, profile)
	s.sink.Event("hydration.completed",
		map[string]string{
			"repository": database.NormalizeRepo(task.Repository),
			"status":     string(summary.Status),
		},
		map[string]float64{
			"issue":       float64(task.IssueNumber),
			"duration_ms": float64(s.now().Sub(start).Milliseconds()),
		})
}

func (s *Scheduler) hydrate(ctx context.Context, task Task) (*database.RiskProfile, Summary) {
	repo := database.NormalizeRepo(task.Repository)

	snapshot, err := s.client.IssueRiskSnapshot(ctx, repo, task.IssueNumber)
	if err != nil {
		return nil, Summary{Status: StatusError, Message: err.Error()}
	}
	if len(snapshot.PullRequests) == 0 && len(snapshot.Commits) == 0 {
		return nil, Summary{
			Status:  StatusSkipped,
			Message: "no linked pull requests or commits",
		}
	}

	detail, err := s.client.IssueDetails(ctx, repo, task.IssueNumber)
	if err != nil {
		return nil, Summary{Status: StatusError, Message: err.Error()}
	}

	priorComment, parsedComment := comment.Find(detail.Comments)

	stored, err := s.store.GetProfile(repo, task.IssueNumber)
	if err != nil {
		return nil, Summary{Status: StatusError, Message: err.Error()}
	}

	candidates := s.candidateKeywords(ctx, task, detail, stored, parsedComment, priorComment != nil)

	sources := aggregate.CollectSources(snapshot.PullRequests, snapshot.Commits, aggregate.Fetchers{
		PullRequestFiles: func(number int) ([]gateway.FileDelta, error) {
			return s.client.PullRequestFiles(ctx, repo, number)
		},
		CommitFiles: func(sha string) ([]gateway.FileDelta, error) {
			return s.client.CommitFiles(ctx, repo, sha)
		},
	})
	fileChanges := aggregate.Merge(sources)

	metrics := scoring.ComputeMetrics(snapshot.PullRequests, snapshot.Commits)
	score := scoring.CalculateRiskScore(metrics)
	drivers := scoring.IdentifyDrivers(metrics)
	evidence := buildEvidence(snapshot)
	changeSummary := buildChangeSummary(metrics, fileChanges)

	profile := &database.RiskProfile{
		Repository:    repo,
		IssueNumber:   task.IssueNumber,
		RiskLevel:     scoring.ScoreToLevel(score),
		RiskScore:     score,
		Metrics:       metrics,
		Evidence:      evidence,
		Drivers:       drivers,
		LookbackDays:  task.LookbackDays,
		LabelFilters:  task.LabelFilters,
		CalculatedAt:  s.now().UTC().Format(time.RFC3339),
		IssueTitle:    detail.Title,
		IssueSummary:  truncate(detail.Body, 300),
		IssueLabels:   detail.Labels,
		IssueState:    detail.State,
		ChangeSummary: changeSummary,
		FileChanges:   fileChanges,
	}

	profile.Keywords = keywords.EnsureCoverage(candidates, keywords.Context{
		Title:             detail.Title,
		Body:              detail.Body,
		ChangeSummary:     changeSummary,
		Labels:            detail.Labels,
		EvidenceSummaries: evidenceSummaries(evidence),
		FilePaths:         filePaths(fileChanges),
	}, keywords.DefaultMin, keywords.DefaultMax)

	if priorComment != nil && !task.Force {
		profile.CommentID = priorComment.ID
	}

	if s.opts.PublishComments {
		s.publishComment(ctx, repo, task, profile)
	}

	if err := s.store.SaveProfile(profile); err != nil {
		return nil, Summary{Status: StatusError, Message: err.Error()}
	}

	return profile, summaryFromProfile(profile, false)
}

// candidateKeywords picks the keyword source for a task: stored keywords are
// preserved, then keywords parsed from the live comment; the LLM extractor
// runs only on first computation (no prior profile, no prior comment).
func (s *Scheduler) candidateKeywords(ctx context.Context, task Task, detail *gateway.IssueDetail, stored *database.RiskProfile, parsed *comment.Parsed, hasPriorComment bool) []string {
	if stored != nil && len(stored.Keywords) > 0 {
		return stored.Keywords
	}
	if parsed != nil && len(parsed.Keywords) > 0 {
		return parsed.Keywords
	}
	if stored != nil || hasPriorComment || s.extractor == nil {
		return nil
	}

	extraction, err := s.extractor.ExtractKeywords(ctx, detail.Title, detail.Body, task.IssueNumber)
	if err != nil {
		log.Printf("keyword extraction failed for %s#%d: %v", task.Repository, task.IssueNumber, err)
		return nil
	}
	s.sink.Event("keywords.extracted",
		map[string]string{"repository": database.NormalizeRepo(task.Repository)},
		map[string]float64{
			"issue":  float64(task.IssueNumber),
			"tokens": float64(extraction.TokensUsed),
		})
	return extraction.Keywords
}

// publishComment mirrors the profile into the remote comment. Failures are
// logged and swallowed: the profile is still saved and cached.
func (s *Scheduler) publishComment(ctx context.Context, repo string, task Task, profile *database.RiskProfile) {
	commentID := profile.CommentID
	if task.Force {
		commentID = 0
	}
	body := comment.Render(profile)
	newID, err := s.client.UpsertIssueComment(ctx, repo, task.IssueNumber, body, commentID)
	if err != nil {
		log.Printf("publishing risk comment for %s#%d failed: %v", repo, task.IssueNumber, err)
		s.sink.Event("comment.publish_failed",
			map[string]string{"repository": repo},
			map[string]float64{"issue": float64(task.IssueNumber)})
		return
	}
	profile.CommentID = newID
}

func (s *Scheduler) setSummary(repo string, issueNumber int, summary Summary, profile *database.RiskProfile) {
	s.cache.setSummary(repo, issueNumber, summary)
	if profile != nil {
		s.cache.setProfile(repo, issueNumber, profile)
	}
	s.bus.publish(Update{
		Repository:  database.NormalizeRepo(repo),
		IssueNumber: issueNumber,
		Summary:     summary,
		Profile:     profile,
	})
}

// WaitForIdle blocks until the queue is drained and no task is in flight.
// Test synchronization only; not used in steady-state operation.
func (s *Scheduler) WaitForIdle(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		s.mu.Lock()
		idle := len(s.queue) == 0 && !s.processing
		s.mu.Unlock()
		if idle {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("scheduler not idle after %s", timeout)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Dispose stops the consumer loop, clears the queue and dedup set, detaches
// all subscribers, and closes the store. In-flight remote calls are not
// cancelled; their results are discarded.
func (s *Scheduler) Dispose() error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	s.disposed = true
	s.queue = nil
	s.queued = make(map[string]bool)
	s.mu.Unlock()

	close(s.done)
	s.bus.closeAll()
	s.cache.Clear()
	return s.store.Close()
}

func buildEvidence(snapshot *gateway.RiskSnapshot) []database.Evidence {
	var evidence []database.Evidence
	for _, pr := range snapshot.PullRequests {
		if len(evidence) >= maxEvidence {
			break
		}
		evidence = append(evidence, database.Evidence{
			Label:    aggregate.PRLabel(pr.Number),
			Detail:   fmt.Sprintf("%s (+%d/-%d)", truncate(pr.Title, 80), pr.Additions, pr.Deletions),
			URL:      pr.URL,
			PRNumber: pr.Number,
		})
	}
	for _, c := range snapshot.Commits {
		if len(evidence) >= maxEvidence {
			break
		}
		evidence = append(evidence, database.Evidence{
			Label:  aggregate.CommitLabel(c.SHA),
			Detail: fmt.Sprintf("%s (+%d/-%d)", truncate(firstLine(c.Message), 80), c.Additions, c.Deletions),
			URL:    c.URL,
		})
	}
	return evidence
}

func buildChangeSummary(m database.RiskMetrics, changes []database.FileChange) string {
	var b strings.Builder
	if m.PRCount > 0 {
		fmt.Fprintf(&b, "%d pull %s touched %d %s with %d changed lines.",
			m.PRCount, pluralWord(m.PRCount, "request", "requests"),
			m.FilesTouched, pluralWord(m.FilesTouched, "file", "files"),
			m.ChangeVolume)
	} else {
		fmt.Fprintf(&b, "%d direct %s changed %d lines with no pull request review.",
			m.DirectCommitCount, pluralWord(m.DirectCommitCount, "commit", "commits"),
			m.ChangeVolume)
	}
	if len(changes) > 0 {
		top := changes[0]
		fmt.Fprintf(&b, " Most change concentrated in %s (+%d/-%d).",
			top.Path, top.Additions, top.Deletions)
	}
	if m.ReviewCommentCount >= 15 {
		fmt.Fprintf(&b, " Review was contentious with %d friction signals.", m.ReviewCommentCount)
	}
	return b.String()
}

func evidenceSummaries(evidence []database.Evidence) []string {
	var summaries []string
	for _, ev := range evidence {
		summaries = append(summaries, ev.Label+" "+ev.Detail)
	}
	return summaries
}

func filePaths(changes []database.FileChange) []string {
	var paths []string
	for _, fc := range changes {
		paths = append(paths, fc.Path)
	}
	return paths
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

func pluralWord(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}
