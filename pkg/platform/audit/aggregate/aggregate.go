// Package aggregate derives statistics and anomaly signals from the audit
// log.
//
// Both entry points are pull-based and stateless relative to the stored
// records: every call rescans the log for its window, so results can never
// drift from the records that back them. Persisted suspicion flags were
// considered and rejected for exactly that drift risk.
package aggregate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"vigil/pkg/platform/audit"
	"vigil/pkg/requestcontext"
)

// Entry is one name/count pair in a top-N ranking.
type Entry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Snapshot is a derived view over the audit log. It is recomputed on demand
// and never persisted as a source of truth.
type Snapshot struct {
	From         time.Time `json:"from,omitzero"`
	To           time.Time `json:"to"`
	Total        int       `json:"total"`
	SuccessCount int       `json:"success_count"`
	FailureCount int       `json:"failure_count"`
	SuccessRate  float64   `json:"success_rate"`
	TopActions   []Entry   `json:"top_actions"`
	TopActors    []Entry   `json:"top_actors"`
}

// Aggregator computes snapshots and suspicion sets over an audit log.
type Aggregator struct {
	log       audit.Log
	topN      int
	threshold int
	alerter   audit.Alerter
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithAlerter attaches an alerter; Suspicious raises THRESHOLD_EXCEEDED for
// each flagged actor.
func WithAlerter(alerter audit.Alerter) Option {
	return func(a *Aggregator) { a.alerter = alerter }
}

// New constructs an aggregator. topN bounds ranking sizes; threshold is the
// failure count an actor must exceed within a window to be flagged.
func New(log audit.Log, topN, threshold int, opts ...Option) *Aggregator {
	a := &Aggregator{log: log, topN: topN, threshold: threshold}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Snapshot scans the log, optionally windowed to [now-window, now], and
// computes totals, success rate, and top-N rankings.
//
// Tie-break for rankings: higher count wins; equal counts break by earliest
// first occurrence in the log, so repeated calls over the same records give
// identical output.
func (a *Aggregator) Snapshot(ctx context.Context, window time.Duration) (*Snapshot, error) {
	now := requestcontext.Now(ctx)
	var since time.Time
	if window > 0 {
		since = now.Add(-window)
	}

	records, err := a.log.ListSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("scan audit log: %w", err)
	}

	snap := &Snapshot{From: since, To: now}
	actions := newCounter()
	actors := newCounter()

	for _, rec := range records {
		snap.Total++
		switch rec.Outcome {
		case audit.OutcomeSuccess:
			snap.SuccessCount++
		case audit.OutcomeFailure:
			snap.FailureCount++
		}
		actions.observe(rec.Action)
		actors.observe(rec.Actor)
	}

	if snap.Total > 0 {
		snap.SuccessRate = float64(snap.SuccessCount) / float64(snap.Total)
	}
	snap.TopActions = actions.top(a.topN)
	snap.TopActors = actors.top(a.topN)
	return snap, nil
}

// Suspicious returns the actors whose FAILURE count within the window
// exceeds the configured threshold, sorted for determinism. When an alerter
// is attached, each flagged actor raises a THRESHOLD_EXCEEDED alert.
func (a *Aggregator) Suspicious(ctx context.Context, window time.Duration) ([]string, error) {
	now := requestcontext.Now(ctx)
	records, err := a.log.ListSince(ctx, now.Add(-window))
	if err != nil {
		return nil, fmt.Errorf("scan audit log: %w", err)
	}

	failures := make(map[string]int)
	for _, rec := range records {
		if rec.Outcome == audit.OutcomeFailure {
			failures[rec.Actor]++
		}
	}

	var flagged []string
	for actor, count := range failures {
		if count > a.threshold {
			flagged = append(flagged, actor)
		}
	}
	sort.Strings(flagged)

	if a.alerter != nil {
		for _, actor := range flagged {
			a.alerter.Raise(ctx, audit.SecurityAlert{
				Actor:  actor,
				Reason: audit.ReasonThresholdExceeded,
				Detail: fmt.Sprintf("%d failures within %s (threshold %d)", failures[actor], window, a.threshold),
			})
		}
	}
	return flagged, nil
}

// counter tracks counts plus first-occurrence order for stable ranking.
type counter struct {
	counts map[string]int
	first  map[string]int
	next   int
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int), first: make(map[string]int)}
}

func (c *counter) observe(name string) {
	if name == "" {
		return
	}
	if _, seen := c.counts[name]; !seen {
		c.first[name] = c.next
		c.next++
	}
	c.counts[name]++
}

func (c *counter) top(n int) []Entry {
	entries := make([]Entry, 0, len(c.counts))
	for name, count := range c.counts {
		entries = append(entries, Entry{Name: name, Count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return c.first[entries[i].Name] < c.first[entries[j].Name]
	})
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
