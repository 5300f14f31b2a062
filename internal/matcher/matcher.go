// Package matcher resolves extracted entity strings to companies in the
// reference catalog.
//
// Each entity is normalised into a query and compared against every catalog
// record on three columns (clean name, short name, ticker). The best of the
// three similarities is adjusted by a fixed set of boosts and penalties:
//
//   - a literal substring boost when the query occurs in any column,
//   - an exact boost when both the clean name and the ticker equal the query,
//   - a partial-ticker boost for strong partial ticker similarity,
//   - a core-word penalty when the query shares no word with the clean name,
//   - a place penalty for short queries that name a geographic location,
//   - an InvIT adjustment for infrastructure investment trust names.
//
// The best record whose total meets the length-dependent threshold wins, ties
// going to the lowest record index. Within one batch a company can be claimed
// by only one entity; a later entity whose best record is already claimed
// yields no match.
package matcher

import (
	"context"
	"fmt"
	"time"

	"github.com/MrWong99/ipomatch/internal/catalog"
	"github.com/MrWong99/ipomatch/internal/location"
	"github.com/MrWong99/ipomatch/internal/normalize"
	"github.com/MrWong99/ipomatch/internal/observe"
	"github.com/MrWong99/ipomatch/internal/similarity"
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithScoring replaces the thresholds and weights. Default: [DefaultScoring].
func WithScoring(s Scoring) Option {
	return func(m *Matcher) {
		m.scoring = s
	}
}

// WithLocationClassifier sets the classifier behind the place penalty.
// Default: [location.Never].
func WithLocationClassifier(c location.Classifier) Option {
	return func(m *Matcher) {
		if c != nil {
			m.locations = c
		}
	}
}

// WithMetrics records match latency and per-entity outcomes on mt.
func WithMetrics(mt *observe.Metrics) Option {
	return func(m *Matcher) {
		m.metrics = mt
	}
}

// Matcher scores entity batches against a catalog snapshot.
// All methods are safe for concurrent use; the Matcher is read-only after
// construction.
type Matcher struct {
	scoring   Scoring
	locations location.Classifier
	metrics   *observe.Metrics
}

// New returns a [Matcher] configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		scoring:   DefaultScoring(),
		locations: location.Never,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Scoring returns the thresholds and weights in use.
func (m *Matcher) Scoring() Scoring {
	return m.scoring
}

// Match resolves candidates against snap and returns the accepted matches in
// candidate order. An empty snapshot or an empty batch yields no matches. The
// only error is ctx's.
func (m *Matcher) Match(ctx context.Context, snap *catalog.Snapshot, candidates []Candidate) ([]Match, error) {
	ctx, span := observe.StartSpan(ctx, "matcher.Match")
	var err error
	defer func() { observe.EndSpan(span, err) }()

	if len(candidates) == 0 || snap == nil || snap.Len() == 0 {
		return []Match{}, nil
	}

	start := time.Now()
	queries := make([]string, len(candidates))
	for i, c := range candidates {
		queries[i] = normalize.Query(c.Name)
	}

	rows, err := similarity.Matrix(ctx, queries, snap)
	if err != nil {
		return nil, fmt.Errorf("matcher: similarity: %w", err)
	}

	matches := make([]Match, 0, len(candidates))
	claimed := make(map[string]struct{}, len(candidates))
	for i, c := range candidates {
		q := newQuery(queries[i], m.scoring, m.locations.IsLocation(ctx, queries[i]))
		best, score, ok := q.best(snap, rows[i])
		if !ok {
			m.recordOutcome(ctx, observe.OutcomeBelowThreshold)
			continue
		}
		rec := snap.Record(best)
		if _, taken := claimed[rec.Code]; taken {
			m.recordOutcome(ctx, observe.OutcomeClaimed)
			continue
		}
		claimed[rec.Code] = struct{}{}
		m.recordOutcome(ctx, observe.OutcomeMatched)
		matches = append(matches, Match{
			EntityName:  c.Name,
			MatchedName: rec.Name,
			CompanyCode: rec.Code,
			TickerName:  rec.Ticker,
			MatchScore:  score,
			Context:     c.Context,
		})
	}

	if m.metrics != nil {
		observe.RecordSince(ctx, m.metrics.MatchDuration, start)
	}
	observe.Logger(ctx).Debug("entity batch matched",
		"entities", len(candidates),
		"matches", len(matches),
		"records", snap.Len(),
		"duration", time.Since(start),
	)
	return matches, nil
}

func (m *Matcher) recordOutcome(ctx context.Context, outcome string) {
	if m.metrics != nil {
		m.metrics.RecordEntityOutcome(ctx, outcome)
	}
}
