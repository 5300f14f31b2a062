// Package rerank orders accepted matches by how relevant each one is to the
// article they were extracted from, using Okapi BM25.
//
// Every match becomes a pseudo-document of its entity name and context; the
// article text is the query. Reranking never drops a match.
package rerank

import (
	"context"
	"slices"
	"time"

	"github.com/MrWong99/ipomatch/internal/matcher"
	"github.com/MrWong99/ipomatch/internal/observe"
)

// Option is a functional option for configuring a [Reranker].
type Option func(*Reranker)

// WithParams overrides the BM25 term-saturation (k1) and length-normalisation
// (b) parameters. Defaults: [DefaultK1], [DefaultB].
func WithParams(k1, b float64) Option {
	return func(r *Reranker) {
		r.k1, r.b = k1, b
	}
}

// WithMetrics records rerank latency on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Reranker) {
		r.metrics = m
	}
}

// Reranker attaches BM25 relevance scores to matches and sorts them.
// It is stateless and safe for concurrent use.
type Reranker struct {
	k1, b   float64
	metrics *observe.Metrics
}

// New returns a [Reranker] configured with opts.
func New(opts ...Option) *Reranker {
	r := &Reranker{k1: DefaultK1, b: DefaultB}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Rerank returns a copy of matches with RelevanceScore set, sorted by
// descending relevance to query. Equal scores keep their input order. An
// empty input yields an empty, non-nil slice; an empty query scores every
// match zero.
func (r *Reranker) Rerank(ctx context.Context, matches []matcher.Match, query string) []matcher.Match {
	if len(matches) == 0 {
		return []matcher.Match{}
	}
	start := time.Now()

	docs := make([][]string, len(matches))
	for i, m := range matches {
		docs[i] = Tokenize(m.EntityName + " " + m.Context)
	}
	scores := Scores(docs, Tokenize(query), r.k1, r.b)

	out := slices.Clone(matches)
	for i := range out {
		out[i].RelevanceScore = scores[i]
	}
	slices.SortStableFunc(out, func(a, b matcher.Match) int {
		switch {
		case a.RelevanceScore > b.RelevanceScore:
			return -1
		case a.RelevanceScore < b.RelevanceScore:
			return 1
		}
		return 0
	})

	if r.metrics != nil {
		observe.RecordSince(ctx, r.metrics.RerankDuration, start)
	}
	return out
}
