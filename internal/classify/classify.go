// Package classify gates articles on financial relevance before any entity
// extraction is attempted.
package classify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/ipomatch/internal/observe"
	"github.com/MrWong99/ipomatch/internal/resilience"
)

const upstreamName = "classifier"

// Classifier decides whether an article is finance or IPO news.
//
// Implementations must be safe for concurrent use.
type Classifier interface {
	IsFinance(ctx context.Context, text string) (bool, error)
}

// Func adapts an ordinary function to the [Classifier] interface.
type Func func(ctx context.Context, text string) (bool, error)

// IsFinance implements [Classifier].
func (f Func) IsFinance(ctx context.Context, text string) (bool, error) { return f(ctx, text) }

// Always is a [Classifier] that accepts every article. It is used when no
// classifier backend is configured.
var Always Classifier = Func(func(context.Context, string) (bool, error) { return true, nil })

// Backend is a named [Classifier] registered with a [Fallback].
type Backend struct {
	Name       string
	Classifier Classifier
}

// FallbackOption is a functional option for configuring a [Fallback].
type FallbackOption func(*Fallback)

// WithMetrics records per-backend latency and outcomes on m.
func WithMetrics(m *observe.Metrics) FallbackOption {
	return func(f *Fallback) {
		f.metrics = m
	}
}

// Fallback asks its backends in order behind per-backend circuit breakers and
// returns the first verdict obtained.
type Fallback struct {
	group   *resilience.FallbackGroup[Backend]
	metrics *observe.Metrics
}

var _ Classifier = (*Fallback)(nil)

// NewFallback returns a [Fallback] over backends; at least one is required.
func NewFallback(backends []Backend, cfg resilience.FallbackConfig, opts ...FallbackOption) (*Fallback, error) {
	if len(backends) == 0 {
		return nil, errors.New("classify: at least one backend is required")
	}
	g := resilience.NewFallbackGroup(backends[0], backends[0].Name, cfg)
	for _, b := range backends[1:] {
		g.AddFallback(b.Name, b)
	}
	f := &Fallback{group: g}
	for _, o := range opts {
		o(f)
	}
	return f, nil
}

// IsFinance implements [Classifier].
func (f *Fallback) IsFinance(ctx context.Context, text string) (_ bool, err error) {
	ctx, span := observe.StartSpan(ctx, "classify.IsFinance")
	defer func() { observe.EndSpan(span, err) }()

	ok, err := resilience.ExecuteWithResult(ctx, f.group, func(ctx context.Context, b Backend) (bool, error) {
		start := time.Now()
		ok, err := b.Classifier.IsFinance(ctx, text)
		if f.metrics != nil {
			f.metrics.ObserveUpstream(ctx, upstreamName, b.Name, start, err)
		}
		return ok, err
	})
	if err != nil {
		return false, fmt.Errorf("classify: %w", err)
	}
	return ok, nil
}

// Ready returns nil while at least one backend's circuit is not open.
func (f *Fallback) Ready(ctx context.Context) error {
	if err := f.group.Ready(ctx); err != nil {
		return fmt.Errorf("classify: %w", err)
	}
	return nil
}
