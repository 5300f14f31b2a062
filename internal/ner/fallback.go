package ner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/ipomatch/internal/observe"
	"github.com/MrWong99/ipomatch/internal/resilience"
)

const upstreamName = "ner"

// Backend is a named [Extractor] registered with a [Fallback].
type Backend struct {
	Name      string
	Extractor Extractor
}

// FallbackOption is a functional option for configuring a [Fallback].
type FallbackOption func(*Fallback)

// WithMetrics records per-backend latency and outcomes on m.
func WithMetrics(m *observe.Metrics) FallbackOption {
	return func(f *Fallback) {
		f.metrics = m
	}
}

// Fallback tries its backends in order behind per-backend circuit breakers.
// Any failure of the whole group is reported as [ErrExtractionFailed].
type Fallback struct {
	group   *resilience.FallbackGroup[Backend]
	metrics *observe.Metrics
}

var _ Extractor = (*Fallback)(nil)

// NewFallback returns a [Fallback] over backends; at least one is required.
func NewFallback(backends []Backend, cfg resilience.FallbackConfig, opts ...FallbackOption) (*Fallback, error) {
	if len(backends) == 0 {
		return nil, errors.New("ner: at least one extractor backend is required")
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

// Extract implements [Extractor].
func (f *Fallback) Extract(ctx context.Context, text string) (_ *Extraction, err error) {
	ctx, span := observe.StartSpan(ctx, "ner.Extract")
	defer func() { observe.EndSpan(span, err) }()

	ext, err := resilience.ExecuteWithResult(ctx, f.group, func(ctx context.Context, b Backend) (*Extraction, error) {
		start := time.Now()
		ext, err := b.Extractor.Extract(ctx, text)
		if f.metrics != nil {
			f.metrics.ObserveUpstream(ctx, upstreamName, b.Name, start, err)
		}
		return ext, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	return ext, nil
}

// Ready returns nil while at least one backend's circuit is not open.
func (f *Fallback) Ready(ctx context.Context) error {
	if err := f.group.Ready(ctx); err != nil {
		return fmt.Errorf("ner: %w", err)
	}
	return nil
}
