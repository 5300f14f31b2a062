package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/MrWong99/ipomatch/internal/observe"
)

const (
	defaultRefreshInterval = 30 * time.Minute
	defaultFetchTimeout    = 30 * time.Second
)

// ErrNoSnapshot is returned by readiness checks when no catalog fetch has
// succeeded yet.
var ErrNoSnapshot = errors.New("catalog: no snapshot loaded")

// RefresherOption is a functional option for configuring a [Refresher].
type RefresherOption func(*Refresher)

// WithRefreshInterval sets how often the catalog is re-fetched. Default: 30m.
func WithRefreshInterval(d time.Duration) RefresherOption {
	return func(r *Refresher) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithFetchTimeout bounds a single fetch from the source. Default: 30s.
func WithFetchTimeout(d time.Duration) RefresherOption {
	return func(r *Refresher) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMetrics records fetch latency, refresh outcomes and snapshot size on m.
func WithMetrics(m *observe.Metrics) RefresherOption {
	return func(r *Refresher) {
		r.metrics = m
	}
}

// Refresher owns the current [Snapshot]. It rebuilds the snapshot from its
// [Source] off the request path and publishes the result with an atomic
// pointer swap. A failed fetch never replaces the snapshot in use.
//
// Refresher is safe for concurrent use. A single goroutine should call
// [Refresher.Run].
type Refresher struct {
	source   Source
	interval time.Duration
	timeout  time.Duration
	metrics  *observe.Metrics

	current atomic.Pointer[Snapshot]
	loaded  atomic.Bool
	lastErr atomic.Pointer[error]
}

// NewRefresher returns a [Refresher] serving an empty snapshot until the
// first successful [Refresher.Refresh].
func NewRefresher(source Source, opts ...RefresherOption) *Refresher {
	r := &Refresher{
		source:   source,
		interval: defaultRefreshInterval,
		timeout:  defaultFetchTimeout,
	}
	for _, o := range opts {
		o(r)
	}
	r.current.Store(Empty())
	return r
}

// Current returns the snapshot in use. Callers should read it once per
// matching run and keep the pointer for the duration of that run.
func (r *Refresher) Current() *Snapshot {
	return r.current.Load()
}

// Loaded reports whether at least one fetch has succeeded.
func (r *Refresher) Loaded() bool {
	return r.loaded.Load()
}

// LastError returns the error of the most recent refresh attempt, or nil if
// it succeeded.
func (r *Refresher) LastError() error {
	if p := r.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

// Ready returns nil once a snapshot has been loaded. It is shaped for use as
// a readiness check.
func (r *Refresher) Ready(_ context.Context) error {
	if !r.Loaded() {
		if err := r.LastError(); err != nil {
			return fmt.Errorf("%w: %v", ErrNoSnapshot, err)
		}
		return ErrNoSnapshot
	}
	return nil
}

// Refresh fetches the catalog once, bounded by the fetch timeout, builds a new
// snapshot and swaps it in. On failure the previous snapshot stays in use and
// the error is returned.
func (r *Refresher) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	rows, err := r.source.Fetch(ctx)
	if r.metrics != nil {
		observe.RecordSince(ctx, r.metrics.CatalogFetchDuration, start)
	}
	if err != nil {
		r.lastErr.Store(&err)
		if r.metrics != nil {
			r.metrics.RecordCatalogRefresh(ctx, "error")
		}
		return fmt.Errorf("catalog: refresh: %w", err)
	}

	snap := NewSnapshot(rows)
	r.current.Store(snap)
	r.loaded.Store(true)
	r.lastErr.Store(nil)

	if r.metrics != nil {
		r.metrics.RecordCatalogRefresh(ctx, "ok")
		r.metrics.CatalogRecords.Record(ctx, int64(snap.Len()))
	}
	slog.Info("catalog snapshot refreshed",
		"rows", len(rows),
		"records", snap.Len(),
		"built_at", snap.BuiltAt(),
		"duration", time.Since(start),
	)
	return nil
}

// Run refreshes immediately and then on every interval tick until ctx is
// cancelled. Refresh failures are logged and never stop the loop. Run returns
// ctx.Err() on cancellation.
func (r *Refresher) Run(ctx context.Context) error {
	r.refreshAndLog(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.refreshAndLog(ctx)
		}
	}
}

func (r *Refresher) refreshAndLog(ctx context.Context) {
	if err := r.Refresh(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Warn("catalog refresh failed; keeping last good snapshot",
			"err", err,
			"records", r.Current().Len(),
			"loaded", r.Loaded(),
		)
	}
}
