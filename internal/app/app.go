// Package app wires the ipomatch subsystems into a running service.
//
// The App struct owns the full lifecycle: New builds every subsystem from the
// config, Run refreshes the catalog and serves HTTP until its context ends,
// and Shutdown drains the server and releases connections in order.
//
// For testing, inject doubles via functional options (WithCatalogSource,
// WithExtractor, etc.). When an option is not provided, New creates the real
// implementation from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/ipomatch/internal/api"
	"github.com/MrWong99/ipomatch/internal/catalog"
	"github.com/MrWong99/ipomatch/internal/catalog/postgres"
	"github.com/MrWong99/ipomatch/internal/classify"
	"github.com/MrWong99/ipomatch/internal/config"
	"github.com/MrWong99/ipomatch/internal/health"
	"github.com/MrWong99/ipomatch/internal/location"
	"github.com/MrWong99/ipomatch/internal/matcher"
	"github.com/MrWong99/ipomatch/internal/ner"
	"github.com/MrWong99/ipomatch/internal/observe"
	"github.com/MrWong99/ipomatch/internal/rerank"
	"github.com/MrWong99/ipomatch/internal/resilience"
)

// serverDrainTimeout bounds the in-Run drain of in-flight requests once the
// run context ends.
const serverDrainTimeout = 10 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	cfg     *config.Config
	metrics *observe.Metrics

	source     catalog.Source
	refresher  *catalog.Refresher
	locations  location.Classifier
	matcher    swappableMatcher
	reranker   *rerank.Reranker
	extractor  ner.Extractor
	classifier classify.Classifier

	checkers []health.Checker
	handler  http.Handler
	server   *http.Server
	listener net.Listener

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithCatalogSource injects a catalog source instead of creating one from
// config.
func WithCatalogSource(s catalog.Source) Option {
	return func(a *App) { a.source = s }
}

// WithExtractor injects an entity extractor instead of the configured NER
// fallback chain.
func WithExtractor(e ner.Extractor) Option {
	return func(a *App) { a.extractor = e }
}

// WithClassifier injects a finance relevance classifier instead of the
// configured backends.
func WithClassifier(c classify.Classifier) Option {
	return func(a *App) { a.classifier = c }
}

// WithLocationClassifier injects a place-name classifier instead of building
// a gazetteer-backed resolver.
func WithLocationClassifier(c location.Classifier) Option {
	return func(a *App) { a.locations = c }
}

// WithMetrics records on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithListener serves on l instead of listening on server.listen_addr.
func WithListener(l net.Listener) Option {
	return func(a *App) { a.listener = l }
}

// New creates an App by wiring all subsystems together. It does not fetch the
// catalog; [App.Run] does that first thing, and until it succeeds every
// request matches against an empty snapshot.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Catalog ───────────────────────────────────────────────────────
	if err := a.initCatalog(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init catalog: %w", err)
	}

	// ── 2. Location classifier ───────────────────────────────────────────
	if err := a.initLocations(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init locations: %w", err)
	}

	// ── 3. Matcher and reranker ──────────────────────────────────────────
	a.SetScoring(cfg.Scoring)
	a.reranker = rerank.New(rerank.WithMetrics(a.metrics))

	// ── 4. Upstream collaborators ────────────────────────────────────────
	if err := a.initExtractor(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init ner: %w", err)
	}
	if err := a.initClassifier(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init classifier: %w", err)
	}

	// ── 5. HTTP ──────────────────────────────────────────────────────────
	a.initHTTP()

	slog.Info("app initialised",
		"catalog_source", cfg.Catalog.Source,
		"ner_backends", len(cfg.NER.URLs),
		"classifier_backends", len(cfg.Classifier.Backends),
		"readiness_checks", len(a.checkers),
	)
	return a, nil
}

func (a *App) initCatalog(ctx context.Context) error {
	cc := a.cfg.Catalog
	if a.source == nil {
		switch cc.Source {
		case config.CatalogFile:
			a.source = catalog.NewFileSource(cc.Path)
		case config.CatalogPostgres:
			src, err := postgres.NewSource(ctx, cc.PostgresDSN, cc.Table)
			if err != nil {
				return err
			}
			a.source = src
			a.closers = append(a.closers, func() error { src.Close(); return nil })
			a.checkers = append(a.checkers, health.Ping("postgres", src))
		default:
			opts := make([]catalog.HTTPOption, 0, len(cc.Headers))
			for k, v := range cc.Headers {
				opts = append(opts, catalog.WithHeader(k, v))
			}
			src, err := catalog.NewHTTPSource(cc.URL, opts...)
			if err != nil {
				return err
			}
			a.source = src
		}
	}

	a.refresher = catalog.NewRefresher(a.source,
		catalog.WithRefreshInterval(cc.RefreshInterval),
		catalog.WithFetchTimeout(cc.FetchTimeout),
		catalog.WithMetrics(a.metrics),
	)
	a.checkers = append(a.checkers, health.Checker{Name: "catalog", Check: a.catalogReady})
	return nil
}

// catalogReady passes once a non-empty snapshot is in use.
func (a *App) catalogReady(ctx context.Context) error {
	if err := a.refresher.Ready(ctx); err != nil {
		return err
	}
	if a.refresher.Current().Len() == 0 {
		return errors.New("catalog: snapshot has no records")
	}
	return nil
}

func (a *App) initLocations(ctx context.Context) error {
	if a.locations != nil {
		return nil
	}
	lc := a.cfg.Location
	opts := []location.Option{location.WithCacheSize(lc.CacheSize)}

	if lc.GazetteerPath != "" {
		g, err := location.LoadGazetteer(lc.GazetteerPath)
		if err != nil {
			return err
		}
		slog.Info("gazetteer loaded", "path", lc.GazetteerPath, "places", g.Len())
		opts = append(opts, location.WithGazetteer(g))
	}

	if lc.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: lc.RedisAddr})
		shared := location.NewRedisCache(client, lc.RedisPrefix, lc.RedisTTL)
		if err := shared.Ping(ctx); err != nil {
			// The resolver works without the shared cache; readiness reports it.
			slog.Warn("location redis unavailable", "addr", lc.RedisAddr, "err", err)
		}
		opts = append(opts, location.WithSharedCache(shared))
		a.closers = append(a.closers, client.Close)
		a.checkers = append(a.checkers, health.Ping("redis", shared))
	}

	r, err := location.NewResolver(opts...)
	if err != nil {
		return err
	}
	a.locations = r
	return nil
}

func (a *App) breakerConfig(name string) resilience.FallbackConfig {
	rc := a.cfg.Resilience
	return resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Name:         name,
			MaxFailures:  rc.MaxFailures,
			ResetTimeout: rc.ResetTimeout,
			HalfOpenMax:  rc.HalfOpenMax,
			OnStateChange: func(backend string, from, to resilience.State) {
				slog.Warn("circuit breaker state changed",
					"upstream", name,
					"backend", backend,
					"from", from.String(),
					"to", to.String(),
				)
			},
		},
	}
}

func (a *App) initExtractor() error {
	if a.extractor != nil {
		if r, ok := a.extractor.(health.ReadyReporter); ok {
			a.checkers = append(a.checkers, health.Ready("ner", r))
		}
		return nil
	}
	nc := a.cfg.NER
	if len(nc.URLs) == 0 {
		return nil
	}

	backends := make([]ner.Backend, 0, len(nc.URLs))
	for i, u := range nc.URLs {
		e, err := ner.NewHTTPExtractor(u,
			ner.WithTimeout(nc.Timeout),
			ner.WithLanguage(nc.Language),
		)
		if err != nil {
			return err
		}
		backends = append(backends, ner.Backend{Name: backendName(u, i), Extractor: e})
	}
	f, err := ner.NewFallback(backends, a.breakerConfig("ner"), ner.WithMetrics(a.metrics))
	if err != nil {
		return err
	}
	a.extractor = f
	a.checkers = append(a.checkers, health.Ready("ner", f))
	return nil
}

func (a *App) initClassifier() error {
	if a.classifier != nil {
		return nil
	}
	cc := a.cfg.Classifier
	if len(cc.Backends) == 0 {
		a.classifier = classify.Always
		return nil
	}

	backends := make([]classify.Backend, 0, len(cc.Backends))
	for i, b := range cc.Backends {
		var (
			c   classify.Classifier
			err error
		)
		switch b.Name {
		case config.ClassifierOpenAI:
			opts := []classify.LLMOption{classify.WithTimeout(b.Timeout)}
			if b.URL != "" {
				opts = append(opts, classify.WithBaseURL(b.URL))
			}
			c, err = classify.NewLLMClassifier(b.APIKey, b.Model, opts...)
		default:
			c, err = classify.NewHTTPClassifier(b.URL, b.Timeout)
		}
		if err != nil {
			return fmt.Errorf("backend %d (%s): %w", i, b.Name, err)
		}
		backends = append(backends, classify.Backend{Name: fmt.Sprintf("%s-%d", b.Name, i), Classifier: c})
	}
	f, err := classify.NewFallback(backends, a.breakerConfig("classifier"), classify.WithMetrics(a.metrics))
	if err != nil {
		return err
	}
	a.classifier = f
	a.checkers = append(a.checkers, health.Ready("classifier", f))
	return nil
}

func (a *App) initHTTP() {
	mux := http.NewServeMux()

	api.New(api.Deps{
		Snapshots: a.refresher,
		Matcher:   &a.matcher,
		Reranker:  a.reranker,
		Extractor: a.extractor,
	},
		api.WithClassifier(a.classifier),
		api.WithMaxTextLength(a.cfg.NER.MaxTextLength),
	).Register(mux)

	health.New(a.checkers...).Register(mux)

	metricsRoute := "GET " + a.cfg.Telemetry.MetricsPath
	mux.Handle(metricsRoute, observe.MetricsHandler())

	a.handler = observe.Middleware(a.metrics,
		observe.WithQuietRoutes("GET /health", "GET /healthz", "GET /readyz", metricsRoute),
	)(mux)
	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadTimeout:       a.cfg.Server.ReadTimeout,
		ReadHeaderTimeout: a.cfg.Server.ReadTimeout,
		WriteTimeout:      a.cfg.Server.WriteTimeout,
	}
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Refresher returns the catalog refresher.
func (a *App) Refresher() *catalog.Refresher { return a.refresher }

// Scoring returns the scoring in use.
func (a *App) Scoring() matcher.Scoring { return a.matcher.Load().Scoring() }

// SetScoring replaces the matcher with one using s. Requests already in
// flight finish with the matcher they started with.
func (a *App) SetScoring(s config.ScoringConfig) {
	a.matcher.Store(matcher.New(
		matcher.WithScoring(scoringFromConfig(s)),
		matcher.WithLocationClassifier(a.locations),
		matcher.WithMetrics(a.metrics),
	))
}

// Run refreshes the catalog and serves HTTP until ctx is cancelled or the
// server fails. On cancellation it drains the server and returns ctx.Err().
func (a *App) Run(ctx context.Context) error {
	ln := a.listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", a.cfg.Server.ListenAddr)
		if err != nil {
			return fmt.Errorf("app: listen %q: %w", a.cfg.Server.ListenAddr, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.refresher.Run(gctx) })
	g.Go(func() error {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.server.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), serverDrainTimeout)
		defer cancel()
		return a.server.Shutdown(sctx)
	})

	slog.Info("app running", "addr", ln.Addr().String())
	err := g.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Shutdown stops the HTTP server and runs the closers in order. It respects
// the context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.server.Shutdown(ctx); err != nil {
			slog.Warn("http server shutdown error", "err", err)
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// closeAll releases whatever New had opened before it failed.
func (a *App) closeAll() {
	for _, closer := range a.closers {
		_ = closer()
	}
	a.closers = nil
}

// swappableMatcher serves the current matcher to the API and lets
// [App.SetScoring] replace it without locking.
type swappableMatcher struct {
	atomic.Pointer[matcher.Matcher]
}

func (s *swappableMatcher) Match(ctx context.Context, snap *catalog.Snapshot, candidates []matcher.Candidate) ([]matcher.Match, error) {
	return s.Load().Match(ctx, snap, candidates)
}

func scoringFromConfig(c config.ScoringConfig) matcher.Scoring {
	return matcher.Scoring{
		LongThreshold:      c.LongThreshold,
		ShortThreshold:     c.ShortThreshold,
		ShortNameMaxLen:    c.ShortNameMaxLen,
		SubstringBoost:     c.SubstringBoost,
		ExactBoost:         c.ExactBoost,
		PartialTickerBoost: c.PartialTickerBoost,
		PartialTickerMin:   c.PartialTickerMin,
		CoreWordPenalty:    c.CoreWordPenalty,
		PlacePenalty:       c.PlacePenalty,
		PlaceMaxWords:      c.PlaceMaxWords,
		InvitPenalty:       c.InvitPenalty,
		InvitBoost:         c.InvitBoost,
	}
}

// backendName labels an upstream URL by host, falling back to its position.
func backendName(raw string, i int) string {
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return u.Host
	}
	return fmt.Sprintf("backend-%d", i)
}
