// Package location decides whether an entity name denotes a geographic place:
// a country anywhere in the world, or a state, district or locality in India.
//
// The matcher penalises short place names so that a city mentioned in an
// article is not resolved to a company that happens to share its name.
package location

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/biter777/countries"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultCacheSize is the number of names whose classification is memoised
// when no size is configured.
const DefaultCacheSize = 4096

// Classifier reports whether name is a geographic location.
//
// Implementations must be safe for concurrent use and must never fail: an
// error during lookup counts as "not a location".
type Classifier interface {
	IsLocation(ctx context.Context, name string) bool
}

// Func adapts an ordinary function to the [Classifier] interface.
type Func func(ctx context.Context, name string) bool

// IsLocation implements [Classifier].
func (f Func) IsLocation(ctx context.Context, name string) bool { return f(ctx, name) }

// Never is a [Classifier] that classifies nothing as a location.
var Never Classifier = Func(func(context.Context, string) bool { return false })

// Option is a functional option for configuring a [Resolver].
type Option func(*Resolver)

// WithGazetteer enables Indian region lookups. Without a gazetteer only
// countries are recognised.
func WithGazetteer(g *Gazetteer) Option {
	return func(r *Resolver) {
		r.gazetteer = g
	}
}

// WithCacheSize bounds the in-process memo. Default: [DefaultCacheSize].
func WithCacheSize(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.cacheSize = n
		}
	}
}

// WithSharedCache adds a second-level cache shared between replicas, consulted
// after the in-process memo misses.
func WithSharedCache(c SharedCache) Option {
	return func(r *Resolver) {
		r.shared = c
	}
}

// Resolver is the production [Classifier]. It title-cases and trims the name,
// checks it against country names and ISO 3166 codes, then against the
// gazetteer. Results are memoised per title-cased name.
//
// All methods are safe for concurrent use.
type Resolver struct {
	gazetteer *Gazetteer
	cacheSize int
	cache     *lru.Cache[string, bool]
	shared    SharedCache
	countries map[string]struct{}
}

var _ Classifier = (*Resolver)(nil)

// NewResolver returns a [Resolver] configured by opts.
func NewResolver(opts ...Option) (*Resolver, error) {
	r := &Resolver{cacheSize: DefaultCacheSize}
	for _, o := range opts {
		o(r)
	}
	cache, err := lru.New[string, bool](r.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("location: create cache: %w", err)
	}
	r.cache = cache
	r.countries = countryIndex()
	return r, nil
}

// IsLocation implements [Classifier].
func (r *Resolver) IsLocation(ctx context.Context, name string) (found bool) {
	key := titleCase(name)
	if key == "" {
		return false
	}
	if v, ok := r.cache.Get(key); ok {
		return v
	}

	defer func() {
		if p := recover(); p != nil {
			slog.Warn("location lookup panicked; treating as not a location", "name", key, "panic", p)
			found = false
		}
	}()

	if r.shared != nil {
		v, ok, err := r.shared.Lookup(ctx, key)
		switch {
		case err != nil:
			slog.Debug("shared location cache lookup failed", "name", key, "err", err)
		case ok:
			r.cache.Add(key, v)
			return v
		}
	}

	found = r.classify(key)
	r.cache.Add(key, found)
	if r.shared != nil {
		if err := r.shared.Store(ctx, key, found); err != nil {
			slog.Debug("shared location cache store failed", "name", key, "err", err)
		}
	}
	return found
}

func (r *Resolver) classify(key string) bool {
	if r.isCountry(key) {
		return true
	}
	return r.gazetteer.Contains(key)
}

func (r *Resolver) isCountry(key string) bool {
	if _, ok := r.countries[strings.ToLower(key)]; ok {
		return true
	}
	return countries.ByName(key) != countries.Unknown
}

// countryIndex returns the lower-cased English names and alpha-2/alpha-3
// codes of every ISO 3166 country.
func countryIndex() map[string]struct{} {
	all := countries.All()
	idx := make(map[string]struct{}, 3*len(all))
	for _, c := range all {
		for _, s := range []string{c.String(), c.Alpha2(), c.Alpha3()} {
			if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
				idx[s] = struct{}{}
			}
		}
	}
	return idx
}

func titleCase(s string) string {
	return cases.Title(language.English).String(strings.TrimSpace(s))
}
