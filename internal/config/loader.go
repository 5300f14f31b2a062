package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of [Default] and
// validates the result. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when tls is configured"))
		}
		if cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when tls is configured"))
		}
	}

	errs = append(errs, validateCatalog(&cfg.Catalog)...)
	errs = append(errs, validateScoring(&cfg.Scoring)...)

	// Location
	if cfg.Location.CacheSize <= 0 {
		errs = append(errs, fmt.Errorf("location.cache_size %d must be positive", cfg.Location.CacheSize))
	}
	if cfg.Location.GazetteerPath == "" {
		slog.Warn("location.gazetteer_path is empty; only country names will be treated as places")
	}

	// NER
	if len(cfg.NER.URLs) == 0 {
		slog.Warn("ner.urls is empty; /extract-entities/ will fail until an extractor is configured")
	}
	for i, u := range cfg.NER.URLs {
		if err := validateURL(u); err != nil {
			errs = append(errs, fmt.Errorf("ner.urls[%d]: %w", i, err))
		}
	}
	if cfg.NER.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("ner.timeout %s must be positive", cfg.NER.Timeout))
	}
	if cfg.NER.MaxTextLength <= 0 {
		errs = append(errs, fmt.Errorf("ner.max_text_length %d must be positive", cfg.NER.MaxTextLength))
	}

	// Classifier
	for i, b := range cfg.Classifier.Backends {
		prefix := fmt.Sprintf("classifier.backends[%d]", i)
		if !b.Name.IsValid() {
			errs = append(errs, fmt.Errorf("%s.name %q is invalid; valid values: http, openai", prefix, b.Name))
			continue
		}
		switch b.Name {
		case ClassifierHTTP:
			if err := validateURL(b.URL); err != nil {
				errs = append(errs, fmt.Errorf("%s.url: %w", prefix, err))
			}
		case ClassifierOpenAI:
			if b.APIKey == "" {
				errs = append(errs, fmt.Errorf("%s.api_key is required for openai", prefix))
			}
			if b.URL != "" {
				if err := validateURL(b.URL); err != nil {
					errs = append(errs, fmt.Errorf("%s.url: %w", prefix, err))
				}
			}
		}
	}

	// Resilience
	if cfg.Resilience.MaxFailures <= 0 {
		errs = append(errs, fmt.Errorf("resilience.max_failures %d must be positive", cfg.Resilience.MaxFailures))
	}
	if cfg.Resilience.ResetTimeout <= 0 {
		errs = append(errs, fmt.Errorf("resilience.reset_timeout %s must be positive", cfg.Resilience.ResetTimeout))
	}

	// Telemetry
	if r := cfg.Telemetry.TraceSampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("telemetry.trace_sample_ratio %.2f is out of range [0, 1]", r))
	}
	if !strings.HasPrefix(cfg.Telemetry.MetricsPath, "/") {
		errs = append(errs, fmt.Errorf("telemetry.metrics_path %q must start with /", cfg.Telemetry.MetricsPath))
	}

	return errors.Join(errs...)
}

func validateCatalog(c *CatalogConfig) []error {
	var errs []error
	if !c.Source.IsValid() {
		return append(errs, fmt.Errorf("catalog.source %q is invalid; valid values: http, file, postgres", c.Source))
	}
	switch c.Source {
	case CatalogHTTP:
		if err := validateURL(c.URL); err != nil {
			errs = append(errs, fmt.Errorf("catalog.url: %w", err))
		}
	case CatalogFile:
		if c.Path == "" {
			errs = append(errs, errors.New("catalog.path is required for the file source"))
		}
	case CatalogPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("catalog.postgres_dsn is required for the postgres source"))
		}
		if c.Table == "" {
			errs = append(errs, errors.New("catalog.table is required for the postgres source"))
		}
	}
	if c.RefreshInterval < 0 {
		errs = append(errs, fmt.Errorf("catalog.refresh_interval %s must not be negative", c.RefreshInterval))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("catalog.fetch_timeout %s must be positive", c.FetchTimeout))
	}
	return errs
}

func validateScoring(s *ScoringConfig) []error {
	var errs []error
	if s.LongThreshold <= 0 {
		errs = append(errs, fmt.Errorf("scoring.long_threshold %.1f must be positive", s.LongThreshold))
	}
	if s.ShortThreshold <= 0 {
		errs = append(errs, fmt.Errorf("scoring.short_threshold %.1f must be positive", s.ShortThreshold))
	}
	if s.ShortNameMaxLen < 0 {
		errs = append(errs, fmt.Errorf("scoring.short_name_max_len %d must not be negative", s.ShortNameMaxLen))
	}
	if s.PartialTickerMin < 0 || s.PartialTickerMin > 100 {
		errs = append(errs, fmt.Errorf("scoring.partial_ticker_min %.1f is out of range [0, 100]", s.PartialTickerMin))
	}
	if s.PlaceMaxWords < 0 {
		errs = append(errs, fmt.Errorf("scoring.place_max_words %d must not be negative", s.PlaceMaxWords))
	}
	for _, p := range []struct {
		key string
		v   float64
	}{
		{"core_word_penalty", s.CoreWordPenalty},
		{"place_penalty", s.PlacePenalty},
		{"invit_penalty", s.InvitPenalty},
	} {
		if p.v > 0 {
			errs = append(errs, fmt.Errorf("scoring.%s %.1f must not be positive", p.key, p.v))
		}
	}
	return errs
}

var validURLSchemes = []string{"http", "https"}

func validateURL(raw string) error {
	if raw == "" {
		return errors.New("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if !slices.Contains(validURLSchemes, u.Scheme) || u.Host == "" {
		return fmt.Errorf("url %q must be absolute http or https", raw)
	}
	return nil
}
