package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/ipomatch/internal/config"
)

const minimalYAML = `
catalog:
  url: "https://catalog.internal/companies"
`

func TestLoadFromReader_MinimalKeepsDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	def := config.Default()
	if cfg.Scoring != def.Scoring {
		t.Errorf("scoring: got %+v, want defaults %+v", cfg.Scoring, def.Scoring)
	}
	if cfg.Server.ListenAddr != ":8002" {
		t.Errorf("listen_addr: got %q, want %q", cfg.Server.ListenAddr, ":8002")
	}
	if cfg.Catalog.Source != config.CatalogHTTP {
		t.Errorf("catalog.source: got %q, want %q", cfg.Catalog.Source, config.CatalogHTTP)
	}
	if cfg.Catalog.URL != "https://catalog.internal/companies" {
		t.Errorf("catalog.url: got %q", cfg.Catalog.URL)
	}
}

func TestLoadFromReader_FullDocument(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":9000"
  log_level: debug
  read_timeout: 5s
catalog:
  source: postgres
  postgres_dsn: "postgres://localhost/ipo"
  table: reference.companies
  refresh_interval: 10m
scoring:
  long_threshold: 106
  place_penalty: -25
location:
  gazetteer_path: /data/IN.txt
  cache_size: 128
  redis_addr: "localhost:6379"
ner:
  urls:
    - "http://ner-a:8000/extract"
    - "http://ner-b:8000/extract"
  timeout: 3s
classifier:
  backends:
    - name: http
      url: "http://classifier:8000/classify"
    - name: openai
      api_key: sk-test
      model: gpt-4o-mini
resilience:
  max_failures: 2
  reset_timeout: 1m
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("read_timeout: got %s, want 5s", cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != config.Default().Server.WriteTimeout {
		t.Errorf("write_timeout should keep its default, got %s", cfg.Server.WriteTimeout)
	}
	if cfg.Catalog.Table != "reference.companies" {
		t.Errorf("catalog.table: got %q", cfg.Catalog.Table)
	}
	if cfg.Catalog.RefreshInterval != 10*time.Minute {
		t.Errorf("refresh_interval: got %s, want 10m", cfg.Catalog.RefreshInterval)
	}
	if cfg.Scoring.LongThreshold != 106 {
		t.Errorf("long_threshold: got %v, want 106", cfg.Scoring.LongThreshold)
	}
	if cfg.Scoring.ShortThreshold != 90 {
		t.Errorf("short_threshold: got %v, want default 90", cfg.Scoring.ShortThreshold)
	}
	if cfg.Scoring.PlacePenalty != -25 {
		t.Errorf("place_penalty: got %v, want -25", cfg.Scoring.PlacePenalty)
	}
	if len(cfg.NER.URLs) != 2 {
		t.Errorf("ner.urls: got %d entries, want 2", len(cfg.NER.URLs))
	}
	if cfg.NER.Language != "en" {
		t.Errorf("ner.language: got %q, want default en", cfg.NER.Language)
	}
	if len(cfg.Classifier.Backends) != 2 || cfg.Classifier.Backends[1].Name != config.ClassifierOpenAI {
		t.Errorf("classifier.backends: got %+v", cfg.Classifier.Backends)
	}
	if cfg.Location.RedisTTL != 7*24*time.Hour {
		t.Errorf("redis_ttl: got %s, want default", cfg.Location.RedisTTL)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	yaml := minimalYAML + `
scoring:
  long_treshold: 100
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for misspelled key, got nil")
	}
	if !strings.Contains(err.Error(), "long_treshold") {
		t.Errorf("error should name the unknown key, got: %v", err)
	}
}

func TestLoadFromReader_EmptyDocumentRequiresCatalogURL(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader(""))
	if err == nil {
		t.Fatal("expected error for missing catalog.url, got nil")
	}
	if !strings.Contains(err.Error(), "catalog.url") {
		t.Errorf("error should mention catalog.url, got: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "bad log level",
			mutate: func(c *config.Config) { c.Server.LogLevel = "bananas" },
			want:   "server.log_level",
		},
		{
			name:   "empty listen addr",
			mutate: func(c *config.Config) { c.Server.ListenAddr = "" },
			want:   "server.listen_addr",
		},
		{
			name:   "tls without key",
			mutate: func(c *config.Config) { c.Server.TLS = &config.TLSConfig{CertFile: "cert.pem"} },
			want:   "server.tls.key_file",
		},
		{
			name:   "unknown catalog source",
			mutate: func(c *config.Config) { c.Catalog.Source = "s3" },
			want:   "catalog.source",
		},
		{
			name:   "relative catalog url",
			mutate: func(c *config.Config) { c.Catalog.URL = "/companies" },
			want:   "catalog.url",
		},
		{
			name: "file source without path",
			mutate: func(c *config.Config) {
				c.Catalog.Source = config.CatalogFile
			},
			want: "catalog.path",
		},
		{
			name: "postgres without dsn",
			mutate: func(c *config.Config) {
				c.Catalog.Source = config.CatalogPostgres
			},
			want: "catalog.postgres_dsn",
		},
		{
			name:   "zero fetch timeout",
			mutate: func(c *config.Config) { c.Catalog.FetchTimeout = 0 },
			want:   "catalog.fetch_timeout",
		},
		{
			name:   "positive penalty",
			mutate: func(c *config.Config) { c.Scoring.PlacePenalty = 30 },
			want:   "scoring.place_penalty",
		},
		{
			name:   "partial ticker min out of range",
			mutate: func(c *config.Config) { c.Scoring.PartialTickerMin = 120 },
			want:   "scoring.partial_ticker_min",
		},
		{
			name:   "zero threshold",
			mutate: func(c *config.Config) { c.Scoring.LongThreshold = 0 },
			want:   "scoring.long_threshold",
		},
		{
			name:   "zero cache size",
			mutate: func(c *config.Config) { c.Location.CacheSize = 0 },
			want:   "location.cache_size",
		},
		{
			name:   "bad ner url",
			mutate: func(c *config.Config) { c.NER.URLs = []string{"ftp://ner"} },
			want:   "ner.urls[0]",
		},
		{
			name: "unknown classifier",
			mutate: func(c *config.Config) {
				c.Classifier.Backends = []config.ClassifierBackend{{Name: "bert"}}
			},
			want: "classifier.backends[0].name",
		},
		{
			name: "openai without key",
			mutate: func(c *config.Config) {
				c.Classifier.Backends = []config.ClassifierBackend{{Name: config.ClassifierOpenAI}}
			},
			want: "api_key",
		},
		{
			name:   "zero max failures",
			mutate: func(c *config.Config) { c.Resilience.MaxFailures = 0 },
			want:   "resilience.max_failures",
		},
		{
			name:   "sample ratio out of range",
			mutate: func(c *config.Config) { c.Telemetry.TraceSampleRatio = 1.5 },
			want:   "telemetry.trace_sample_ratio",
		},
		{
			name:   "metrics path",
			mutate: func(c *config.Config) { c.Telemetry.MetricsPath = "metrics" },
			want:   "telemetry.metrics_path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error should mention %q, got: %v", tt.want, err)
			}
		})
	}
}

func TestValidate_JoinsAllErrors(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Server.LogLevel = "loud"
	cfg.Location.CacheSize = -1
	cfg.Resilience.MaxFailures = 0

	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	for _, want := range []string{"server.log_level", "location.cache_size", "resilience.max_failures"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error should mention %q, got: %v", want, err)
		}
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "ipomatch.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Catalog.URL == "" {
		t.Error("catalog.url should be loaded from file")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
	if !strings.Contains(err.Error(), "config: open") {
		t.Errorf("error should be wrapped with config: open, got: %v", err)
	}
}

func validConfig() *config.Config {
	cfg := config.Default()
	cfg.Catalog.URL = "https://catalog.internal/companies"
	return cfg
}
