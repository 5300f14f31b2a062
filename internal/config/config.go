// Package config provides the configuration schema, loader, diff and file
// watcher for the ipomatch service.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// CatalogSource selects where the company catalog is fetched from.
type CatalogSource string

const (
	// CatalogHTTP fetches a JSON array from catalog.url.
	CatalogHTTP CatalogSource = "http"

	// CatalogFile reads a JSON array from catalog.path.
	CatalogFile CatalogSource = "file"

	// CatalogPostgres queries catalog.table through catalog.postgres_dsn.
	CatalogPostgres CatalogSource = "postgres"
)

// IsValid reports whether s is a recognised catalog source.
func (s CatalogSource) IsValid() bool {
	switch s {
	case CatalogHTTP, CatalogFile, CatalogPostgres:
		return true
	}
	return false
}

// ClassifierKind selects a finance-relevance classifier implementation.
type ClassifierKind string

const (
	// ClassifierHTTP posts the article to a classification service.
	ClassifierHTTP ClassifierKind = "http"

	// ClassifierOpenAI asks an OpenAI-compatible chat model.
	ClassifierOpenAI ClassifierKind = "openai"
)

// IsValid reports whether k is a recognised classifier kind.
func (k ClassifierKind) IsValid() bool {
	return k == ClassifierHTTP || k == ClassifierOpenAI
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader];
// keys absent from the file keep their [Default] values.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	Location   LocationConfig   `yaml:"location"`
	NER        NERConfig        `yaml:"ner"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Resilience ResilienceConfig `yaml:"resilience"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP API listens on (e.g., ":8002").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds paths to the TLS certificate and private key.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// CatalogConfig configures the reference catalog source and its refresh.
type CatalogConfig struct {
	Source CatalogSource `yaml:"source"`

	// URL and Headers apply to the http source.
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`

	// Path applies to the file source.
	Path string `yaml:"path"`

	// PostgresDSN and Table apply to the postgres source.
	PostgresDSN string `yaml:"postgres_dsn"`
	Table       string `yaml:"table"`

	RefreshInterval time.Duration `yaml:"refresh_interval"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout"`
}

// ScoringConfig holds the match thresholds and score weights. Changes are
// applied without restart.
type ScoringConfig struct {
	LongThreshold      float64 `yaml:"long_threshold"`
	ShortThreshold     float64 `yaml:"short_threshold"`
	ShortNameMaxLen    int     `yaml:"short_name_max_len"`
	SubstringBoost     float64 `yaml:"substring_boost"`
	ExactBoost         float64 `yaml:"exact_boost"`
	PartialTickerBoost float64 `yaml:"partial_ticker_boost"`
	PartialTickerMin   float64 `yaml:"partial_ticker_min"`
	CoreWordPenalty    float64 `yaml:"core_word_penalty"`
	PlacePenalty       float64 `yaml:"place_penalty"`
	PlaceMaxWords      int     `yaml:"place_max_words"`
	InvitPenalty       float64 `yaml:"invit_penalty"`
	InvitBoost         float64 `yaml:"invit_boost"`
}

// LocationConfig configures place-name classification.
type LocationConfig struct {
	// GazetteerPath is a GeoNames postal-code dump (IN.txt). Empty disables
	// Indian region lookups.
	GazetteerPath string `yaml:"gazetteer_path"`

	// CacheSize bounds the in-process classification memo.
	CacheSize int `yaml:"cache_size"`

	// RedisAddr enables a classification cache shared between replicas.
	RedisAddr   string        `yaml:"redis_addr"`
	RedisPrefix string        `yaml:"redis_prefix"`
	RedisTTL    time.Duration `yaml:"redis_ttl"`
}

// NERConfig configures the entity extraction service.
type NERConfig struct {
	// URLs lists extraction endpoints; the first is the primary, the rest are
	// fallbacks in order.
	URLs []string `yaml:"urls"`

	Timeout time.Duration `yaml:"timeout"`

	// Language is the hint sent with every extraction request.
	Language string `yaml:"language"`

	// MaxTextLength bounds the preprocessed article length in runes.
	MaxTextLength int `yaml:"max_text_length"`
}

// ClassifierConfig configures the finance relevance gate. An empty backend
// list disables the gate.
type ClassifierConfig struct {
	Backends []ClassifierBackend `yaml:"backends"`
}

// ClassifierBackend is one classifier implementation in the fallback chain.
type ClassifierBackend struct {
	Name ClassifierKind `yaml:"name"`

	// URL is the service endpoint for http, or an optional OpenAI-compatible
	// base URL for openai.
	URL string `yaml:"url"`

	// APIKey and Model apply to openai.
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`

	Timeout time.Duration `yaml:"timeout"`
}

// ResilienceConfig tunes the circuit breakers in front of every upstream.
type ResilienceConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
	HalfOpenMax  int           `yaml:"half_open_max"`
}

// TelemetryConfig configures metrics and traces.
type TelemetryConfig struct {
	ServiceName      string  `yaml:"service_name"`
	MetricsPath      string  `yaml:"metrics_path"`
	TraceSampleRatio float64 `yaml:"trace_sample_ratio"`
}

// Default returns the configuration used for every key the YAML file leaves
// out.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:   ":8002",
			LogLevel:     LogInfo,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Catalog: CatalogConfig{
			Source:          CatalogHTTP,
			Table:           "companies",
			RefreshInterval: 30 * time.Minute,
			FetchTimeout:    30 * time.Second,
		},
		Scoring: ScoringConfig{
			LongThreshold:      104,
			ShortThreshold:     90,
			ShortNameMaxLen:    3,
			SubstringBoost:     20,
			ExactBoost:         30,
			PartialTickerBoost: 15,
			PartialTickerMin:   85,
			CoreWordPenalty:    -10,
			PlacePenalty:       -30,
			PlaceMaxWords:      3,
			InvitPenalty:       -30,
			InvitBoost:         10,
		},
		Location: LocationConfig{
			CacheSize:   4096,
			RedisPrefix: "ipomatch:location:",
			RedisTTL:    7 * 24 * time.Hour,
		},
		NER: NERConfig{
			Timeout:       10 * time.Second,
			Language:      "en",
			MaxTextLength: 10000,
		},
		Resilience: ResilienceConfig{
			MaxFailures:  5,
			ResetTimeout: 30 * time.Second,
			HalfOpenMax:  3,
		},
		Telemetry: TelemetryConfig{
			ServiceName:      "ipomatch",
			MetricsPath:      "/metrics",
			TraceSampleRatio: 1,
		},
	}
}
