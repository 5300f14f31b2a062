package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/ipomatch/internal/app"
	"github.com/MrWong99/ipomatch/internal/catalog"
	"github.com/MrWong99/ipomatch/internal/config"
	"github.com/MrWong99/ipomatch/internal/location"
	"github.com/MrWong99/ipomatch/internal/matcher"
	"github.com/MrWong99/ipomatch/internal/ner"
	"github.com/MrWong99/ipomatch/internal/observe"
)

var testRows = []catalog.Row{
	{CompanyCode: "101", CompanyName: "Acme Ltd", ShortCompanyName: "Acme", TickerName: "ACME"},
	{CompanyCode: "202", CompanyName: "Zenith Textiles Ltd", ShortCompanyName: "Zenith Textiles", TickerName: "ZENTEX"},
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Catalog.URL = "http://catalog.invalid/companies"
	return cfg
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func staticSource() catalog.Source {
	return catalog.SourceFunc(func(context.Context) ([]catalog.Row, error) {
		return testRows, nil
	})
}

func newTestApp(t *testing.T, cfg *config.Config, opts ...app.Option) *app.App {
	t.Helper()
	opts = append([]app.Option{
		app.WithCatalogSource(staticSource()),
		app.WithLocationClassifier(location.Never),
		app.WithMetrics(testMetrics(t)),
	}, opts...)
	a, err := app.New(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return a
}

func postMatch(t *testing.T, url string, entities ...string) []matcher.Match {
	t.Helper()
	body, _ := json.Marshal(map[string]any{"entities": entities, "query": ""})
	resp, err := http.Post(url+"/match", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /match: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /match status = %d", resp.StatusCode)
	}
	var out struct {
		Matches []matcher.Match `json:"matches"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	return out.Matches
}

func getStatus(t *testing.T, url string) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestNew_ServesAfterRefresh(t *testing.T) {
	t.Parallel()
	a := newTestApp(t, testConfig())
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	if got := getStatus(t, srv.URL+"/readyz"); got != http.StatusServiceUnavailable {
		t.Errorf("readyz before refresh = %d, want 503", got)
	}
	if got := postMatch(t, srv.URL, "Acme Limited"); len(got) != 0 {
		t.Errorf("matches before refresh = %d, want 0", len(got))
	}

	if err := a.Refresher().Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := getStatus(t, srv.URL+"/readyz"); got != http.StatusOK {
		t.Errorf("readyz after refresh = %d, want 200", got)
	}
	got := postMatch(t, srv.URL, "Acme Limited")
	if len(got) != 1 || got[0].CompanyCode != "101" {
		t.Errorf("matches = %+v, want Acme", got)
	}
}

func TestNew_EmptyCatalogIsNotReady(t *testing.T) {
	t.Parallel()
	a := newTestApp(t, testConfig(), app.WithCatalogSource(catalog.SourceFunc(
		func(context.Context) ([]catalog.Row, error) { return nil, nil },
	)))
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	if err := a.Refresher().Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := getStatus(t, srv.URL+"/readyz"); got != http.StatusServiceUnavailable {
		t.Errorf("readyz with empty catalog = %d, want 503", got)
	}
}

func TestSetScoring_AppliesToNewRequests(t *testing.T) {
	t.Parallel()
	a := newTestApp(t, testConfig())
	if err := a.Refresher().Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	if got := postMatch(t, srv.URL, "Acme Limited"); len(got) != 1 {
		t.Fatalf("matches with default scoring = %d, want 1", len(got))
	}

	strict := config.Default().Scoring
	strict.LongThreshold = 1000
	a.SetScoring(strict)

	if a.Scoring().LongThreshold != 1000 {
		t.Errorf("Scoring().LongThreshold = %v, want 1000", a.Scoring().LongThreshold)
	}
	if got := postMatch(t, srv.URL, "Acme Limited"); len(got) != 0 {
		t.Errorf("matches with strict scoring = %d, want 0", len(got))
	}
}

func TestNew_InjectedExtractor(t *testing.T) {
	t.Parallel()
	extractor := ner.ExtractorFunc(func(context.Context, string) (*ner.Extraction, error) {
		return ner.DecodeExtraction(strings.NewReader(`{"html_chunk_2": {"Acme Limited": ["ORG"]}}`))
	})
	a := newTestApp(t, testConfig(), app.WithExtractor(extractor))
	if err := a.Refresher().Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	body := `{"title":"Acme IPO","content":"Acme Limited opens its IPO."}`
	resp, err := http.Post(srv.URL+"/extract-entities/", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out struct {
		Matches []matcher.Match `json:"matches"`
		Status  bool            `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !out.Status || len(out.Matches) != 1 {
		t.Errorf("response = %+v, want one match", out)
	}
}

func TestNew_ConfiguredNERAddsReadiness(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.NER.URLs = []string{"http://ner.invalid:8000/extract"}
	a := newTestApp(t, cfg)
	if err := a.Refresher().Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/readyz", nil))

	var body struct {
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Checks["ner"] != "ok" {
		t.Errorf("ner check = %q, want ok with closed circuits", body.Checks["ner"])
	}
	if body.Checks["catalog"] != "ok" {
		t.Errorf("catalog check = %q, want ok", body.Checks["catalog"])
	}
}

func TestNew_FileSourceFromConfig(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "companies.json")
	data, _ := json.Marshal(testRows)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig()
	cfg.Catalog.Source = config.CatalogFile
	cfg.Catalog.Path = path

	a, err := app.New(context.Background(), cfg,
		app.WithLocationClassifier(location.Never),
		app.WithMetrics(testMetrics(t)),
	)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	defer a.Shutdown(context.Background())

	if err := a.Refresher().Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := a.Refresher().Current().Len(); got != 2 {
		t.Errorf("records = %d, want 2", got)
	}
}

func TestNew_GazetteerMissing(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Location.GazetteerPath = filepath.Join(t.TempDir(), "missing.txt")

	_, err := app.New(context.Background(), cfg,
		app.WithCatalogSource(staticSource()),
		app.WithMetrics(testMetrics(t)),
	)
	if err == nil {
		t.Fatal("expected error for missing gazetteer, got nil")
	}
}

func TestNew_ClassifierBackendError(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Classifier.Backends = []config.ClassifierBackend{{Name: config.ClassifierOpenAI}}

	_, err := app.New(context.Background(), cfg,
		app.WithCatalogSource(staticSource()),
		app.WithLocationClassifier(location.Never),
		app.WithMetrics(testMetrics(t)),
	)
	if err == nil {
		t.Fatal("expected error for openai backend without api key, got nil")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	a := newTestApp(t, testConfig())

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /metrics = %d, want 200", rec.Code)
	}
}

func TestRun_ServesUntilCancelled(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	a := newTestApp(t, testConfig(), app.WithListener(ln))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	base := "http://" + ln.Addr().String()
	deadline := time.Now().Add(2 * time.Second)
	for !a.Refresher().Loaded() {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("catalog was not loaded by Run")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := postMatch(t, base, "Zenith Textiles"); len(got) != 1 || got[0].CompanyCode != "202" {
		t.Errorf("matches = %+v, want Zenith", got)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	t.Parallel()
	a := newTestApp(t, testConfig())
	ctx := context.Background()
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("first Shutdown: %v", err)
	}
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
}
