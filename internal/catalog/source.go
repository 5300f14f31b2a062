package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Source fetches the raw catalog rows for one snapshot build.
//
// Implementations must be safe for concurrent use and must respect ctx
// cancellation.
type Source interface {
	Fetch(ctx context.Context) ([]Row, error)
}

// SourceFunc adapts an ordinary function to the [Source] interface.
type SourceFunc func(ctx context.Context) ([]Row, error)

// Fetch implements [Source].
func (f SourceFunc) Fetch(ctx context.Context) ([]Row, error) { return f(ctx) }

// ─────────────────────────────────────────────────────────────────────────────
// HTTP
// ─────────────────────────────────────────────────────────────────────────────

// HTTPOption is a functional option for configuring an [HTTPSource].
type HTTPOption func(*HTTPSource)

// WithHeader adds a request header sent on every fetch (e.g. User-Agent,
// Accept).
func WithHeader(key, value string) HTTPOption {
	return func(s *HTTPSource) {
		s.headers.Set(key, value)
	}
}

// WithHTTPClient overrides the HTTP client. The default client has a 30s
// timeout.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		if c != nil {
			s.client = c
		}
	}
}

// HTTPSource fetches the catalog as a JSON array of [Row] objects with a
// GET request.
type HTTPSource struct {
	url     string
	headers http.Header
	client  *http.Client
}

var _ Source = (*HTTPSource)(nil)

// NewHTTPSource returns an [HTTPSource] for url. url must be non-empty.
func NewHTTPSource(url string, opts ...HTTPOption) (*HTTPSource, error) {
	if url == "" {
		return nil, errors.New("catalog: http source url must not be empty")
	}
	s := &HTTPSource{
		url:     url,
		headers: make(http.Header),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Fetch implements [Source].
func (s *HTTPSource) Fetch(ctx context.Context) ([]Row, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: build request: %w", err)
	}
	for k, vs := range s.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: fetch %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("catalog: fetch %s: unexpected status %d: %s", s.url, resp.StatusCode, body)
	}
	return decodeRows(resp.Body)
}

// ─────────────────────────────────────────────────────────────────────────────
// File
// ─────────────────────────────────────────────────────────────────────────────

// FileSource reads the catalog from a JSON file holding the same array the
// HTTP catalog API serves. The file is re-read on every fetch.
type FileSource struct {
	path string
}

var _ Source = (*FileSource)(nil)

// NewFileSource returns a [FileSource] reading path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Fetch implements [Source].
func (s *FileSource) Fetch(ctx context.Context) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %q: %w", s.path, err)
	}
	defer f.Close()

	rows, err := decodeRows(f)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %q: %w", s.path, err)
	}
	return rows, nil
}

func decodeRows(r io.Reader) ([]Row, error) {
	var rows []Row
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("catalog: decode rows: %w", err)
	}
	return rows, nil
}
