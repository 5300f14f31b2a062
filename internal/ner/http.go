package ner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultLanguage = "en"
)

// HTTPOption is a functional option for configuring an [HTTPExtractor].
type HTTPOption func(*HTTPExtractor)

// WithHTTPClient overrides the HTTP client. It takes precedence over
// [WithTimeout].
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(e *HTTPExtractor) {
		if c != nil {
			e.client = c
		}
	}
}

// WithTimeout sets the per-request timeout of the default client.
// Default: 10s.
func WithTimeout(d time.Duration) HTTPOption {
	return func(e *HTTPExtractor) {
		if d > 0 {
			e.client.Timeout = d
		}
	}
}

// WithLanguage sets the language hint sent with every request. Default: "en".
func WithLanguage(lang string) HTTPOption {
	return func(e *HTTPExtractor) {
		if lang != "" {
			e.language = lang
		}
	}
}

// HTTPExtractor posts article text to the extraction service and decodes its
// response.
type HTTPExtractor struct {
	url      string
	language string
	client   *http.Client
}

var _ Extractor = (*HTTPExtractor)(nil)

// NewHTTPExtractor returns an [HTTPExtractor] for the service at url.
func NewHTTPExtractor(url string, opts ...HTTPOption) (*HTTPExtractor, error) {
	if url == "" {
		return nil, errors.New("ner: extractor url must not be empty")
	}
	e := &HTTPExtractor{
		url:      url,
		language: defaultLanguage,
		client:   &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

type extractRequest struct {
	Title    string `json:"title"`
	Preamble string `json:"html_chunk_1"`
	Content  string `json:"html_chunk_2"`
	Language string `json:"language"`
}

// Extract implements [Extractor]. Non-200 responses and responses without any
// fragment are errors.
func (e *HTTPExtractor) Extract(ctx context.Context, text string) (*Extraction, error) {
	body, err := json.Marshal(extractRequest{Content: text, Language: e.language})
	if err != nil {
		return nil, fmt.Errorf("ner: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ner: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ner: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ner: server returned HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	ext, err := DecodeExtraction(resp.Body)
	if err != nil {
		return nil, err
	}
	if ext.Empty() {
		return nil, errors.New("ner: empty extraction response")
	}
	return ext, nil
}
