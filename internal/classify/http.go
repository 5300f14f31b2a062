package classify

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

// HTTPClassifier asks a classification service over HTTP. It posts
// {"text": ...} and expects {"is_finance": bool}.
type HTTPClassifier struct {
	url    string
	client *http.Client
}

var _ Classifier = (*HTTPClassifier)(nil)

// NewHTTPClassifier returns an [HTTPClassifier] for url. A non-positive
// timeout selects 10s.
func NewHTTPClassifier(url string, timeout time.Duration) (*HTTPClassifier, error) {
	if url == "" {
		return nil, errors.New("classify: http classifier url must not be empty")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClassifier{url: url, client: &http.Client{Timeout: timeout}}, nil
}

// IsFinance implements [Classifier].
func (c *HTTPClassifier) IsFinance(ctx context.Context, text string) (bool, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return false, fmt.Errorf("classify: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("classify: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("classify: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("classify: server returned HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	var out struct {
		IsFinance *bool `json:"is_finance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("classify: parse response: %w", err)
	}
	if out.IsFinance == nil {
		return false, errors.New("classify: response missing is_finance")
	}
	return *out.IsFinance, nil
}
