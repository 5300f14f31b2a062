package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
)

const (
	defaultLLMModel = "gpt-4o-mini"

	// maxPromptRunes bounds the article text sent to the model.
	maxPromptRunes = 4000
)

const systemPrompt = `You classify news articles for an Indian capital-markets desk.
An article is relevant when it is about a listed or soon-to-be-listed company, an IPO, a public
issue, share listing, fund raising, earnings or other corporate finance news.
Reply with a single JSON object and nothing else: {"is_finance": true} or {"is_finance": false}.`

// LLMOption is a functional option for configuring an [LLMClassifier].
type LLMOption func(*llmConfig)

type llmConfig struct {
	baseURL    string
	timeout    time.Duration
	maxRetries int
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) LLMOption {
	return func(c *llmConfig) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) LLMOption {
	return func(c *llmConfig) {
		c.timeout = d
	}
}

// WithMaxRetries sets how often the client retries a failed request.
// Default: the client library's default.
func WithMaxRetries(n int) LLMOption {
	return func(c *llmConfig) {
		c.maxRetries = n
	}
}

// LLMClassifier asks an OpenAI-compatible chat model for a relevance verdict.
type LLMClassifier struct {
	client oai.Client
	model  string
}

var _ Classifier = (*LLMClassifier)(nil)

// NewLLMClassifier constructs an [LLMClassifier]. An empty model selects
// gpt-4o-mini.
func NewLLMClassifier(apiKey, model string, opts ...LLMOption) (*LLMClassifier, error) {
	if apiKey == "" {
		return nil, errors.New("classify: openai api key must not be empty")
	}
	if model == "" {
		model = defaultLLMModel
	}
	cfg := &llmConfig{maxRetries: -1}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}
	if cfg.maxRetries >= 0 {
		reqOpts = append(reqOpts, option.WithMaxRetries(cfg.maxRetries))
	}
	return &LLMClassifier{client: oai.NewClient(reqOpts...), model: model}, nil
}

// IsFinance implements [Classifier].
func (c *LLMClassifier) IsFinance(ctx context.Context, text string) (bool, error) {
	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(systemPrompt),
			oai.UserMessage(truncate(text, maxPromptRunes)),
		},
		Temperature: param.NewOpt(0.0),
	}
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return false, fmt.Errorf("classify: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return false, errors.New("classify: empty choices in response")
	}
	return parseVerdict(resp.Choices[0].Message.Content)
}

// parseVerdict accepts the JSON object the prompt asks for, optionally inside
// a code fence, or a bare yes/no/true/false.
func parseVerdict(content string) (bool, error) {
	s := strings.TrimSpace(content)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	var out struct {
		IsFinance *bool `json:"is_finance"`
	}
	if err := json.Unmarshal([]byte(s), &out); err == nil && out.IsFinance != nil {
		return *out.IsFinance, nil
	}
	switch strings.ToLower(strings.Trim(s, " .\"'")) {
	case "yes", "true":
		return true, nil
	case "no", "false":
		return false, nil
	}
	return false, fmt.Errorf("classify: unparseable verdict %q", content)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
