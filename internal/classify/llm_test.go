package classify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseVerdict(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{in: `{"is_finance": true}`, want: true},
		{in: `{"is_finance": false}`, want: false},
		{in: "```json\n{\"is_finance\": true}\n```", want: true},
		{in: "Yes.", want: true},
		{in: " no ", want: false},
		{in: "TRUE", want: true},
		{in: "maybe", wantErr: true},
		{in: `{"verdict": true}`, wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseVerdict(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseVerdict(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseVerdict(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := truncate("₹500 crore", 4); got != "₹500" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
}

func TestNewLLMClassifier_RequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := NewLLMClassifier("", ""); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func TestLLMClassifier_IsFinance(t *testing.T) {
	t.Parallel()

	var gotModel, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		var req struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "{\"is_finance\": true}"}
			}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer srv.Close()

	c, err := NewLLMClassifier("sk-test", "", WithBaseURL(srv.URL+"/v1/"), WithMaxRetries(0))
	if err != nil {
		t.Fatal(err)
	}
	ok, err := c.IsFinance(context.Background(), "Acme Ltd files DRHP for a ₹500 crore IPO")
	if err != nil {
		t.Fatalf("IsFinance: %v", err)
	}
	if !ok {
		t.Error("IsFinance = false, want true")
	}
	if gotModel != defaultLLMModel {
		t.Errorf("model = %q, want %q", gotModel, defaultLLMModel)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestLLMClassifier_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": {"message": "overloaded"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewLLMClassifier("sk-test", "gpt-4o", WithBaseURL(srv.URL+"/v1/"), WithMaxRetries(0))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.IsFinance(context.Background(), "text"); err == nil {
		t.Fatal("expected error")
	}
}
