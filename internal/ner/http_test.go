package ner_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrWong99/ipomatch/internal/ner"
)

func TestHTTPExtractor_Extract(t *testing.T) {
	t.Parallel()

	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"html_chunk_2": {"Acme Ltd": ["ORG"], "Pune": ["LOC"]}}`))
	}))
	defer srv.Close()

	e, err := ner.NewHTTPExtractor(srv.URL, ner.WithHTTPClient(srv.Client()), ner.WithLanguage("hi"))
	if err != nil {
		t.Fatal(err)
	}
	ext, err := e.Extract(context.Background(), "Acme Ltd opens IPO in Pune")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if names := ext.Names(); len(names) != 2 || names[0] != "Acme Ltd" || names[1] != "Pune" {
		t.Errorf("Names = %q", names)
	}
	want := map[string]string{
		"title":        "",
		"html_chunk_1": "",
		"html_chunk_2": "Acme Ltd opens IPO in Pune",
		"language":     "hi",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("request %s = %q, want %q", k, got[k], v)
		}
	}
}

func TestHTTPExtractor_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"detail": "boom"}`},
		{"empty object", http.StatusOK, `{}`},
		{"null", http.StatusOK, `null`},
		{"malformed", http.StatusOK, `{"html_chunk_2": `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			e, err := ner.NewHTTPExtractor(srv.URL)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := e.Extract(context.Background(), "text"); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestHTTPExtractor_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	e, err := ner.NewHTTPExtractor(srv.URL, ner.WithTimeout(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Extract(context.Background(), "text"); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestNewHTTPExtractor_RequiresURL(t *testing.T) {
	t.Parallel()

	if _, err := ner.NewHTTPExtractor(""); err == nil {
		t.Fatal("expected error for empty url")
	}
}
