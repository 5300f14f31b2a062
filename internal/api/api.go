// Package api serves the entity resolution HTTP endpoints.
//
//	GET  /health               static liveness answer
//	POST /extract-entities/    classify, extract, match and rerank an article
//	POST /match                match and rerank caller-supplied entities
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrWong99/ipomatch/internal/catalog"
	"github.com/MrWong99/ipomatch/internal/classify"
	"github.com/MrWong99/ipomatch/internal/matcher"
	"github.com/MrWong99/ipomatch/internal/ner"
	"github.com/MrWong99/ipomatch/internal/normalize"
	"github.com/MrWong99/ipomatch/internal/observe"
)

// DefaultMaxBodyBytes bounds request bodies.
const DefaultMaxBodyBytes = 1 << 20

// Snapshots returns the catalog snapshot to match against.
type Snapshots interface {
	Current() *catalog.Snapshot
}

// Matcher resolves a candidate batch against a snapshot.
type Matcher interface {
	Match(ctx context.Context, snap *catalog.Snapshot, candidates []matcher.Candidate) ([]matcher.Match, error)
}

// Reranker orders matches by relevance to a query.
type Reranker interface {
	Rerank(ctx context.Context, matches []matcher.Match, query string) []matcher.Match
}

// Deps are the collaborators a [Handler] needs.
type Deps struct {
	Snapshots Snapshots
	Matcher   Matcher
	Reranker  Reranker
	Extractor ner.Extractor
}

// Option is a functional option for configuring a [Handler].
type Option func(*Handler)

// WithClassifier gates /extract-entities/ on c. Without it every article is
// treated as relevant.
func WithClassifier(c classify.Classifier) Option {
	return func(h *Handler) {
		if c != nil {
			h.classifier = c
		}
	}
}

// WithMaxTextLength bounds the preprocessed article text in runes.
func WithMaxTextLength(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxTextLen = n
		}
	}
}

// WithMaxBodyBytes bounds request bodies. The default is [DefaultMaxBodyBytes].
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

// Handler serves the API routes. It is safe for concurrent use.
type Handler struct {
	deps       Deps
	classifier classify.Classifier
	maxTextLen int
	maxBody    int64
}

// New returns a [Handler] over deps.
func New(deps Deps, opts ...Option) *Handler {
	h := &Handler{
		deps:       deps,
		classifier: classify.Always,
		maxTextLen: normalize.DefaultMaxTextLength,
		maxBody:    DefaultMaxBodyBytes,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("POST /extract-entities/", h.handleExtract)
	mux.HandleFunc("POST /match", h.handleMatch)
}

const notRelevantMessage = "Not a relevant ipo/company article"

type articleRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type extractResponse struct {
	Matches           []matcher.Match `json:"matches"`
	ExtractedEntities entityReport    `json:"extracted_entities"`
	Status            bool            `json:"status"`
}

type rejectedResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
}

type matchRequest struct {
	Entities []matcher.Candidate `json:"entities"`
	Query    string              `json:"query"`
}

type matchResponse struct {
	Matches []matcher.Match `json:"matches"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "Healthy"})
}

// handleExtract handles POST /extract-entities/.
func (h *Handler) handleExtract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := observe.Logger(ctx)

	var req articleRequest
	if !h.decode(w, r, &req) {
		return
	}
	query := req.Title + " " + req.Content

	relevant, err := h.classifier.IsFinance(ctx, query)
	if err != nil {
		log.Error("finance classification failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Detail: "Finance classification failed."})
		return
	}
	if !relevant {
		writeJSON(w, http.StatusOK, rejectedResponse{Status: false, Message: notRelevantMessage})
		return
	}

	if h.deps.Extractor == nil {
		log.Error("entity extraction failed", "err", "no extractor configured")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "Entity extraction failed."})
		return
	}
	extraction, err := h.deps.Extractor.Extract(ctx, normalize.PreprocessText(req.Content, h.maxTextLen))
	if err == nil && extraction.Empty() {
		err = ner.ErrExtractionFailed
	}
	if err != nil {
		log.Error("entity extraction failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "Entity extraction failed."})
		return
	}

	entities := extraction.Entities()
	candidates := make([]matcher.Candidate, len(entities))
	for i, e := range entities {
		candidates[i] = matcher.Candidate{Name: e.Name}
	}

	matches, ok := h.match(w, r, candidates, query)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, extractResponse{
		Matches:           matches,
		ExtractedEntities: newEntityReport(entities, matches),
		Status:            true,
	})
}

// handleMatch handles POST /match.
func (h *Handler) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if !h.decode(w, r, &req) {
		return
	}
	matches, ok := h.match(w, r, req.Entities, req.Query)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, matchResponse{Matches: matches})
}

// match resolves candidates against the current snapshot and reranks the
// result. On failure it writes the error response and returns false.
func (h *Handler) match(w http.ResponseWriter, r *http.Request, candidates []matcher.Candidate, query string) ([]matcher.Match, bool) {
	ctx := r.Context()
	matches, err := h.deps.Matcher.Match(ctx, h.deps.Snapshots.Current(), candidates)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, false
		}
		observe.Logger(ctx).Error("entity matching failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "Entity matching failed."})
		return nil, false
	}
	return h.deps.Reranker.Rerank(ctx, matches, query), true
}

// decode reads a JSON body into v. On failure it writes a 400 and returns
// false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Detail: "request body too large"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
