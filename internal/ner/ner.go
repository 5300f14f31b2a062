// Package ner talks to the named-entity extraction service that turns article
// text into candidate entity names.
//
// The service answers with one JSON object per input fragment, each mapping an
// entity string to the values the model attached to it. The order in which
// entities appear is significant: it becomes the order in which candidates
// are matched, and so decides which entity claims a company first.
package ner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ContentFragment is the request fragment carrying the article body, and the
// response fragment whose entities are matched.
const ContentFragment = "html_chunk_2"

// ErrExtractionFailed is returned when no extractor produced a usable result.
var ErrExtractionFailed = errors.New("ner: entity extraction failed")

// Extractor extracts entities from preprocessed article text.
//
// Implementations must be safe for concurrent use.
type Extractor interface {
	Extract(ctx context.Context, text string) (*Extraction, error)
}

// ExtractorFunc adapts an ordinary function to the [Extractor] interface.
type ExtractorFunc func(ctx context.Context, text string) (*Extraction, error)

// Extract implements [Extractor].
func (f ExtractorFunc) Extract(ctx context.Context, text string) (*Extraction, error) {
	return f(ctx, text)
}

// Entity is one extracted entity with the raw values the service attached.
type Entity struct {
	Name   string
	Values json.RawMessage
}

// Extraction is a decoded extraction response: fragment name to its entities
// in response order.
type Extraction struct {
	Fragments map[string][]Entity
}

// Entities returns the entities of the [ContentFragment] fragment in order.
func (e *Extraction) Entities() []Entity {
	if e == nil {
		return nil
	}
	return e.Fragments[ContentFragment]
}

// Names returns the entity names of the [ContentFragment] fragment in order.
func (e *Extraction) Names() []string {
	ents := e.Entities()
	names := make([]string, len(ents))
	for i, ent := range ents {
		names[i] = ent.Name
	}
	return names
}

// Empty reports whether the response carried no fragments at all.
func (e *Extraction) Empty() bool {
	return e == nil || len(e.Fragments) == 0
}

// DecodeExtraction reads an extraction response from r. Object-valued
// fragments are decoded with their keys in document order; other top-level
// values are ignored. A JSON null decodes to an empty extraction. When a key
// repeats inside a fragment the first position and the last value win.
func DecodeExtraction(r io.Reader) (*Extraction, error) {
	dec := json.NewDecoder(r)
	ext := &Extraction{Fragments: make(map[string][]Entity)}

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("ner: decode response: %w", err)
	}
	if tok == nil {
		return ext, nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("ner: decode response: expected object, got %v", tok)
	}

	for dec.More() {
		key, err := objectKey(dec)
		if err != nil {
			return nil, err
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("ner: decode fragment %q: %w", key, err)
		}
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			continue
		}
		ents, err := decodeFragment(trimmed)
		if err != nil {
			return nil, fmt.Errorf("ner: decode fragment %q: %w", key, err)
		}
		ext.Fragments[key] = ents
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("ner: decode response: %w", err)
	}
	return ext, nil
}

func decodeFragment(raw []byte) ([]Entity, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var ents []Entity
	pos := make(map[string]int)
	for dec.More() {
		name, err := objectKey(dec)
		if err != nil {
			return nil, err
		}
		var vals json.RawMessage
		if err := dec.Decode(&vals); err != nil {
			return nil, err
		}
		if i, seen := pos[name]; seen {
			ents[i].Values = vals
			continue
		}
		pos[name] = len(ents)
		ents = append(ents, Entity{Name: name, Values: vals})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return ents, nil
}

func objectKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("ner: decode key: %w", err)
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("ner: decode key: unexpected token %v", tok)
	}
	return key, nil
}
