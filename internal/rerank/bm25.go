package rerank

import (
	"math"
	"strings"
)

// Okapi BM25 parameters.
const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// Tokenize lower-cases text and splits it on whitespace.
func Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// index is an immutable BM25 index over a small tokenised corpus.
type index struct {
	k1, b  float64
	tf     []map[string]int
	length []int
	avgLen float64
	idf    map[string]float64
}

func newIndex(docs [][]string, k1, b float64) *index {
	idx := &index{
		k1:     k1,
		b:      b,
		tf:     make([]map[string]int, len(docs)),
		length: make([]int, len(docs)),
		idf:    make(map[string]float64),
	}

	df := make(map[string]int)
	total := 0
	for i, doc := range docs {
		idx.length[i] = len(doc)
		total += len(doc)
		tf := make(map[string]int, len(doc))
		for _, tok := range doc {
			if tf[tok] == 0 {
				df[tok]++
			}
			tf[tok]++
		}
		idx.tf[i] = tf
	}
	if len(docs) > 0 {
		idx.avgLen = float64(total) / float64(len(docs))
	}

	// ln(1 + (N-n+0.5)/(n+0.5)) is never negative, so a term present in
	// most documents still ranks its documents above those without it.
	n := float64(len(docs))
	for term, f := range df {
		idx.idf[term] = math.Log(1 + (n-float64(f)+0.5)/(float64(f)+0.5))
	}
	return idx
}

// score returns the BM25 score of document i for the query tokens. Repeated
// query tokens contribute once per occurrence.
func (idx *index) score(i int, query []string) float64 {
	if idx.avgLen == 0 {
		return 0
	}
	tf := idx.tf[i]
	norm := idx.k1 * (1 - idx.b + idx.b*float64(idx.length[i])/idx.avgLen)
	var s float64
	for _, q := range query {
		f := float64(tf[q])
		if f == 0 {
			continue
		}
		s += idx.idf[q] * f * (idx.k1 + 1) / (f + norm)
	}
	return s
}

// Scores returns the BM25 score of every document in docs against query,
// aligned with docs.
func Scores(docs [][]string, query []string, k1, b float64) []float64 {
	idx := newIndex(docs, k1, b)
	out := make([]float64, len(docs))
	for i := range docs {
		out[i] = idx.score(i, query)
	}
	return out
}
