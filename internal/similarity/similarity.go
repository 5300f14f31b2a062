// Package similarity computes fuzzy string similarity between entity queries
// and catalog columns.
//
// Scores are on a 0–100 scale. [Ratio] is the normalised longest-common-
// subsequence similarity; [PartialRatio] is the best [Ratio] of the shorter
// string against any equally long window of the longer one.
package similarity

import (
	"context"
	"runtime"

	"github.com/antzucaro/matchr"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/ipomatch/internal/catalog"
)

// Ratio returns 100 * 2*LCS(a, b) / (len(a) + len(b)) measured in runes.
// It returns 0 when either string is empty and 100 for identical non-empty
// strings.
func Ratio(a, b string) float64 {
	la, lb := runeLen(a), runeLen(b)
	if la == 0 || lb == 0 {
		return 0
	}
	if a == b {
		return 100
	}
	lcs := matchr.LongestCommonSubsequence(a, b)
	return 100 * float64(2*lcs) / float64(la+lb)
}

// PartialRatio slides a window the length of the shorter string across the
// longer one and returns the highest [Ratio] of the shorter string against
// any window. It returns 0 when either string is empty.
func PartialRatio(a, b string) float64 {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		return 0
	}
	s := string(short)
	if len(short) == len(long) {
		return Ratio(s, string(long))
	}

	best := 0.0
	for i := 0; i+len(short) <= len(long); i++ {
		r := Ratio(s, string(long[i:i+len(short)]))
		if r > best {
			best = r
			if best == 100 {
				break
			}
		}
	}
	return best
}

// Row holds the four similarity vectors for one query, each aligned with the
// record indices of the snapshot it was computed against.
type Row struct {
	// Clean is Ratio(query, clean name).
	Clean []float64
	// Short is Ratio(query, normalized short name).
	Short []float64
	// Ticker is Ratio(query, normalized ticker).
	Ticker []float64
	// PartialTicker is PartialRatio(query, normalized ticker).
	PartialTicker []float64
}

// Compute returns the similarity vectors of query against every record in
// snap. An empty snapshot yields empty vectors.
func Compute(query string, snap *catalog.Snapshot) Row {
	n := snap.Len()
	row := Row{
		Clean:         make([]float64, n),
		Short:         make([]float64, n),
		Ticker:        make([]float64, n),
		PartialTicker: make([]float64, n),
	}
	clean, short, tickers := snap.CleanNames(), snap.ShortNames(), snap.Tickers()
	for i := range n {
		row.Clean[i] = Ratio(query, clean[i])
		row.Short[i] = Ratio(query, short[i])
		row.Ticker[i] = Ratio(query, tickers[i])
		row.PartialTicker[i] = PartialRatio(query, tickers[i])
	}
	return row
}

// Matrix computes [Compute] for every query concurrently, bounded by
// GOMAXPROCS. Rows are returned in query order. The only error is ctx's.
func Matrix(ctx context.Context, queries []string, snap *catalog.Snapshot) ([]Row, error) {
	rows := make([]Row, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, q := range queries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows[i] = Compute(q, snap)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

func runeLen(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}
