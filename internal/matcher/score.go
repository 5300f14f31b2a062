package matcher

import (
	"strings"
	"unicode/utf8"

	"github.com/MrWong99/ipomatch/internal/catalog"
	"github.com/MrWong99/ipomatch/internal/similarity"
)

const invitToken = "invit"

// query is one normalised entity with the per-query adjustments precomputed.
type query struct {
	text      string
	words     map[string]struct{}
	scoring   Scoring
	threshold float64
	// adjust is the sum of the place and InvIT adjustments; both depend only
	// on the query.
	adjust float64
}

func newQuery(text string, s Scoring, isLocation bool) query {
	fields := strings.Fields(text)
	words := make(map[string]struct{}, len(fields))
	for _, w := range fields {
		words[w] = struct{}{}
	}
	q := query{
		text:      text,
		words:     words,
		scoring:   s,
		threshold: s.threshold(utf8.RuneCountInString(text)),
	}
	if isLocation && len(words) < s.PlaceMaxWords {
		q.adjust += s.PlacePenalty
	}
	switch {
	case text == invitToken:
		q.adjust += s.InvitPenalty
	case strings.Contains(text, invitToken) && len(words) > 1:
		q.adjust += s.InvitBoost
	}
	return q
}

// score returns the total score of the query against record i of snap given
// the precomputed similarity row.
func (q query) score(snap *catalog.Snapshot, row similarity.Row, i int) float64 {
	s := q.scoring
	clean, short, ticker := snap.CleanNames()[i], snap.ShortNames()[i], snap.Tickers()[i]

	total := max(row.Clean[i], row.Short[i], row.Ticker[i])
	if strings.Contains(clean, q.text) || strings.Contains(short, q.text) || strings.Contains(ticker, q.text) {
		total += s.SubstringBoost
	}
	if clean == q.text && ticker == q.text {
		total += s.ExactBoost
	}
	if row.PartialTicker[i] > s.PartialTickerMin {
		total += s.PartialTickerBoost
	}
	if !sharesWord(q.words, snap.CleanWords(i)) {
		total += s.CoreWordPenalty
	}
	return total + q.adjust
}

// best returns the index and score of the highest-scoring record that meets
// the threshold. Ties go to the lowest index. Empty queries never match.
func (q query) best(snap *catalog.Snapshot, row similarity.Row) (idx int, score float64, ok bool) {
	if q.text == "" {
		return 0, 0, false
	}
	idx = -1
	for i := range snap.Len() {
		total := q.score(snap, row, i)
		if total < q.threshold {
			continue
		}
		if idx < 0 || total > score {
			idx, score = i, total
		}
	}
	if idx < 0 {
		return 0, 0, false
	}
	return idx, score, true
}

func sharesWord(a, b map[string]struct{}) bool {
	if len(b) < len(a) {
		a, b = b, a
	}
	for w := range a {
		if _, ok := b[w]; ok {
			return true
		}
	}
	return false
}
