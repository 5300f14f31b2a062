package matcher

// Scoring holds the thresholds and weights of the match scorer. The zero
// value is not useful; start from [DefaultScoring].
type Scoring struct {
	// LongThreshold is the minimum total score for queries longer than
	// ShortNameMaxLen runes.
	LongThreshold float64
	// ShortThreshold is the minimum total score for queries of at most
	// ShortNameMaxLen runes.
	ShortThreshold float64
	// ShortNameMaxLen is the longest query length judged by ShortThreshold.
	ShortNameMaxLen int

	// SubstringBoost applies when the query occurs literally in the clean
	// name, short name or ticker.
	SubstringBoost float64
	// ExactBoost applies when both the clean name and the ticker equal the
	// query.
	ExactBoost float64
	// PartialTickerBoost applies when the partial ticker similarity exceeds
	// PartialTickerMin.
	PartialTickerBoost float64
	PartialTickerMin   float64
	// CoreWordPenalty applies when the query shares no word with the clean
	// name.
	CoreWordPenalty float64
	// PlacePenalty applies to location queries of fewer than PlaceMaxWords
	// words.
	PlacePenalty  float64
	PlaceMaxWords int
	// InvitPenalty applies to the bare query "invit"; InvitBoost to longer
	// queries containing it.
	InvitPenalty float64
	InvitBoost   float64
}

// DefaultScoring returns the production thresholds and weights.
func DefaultScoring() Scoring {
	return Scoring{
		LongThreshold:      104,
		ShortThreshold:     90,
		ShortNameMaxLen:    3,
		SubstringBoost:     20,
		ExactBoost:         30,
		PartialTickerBoost: 15,
		PartialTickerMin:   85,
		CoreWordPenalty:    -10,
		PlacePenalty:       -30,
		PlaceMaxWords:      3,
		InvitPenalty:       -30,
		InvitBoost:         10,
	}
}

// threshold returns the acceptance threshold for a query of n runes.
func (s Scoring) threshold(n int) float64 {
	if n > s.ShortNameMaxLen {
		return s.LongThreshold
	}
	return s.ShortThreshold
}
