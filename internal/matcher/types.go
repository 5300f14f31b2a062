package matcher

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Candidate is one entity string extracted from an article, to be resolved
// against the catalog.
type Candidate struct {
	// Name is the entity text exactly as extracted.
	Name string `json:"name"`
	// Context is optional surrounding text used by the reranker.
	Context string `json:"context,omitempty"`
}

// UnmarshalJSON accepts either a bare JSON string (the entity name) or an
// object with name and context fields.
func (c *Candidate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		c.Context = ""
		return json.Unmarshal(data, &c.Name)
	}
	type plain Candidate
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("matcher: decode candidate: %w", err)
	}
	*c = Candidate(p)
	return nil
}

// Match is an accepted resolution of a [Candidate] to a catalog record.
type Match struct {
	EntityName     string  `json:"entity_name"`
	MatchedName    string  `json:"matched_name"`
	CompanyCode    string  `json:"company_code"`
	TickerName     string  `json:"ticker_name"`
	MatchScore     float64 `json:"match_score"`
	Context        string  `json:"-"`
	RelevanceScore float64 `json:"relevance_score"`
}
