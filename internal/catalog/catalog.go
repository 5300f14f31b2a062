// Package catalog holds the reference catalog of listed companies that entity
// candidates are resolved against.
//
// A [Snapshot] is an immutable, precomputed view of one catalog fetch. The
// [Refresher] owns the current snapshot, rebuilds it from a [Source] on an
// interval and publishes it with an atomic pointer swap, so readers never
// observe a half-built snapshot and never block a refresh.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ExchangePlatformIndustry marks catalog rows that describe trading venues
// rather than listed companies. Such rows are never matchable.
const ExchangePlatformIndustry = "Exchange Platform"

// Row is one catalog entry as delivered by the upstream catalog API.
type Row struct {
	CompanyCode      string `json:"CompanyCode"`
	CompanyName      string `json:"CompanyName"`
	ShortCompanyName string `json:"ShortCompanyName"`
	TickerName       string `json:"TickerName"`
	IndustryName     string `json:"IndustryName"`
}

// UnmarshalJSON accepts CompanyCode as either a JSON string or a JSON number;
// the upstream API has served both. Null fields decode to "".
func (r *Row) UnmarshalJSON(data []byte) error {
	type plain Row
	var aux struct {
		plain
		CompanyCode json.RawMessage `json:"CompanyCode"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = Row(aux.plain)

	raw := bytes.TrimSpace(aux.CompanyCode)
	switch {
	case len(raw) == 0, bytes.Equal(raw, []byte("null")):
		r.CompanyCode = ""
	case raw[0] == '"':
		if err := json.Unmarshal(raw, &r.CompanyCode); err != nil {
			return fmt.Errorf("catalog: decode CompanyCode: %w", err)
		}
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return fmt.Errorf("catalog: decode CompanyCode: %w", err)
		}
		r.CompanyCode = n.String()
	}
	return nil
}

// Record is a matchable company with its precomputed comparison forms.
// Records are immutable once built by [NewSnapshot].
type Record struct {
	Code      string
	Name      string
	ShortName string
	Ticker    string
	Industry  string

	// NormalizedName, NormalizedShortName and NormalizedTicker are the
	// display fields passed through normalize.Name.
	NormalizedName      string
	NormalizedShortName string
	NormalizedTicker    string

	// CleanName is NormalizedName with common corporate words removed.
	CleanName string

	// CleanWords is the token set of CleanName.
	CleanWords map[string]struct{}
}
