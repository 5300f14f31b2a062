package api

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/MrWong99/ipomatch/internal/matcher"
	"github.com/MrWong99/ipomatch/internal/ner"
)

// entityReport is the extracted_entities object: every extracted entity in
// extraction order, flagged with whether it produced a match.
type entityReport []reportedEntity

type reportedEntity struct {
	name    string
	Values  json.RawMessage `json:"values"`
	Matched bool            `json:"entity_matched"`
}

// newEntityReport flags each entity whose trimmed, lower-cased name equals
// the trimmed, lower-cased entity name of an accepted match.
func newEntityReport(entities []ner.Entity, matches []matcher.Match) entityReport {
	matched := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		matched[foldName(m.EntityName)] = struct{}{}
	}

	report := make(entityReport, len(entities))
	for i, e := range entities {
		_, ok := matched[foldName(e.Name)]
		values := e.Values
		if len(values) == 0 {
			values = json.RawMessage("null")
		}
		report[i] = reportedEntity{name: e.Name, Values: values, Matched: ok}
	}
	return report
}

func foldName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MarshalJSON writes the report as a JSON object keyed by entity name,
// keeping extraction order.
func (r entityReport) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
