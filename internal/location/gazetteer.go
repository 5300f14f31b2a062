package location

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// GeoNames postal-code dump columns.
const (
	colCountry = iota
	colPostalCode
	colPlace
	colState
	colStateCode
	colDistrict
	colDistrictCode
	colAdmin3
	colAdmin3Code
	colLatitude
	colLongitude
	colAccuracy

	minColumns = colDistrict + 1
)

// Gazetteer is an immutable set of Indian place, district and state names
// built from a GeoNames postal-code dump (the IN.txt file). Only rows that
// carry a state are indexed. Lookups are case-insensitive.
//
// A nil *Gazetteer is valid and contains nothing.
type Gazetteer struct {
	names map[string]struct{}
}

// LoadGazetteer reads a GeoNames dump from path.
func LoadGazetteer(path string) (*Gazetteer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("location: open gazetteer: %w", err)
	}
	defer f.Close()

	g, err := ReadGazetteer(f)
	if err != nil {
		return nil, fmt.Errorf("location: read gazetteer %q: %w", path, err)
	}
	return g, nil
}

// ReadGazetteer parses a tab-separated GeoNames dump from r.
func ReadGazetteer(r io.Reader) (*Gazetteer, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	g := &Gazetteer{names: make(map[string]struct{})}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) < minColumns {
			continue
		}
		state := strings.TrimSpace(rec[colState])
		if state == "" {
			continue
		}
		g.add(state)
		g.add(rec[colPlace])
		g.add(rec[colDistrict])
	}
	return g, nil
}

func (g *Gazetteer) add(name string) {
	if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
		g.names[name] = struct{}{}
	}
}

// Contains reports whether name is a known place, district or state.
func (g *Gazetteer) Contains(name string) bool {
	if g == nil {
		return false
	}
	_, ok := g.names[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Len returns the number of distinct indexed names.
func (g *Gazetteer) Len() int {
	if g == nil {
		return 0
	}
	return len(g.names)
}
