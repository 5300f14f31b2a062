package catalog

import (
	"strings"
	"time"

	"github.com/MrWong99/ipomatch/internal/normalize"
)

// Snapshot is an immutable, ordered set of catalog records plus parallel
// column slices aligned by record index for fast scoring.
//
// A Snapshot is never mutated after [NewSnapshot] returns, so it is safe for
// concurrent use without locking. The zero value is not usable; call
// [Empty] for a snapshot with no records.
type Snapshot struct {
	records    []Record
	cleanNames []string
	shortNames []string
	tickers    []string
	builtAt    time.Time
}

// Empty returns a snapshot with no records. Matching against it yields no
// matches.
func Empty() *Snapshot {
	return &Snapshot{builtAt: time.Now()}
}

// NewSnapshot builds a snapshot from raw catalog rows. Rows whose industry is
// [ExchangePlatformIndustry] are dropped; the relative order of the
// remaining rows is preserved and defines record indices.
func NewSnapshot(rows []Row) *Snapshot {
	s := &Snapshot{
		records:    make([]Record, 0, len(rows)),
		cleanNames: make([]string, 0, len(rows)),
		shortNames: make([]string, 0, len(rows)),
		tickers:    make([]string, 0, len(rows)),
		builtAt:    time.Now(),
	}
	for _, row := range rows {
		if row.IndustryName == ExchangePlatformIndustry {
			continue
		}
		rec := buildRecord(row)
		s.records = append(s.records, rec)
		s.cleanNames = append(s.cleanNames, rec.CleanName)
		s.shortNames = append(s.shortNames, rec.NormalizedShortName)
		s.tickers = append(s.tickers, rec.NormalizedTicker)
	}
	return s
}

func buildRecord(row Row) Record {
	normName := normalize.Name(row.CompanyName)
	clean := normalize.RemoveCommonWords(normName)

	words := strings.Fields(clean)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}

	return Record{
		Code:                row.CompanyCode,
		Name:                row.CompanyName,
		ShortName:           row.ShortCompanyName,
		Ticker:              row.TickerName,
		Industry:            row.IndustryName,
		NormalizedName:      normName,
		NormalizedShortName: normalize.Name(row.ShortCompanyName),
		NormalizedTicker:    normalize.Name(row.TickerName),
		CleanName:           clean,
		CleanWords:          set,
	}
}

// Len returns the number of records.
func (s *Snapshot) Len() int { return len(s.records) }

// Record returns the record at index i. It panics if i is out of range.
func (s *Snapshot) Record(i int) Record { return s.records[i] }

// CleanNames returns the clean company names aligned by record index.
// Callers must not modify the returned slice.
func (s *Snapshot) CleanNames() []string { return s.cleanNames }

// ShortNames returns the normalized short names aligned by record index.
// Callers must not modify the returned slice.
func (s *Snapshot) ShortNames() []string { return s.shortNames }

// Tickers returns the normalized ticker names aligned by record index.
// Callers must not modify the returned slice.
func (s *Snapshot) Tickers() []string { return s.tickers }

// CleanWords returns the clean-name token set of record i.
// Callers must not modify the returned map.
func (s *Snapshot) CleanWords(i int) map[string]struct{} { return s.records[i].CleanWords }

// BuiltAt reports when the snapshot was built.
func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }
