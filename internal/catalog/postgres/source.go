// Package postgres provides a [catalog.Source] that reads the company catalog
// from a PostgreSQL table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/ipomatch/internal/catalog"
)

// DefaultTable is the catalog table read when none is configured.
const DefaultTable = "companies"

var _ catalog.Source = (*Source)(nil)

// Source reads catalog rows from a table with the columns company_code,
// company_name, short_company_name, ticker_name and industry_name. NULL
// values read as empty strings.
//
// All methods are safe for concurrent use.
type Source struct {
	pool  *pgxpool.Pool
	query string
}

// NewSource connects to the database at dsn and verifies the connection.
// table may be schema-qualified ("public.companies"); an empty table selects
// [DefaultTable].
func NewSource(ctx context.Context, dsn, table string) (*Source, error) {
	query, err := buildQuery(table)
	if err != nil {
		return nil, err
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres catalog: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres catalog: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres catalog: ping: %w", err)
	}
	return &Source{pool: pool, query: query}, nil
}

// Fetch implements [catalog.Source].
func (s *Source) Fetch(ctx context.Context) ([]catalog.Row, error) {
	rows, err := s.pool.Query(ctx, s.query)
	if err != nil {
		return nil, fmt.Errorf("postgres catalog: query: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Row, error) {
		var r catalog.Row
		err := row.Scan(&r.CompanyCode, &r.CompanyName, &r.ShortCompanyName, &r.TickerName, &r.IndustryName)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres catalog: scan: %w", err)
	}
	return out, nil
}

// Ping checks database connectivity. It is shaped for use as a health check.
func (s *Source) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Source) Close() {
	s.pool.Close()
}

// buildQuery returns the catalog SELECT for table with the identifier quoted.
func buildQuery(table string) (string, error) {
	if table == "" {
		table = DefaultTable
	}
	parts := strings.Split(table, ".")
	if len(parts) > 2 {
		return "", fmt.Errorf("postgres catalog: invalid table %q", table)
	}
	for _, p := range parts {
		if p == "" {
			return "", errors.New("postgres catalog: table name has an empty component")
		}
	}
	ident := pgx.Identifier(parts).Sanitize()
	return "SELECT COALESCE(company_code::text, ''), COALESCE(company_name, ''), " +
		"COALESCE(short_company_name, ''), COALESCE(ticker_name, ''), COALESCE(industry_name, '') " +
		"FROM " + ident + " ORDER BY company_code", nil
}
