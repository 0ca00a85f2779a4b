// Package store implements the domain-indexed rule store and its lookup
// cache: a single-table SQLite index of (domain_key, category_id,
// is_whitelist, source), bulk-ingested inside a transaction, queried
// via a subdomain fan-out, and memoised with a short-TTL cache.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	migsqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/log"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/abpcore/filterengine"
	"github.com/abpcore/filterengine/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// errReadOnly is returned by Ingest once FinalizeForRead has been called.
const errReadOnly errors.Error = "store is finalized for read-only access"

// Store is the rule store's writer-exclusive, reader-concurrent handle.
// Ingest holds an exclusive lock for the duration of a bulk transaction;
// GetFiltersForDomain and the cache are safe under concurrent read.
type Store struct {
	conn *sql.DB
	mu   sync.Mutex // serialises Ingest calls; readers never take this

	cache    *lookupCache
	readOnly bool
}

// Open opens or creates the SQLite-backed rule store described by cfg,
// applying write-throughput pragmas and running schema migrations.
func Open(cfg config.Store) (*Store, error) {
	if cfg.Overwrite && cfg.Path != ":memory:" && cfg.Path != "" {
		if err := os.Remove(cfg.Path); err != nil && !os.IsNotExist(err) {
			return nil, errors.Annotate(err, "removing existing store file: %w")
		}
	}

	dsn := cfg.Path
	if cfg.UseMemory || cfg.Path == "" || cfg.Path == ":memory:" {
		dsn = "file::memory:?cache=shared"
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Annotate(err, "opening store: %w")
	}

	if cfg.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	s := &Store{
		conn:  conn,
		cache: newLookupCache(cfg.CacheTTL),
	}

	if err = s.tuneForBulkWrite(); err != nil {
		conn.Close()
		return nil, err
	}

	if err = s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}

	return s, nil
}

// tuneForBulkWrite disables fsync-on-commit, keeps the rollback journal
// in memory rather than on disk (journaling itself stays on), and raises
// the page-cache budget, trading durability for bulk-load throughput.
// These are throughput knobs, not correctness requirements: a failure
// here is logged, not fatal.
func (s *Store) tuneForBulkWrite() error {
	pragmas := []string{
		"PRAGMA synchronous = OFF",
		"PRAGMA journal_mode = MEMORY",
		"PRAGMA cache_size = -20000",
	}
	for _, p := range pragmas {
		if _, err := s.conn.Exec(p); err != nil {
			log.Debug("store: pragma %q failed: %s", p, err)
		}
	}
	return nil
}

func (s *Store) migrate() (err error) {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return errors.Annotate(err, "migration source: %w")
	}

	dbDriver, err := migsqlite.WithInstance(s.conn, &migsqlite.Config{})
	if err != nil {
		return errors.Annotate(err, "migration driver: %w")
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return errors.Annotate(err, "migrator: %w")
	}

	if err = m.Up(); err != nil && err != migrate.ErrNoChange {
		return errors.Annotate(err, "running migrations: %w")
	}

	return nil
}

// Ingest parses each line as category categoryID and inserts it into the
// store inside a single transaction. Element-hide rules are counted as
// failures of this URL-filter ingest path, since they have no row to
// store here. Ingest invalidates the lookup cache.
func (s *Store) Ingest(lines []string, categoryID uint16) (loaded, failed int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readOnly {
		return 0, 0, errReadOnly
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return 0, 0, errors.Annotate(err, "beginning ingest transaction: %w")
	}

	stmt, err := tx.Prepare(
		`INSERT INTO UrlFiltersIndex (Domains, CategoryId, IsWhitelist, Source) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		_ = tx.Rollback()
		return 0, 0, errors.Annotate(err, "preparing insert: %w")
	}
	defer stmt.Close()

	for _, line := range lines {
		f, perr := filterengine.Parse(line, categoryID)
		if perr != nil {
			failed++
			continue
		}

		uf, ok := f.(*filterengine.UrlFilter)
		if !ok {
			// HtmlFilter: parsed and categorised elsewhere, but not a
			// URL filter, so there's no row for it in this table.
			failed++
			continue
		}

		if ierr := s.insertRows(stmt, uf, line, categoryID); ierr != nil {
			_ = tx.Rollback()
			return loaded, failed, ierr
		}
		loaded++
	}

	if err = tx.Commit(); err != nil {
		return loaded, failed, errors.Annotate(err, "committing ingest transaction: %w")
	}

	s.cache.reset()

	return loaded, failed, nil
}

func (s *Store) insertRows(stmt *sql.Stmt, uf *filterengine.UrlFilter, source string, categoryID uint16) error {
	if len(uf.ApplicableDomains) == 0 {
		_, err := stmt.Exec(filterengine.GlobalDomainKey, categoryID, uf.IsException, source)
		return err
	}

	for domain := range uf.ApplicableDomains {
		if _, err := stmt.Exec(domain, categoryID, uf.IsException, source); err != nil {
			return err
		}
	}
	return nil
}

// FinalizeForRead creates the supporting indexes on (Domains),
// (IsWhitelist), and (Domains, IsWhitelist), and marks the store
// query-only. Index creation is deferred this late so a bulk Ingest
// isn't paying to keep them up to date row by row.
func (s *Store) FinalizeForRead() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stmts := []string{
		`CREATE INDEX IF NOT EXISTS idx_urlfiltersindex_domains ON UrlFiltersIndex (Domains)`,
		`CREATE INDEX IF NOT EXISTS idx_urlfiltersindex_whitelist ON UrlFiltersIndex (IsWhitelist)`,
		`CREATE INDEX IF NOT EXISTS idx_urlfiltersindex_domains_whitelist ON UrlFiltersIndex (Domains, IsWhitelist)`,
	}
	for _, stmt := range stmts {
		if _, err := s.conn.Exec(stmt); err != nil {
			return errors.Annotate(err, "creating index: %w")
		}
	}

	s.readOnly = true
	return nil
}

// GetFiltersForDomain expands host into its sequence of parent-domain
// suffixes, probes the store for each, and returns the concatenated,
// freshly re-parsed result, caching it under (host, wantWhitelist). Pass
// filterengine.GlobalDomainKey for rules with no applicable domain.
func (s *Store) GetFiltersForDomain(ctx context.Context, host string, wantWhitelist bool) ([]*filterengine.UrlFilter, error) {
	if host == "" {
		host = filterengine.GlobalDomainKey
	}

	if cached, ok := s.cache.get(host, wantWhitelist); ok {
		return cached, nil
	}

	var result []*filterengine.UrlFilter
	for _, suffix := range expandSuffixes(host) {
		rows, err := s.conn.QueryContext(
			ctx,
			`SELECT CategoryId, Source FROM UrlFiltersIndex WHERE Domains = ? AND IsWhitelist = ?`,
			suffix, wantWhitelist,
		)
		if err != nil {
			return nil, errors.Annotate(err, "querying domain %q: %w", suffix)
		}

		filters, err := scanFilters(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, filters...)
	}

	s.cache.set(host, wantWhitelist, result)
	return result, nil
}

func scanFilters(rows *sql.Rows) (filters []*filterengine.UrlFilter, err error) {
	defer func() { err = errors.WithDeferred(err, rows.Close()) }()

	for rows.Next() {
		var categoryID uint16
		var source string
		if err = rows.Scan(&categoryID, &source); err != nil {
			return nil, errors.Annotate(err, "scanning row: %w")
		}

		// Re-parsing on lookup is deliberate: the parser is faster
		// than any general-purpose deserialiser for these rules, and
		// the lookup cache amortises the repeat cost.
		f, perr := filterengine.Parse(source, categoryID)
		if perr != nil {
			log.Debug("store: stored rule failed to re-parse: %q", source)
			continue
		}
		if uf, ok := f.(*filterengine.UrlFilter); ok {
			filters = append(filters, uf)
		}
	}
	if rerr := rows.Err(); rerr != nil {
		return filters, errors.Annotate(rerr, "iterating rows: %w")
	}
	return filters, nil
}

// expandSuffixes returns host followed by each of its parent-domain
// suffixes: "a.b.c.com" -> ["a.b.c.com", "b.c.com", "c.com", "com"].
func expandSuffixes(host string) []string {
	var out []string
	for {
		out = append(out, host)
		idx := -1
		for i := 0; i < len(host); i++ {
			if host[i] == '.' {
				idx = i
				break
			}
		}
		if idx < 0 {
			break
		}
		host = host[idx+1:]
	}
	return out
}

// Close releases the store's connection and drops every cached filter
// list.
func (s *Store) Close() error {
	s.cache.reset()
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}
	return nil
}
