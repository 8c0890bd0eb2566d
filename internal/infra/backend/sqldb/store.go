// Package sqldb implements core.Backend on a relational table with the
// layout {key, value, timestamp, ttl}. It serves sqlite and postgres
// URIs through database/sql; rows carry their own expiry and are
// enforced on read.
package sqldb

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"anystore/pkg/backend/core"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver
)

var _ core.Backend = (*Store)(nil)

const (
	driverSQLite   = "sqlite"
	driverPostgres = "pgx"

	// DefaultTable is used when no table is configured.
	DefaultTable = "anystore"
)

var identRx = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config carries driver settings beyond the connection URI.
type Config struct {
	// Table overrides DefaultTable.
	Table string
}

// Store is a relational key-value backend. Keys are stored verbatim,
// values as blobs, timestamps as unix nanoseconds and ttl as seconds.
type Store struct {
	db     *sql.DB
	driver string
	table  string
	now    func() time.Time
}

// Open connects to the database named by uri, bootstraps the table and
// verifies connectivity. Supported schemes are sqlite, sqlite3,
// postgres and postgresql.
func Open(ctx context.Context, uri string, cfg Config) (*Store, error) {
	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}
	if !identRx.MatchString(table) {
		return nil, fmt.Errorf("sqldb: invalid table name %q", table)
	}
	driver, dsn, err := resolveDSN(uri)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == driverSQLite {
		// sqlite handles a single writer; serialize the pool.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping %s: %v", core.ErrUnavailable, driver, err)
	}
	s := &Store{db: db, driver: driver, table: table, now: time.Now}
	if err := s.ensureTable(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func resolveDSN(uri string) (driver, dsn string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("sqldb: parse uri: %w", err)
	}
	switch u.Scheme {
	case "sqlite", "sqlite3":
		path := u.Host + u.Path
		if path == "" {
			return "", "", fmt.Errorf("sqldb: sqlite uri %q names no database file", uri)
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return "", "", fmt.Errorf("create dirs: %w", err)
			}
		}
		return driverSQLite, path, nil
	case "postgres", "postgresql":
		return driverPostgres, uri, nil
	default:
		return "", "", fmt.Errorf("%w: no sql driver for scheme %q", core.ErrUnavailable, u.Scheme)
	}
}

func (s *Store) ensureTable(ctx context.Context) error {
	valueType := "BLOB"
	if s.driver == driverPostgres {
		valueType = "BYTEA"
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key TEXT PRIMARY KEY,
		value %s,
		timestamp BIGINT NOT NULL,
		ttl BIGINT
	)`, s.table, valueType)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create %s table: %w", s.table, err)
	}
	return nil
}

// Scheme returns the driver identifier.
func (s *Store) Scheme() core.Scheme { return core.SchemeSQL }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	row, err := s.fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	return row.value, nil
}

func (s *Store) ReadRange(ctx context.Context, key string, offset, length int64) ([]byte, error) {
	row, err := s.fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	return core.RangeSlice(row.value, offset, length), nil
}

func (s *Store) Write(ctx context.Context, key string, r io.Reader, opts core.WriteOptions) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	var ttl int64
	if opts.TTL > 0 {
		ttl = int64(opts.TTL / time.Second)
		if ttl == 0 {
			ttl = 1
		}
	}
	q := s.bind(fmt.Sprintf(`INSERT INTO %s (key, value, timestamp, ttl) VALUES (?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, timestamp = excluded.timestamp, ttl = excluded.ttl`, s.table))
	if _, err := s.db.ExecContext(ctx, q, key, data, s.now().UTC().UnixNano(), ttl); err != nil {
		return fmt.Errorf("upsert %q: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, s.bind(fmt.Sprintf(`DELETE FROM %s WHERE key = ?`, s.table)), key)
	if err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", core.ErrNotFound, key)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.fetch(ctx, key)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Stat(ctx context.Context, key string) (core.Info, error) {
	row, err := s.fetch(ctx, key)
	if err != nil {
		return core.Info{}, err
	}
	ts := time.Unix(0, row.timestamp).UTC()
	return core.Info{
		Key:       key,
		Size:      int64(len(row.value)),
		CreatedAt: ts,
		UpdatedAt: ts,
	}, nil
}

func (s *Store) List(ctx context.Context, base string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		q := fmt.Sprintf(`SELECT key, timestamp, ttl FROM %s`, s.table)
		var args []any
		if base != "" {
			q += ` WHERE key = ? OR key LIKE ? ESCAPE '\'`
			args = append(args, base, likePrefix(base))
		}
		q += ` ORDER BY key`
		rows, err := s.db.QueryContext(ctx, s.bind(q), args...)
		if err != nil {
			yield("", fmt.Errorf("select keys: %w", err))
			return
		}
		defer func() { _ = rows.Close() }()
		for rows.Next() {
			var (
				key       string
				timestamp int64
				ttl       sql.NullInt64
			)
			if err := rows.Scan(&key, &timestamp, &ttl); err != nil {
				yield("", fmt.Errorf("scan key: %w", err))
				return
			}
			if s.expired(timestamp, ttl.Int64) {
				continue
			}
			if !yield(key, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield("", fmt.Errorf("iterate keys: %w", err))
		}
	}
}

func (s *Store) Glob(ctx context.Context, pattern string) iter.Seq2[string, error] {
	rx, err := core.TranslateGlob(pattern)
	if err != nil {
		return core.ErrSeq(err)
	}
	return func(yield func(string, error) bool) {
		for key, err := range s.List(ctx, core.GlobBase(pattern)) {
			if err != nil {
				yield("", err)
				return
			}
			if !rx.MatchString(key) {
				continue
			}
			if !yield(key, nil) {
				return
			}
		}
	}
}

func (s *Store) OpenRead(ctx context.Context, key string) (io.ReadSeekCloser, error) {
	data, err := s.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	return core.NopReadSeekCloser(bytes.NewReader(data)), nil
}

func (s *Store) OpenWrite(ctx context.Context, key string, opts core.WriteOptions) (io.WriteCloser, error) {
	return &rowWriter{ctx: ctx, store: s, key: key, opts: opts}, nil
}

// rowWriter buffers streamed content and commits the row on Close.
type rowWriter struct {
	ctx   context.Context
	store *Store
	key   string
	opts  core.WriteOptions
	buf   bytes.Buffer
}

func (w *rowWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *rowWriter) Close() error {
	return w.store.Write(w.ctx, w.key, &w.buf, w.opts)
}

// --- helpers ---

type storedRow struct {
	value     []byte
	timestamp int64
}

// fetch loads a row and enforces its ttl: expired rows are reaped and
// reported as absent.
func (s *Store) fetch(ctx context.Context, key string) (storedRow, error) {
	q := s.bind(fmt.Sprintf(`SELECT value, timestamp, ttl FROM %s WHERE key = ?`, s.table))
	var (
		row storedRow
		ttl sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, q, key).Scan(&row.value, &row.timestamp, &ttl)
	if errors.Is(err, sql.ErrNoRows) {
		return storedRow{}, fmt.Errorf("%w: %q", core.ErrNotFound, key)
	}
	if err != nil {
		return storedRow{}, fmt.Errorf("select %q: %w", key, err)
	}
	if s.expired(row.timestamp, ttl.Int64) {
		s.reap(ctx, key)
		return storedRow{}, fmt.Errorf("%w: %q expired", core.ErrNotFound, key)
	}
	return row, nil
}

func (s *Store) expired(timestamp, ttl int64) bool {
	if ttl <= 0 {
		return false
	}
	created := time.Unix(0, timestamp)
	return s.now().Sub(created) > time.Duration(ttl)*time.Second
}

func (s *Store) reap(ctx context.Context, key string) {
	q := s.bind(fmt.Sprintf(`DELETE FROM %s WHERE key = ?`, s.table))
	_, _ = s.db.ExecContext(ctx, q, key)
}

// bind rewrites ? placeholders to $n for postgres.
func (s *Store) bind(query string) string {
	if s.driver != driverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteString("$")
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func likePrefix(base string) string {
	esc := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(base)
	return esc + "/%"
}
