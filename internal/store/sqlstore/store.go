// Package sqlstore implements store.Store on top of sqlx. It runs embedded
// on SQLite (modernc.org/sqlite) or against a shared PostgreSQL database.
//
// Each collection is a table with a primary key column, one text column per
// secondary index and an opaque data column.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"news_offline/internal/domain"
	"news_offline/internal/store"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Store struct {
	driver string
	dsn    string
	logger *slog.Logger

	mu      sync.RWMutex
	db      *sqlx.DB
	tx      *TransactionManager
	dialect dialect
}

func New(driver, dsn string, logger *slog.Logger) *Store {
	return &Store{
		driver: driver,
		dsn:    dsn,
		logger: logger.With("component", "sqlstore", "driver", driver),
	}
}

// SQLiteDSN builds a modernc.org/sqlite DSN for a database file.
func SQLiteDSN(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
}

func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := dialects[s.driver]
	if !ok {
		return fmt.Errorf("%w: unsupported driver %q", domain.ErrStoreUnavailable, s.driver)
	}
	s.dialect = d

	if s.db == nil {
		if s.driver == DriverSQLite {
			if path := sqlitePath(s.dsn); path != "" {
				if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
					return fmt.Errorf("%w: create store directory: %w", domain.ErrStoreUnavailable, err)
				}
			}
		}

		db, err := sqlx.Open(s.driver, s.dsn)
		if err != nil {
			return fmt.Errorf("%w: open %s: %w", domain.ErrStoreUnavailable, s.driver, err)
		}
		if s.driver == DriverSQLite {
			// SQLite doesn't handle multiple writers well
			db.SetMaxOpenConns(1)
			db.SetMaxIdleConns(1)
			db.SetConnMaxLifetime(time.Hour)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return fmt.Errorf("%w: ping %s: %w", domain.ErrStoreUnavailable, s.driver, err)
		}
		s.db = db
		s.tx = NewTransactionManager(db)
	}

	if err := s.migrate(ctx); err != nil {
		_ = s.db.Close()
		s.db = nil
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// DB exposes the underlying handle for tests and diagnostics.
func (s *Store) DB() *sqlx.DB {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db
}

func (s *Store) Get(ctx context.Context, c store.Collection, key string) (store.Record, error) {
	schema, err := s.begin(c)
	if err != nil {
		return store.Record{}, err
	}
	defer s.mu.RUnlock()

	query := fmt.Sprintf("SELECT %s FROM %s WHERE pk = ?", selectColumns(schema), tableName(c))
	return s.getOne(ctx, schema, query, key)
}

func (s *Store) GetByIndex(ctx context.Context, c store.Collection, index, value string) (store.Record, error) {
	schema, err := s.begin(c)
	if err != nil {
		return store.Record{}, err
	}
	defer s.mu.RUnlock()

	if _, ok := schema.Index(index); !ok {
		return store.Record{}, fmt.Errorf("%s: unknown index %q", c, index)
	}
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = ? ORDER BY pk LIMIT 1",
		selectColumns(schema), tableName(c), columnName(index),
	)
	return s.getOne(ctx, schema, query, value)
}

func (s *Store) Put(ctx context.Context, c store.Collection, rec store.Record) error {
	return s.PutMany(ctx, c, []store.Record{rec})
}

func (s *Store) PutMany(ctx context.Context, c store.Collection, recs []store.Record) error {
	if len(recs) == 0 {
		return nil
	}
	schema, err := s.begin(c)
	if err != nil {
		return err
	}
	defer s.mu.RUnlock()

	for _, rec := range recs {
		if err := store.ValidateRecord(schema, rec); err != nil {
			return err
		}
	}

	return s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, rec := range recs {
			if err := s.put(txCtx, schema, rec); err != nil {
				return fmt.Errorf("put %s/%s: %w", c, rec.Key, err)
			}
		}
		return nil
	})
}

func (s *Store) Delete(ctx context.Context, c store.Collection, key string) error {
	if _, err := s.begin(c); err != nil {
		return err
	}
	defer s.mu.RUnlock()

	_, err := s.db.ExecContext(ctx, s.db.Rebind(fmt.Sprintf("DELETE FROM %s WHERE pk = ?", tableName(c))), key)
	return err
}

func (s *Store) Scan(ctx context.Context, c store.Collection, index string, r store.Range, limit int) ([]store.Record, error) {
	schema, err := s.begin(c)
	if err != nil {
		return nil, err
	}
	defer s.mu.RUnlock()

	if _, ok := schema.Index(index); !ok {
		return nil, fmt.Errorf("%s: unknown index %q", c, index)
	}

	col := columnName(index)
	var (
		where = []string{col + " IS NOT NULL"}
		args  []any
	)
	if r.Lower != "" {
		where = append(where, col+" >= ?")
		args = append(args, r.Lower)
	}
	if r.Upper != "" {
		where = append(where, col+" < ?")
		args = append(args, r.Upper)
	}
	order := "ASC"
	if r.Reverse {
		order = "DESC"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s WHERE %s ORDER BY %s %s, pk %s",
		selectColumns(schema), tableName(c), strings.Join(where, " AND "), col, order, order)
	if limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, limit)
	}

	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(sb.String()), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Record
	for rows.Next() {
		rec, err := scanRecord(rows, schema)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) Count(ctx context.Context, c store.Collection) (int, error) {
	if _, err := s.begin(c); err != nil {
		return 0, err
	}
	defer s.mu.RUnlock()

	var n int
	err := s.db.GetContext(ctx, &n, fmt.Sprintf("SELECT COUNT(*) FROM %s", tableName(c)))
	return n, err
}

func (s *Store) NextSequence(ctx context.Context, c store.Collection) (uint64, error) {
	if _, err := s.begin(c); err != nil {
		return 0, err
	}
	defer s.mu.RUnlock()

	query := fmt.Sprintf(`
		INSERT INTO %[1]s (name, value) VALUES (?, 1)
		ON CONFLICT (name) DO UPDATE SET value = %[1]s.value + 1
		RETURNING value`, sequencesTable)

	var seq int64
	if err := s.db.QueryRowxContext(ctx, s.db.Rebind(query), string(c)).Scan(&seq); err != nil {
		return 0, err
	}
	return uint64(seq), nil
}

func (s *Store) Clear(ctx context.Context, c store.Collection) error {
	if _, err := s.begin(c); err != nil {
		return err
	}
	defer s.mu.RUnlock()

	_, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", tableName(c)))
	return err
}

// begin read-locks the store and resolves the collection schema. On success
// the caller must release the read lock.
func (s *Store) begin(c store.Collection) (store.Schema, error) {
	schema, err := store.SchemaFor(c)
	if err != nil {
		return store.Schema{}, err
	}
	s.mu.RLock()
	if s.db == nil {
		s.mu.RUnlock()
		return store.Schema{}, domain.ErrStoreUnavailable
	}
	return schema, nil
}

func (s *Store) put(ctx context.Context, schema store.Schema, rec store.Record) error {
	exec := executor(ctx, s.db)
	table := tableName(schema.Collection)

	for _, idx := range schema.Indexes {
		value := rec.Indexes[idx.Name]
		if !idx.Unique || value == "" {
			continue
		}
		query := fmt.Sprintf("DELETE FROM %s WHERE %s = ? AND pk <> ?", table, columnName(idx.Name))
		if _, err := exec.ExecContext(ctx, exec.Rebind(query), value, rec.Key); err != nil {
			return fmt.Errorf("replace %s holder: %w", idx.Name, err)
		}
	}

	cols := []string{"pk"}
	args := []any{rec.Key}
	var updates []string
	for _, idx := range schema.Indexes {
		col := columnName(idx.Name)
		cols = append(cols, col)
		args = append(args, nullable(rec.Indexes[idx.Name]))
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", col, col))
	}
	data := rec.Data
	if data == nil {
		data = []byte{}
	}
	cols = append(cols, "data")
	args = append(args, data)
	updates = append(updates, "data = excluded.data")

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (pk) DO UPDATE SET %s",
		table,
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
		strings.Join(updates, ", "),
	)
	_, err := exec.ExecContext(ctx, exec.Rebind(query), args...)
	return err
}

func (s *Store) getOne(ctx context.Context, schema store.Schema, query string, arg any) (store.Record, error) {
	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(query), arg)
	if err != nil {
		return store.Record{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return store.Record{}, err
		}
		return store.Record{}, domain.ErrNotFound
	}
	return scanRecord(rows, schema)
}

func selectColumns(schema store.Schema) string {
	cols := []string{"pk"}
	for _, idx := range schema.Indexes {
		cols = append(cols, columnName(idx.Name))
	}
	cols = append(cols, "data")
	return strings.Join(cols, ", ")
}

func scanRecord(rows *sqlx.Rows, schema store.Schema) (store.Record, error) {
	var (
		key    string
		values = make([]sql.NullString, len(schema.Indexes))
		data   []byte
	)
	dest := []any{&key}
	for i := range values {
		dest = append(dest, &values[i])
	}
	dest = append(dest, &data)

	if err := rows.Scan(dest...); err != nil {
		return store.Record{}, err
	}

	rec := store.Record{Key: key, Data: data}
	for i, idx := range schema.Indexes {
		if values[i].Valid {
			if rec.Indexes == nil {
				rec.Indexes = make(map[string]string, len(schema.Indexes))
			}
			rec.Indexes[idx.Name] = values[i].String
		}
	}
	return rec, nil
}

func nullable(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func sqlitePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return ""
	}
	return path
}

var _ store.Store = (*Store)(nil)

