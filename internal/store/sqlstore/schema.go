package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"news_offline/internal/domain"
	"news_offline/internal/store"
)

const sequencesTable = "local_sequences"

type dialect struct {
	blobType string
	textType string
}

var dialects = map[string]dialect{
	DriverSQLite:   {blobType: "BLOB", textType: "TEXT"},
	DriverPostgres: {blobType: "BYTEA", textType: `TEXT COLLATE "C"`},
}

func tableName(c store.Collection) string {
	return "local_" + strings.ToLower(string(c))
}

func columnName(index string) string {
	return "idx_" + strings.ToLower(index)
}

func createTableSQL(d dialect, schema store.Schema) []string {
	table := tableName(schema.Collection)

	cols := []string{fmt.Sprintf("pk %s PRIMARY KEY", d.textType)}
	for _, idx := range schema.Indexes {
		cols = append(cols, fmt.Sprintf("%s %s", columnName(idx.Name), d.textType))
	}
	cols = append(cols, fmt.Sprintf("data %s NOT NULL", d.blobType))

	stmts := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(cols, ", ")),
	}
	for _, idx := range schema.Indexes {
		unique := ""
		if idx.Unique {
			unique = "UNIQUE "
		}
		stmts = append(stmts, fmt.Sprintf(
			"CREATE %sINDEX IF NOT EXISTS %s_%s ON %s (%s)",
			unique, table, columnName(idx.Name), table, columnName(idx.Name),
		))
	}
	return stmts
}

// migrate creates every collection introduced after the stored schema
// version and records the new version.
func (s *Store) migrate(ctx context.Context) error {
	exec := s.db
	if _, err := exec.ExecContext(ctx, fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (name %s PRIMARY KEY, value BIGINT NOT NULL)",
		sequencesTable, s.dialect.textType,
	)); err != nil {
		return fmt.Errorf("create sequences table: %w", err)
	}

	metaSchema, err := store.SchemaFor(store.Metadata)
	if err != nil {
		return err
	}
	for _, stmt := range createTableSQL(s.dialect, metaSchema) {
		if _, err := exec.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create metadata table: %w", err)
		}
	}

	version, err := s.storedVersion(ctx)
	if err != nil {
		return err
	}
	if version >= store.SchemaVersion {
		return nil
	}

	s.logger.Info("upgrading store schema", "from", version, "to", store.SchemaVersion)

	return s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		tx := executor(txCtx, s.db)
		for _, schema := range store.Schemas {
			if schema.Since <= version {
				continue
			}
			for _, stmt := range createTableSQL(s.dialect, schema) {
				if _, err := tx.ExecContext(txCtx, stmt); err != nil {
					return fmt.Errorf("migrate %s: %w", schema.Collection, err)
				}
			}
		}
		return s.put(txCtx, metaSchema, store.Record{
			Key:  domain.MetaSchemaVersion,
			Data: []byte(strconv.Itoa(store.SchemaVersion)),
		})
	})
}

func (s *Store) storedVersion(ctx context.Context) (int, error) {
	var data []byte
	err := s.db.QueryRowxContext(ctx, s.db.Rebind(fmt.Sprintf(
		"SELECT data FROM %s WHERE pk = ?", tableName(store.Metadata),
	)), domain.MetaSchemaVersion).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	v, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, fmt.Errorf("parse schema version: %w", err)
	}
	return v, nil
}
