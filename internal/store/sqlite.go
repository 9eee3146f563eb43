// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Jotline Authors

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	// sqlite driver for the local replica database.
	_ "github.com/mattn/go-sqlite3"

	"github.com/jotline/jotline/internal/logger"
	"github.com/jotline/jotline/migrations"
	"github.com/jotline/jotline/models"
)

// sqliteStore is the SQLite-backed ReplicaStore. The database file is the
// shared persistent store between sibling contexts (multiple open views of
// the same workspace); each context writes optimistically and there is no
// cross-context transaction.
type sqliteStore struct {
	db  *sql.DB
	log *logger.Logger
}

// NewSQLiteStore wraps an open database handle. The schema is expected to
// be migrated already (see Open).
func NewSQLiteStore(db *sql.DB, log *logger.Logger) ReplicaStore {
	return &sqliteStore{db: db, log: log}
}

// Open opens (creating if necessary) the replica database at dsn, runs
// pending migrations and returns the store.
func Open(dsn string, log *logger.Logger) (ReplicaStore, *sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open replica db: %w", err)
	}

	if err = migrations.Migrate(db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate replica db: %w", err)
	}

	return NewSQLiteStore(db, log), db, nil
}

func (s *sqliteStore) SaveRecord(ctx context.Context, rec *models.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", rec.ID, err)
	}

	query, args, err := buildUpsertRecord(rec.ID, string(rec.Kind), payload)
	if err != nil {
		return fmt.Errorf("build upsert record query: %w", err)
	}
	if _, err = s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save record %s: %w", rec.ID, err)
	}
	return nil
}

func (s *sqliteStore) GetRecord(ctx context.Context, id string) (*models.Record, error) {
	query, args, err := buildSelectRecord(id)
	if err != nil {
		return nil, fmt.Errorf("build select record query: %w", err)
	}

	var payload []byte
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get record %s: %w", id, ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}

	rec := &models.Record{}
	if err = json.Unmarshal(payload, rec); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", id, err)
	}
	return rec, nil
}

func (s *sqliteStore) AllRecords(ctx context.Context) ([]*models.Record, error) {
	query, args, err := buildSelectAllRecords()
	if err != nil {
		return nil, fmt.Errorf("build select all records query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select all records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var recs []*models.Record
	for rows.Next() {
		var id string
		var payload []byte
		if err = rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan record row: %w", err)
		}
		rec := &models.Record{}
		if err = json.Unmarshal(payload, rec); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", id, err)
		}
		recs = append(recs, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate record rows: %w", err)
	}
	return recs, nil
}

func (s *sqliteStore) DeleteRecord(ctx context.Context, id string) error {
	for _, build := range []func() (string, []any, error){
		func() (string, []any, error) { return buildDeleteRecord(id) },
		func() (string, []any, error) { return buildDeleteBackup(id) },
		func() (string, []any, error) { return buildClearDirty(id) },
	} {
		query, args, err := build()
		if err != nil {
			return fmt.Errorf("build delete query for %s: %w", id, err)
		}
		if _, err = s.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("delete record %s: %w", id, err)
		}
	}
	return nil
}

func (s *sqliteStore) RenameRecord(ctx context.Context, oldID, newID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rename tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	renames := []struct{ table, column string }{
		{"records", "id"},
		{"backups", "record_id"},
		{"dirty", "record_id"},
	}
	for _, r := range renames {
		query, args, err := buildRenameRecord(r.table, r.column, oldID, newID)
		if err != nil {
			return fmt.Errorf("build rename query for %s: %w", r.table, err)
		}
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("rename %s in %s: %w", oldID, r.table, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit rename tx: %w", err)
	}
	return nil
}

func (s *sqliteStore) SaveBackup(ctx context.Context, b *models.Backup) error {
	query, args, err := buildUpsertBackup(b.RecordID, string(b.Kind), b.CV, b.SV, b.Shadow)
	if err != nil {
		return fmt.Errorf("build upsert backup query: %w", err)
	}
	if _, err = s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save backup %s: %w", b.RecordID, err)
	}
	return nil
}

func (s *sqliteStore) GetBackup(ctx context.Context, recordID string) (*models.Backup, error) {
	query, args, err := buildSelectBackup(recordID)
	if err != nil {
		return nil, fmt.Errorf("build select backup query: %w", err)
	}

	b := &models.Backup{RecordID: recordID}
	var kind string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&kind, &b.CV, &b.SV, &b.Shadow)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get backup %s: %w", recordID, ErrBackupNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get backup %s: %w", recordID, err)
	}
	b.Kind = models.Kind(kind)
	return b, nil
}

func (s *sqliteStore) DeleteBackup(ctx context.Context, recordID string) error {
	query, args, err := buildDeleteBackup(recordID)
	if err != nil {
		return fmt.Errorf("build delete backup query: %w", err)
	}
	if _, err = s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete backup %s: %w", recordID, err)
	}
	return nil
}

func (s *sqliteStore) MarkDirty(ctx context.Context, id string) error {
	query, args, err := buildMarkDirty(id)
	if err != nil {
		return fmt.Errorf("build mark dirty query: %w", err)
	}
	if _, err = s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark dirty %s: %w", id, err)
	}
	return nil
}

func (s *sqliteStore) ClearDirty(ctx context.Context, id string) error {
	query, args, err := buildClearDirty(id)
	if err != nil {
		return fmt.Errorf("build clear dirty query: %w", err)
	}
	if _, err = s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clear dirty %s: %w", id, err)
	}
	return nil
}

func (s *sqliteStore) DirtyIDs(ctx context.Context) ([]string, error) {
	query, args, err := buildSelectDirty()
	if err != nil {
		return nil, fmt.Errorf("build select dirty query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select dirty ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan dirty id: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dirty ids: %w", err)
	}
	return ids, nil
}

func (s *sqliteStore) GetMeta(ctx context.Context, key string) (string, error) {
	query, args, err := buildSelectMeta(key)
	if err != nil {
		return "", fmt.Errorf("build select meta query: %w", err)
	}

	var value string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get meta %s: %w", key, err)
	}
	return value, nil
}

func (s *sqliteStore) SetMeta(ctx context.Context, key, value string) error {
	query, args, err := buildUpsertMeta(key, value)
	if err != nil {
		return fmt.Errorf("build upsert meta query: %w", err)
	}
	if _, err = s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set meta %s: %w", key, err)
	}
	return nil
}

func (s *sqliteStore) Wipe(ctx context.Context) error {
	for _, table := range []string{"records", "backups", "dirty", "meta"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("wipe table %s: %w", table, err)
		}
	}
	return nil
}
