// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Jotline Authors

package store

import (
	sq "github.com/Masterminds/squirrel"
)

// Query builders are split out so the generated SQL can be unit-tested
// without a live database.

var builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

func buildUpsertRecord(id, kind string, payload []byte) (string, []any, error) {
	return builder.
		Insert("records").
		Columns("id", "kind", "payload").
		Values(id, kind, payload).
		Suffix("ON CONFLICT(id) DO UPDATE SET kind = excluded.kind, payload = excluded.payload").
		ToSql()
}

func buildSelectRecord(id string) (string, []any, error) {
	return builder.
		Select("payload").
		From("records").
		Where(sq.Eq{"id": id}).
		ToSql()
}

func buildSelectAllRecords() (string, []any, error) {
	return builder.
		Select("id", "payload").
		From("records").
		OrderBy("id").
		ToSql()
}

func buildDeleteRecord(id string) (string, []any, error) {
	return builder.
		Delete("records").
		Where(sq.Eq{"id": id}).
		ToSql()
}

func buildRenameRecord(table, column, oldID, newID string) (string, []any, error) {
	return builder.
		Update(table).
		Set(column, newID).
		Where(sq.Eq{column: oldID}).
		ToSql()
}

func buildUpsertBackup(recordID, kind string, cv, sv int64, shadow []byte) (string, []any, error) {
	return builder.
		Insert("backups").
		Columns("record_id", "kind", "cv", "sv", "shadow").
		Values(recordID, kind, cv, sv, shadow).
		Suffix("ON CONFLICT(record_id) DO UPDATE SET kind = excluded.kind, cv = excluded.cv, sv = excluded.sv, shadow = excluded.shadow").
		ToSql()
}

func buildSelectBackup(recordID string) (string, []any, error) {
	return builder.
		Select("kind", "cv", "sv", "shadow").
		From("backups").
		Where(sq.Eq{"record_id": recordID}).
		ToSql()
}

func buildDeleteBackup(recordID string) (string, []any, error) {
	return builder.
		Delete("backups").
		Where(sq.Eq{"record_id": recordID}).
		ToSql()
}

func buildMarkDirty(id string) (string, []any, error) {
	return builder.
		Insert("dirty").
		Columns("record_id").
		Values(id).
		Suffix("ON CONFLICT(record_id) DO NOTHING").
		ToSql()
}

func buildClearDirty(id string) (string, []any, error) {
	return builder.
		Delete("dirty").
		Where(sq.Eq{"record_id": id}).
		ToSql()
}

func buildSelectDirty() (string, []any, error) {
	return builder.
		Select("record_id").
		From("dirty").
		OrderBy("record_id").
		ToSql()
}

func buildUpsertMeta(key, value string) (string, []any, error) {
	return builder.
		Insert("meta").
		Columns("key", "value").
		Values(key, value).
		Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value").
		ToSql()
}

func buildSelectMeta(key string) (string, []any, error) {
	return builder.
		Select("value").
		From("meta").
		Where(sq.Eq{"key": key}).
		ToSql()
}
