// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Jotline Authors

package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildUpsertRecord_SQLContainsParts(t *testing.T) {
	query, args, err := buildUpsertRecord("note_12345", "note", []byte(`{}`))
	require.NoError(t, err)

	require.Len(t, args, 3)
	assert.Equal(t, "note_12345", args[0])
	assert.Equal(t, "note", args[1])

	q := strings.ToLower(query)
	require.Contains(t, q, "insert into records")
	require.Contains(t, q, "on conflict(id) do update")
	require.Contains(t, q, "excluded.payload")
	// placeholder format should be ? (sqlite)
	require.Contains(t, query, "?")
	require.NotContains(t, query, "$1")
}

func TestBuildSelectRecord(t *testing.T) {
	query, args, err := buildSelectRecord("note_12345")
	require.NoError(t, err)

	require.Equal(t, []any{"note_12345"}, args)
	q := strings.ToLower(query)
	require.Contains(t, q, "select payload from records")
	require.Contains(t, q, "where id = ?")
}

func TestBuildRenameRecord_AllTables(t *testing.T) {
	for _, tc := range []struct{ table, column string }{
		{"records", "id"},
		{"backups", "record_id"},
		{"dirty", "record_id"},
	} {
		query, args, err := buildRenameRecord(tc.table, tc.column, "old", "new")
		require.NoError(t, err)

		require.Equal(t, []any{"new", "old"}, args)
		q := strings.ToLower(query)
		require.Contains(t, q, "update "+tc.table)
		require.Contains(t, q, "set "+tc.column+" = ?")
	}
}

func TestBuildUpsertBackup(t *testing.T) {
	query, args, err := buildUpsertBackup("note_12345", "note", 5, 4, []byte(`{}`))
	require.NoError(t, err)

	require.Len(t, args, 5)
	assert.Equal(t, int64(5), args[2])
	assert.Equal(t, int64(4), args[3])

	q := strings.ToLower(query)
	require.Contains(t, q, "insert into backups")
	require.Contains(t, q, "on conflict(record_id) do update")
}

func TestBuildMarkDirty_Idempotent(t *testing.T) {
	query, args, err := buildMarkDirty("note_12345")
	require.NoError(t, err)

	require.Equal(t, []any{"note_12345"}, args)
	require.Contains(t, strings.ToLower(query), "on conflict(record_id) do nothing")
}

func TestBuildSelectDirty_Ordered(t *testing.T) {
	query, args, err := buildSelectDirty()
	require.NoError(t, err)

	assert.Empty(t, args)
	require.Contains(t, strings.ToLower(query), "order by record_id")
}

func TestBuildUpsertMeta(t *testing.T) {
	query, args, err := buildUpsertMeta("sid", "sess-1")
	require.NoError(t, err)

	require.Equal(t, []any{"sid", "sess-1"}, args)
	require.Contains(t, strings.ToLower(query), "on conflict(key) do update")
}
