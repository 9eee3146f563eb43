// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Jotline Authors

// Package store persists the local replica: synchronized records, their
// recovery backups, the set of currently dirty record ids, and session
// metadata. Two implementations are provided: a SQLite-backed store shared
// between sibling contexts and an in-memory store for tests and throwaway
// workspaces.
package store

import (
	"context"

	"github.com/jotline/jotline/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/store_mock.go -package=mock

// Well-known metadata keys.
const (
	MetaSID    = "sid"
	MetaTokens = "tokens"
)

// ReplicaStore is the persistence boundary of the sync engine. All writes
// are point-in-time snapshots of in-memory state; the engine never reads
// through the store on its hot path.
type ReplicaStore interface {
	// SaveRecord persists rec, replacing any previous version.
	SaveRecord(ctx context.Context, rec *models.Record) error

	// GetRecord loads the record with the given id. Returns
	// ErrRecordNotFound when absent.
	GetRecord(ctx context.Context, id string) (*models.Record, error)

	// AllRecords loads every persisted record.
	AllRecords(ctx context.Context) ([]*models.Record, error)

	// DeleteRecord removes the record and its backup. Removing an absent
	// record is a no-op.
	DeleteRecord(ctx context.Context, id string) error

	// RenameRecord moves a record together with its backup and dirty mark
	// to a new id. The caller is expected to re-save the record payload
	// afterwards so the embedded id matches.
	RenameRecord(ctx context.Context, oldID, newID string) error

	// SaveBackup persists the recovery checkpoint for a record.
	SaveBackup(ctx context.Context, b *models.Backup) error

	// GetBackup loads the recovery checkpoint for a record. Returns
	// ErrBackupNotFound when absent.
	GetBackup(ctx context.Context, recordID string) (*models.Backup, error)

	// DeleteBackup discards the recovery checkpoint. No-op when absent.
	DeleteBackup(ctx context.Context, recordID string) error

	// MarkDirty adds a record id to the dirty set. Idempotent.
	MarkDirty(ctx context.Context, id string) error

	// ClearDirty removes a record id from the dirty set. No-op when absent.
	ClearDirty(ctx context.Context, id string) error

	// DirtyIDs returns the ids of records with uncommitted local edits.
	DirtyIDs(ctx context.Context) ([]string, error)

	// GetMeta returns the metadata value for key, or an empty string when
	// the key is not set.
	GetMeta(ctx context.Context, key string) (string, error)

	// SetMeta stores a metadata value.
	SetMeta(ctx context.Context, key, value string) error

	// Wipe discards the whole replica: records, backups, dirty set and
	// metadata. Used on logout and full session reset.
	Wipe(ctx context.Context) error
}
