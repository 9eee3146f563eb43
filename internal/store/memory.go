// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Jotline Authors

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jotline/jotline/models"
)

// memoryStore is the in-memory ReplicaStore. Values are deep-copied on the
// way in and out so callers cannot alias engine state.
type memoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
	kinds   map[string]models.Kind
	backups map[string]models.Backup
	dirty   map[string]struct{}
	meta    map[string]string
}

// NewMemoryStore returns an empty in-memory replica store.
func NewMemoryStore() ReplicaStore {
	s := &memoryStore{}
	s.reset()
	return s
}

func (s *memoryStore) reset() {
	s.records = make(map[string][]byte)
	s.kinds = make(map[string]models.Kind)
	s.backups = make(map[string]models.Backup)
	s.dirty = make(map[string]struct{})
	s.meta = make(map[string]string)
}

func (s *memoryStore) SaveRecord(_ context.Context, rec *models.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", rec.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = payload
	s.kinds[rec.ID] = rec.Kind
	return nil
}

func (s *memoryStore) GetRecord(_ context.Context, id string) (*models.Record, error) {
	s.mu.RLock()
	payload, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("get record %s: %w", id, ErrRecordNotFound)
	}

	rec := &models.Record{}
	if err := json.Unmarshal(payload, rec); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", id, err)
	}
	return rec, nil
}

func (s *memoryStore) AllRecords(_ context.Context) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]*models.Record, 0, len(s.records))
	for id, payload := range s.records {
		rec := &models.Record{}
		if err := json.Unmarshal(payload, rec); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", id, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (s *memoryStore) DeleteRecord(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	delete(s.kinds, id)
	delete(s.backups, id)
	delete(s.dirty, id)
	return nil
}

func (s *memoryStore) RenameRecord(_ context.Context, oldID, newID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, ok := s.records[oldID]
	if !ok {
		return fmt.Errorf("rename record %s: %w", oldID, ErrRecordNotFound)
	}
	s.records[newID] = payload
	s.kinds[newID] = s.kinds[oldID]
	delete(s.records, oldID)
	delete(s.kinds, oldID)

	if b, ok := s.backups[oldID]; ok {
		b.RecordID = newID
		s.backups[newID] = b
		delete(s.backups, oldID)
	}
	if _, ok := s.dirty[oldID]; ok {
		s.dirty[newID] = struct{}{}
		delete(s.dirty, oldID)
	}
	return nil
}

func (s *memoryStore) SaveBackup(_ context.Context, b *models.Backup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *b
	cp.Shadow = append([]byte(nil), b.Shadow...)
	s.backups[b.RecordID] = cp
	return nil
}

func (s *memoryStore) GetBackup(_ context.Context, recordID string) (*models.Backup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.backups[recordID]
	if !ok {
		return nil, fmt.Errorf("get backup %s: %w", recordID, ErrBackupNotFound)
	}
	cp := b
	cp.Shadow = append([]byte(nil), b.Shadow...)
	return &cp, nil
}

func (s *memoryStore) DeleteBackup(_ context.Context, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.backups, recordID)
	return nil
}

func (s *memoryStore) MarkDirty(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty[id] = struct{}{}
	return nil
}

func (s *memoryStore) ClearDirty(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.dirty, id)
	return nil
}

func (s *memoryStore) DirtyIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.dirty))
	for id := range s.dirty {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *memoryStore) GetMeta(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta[key], nil
}

func (s *memoryStore) SetMeta(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta[key] = value
	return nil
}

func (s *memoryStore) Wipe(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}
