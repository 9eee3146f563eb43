// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Jotline Authors

package models

import (
	"encoding/json"
	"fmt"
)

// Backup is a point-in-time recovery checkpoint of a record's shadow copy
// and version counters. It is written after every successful shadow
// mutation and consulted when an inbound version vector does not match:
// if the backup clock equals the server's stated clock, the local timeline
// is behind because a prior acknowledgement was lost, and the shadow can
// be restored instead of resetting the record.
type Backup struct {
	RecordID string          `json:"record_id"`
	Kind     Kind            `json:"kind"`
	CV       int64           `json:"cv"`
	SV       int64           `json:"sv"`
	Shadow   json.RawMessage `json:"shadow"`
}

// NewBackup deep-copies the record's shadow and clock into a Backup.
func NewBackup(rec *Record) (*Backup, error) {
	var shadow any
	switch rec.Kind {
	case KindNote:
		shadow = rec.Note.Shadow
	case KindFolio:
		shadow = rec.Folio.Shadow
	case KindProfile:
		shadow = rec.Profile.Shadow
	default:
		return nil, fmt.Errorf("backup of unknown record kind %q", rec.Kind)
	}

	raw, err := json.Marshal(shadow)
	if err != nil {
		return nil, fmt.Errorf("encode shadow for backup of %s: %w", rec.ID, err)
	}
	return &Backup{RecordID: rec.ID, Kind: rec.Kind, CV: rec.CV, SV: rec.SV, Shadow: raw}, nil
}

// Restore writes the backed-up shadow and clock into rec. The pending edit
// queue is cleared; superseded deltas are recomputed from the untouched
// client copy on the next diff cycle rather than replayed.
func (b *Backup) Restore(rec *Record) error {
	if rec.Kind != b.Kind {
		return fmt.Errorf("backup kind %q does not match record kind %q", b.Kind, rec.Kind)
	}

	switch rec.Kind {
	case KindNote:
		var s NoteBody
		if err := json.Unmarshal(b.Shadow, &s); err != nil {
			return fmt.Errorf("decode note backup for %s: %w", rec.ID, err)
		}
		rec.Note.Shadow = s
	case KindFolio:
		var s []FolioEntry
		if err := json.Unmarshal(b.Shadow, &s); err != nil {
			return fmt.Errorf("decode folio backup for %s: %w", rec.ID, err)
		}
		rec.Folio.Shadow = s
	case KindProfile:
		var s ProfileBody
		if err := json.Unmarshal(b.Shadow, &s); err != nil {
			return fmt.Errorf("decode profile backup for %s: %w", rec.ID, err)
		}
		rec.Profile.Shadow = s
	}

	rec.CV = b.CV
	rec.SV = b.SV
	rec.Edits = nil
	return nil
}
