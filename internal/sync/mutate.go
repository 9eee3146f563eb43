// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Jotline Authors

package sync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jotline/jotline/models"
)

// mutate applies fn to the record with the given id under the engine lock.
// When fn reports a change the record turns dirty and a commit cycle is
// scheduled after the debounce window.
func (e *Engine) mutate(ctx context.Context, id string, fn func(*models.Record) bool) error {
	return e.mutateWith(ctx, func() string { return id }, fn)
}

// mutateWith resolves the record id under the lock, so mutators targeting
// the folio and profile singletons see the current id even across a
// session change.
func (e *Engine) mutateWith(ctx context.Context, resolve func() string, fn func(*models.Record) bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := resolve()
	rec := e.records[id]
	if rec == nil {
		return fmt.Errorf("%w: %s", ErrUnknownRecord, id)
	}
	if !fn(rec) {
		return nil
	}
	e.markDirtyLocked(ctx, rec)
	e.persistLocked(ctx, rec)
	e.kick()
	return nil
}

func (e *Engine) mutateFolio(ctx context.Context, fn func(*models.Record) bool) error {
	return e.mutateWith(ctx, func() string { return e.folioID }, fn)
}

func (e *Engine) mutateProfile(ctx context.Context, fn func(*models.Record) bool) error {
	return e.mutateWith(ctx, func() string { return e.profileID }, fn)
}

// CreateNote mints a note with a short local id, visible and editable
// immediately. The folio announces it on the next commit; the server
// answers with a permanent id via set-nid.
func (e *Engine) CreateNote(ctx context.Context, title, text string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	folio := e.records[e.folioID]
	if folio == nil {
		return "", fmt.Errorf("%w: no folio", ErrNoSession)
	}

	id := newLocalID()
	note := &models.Record{
		ID:   id,
		Kind: models.KindNote,
		Note: &models.NoteRecord{
			Client:  models.NoteBody{Title: title, Text: text},
			Owner:   e.uid,
			Created: e.nowMillis(),
			OwnEdit: e.nowMillis(),
		},
	}
	e.records[id] = note
	e.persistLocked(ctx, note)

	folio.Folio.Client = append(folio.Folio.Client, models.FolioEntry{
		NID:    id,
		Status: models.FolioStatusActive,
	})
	e.markDirtyLocked(ctx, folio)
	e.persistLocked(ctx, folio)
	e.kick()
	return id, nil
}

// DeleteNote removes a note from the folio and drops its record. The
// removal reaches the server as a rem-noteref on the next commit.
func (e *Engine) DeleteNote(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	folio := e.records[e.folioID]
	if folio == nil {
		return fmt.Errorf("%w: no folio", ErrNoSession)
	}
	if e.records[id] == nil {
		return fmt.Errorf("%w: %s", ErrUnknownRecord, id)
	}

	folio.Folio.Client, _ = models.RemoveEntry(folio.Folio.Client, id)
	delete(e.records, id)
	if err := e.store.DeleteRecord(ctx, id); err != nil {
		e.log.Error().Err(err).Str("id", id).Msg("delete record")
	}
	if e.activeNote == id {
		e.activeNote = ""
	}

	e.markDirtyLocked(ctx, folio)
	e.persistLocked(ctx, folio)
	e.kick()
	return nil
}

// SetNoteText replaces the working text of a note and records the caret.
func (e *Engine) SetNoteText(ctx context.Context, id, text string, caret int) error {
	return e.mutate(ctx, id, func(rec *models.Record) bool {
		n := rec.Note
		if n.Client.Text == text {
			return false
		}
		n.Client.Text = text
		n.CursorPos = caret
		n.OwnEdit = e.nowMillis()
		n.Unseen = false
		if own := n.Client.FindPeer(e.uid); own != nil {
			own.CursorPos = caret
			own.LastSeen = e.nowMillis()
		}
		return true
	})
}

// SetNoteTitle replaces the title of a note.
func (e *Engine) SetNoteTitle(ctx context.Context, id, title string) error {
	return e.mutate(ctx, id, func(rec *models.Record) bool {
		if rec.Note.Client.Title == title {
			return false
		}
		rec.Note.Client.Title = title
		rec.Note.OwnEdit = e.nowMillis()
		return true
	})
}

// SetCursor records the local caret position without touching content.
func (e *Engine) SetCursor(ctx context.Context, id string, pos int) error {
	return e.mutate(ctx, id, func(rec *models.Record) bool {
		n := rec.Note
		if n.CursorPos == pos {
			return false
		}
		n.CursorPos = pos
		if own := n.Client.FindPeer(e.uid); own != nil {
			own.CursorPos = pos
		}
		return false // caret alone does not warrant a commit
	})
}

// MarkNoteSeen clears the unseen marker and advances our seen timestamp,
// which travels to peers with the next commit.
func (e *Engine) MarkNoteSeen(ctx context.Context, id string) error {
	return e.mutate(ctx, id, func(rec *models.Record) bool {
		n := rec.Note
		n.Unseen = false
		if own := n.Client.FindPeer(e.uid); own != nil {
			own.LastSeen = e.nowMillis()
			n.PeerChange = true
			return true
		}
		return false
	})
}

// SetFolioStatus moves a note between the active and archived lists.
func (e *Engine) SetFolioStatus(ctx context.Context, nid, status string) error {
	return e.mutateFolio(ctx, func(rec *models.Record) bool {
		entry := models.FindEntry(rec.Folio.Client, nid)
		if entry == nil || entry.Status == status {
			return false
		}
		entry.Status = status
		return true
	})
}

// SetProfileName updates the user's display name.
func (e *Engine) SetProfileName(ctx context.Context, name string) error {
	return e.mutateProfile(ctx, func(rec *models.Record) bool {
		if rec.Profile.Client.Name == name {
			return false
		}
		rec.Profile.Client.Name = name
		return true
	})
}

// SetProfileEmail updates the user's email address.
func (e *Engine) SetProfileEmail(ctx context.Context, email string) error {
	return e.mutateProfile(ctx, func(rec *models.Record) bool {
		if rec.Profile.Client.Email == email {
			return false
		}
		rec.Profile.Client.Email = email
		return true
	})
}

// SetProfilePhone updates the user's phone number.
func (e *Engine) SetProfilePhone(ctx context.Context, phone string) error {
	return e.mutateProfile(ctx, func(rec *models.Record) bool {
		if rec.Profile.Client.Phone == phone {
			return false
		}
		rec.Profile.Client.Phone = phone
		return true
	})
}

// AddContact adds a contact to the profile. Contacts without a uid are
// invites the server resolves asynchronously.
func (e *Engine) AddContact(ctx context.Context, user models.UserRef) error {
	return e.mutateProfile(ctx, func(rec *models.Record) bool {
		if user.UID != "" && rec.Profile.Client.FindContact(user.UID) != nil {
			return false
		}
		rec.Profile.Client.Contacts = append(rec.Profile.Client.Contacts, user)
		return true
	})
}

// RemoveContact removes a contact by uid.
func (e *Engine) RemoveContact(ctx context.Context, uid string) error {
	return e.mutateProfile(ctx, func(rec *models.Record) bool {
		if rec.Profile.Client.FindContact(uid) == nil {
			return false
		}
		rec.Profile.Client.RemoveContact(uid)
		return true
	})
}

// SetActiveNote marks a note as the one being viewed, clears its unseen
// marker and propagates the choice to sibling contexts.
func (e *Engine) SetActiveNote(ctx context.Context, id string) error {
	e.mu.Lock()
	if id != "" && e.records[id] == nil {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownRecord, id)
	}
	e.activeNote = id
	sid := e.sid
	e.mu.Unlock()

	if id != "" {
		if err := e.MarkNoteSeen(ctx, id); err != nil {
			return err
		}
	}
	if e.bcast != nil {
		cmd := models.Command{Name: models.CmdSetActiveNote, SID: sid, NoteID: id}
		if err := e.bcast.Publish(cmd); err != nil {
			e.log.Warn().Err(err).Msg("broadcast active note")
		}
	}
	return nil
}

// SetStage records foreground or background visibility and propagates it.
func (e *Engine) SetStage(ctx context.Context, stage string) error {
	e.mu.Lock()
	e.stage = stage
	sid := e.sid
	e.mu.Unlock()

	if e.bcast != nil {
		cmd := models.Command{Name: models.CmdSetStage, SID: sid, Stage: stage}
		if err := e.bcast.Publish(cmd); err != nil {
			e.log.Warn().Err(err).Msg("broadcast stage")
		}
	}
	return nil
}

// Note returns a deep copy of a note record's working state.
func (e *Engine) Note(id string) (*models.NoteRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec := e.records[id]
	if rec == nil || rec.Kind != models.KindNote {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRecord, id)
	}
	return cloneVia[models.NoteRecord](rec.Note)
}

// Folio returns a copy of the current folio entries.
func (e *Engine) Folio() ([]models.FolioEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec := e.records[e.folioID]
	if rec == nil {
		return nil, ErrNoSession
	}
	return append([]models.FolioEntry(nil), rec.Folio.Client...), nil
}

// Profile returns a deep copy of the profile's working state.
func (e *Engine) Profile() (*models.ProfileBody, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec := e.records[e.profileID]
	if rec == nil {
		return nil, ErrNoSession
	}
	return cloneVia[models.ProfileBody](&rec.Profile.Client)
}

// SID returns the current session id, empty before authentication.
func (e *Engine) SID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sid
}

// cloneVia deep-copies v through its JSON form, so callers can hold the
// result without racing the engine.
func cloneVia[T any](v *T) (*T, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}
	out := new(T)
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}
	return out, nil
}
