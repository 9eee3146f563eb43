// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Jotline Authors

package sync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jotline/jotline/internal/store"
	"github.com/jotline/jotline/models"
)

// authenticate runs on every (re)connect: an existing session announces
// itself with a client-ehlo and resends whatever the dead connection lost;
// without a session a fresh one is requested with a consumable token.
func (e *Engine) authenticate(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.authenticateLocked(ctx)
}

func (e *Engine) authenticateLocked(ctx context.Context) {
	if !e.transport.Online() {
		return
	}

	if e.sid != "" {
		msg := models.Message{Name: models.MsgClientEhlo, SID: e.sid, Tag: e.newTag()}
		if err := e.transport.Send([]models.Message{msg}); err != nil {
			e.log.Warn().Err(err).Msg("send ehlo")
			return
		}
		// Responses to the previous connection are lost for good.
		e.reclaimAllLocked(ctx)
		e.kick()
		return
	}

	token, err := e.nextTokenLocked(ctx)
	if err != nil {
		e.log.Error().Err(err).Msg("no token for session creation")
		return
	}

	e.authTag = e.newTag()
	e.authToken = token
	msg := models.Message{Name: models.MsgSessionCreate, Token: token, Tag: e.authTag}
	if err := e.transport.Send([]models.Message{msg}); err != nil {
		e.log.Warn().Err(err).Msg("send session-create")
		e.authTag = ""
		e.authToken = ""
	}
}

// nextTokenLocked takes a token from the bag, falling back to requesting an
// anonymous one from the web server.
func (e *Engine) nextTokenLocked(ctx context.Context) (string, error) {
	if len(e.tokenBag) > 0 {
		return e.tokenBag[0], nil
	}
	if e.tokens == nil {
		return "", fmt.Errorf("%w: token bag empty and no token client", ErrNoSession)
	}
	token, err := e.tokens.AnonToken(ctx)
	if err != nil {
		return "", err
	}
	e.tokenBag = append(e.tokenBag, token)
	e.persistTokensLocked(ctx)
	return token, nil
}

// handleSessionCreate installs the workspace snapshot of a fresh session.
// Records minted offline before the session existed are carried over and
// scheduled for announcement.
func (e *Engine) handleSessionCreate(ctx context.Context, msg *models.Message) {
	if e.authTag == "" || msg.Tag != e.authTag {
		e.log.Debug().Str("tag", msg.Tag).Msg("dropping stale session response")
		return
	}
	spent := e.authToken
	e.authTag = ""
	e.authToken = ""

	if msg.Error != nil {
		e.log.Error().Str("msg", msg.Error.Msg).Int("code", msg.Error.Code).Msg("session creation rejected")
		e.dropTokenLocked(ctx, spent)
		return
	}
	if msg.Session == nil || msg.SID == "" {
		e.log.Error().Msg("session response without payload")
		return
	}

	// The token is spent now.
	e.dropTokenLocked(ctx, spent)

	locals := e.localNotesLocked()

	if err := e.store.Wipe(ctx); err != nil {
		e.log.Error().Err(err).Msg("wipe replica for new session")
	}
	e.records = make(map[string]*models.Record)
	e.sid = msg.SID
	if err := e.store.SetMeta(ctx, store.MetaSID, e.sid); err != nil {
		e.log.Error().Err(err).Msg("persist sid")
	}
	e.persistTokensLocked(ctx)

	if err := e.hydrateSessionLocked(ctx, msg.Session); err != nil {
		e.log.Error().Err(err).Msg("hydrate session payload")
		e.resetSessionLocked(ctx)
		return
	}

	// Re-attach offline work: local note records plus their folio entries.
	if folio := e.records[e.folioID]; folio != nil && len(locals) > 0 {
		for _, rec := range locals {
			e.records[rec.ID] = rec
			e.persistLocked(ctx, rec)
			if models.FindEntry(folio.Folio.Client, rec.ID) == nil {
				folio.Folio.Client = append(folio.Folio.Client, models.FolioEntry{
					NID:    rec.ID,
					Status: models.FolioStatusActive,
				})
			}
		}
		e.markDirtyLocked(ctx, folio)
		e.persistLocked(ctx, folio)
	}

	e.log.Info().Str("sid", e.sid).Int("records", len(e.records)).Msg("session established")
	e.kick()
	e.notify("", "")
}

// localNotesLocked returns the note records that only exist locally.
func (e *Engine) localNotesLocked() []*models.Record {
	var locals []*models.Record
	for _, rec := range e.records {
		if rec.Kind == models.KindNote && models.IsLocalID(rec.ID) {
			locals = append(locals, rec)
		}
	}
	return locals
}

// hydrateSessionLocked decodes the session payload into fresh records. All
// clocks start at zero; client and shadow copies are identical.
func (e *Engine) hydrateSessionLocked(ctx context.Context, s *models.SessionPayload) error {
	var pv models.ProfileVal
	if err := json.Unmarshal(s.Profile.Val, &pv); err != nil {
		return fmt.Errorf("decode profile payload: %w", err)
	}
	body := models.ProfileBody{
		UID:      pv.User.UID,
		Name:     pv.User.Name,
		Email:    pv.User.Email,
		Phone:    pv.User.Phone,
		Tier:     pv.User.Tier,
		SID:      e.sid,
		Contacts: pv.Contacts,
	}
	profile := &models.Record{
		ID:   s.Profile.ID,
		Kind: models.KindProfile,
		Profile: &models.ProfileRecord{
			Client: cloneProfileBody(body),
			Shadow: cloneProfileBody(body),
		},
	}
	e.records[profile.ID] = profile
	e.profileID = profile.ID
	e.uid = body.UID
	e.persistLocked(ctx, profile)

	var entries []models.FolioEntry
	if len(s.Folio.Val) > 0 {
		if err := json.Unmarshal(s.Folio.Val, &entries); err != nil {
			return fmt.Errorf("decode folio payload: %w", err)
		}
	}
	folio := &models.Record{
		ID:   s.Folio.ID,
		Kind: models.KindFolio,
		Folio: &models.FolioRecord{
			Client: append([]models.FolioEntry(nil), entries...),
			Shadow: append([]models.FolioEntry(nil), entries...),
		},
	}
	e.records[folio.ID] = folio
	e.folioID = folio.ID
	e.persistLocked(ctx, folio)

	for id, res := range s.Notes {
		var nv models.NoteVal
		if err := json.Unmarshal(res.Val, &nv); err != nil {
			return fmt.Errorf("decode note payload %s: %w", id, err)
		}
		noteBody := models.NoteBody{
			Title: nv.Title,
			Text:  nv.Text,
			Peers: append([]models.Peer(nil), nv.Peers...),
		}
		note := &models.Record{
			ID:   id,
			Kind: models.KindNote,
			Note: &models.NoteRecord{
				Client:  noteBody,
				Shadow:  cloneNoteBody(noteBody),
				Token:   nv.SharingToken,
				Owner:   nv.CreatedBy.UID,
				Created: nv.CreatedAt,
			},
		}
		e.records[id] = note
		e.persistLocked(ctx, note)
	}
	return nil
}

func cloneProfileBody(b models.ProfileBody) models.ProfileBody {
	b.Contacts = append([]models.UserRef(nil), b.Contacts...)
	return b
}

func cloneNoteBody(b models.NoteBody) models.NoteBody {
	b.Peers = append([]models.Peer(nil), b.Peers...)
	return b
}

// handleTokenConsume settles a token consumption: the token leaves the bag
// and, when the token unlocked a shared note, a placeholder record is
// created and its content pulled.
func (e *Engine) handleTokenConsume(ctx context.Context, msg *models.Message) {
	e.dropTokenLocked(ctx, msg.Token)

	if msg.Error != nil {
		e.log.Warn().Str("msg", msg.Error.Msg).Int("code", msg.Error.Code).Msg("token rejected")
		return
	}
	if msg.Res == nil || msg.Res.Kind != models.KindNote {
		return
	}
	if e.records[msg.Res.ID] != nil {
		return
	}

	note := &models.Record{ID: msg.Res.ID, Kind: models.KindNote, Note: &models.NoteRecord{}}
	e.records[note.ID] = note
	e.persistLocked(ctx, note)

	if folio := e.records[e.folioID]; folio != nil {
		entry := models.FolioEntry{NID: note.ID, Status: models.FolioStatusActive}
		if models.FindEntry(folio.Folio.Client, note.ID) == nil {
			folio.Folio.Client = append(folio.Folio.Client, entry)
		}
		if models.FindEntry(folio.Folio.Shadow, note.ID) == nil {
			folio.Folio.Shadow = append(folio.Folio.Shadow, entry)
		}
		e.persistLocked(ctx, folio)
	}

	e.sendPullLocked(note)
	e.notify(models.KindNote, note.ID)
}

func (e *Engine) dropTokenLocked(ctx context.Context, token string) {
	if token == "" {
		return
	}
	for i, t := range e.tokenBag {
		if t == token {
			e.tokenBag = append(e.tokenBag[:i], e.tokenBag[i+1:]...)
			e.persistTokensLocked(ctx)
			return
		}
	}
}

// clearLocalLocked drops all in-memory session state without touching the
// store.
func (e *Engine) clearLocalLocked() {
	e.records = make(map[string]*models.Record)
	e.sid = ""
	e.uid = ""
	e.folioID = ""
	e.profileID = ""
	e.activeNote = ""
	e.authTag = ""
	e.authToken = ""
	e.inFlight = false
}

// resetSessionLocked abandons the session entirely: the replica is wiped,
// sibling contexts are told to do the same, and a fresh session is
// requested when online. The nuclear option, reserved for unrecoverable
// divergence on the folio or profile and fatal server errors.
func (e *Engine) resetSessionLocked(ctx context.Context) {
	oldSID := e.sid
	e.log.Warn().Str("sid", oldSID).Msg("resetting session")

	e.clearLocalLocked()
	if err := e.store.Wipe(ctx); err != nil {
		e.log.Error().Err(err).Msg("wipe replica")
	}
	e.persistTokensLocked(ctx)

	if e.bcast != nil {
		cmd := models.Command{Name: models.CmdSessionReset, SID: oldSID}
		if err := e.bcast.Publish(cmd); err != nil {
			e.log.Warn().Err(err).Msg("broadcast session reset")
		}
	}

	e.authenticateLocked(ctx)
	e.notify("", "")
}

// Reset discards the session and starts a new one. Exposed for logout.
func (e *Engine) Reset(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetSessionLocked(ctx)
}

// ConsumeToken queues an access token (typically from a sharing invite)
// and redeems it against the current session when online.
func (e *Engine) ConsumeToken(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("sync: empty token")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.tokenBag = append(e.tokenBag, token)
	e.persistTokensLocked(ctx)

	if !e.transport.Online() || e.sid == "" {
		return nil
	}
	msg := models.Message{
		Name:  models.MsgTokenConsume,
		SID:   e.sid,
		Tag:   e.newTag(),
		Token: token,
	}
	if err := e.transport.Send([]models.Message{msg}); err != nil {
		return fmt.Errorf("send token: %w", err)
	}
	return nil
}
