// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Jotline Authors

package sync

import (
	"context"

	"github.com/jotline/jotline/models"
)

// opKey selects the handler for one inbound op: the record kind plus the
// op name. Combinations outside the table are skipped with a warning, never
// failing the whole change.
type opKey struct {
	kind models.Kind
	name string
}

var opHandlers = map[opKey]func(*Engine, context.Context, *models.Record, models.Op) error{
	{models.KindNote, models.OpDeltaText}:  (*Engine).applyDeltaText,
	{models.KindNote, models.OpSetTitle}:   (*Engine).applySetTitle,
	{models.KindNote, models.OpSetToken}:   (*Engine).applySetToken,
	{models.KindNote, models.OpSetCursor}:  (*Engine).applySetCursor,
	{models.KindNote, models.OpAddPeer}:    (*Engine).applyAddPeer,
	{models.KindNote, models.OpRemPeer}:    (*Engine).applyRemPeer,
	{models.KindNote, models.OpSwapUser}:   (*Engine).applySwapUser,
	{models.KindNote, models.OpChangeRole}: (*Engine).applyChangeRole,
	{models.KindNote, models.OpSetTS}:      (*Engine).applySetTS,

	{models.KindFolio, models.OpSetStatus}:  (*Engine).applySetStatus,
	{models.KindFolio, models.OpAddNoteRef}: (*Engine).applyAddNoteRef,
	{models.KindFolio, models.OpRemNoteRef}: (*Engine).applyRemNoteRef,
	{models.KindFolio, models.OpSetNID}:     (*Engine).applySetNID,

	{models.KindProfile, models.OpSetName}:  (*Engine).applySetName,
	{models.KindProfile, models.OpSetEmail}: (*Engine).applySetEmail,
	{models.KindProfile, models.OpSetPhone}: (*Engine).applySetPhone,
	{models.KindProfile, models.OpSetTier}:  (*Engine).applySetTier,
	{models.KindProfile, models.OpAddUser}:  (*Engine).applyAddUser,
	{models.KindProfile, models.OpRemUser}:  (*Engine).applyRemUser,
	{models.KindProfile, models.OpSwapUser}: (*Engine).applySwapContact,
}

// applyOps applies server ops to both copies of rec. Unknown or malformed
// ops are logged and skipped so one bad op cannot wedge the record.
func (e *Engine) applyOps(ctx context.Context, rec *models.Record, ops []models.Op) {
	for _, op := range ops {
		h, ok := opHandlers[opKey{rec.Kind, op.Name}]
		if !ok {
			e.log.Warn().Str("op", op.Name).Str("kind", string(rec.Kind)).Msg("skipping unsupported op")
			continue
		}
		if err := h(e, ctx, rec, op); err != nil {
			e.log.Warn().Err(err).Str("op", op.Name).Str("id", rec.ID).Msg("skipping bad op")
		}
	}
}

// applyDeltaText patches a text delta into the shadow exactly and into the
// possibly drifted client copy fuzzily. The caret of the active note is
// remapped through the delta so it stays at the same logical spot.
func (e *Engine) applyDeltaText(ctx context.Context, rec *models.Record, op models.Op) error {
	delta, err := op.StringValue()
	if err != nil {
		return err
	}
	n := rec.Note
	oldShadow := n.Shadow.Text

	newShadow, newClient, changed, err := e.differ.Text().PatchPair(oldShadow, n.Client.Text, delta)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	if rec.ID == e.activeNote && e.stage == StageForeground && n.CursorPos > 0 {
		n.CursorPos = e.differ.Text().MapPosition(oldShadow, delta, n.CursorPos)
	}

	n.Shadow.Text = newShadow
	n.Client.Text = newClient
	n.LastEdit = e.nowMillis()
	if rec.ID != e.activeNote {
		n.Unseen = true
	}
	return nil
}

func (e *Engine) applySetTitle(ctx context.Context, rec *models.Record, op models.Op) error {
	title, err := op.StringValue()
	if err != nil {
		return err
	}
	rec.Note.Client.Title = title
	rec.Note.Shadow.Title = title
	return nil
}

func (e *Engine) applySetToken(ctx context.Context, rec *models.Record, op models.Op) error {
	token, err := op.StringValue()
	if err != nil {
		return err
	}
	rec.Note.Token = token
	return nil
}

func (e *Engine) applySetCursor(ctx context.Context, rec *models.Record, op models.Op) error {
	pos, err := op.IntValue()
	if err != nil {
		return err
	}
	uid := op.PathID()
	if p := rec.Note.Client.FindPeer(uid); p != nil {
		p.CursorPos = int(pos)
	}
	if p := rec.Note.Shadow.FindPeer(uid); p != nil {
		p.CursorPos = int(pos)
	}
	return nil
}

func (e *Engine) applyAddPeer(ctx context.Context, rec *models.Record, op models.Op) error {
	var peer models.Peer
	if err := op.DecodeValue(&peer); err != nil {
		return err
	}
	n := rec.Note
	if n.Client.FindPeer(peer.User.UID) == nil {
		n.Client.Peers = append(n.Client.Peers, peer)
	}
	if n.Shadow.FindPeer(peer.User.UID) == nil {
		n.Shadow.Peers = append(n.Shadow.Peers, peer)
	}
	return nil
}

func (e *Engine) applyRemPeer(ctx context.Context, rec *models.Record, op models.Op) error {
	uid := op.PathID()
	rec.Note.Client.RemovePeer(uid)
	rec.Note.Shadow.RemovePeer(uid)
	return nil
}

// applySwapUser replaces a placeholder peer identity (an invite addressed
// by email or phone) with the resolved account.
func (e *Engine) applySwapUser(ctx context.Context, rec *models.Record, op models.Op) error {
	var user models.UserRef
	if err := op.DecodeValue(&user); err != nil {
		return err
	}
	uid := op.PathID()
	if p := rec.Note.Client.FindPeer(uid); p != nil {
		p.User = user
	}
	if p := rec.Note.Shadow.FindPeer(uid); p != nil {
		p.User = user
	}
	return nil
}

func (e *Engine) applyChangeRole(ctx context.Context, rec *models.Record, op models.Op) error {
	role, err := op.StringValue()
	if err != nil {
		return err
	}
	uid := op.PathID()
	if p := rec.Note.Client.FindPeer(uid); p != nil {
		p.Role = role
	}
	if p := rec.Note.Shadow.FindPeer(uid); p != nil {
		p.Role = role
	}
	return nil
}

// applySetTS updates a peer's timestamps and recomputes the derived
// last-edit and unseen fields.
func (e *Engine) applySetTS(ctx context.Context, rec *models.Record, op models.Op) error {
	var stamp models.StampValue
	if err := op.DecodeValue(&stamp); err != nil {
		return err
	}
	uid := op.PathID()
	n := rec.Note

	for _, body := range []*models.NoteBody{&n.Client, &n.Shadow} {
		if p := body.FindPeer(uid); p != nil {
			if stamp.Seen != 0 {
				p.LastSeen = stamp.Seen
			}
			if stamp.Edit != 0 {
				p.LastEdit = stamp.Edit
			}
		}
	}

	if stamp.Edit != 0 && uid != e.uid && stamp.Edit > n.LastEdit {
		n.LastEdit = stamp.Edit
		n.LastEditor = uid
		if rec.ID != e.activeNote {
			n.Unseen = true
		}
	}
	return nil
}

func (e *Engine) applySetStatus(ctx context.Context, rec *models.Record, op models.Op) error {
	status, err := op.StringValue()
	if err != nil {
		return err
	}
	nid := op.PathID()
	if entry := models.FindEntry(rec.Folio.Client, nid); entry != nil {
		entry.Status = status
	}
	if entry := models.FindEntry(rec.Folio.Shadow, nid); entry != nil {
		entry.Status = status
	}
	return nil
}

// applyAddNoteRef adds a note reference shared with us. An unknown note id
// gets a placeholder record whose content is pulled from the server.
func (e *Engine) applyAddNoteRef(ctx context.Context, rec *models.Record, op models.Op) error {
	var ref models.NoteRefValue
	if err := op.DecodeValue(&ref); err != nil {
		return err
	}
	f := rec.Folio
	if models.FindEntry(f.Client, ref.NID) == nil {
		f.Client = append(f.Client, models.FolioEntry{NID: ref.NID, Status: ref.Status})
	}
	if models.FindEntry(f.Shadow, ref.NID) == nil {
		f.Shadow = append(f.Shadow, models.FolioEntry{NID: ref.NID, Status: ref.Status})
	}

	if e.records[ref.NID] == nil {
		note := &models.Record{ID: ref.NID, Kind: models.KindNote, Note: &models.NoteRecord{}}
		e.records[ref.NID] = note
		e.persistLocked(ctx, note)
		e.sendPullLocked(note)
	}
	return nil
}

func (e *Engine) applyRemNoteRef(ctx context.Context, rec *models.Record, op models.Op) error {
	nid := op.PathID()
	rec.Folio.Client, _ = models.RemoveEntry(rec.Folio.Client, nid)
	rec.Folio.Shadow, _ = models.RemoveEntry(rec.Folio.Shadow, nid)

	if note := e.records[nid]; note != nil {
		delete(e.records, nid)
		if err := e.store.DeleteRecord(ctx, nid); err != nil {
			e.log.Error().Err(err).Str("id", nid).Msg("delete record")
		}
	}
	if e.activeNote == nid {
		e.activeNote = ""
	}
	e.notify(models.KindNote, nid)
	return nil
}

// applySetNID renames a client-minted note to its permanent server id. The
// shadow folio entry is created here; announcements of local ids never
// touch the shadow, so the rename is what makes both copies agree.
func (e *Engine) applySetNID(ctx context.Context, rec *models.Record, op models.Op) error {
	newID, err := op.StringValue()
	if err != nil {
		return err
	}
	oldID := op.PathID()
	f := rec.Folio

	if entry := models.FindEntry(f.Client, oldID); entry != nil {
		entry.NID = newID
	}
	if entry := models.FindEntry(f.Shadow, oldID); entry != nil {
		entry.NID = newID
	} else if ce := models.FindEntry(f.Client, newID); ce != nil {
		f.Shadow = append(f.Shadow, *ce)
	}

	if note := e.records[oldID]; note != nil {
		delete(e.records, oldID)
		note.ID = newID
		e.records[newID] = note
		if err := e.store.RenameRecord(ctx, oldID, newID); err != nil {
			e.log.Error().Err(err).Str("old", oldID).Str("new", newID).Msg("rename record")
		}
		e.persistLocked(ctx, note)

		// The note is addressable now; its content still only exists in
		// the client copy and goes out with the next commit.
		e.markDirtyLocked(ctx, note)
		e.kick()
		e.notify(models.KindNote, newID)
	}
	if e.activeNote == oldID {
		e.activeNote = newID
	}
	return nil
}

func (e *Engine) applySetName(ctx context.Context, rec *models.Record, op models.Op) error {
	name, err := op.StringValue()
	if err != nil {
		return err
	}
	rec.Profile.Client.Name = name
	rec.Profile.Shadow.Name = name
	return nil
}

func (e *Engine) applySetEmail(ctx context.Context, rec *models.Record, op models.Op) error {
	email, err := op.StringValue()
	if err != nil {
		return err
	}
	rec.Profile.Client.Email = email
	rec.Profile.Shadow.Email = email
	return nil
}

func (e *Engine) applySetPhone(ctx context.Context, rec *models.Record, op models.Op) error {
	phone, err := op.StringValue()
	if err != nil {
		return err
	}
	rec.Profile.Client.Phone = phone
	rec.Profile.Shadow.Phone = phone
	return nil
}

func (e *Engine) applySetTier(ctx context.Context, rec *models.Record, op models.Op) error {
	tier, err := op.IntValue()
	if err != nil {
		return err
	}
	rec.Profile.Client.Tier = int(tier)
	rec.Profile.Shadow.Tier = int(tier)
	return nil
}

// applyAddUser upserts a contact. A contact added locally without a uid is
// a pending invite; when the server sends the resolved account, the
// placeholder matching by email or phone is replaced instead of duplicated.
func (e *Engine) applyAddUser(ctx context.Context, rec *models.Record, op models.Op) error {
	var user models.UserRef
	if err := op.DecodeValue(&user); err != nil {
		return err
	}
	for _, body := range []*models.ProfileBody{&rec.Profile.Client, &rec.Profile.Shadow} {
		upsertContact(body, user)
	}
	return nil
}

func upsertContact(body *models.ProfileBody, user models.UserRef) {
	if user.UID != "" {
		if c := body.FindContact(user.UID); c != nil {
			*c = user
			return
		}
		for i := range body.Contacts {
			c := &body.Contacts[i]
			if c.UID == "" && ((c.Email != "" && c.Email == user.Email) || (c.Phone != "" && c.Phone == user.Phone)) {
				*c = user
				return
			}
		}
	}
	body.Contacts = append(body.Contacts, user)
}

// applySwapContact is the contact-list counterpart of applySwapUser: the
// server resolved an invited contact to a real account and replaces its
// identity in place.
func (e *Engine) applySwapContact(ctx context.Context, rec *models.Record, op models.Op) error {
	var user models.UserRef
	if err := op.DecodeValue(&user); err != nil {
		return err
	}
	uid := op.PathID()
	for _, body := range []*models.ProfileBody{&rec.Profile.Client, &rec.Profile.Shadow} {
		if c := body.FindContact(uid); c != nil {
			*c = user
			continue
		}
		// Invited contacts may not have carried a uid yet.
		for i := range body.Contacts {
			c := &body.Contacts[i]
			if c.UID == "" && ((c.Email != "" && c.Email == user.Email) || (c.Phone != "" && c.Phone == user.Phone)) {
				*c = user
				break
			}
		}
	}
	return nil
}

func (e *Engine) applyRemUser(ctx context.Context, rec *models.Record, op models.Op) error {
	uid := op.PathID()
	rec.Profile.Client.RemoveContact(uid)
	rec.Profile.Shadow.RemoveContact(uid)
	return nil
}
