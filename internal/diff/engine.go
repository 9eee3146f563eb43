// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Jotline Authors

package diff

import (
	"github.com/jotline/jotline/internal/logger"
	"github.com/jotline/jotline/models"
)

// Engine computes, per record kind, the change operations between the
// client and shadow copies, mutating the shadow to match the client as it
// goes. The caller stamps the resulting ops with the record clock and
// queues them as a pending edit.
type Engine struct {
	text *TextDiffer
	log  *logger.Logger
}

// NewEngine builds a diff engine on top of the given text differ.
func NewEngine(text *TextDiffer, log *logger.Logger) *Engine {
	return &Engine{text: text, log: log}
}

// Text exposes the underlying text differ for patch application.
func (e *Engine) Text() *TextDiffer {
	return e.text
}

// Compute returns the delta between rec's client and shadow copies, or nil
// when they already match. ownUID identifies the local user for timestamp
// ops; now is the current wall clock in unix milliseconds.
func (e *Engine) Compute(rec *models.Record, ownUID string, now int64) []models.Op {
	switch rec.Kind {
	case models.KindNote:
		return e.computeNote(rec, ownUID, now)
	case models.KindFolio:
		return e.computeFolio(rec)
	case models.KindProfile:
		return e.computeProfile(rec)
	default:
		e.log.Error().Str("kind", string(rec.Kind)).Msg("diff requested for unknown record kind")
		return nil
	}
}

func (e *Engine) computeNote(rec *models.Record, ownUID string, now int64) []models.Op {
	// Notes without a server-assigned id are announced through the folio
	// first; diffing them would send deltas for a resource the server
	// cannot address yet.
	if models.IsLocalID(rec.ID) {
		return nil
	}

	n := rec.Note
	var ops []models.Op

	if n.Client.Text != n.Shadow.Text {
		ops = append(ops, models.NewOp(models.OpDeltaText, "", e.text.Delta(n.Shadow.Text, n.Client.Text)))
		n.Shadow.Text = n.Client.Text
	}

	if n.Client.Title != n.Shadow.Title {
		ops = append(ops, models.NewOp(models.OpSetTitle, "", n.Client.Title))
		n.Shadow.Title = n.Client.Title
	}

	// Any content change also reports our own seen timestamp and caret.
	if len(ops) > 0 && ownUID != "" {
		if peer := n.Client.FindPeer(ownUID); peer != nil {
			seen := peer.LastSeen
			if seen == 0 {
				seen = n.OwnEdit
			}
			if seen == 0 {
				seen = now
			}
			ops = append(ops, models.NewOp(models.OpSetTS, "peers/uid:"+ownUID, models.StampValue{Seen: seen}))

			if peer.CursorPos > 0 {
				ops = append(ops, models.NewOp(models.OpSetCursor, "peers/uid:"+ownUID, peer.CursorPos))
			}
		}
	}

	if n.PeerChange {
		ad := ArrayDiff(n.Client.Peers, n.Shadow.Peers,
			func(p models.Peer) string { return p.User.UID },
			func(shadow, client models.Peer) bool { return shadow.LastSeen != client.LastSeen },
		)
		for _, ch := range ad.Changed {
			ops = append(ops, models.NewOp(models.OpSetTS, "peers/uid:"+ch.ID, models.StampValue{Seen: ch.Client.LastSeen}))
			if sp := n.Shadow.FindPeer(ch.ID); sp != nil {
				sp.LastSeen = ch.Client.LastSeen
			}
		}
		n.PeerChange = false
	}

	return ops
}

func (e *Engine) computeFolio(rec *models.Record) []models.Op {
	f := rec.Folio
	var ops []models.Op

	ad := ArrayDiff(f.Client, f.Shadow,
		func(entry models.FolioEntry) string { return entry.NID },
		func(shadow, client models.FolioEntry) bool { return shadow.Status != client.Status },
	)

	for _, ch := range ad.Changed {
		ops = append(ops, models.NewOp(models.OpSetStatus, "nid:"+ch.ID, ch.Client.Status))
		if se := models.FindEntry(f.Shadow, ch.ID); se != nil {
			se.Status = ch.Client.Status
		}
	}

	for _, nid := range ad.Removed {
		ops = append(ops, models.NewOp(models.OpRemNoteRef, "nid:"+nid, nil))
		f.Shadow, _ = models.RemoveEntry(f.Shadow, nid)
	}

	// Locally minted notes are announced by reference only; the server
	// answers with set-nid once it has assigned a permanent id, and the
	// shadow entry is created then.
	for _, entry := range f.Client {
		if models.IsLocalID(entry.NID) {
			ops = append(ops, models.NewOp(models.OpAddNoteRef, "", models.NoteRefValue{NID: entry.NID, Status: entry.Status}))
		}
	}

	return ops
}

func (e *Engine) computeProfile(rec *models.Record) []models.Op {
	p := rec.Profile
	var ops []models.Op

	if p.Client.Name != p.Shadow.Name {
		ops = append(ops, models.NewOp(models.OpSetName, "user/uid:"+p.Client.UID, p.Client.Name))
		p.Shadow.Name = p.Client.Name
	}
	if p.Client.Email != p.Shadow.Email {
		ops = append(ops, models.NewOp(models.OpSetEmail, "user/uid:"+p.Client.UID, p.Client.Email))
		p.Shadow.Email = p.Client.Email
	}
	if p.Client.Phone != p.Shadow.Phone {
		ops = append(ops, models.NewOp(models.OpSetPhone, "user/uid:"+p.Client.UID, p.Client.Phone))
		p.Shadow.Phone = p.Client.Phone
	}

	// Contacts without a uid are invites the server has not resolved yet.
	for _, c := range p.Client.Contacts {
		if c.UID == "" {
			ops = append(ops, models.NewOp(models.OpAddUser, "contacts/", c))
		}
	}

	ad := ArrayDiff(p.Client.Contacts, p.Shadow.Contacts,
		func(u models.UserRef) string { return u.UID },
		nil,
	)
	for _, uid := range ad.Added {
		if c := p.Client.FindContact(uid); c != nil {
			ops = append(ops, models.NewOp(models.OpAddUser, "contacts/", *c))
			p.Shadow.Contacts = append(p.Shadow.Contacts, *c)
		}
	}
	for _, uid := range ad.Removed {
		ops = append(ops, models.NewOp(models.OpRemUser, "contacts/uid:"+uid, nil))
		p.Shadow.RemoveContact(uid)
	}

	return ops
}
