// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Jotline Authors

package sync

import (
	"context"

	"github.com/jotline/jotline/models"
)

// handleBatch dispatches one inbound message batch.
func (e *Engine) handleBatch(ctx context.Context, batch []models.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range batch {
		msg := &batch[i]
		switch msg.Name {
		case models.MsgResSync:
			e.handleResSync(ctx, msg)
		case models.MsgSessionCreate:
			e.handleSessionCreate(ctx, msg)
		case models.MsgTokenConsume:
			e.handleTokenConsume(ctx, msg)
		case models.MsgClientEhlo:
			// Presence echo; nothing to reconcile.
		default:
			e.log.Debug().Str("name", msg.Name).Msg("ignoring unknown message")
		}
	}
}

// handleResSync reconciles one res-sync message against its record.
//
// The message is either the acknowledgement of our own in-flight commit
// (tag matches the record's tag), a stale response to a commit already
// reclaimed (tags present but different), or a server-initiated push (no
// outstanding tag). Changes inside are ordered by the version vector only:
// exact clock match applies, lagging clocks are duplicates and drop
// silently, leading clocks go through backup recovery.
func (e *Engine) handleResSync(ctx context.Context, msg *models.Message) {
	if msg.Error != nil && msg.Error.Fatal {
		e.log.Error().Str("msg", msg.Error.Msg).Int("code", msg.Error.Code).Msg("fatal server error")
		e.resetSessionLocked(ctx)
		return
	}

	rec := e.resolve(msg.Res)
	if rec == nil {
		e.log.Warn().Interface("res", msg.Res).Msg("sync for unknown resource")
		e.resetSessionLocked(ctx)
		return
	}

	ack := msg.Tag != "" && msg.Tag == rec.Tag
	if !ack && rec.Tag != "" {
		// Anything that is not the acknowledgement of the outstanding
		// commit leaves the record alone. Replying now would re-send the
		// pending edits under a second tag; the ack or the retry timer
		// settles this record.
		e.log.Debug().Str("id", rec.ID).Str("tag", msg.Tag).Msg("dropping message for committing record")
		return
	}

	if msg.Error != nil {
		e.log.Warn().Str("msg", msg.Error.Msg).Int("code", msg.Error.Code).
			Str("id", rec.ID).Msg("server rejected commit")
		if ack {
			rec.Tag = ""
			e.inFlight = false
			e.markDirtyLocked(ctx, rec)
			e.kick()
		}
		return
	}

	for _, change := range msg.Changes {
		e.applyChangeLocked(ctx, rec, change)
		if e.records[rec.ID] != rec {
			// Recovery reset the session; the record is gone.
			return
		}
	}

	if ack {
		e.log.Debug().
			Str("id", rec.ID).
			Dur("rtt", e.now().Sub(rec.SentAt)).
			Msg("commit acknowledged")
		rec.Tag = ""
		e.inFlight = false
		// The record stays dirty until the next commit cycle proves client
		// and shadow match; edits made during the flight go out then.
		e.kick()
	} else {
		e.replyLocked(ctx, rec, msg.Tag)
	}

	e.persistLocked(ctx, rec)
	e.notify(rec.Kind, rec.ID)
}

// applyChangeLocked orders one inbound change against the record clock.
func (e *Engine) applyChangeLocked(ctx context.Context, rec *models.Record, change models.Edit) {
	switch {
	case change.Clock.SV < rec.SV,
		change.Clock.SV == rec.SV && change.Clock.CV < rec.CV:
		// Duplicate delivery of a change we already hold.
		e.log.Debug().
			Str("id", rec.ID).
			Int64("change_cv", change.Clock.CV).
			Int64("change_sv", change.Clock.SV).
			Msg("dropping duplicate change")

	case change.Clock.SV == rec.SV && change.Clock.CV == rec.CV:
		e.applyOps(ctx, rec, change.Delta)
		rec.SV++
		rec.TrimEdits(change.Clock.CV)
		e.stashLocked(ctx, rec)

	default:
		e.recoverLocked(ctx, rec, change)
	}
}

// replyLocked answers a server-initiated push: with the still-pending edit
// queue if one exists, with a freshly computed diff otherwise, or with an
// empty delta at the current clock just to confirm receipt. Real edits in
// the reply take the echoed tag as their in-flight tag so the server's
// acknowledgement correlates.
func (e *Engine) replyLocked(ctx context.Context, rec *models.Record, echoTag string) {
	if !e.transport.Online() || e.sid == "" {
		e.markDirtyLocked(ctx, rec)
		e.kick()
		return
	}

	if !rec.HasPending() {
		if ops := e.differ.Compute(rec, e.uid, e.nowMillis()); len(ops) > 0 {
			edit := models.Edit{
				Clock: models.Clock{CV: rec.CV, SV: rec.SV},
				Delta: ops,
			}
			rec.CV++
			rec.Edits = append(rec.Edits, edit)
			e.stashLocked(ctx, rec)
		}
	}

	tag := echoTag
	if tag == "" {
		tag = e.newTag()
	}

	// Detached copy, the queue outlives the message.
	changes := append([]models.Edit(nil), rec.Edits...)
	if len(changes) == 0 {
		changes = []models.Edit{{
			Clock: models.Clock{CV: rec.CV, SV: rec.SV},
			Delta: []models.Op{},
		}}
	} else {
		rec.Tag = tag
		rec.SentAt = e.now()
		e.inFlight = true
		e.markDirtyLocked(ctx, rec)
	}

	msg := models.Message{
		Name:    models.MsgResSync,
		SID:     e.sid,
		Tag:     tag,
		Res:     &models.ResourceRef{Kind: rec.Kind, ID: rec.ID},
		Changes: changes,
	}
	if err := e.transport.Send([]models.Message{msg}); err != nil {
		e.log.Warn().Err(err).Str("id", rec.ID).Msg("send reply")
		if rec.Tag == tag {
			rec.Tag = ""
			e.inFlight = false
		}
	}
}

// sendPullLocked asks the server for the full state of rec by confirming an
// empty delta at the record's (typically zero) clock. The server answers
// with a delta against our empty shadow, i.e. the whole content.
func (e *Engine) sendPullLocked(rec *models.Record) {
	if !e.transport.Online() || e.sid == "" {
		return
	}
	msg := models.Message{
		Name: models.MsgResSync,
		SID:  e.sid,
		Tag:  e.newTag(),
		Res:  &models.ResourceRef{Kind: rec.Kind, ID: rec.ID},
		Changes: []models.Edit{{
			Clock: models.Clock{CV: rec.CV, SV: rec.SV},
			Delta: []models.Op{},
		}},
	}
	if err := e.transport.Send([]models.Message{msg}); err != nil {
		e.log.Warn().Err(err).Str("id", rec.ID).Msg("send pull")
	}
}
