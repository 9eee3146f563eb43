// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Jotline Authors

package sync

import (
	"context"

	"github.com/jotline/jotline/models"
)

// stashLocked checkpoints the record's shadow and clock. A checkpoint is
// taken after every shadow mutation, so when the persisted record turns out
// to lag behind the server's view the checkpoint can bridge the gap.
func (e *Engine) stashLocked(ctx context.Context, rec *models.Record) {
	b, err := models.NewBackup(rec)
	if err != nil {
		e.log.Error().Err(err).Str("id", rec.ID).Msg("build backup")
		return
	}
	if err := e.store.SaveBackup(ctx, b); err != nil {
		e.log.Error().Err(err).Str("id", rec.ID).Msg("persist backup")
	}
}

// recoverLocked handles an inbound change whose clock is ahead of the
// record. If the backup checkpoint sits exactly at the server's stated
// clock, a previously applied state was lost and the checkpoint is
// restored; the change then applies cleanly and local edits are recomputed
// from the untouched client copy. Without a usable checkpoint the record
// (for notes) or the whole session (for folio and profile) is
// reinitialized from the server.
func (e *Engine) recoverLocked(ctx context.Context, rec *models.Record, change models.Edit) {
	b, err := e.store.GetBackup(ctx, rec.ID)
	if err == nil && b.CV == change.Clock.CV && b.SV == change.Clock.SV {
		if err := b.Restore(rec); err != nil {
			e.log.Error().Err(err).Str("id", rec.ID).Msg("restore backup")
		} else {
			e.log.Info().
				Str("id", rec.ID).
				Int64("cv", b.CV).
				Int64("sv", b.SV).
				Msg("shadow restored from backup")
			if rec.Tag != "" {
				rec.Tag = ""
				e.inFlight = false
			}
			e.applyOps(ctx, rec, change.Delta)
			rec.SV++
			rec.TrimEdits(change.Clock.CV)
			e.stashLocked(ctx, rec)

			// The restore dropped the pending queue; whatever the client
			// copy still differs by is re-diffed on the next cycle.
			e.markDirtyLocked(ctx, rec)
			e.kick()
			return
		}
	}

	e.log.Warn().
		Str("id", rec.ID).
		Str("kind", string(rec.Kind)).
		Int64("change_cv", change.Clock.CV).
		Int64("change_sv", change.Clock.SV).
		Int64("cv", rec.CV).
		Int64("sv", rec.SV).
		Msg("version vector unrecoverable")

	if rec.Kind == models.KindNote {
		e.resetRecordLocked(ctx, rec)
	} else {
		e.resetSessionLocked(ctx)
	}
}

// resetRecordLocked reinitializes one note from the server: the clock and
// pending queue are cleared and the shadow emptied, so the server's next
// response delivers the full content as a delta against the empty shadow.
// The client copy is untouched; local changes survive through the fuzzy
// patch and the next diff cycle.
func (e *Engine) resetRecordLocked(ctx context.Context, rec *models.Record) {
	e.log.Warn().Str("id", rec.ID).Msg("resetting record")

	rec.CV, rec.SV = 0, 0
	rec.Edits = nil
	if rec.Tag != "" {
		rec.Tag = ""
		e.inFlight = false
	}
	rec.Note.Shadow = models.NoteBody{}

	if err := e.store.DeleteBackup(ctx, rec.ID); err != nil {
		e.log.Error().Err(err).Str("id", rec.ID).Msg("drop backup")
	}
	e.persistLocked(ctx, rec)
	e.markDirtyLocked(ctx, rec)

	if e.transport.Online() && e.sid != "" {
		msg := models.Message{
			Name: models.MsgResReset,
			SID:  e.sid,
			Tag:  e.newTag(),
			Res:  &models.ResourceRef{Kind: rec.Kind, ID: rec.ID},
		}
		if err := e.transport.Send([]models.Message{msg}); err != nil {
			e.log.Warn().Err(err).Str("id", rec.ID).Msg("send reset")
		}
	}
	e.kick()
}
