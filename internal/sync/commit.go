// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Jotline Authors

package sync

import (
	"context"

	"github.com/jotline/jotline/models"
)

// Commit runs one commit cycle: every dirty record without an in-flight
// commit is diffed, its ops stamped with the current clock and queued, and
// all queued edits are sent in one batch. A record with a non-empty tag is
// skipped until its acknowledgement arrives or the retry timer reclaims it;
// additionally no batch at all is built while a previous batch is awaiting
// acknowledgement.
func (e *Engine) Commit(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commitLocked(ctx)
}

func (e *Engine) commitLocked(ctx context.Context) {
	if e.inFlight || e.sid == "" || !e.transport.Online() {
		return
	}

	dirty, err := e.store.DirtyIDs(ctx)
	if err != nil {
		e.log.Error().Err(err).Msg("load dirty set")
		return
	}

	var (
		batch []models.Message
		sent  []*models.Record
	)
	for _, id := range dirty {
		rec := e.records[id]
		if rec == nil {
			// Record vanished (deleted note); nothing left to send.
			if err := e.store.ClearDirty(ctx, id); err != nil {
				e.log.Error().Err(err).Str("id", id).Msg("clear dirty")
			}
			continue
		}
		if rec.Tag != "" {
			continue
		}

		if ops := e.differ.Compute(rec, e.uid, e.nowMillis()); len(ops) > 0 {
			edit := models.Edit{
				Clock: models.Clock{CV: rec.CV, SV: rec.SV},
				Delta: ops,
			}
			rec.CV++
			rec.Edits = append(rec.Edits, edit)
			e.stashLocked(ctx, rec)
		}

		if !rec.HasPending() {
			if err := e.store.ClearDirty(ctx, rec.ID); err != nil {
				e.log.Error().Err(err).Str("id", rec.ID).Msg("clear dirty")
			}
			e.persistLocked(ctx, rec)
			continue
		}

		rec.Tag = e.newTag()
		rec.SentAt = e.now()
		batch = append(batch, models.Message{
			Name: models.MsgResSync,
			SID:  e.sid,
			Tag:  rec.Tag,
			Res:  &models.ResourceRef{Kind: rec.Kind, ID: rec.ID},
			// Detached copy: the queue keeps mutating (trims, appends)
			// while the transport may still hold the message.
			Changes: append([]models.Edit(nil), rec.Edits...),
		})
		sent = append(sent, rec)
		e.persistLocked(ctx, rec)

		e.log.Debug().
			Str("id", rec.ID).
			Str("kind", string(rec.Kind)).
			Str("tag", rec.Tag).
			Int("edits", len(rec.Edits)).
			Msg("commit queued")
	}

	if len(batch) == 0 {
		return
	}

	if err := e.transport.Send(batch); err != nil {
		// Records stay dirty with their edits queued; the tags are released
		// so the next cycle after reconnect resends everything.
		e.log.Warn().Err(err).Int("records", len(sent)).Msg("commit send failed")
		for _, rec := range sent {
			rec.Tag = ""
		}
		return
	}
	e.inFlight = true
}

// reclaimStale releases commits whose acknowledgement did not arrive within
// the retry interval, returning their records to the dirty pool.
func (e *Engine) reclaimStale(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-e.cfg.Sync.RetryInterval)
	reclaimed := false
	for _, rec := range e.records {
		if rec.Tag == "" || rec.SentAt.After(cutoff) {
			continue
		}
		e.log.Warn().Str("id", rec.ID).Str("tag", rec.Tag).Msg("reclaiming unacknowledged commit")
		rec.Tag = ""
		e.inFlight = false
		e.markDirtyLocked(ctx, rec)
		reclaimed = true
	}
	if reclaimed {
		e.kick()
	}
}

// reclaimAllLocked releases every in-flight commit. Called when the
// connection is replaced, since responses to the old connection will never
// arrive.
func (e *Engine) reclaimAllLocked(ctx context.Context) {
	for _, rec := range e.records {
		if rec.Tag == "" {
			continue
		}
		rec.Tag = ""
		e.markDirtyLocked(ctx, rec)
	}
	e.inFlight = false
}
