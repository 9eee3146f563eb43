// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Jotline Authors

// Package sync implements the differential synchronization engine: it keeps
// the local replica of notes, folio and profile converging with the server
// replica over an unreliable, unordered transport.
//
// Every record carries a client copy (what the caller sees and edits) and a
// shadow copy (the last state both sides provably agreed on), plus a cv/sv
// version vector. Local edits become compact deltas against the shadow,
// queued until the server confirms them; inbound deltas are ordered by the
// version vector alone and patched fuzzily into the client copy so
// concurrent edits on both sides merge instead of clobbering each other.
//
// The engine is single-writer: one Run loop owns all reconciliation and
// commit work, and public mutators funnel through a mutex into the same
// state. Crash recovery never loses local edits; at worst a record (or in
// the extreme the session) is reinitialized from the server and local
// changes are re-diffed against the fresh shadow.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	gosync "sync"
	"time"

	"github.com/jotline/jotline/internal/adapter"
	"github.com/jotline/jotline/internal/broadcast"
	"github.com/jotline/jotline/internal/config"
	"github.com/jotline/jotline/internal/diff"
	"github.com/jotline/jotline/internal/logger"
	"github.com/jotline/jotline/internal/store"
	"github.com/jotline/jotline/models"
)

// Stage values describing the visibility of the embedding context. Only a
// foreground context remaps the caret when inbound text patches land.
const (
	StageForeground = "fg"
	StageBackground = "bg"
)

// Options carries the dependencies of an Engine. Transport, Store, Differ
// and Log are required; Tokens and Bcast are optional (no anonymous
// sign-up and no cross-context propagation without them).
type Options struct {
	Config    config.Config
	Log       *logger.Logger
	Differ    *diff.Engine
	Store     store.ReplicaStore
	Transport adapter.Transport
	Tokens    adapter.TokenClient
	Bcast     broadcast.Broadcaster
}

// Engine synchronizes the local replica with the server.
type Engine struct {
	cfg       config.Config
	log       *logger.Logger
	differ    *diff.Engine
	store     store.ReplicaStore
	transport adapter.Transport
	tokens    adapter.TokenClient
	bcast     broadcast.Broadcaster

	mu      gosync.Mutex
	records map[string]*models.Record

	sid       string
	uid       string
	folioID   string
	profileID string

	tokenBag  []string
	authTag   string
	authToken string

	// inFlight is the global commit lock: while a commit batch is awaiting
	// acknowledgement no new batch is built. Per-record tags additionally
	// lock individual records.
	inFlight bool

	activeNote string
	stage      string

	onChange func(kind models.Kind, id string)

	kicks chan struct{}
	now   func() time.Time
}

// New validates opts and builds an Engine. Call Run to start it.
func New(opts Options) (*Engine, error) {
	switch {
	case opts.Log == nil:
		return nil, fmt.Errorf("sync: Options.Log is required")
	case opts.Differ == nil:
		return nil, fmt.Errorf("sync: Options.Differ is required")
	case opts.Store == nil:
		return nil, fmt.Errorf("sync: Options.Store is required")
	case opts.Transport == nil:
		return nil, fmt.Errorf("sync: Options.Transport is required")
	}

	return &Engine{
		cfg:       opts.Config,
		log:       opts.Log.WithComponent("engine"),
		differ:    opts.Differ,
		store:     opts.Store,
		transport: opts.Transport,
		tokens:    opts.Tokens,
		bcast:     opts.Bcast,
		records:   make(map[string]*models.Record),
		stage:     StageForeground,
		kicks:     make(chan struct{}, 1),
		now:       time.Now,
	}, nil
}

// Run hydrates the replica, connects the transport and drives the engine
// until ctx is cancelled. It blocks.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.hydrate(ctx); err != nil {
		return fmt.Errorf("hydrate replica: %w", err)
	}

	e.transport.SetConnectHandler(func() { e.authenticate(ctx) })
	if err := e.transport.Connect(ctx); err != nil {
		return fmt.Errorf("connect transport: %w", err)
	}

	debounce := time.NewTimer(e.cfg.Sync.CommitDebounce)
	defer debounce.Stop()
	retry := time.NewTicker(e.cfg.Sync.RetryInterval)
	defer retry.Stop()

	var cmds <-chan models.Command
	if e.bcast != nil {
		cmds = e.bcast.Commands()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case batch, ok := <-e.transport.Inbox():
			if !ok {
				return nil
			}
			e.handleBatch(ctx, batch)

		case <-e.kicks:
			debounce.Reset(e.cfg.Sync.CommitDebounce)

		case <-debounce.C:
			e.Commit(ctx)

		case <-retry.C:
			e.reclaimStale(ctx)

		case cmd, ok := <-cmds:
			if !ok {
				cmds = nil
				continue
			}
			e.handleCommand(ctx, cmd)
		}
	}
}

// hydrate loads the persisted replica into memory.
func (e *Engine) hydrate(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sid, err := e.store.GetMeta(ctx, store.MetaSID)
	if err != nil {
		return err
	}
	e.sid = sid

	if raw, err := e.store.GetMeta(ctx, store.MetaTokens); err != nil {
		return err
	} else if raw != "" {
		if err := json.Unmarshal([]byte(raw), &e.tokenBag); err != nil {
			e.log.Warn().Err(err).Msg("discarding unreadable token bag")
			e.tokenBag = nil
		}
	}

	recs, err := e.store.AllRecords(ctx)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		e.records[rec.ID] = rec
		switch rec.Kind {
		case models.KindFolio:
			e.folioID = rec.ID
		case models.KindProfile:
			e.profileID = rec.ID
			e.uid = rec.Profile.Client.UID
		}
	}

	e.log.Info().Int("records", len(recs)).Str("sid", sid).Msg("replica hydrated")
	return nil
}

// kick arms the commit debounce timer. Coalesces while one is pending.
func (e *Engine) kick() {
	select {
	case e.kicks <- struct{}{}:
	default:
	}
}

func (e *Engine) nowMillis() int64 {
	return e.now().UnixMilli()
}

// resolve maps a wire resource reference to the in-memory record.
func (e *Engine) resolve(res *models.ResourceRef) *models.Record {
	if res == nil {
		return nil
	}
	rec := e.records[res.ID]
	if rec == nil || rec.Kind != res.Kind {
		return nil
	}
	return rec
}

func (e *Engine) persistLocked(ctx context.Context, rec *models.Record) {
	if err := e.store.SaveRecord(ctx, rec); err != nil {
		e.log.Error().Err(err).Str("id", rec.ID).Msg("persist record")
	}
}

func (e *Engine) markDirtyLocked(ctx context.Context, rec *models.Record) {
	if err := e.store.MarkDirty(ctx, rec.ID); err != nil {
		e.log.Error().Err(err).Str("id", rec.ID).Msg("mark dirty")
	}
}

func (e *Engine) persistTokensLocked(ctx context.Context) {
	raw, err := json.Marshal(e.tokenBag)
	if err != nil {
		e.log.Error().Err(err).Msg("encode token bag")
		return
	}
	if err := e.store.SetMeta(ctx, store.MetaTokens, string(raw)); err != nil {
		e.log.Error().Err(err).Msg("persist token bag")
	}
}

// notify invokes the change listener on its own goroutine so listeners can
// call back into the engine without deadlocking. An empty kind signals a
// workspace-wide change.
func (e *Engine) notify(kind models.Kind, id string) {
	if fn := e.onChange; fn != nil {
		go fn(kind, id)
	}
}

// OnChange registers fn to be called after a record changes through sync or
// a sibling-context command. The callback runs on its own goroutine and
// must read state through the accessor methods. An empty kind means the
// whole workspace changed.
func (e *Engine) OnChange(fn func(kind models.Kind, id string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onChange = fn
}

// handleCommand applies a sibling-context command.
func (e *Engine) handleCommand(ctx context.Context, cmd models.Command) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch cmd.Name {
	case models.CmdSetActiveNote:
		e.activeNote = cmd.NoteID
		e.notify(models.KindNote, cmd.NoteID)

	case models.CmdSetStage:
		e.stage = cmd.Stage

	case models.CmdSessionReset:
		// A sibling wiped the shared replica; drop in-memory state and
		// start over without wiping again.
		e.log.Warn().Str("sid", cmd.SID).Msg("session reset by sibling context")
		e.clearLocalLocked()
		e.authenticateLocked(ctx)
		e.notify("", "")

	default:
		e.log.Debug().Str("cmd", cmd.Name).Msg("ignoring unknown command")
	}
}
