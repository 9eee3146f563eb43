// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Jotline Authors

// Package jotline is the public entry point of the synchronization engine.
//
// It wires the configuration, logger, replica store, websocket transport,
// cross-context broadcaster and the sync engine into a Client the embedding
// application runs. All editing goes through the Engine the Client exposes;
// the engine keeps the local replica converging with the server and fires
// the change listener whenever a record moves.
package jotline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jotline/jotline/internal/adapter"
	"github.com/jotline/jotline/internal/broadcast"
	"github.com/jotline/jotline/internal/config"
	"github.com/jotline/jotline/internal/diff"
	"github.com/jotline/jotline/internal/logger"
	"github.com/jotline/jotline/internal/store"
	"github.com/jotline/jotline/internal/sync"
	"github.com/jotline/jotline/internal/workers"
)

// Aliases so embedding applications can name the engine's types without
// reaching into internal packages.
type (
	// Config is the engine configuration. See DefaultConfig and LoadConfig.
	Config = config.Config
	// Engine is the synchronization engine exposed by Client.Engine.
	Engine = sync.Engine
	// Logger is the structured logger the engine components share.
	Logger = logger.Logger
)

// DefaultConfig returns the built-in configuration defaults.
func DefaultConfig() Config { return config.Default() }

// LoadConfig builds the configuration from JOTLINE_* environment variables,
// an optional JSON file at jsonPath, and the defaults, in that priority.
func LoadConfig(jsonPath string) (Config, error) { return config.Load(jsonPath) }

// NewLogger builds a structured logger tagged with role.
func NewLogger(role string) *Logger { return logger.NewLogger(role) }

// Client owns one synchronization engine instance and the infrastructure
// it runs on. Build it with NewClient, start it with Run, edit through
// Engine().
type Client struct {
	cfg       Config
	log       *Logger
	db        *sql.DB
	store     store.ReplicaStore
	transport *adapter.WSTransport
	bcast     *broadcast.FileBroadcaster
	engine    *sync.Engine
}

// NewClient wires a Client from cfg. A nil log gets a default logger. An
// empty Storage.DSN selects the in-memory replica; an empty Storage.Dir
// disables cross-context propagation.
func NewClient(cfg Config, log *Logger) (*Client, error) {
	if log == nil {
		log = NewLogger("jotline")
	}

	c := &Client{cfg: cfg, log: log}

	if cfg.Storage.DSN == "" {
		c.store = store.NewMemoryStore()
	} else {
		st, db, err := store.Open(cfg.Storage.DSN, log)
		if err != nil {
			return nil, fmt.Errorf("open replica store: %w", err)
		}
		c.store = st
		c.db = db
	}

	c.transport = adapter.NewWSTransport(cfg.Server.WSURL, log)

	var bc broadcast.Broadcaster
	if cfg.Storage.Dir != "" {
		fb, err := broadcast.NewFileBroadcaster(cfg.Storage.Dir, log)
		if err != nil {
			c.closeStore()
			return nil, fmt.Errorf("create broadcaster: %w", err)
		}
		c.bcast = fb
		bc = fb
	}

	eng, err := sync.New(sync.Options{
		Config:    cfg,
		Log:       log,
		Differ:    diff.NewEngine(diff.NewTextDiffer(), log),
		Store:     c.store,
		Transport: c.transport,
		Tokens:    adapter.NewHTTPTokenClient(cfg.Server.HTTPURL, cfg.Server.RequestTimeout, log),
		Bcast:     bc,
	})
	if err != nil {
		c.closeInfra()
		return nil, fmt.Errorf("create engine: %w", err)
	}
	c.engine = eng

	return c, nil
}

// Engine returns the synchronization engine. All note, folio and profile
// operations go through it.
func (c *Client) Engine() *Engine { return c.engine }

// Run starts the background workers and drives the engine until ctx is
// cancelled. It blocks.
func (c *Client) Run(ctx context.Context) error {
	jobs := workers.New(
		sync.NewCommitJob(ctx, c.engine, c.cfg.Sync.CommitInterval, c.log),
	)
	jobs.Run()

	return c.engine.Run(ctx)
}

// Close releases the transport, the broadcaster and the replica database.
func (c *Client) Close() error {
	var errs []error
	if err := c.transport.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close transport: %w", err))
	}
	errs = append(errs, c.closeInfra())
	return errors.Join(errs...)
}

func (c *Client) closeInfra() error {
	var errs []error
	if c.bcast != nil {
		if err := c.bcast.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close broadcaster: %w", err))
		}
	}
	errs = append(errs, c.closeStore())
	return errors.Join(errs...)
}

func (c *Client) closeStore() error {
	if c.db == nil {
		return nil
	}
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("close replica database: %w", err)
	}
	return nil
}
