// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Jotline Authors

// Package adapter provides transport-layer abstractions for talking to the
// sync server.
//
// The primary abstraction is [Transport], which decouples the engine from
// the underlying protocol. The package ships a websocket implementation
// ([NewWSTransport]); the engine treats it as an unreliable channel and
// relies on the version vector, not on transport ordering.
//
// Error values defined in errors.go are mapped from transport failures so
// that callers can use [errors.Is] for transport-agnostic error handling.
package adapter

import (
	"context"

	"github.com/jotline/jotline/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/adapter_mock.go -package=mock

// Transport is a bidirectional message channel to the sync server.
// Implementations own reconnection; the engine only observes Online and
// re-authenticates through the connect handler.
type Transport interface {
	// Connect establishes the connection and starts the receive loop.
	// Reconnection attempts continue in the background until ctx is
	// cancelled or Close is called.
	Connect(ctx context.Context) error

	// Close tears the connection down and stops reconnecting.
	Close() error

	// Send transmits one batch of messages. Returns ErrOffline when no
	// connection is available; the caller keeps its state queued and
	// retries after reconnect.
	Send(msgs []models.Message) error

	// Inbox delivers inbound message batches. The channel is closed when
	// the transport is closed.
	Inbox() <-chan []models.Message

	// Online reports whether a connection is currently established.
	Online() bool

	// SetConnectHandler registers fn to run after every successful
	// (re)connect, before any inbound message is delivered. Used by the
	// engine to authenticate the fresh connection.
	SetConnectHandler(fn func())
}

// TokenClient fetches consumable access tokens from the web server over
// plain HTTP. Only the anonymous-token endpoint is needed by the engine;
// invitation tokens arrive out of band.
type TokenClient interface {
	// AnonToken requests a fresh anonymous access token, used to create a
	// session for a client that has none yet.
	AnonToken(ctx context.Context) (string, error)
}
