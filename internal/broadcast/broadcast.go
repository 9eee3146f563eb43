// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Jotline Authors

// Package broadcast propagates lightweight commands between engine
// instances sharing one replica directory, so that several processes (or
// windows) of the same client agree on session resets, the active note
// and the focus stage.
package broadcast

import "github.com/jotline/jotline/models"

//go:generate mockgen -source=broadcast.go -destination=../mock/broadcast_mock.go -package=mock

// Broadcaster fans commands out to every other engine instance attached to
// the same replica. An instance never receives its own publications.
type Broadcaster interface {
	// Publish makes cmd visible to all sibling instances.
	Publish(cmd models.Command) error

	// Commands delivers commands published by siblings.
	Commands() <-chan models.Command

	// Close stops watching and closes the Commands channel.
	Close() error
}
