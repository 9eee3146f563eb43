// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Jotline Authors

package sync

import (
	"strings"

	"github.com/google/uuid"

	"github.com/jotline/jotline/models"
)

// newTag mints a correlation tag for an outbound message.
func (e *Engine) newTag() string {
	return uuid.NewString()
}

// newLocalID mints a short client-side note id. Staying below
// models.ServerIDMinLen marks the note as not yet announced; the server
// replaces the id via set-nid once it has assigned a permanent one.
func newLocalID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:models.ServerIDMinLen-1]
	return id
}
