// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Jotline Authors

package sync

import "errors"

var (
	// ErrUnknownRecord is returned by mutators addressing a record id that
	// is not part of the replica.
	ErrUnknownRecord = errors.New("sync: unknown record")

	// ErrNoSession is returned by operations that need a hydrated workspace
	// before a session has been established.
	ErrNoSession = errors.New("sync: no session")
)
