// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Jotline Authors

package config

import "errors"

var (
	// ErrNoSyncEndpoint is returned when no sync server endpoint is
	// configured.
	ErrNoSyncEndpoint = errors.New("no sync endpoint configured")

	// ErrBadInterval is returned when a timing setting is zero or
	// negative.
	ErrBadInterval = errors.New("interval must be positive")
)
