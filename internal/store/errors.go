// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Jotline Authors

package store

import "errors"

var (
	// ErrRecordNotFound is returned when the requested record does not
	// exist in the replica.
	ErrRecordNotFound = errors.New("record not found")

	// ErrBackupNotFound is returned when a record has no recovery
	// checkpoint.
	ErrBackupNotFound = errors.New("backup not found")
)
