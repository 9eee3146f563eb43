// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Jotline Authors

package adapter

import "errors"

var (
	// ErrOffline is returned by Send when no connection is established.
	ErrOffline = errors.New("adapter: transport offline")

	// ErrClosed is returned after Close has been called.
	ErrClosed = errors.New("adapter: transport closed")

	// ErrBadStatus is returned by the token client on a non-2xx response.
	ErrBadStatus = errors.New("adapter: unexpected http status")
)
