// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Jotline Authors

package models

// Broadcast command names. Commands describe target state, not deltas, so
// replaying the same command twice is a no-op by construction.
const (
	CmdSetActiveNote = "set-active-note"
	CmdSetStage      = "set-stage"
	CmdSessionReset  = "session-reset"
)

// Command is a state-changing instruction propagated to sibling contexts
// that share the same replica store, so multiple open views stay
// consistent without a second server round-trip.
type Command struct {
	Name   string `json:"name"`
	SID    string `json:"sid,omitempty"`
	NoteID string `json:"nid,omitempty"`
	Stage  string `json:"stage,omitempty"`
}
