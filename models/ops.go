// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Jotline Authors

package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Operation names carried in deltas. The combination of record kind and
// operation name selects the handler; unknown combinations are a protocol
// error and the offending op is skipped.
const (
	OpSetTitle   = "set-title"
	OpSetCursor  = "set-cursor"
	OpSetToken   = "set-token"
	OpDeltaText  = "delta-text"
	OpAddPeer    = "add-peer"
	OpRemPeer    = "rem-peer"
	OpSwapUser   = "swap-user"
	OpChangeRole = "change-role"
	OpSetTS      = "set-ts"

	OpSetStatus  = "set-status"
	OpAddNoteRef = "add-noteref"
	OpRemNoteRef = "rem-noteref"
	OpSetNID     = "set-nid"

	OpSetName  = "set-name"
	OpSetEmail = "set-email"
	OpSetPhone = "set-phone"
	OpSetTier  = "set-tier"
	OpAddUser  = "add-user"
	OpRemUser  = "rem-user"
)

// Op is a single change operation inside a delta. Value is kept raw on the
// wire and decoded by the typed accessors below at application time.
type Op struct {
	Name  string          `json:"op"`
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value,omitempty"`
}

// NewOp builds an Op, marshalling value. It panics on unmarshallable
// values, which can only happen through a programming error.
func NewOp(name, path string, value any) Op {
	raw, err := json.Marshal(value)
	if err != nil {
		panic(fmt.Sprintf("models: marshal op %q value: %v", name, err))
	}
	return Op{Name: name, Path: path, Value: raw}
}

// StringValue decodes the op value as a string.
func (o Op) StringValue() (string, error) {
	var s string
	if err := json.Unmarshal(o.Value, &s); err != nil {
		return "", fmt.Errorf("op %q value is not a string: %w", o.Name, err)
	}
	return s, nil
}

// IntValue decodes the op value as an integer.
func (o Op) IntValue() (int64, error) {
	var n int64
	if err := json.Unmarshal(o.Value, &n); err != nil {
		return 0, fmt.Errorf("op %q value is not a number: %w", o.Name, err)
	}
	return n, nil
}

// DecodeValue decodes the op value into dst.
func (o Op) DecodeValue(dst any) error {
	if err := json.Unmarshal(o.Value, dst); err != nil {
		return fmt.Errorf("decode op %q value: %w", o.Name, err)
	}
	return nil
}

// PathID extracts the identifier from an op path of the form
// "<collection>/<field>:<id>" or "<field>:<id>", e.g. "peers/uid:42" or
// "nid:abc". Returns an empty string when the path carries no id.
func (o Op) PathID() string {
	p := o.Path
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		p = p[i+1:]
	}
	if i := strings.IndexByte(p, ':'); i >= 0 {
		return p[i+1:]
	}
	return ""
}

// NoteRefValue is the payload of a folio add-noteref op.
type NoteRefValue struct {
	NID    string `json:"nid"`
	Status string `json:"status"`
}

// StampValue is the payload of a note set-ts op. Zero fields were not sent.
type StampValue struct {
	Seen int64 `json:"seen,omitempty"`
	Edit int64 `json:"edit,omitempty"`
}
