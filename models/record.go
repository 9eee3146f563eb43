// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Jotline Authors

package models

import "time"

// Kind identifies the type of a synchronized record.
type Kind string

const (
	KindNote    Kind = "note"
	KindFolio   Kind = "folio"
	KindProfile Kind = "profile"
)

// ServerIDMinLen is the minimum length of a server-assigned record id.
// Notes created offline carry a shorter client-minted id until the server
// confirms them with a permanent one; the id length is the discriminator
// between the two states.
const ServerIDMinLen = 5

// IsLocalID reports whether id was minted on the client and has not yet
// been replaced by a server-assigned id.
func IsLocalID(id string) bool {
	return len(id) < ServerIDMinLen
}

// Clock is the per-record version vector. CV counts deltas produced
// locally, SV counts server deltas applied. Together they are the sole
// ordering oracle for inbound messages; transport ordering is never
// assumed.
type Clock struct {
	CV int64 `json:"cv"`
	SV int64 `json:"sv"`
}

// Edit is one not-yet-acknowledged delta, stamped with the Clock that was
// current when it was produced.
type Edit struct {
	Clock Clock `json:"clock"`
	Delta []Op  `json:"delta"`
}

// Record is the unit of synchronization. Exactly one of Note, Folio or
// Profile is non-nil, matching Kind; each body carries the client (working)
// and shadow copies of its data.
//
// The shadow copy is mutated only by the diff engine and the reconciliation
// handler. The client copy is the only one external callers read or write.
type Record struct {
	ID   string `json:"id"`
	Kind Kind   `json:"kind"`

	// CV and SV only ever increase. A decrease signals corruption, not a
	// valid state transition.
	CV int64 `json:"cv"`
	SV int64 `json:"sv"`

	// Edits is the queue of pending deltas. Entries are removed only once
	// the server has proven, via a matching cv, that it incorporated them.
	Edits []Edit `json:"edits,omitempty"`

	// Tag is the correlation tag of the in-flight commit for this record,
	// empty when none is outstanding. A non-empty Tag is the record's
	// logical lock: no second commit is built while it is set.
	Tag    string    `json:"-"`
	SentAt time.Time `json:"-"`

	Note    *NoteRecord    `json:"note,omitempty"`
	Folio   *FolioRecord   `json:"folio,omitempty"`
	Profile *ProfileRecord `json:"profile,omitempty"`
}

// HasPending reports whether the record still has unacknowledged edits.
func (r *Record) HasPending() bool {
	return len(r.Edits) > 0
}

// TrimEdits drops pending edits stamped strictly before cv, the client
// version the server has confirmed. An edit stamped at cv itself was
// produced after the server's snapshot and stays pending.
func (r *Record) TrimEdits(cv int64) {
	kept := r.Edits[:0]
	for _, e := range r.Edits {
		if e.Clock.CV >= cv {
			kept = append(kept, e)
		}
	}
	r.Edits = kept
}
