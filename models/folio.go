// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Jotline Authors

package models

// Folio entry statuses as used on the wire.
const (
	FolioStatusActive   = "active"
	FolioStatusArchived = "archive"
)

// FolioEntry is one note reference in the folio index, keyed by NID.
type FolioEntry struct {
	NID    string `json:"nid"`
	Status string `json:"status"`
}

// FolioRecord carries the client and shadow copies of the folio, each an
// ordered list of note references.
type FolioRecord struct {
	Client []FolioEntry `json:"c"`
	Shadow []FolioEntry `json:"s"`
}

// FindEntry returns the entry with the given nid from entries, or nil.
func FindEntry(entries []FolioEntry, nid string) *FolioEntry {
	for i := range entries {
		if entries[i].NID == nid {
			return &entries[i]
		}
	}
	return nil
}

// RemoveEntry deletes the entry with the given nid and reports whether an
// entry was removed.
func RemoveEntry(entries []FolioEntry, nid string) ([]FolioEntry, bool) {
	for i := range entries {
		if entries[i].NID == nid {
			return append(entries[:i], entries[i+1:]...), true
		}
	}
	return entries, false
}
