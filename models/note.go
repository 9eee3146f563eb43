// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Jotline Authors

package models

// UserRef identifies a user. Contacts added from a local address book may
// lack a UID until the server resolves them.
type UserRef struct {
	UID   string `json:"uid,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	Tier  int    `json:"tier,omitempty"`
}

// Peer is one collaborator on a note, keyed by User.UID.
type Peer struct {
	User      UserRef `json:"user"`
	Role      string  `json:"role,omitempty"`
	LastSeen  int64   `json:"last_seen,omitempty"`
	LastEdit  int64   `json:"last_edit,omitempty"`
	CursorPos int     `json:"cursor_pos,omitempty"`
}

// NoteBody is the synchronized state of a note.
type NoteBody struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	Peers []Peer `json:"peers,omitempty"`
}

// NoteRecord carries the client and shadow copies of a note plus derived
// fields recomputed from peer timestamps. The derived fields are caches,
// never the source of truth for sync.
type NoteRecord struct {
	Client NoteBody `json:"c"`
	Shadow NoteBody `json:"s"`

	Token   string `json:"token,omitempty"`
	Owner   string `json:"owner,omitempty"`
	Created int64  `json:"created,omitempty"`

	LastEdit   int64  `json:"last_edit,omitempty"`
	LastEditor string `json:"last_editor,omitempty"`
	OwnEdit    int64  `json:"own_edit,omitempty"`
	CursorPos  int    `json:"cursor,omitempty"`
	Unseen     bool   `json:"unseen,omitempty"`

	// PeerChange marks that the peer collection was touched locally and
	// the next diff cycle should run the keyed array-diff over it.
	PeerChange bool `json:"-"`
}

// FindPeer returns the peer with the given uid, or nil.
func (n *NoteBody) FindPeer(uid string) *Peer {
	for i := range n.Peers {
		if n.Peers[i].User.UID == uid {
			return &n.Peers[i]
		}
	}
	return nil
}

// RemovePeer deletes the peer with the given uid. It is a no-op when the
// peer is absent.
func (n *NoteBody) RemovePeer(uid string) {
	for i := range n.Peers {
		if n.Peers[i].User.UID == uid {
			n.Peers = append(n.Peers[:i], n.Peers[i+1:]...)
			return
		}
	}
}
