// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Jotline Authors

package models

// ProfileBody is the synchronized state of the user profile: the user's own
// identity fields plus the contact list keyed by UID.
type ProfileBody struct {
	UID      string    `json:"uid,omitempty"`
	Name     string    `json:"name,omitempty"`
	Email    string    `json:"email,omitempty"`
	Phone    string    `json:"phone,omitempty"`
	Tier     int       `json:"tier"`
	SID      string    `json:"sid,omitempty"`
	Contacts []UserRef `json:"contacts,omitempty"`
}

// ProfileRecord carries the client and shadow copies of the profile.
type ProfileRecord struct {
	Client ProfileBody `json:"c"`
	Shadow ProfileBody `json:"s"`
}

// FindContact returns the contact with the given uid, or nil.
func (p *ProfileBody) FindContact(uid string) *UserRef {
	for i := range p.Contacts {
		if p.Contacts[i].UID == uid {
			return &p.Contacts[i]
		}
	}
	return nil
}

// RemoveContact deletes the contact with the given uid. No-op when absent.
func (p *ProfileBody) RemoveContact(uid string) {
	for i := range p.Contacts {
		if p.Contacts[i].UID == uid {
			p.Contacts = append(p.Contacts[:i], p.Contacts[i+1:]...)
			return
		}
	}
}
