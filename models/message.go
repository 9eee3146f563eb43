// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Jotline Authors

package models

import "encoding/json"

// Wire message names. Messages always travel in arrays, even when a single
// message is sent.
const (
	MsgSessionCreate = "session-create"
	MsgResSync       = "res-sync"
	MsgResReset      = "res-reset"
	MsgTokenConsume  = "token-consume"
	MsgClientEhlo    = "client-ehlo"
)

// ResourceRef addresses one record on the wire.
type ResourceRef struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}

// ServerError is attached by the server to a failed message. Fatal errors
// trigger an unconditional full session reset on the client.
type ServerError struct {
	Code  int    `json:"code,omitempty"`
	Msg   string `json:"msg,omitempty"`
	Fatal bool   `json:"fatal,omitempty"`
}

// Message is the envelope for every exchange with the server.
type Message struct {
	Name  string `json:"name"`
	SID   string `json:"sid,omitempty"`
	Tag   string `json:"tag,omitempty"`
	Token string `json:"token,omitempty"`

	Res     *ResourceRef `json:"res,omitempty"`
	Changes []Edit       `json:"changes,omitempty"`

	Session *SessionPayload `json:"session,omitempty"`
	Error   *ServerError    `json:"error,omitempty"`
}

// SessionPayload is the full workspace snapshot delivered with a
// session-create response.
type SessionPayload struct {
	Profile SessionResource            `json:"profile"`
	Folio   SessionResource            `json:"folio"`
	Notes   map[string]SessionResource `json:"notes,omitempty"`
}

// SessionResource is one record inside a session payload. Val is decoded
// per kind into ProfileVal, []FolioEntry or NoteVal.
type SessionResource struct {
	Kind Kind            `json:"kind"`
	ID   string          `json:"id"`
	Val  json.RawMessage `json:"val"`
}

// ProfileVal is the session payload body for the profile record.
type ProfileVal struct {
	User     UserRef   `json:"user"`
	Contacts []UserRef `json:"contacts,omitempty"`
}

// NoteVal is the session payload body for one note record.
type NoteVal struct {
	Title        string  `json:"title"`
	Text         string  `json:"text"`
	Peers        []Peer  `json:"peers,omitempty"`
	SharingToken string  `json:"sharing_token,omitempty"`
	CreatedBy    UserRef `json:"created_by"`
	CreatedAt    int64   `json:"created_at,omitempty"`
}
