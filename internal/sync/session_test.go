package sync

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jotline/jotline/internal/store"
	"github.com/jotline/jotline/models"
)

type fakeTokens struct {
	token string
	err   error
	calls int
}

func (f *fakeTokens) AnonToken(ctx context.Context) (string, error) {
	f.calls++
	return f.token, f.err
}

func mustRaw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func sessionCreated(t *testing.T, tag, sid string) models.Message {
	t.Helper()
	return models.Message{
		Name: models.MsgSessionCreate,
		SID:  sid,
		Tag:  tag,
		Session: &models.SessionPayload{
			Profile: models.SessionResource{
				Kind: models.KindProfile,
				ID:   "prof-9",
				Val: mustRaw(t, models.ProfileVal{
					User:     models.UserRef{UID: "u-9", Name: "Ada", Email: "ada@example.com"},
					Contacts: []models.UserRef{{UID: "u-2", Name: "Bo"}},
				}),
			},
			Folio: models.SessionResource{
				Kind: models.KindFolio,
				ID:   "folio-9",
				Val: mustRaw(t, []models.FolioEntry{
					{NID: "note-900", Status: models.FolioStatusActive},
				}),
			},
			Notes: map[string]models.SessionResource{
				"note-900": {
					Kind: models.KindNote,
					ID:   "note-900",
					Val: mustRaw(t, models.NoteVal{
						Title:     "Shared",
						Text:      "hello from the server",
						CreatedBy: models.UserRef{UID: "u-9"},
						CreatedAt: 1_600_000_000_000,
					}),
				},
			},
		},
	}
}

func TestSessionCreate_HydratesWorkspace(t *testing.T) {
	env := newTestEnv(t)
	env.eng.authTag = "auth-1"
	env.eng.authToken = "tok-a"
	env.eng.tokenBag = []string{"tok-a", "tok-b"}

	env.eng.handleBatch(env.ctx, []models.Message{sessionCreated(t, "auth-1", "sess-9")})

	e := env.eng
	assert.Equal(t, "sess-9", e.sid)
	assert.Equal(t, "u-9", e.uid)
	assert.Equal(t, "prof-9", e.profileID)
	assert.Equal(t, "folio-9", e.folioID)
	assert.Equal(t, []string{"tok-b"}, e.tokenBag, "the spent token leaves the bag")

	prof := e.records["prof-9"]
	require.NotNil(t, prof)
	assert.Equal(t, "Ada", prof.Profile.Client.Name)
	assert.Equal(t, prof.Profile.Client, prof.Profile.Shadow)
	assert.EqualValues(t, 0, prof.CV)
	assert.EqualValues(t, 0, prof.SV)

	note := e.records["note-900"]
	require.NotNil(t, note)
	assert.Equal(t, "hello from the server", note.Note.Client.Text)
	assert.Equal(t, note.Note.Client, note.Note.Shadow)
	assert.Equal(t, "u-9", note.Note.Owner)

	folio := e.records["folio-9"]
	require.NotNil(t, folio)
	require.NotNil(t, models.FindEntry(folio.Folio.Client, "note-900"))

	sid, err := env.st.GetMeta(env.ctx, store.MetaSID)
	require.NoError(t, err)
	assert.Equal(t, "sess-9", sid)
}

// Notes written before any session existed survive session creation and
// get announced through the folio.
func TestSessionCreate_CarriesLocalNotesOver(t *testing.T) {
	env := newTestEnv(t)
	local := &models.Record{
		ID:   "ab1",
		Kind: models.KindNote,
		Note: &models.NoteRecord{Client: models.NoteBody{Title: "Draft", Text: "offline words"}},
	}
	env.eng.records["ab1"] = local
	require.NoError(t, env.st.SaveRecord(env.ctx, local))
	env.eng.authTag = "auth-1"
	env.eng.authToken = "tok-a"
	env.eng.tokenBag = []string{"tok-a"}

	env.eng.handleBatch(env.ctx, []models.Message{sessionCreated(t, "auth-1", "sess-9")})

	kept := env.eng.records["ab1"]
	require.NotNil(t, kept)
	assert.Equal(t, "offline words", kept.Note.Client.Text)

	folio := env.eng.records["folio-9"]
	require.NotNil(t, models.FindEntry(folio.Folio.Client, "ab1"))
	assert.Nil(t, models.FindEntry(folio.Folio.Shadow, "ab1"),
		"the announcement travels as a folio diff")
	assert.Contains(t, env.dirtyIDs(), "folio-9")
}

func TestSessionCreate_StaleResponseDropped(t *testing.T) {
	env := newTestEnv(t)

	env.eng.handleBatch(env.ctx, []models.Message{sessionCreated(t, "auth-gone", "sess-9")})

	assert.Empty(t, env.eng.sid)
	assert.Empty(t, env.eng.records)
}

func TestSessionCreate_RejectedDropsToken(t *testing.T) {
	env := newTestEnv(t)
	env.eng.authTag = "auth-1"
	env.eng.authToken = "tok-bad"
	env.eng.tokenBag = []string{"tok-bad"}

	env.eng.handleBatch(env.ctx, []models.Message{{
		Name:  models.MsgSessionCreate,
		Tag:   "auth-1",
		Error: &models.ServerError{Code: 403, Msg: "token expired"},
	}})

	assert.Empty(t, env.eng.sid)
	assert.Empty(t, env.eng.tokenBag)
	assert.Empty(t, env.eng.authTag)
}

// Reconnecting with a live session announces it and reclaims tags lost
// with the previous connection.
func TestAuthenticate_ExistingSessionSendsEhlo(t *testing.T) {
	env := newTestEnv(t)
	env.seedSession()
	rec := env.addNote("note-100", "hi")
	rec.Tag = "tag-lost"
	env.eng.inFlight = true

	env.eng.authenticate(env.ctx)

	batch := env.tr.lastBatch(t)
	require.Len(t, batch, 1)
	assert.Equal(t, models.MsgClientEhlo, batch[0].Name)
	assert.Equal(t, "sess-1", batch[0].SID)

	assert.Empty(t, rec.Tag)
	assert.False(t, env.eng.inFlight)
	assert.Contains(t, env.dirtyIDs(), "note-100")
}

func TestAuthenticate_RequestsAnonToken(t *testing.T) {
	env := newTestEnv(t)
	tokens := &fakeTokens{token: "tok-anon"}
	env.eng.tokens = tokens

	env.eng.authenticate(env.ctx)

	assert.Equal(t, 1, tokens.calls)
	batch := env.tr.lastBatch(t)
	require.Len(t, batch, 1)
	assert.Equal(t, models.MsgSessionCreate, batch[0].Name)
	assert.Equal(t, "tok-anon", batch[0].Token)
	assert.Equal(t, batch[0].Tag, env.eng.authTag)
	assert.Equal(t, []string{"tok-anon"}, env.eng.tokenBag)
}

func TestAuthenticate_NoTokenSource(t *testing.T) {
	env := newTestEnv(t)

	env.eng.authenticate(env.ctx)

	assert.Empty(t, env.tr.sent())
	assert.Empty(t, env.eng.authTag)
}

func TestAuthenticate_PrefersBaggedToken(t *testing.T) {
	env := newTestEnv(t)
	tokens := &fakeTokens{err: errors.New("unreachable")}
	env.eng.tokens = tokens
	env.eng.tokenBag = []string{"tok-kept"}

	env.eng.authenticate(env.ctx)

	assert.Zero(t, tokens.calls)
	batch := env.tr.lastBatch(t)
	assert.Equal(t, "tok-kept", batch[0].Token)
}

// A consumed sharing token that unlocked a note produces a placeholder
// whose content is pulled immediately.
func TestTokenConsume_SharedNotePulled(t *testing.T) {
	env := newTestEnv(t)
	env.seedSession()
	env.eng.tokenBag = []string{"tok-s"}

	env.eng.handleBatch(env.ctx, []models.Message{{
		Name:  models.MsgTokenConsume,
		SID:   "sess-1",
		Token: "tok-s",
		Res:   &models.ResourceRef{Kind: models.KindNote, ID: "note-500"},
	}})

	assert.Empty(t, env.eng.tokenBag)
	note := env.eng.records["note-500"]
	require.NotNil(t, note)

	folio := env.eng.records["folio-1"]
	require.NotNil(t, models.FindEntry(folio.Folio.Client, "note-500"))
	require.NotNil(t, models.FindEntry(folio.Folio.Shadow, "note-500"))

	batch := env.tr.lastBatch(t)
	require.Len(t, batch, 1)
	require.Equal(t, "note-500", batch[0].Res.ID)
	require.Len(t, batch[0].Changes, 1)
	assert.Equal(t, models.Clock{CV: 0, SV: 0}, batch[0].Changes[0].Clock)
	assert.Empty(t, batch[0].Changes[0].Delta)
}

func TestTokenConsume_RejectedDropsTokenOnly(t *testing.T) {
	env := newTestEnv(t)
	env.seedSession()
	env.eng.tokenBag = []string{"tok-s"}

	env.eng.handleBatch(env.ctx, []models.Message{{
		Name:  models.MsgTokenConsume,
		SID:   "sess-1",
		Token: "tok-s",
		Error: &models.ServerError{Code: 404, Msg: "unknown token"},
	}})

	assert.Empty(t, env.eng.tokenBag)
	assert.Empty(t, env.tr.sent())
	assert.Len(t, env.eng.records, 2)
}

func TestConsumeToken_OfflineQueues(t *testing.T) {
	env := newTestEnv(t)
	env.seedSession()
	env.tr.setOnline(false)

	require.NoError(t, env.eng.ConsumeToken(env.ctx, "tok-q"))

	assert.Equal(t, []string{"tok-q"}, env.eng.tokenBag)
	assert.Empty(t, env.tr.sent())
}

func TestConsumeToken_OnlineRedeems(t *testing.T) {
	env := newTestEnv(t)
	env.seedSession()

	require.NoError(t, env.eng.ConsumeToken(env.ctx, "tok-q"))

	batch := env.tr.lastBatch(t)
	require.Len(t, batch, 1)
	assert.Equal(t, models.MsgTokenConsume, batch[0].Name)
	assert.Equal(t, "tok-q", batch[0].Token)
	assert.Equal(t, "sess-1", batch[0].SID)
}

func TestReset_WipesAndReauthenticates(t *testing.T) {
	env := newTestEnv(t)
	env.seedSession()
	env.addNote("note-100", "hi")
	env.eng.tokenBag = []string{"tok-next"}

	env.eng.Reset(env.ctx)

	assert.Empty(t, env.eng.sid)
	assert.Empty(t, env.eng.records)

	_, err := env.st.GetRecord(env.ctx, "note-100")
	assert.ErrorIs(t, err, store.ErrRecordNotFound)

	batch := env.tr.lastBatch(t)
	assert.Equal(t, models.MsgSessionCreate, batch[0].Name)
	assert.Equal(t, "tok-next", batch[0].Token)
}
