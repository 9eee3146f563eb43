package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jotline/jotline/internal/logger"
	"github.com/jotline/jotline/models"
)

func newTestEngine() *Engine {
	return NewEngine(NewTextDiffer(), logger.Nop())
}

func noteRecord(id string) *models.Record {
	return &models.Record{
		ID:   id,
		Kind: models.KindNote,
		Note: &models.NoteRecord{},
	}
}

func opNames(ops []models.Op) []string {
	names := make([]string, 0, len(ops))
	for _, op := range ops {
		names = append(names, op.Name)
	}
	return names
}

func TestComputeNote_TextAndTitle(t *testing.T) {
	e := newTestEngine()
	rec := noteRecord("note_12345")
	rec.Note.Client = models.NoteBody{Title: "Groceries", Text: "milk\neggs"}

	ops := e.Compute(rec, "", 0)

	assert.Equal(t, []string{models.OpDeltaText, models.OpSetTitle}, opNames(ops))
	// shadow now matches client
	assert.Equal(t, rec.Note.Client.Text, rec.Note.Shadow.Text)
	assert.Equal(t, rec.Note.Client.Title, rec.Note.Shadow.Title)

	// the text op carries a delta that patches the old shadow to the client text
	delta, err := ops[0].StringValue()
	require.NoError(t, err)
	patched, _, _, err := e.Text().PatchPair("", "", delta)
	require.NoError(t, err)
	assert.Equal(t, "milk\neggs", patched)
}

func TestComputeNote_NoChangesReturnsNil(t *testing.T) {
	e := newTestEngine()
	rec := noteRecord("note_12345")
	rec.Note.Client = models.NoteBody{Title: "Same", Text: "same"}
	rec.Note.Shadow = rec.Note.Client

	assert.Empty(t, e.Compute(rec, "", 0))
}

func TestComputeNote_LocalIDSkipped(t *testing.T) {
	e := newTestEngine()
	rec := noteRecord("ab12") // client-minted, unsynced
	rec.Note.Client.Text = "offline note"

	assert.Empty(t, e.Compute(rec, "", 0))
	// shadow untouched until the server assigns a permanent id
	assert.Empty(t, rec.Note.Shadow.Text)
}

func TestComputeNote_ContentChangeAddsOwnStamp(t *testing.T) {
	e := newTestEngine()
	rec := noteRecord("note_12345")
	rec.Note.Client = models.NoteBody{
		Text: "hello",
		Peers: []models.Peer{
			{User: models.UserRef{UID: "u1"}, LastSeen: 1111, CursorPos: 5},
		},
	}

	ops := e.Compute(rec, "u1", 9999)

	names := opNames(ops)
	assert.Contains(t, names, models.OpSetTS)
	assert.Contains(t, names, models.OpSetCursor)

	for _, op := range ops {
		if op.Name == models.OpSetTS {
			assert.Equal(t, "u1", op.PathID())
			var stamp models.StampValue
			require.NoError(t, op.DecodeValue(&stamp))
			assert.Equal(t, int64(1111), stamp.Seen)
		}
	}
}

func TestComputeNote_PeerSeenChange(t *testing.T) {
	e := newTestEngine()
	rec := noteRecord("note_12345")
	rec.Note.Shadow = models.NoteBody{
		Text:  "t",
		Peers: []models.Peer{{User: models.UserRef{UID: "u2"}, LastSeen: 10}},
	}
	rec.Note.Client = models.NoteBody{
		Text:  "t",
		Peers: []models.Peer{{User: models.UserRef{UID: "u2"}, LastSeen: 42}},
	}
	rec.Note.PeerChange = true

	ops := e.Compute(rec, "u1", 0)

	require.Len(t, ops, 1)
	assert.Equal(t, models.OpSetTS, ops[0].Name)
	assert.Equal(t, "u2", ops[0].PathID())
	// shadow equalized, flag reset
	assert.Equal(t, int64(42), rec.Note.Shadow.Peers[0].LastSeen)
	assert.False(t, rec.Note.PeerChange)
}

func TestComputeFolio_StatusAndNewNote(t *testing.T) {
	e := newTestEngine()
	rec := &models.Record{
		ID:   "folio_1",
		Kind: models.KindFolio,
		Folio: &models.FolioRecord{
			Client: []models.FolioEntry{
				{NID: "note_12345", Status: models.FolioStatusArchived},
				{NID: "ab12", Status: models.FolioStatusActive}, // local, unsynced
			},
			Shadow: []models.FolioEntry{
				{NID: "note_12345", Status: models.FolioStatusActive},
			},
		},
	}

	ops := e.Compute(rec, "", 0)

	assert.Equal(t, []string{models.OpSetStatus, models.OpAddNoteRef}, opNames(ops))

	assert.Equal(t, "note_12345", ops[0].PathID())
	status, err := ops[0].StringValue()
	require.NoError(t, err)
	assert.Equal(t, models.FolioStatusArchived, status)
	// shadow equalized for the status change
	assert.Equal(t, models.FolioStatusArchived, rec.Folio.Shadow[0].Status)

	var ref models.NoteRefValue
	require.NoError(t, ops[1].DecodeValue(&ref))
	assert.Equal(t, "ab12", ref.NID)
	// local note not copied into the shadow until set-nid arrives
	assert.Nil(t, models.FindEntry(rec.Folio.Shadow, "ab12"))
}

func TestComputeFolio_RemovedNote(t *testing.T) {
	e := newTestEngine()
	rec := &models.Record{
		ID:   "folio_1",
		Kind: models.KindFolio,
		Folio: &models.FolioRecord{
			Client: []models.FolioEntry{},
			Shadow: []models.FolioEntry{{NID: "note_12345", Status: models.FolioStatusActive}},
		},
	}

	ops := e.Compute(rec, "", 0)

	require.Len(t, ops, 1)
	assert.Equal(t, models.OpRemNoteRef, ops[0].Name)
	assert.Equal(t, "note_12345", ops[0].PathID())
	assert.Empty(t, rec.Folio.Shadow)
}

func TestComputeProfile_ScalarsAndContacts(t *testing.T) {
	e := newTestEngine()
	rec := &models.Record{
		ID:   "profile_1",
		Kind: models.KindProfile,
		Profile: &models.ProfileRecord{
			Client: models.ProfileBody{
				UID:   "u1",
				Name:  "New Name",
				Email: "new@example.com",
				Contacts: []models.UserRef{
					{Email: "invite@example.com"}, // no uid yet
				},
			},
			Shadow: models.ProfileBody{
				UID:      "u1",
				Name:     "Old Name",
				Email:    "old@example.com",
				Contacts: []models.UserRef{{UID: "gone"}},
			},
		},
	}

	ops := e.Compute(rec, "u1", 0)
	names := opNames(ops)

	assert.Contains(t, names, models.OpSetName)
	assert.Contains(t, names, models.OpSetEmail)
	assert.Contains(t, names, models.OpAddUser)
	assert.Contains(t, names, models.OpRemUser)

	assert.Equal(t, "New Name", rec.Profile.Shadow.Name)
	assert.Equal(t, "new@example.com", rec.Profile.Shadow.Email)
	assert.Nil(t, rec.Profile.Shadow.FindContact("gone"))
}

func TestCompute_UnknownKind(t *testing.T) {
	e := newTestEngine()
	rec := &models.Record{ID: "x", Kind: models.Kind("bogus")}

	assert.Nil(t, e.Compute(rec, "", 0))
}
