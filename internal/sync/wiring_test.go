package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/jotline/jotline/internal/config"
	"github.com/jotline/jotline/internal/diff"
	"github.com/jotline/jotline/internal/logger"
	"github.com/jotline/jotline/internal/mock"
	"github.com/jotline/jotline/internal/store"
	"github.com/jotline/jotline/models"
)

// A mutation that changes the record marks it dirty and persists it, in
// that order; a mutation that changes nothing stays away from the store.
func TestSetNoteText_DrivesStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := mock.NewMockReplicaStore(ctrl)
	eng, err := New(Options{
		Config:    config.Default(),
		Log:       logger.Nop(),
		Differ:    diff.NewEngine(diff.NewTextDiffer(), logger.Nop()),
		Store:     st,
		Transport: newFakeTransport(),
	})
	require.NoError(t, err)

	rec := &models.Record{ID: "note-100", Kind: models.KindNote, Note: &models.NoteRecord{}}
	eng.records[rec.ID] = rec

	gomock.InOrder(
		st.EXPECT().MarkDirty(gomock.Any(), "note-100").Return(nil),
		st.EXPECT().SaveRecord(gomock.Any(), rec).Return(nil),
	)
	require.NoError(t, eng.SetNoteText(context.Background(), "note-100", "Hi", 2))

	// Same text again: nothing changed, nothing persisted.
	require.NoError(t, eng.SetNoteText(context.Background(), "note-100", "Hi", 2))
}

// Offline short-circuits a commit cycle before the dirty set is even read.
func TestCommit_OfflineTouchesNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mock.NewMockTransport(ctrl)
	eng, err := New(Options{
		Config:    config.Default(),
		Log:       logger.Nop(),
		Differ:    diff.NewEngine(diff.NewTextDiffer(), logger.Nop()),
		Store:     store.NewMemoryStore(),
		Transport: tr,
	})
	require.NoError(t, err)
	eng.sid = "sess-1"

	tr.EXPECT().Online().Return(false)
	eng.Commit(context.Background())
}

// A session reset announces itself to sibling contexts sharing the replica.
func TestReset_BroadcastsToSiblings(t *testing.T) {
	ctrl := gomock.NewController(t)
	bc := mock.NewMockBroadcaster(ctrl)
	tr := newFakeTransport()
	tr.setOnline(false)
	eng, err := New(Options{
		Config:    config.Default(),
		Log:       logger.Nop(),
		Differ:    diff.NewEngine(diff.NewTextDiffer(), logger.Nop()),
		Store:     store.NewMemoryStore(),
		Transport: tr,
		Bcast:     bc,
	})
	require.NoError(t, err)
	eng.sid = "sess-9"

	bc.EXPECT().Publish(models.Command{Name: models.CmdSessionReset, SID: "sess-9"}).Return(nil)
	eng.Reset(context.Background())
	assert.Empty(t, eng.sid)
}
