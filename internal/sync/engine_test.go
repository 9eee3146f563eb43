package sync

import (
	"context"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jotline/jotline/internal/adapter"
	"github.com/jotline/jotline/internal/config"
	"github.com/jotline/jotline/internal/diff"
	"github.com/jotline/jotline/internal/logger"
	"github.com/jotline/jotline/internal/store"
	"github.com/jotline/jotline/models"
)

// fakeTransport records outbound batches and lets tests inject inbound
// ones, with a switchable online state.
type fakeTransport struct {
	mu      gosync.Mutex
	online  bool
	batches [][]models.Message
	inbox   chan []models.Message
	handler func()
	sendErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{online: true, inbox: make(chan []models.Message, 16)}
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.online = true
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h()
	}
	return nil
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) Send(msgs []models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	if !f.online {
		return adapter.ErrOffline
	}
	f.batches = append(f.batches, msgs)
	return nil
}

func (f *fakeTransport) Inbox() <-chan []models.Message { return f.inbox }

func (f *fakeTransport) Online() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online
}

func (f *fakeTransport) SetConnectHandler(fn func()) {
	f.mu.Lock()
	f.handler = fn
	f.mu.Unlock()
}

func (f *fakeTransport) setOnline(v bool) {
	f.mu.Lock()
	f.online = v
	f.mu.Unlock()
}

func (f *fakeTransport) sent() [][]models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]models.Message, len(f.batches))
	copy(out, f.batches)
	return out
}

func (f *fakeTransport) lastBatch(t *testing.T) []models.Message {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.batches, "nothing was sent")
	return f.batches[len(f.batches)-1]
}

type testEnv struct {
	t   *testing.T
	ctx context.Context
	eng *Engine
	tr  *fakeTransport
	st  store.ReplicaStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	tr := newFakeTransport()
	st := store.NewMemoryStore()
	eng, err := New(Options{
		Config:    config.Default(),
		Log:       logger.Nop(),
		Differ:    diff.NewEngine(diff.NewTextDiffer(), logger.Nop()),
		Store:     st,
		Transport: tr,
	})
	require.NoError(t, err)
	eng.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return &testEnv{t: t, ctx: context.Background(), eng: eng, tr: tr, st: st}
}

// seedSession installs a minimal established session: sid, profile and an
// empty folio, all clocks at zero.
func (env *testEnv) seedSession() {
	env.t.Helper()
	e := env.eng
	e.sid = "sess-1"
	e.uid = "u-1"

	profile := &models.Record{
		ID:   "prof-1",
		Kind: models.KindProfile,
		Profile: &models.ProfileRecord{
			Client: models.ProfileBody{UID: "u-1", Name: "Ada"},
			Shadow: models.ProfileBody{UID: "u-1", Name: "Ada"},
		},
	}
	folio := &models.Record{ID: "folio-1", Kind: models.KindFolio, Folio: &models.FolioRecord{}}

	e.records[profile.ID] = profile
	e.records[folio.ID] = folio
	e.profileID = profile.ID
	e.folioID = folio.ID
	require.NoError(env.t, env.st.SaveRecord(env.ctx, profile))
	require.NoError(env.t, env.st.SaveRecord(env.ctx, folio))
	require.NoError(env.t, env.st.SetMeta(env.ctx, store.MetaSID, e.sid))
}

// addNote registers a note whose client and shadow copies both hold text.
func (env *testEnv) addNote(id, text string) *models.Record {
	env.t.Helper()
	rec := &models.Record{
		ID:   id,
		Kind: models.KindNote,
		Note: &models.NoteRecord{
			Client: models.NoteBody{Text: text},
			Shadow: models.NoteBody{Text: text},
		},
	}
	env.eng.records[id] = rec
	require.NoError(env.t, env.st.SaveRecord(env.ctx, rec))
	return rec
}

func (env *testEnv) dirtyIDs() []string {
	env.t.Helper()
	ids, err := env.st.DirtyIDs(env.ctx)
	require.NoError(env.t, err)
	return ids
}

// textDelta builds a wire text delta the way the engine does.
func textDelta(t *testing.T, from, to string) string {
	t.Helper()
	return diff.NewTextDiffer().Delta(from, to)
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)

	_, err = New(Options{
		Log:    logger.Nop(),
		Differ: diff.NewEngine(diff.NewTextDiffer(), logger.Nop()),
		Store:  store.NewMemoryStore(),
	})
	require.Error(t, err)
}

func TestHandleCommand_SetActiveNote(t *testing.T) {
	env := newTestEnv(t)
	env.seedSession()
	env.addNote("note-100", "hi")

	env.eng.handleCommand(env.ctx, models.Command{Name: models.CmdSetActiveNote, NoteID: "note-100"})
	assert.Equal(t, "note-100", env.eng.activeNote)
}

func TestHandleCommand_SetStage(t *testing.T) {
	env := newTestEnv(t)
	env.eng.handleCommand(env.ctx, models.Command{Name: models.CmdSetStage, Stage: StageBackground})
	assert.Equal(t, StageBackground, env.eng.stage)
}

func TestHandleCommand_SessionResetDropsStateWithoutWiping(t *testing.T) {
	env := newTestEnv(t)
	env.seedSession()
	env.addNote("note-100", "hi")
	env.tr.setOnline(false)

	env.eng.handleCommand(env.ctx, models.Command{Name: models.CmdSessionReset, SID: "sess-1"})

	assert.Empty(t, env.eng.records)
	assert.Empty(t, env.eng.sid)
	// The sibling already wiped the shared store; this instance must not
	// wipe again, only drop its memory.
	got, err := env.st.GetMeta(env.ctx, store.MetaSID)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", got)
}

func TestHydrate_RestoresReplica(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.st.SetMeta(env.ctx, store.MetaSID, "sess-7"))
	require.NoError(t, env.st.SetMeta(env.ctx, store.MetaTokens, `["tok-1"]`))
	require.NoError(t, env.st.SaveRecord(env.ctx, &models.Record{
		ID:      "prof-7",
		Kind:    models.KindProfile,
		Profile: &models.ProfileRecord{Client: models.ProfileBody{UID: "u-7"}},
	}))
	require.NoError(t, env.st.SaveRecord(env.ctx, &models.Record{
		ID:    "folio-7",
		Kind:  models.KindFolio,
		Folio: &models.FolioRecord{},
	}))

	require.NoError(t, env.eng.hydrate(env.ctx))

	assert.Equal(t, "sess-7", env.eng.sid)
	assert.Equal(t, "u-7", env.eng.uid)
	assert.Equal(t, "prof-7", env.eng.profileID)
	assert.Equal(t, "folio-7", env.eng.folioID)
	assert.Equal(t, []string{"tok-1"}, env.eng.tokenBag)
}
