package status

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/lookout/internal/errors"
	"github.com/hpungsan/lookout/internal/store"
)

// fakeClock returns increasing instants one second apart.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

// failingStore loads from an inner store but refuses to save.
type failingStore struct {
	store.Store
}

func (failingStore) Save(context.Context, *store.Tasks) error {
	return stderrors.New("disk full")
}

func setupModel(t *testing.T) (*Model, *store.FileStore) {
	t.Helper()
	fs := store.NewFileStore(filepath.Join(t.TempDir(), "tasks.json"), nil)
	return New(fs, WithClock(newFakeClock().Now)), fs
}

func seedTasks(t *testing.T, fs *store.FileStore, doc string) {
	t.Helper()
	tasks, err := store.ParseTasks([]byte(doc))
	require.NoError(t, err)
	require.NoError(t, fs.Save(context.Background(), tasks))
}

func TestNew_Placeholder(t *testing.T) {
	m, _ := setupModel(t)
	snap := m.Snapshot(context.Background())

	require.Equal(t, "Initializing...", snap.Working["title"])
	require.Equal(t, "Setting up dashboard", snap.Working["detail"])
	require.Equal(t, snap.LastUpdated, snap.LastActivity)
	require.Empty(t, snap.Todo)
	require.Empty(t, snap.Requests)
}

func TestApplyStatusUpdate_ShallowMerge(t *testing.T) {
	m, _ := setupModel(t)
	ctx := context.Background()

	require.NoError(t, m.ApplyStatusUpdate(ctx, []byte(`{"phase":"build","agent":"a1"}`)))
	require.NoError(t, m.ApplyStatusUpdate(ctx, []byte(`{"working":{"title":"Compile"},"phase":"test"}`)))

	snap := m.Snapshot(ctx)
	require.Equal(t, map[string]any{"title": "Compile"}, snap.Working, "working is replaced, not deep-merged")
	require.JSONEq(t, `"test"`, string(snap.Extra["phase"]))
	require.JSONEq(t, `"a1"`, string(snap.Extra["agent"]), "absent keys are preserved")
}

func TestApplyStatusUpdate_StampsOverrideClientTimestamps(t *testing.T) {
	m, _ := setupModel(t)
	ctx := context.Background()

	require.NoError(t, m.ApplyStatusUpdate(ctx, []byte(`{"lastUpdated":"1999-01-01T00:00:00Z","lastActivity":"x"}`)))

	snap := m.Snapshot(ctx)
	require.True(t, snap.LastUpdated.Year() == 2026)
	require.Equal(t, snap.LastUpdated, snap.LastActivity)
	require.NotContains(t, snap.Extra, "lastUpdated")
	require.NotContains(t, snap.Extra, "lastActivity")
}

func TestApplyStatusUpdate_Idempotent(t *testing.T) {
	m, _ := setupModel(t)
	ctx := context.Background()
	partial := []byte(`{"working":{"title":"Same","detail":"d"}}`)

	require.NoError(t, m.ApplyStatusUpdate(ctx, partial))
	first := m.Snapshot(ctx)
	require.NoError(t, m.ApplyStatusUpdate(ctx, partial))
	second := m.Snapshot(ctx)

	require.Equal(t, first.Working, second.Working)
	require.False(t, second.LastUpdated.Before(first.LastUpdated))
	require.False(t, second.LastActivity.Before(first.LastActivity))
}

func TestApplyStatusUpdate_Malformed(t *testing.T) {
	m, _ := setupModel(t)
	ctx := context.Background()
	before := m.Snapshot(ctx)

	for _, body := range []string{"", "{oops", "[1,2]", "null", `"text"`, `{"working":"busy"}`, `{"working":[1]}`} {
		err := m.ApplyStatusUpdate(ctx, []byte(body))
		require.Error(t, err, "body %q", body)
		require.True(t, errors.Is(err, errors.ErrMalformedInput), "body %q: %v", body, err)
	}

	after := m.Snapshot(ctx)
	require.Equal(t, before.Working, after.Working)
	require.Equal(t, before.LastUpdated, after.LastUpdated, "no mutation on failure")
}

func TestSnapshot_DurableWorkingWins(t *testing.T) {
	m, fs := setupModel(t)
	ctx := context.Background()

	require.NoError(t, m.ApplyStatusUpdate(ctx, []byte(`{"working":{"title":"Y"}}`)))
	seedTasks(t, fs, `{"working":{"title":"X"}}`)

	snap := m.Snapshot(ctx)
	require.Equal(t, map[string]any{"title": "X"}, snap.Working)
}

func TestSnapshot_EmptyDurableWorkingKeepsMemory(t *testing.T) {
	m, fs := setupModel(t)
	ctx := context.Background()

	require.NoError(t, m.ApplyStatusUpdate(ctx, []byte(`{"working":{"title":"Y"}}`)))
	seedTasks(t, fs, `{"working":{},"todo":[{"t":1}]}`)

	snap := m.Snapshot(ctx)
	require.Equal(t, map[string]any{"title": "Y"}, snap.Working)
	require.Len(t, snap.Todo, 1)
}

func TestSnapshot_ReadThrough(t *testing.T) {
	m, fs := setupModel(t)
	ctx := context.Background()

	require.Empty(t, m.Snapshot(ctx).Queue)
	seedTasks(t, fs, `{"queue":[{"t":"a"},{"t":"b"}]}`)
	require.Len(t, m.Snapshot(ctx).Queue, 2, "every call re-reads the store")
}

func TestSnapshot_StoreListsHideStatusKeys(t *testing.T) {
	m, fs := setupModel(t)
	ctx := context.Background()

	require.NoError(t, m.ApplyStatusUpdate(ctx, []byte(`{"todo":["from-status"]}`)))
	seedTasks(t, fs, `{"todo":[{"t":"from-store"}]}`)

	out, err := json.Marshal(m.Snapshot(ctx))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	require.Equal(t, []any{map[string]any{"t": "from-store"}}, decoded["todo"])
}

func TestReplaceTasks(t *testing.T) {
	m, fs := setupModel(t)
	ctx := context.Background()
	before := m.Snapshot(ctx)

	tasks, err := store.ParseTasks([]byte(`{"working":{},"todo":[],"queue":[],"done":[{"t":1}],"requests":[{"id":1,"status":"pending"}]}`))
	require.NoError(t, err)
	require.NoError(t, m.ReplaceTasks(ctx, tasks))

	snap := m.Snapshot(ctx)
	require.Len(t, snap.Done, 1)
	require.Len(t, snap.Requests, 1)
	require.True(t, snap.LastActivity.After(before.LastActivity))
	require.Equal(t, before.LastUpdated, snap.LastUpdated, "task writes do not touch lastUpdated")

	_, err = os.Stat(fs.Path())
	require.NoError(t, err)
}

func TestReplaceTasks_PersistenceError(t *testing.T) {
	fs := store.NewFileStore(filepath.Join(t.TempDir(), "tasks.json"), nil)
	m := New(failingStore{fs}, WithClock(newFakeClock().Now))

	err := m.ReplaceTasks(context.Background(), store.Empty())
	require.True(t, errors.Is(err, errors.ErrPersistence))
}

func TestApplyRequestUpdate_OnlyTargetMutated(t *testing.T) {
	m, fs := setupModel(t)
	ctx := context.Background()
	seedTasks(t, fs, `{"requests":[{"id":1,"status":"pending"},{"id":2,"status":"pending"}]}`)

	rec, err := m.ApplyRequestUpdate(ctx, 2, RequestUpdate{Status: "approved"})
	require.NoError(t, err)
	require.Equal(t, 2, rec.ID)
	require.Equal(t, "approved", rec.Status)
	require.NotNil(t, rec.DecidedAt)

	reqs := m.Snapshot(ctx).Requests
	require.Equal(t, "pending", reqs[0].Status)
	require.Nil(t, reqs[0].DecidedAt)
	require.Equal(t, "approved", reqs[1].Status)
	require.NotNil(t, reqs[1].DecidedAt)
}

func TestApplyRequestUpdate_NotFoundLeavesFileUnchanged(t *testing.T) {
	m, fs := setupModel(t)
	ctx := context.Background()
	seedTasks(t, fs, `{"requests":[{"id":1,"status":"pending"}]}`)

	before, err := os.ReadFile(fs.Path())
	require.NoError(t, err)
	activity := m.Snapshot(ctx).LastActivity

	_, err = m.ApplyRequestUpdate(ctx, 999, RequestUpdate{Status: "approved"})
	require.True(t, errors.Is(err, errors.ErrNotFound))

	after, err := os.ReadFile(fs.Path())
	require.NoError(t, err)
	require.Equal(t, before, after)
	require.Equal(t, activity, m.Snapshot(ctx).LastActivity)
}

func TestApplyRequestUpdate_DecisionStamping(t *testing.T) {
	m, fs := setupModel(t)
	ctx := context.Background()
	seedTasks(t, fs, `{"requests":[{"id":1,"status":"pending"}]}`)

	rec, err := m.ApplyRequestUpdate(ctx, 1, RequestUpdate{Status: "pending"})
	require.NoError(t, err)
	require.Nil(t, rec.DecidedAt, "pending never sets decidedAt")

	rec, err = m.ApplyRequestUpdate(ctx, 1, RequestUpdate{Status: "approved"})
	require.NoError(t, err)
	require.NotNil(t, rec.DecidedAt)
	first := *rec.DecidedAt

	rec, err = m.ApplyRequestUpdate(ctx, 1, RequestUpdate{Status: "rejected"})
	require.NoError(t, err)
	require.True(t, rec.DecidedAt.After(first), "decidedAt is refreshed on every decision")
}

func TestApplyRequestUpdate_Notes(t *testing.T) {
	m, fs := setupModel(t)
	ctx := context.Background()
	seedTasks(t, fs, `{"requests":[{"id":5,"status":"pending","notes":"first"}]}`)

	empty := ""
	rec, err := m.ApplyRequestUpdate(ctx, 5, RequestUpdate{Notes: &empty, NotesSet: true})
	require.NoError(t, err)
	require.NotNil(t, rec.Notes)
	require.Equal(t, "", *rec.Notes, "explicit empty notes overwrite")
	require.Equal(t, "pending", rec.Status, "empty status leaves status alone")

	rec, err = m.ApplyRequestUpdate(ctx, 5, RequestUpdate{})
	require.NoError(t, err)
	require.NotNil(t, rec.Notes, "absent notes leave notes alone")

	rec, err = m.ApplyRequestUpdate(ctx, 5, RequestUpdate{NotesSet: true})
	require.NoError(t, err)
	require.Nil(t, rec.Notes, "null clears notes")
}

func TestApplyRequestUpdate_KeepsNeighboursVerbatim(t *testing.T) {
	m, fs := setupModel(t)
	ctx := context.Background()
	doc := `{"todo":[{"t":"keep me"}],"requests":[{"id":1,"decidedAt":"2024-01-01","status":""},{"id":2,"notes":"x"}]}`
	require.NoError(t, os.WriteFile(fs.Path(), []byte(doc), 0o600))

	rec, err := m.ApplyRequestUpdate(ctx, 2, RequestUpdate{NotesSet: true})
	require.NoError(t, err)
	require.Nil(t, rec.Notes)

	data, err := os.ReadFile(fs.Path())
	require.NoError(t, err)

	var round struct {
		Todo     []map[string]any `json:"todo"`
		Requests []map[string]any `json:"requests"`
	}
	require.NoError(t, json.Unmarshal(data, &round))
	require.Equal(t, "keep me", round.Todo[0]["t"])
	require.Equal(t, map[string]any{"id": float64(1), "decidedAt": "2024-01-01", "status": ""}, round.Requests[0])
	require.Contains(t, round.Requests[1], "notes")
	require.Nil(t, round.Requests[1]["notes"], "null notes are written back as null")
	require.NotContains(t, round.Requests[1], "status")
}

func TestApplyRequestUpdate_PersistenceError(t *testing.T) {
	fs := store.NewFileStore(filepath.Join(t.TempDir(), "tasks.json"), nil)
	seedTasks(t, fs, `{"requests":[{"id":1}]}`)
	m := New(failingStore{fs}, WithClock(newFakeClock().Now))

	_, err := m.ApplyRequestUpdate(context.Background(), 1, RequestUpdate{Status: "approved"})
	require.True(t, errors.Is(err, errors.ErrPersistence))
}

func TestOnChange(t *testing.T) {
	m, fs := setupModel(t)
	ctx := context.Background()
	seedTasks(t, fs, `{"requests":[{"id":1}]}`)

	calls := 0
	m.OnChange(func() {
		calls++
		// Hooks run without the lock held, so reading is safe.
		_ = m.Snapshot(ctx)
	})

	require.NoError(t, m.ApplyStatusUpdate(ctx, []byte(`{}`)))
	require.NoError(t, m.ReplaceTasks(ctx, store.Empty()))
	_, err := m.ApplyRequestUpdate(ctx, 1, RequestUpdate{Status: "approved"})
	require.Error(t, err, "request was removed by ReplaceTasks")
	require.Error(t, m.ApplyStatusUpdate(ctx, []byte(`nope`)))

	require.Equal(t, 2, calls, "hooks fire only for successful mutations")
}

func TestConcurrentRequestUpdates(t *testing.T) {
	m, fs := setupModel(t)
	ctx := context.Background()
	seedTasks(t, fs, `{"requests":[{"id":1},{"id":2},{"id":3},{"id":4}]}`)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for id := 1; id <= 4; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_, err := m.ApplyRequestUpdate(ctx, id, RequestUpdate{Status: "approved"})
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	for _, r := range m.Snapshot(ctx).Requests {
		require.Equal(t, "approved", r.Status, "request %d lost its update", r.ID)
	}
}
