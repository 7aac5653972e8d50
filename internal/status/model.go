// Package status owns the in-memory dashboard status and composes it with the
// durable task collection.
//
// Every operation runs under one mutex, including the load/modify/save cycle of
// request updates, so two concurrent PATCHes cannot lose each other's write.
// Change hooks run after the lock is released.
package status

import (
	"context"
	"encoding/json"
	"maps"
	"sync"
	"time"

	"github.com/hpungsan/lookout/internal/errors"
	"github.com/hpungsan/lookout/internal/store"
)

// Keys the model stamps itself; values for them in a partial update are ignored.
const (
	keyWorking      = "working"
	keyLastUpdated  = "lastUpdated"
	keyLastActivity = "lastActivity"
)

// Model is the process-wide status state. Create it once with New and pass it
// to whatever serves requests.
type Model struct {
	mu           sync.Mutex
	store        store.Store
	working      map[string]any
	extra        map[string]json.RawMessage
	lastUpdated  time.Time
	lastActivity time.Time
	now          func() time.Time
	hooks        []func()
}

// Option configures a Model.
type Option func(*Model)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

// New creates a model with placeholder working state, backed by s.
func New(s store.Store, opts ...Option) *Model {
	m := &Model{
		store: s,
		now:   time.Now,
		working: map[string]any{
			"title":  "Initializing...",
			"detail": "Setting up dashboard",
		},
		extra: map[string]json.RawMessage{},
	}
	for _, opt := range opts {
		opt(m)
	}
	started := m.stamp()
	m.lastUpdated = started
	m.lastActivity = started
	return m
}

// OnChange registers fn to run after every successful mutation.
func (m *Model) OnChange(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, fn)
}

// ApplyStatusUpdate shallow-merges a JSON object into the in-memory status and
// stamps lastUpdated and lastActivity. Keys absent from partial are preserved.
func (m *Model) ApplyStatusUpdate(_ context.Context, partial []byte) error {
	fields, err := decodeObject(partial)
	if err != nil {
		return errors.NewMalformedInput(err.Error())
	}

	var working map[string]any
	raw, hasWorking := fields[keyWorking]
	if hasWorking {
		if err := json.Unmarshal(raw, &working); err != nil {
			return errors.NewMalformedInput("working: " + err.Error())
		}
		if working == nil {
			working = map[string]any{}
		}
	}

	m.mu.Lock()
	if hasWorking {
		m.working = working
	}
	for k, v := range fields {
		switch k {
		case keyWorking, keyLastUpdated, keyLastActivity:
			continue
		}
		m.extra[k] = v
	}
	now := m.stamp()
	m.lastUpdated = now
	m.lastActivity = now
	m.mu.Unlock()

	m.changed()
	return nil
}

// Snapshot re-reads the durable store and composes it with the in-memory
// status. A non-empty durable working value replaces the in-memory one.
func (m *Model) Snapshot(ctx context.Context) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	tasks := m.store.Load(ctx)
	if len(tasks.Working) > 0 {
		m.working = maps.Clone(tasks.Working)
	}

	return Snapshot{
		Working:      maps.Clone(m.working),
		LastUpdated:  m.lastUpdated,
		LastActivity: m.lastActivity,
		Todo:         tasks.Todo,
		Queue:        tasks.Queue,
		Done:         tasks.Done,
		Requests:     tasks.Requests,
		Extra:        maps.Clone(m.extra),
	}
}

// ReplaceTasks overwrites the durable collection and stamps lastActivity.
func (m *Model) ReplaceTasks(ctx context.Context, tasks *store.Tasks) error {
	m.mu.Lock()
	if err := m.store.Save(ctx, tasks); err != nil {
		m.mu.Unlock()
		return errors.NewPersistence(err)
	}
	m.lastActivity = m.stamp()
	m.mu.Unlock()

	m.changed()
	return nil
}

// ApplyRequestUpdate sets status and/or notes on the request with the given id,
// persists the collection and returns the updated record. When the resulting
// status is approved or rejected, decidedAt is stamped again.
func (m *Model) ApplyRequestUpdate(ctx context.Context, id int, update RequestUpdate) (*store.Request, error) {
	m.mu.Lock()

	tasks := m.store.Load(ctx)
	idx := tasks.FindRequest(id)
	if idx < 0 {
		m.mu.Unlock()
		return nil, errors.NewRequestNotFound(id)
	}

	rec := &tasks.Requests[idx]
	if update.Status != "" {
		rec.SetStatus(update.Status)
	}
	if update.NotesSet {
		rec.SetNotes(update.Notes)
	}
	now := m.stamp()
	if store.IsDecided(rec.Status) {
		rec.SetDecidedAt(now)
	}

	if err := m.store.Save(ctx, tasks); err != nil {
		m.mu.Unlock()
		return nil, errors.NewPersistence(err)
	}
	m.lastActivity = now
	out := *rec
	m.mu.Unlock()

	m.changed()
	return &out, nil
}

func (m *Model) stamp() time.Time {
	return m.now().UTC()
}

func (m *Model) changed() {
	m.mu.Lock()
	hooks := append([]func(){}, m.hooks...)
	m.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}
