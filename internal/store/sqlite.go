package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hpungsan/lookout/internal/db"
)

// SQLiteStore keeps the same single snapshot document in a one-row table.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLiteStore returns a store backed by an initialized database (see db.Init).
func NewSQLiteStore(database *sql.DB, logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteStore{db: database, logger: logger, now: time.Now}
}

// Load reads the snapshot row, falling back to Empty() on any failure.
func (s *SQLiteStore) Load(ctx context.Context) *Tasks {
	body, _, err := db.GetSnapshot(ctx, s.db)
	if err != nil {
		if !stderrors.Is(err, db.ErrNoSnapshot) {
			s.logger.Warn("snapshot unreadable, using empty collection", "error", err)
		}
		return Empty()
	}

	t, err := ParseTasks(body)
	if err != nil {
		s.logger.Warn("snapshot corrupt, using empty collection", "error", err)
		return Empty()
	}
	return t
}

// Save replaces the snapshot row with the encoded collection.
func (s *SQLiteStore) Save(ctx context.Context, t *Tasks) error {
	data, err := t.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode tasks: %w", err)
	}
	return db.PutSnapshot(ctx, s.db, data, s.now().Unix())
}
