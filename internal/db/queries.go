package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
)

// ErrNoSnapshot is returned by GetSnapshot before the first PutSnapshot.
var ErrNoSnapshot = stderrors.New("no snapshot stored")

// GetSnapshot returns the stored snapshot document and its write time (unix seconds).
func GetSnapshot(ctx context.Context, db *sql.DB) ([]byte, int64, error) {
	var body string
	var updatedAt int64
	err := db.QueryRowContext(ctx, "SELECT body, updated_at FROM snapshot WHERE id = 1").Scan(&body, &updatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, 0, ErrNoSnapshot
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return []byte(body), updatedAt, nil
}

// PutSnapshot replaces the stored snapshot document in a single statement.
func PutSnapshot(ctx context.Context, db *sql.DB, body []byte, updatedAt int64) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO snapshot (id, body, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		string(body), updatedAt)
	if err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}
