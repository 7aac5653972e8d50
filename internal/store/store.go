// Package store persists the task collection as one flat snapshot.
//
// Load never fails: a missing, unreadable or corrupt snapshot yields Empty().
// Save writes the whole collection as a single unit and reports I/O failures
// to the caller.
package store

import "context"

// Store loads and saves the full task collection.
type Store interface {
	Load(ctx context.Context) *Tasks
	Save(ctx context.Context, t *Tasks) error
}
