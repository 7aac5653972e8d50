package status

import (
	"encoding/json"
	"time"

	"github.com/hpungsan/lookout/internal/store"
)

// Snapshot is the point-in-time view served to API and stream clients.
// Extra holds any other top-level keys clients merged into the status.
type Snapshot struct {
	Working      map[string]any
	LastUpdated  time.Time
	LastActivity time.Time
	Todo         []json.RawMessage
	Queue        []json.RawMessage
	Done         []json.RawMessage
	Requests     []store.Request
	Extra        map[string]json.RawMessage
}

// MarshalJSON implements json.Marshaler. Task lists from the store take
// precedence over same-named keys in Extra.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	return store.MarshalObject([]store.Field{
		{Key: keyWorking, Value: s.Working},
		{Key: keyLastUpdated, Value: s.LastUpdated.Format(time.RFC3339Nano)},
		{Key: keyLastActivity, Value: s.LastActivity.Format(time.RFC3339Nano)},
		{Key: "todo", Value: s.Todo},
		{Key: "queue", Value: s.Queue},
		{Key: "done", Value: s.Done},
		{Key: "requests", Value: s.Requests},
	}, s.Extra)
}
