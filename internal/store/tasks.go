package store

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Tasks is the full durable collection. Todo, Queue and Done entries are
// opaque client records. Unknown top-level keys are preserved in Extra.
//
// Decoding is best-effort: a known key whose value has the wrong shape (a
// working that is not an object, a list that is not an array) reads as empty
// and is written back unchanged as long as it stays empty.
type Tasks struct {
	Working  map[string]any
	Todo     []json.RawMessage
	Queue    []json.RawMessage
	Done     []json.RawMessage
	Requests []Request
	Extra    map[string]json.RawMessage

	odd map[string]json.RawMessage
}

var tasksKeys = []string{"working", "todo", "queue", "done", "requests"}

// Empty returns the default collection used when nothing has been persisted.
func Empty() *Tasks {
	t := &Tasks{}
	t.normalize()
	return t
}

// normalize replaces nil collections with empty ones so they encode as {} and [].
func (t *Tasks) normalize() {
	if t.Working == nil {
		t.Working = map[string]any{}
	}
	if t.Todo == nil {
		t.Todo = []json.RawMessage{}
	}
	if t.Queue == nil {
		t.Queue = []json.RawMessage{}
	}
	if t.Done == nil {
		t.Done = []json.RawMessage{}
	}
	if t.Requests == nil {
		t.Requests = []Request{}
	}
}

// FindRequest returns the index of the first matchable request with the
// given id, or -1.
func (t *Tasks) FindRequest(id int) int {
	for i := range t.Requests {
		if t.Requests[i].Matchable() && t.Requests[i].ID == id {
			return i
		}
	}
	return -1
}

// MarshalJSON implements json.Marshaler.
func (t Tasks) MarshalJSON() ([]byte, error) {
	t.normalize()
	fields := []Field{
		{Key: "working", Value: t.Working},
		{Key: "todo", Value: t.Todo},
		{Key: "queue", Value: t.Queue},
		{Key: "done", Value: t.Done},
		{Key: "requests", Value: t.Requests},
	}
	empty := []bool{len(t.Working) == 0, len(t.Todo) == 0, len(t.Queue) == 0, len(t.Done) == 0, len(t.Requests) == 0}
	for i := range fields {
		if raw, ok := t.odd[fields[i].Key]; ok && empty[i] {
			fields[i].Value = raw
		}
	}
	return MarshalObject(fields, t.Extra)
}

// UnmarshalJSON implements json.Unmarshaler. Only malformed JSON fails.
func (t *Tasks) UnmarshalJSON(b []byte) error {
	fields, err := decodeFields(b)
	if err != nil {
		return err
	}

	out := Tasks{}
	keep := func(key string, raw json.RawMessage) {
		if isNull(raw) {
			return
		}
		if out.odd == nil {
			out.odd = make(map[string]json.RawMessage)
		}
		out.odd[key] = raw
	}

	for _, key := range tasksKeys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		delete(fields, key)

		var err error
		switch key {
		case "working":
			err = json.Unmarshal(raw, &out.Working)
		case "todo":
			err = json.Unmarshal(raw, &out.Todo)
		case "queue":
			err = json.Unmarshal(raw, &out.Queue)
		case "done":
			err = json.Unmarshal(raw, &out.Done)
		case "requests":
			err = json.Unmarshal(raw, &out.Requests)
		}
		if err != nil {
			switch key {
			case "working":
				out.Working = nil
			case "todo":
				out.Todo = nil
			case "queue":
				out.Queue = nil
			case "done":
				out.Done = nil
			case "requests":
				out.Requests = nil
			}
			keep(key, raw)
		}
	}
	if len(fields) > 0 {
		out.Extra = fields
	}
	out.normalize()
	*t = out
	return nil
}

// ParseTasks decodes a full task collection. The document must be a JSON object.
func ParseTasks(b []byte) (*Tasks, error) {
	if err := requireObject(b); err != nil {
		return nil, err
	}
	t := &Tasks{}
	if err := json.Unmarshal(b, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Encode renders the collection as the pretty-printed on-disk document.
func (t *Tasks) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func requireObject(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 {
		return fmt.Errorf("unexpected end of JSON input")
	}
	if trimmed[0] != '{' {
		return fmt.Errorf("expected a JSON object")
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
