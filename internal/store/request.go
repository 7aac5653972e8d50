package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Request decision statuses. Status is free-form; only the decided values
// stamp DecidedAt.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Request is a client-submitted item awaiting an approve/reject decision.
//
// Decoding is best-effort. Known keys are kept exactly as the client sent
// them, and the typed fields are only a view of the values that had the
// expected shape: an id that is not an integral number makes the record
// unmatchable, a status or notes that is not a string reads as unset, and a
// decidedAt that is not RFC 3339 reads as nil. Fields the client adds beyond
// the known ones are kept in Extra. Change a decoded Request through the
// Set methods so the stored keys follow.
type Request struct {
	ID        int
	Status    string
	Notes     *string
	DecidedAt *time.Time
	Extra     map[string]json.RawMessage

	decoded   bool
	unmatched bool
	raw       map[string]json.RawMessage // known keys as sent
	opaque    json.RawMessage            // element that was not an object
}

var requestKeys = []string{"id", "status", "notes", "decidedAt"}

// IsDecided reports whether the status is a terminal decision.
func IsDecided(status string) bool {
	return status == StatusApproved || status == StatusRejected
}

// Matchable reports whether the record can be found by id.
func (r *Request) Matchable() bool {
	return !r.unmatched && r.opaque == nil
}

// SetStatus replaces the status.
func (r *Request) SetStatus(status string) {
	r.Status = status
	r.setRaw("status", status)
}

// SetNotes replaces the notes. nil writes an explicit null.
func (r *Request) SetNotes(notes *string) {
	r.Notes = notes
	r.setRaw("notes", notes)
}

// SetDecidedAt stamps the decision time.
func (r *Request) SetDecidedAt(t time.Time) {
	t = t.UTC()
	r.DecidedAt = &t
	r.setRaw("decidedAt", t.Format(time.RFC3339Nano))
}

func (r *Request) setRaw(key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if r.raw == nil {
		r.raw = make(map[string]json.RawMessage, len(requestKeys))
	}
	r.raw[key] = b
}

// MarshalJSON implements json.Marshaler. Keys present when the record was
// decoded, or set since, are written back as stored. A Request built in Go
// writes id always and the other fields when set.
func (r Request) MarshalJSON() ([]byte, error) {
	if r.opaque != nil {
		return r.opaque, nil
	}

	fields := make([]Field, 0, len(requestKeys))
	for _, key := range requestKeys {
		if raw, ok := r.raw[key]; ok {
			fields = append(fields, Field{Key: key, Value: raw})
			continue
		}
		if r.decoded {
			continue
		}
		switch key {
		case "id":
			fields = append(fields, Field{Key: key, Value: r.ID})
		case "status":
			if r.Status != "" {
				fields = append(fields, Field{Key: key, Value: r.Status})
			}
		case "notes":
			if r.Notes != nil {
				fields = append(fields, Field{Key: key, Value: *r.Notes})
			}
		case "decidedAt":
			if r.DecidedAt != nil {
				fields = append(fields, Field{Key: key, Value: r.DecidedAt.UTC().Format(time.RFC3339Nano)})
			}
		}
	}
	return MarshalObject(fields, r.Extra)
}

// UnmarshalJSON implements json.Unmarshaler. It only fails on malformed JSON;
// a value that is not an object is kept verbatim as an unmatchable record.
func (r *Request) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		if !json.Valid(trimmed) {
			return fmt.Errorf("invalid request record")
		}
		*r = Request{decoded: true, unmatched: true, opaque: append(json.RawMessage(nil), trimmed...)}
		return nil
	}

	fields, err := decodeFields(trimmed)
	if err != nil {
		return err
	}

	out := Request{decoded: true, unmatched: true}
	for _, key := range requestKeys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		delete(fields, key)
		if out.raw == nil {
			out.raw = make(map[string]json.RawMessage, len(requestKeys))
		}
		out.raw[key] = raw

		switch key {
		case "id":
			if id, ok := integral(raw); ok {
				out.ID = id
				out.unmatched = false
			}
		case "status":
			var s string
			if json.Unmarshal(raw, &s) == nil {
				out.Status = s
			}
		case "notes":
			var s *string
			if json.Unmarshal(raw, &s) == nil {
				out.Notes = s
			}
		case "decidedAt":
			var s string
			if json.Unmarshal(raw, &s) == nil {
				if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
					out.DecidedAt = &t
				}
			}
		}
	}
	if len(fields) > 0 {
		out.Extra = fields
	}
	*r = out
	return nil
}

// integral reads a JSON number with no fractional part, such as 3 or 3.0.
// Strings and other types are rejected.
func integral(raw json.RawMessage) (int, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || (trimmed[0] != '-' && (trimmed[0] < '0' || trimmed[0] > '9')) {
		return 0, false
	}
	s := string(trimmed)
	if n, err := strconv.ParseInt(s, 10, strconv.IntSize); err == nil {
		return int(n), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int(f), true
}
