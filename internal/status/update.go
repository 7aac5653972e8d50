package status

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/hpungsan/lookout/internal/errors"
)

// RequestUpdate is a partial update for one request record.
// An empty Status leaves the status unchanged. NotesSet distinguishes an
// explicit empty (or null) notes value from an absent one.
type RequestUpdate struct {
	Status   string
	Notes    *string
	NotesSet bool
}

// ParseRequestID parses a request id written as decimal digits. Signs,
// fractions and values that overflow int are rejected.
func ParseRequestID(s string) (int, error) {
	if s == "" {
		return 0, errors.NewMalformedInput("request id must be an integer")
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, errors.NewMalformedInput(fmt.Sprintf("invalid request id %q", s))
		}
	}
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.NewMalformedInput(fmt.Sprintf("invalid request id %q", s))
	}
	return id, nil
}

// ParseRequestUpdate decodes a {status?, notes?} body.
func ParseRequestUpdate(body []byte) (RequestUpdate, error) {
	var u RequestUpdate

	fields, err := decodeObject(body)
	if err != nil {
		return u, errors.NewMalformedInput(err.Error())
	}

	if raw, ok := fields["status"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &u.Status); err != nil {
			return u, errors.NewMalformedInput("status: " + err.Error())
		}
	}
	if raw, ok := fields["notes"]; ok {
		u.NotesSet = true
		if !isNull(raw) {
			var notes string
			if err := json.Unmarshal(raw, &notes); err != nil {
				return u, errors.NewMalformedInput("notes: " + err.Error())
			}
			u.Notes = &notes
		}
	}
	return u, nil
}

// decodeObject parses body as a JSON object. Anything else is rejected.
func decodeObject(body []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("unexpected end of JSON input")
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("expected a JSON object")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
