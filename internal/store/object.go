package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Field is one known key of a JSON object, written in declaration order.
type Field struct {
	Key   string
	Value any
	// OmitNil drops the key when Value is a nil pointer or nil interface.
	OmitNil bool
}

// MarshalObject writes known fields in order, followed by extra keys sorted by
// name. Extra keys that collide with a known field are dropped.
func MarshalObject(known []Field, extra map[string]json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	seen := make(map[string]bool, len(known))
	first := true
	writeKey := func(k string) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		kb, err := json.Marshal(k)
		if err != nil {
			return err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		return nil
	}

	for _, f := range known {
		seen[f.Key] = true
		if f.OmitNil && isNil(f.Value) {
			continue
		}
		vb, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		if err := writeKey(f.Key); err != nil {
			return nil, err
		}
		buf.Write(vb)
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := extra[k]
		if len(v) == 0 {
			v = json.RawMessage("null")
		}
		if err := writeKey(k); err != nil {
			return nil, err
		}
		buf.Write(v)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// decodeFields decodes b as a JSON object, one raw value per key.
func decodeFields(b []byte) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("expected a JSON object")
	}
	return raw, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch p := v.(type) {
	case *string:
		return p == nil
	case *int:
		return p == nil
	case json.RawMessage:
		return p == nil
	}
	return false
}
