// Package record defines the Item type shared by the store, the service and
// the HTTP handlers.
package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// IDKey is the one field name the server reserves on every item.
const IDKey = "id"

// ErrNotObject is returned when a JSON document that should describe an item
// is not a JSON object.
var ErrNotObject = errors.New("record: item must be a JSON object")

// Item is an ordered mapping of field name to string value.
//
// Keys keep insertion order: setting an existing key leaves it in place,
// setting a new key appends it. The zero value is an empty item ready to use.
type Item struct {
	keys   []string
	values map[string]string
}

// New returns an empty Item.
func New() Item {
	return Item{values: map[string]string{}}
}

// Of builds an Item from alternating key/value pairs. A trailing key without
// a value is set to the empty string.
func Of(pairs ...string) Item {
	it := New()
	for i := 0; i < len(pairs); i += 2 {
		v := ""
		if i+1 < len(pairs) {
			v = pairs[i+1]
		}
		it.Set(pairs[i], v)
	}
	return it
}

// Len returns the number of fields.
func (it Item) Len() int { return len(it.keys) }

// Keys returns the field names in order.
func (it Item) Keys() []string {
	out := make([]string, len(it.keys))
	copy(out, it.keys)
	return out
}

// Get returns the value stored under key.
func (it Item) Get(key string) (string, bool) {
	v, ok := it.values[key]
	return v, ok
}

// Value returns the value stored under key, or "" when absent.
func (it Item) Value(key string) string {
	return it.values[key]
}

// ID returns the item's id field.
func (it Item) ID() string {
	return it.values[IDKey]
}

// Set stores value under key.
func (it *Item) Set(key, value string) {
	if it.values == nil {
		it.values = map[string]string{}
	}
	if _, ok := it.values[key]; !ok {
		it.keys = append(it.keys, key)
	}
	it.values[key] = value
}

// Merge copies every field of patch onto it. Patch values win.
func (it *Item) Merge(patch Item) {
	for _, k := range patch.keys {
		it.Set(k, patch.values[k])
	}
}

// Clone returns a deep copy.
func (it Item) Clone() Item {
	out := Item{
		keys:   make([]string, len(it.keys)),
		values: make(map[string]string, len(it.values)),
	}
	copy(out.keys, it.keys)
	for k, v := range it.values {
		out.values[k] = v
	}
	return out
}

// Map returns the fields as a plain map. Order is lost.
func (it Item) Map() map[string]string {
	out := make(map[string]string, len(it.values))
	for k, v := range it.values {
		out[k] = v
	}
	return out
}

// Equal reports whether both items hold the same fields in the same order.
func (it Item) Equal(other Item) bool {
	if len(it.keys) != len(other.keys) {
		return false
	}
	for i, k := range it.keys {
		if other.keys[i] != k || other.values[k] != it.values[k] {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the item as a JSON object in key order.
func (it Item) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range it.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(it.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object into the item, keeping the key order of
// the document. Non-string values are converted with Stringify.
func (it *Item) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return ErrNotObject
	}

	out := New()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("record: unexpected object key %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		v, err := Stringify(raw)
		if err != nil {
			return fmt.Errorf("record: field %q: %w", key, err)
		}
		out.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*it = out
	return nil
}

// Decode reads a single JSON object from r. An empty document decodes to an
// empty item.
func Decode(r io.Reader) (Item, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return Item{}, err
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return New(), nil
	}
	if !json.Valid(b) {
		return Item{}, errors.New("record: invalid JSON")
	}
	var it Item
	if err := it.UnmarshalJSON(b); err != nil {
		return Item{}, err
	}
	return it, nil
}

// Stringify converts one raw JSON value to the string stored in an item.
//
//	"text"        -> text
//	12.50         -> 12.50
//	true / false  -> true / false
//	null          -> ""
//	[...] / {...} -> compact JSON text
func Stringify(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", errors.New("empty value")
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case 'n':
		return "", nil
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return "", err
		}
		return buf.String(), nil
	default:
		return string(raw), nil
	}
}
