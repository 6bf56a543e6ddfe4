// Package jsonobj provides a JSON object that keeps its keys in document order.
//
// Dataset manifests and COCO files are rewritten in place after repairs. Going
// through map[string]any would reorder every key and drop the split order the
// validator depends on, so both codecs decode into an Object instead. Values
// stay as raw JSON until a caller asks for them; nested objects requested via
// Child are cached and marshalled live, so edits made through a child are
// visible when the parent is written back.
package jsonobj

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Object is an ordered JSON object.
type Object struct {
	keys     []string
	values   map[string]json.RawMessage
	children map[string]*Object
}

// New returns an empty object.
func New() *Object {
	return &Object{
		values:   make(map[string]json.RawMessage),
		children: make(map[string]*Object),
	}
}

// Parse decodes data, which must hold a single JSON object.
func Parse(data []byte) (*Object, error) {
	o := New()
	if err := o.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return o, nil
}

// Keys returns the keys in document order.
func (o *Object) Keys() []string {
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Len returns the number of keys.
func (o *Object) Len() int { return len(o.keys) }

// Has reports whether key is present.
func (o *Object) Has(key string) bool {
	_, ok := o.values[key]
	return ok
}

// Raw returns the raw JSON stored under key. Edits made through a cached
// child are included.
func (o *Object) Raw(key string) (json.RawMessage, bool) {
	if c, ok := o.children[key]; ok {
		data, err := c.MarshalJSON()
		if err != nil {
			return nil, false
		}
		return data, true
	}
	v, ok := o.values[key]
	return v, ok
}

// Get decodes the value under key into v. It returns false when the key is
// absent.
func (o *Object) Get(key string, v any) (bool, error) {
	raw, ok := o.Raw(key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

// String returns the value under key when it is a JSON string.
func (o *Object) String(key string) (string, bool) {
	var s string
	ok, err := o.Get(key, &s)
	if !ok || err != nil {
		return "", false
	}
	return s, true
}

// Int inspects the value under key. present reports whether the key exists;
// isInt reports whether the value is an integer literal (no fraction or
// exponent, not a bool or string).
func (o *Object) Int(key string) (value int64, present, isInt bool) {
	raw, ok := o.Raw(key)
	if !ok {
		return 0, false, false
	}
	v, ok := IntLiteral(raw)
	return v, true, ok
}

// Child returns the nested object under key. The child is cached: later
// edits to it are reflected when o is marshalled.
func (o *Object) Child(key string) (*Object, error) {
	if c, ok := o.children[key]; ok {
		return c, nil
	}
	raw, ok := o.values[key]
	if !ok {
		return nil, fmt.Errorf("key %q not found", key)
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("key %q: %w", key, err)
	}
	o.children[key] = c
	return c, nil
}

// Objects decodes the array under key into a list of objects.
func (o *Object) Objects(key string) ([]*Object, error) {
	raw, ok := o.Raw(key)
	if !ok {
		return nil, fmt.Errorf("key %q not found", key)
	}
	return ParseArray(raw)
}

// Set stores v under key, appending the key when it is new.
func (o *Object) Set(key string, v any) error {
	if c, ok := v.(*Object); ok {
		o.put(key, nil)
		o.children[key] = c
		return nil
	}
	data, err := marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	o.put(key, data)
	delete(o.children, key)
	return nil
}

// Delete removes key.
func (o *Object) Delete(key string) {
	if !o.Has(key) {
		return
	}
	delete(o.values, key)
	delete(o.children, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

func (o *Object) put(key string, raw json.RawMessage) {
	if !o.Has(key) {
		o.keys = append(o.keys, key)
	}
	o.values[key] = raw
}

// UnmarshalJSON implements json.Unmarshaler. A repeated key keeps its first
// position and its last value.
func (o *Object) UnmarshalJSON(data []byte) error {
	if o.values == nil {
		o.values = make(map[string]json.RawMessage)
	}
	if o.children == nil {
		o.children = make(map[string]*Object)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected a JSON object, got %v", describe(tok))
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected an object key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
		o.put(key, raw)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	if _, err := dec.Token(); err == nil {
		return fmt.Errorf("unexpected data after the top-level object")
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		if c, ok := o.children[k]; ok {
			cb, err := c.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(cb)
			continue
		}
		buf.Write(o.values[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ParseArray decodes a JSON array whose elements are all objects.
func ParseArray(data []byte) ([]*Object, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, err
	}
	out := make([]*Object, 0, len(raws))
	for i, r := range raws {
		obj, err := Parse(r)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out = append(out, obj)
	}
	return out, nil
}

// Indent renders v as JSON indented with four spaces and a trailing newline.
// HTML characters are left unescaped so file names round-trip byte for byte.
func Indent(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// IntLiteral reports whether raw is a JSON integer literal and returns it.
func IntLiteral(raw json.RawMessage) (int64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.ContainsAny(raw, ".eE") {
		return 0, false
	}
	if raw[0] != '-' && (raw[0] < '0' || raw[0] > '9') {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	v, err := n.Int64()
	if err != nil {
		return 0, false
	}
	return v, true
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func describe(tok json.Token) string {
	switch t := tok.(type) {
	case json.Delim:
		if t == '[' {
			return "an array"
		}
		return string(t)
	case string:
		return "a string"
	case nil:
		return "null"
	case bool:
		return "a boolean"
	default:
		return "a number"
	}
}
