package registry

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// NullString is a string that may be absent. Decoding never fails: strings
// are taken as-is, numbers and booleans keep their literal text, and any
// other JSON kind (null, object, array) leaves it invalid.
type NullString struct {
	String string
	Valid  bool
}

// StringOf returns a valid NullString.
func StringOf(s string) NullString {
	return NullString{String: s, Valid: true}
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *NullString) UnmarshalJSON(data []byte) error {
	*s = NullString{}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	switch c := data[0]; {
	case c == '"':
		var v string
		if err := json.Unmarshal(data, &v); err == nil {
			*s = StringOf(v)
		}
	case c == '-' || (c >= '0' && c <= '9'):
		*s = StringOf(string(data))
	case c == 't' || c == 'f':
		*s = StringOf(string(data))
	}

	return nil
}

// MarshalJSON implements json.Marshaler.
func (s NullString) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte("null"), nil
	}
	return marshalNoEscape(s.String)
}

// Present reports whether the value is set and non-blank.
func (s NullString) Present() bool {
	return s.Valid && len(bytes.TrimSpace([]byte(s.String))) > 0
}

// NullBool is a boolean that may be absent. It accepts JSON booleans and the
// strings "true"/"false"; anything else leaves it invalid.
type NullBool struct {
	Bool  bool
	Valid bool
}

// BoolOf returns a valid NullBool.
func BoolOf(b bool) NullBool {
	return NullBool{Bool: b, Valid: true}
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *NullBool) UnmarshalJSON(data []byte) error {
	*b = NullBool{}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	literal := string(data)
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return nil
		}
		literal = v
	}

	if v, err := strconv.ParseBool(literal); err == nil {
		*b = BoolOf(v)
	}

	return nil
}

// MarshalJSON implements json.Marshaler.
func (b NullBool) MarshalJSON() ([]byte, error) {
	if !b.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatBool(b.Bool)), nil
}

// Nested holds a JSON object decoded into T. A missing field, null, or a
// value of another JSON kind leaves it unset and Value returns the zero T.
type Nested[T any] struct {
	value T
	valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Nested[T]) UnmarshalJSON(data []byte) error {
	var zero T
	n.value, n.valid = zero, false

	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	n.value, n.valid = v, true

	return nil
}

// MarshalJSON implements json.Marshaler.
func (n Nested[T]) MarshalJSON() ([]byte, error) {
	if !n.valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.value)
}

// Value returns the decoded object, or the zero T when unset.
func (n Nested[T]) Value() T {
	return n.value
}

// Valid reports whether an object was decoded.
func (n Nested[T]) Valid() bool {
	return n.valid
}

// List decodes a JSON array element by element, dropping nulls and elements
// that do not decode into T. Any non-array value yields an empty list.
type List[T any] []T

// UnmarshalJSON implements json.Unmarshaler.
func (l *List[T]) UnmarshalJSON(data []byte) error {
	*l = List[T]{}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	out := make(List[T], 0, len(raw))
	for _, item := range raw {
		if bytes.Equal(bytes.TrimSpace(item), []byte("null")) {
			continue
		}
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	*l = out

	return nil
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
