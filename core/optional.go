package core

import (
	"bytes"
	"encoding/json"
)

// Optional tells apart a JSON field that is absent, explicitly null or set.
//
//	absent: Set == false
//	null:   Set == true, Valid == false
//	value:  Set == true, Valid == true
type Optional[T any] struct {
	Set   bool
	Valid bool
	Value T
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(data, []byte("null")) {
		o.Valid = false
		return nil
	}
	if err := json.Unmarshal(data, &o.Value); err != nil {
		return err
	}
	o.Valid = true
	return nil
}

// OptionalOf returns a set & valid Optional holding v.
func OptionalOf[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Valid: true, Value: v}
}

// Ptr returns a pointer to the value if it is set & valid.
func (o Optional[T]) Ptr() *T {
	if !o.Valid {
		return nil
	}
	return &o.Value
}
