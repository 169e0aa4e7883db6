package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSONColumn adapts an arbitrary Go value to a GORM/SQL column stored as
// JSON text, used for the free-form profile/context/snapshot payloads
// that don't warrant their own relational columns.
type JSONColumn[T any] struct {
	Value T
}

func NewJSONColumn[T any](v T) JSONColumn[T] {
	return JSONColumn[T]{Value: v}
}

// Scan implements sql.Scanner.
func (j *JSONColumn[T]) Scan(src any) error {
	if src == nil {
		return nil
	}
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("models: JSONColumn.Scan: unsupported source type")
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, &j.Value)
}

// Value implements driver.Valuer.
func (j JSONColumn[T]) Value() (driver.Value, error) {
	b, err := json.Marshal(j.Value)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// MarshalJSON/UnmarshalJSON make JSONColumn transparent to
// encoding/json too, so caching layers that serialize a whole
// ConversationContext don't see the wrapper struct.
func (j JSONColumn[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(j.Value)
}

func (j *JSONColumn[T]) UnmarshalJSON(b []byte) error {
	return json.Unmarshal(b, &j.Value)
}
