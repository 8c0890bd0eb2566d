// Package codec converts values to and from stored bytes.
package codec

import (
	"encoding/json"
	"fmt"
	"time"
)

// Codec encodes values for storage and decodes stored bytes back.
// Implementations must be safe for concurrent use.
type Codec interface {
	Encode(value any) ([]byte, error)
	Decode(data []byte) (any, error)
}

// Raw passes bytes and strings through unchanged and rejects anything
// else. Decode always returns the raw bytes.
type Raw struct{}

// Encode returns byte and string values verbatim.
func (Raw) Encode(value any) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("raw codec: cannot encode %T", value)
	}
}

// Decode returns the stored bytes unchanged.
func (Raw) Decode(data []byte) (any, error) { return data, nil }

// JSON encodes values with encoding/json and decodes into the generic
// JSON value types.
type JSON struct{}

// Encode marshals the value to JSON.
func (JSON) Encode(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("json codec: %w", err)
	}
	return data, nil
}

// Decode unmarshals the stored bytes.
func (JSON) Decode(data []byte) (any, error) {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("json codec: %w", err)
	}
	return value, nil
}

// Auto stores bytes, strings and timestamps raw and falls back to JSON
// for structured values. Decoding tries JSON first and returns raw bytes
// when the content is not valid JSON. This is the store default.
type Auto struct{}

// Encode picks a representation based on the value's type.
func (Auto) Encode(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case time.Time:
		return []byte(v.Format(time.RFC3339Nano)), nil
	default:
		return JSON{}.Encode(value)
	}
}

// Decode attempts JSON decoding, falling back to the raw bytes.
func (Auto) Decode(data []byte) (any, error) {
	var value any
	if err := json.Unmarshal(data, &value); err == nil {
		return value, nil
	}
	return data, nil
}
