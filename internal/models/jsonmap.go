package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// JSONMap is a jsonb column holding loosely structured metadata
type JSONMap map[string]interface{}

// Value implements driver.Valuer
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for JSONMap: %T", value)
	}

	if len(data) == 0 {
		*m = nil
		return nil
	}

	return json.Unmarshal(data, m)
}

// String returns a string value from the map, empty when absent or not a string
func (m JSONMap) String(key string) string {
	if m == nil {
		return ""
	}
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// Map returns a nested map value, nil when absent
func (m JSONMap) Map(key string) JSONMap {
	if m == nil {
		return nil
	}
	if nested, ok := m[key].(map[string]interface{}); ok {
		return JSONMap(nested)
	}
	return nil
}

// ErrInvalidJSONB is returned when a jsonb column holds a non-JSON payload
var ErrInvalidJSONB = errors.New("invalid jsonb payload")
