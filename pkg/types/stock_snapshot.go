package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StockSnapshot maps product codes to quantities. Route assignments persist
// one snapshot when the agent starts the route and one when it finishes.
type StockSnapshot map[string]int

// Value implements driver.Valuer so the snapshot is stored as JSON.
func (s StockSnapshot) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal stock snapshot: %w", err)
	}
	return string(payload), nil
}

// Scan implements sql.Scanner for jsonb/text columns.
func (s *StockSnapshot) Scan(value any) error {
	if value == nil {
		*s = nil
		return nil
	}
	var payload []byte
	switch v := value.(type) {
	case []byte:
		payload = v
	case string:
		payload = []byte(v)
	default:
		return fmt.Errorf("unsupported stock snapshot type %T", value)
	}
	if len(payload) == 0 {
		*s = nil
		return nil
	}
	return json.Unmarshal(payload, s)
}
