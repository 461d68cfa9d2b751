package models

import (
	"database/sql/driver"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var jsonColumn = jsoniter.ConfigCompatibleWithStandardLibrary

// NotificationConfig is persisted as a JSON document in the settings row.
type NotificationConfig struct {
	EmailEnabled    bool `json:"emailEnabled"`
	SMSEnabled      bool `json:"smsEnabled"`
	DueReminderDays int  `json:"dueReminderDays"`
	OverdueAlerts   bool `json:"overdueAlerts"`
}

// Value implements driver.Valuer.
func (n NotificationConfig) Value() (driver.Value, error) {
	raw, err := jsonColumn.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("encode notification config: %w", err)
	}
	return string(raw), nil
}

// Scan implements sql.Scanner.
func (n *NotificationConfig) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*n = NotificationConfig{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("decode notification config: unsupported type %T", src)
	}
	if len(raw) == 0 {
		*n = NotificationConfig{}
		return nil
	}
	if !jsonColumn.Valid(raw) {
		return fmt.Errorf("decode notification config: invalid JSON")
	}
	return jsonColumn.Unmarshal(raw, n)
}
