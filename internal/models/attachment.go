package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Attachment is the descriptor of a stored file referenced by posts and submissions.
type Attachment struct {
	Name string `json:"name" validate:"required,max=255"`
	URL  string `json:"url" validate:"required,url"`
	Size int64  `json:"size" validate:"gte=0"`
	Type string `json:"type" validate:"max=255"`
}

// Attachments is stored as a JSONB array.
type Attachments []Attachment

// Value implements driver.Valuer.
func (a Attachments) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner.
func (a *Attachments) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*a = Attachments{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan attachments: unsupported type %T", src)
	}
	out := Attachments{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("scan attachments: %w", err)
	}
	*a = out
	return nil
}
