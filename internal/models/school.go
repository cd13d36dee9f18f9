package models

import (
	"time"

	"github.com/lib/pq"
)

// School is a tenant. Every other row belongs to exactly one school.
type School struct {
	ID           string         `db:"id" json:"id"`
	Name         string         `db:"name" json:"name"`
	AccentColor  string         `db:"accent_color" json:"accent_color"`
	LogoURL      *string        `db:"logo_url" json:"logo_url,omitempty"`
	ContactEmail *string        `db:"contact_email" json:"contact_email,omitempty"`
	ContactPhone *string        `db:"contact_phone" json:"contact_phone,omitempty"`
	Address      *string        `db:"address" json:"address,omitempty"`
	Website      *string        `db:"website" json:"website,omitempty"`
	AdminIDs     pq.StringArray `db:"admin_ids" json:"admin_ids"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// HasAdmin reports whether userID is in the admin list.
func (s *School) HasAdmin(userID string) bool {
	for _, id := range s.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}
