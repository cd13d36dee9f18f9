package models

import (
	"time"

	"github.com/lib/pq"
)

// InviteStatus is the lifecycle of a pending invite. Consumed invites are deleted.
type InviteStatus string

const (
	InviteStatusPending InviteStatus = "PENDING"
	InviteStatusExpired InviteStatus = "EXPIRED"
)

// PendingInvite pre-provisions a role and school for an e-mail address.
type PendingInvite struct {
	ID            string         `db:"id" json:"id"`
	SchoolID      string         `db:"school_id" json:"school_id"`
	Email         string         `db:"email" json:"email"`
	Role          UserRole       `db:"role" json:"role"`
	FullName      string         `db:"full_name" json:"full_name"`
	GradeLevel    *string        `db:"grade_level" json:"grade_level,omitempty"`
	StudentNumber *string        `db:"student_number" json:"student_number,omitempty"`
	ClassIDs      pq.StringArray `db:"class_ids" json:"class_ids"`
	Status        InviteStatus   `db:"status" json:"status"`
	InvitedBy     *string        `db:"invited_by" json:"invited_by,omitempty"`
	LastSentAt    *time.Time     `db:"last_sent_at" json:"last_sent_at,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	ExpiresAt     time.Time      `db:"expires_at" json:"expires_at"`
}

// InviteFilter scopes invite listings.
type InviteFilter struct {
	SchoolID string
	Role     *UserRole
	Status   InviteStatus
}
