package models

import (
	"time"

	"github.com/noah-isme/classroom-api/pkg/academic"
)

// YearBatch is a named academic year with 0-based start and end months.
type YearBatch struct {
	ID         string    `db:"id" json:"id"`
	SchoolID   string    `db:"school_id" json:"school_id"`
	Name       string    `db:"name" json:"name"`
	StartMonth int       `db:"start_month" json:"start_month"`
	EndMonth   int       `db:"end_month" json:"end_month"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`

	Current *academic.SchoolYear `db:"-" json:"current,omitempty"`
	Label   string               `db:"-" json:"current_label,omitempty"`
}

// CurrentLabel fills Current and Label for the given instant.
func (y *YearBatch) CurrentLabel(now time.Time) {
	start, err := academic.MonthFromIndex(y.StartMonth)
	if err != nil {
		return
	}
	end, err := academic.MonthFromIndex(y.EndMonth)
	if err != nil {
		return
	}
	sy := academic.CurrentSchoolYear(start, end, now)
	y.Current = &sy
	y.Label = sy.Label
}
