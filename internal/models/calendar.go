package models

import "time"

// CalendarItem is an assignment placed on the calendar.
type CalendarItem struct {
	AssignmentID string     `db:"assignment_id" json:"assignment_id"`
	ClassID      string     `db:"class_id" json:"class_id"`
	ClassName    string     `db:"class_name" json:"class_name"`
	ClassColor   string     `db:"class_color" json:"class_color"`
	Title        string     `db:"title" json:"title"`
	DueAt        time.Time  `db:"due_at" json:"due_at"`
	SubmittedAt  *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
	Graded       bool       `db:"graded" json:"graded"`
	Requires     bool       `db:"requires_submission" json:"requires_submission"`
	StatusColor  string     `db:"-" json:"status_color,omitempty"`
}

// CalendarDay is one cell of the two-week view.
type CalendarDay struct {
	Date  string         `json:"date"`
	Items []CalendarItem `json:"items"`
}

// CalendarWindow is the two-week calendar response.
type CalendarWindow struct {
	Start     string        `json:"start"`
	End       string        `json:"end"`
	Days      []CalendarDay `json:"days"`
	PrevStart string        `json:"-"`
	NextStart string        `json:"-"`
}
