package academic

import "time"

// DueSoonWindow flags assignments due within this horizon.
const DueSoonWindow = 48 * time.Hour

// StatusKey identifies the state of an assignment card for one student.
type StatusKey string

const (
	StatusGraded    StatusKey = "graded"
	StatusSubmitted StatusKey = "submitted"
	StatusNoSubmit  StatusKey = "no_submission"
	StatusOverdue   StatusKey = "overdue"
	StatusDueSoon   StatusKey = "due_soon"
	StatusPending   StatusKey = "pending"
)

// Status is the derived label and color of an assignment card.
type Status struct {
	Key   StatusKey `json:"key"`
	Label string    `json:"label"`
	Color string    `json:"color"`
}

var statuses = map[StatusKey]Status{
	StatusGraded:    {Key: StatusGraded, Label: "Graded", Color: "green"},
	StatusSubmitted: {Key: StatusSubmitted, Label: "Submitted", Color: "blue"},
	StatusNoSubmit:  {Key: StatusNoSubmit, Label: "No submission required", Color: "gray"},
	StatusOverdue:   {Key: StatusOverdue, Label: "Overdue", Color: "red"},
	StatusDueSoon:   {Key: StatusDueSoon, Label: "Due soon", Color: "amber"},
	StatusPending:   {Key: StatusPending, Label: "Pending", Color: "gray"},
}

// AssignmentStatus derives the card status. Checks run in priority order.
func AssignmentStatus(due *time.Time, submittedAt *time.Time, graded, requiresSubmission bool, now time.Time) Status {
	switch {
	case graded:
		return statuses[StatusGraded]
	case submittedAt != nil:
		return statuses[StatusSubmitted]
	case !requiresSubmission:
		return statuses[StatusNoSubmit]
	case due == nil:
		return statuses[StatusPending]
	case now.After(*due):
		return statuses[StatusOverdue]
	case due.Sub(now) <= DueSoonWindow:
		return statuses[StatusDueSoon]
	default:
		return statuses[StatusPending]
	}
}
