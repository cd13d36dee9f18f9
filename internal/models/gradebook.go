package models

// GradebookCell is one student's result on one assignment.
type GradebookCell struct {
	AssignmentID string           `db:"assignment_id" json:"assignment_id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	Status       SubmissionStatus `db:"status" json:"status"`
	Marks        *float64         `db:"marks" json:"marks,omitempty"`
	Percentage   *float64         `db:"percentage" json:"percentage,omitempty"`
	IBGrade      *int             `db:"ib_grade" json:"ib_grade,omitempty"`
}

// GradebookRow is one student's line in the gradebook.
type GradebookRow struct {
	StudentID   string          `json:"student_id"`
	StudentName string          `json:"student_name"`
	Cells       []GradebookCell `json:"cells"`
	Earned      float64         `json:"earned"`
	Possible    float64         `json:"possible"`
	Percentage  *float64        `json:"percentage,omitempty"`
	IBGrade     *int            `json:"ib_grade,omitempty"`
	Letter      string          `json:"letter,omitempty"`
}

// Gradebook is the students × assignments matrix of a class.
type Gradebook struct {
	ClassID     string         `json:"class_id"`
	ClassName   string         `json:"class_name"`
	Assignments []Assignment   `json:"assignments"`
	Rows        []GradebookRow `json:"rows"`
}

// ClassGradeSummary is a student's standing in one class.
type ClassGradeSummary struct {
	ClassID    string   `json:"class_id"`
	ClassName  string   `json:"class_name"`
	Graded     int      `json:"graded"`
	Total      int      `json:"total"`
	Earned     float64  `json:"earned"`
	Possible   float64  `json:"possible"`
	Percentage *float64 `json:"percentage,omitempty"`
	IBGrade    *int     `json:"ib_grade,omitempty"`
	Letter     string   `json:"letter,omitempty"`
}
