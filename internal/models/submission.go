package models

import "time"

// Submission statuses.
const (
	// SubmissionStatusSubmitted indicates the work has been handed in but not graded.
	SubmissionStatusSubmitted = "SUBMITTED"
	// SubmissionStatusGraded indicates an assigned lecturer has evaluated the work.
	SubmissionStatusGraded = "GRADED"
)

// Submission represents a student's response to an assignment. The composite
// unique index guarantees at most one row per (assignment, student);
// resubmissions update the existing row.
type Submission struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	AssignmentID uint       `gorm:"not null;uniqueIndex:idx_submission_pair" json:"assignment_id"`
	StudentID    uint       `gorm:"not null;uniqueIndex:idx_submission_pair" json:"student_id"`
	Text         string     `gorm:"type:text" json:"text"`
	FileURL      string     `gorm:"size:512" json:"file_url"`
	FilePublicID string     `gorm:"size:255" json:"-"`
	Status       string     `gorm:"size:32;not null" json:"status"`
	Grade        *int       `json:"grade"`
	Feedback     string     `gorm:"type:text" json:"feedback"`
	GradedBy     *uint      `json:"graded_by"`
	GradedAt     *time.Time `json:"graded_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	Assignment Assignment               `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"assignment"`
	Student    User                     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
	History    []SubmissionGradeHistory `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"history,omitempty"`
}

// IsGraded reports whether the submission has a final grade.
func (s Submission) IsGraded() bool {
	return s.Status == SubmissionStatusGraded
}

// HasContent reports whether at least one of text or file is present.
func (s Submission) HasContent() bool {
	return s.Text != "" || s.FileURL != ""
}

// SubmissionGradeHistory records every grading pass over a submission.
type SubmissionGradeHistory struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SubmissionID uint      `gorm:"not null;index" json:"submission_id"`
	Grade        int       `gorm:"not null" json:"grade"`
	Feedback     string    `gorm:"type:text" json:"feedback"`
	GradedBy     uint      `gorm:"not null" json:"graded_by"`
	GradedAt     time.Time `gorm:"not null" json:"graded_at"`
}
