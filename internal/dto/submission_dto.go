package dto

import (
	"time"

	"github.com/opencourse/lms-api/internal/models"
)

// SubmissionCreateRequest describes the multipart payload for handing in work.
// At least one of text or file must be present; the service enforces this
// since the file arrives as a separate multipart part.
type SubmissionCreateRequest struct {
	Text string `form:"text" validate:"omitempty,max=20000"`
}

// SubmissionUpdateRequest lets the owning student revise a submission.
type SubmissionUpdateRequest struct {
	Text *string `form:"text" validate:"omitempty,max=20000"`
}

// GradeRequest is the lecturer payload for grading a submission. The upper
// bound is validated against the assignment's max points in the service.
type GradeRequest struct {
	Grade    int    `json:"grade" validate:"gte=0"`
	Feedback string `json:"feedback" validate:"omitempty,max=4000"`
}

// SubmissionFilter narrows submission listings.
type SubmissionFilter struct {
	AssignmentID *uint   `query:"assignment_id"`
	StudentID    *uint   `query:"student_id"`
	Status       *string `query:"status" validate:"omitempty,oneof=SUBMITTED GRADED"`
}

// GradeHistoryResponse serializes one grading pass.
type GradeHistoryResponse struct {
	Grade    int       `json:"grade"`
	Feedback string    `json:"feedback"`
	GradedBy uint      `json:"graded_by"`
	GradedAt time.Time `json:"graded_at"`
}

// AssignmentLite summarizes an assignment in submission responses.
type AssignmentLite struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	DueDate   time.Time `json:"due_date"`
	MaxPoints int       `json:"max_points"`
}

// StudentLite summarizes a student without exposing full profile data.
type StudentLite struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID           uint                   `json:"id"`
	AssignmentID uint                   `json:"assignment_id"`
	StudentID    uint                   `json:"student_id"`
	Text         string                 `json:"text"`
	FileURL      string                 `json:"file_url"`
	Status       string                 `json:"status"`
	Grade        *int                   `json:"grade"`
	Feedback     string                 `json:"feedback"`
	GradedBy     *uint                  `json:"graded_by"`
	GradedAt     *time.Time             `json:"graded_at"`
	History      []GradeHistoryResponse `json:"history,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
	Assignment   AssignmentLite         `json:"assignment"`
	Student      StudentLite            `json:"student"`
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	response := SubmissionResponse{
		ID:           model.ID,
		AssignmentID: model.AssignmentID,
		StudentID:    model.StudentID,
		Text:         model.Text,
		FileURL:      model.FileURL,
		Status:       model.Status,
		Grade:        model.Grade,
		Feedback:     model.Feedback,
		GradedBy:     model.GradedBy,
		GradedAt:     model.GradedAt,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}

	if model.Assignment.ID != 0 {
		response.Assignment = AssignmentLite{
			ID:        model.Assignment.ID,
			Title:     model.Assignment.Title,
			DueDate:   model.Assignment.DueDate,
			MaxPoints: model.Assignment.MaxPoints,
		}
	}

	if model.Student.ID != 0 {
		response.Student = StudentLite{
			ID:    model.Student.ID,
			Name:  model.Student.Name,
			Email: model.Student.Email,
		}
	}

	if len(model.History) > 0 {
		history := make([]GradeHistoryResponse, 0, len(model.History))
		for _, entry := range model.History {
			history = append(history, GradeHistoryResponse{
				Grade:    entry.Grade,
				Feedback: entry.Feedback,
				GradedBy: entry.GradedBy,
				GradedAt: entry.GradedAt,
			})
		}
		response.History = history
	}

	return response
}

// NewSubmissionResponseSlice converts submission models into DTOs.
func NewSubmissionResponseSlice(submissions []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, NewSubmissionResponse(submission))
	}
	return responses
}
