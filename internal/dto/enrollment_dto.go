package dto

import (
	"time"

	"github.com/opencourse/lms-api/internal/models"
)

// EnrollmentCreateRequest enrolls the authenticated student into a course.
type EnrollmentCreateRequest struct {
	CourseID uint `json:"course_id" validate:"required,gt=0"`
}

// EnrollmentResponse is returned when viewing enrollments.
type EnrollmentResponse struct {
	ID        uint            `json:"id"`
	StudentID uint            `json:"student_id"`
	CourseID  uint            `json:"course_id"`
	Course    *CourseResponse `json:"course,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewEnrollmentResponse converts an Enrollment model into a DTO.
func NewEnrollmentResponse(model models.Enrollment) EnrollmentResponse {
	response := EnrollmentResponse{
		ID:        model.ID,
		StudentID: model.StudentID,
		CourseID:  model.CourseID,
		CreatedAt: model.CreatedAt,
	}

	if model.Course.ID != 0 {
		course := NewCourseResponse(model.Course)
		response.Course = &course
	}

	return response
}

// NewEnrollmentResponseSlice converts enrollment models into DTOs.
func NewEnrollmentResponseSlice(enrollments []models.Enrollment) []EnrollmentResponse {
	responses := make([]EnrollmentResponse, 0, len(enrollments))
	for _, enrollment := range enrollments {
		responses = append(responses, NewEnrollmentResponse(enrollment))
	}
	return responses
}
