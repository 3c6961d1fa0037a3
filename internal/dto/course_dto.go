package dto

import (
	"time"

	"github.com/opencourse/lms-api/internal/models"
)

// CourseCreateRequest describes the payload for creating a course.
type CourseCreateRequest struct {
	Code        string `json:"code" validate:"required,min=2,max=32"`
	Title       string `json:"title" validate:"required,min=2,max=255"`
	Description string `json:"description" validate:"omitempty,max=4000"`
	Semester    string `json:"semester" validate:"required,oneof=FIRST SECOND"`
	Year        int    `json:"year" validate:"required,gte=2000,lte=2100"`
	LecturerIDs []uint `json:"lecturer_ids" validate:"omitempty,dive,gt=0"`
}

// CourseUpdateRequest replaces the course fields and, when LecturerIDs is
// present, wholesale-replaces the lecturer set.
type CourseUpdateRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=2,max=255"`
	Description *string `json:"description" validate:"omitempty,max=4000"`
	Semester    *string `json:"semester" validate:"omitempty,oneof=FIRST SECOND"`
	Year        *int    `json:"year" validate:"omitempty,gte=2000,lte=2100"`
	LecturerIDs *[]uint `json:"lecturer_ids" validate:"omitempty,dive,gt=0"`
}

// CourseLecturerSetRequest replaces the full lecturer set of a course.
type CourseLecturerSetRequest struct {
	LecturerIDs []uint `json:"lecturer_ids" validate:"dive,gt=0"`
}

// CourseFilter narrows course listings.
type CourseFilter struct {
	Search   string `query:"search"`
	Semester string `query:"semester" validate:"omitempty,oneof=FIRST SECOND"`
	Year     int    `query:"year" validate:"omitempty,gte=2000,lte=2100"`
	Page     int    `query:"page" validate:"omitempty,gte=1"`
	PageSize int    `query:"page_size" validate:"omitempty,gte=1,lte=100"`
}

// CourseResponse is returned to API clients when viewing courses.
type CourseResponse struct {
	ID          uint           `json:"id"`
	Code        string         `json:"code"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Semester    string         `json:"semester"`
	Year        int            `json:"year"`
	Lecturers   []UserResponse `json:"lecturers"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// CourseListResponse wraps a paginated course listing.
type CourseListResponse struct {
	Items      []CourseResponse `json:"items"`
	Pagination PaginationMeta   `json:"pagination"`
	CacheHit   bool             `json:"-"`
}

// NewCourseResponse converts a Course model into a DTO.
func NewCourseResponse(model models.Course) CourseResponse {
	return CourseResponse{
		ID:          model.ID,
		Code:        model.Code,
		Title:       model.Title,
		Description: model.Description,
		Semester:    model.Semester,
		Year:        model.Year,
		Lecturers:   NewUserResponseSlice(model.Lecturers),
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

// NewCourseResponseSlice converts course models into DTOs.
func NewCourseResponseSlice(courses []models.Course) []CourseResponse {
	responses := make([]CourseResponse, 0, len(courses))
	for _, course := range courses {
		responses = append(responses, NewCourseResponse(course))
	}
	return responses
}
