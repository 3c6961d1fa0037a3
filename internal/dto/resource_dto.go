package dto

import (
	"time"

	"github.com/opencourse/lms-api/internal/models"
)

// ResourceCreateRequest describes the multipart payload for publishing a resource.
type ResourceCreateRequest struct {
	Title       string `form:"title" validate:"required,min=2,max=255"`
	Description string `form:"description" validate:"omitempty,max=4000"`
}

// ResourceUpdateRequest edits resource metadata; a new file part replaces the stored file.
type ResourceUpdateRequest struct {
	Title       *string `form:"title" validate:"omitempty,min=2,max=255"`
	Description *string `form:"description" validate:"omitempty,max=4000"`
}

// ResourceResponse is returned to API clients when viewing resources.
type ResourceResponse struct {
	ID          uint      `json:"id"`
	CourseID    uint      `json:"course_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	FileURL     string    `json:"file_url"`
	UploadedBy  uint      `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewResourceResponse converts a Resource model into a DTO.
func NewResourceResponse(model models.Resource) ResourceResponse {
	return ResourceResponse{
		ID:          model.ID,
		CourseID:    model.CourseID,
		Title:       model.Title,
		Description: model.Description,
		FileURL:     model.FileURL,
		UploadedBy:  model.UploadedBy,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

// NewResourceResponseSlice converts resource models into DTOs.
func NewResourceResponseSlice(resources []models.Resource) []ResourceResponse {
	responses := make([]ResourceResponse, 0, len(resources))
	for _, resource := range resources {
		responses = append(responses, NewResourceResponse(resource))
	}
	return responses
}
