package dto

import (
	"time"

	"github.com/opencourse/lms-api/internal/models"
)

// UserCreateRequest is the admin payload for creating an account of any role.
// CourseIDs connects a new lecturer to courses atomically with the create.
type UserCreateRequest struct {
	Name      string `json:"name" validate:"required,min=2,max=255"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	Role      string `json:"role" validate:"required,oneof=ADMIN LECTURER STUDENT"`
	CourseIDs []uint `json:"course_ids" validate:"omitempty,dive,gt=0"`
}

// UserUpdateRequest is the admin payload for editing an account.
type UserUpdateRequest struct {
	Name      *string `json:"name" validate:"omitempty,min=2,max=255"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Password  *string `json:"password" validate:"omitempty,min=6"`
	Role      *string `json:"role" validate:"omitempty,oneof=ADMIN LECTURER STUDENT"`
	CourseIDs *[]uint `json:"course_ids" validate:"omitempty,dive,gt=0"`
}

// UserListRequest filters the admin user listing.
type UserListRequest struct {
	Search   string `query:"search"`
	Role     string `query:"role" validate:"omitempty,oneof=ADMIN LECTURER STUDENT"`
	Page     int    `query:"page" validate:"omitempty,gte=1"`
	PageSize int    `query:"page_size" validate:"omitempty,gte=1,lte=100"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// UserListResponse wraps a paginated user listing.
type UserListResponse struct {
	Items      []UserResponse `json:"items"`
	Pagination PaginationMeta `json:"pagination"`
}

// NewUserResponse converts a User model into a DTO.
func NewUserResponse(model models.User) UserResponse {
	return UserResponse{
		ID:        model.ID,
		Name:      model.Name,
		Email:     model.Email,
		Role:      model.Role,
		CreatedAt: model.CreatedAt,
	}
}

// NewUserResponseSlice converts user models into DTOs.
func NewUserResponseSlice(users []models.User) []UserResponse {
	responses := make([]UserResponse, 0, len(users))
	for _, user := range users {
		responses = append(responses, NewUserResponse(user))
	}
	return responses
}
