package dto

import (
	"time"

	"github.com/opencourse/lms-api/internal/models"
)

// AnnouncementCreateRequest describes the admin payload for publishing an announcement.
type AnnouncementCreateRequest struct {
	Title    string     `json:"title" validate:"required,min=2,max=255"`
	Body     string     `json:"body" validate:"required,min=1"`
	IsPinned bool       `json:"is_pinned"`
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
}

// AnnouncementUpdateRequest edits an announcement.
type AnnouncementUpdateRequest struct {
	Title    *string    `json:"title" validate:"omitempty,min=2,max=255"`
	Body     *string    `json:"body" validate:"omitempty,min=1"`
	IsPinned *bool      `json:"is_pinned"`
	StartsAt *time.Time `json:"starts_at"`
	EndsAt   *time.Time `json:"ends_at"`
}

// AnnouncementFilter paginates the active announcement listing.
type AnnouncementFilter struct {
	Page     int `query:"page" validate:"omitempty,gte=1"`
	PageSize int `query:"page_size" validate:"omitempty,gte=1,lte=100"`
}

// AnnouncementResponse is returned to API clients when viewing announcements.
type AnnouncementResponse struct {
	ID        uint       `json:"id"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	IsPinned  bool       `json:"is_pinned"`
	StartsAt  time.Time  `json:"starts_at"`
	EndsAt    *time.Time `json:"ends_at"`
	CreatedAt time.Time  `json:"created_at"`
}

// AnnouncementListResponse wraps a paginated announcement listing.
type AnnouncementListResponse struct {
	Items      []AnnouncementResponse `json:"items"`
	Pagination PaginationMeta         `json:"pagination"`
	CacheHit   bool                   `json:"-"`
}

// NewAnnouncementResponse converts an Announcement model into a DTO.
func NewAnnouncementResponse(model models.Announcement) AnnouncementResponse {
	return AnnouncementResponse{
		ID:        model.ID,
		Title:     model.Title,
		Body:      model.Body,
		IsPinned:  model.IsPinned,
		StartsAt:  model.StartsAt,
		EndsAt:    model.EndsAt,
		CreatedAt: model.CreatedAt,
	}
}
