package models

import "time"

// Announcement is an admin-authored notice visible to all roles. StartsAt and
// EndsAt bound the active window; pinned items sort first.
type Announcement struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Title     string     `gorm:"size:255;not null" json:"title"`
	Body      string     `gorm:"type:text;not null" json:"body"`
	IsPinned  bool       `gorm:"not null;default:false" json:"is_pinned"`
	StartsAt  time.Time  `gorm:"not null" json:"starts_at"`
	EndsAt    *time.Time `json:"ends_at"`
	CreatedBy uint       `gorm:"not null" json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IsActive reports whether the announcement is visible at the given time.
func (a Announcement) IsActive(reference time.Time) bool {
	if reference.Before(a.StartsAt) {
		return false
	}
	if a.EndsAt != nil && reference.After(*a.EndsAt) {
		return false
	}
	return true
}
