package models

import "time"

// Resource is a file or document attached to a course by an assigned lecturer.
type Resource struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CourseID     uint      `gorm:"not null;index" json:"course_id"`
	Title        string    `gorm:"size:255;not null" json:"title"`
	Description  string    `gorm:"type:text" json:"description"`
	FileURL      string    `gorm:"size:512;not null" json:"file_url"`
	FilePublicID string    `gorm:"size:255;not null" json:"-"`
	UploadedBy   uint      `gorm:"not null" json:"uploaded_by"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Course       Course    `json:"-"`
}
