package models

import "time"

// Assignment represents a gradable task belonging to exactly one course.
type Assignment struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	CourseID    uint         `gorm:"not null;index" json:"course_id"`
	Title       string       `gorm:"size:255;not null" json:"title"`
	Description string       `gorm:"type:text" json:"description"`
	DueDate     time.Time    `gorm:"not null" json:"due_date"`
	MaxPoints   int          `gorm:"not null" json:"max_points"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Course      Course       `json:"-"`
	Submissions []Submission `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// IsPastDue returns true when the assignment deadline has already passed.
func (a Assignment) IsPastDue(reference time.Time) bool {
	return reference.After(a.DueDate)
}
