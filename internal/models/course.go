package models

import "time"

// Semester values a course can run in.
const (
	SemesterFirst  = "FIRST"
	SemesterSecond = "SECOND"
)

// Course represents a taught course. Lecturers are linked through the
// course_lecturers join table; students through Enrollment rows. Dependent
// assignments, resources and enrollments cascade on delete so a removed
// course never leaves orphans.
type Course struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	Code        string       `gorm:"size:32;uniqueIndex;not null" json:"code"`
	Title       string       `gorm:"size:255;not null" json:"title"`
	Description string       `gorm:"type:text" json:"description"`
	Semester    string       `gorm:"size:16;not null" json:"semester"`
	Year        int          `gorm:"not null" json:"year"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Lecturers   []User       `gorm:"many2many:course_lecturers;constraint:OnDelete:CASCADE" json:"lecturers,omitempty"`
	Enrollments []Enrollment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Assignments []Assignment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Resources   []Resource   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// Enrollment links a student to a course. The composite unique index is the
// final arbiter against duplicate enrollments; application-level existence
// checks only produce friendlier errors.
type Enrollment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	StudentID uint      `gorm:"not null;uniqueIndex:idx_enrollment_pair" json:"student_id"`
	CourseID  uint      `gorm:"not null;uniqueIndex:idx_enrollment_pair" json:"course_id"`
	CreatedAt time.Time `json:"created_at"`
	Student   User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student,omitempty"`
	Course    Course    `json:"course,omitempty"`
}

// ValidSemester reports whether the given value is a known semester.
func ValidSemester(semester string) bool {
	return semester == SemesterFirst || semester == SemesterSecond
}
