package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/opencourse/lms-api/internal/models"
)

// CourseFilter describes pagination and search options for course listings.
type CourseFilter struct {
	Search   string
	Semester string
	Year     int
	// Scope restricts results to the caller's relationship when set.
	LecturerID *uint
	StudentID  *uint
	Page       int
	PageSize   int
}

// CourseRepository defines persistence operations for courses.
type CourseRepository interface {
	List(ctx context.Context, filter CourseFilter) ([]models.Course, int64, error)
	GetByID(ctx context.Context, id uint) (models.Course, error)
	GetByCode(ctx context.Context, code string) (models.Course, error)
	Create(ctx context.Context, course *models.Course, lecturerIDs []uint) error
	Update(ctx context.Context, course *models.Course) error
	// UpdateWithLecturers saves field changes and replaces the lecturer set
	// in one transaction so a bad lecturer id rolls back both.
	UpdateWithLecturers(ctx context.Context, course *models.Course, lecturerIDs []uint) error
	Delete(ctx context.Context, id uint) error
	// ReplaceLecturers wholesale-replaces the lecturer set in a single
	// transaction so a failure partway never leaves a partial set.
	ReplaceLecturers(ctx context.Context, courseID uint, lecturerIDs []uint) error
	IsLecturerAssigned(ctx context.Context, courseID, lecturerID uint) (bool, error)
	IsStudentEnrolled(ctx context.Context, courseID, studentID uint) (bool, error)
}

type courseRepository struct {
	db *gorm.DB
}

// NewCourseRepository instantiates a GORM-backed repository.
func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Course{}).Preload("Lecturers")
}

func (r *courseRepository) List(ctx context.Context, filter CourseFilter) ([]models.Course, int64, error) {
	query := r.baseQuery(ctx)

	if filter.Search != "" {
		pattern := "%" + strings.ToLower(strings.TrimSpace(filter.Search)) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(code) LIKE ?", pattern, pattern)
	}

	if filter.Semester != "" {
		query = query.Where("semester = ?", filter.Semester)
	}

	if filter.Year > 0 {
		query = query.Where("year = ?", filter.Year)
	}

	if filter.LecturerID != nil {
		query = query.Where("id IN (?)",
			r.db.Table("course_lecturers").Select("course_id").Where("user_id = ?", *filter.LecturerID))
	}

	if filter.StudentID != nil {
		query = query.Where("id IN (?)",
			r.db.Model(&models.Enrollment{}).Select("course_id").Where("student_id = ?", *filter.StudentID))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var courses []models.Course
	if err := query.Order("code ASC").Find(&courses).Error; err != nil {
		return nil, 0, err
	}

	return courses, total, nil
}

func (r *courseRepository) GetByID(ctx context.Context, id uint) (models.Course, error) {
	var course models.Course
	if err := r.baseQuery(ctx).First(&course, id).Error; err != nil {
		return models.Course{}, err
	}

	return course, nil
}

func (r *courseRepository) GetByCode(ctx context.Context, code string) (models.Course, error) {
	var course models.Course
	if err := r.baseQuery(ctx).Where("code = ?", strings.TrimSpace(code)).First(&course).Error; err != nil {
		return models.Course{}, err
	}

	return course, nil
}

func (r *courseRepository) Create(ctx context.Context, course *models.Course, lecturerIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(course).Error; err != nil {
			return err
		}

		return replaceLecturerSet(tx, course.ID, lecturerIDs)
	})
}

func (r *courseRepository) Update(ctx context.Context, course *models.Course) error {
	return r.db.WithContext(ctx).Omit("Lecturers").Save(course).Error
}

func (r *courseRepository) UpdateWithLecturers(ctx context.Context, course *models.Course, lecturerIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Lecturers").Save(course).Error; err != nil {
			return err
		}

		return replaceLecturerSet(tx, course.ID, lecturerIDs)
	})
}

func (r *courseRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Select("Enrollments", "Assignments", "Resources", "Lecturers").Delete(&models.Course{ID: id})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *courseRepository) ReplaceLecturers(ctx context.Context, courseID uint, lecturerIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var course models.Course
		if err := tx.First(&course, courseID).Error; err != nil {
			return err
		}

		return replaceLecturerSet(tx, courseID, lecturerIDs)
	})
}

func (r *courseRepository) IsLecturerAssigned(ctx context.Context, courseID, lecturerID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Table("course_lecturers").
		Where("course_id = ? AND user_id = ?", courseID, lecturerID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *courseRepository) IsStudentEnrolled(ctx context.Context, courseID, studentID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("course_id = ? AND student_id = ?", courseID, studentID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// replaceLecturerSet disconnects the whole current set and reconnects the
// desired one. Every id must name an existing LECTURER account.
func replaceLecturerSet(tx *gorm.DB, courseID uint, lecturerIDs []uint) error {
	if err := tx.Exec("DELETE FROM course_lecturers WHERE course_id = ?", courseID).Error; err != nil {
		return err
	}

	for _, lecturerID := range uniqueIDs(lecturerIDs) {
		var lecturer models.User
		if err := tx.Where("role = ?", models.RoleLecturer).First(&lecturer, lecturerID).Error; err != nil {
			return err
		}
		if err := tx.Exec("INSERT INTO course_lecturers (course_id, user_id) VALUES (?, ?)", courseID, lecturerID).Error; err != nil {
			return err
		}
	}

	return nil
}
