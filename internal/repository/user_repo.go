package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/opencourse/lms-api/internal/models"
)

// UserFilter describes pagination and search options for user listings.
type UserFilter struct {
	Search   string
	Role     string
	Page     int
	PageSize int
}

// UserRepository defines persistence operations for user accounts.
type UserRepository interface {
	List(ctx context.Context, filter UserFilter) ([]models.User, int64, error)
	GetByID(ctx context.Context, id uint) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	Create(ctx context.Context, user *models.User) error
	// CreateWithCourses creates the user and connects it to the given courses
	// as lecturer in one transaction; an unknown course id aborts the whole
	// create so no partial record survives.
	CreateWithCourses(ctx context.Context, user *models.User, courseIDs []uint) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id uint) error
	ReplaceLecturerCourses(ctx context.Context, lecturerID uint, courseIDs []uint) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository instantiates a GORM-backed repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]models.User, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.User{})

	if filter.Search != "" {
		pattern := "%" + strings.ToLower(strings.TrimSpace(filter.Search)) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern)
	}

	if filter.Role != "" {
		query = query.Where("role = ?", strings.ToUpper(strings.TrimSpace(filter.Role)))
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

	var users []models.User
	if err := query.Order("name ASC").Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return models.User{}, err
	}

	return user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error; err != nil {
		return models.User{}, err
	}

	return user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) CreateWithCourses(ctx context.Context, user *models.User, courseIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}

		if len(courseIDs) == 0 {
			return nil
		}

		ids := uniqueIDs(courseIDs)
		var courses []models.Course
		if err := tx.Find(&courses, ids).Error; err != nil {
			return err
		}
		if len(courses) != len(ids) {
			return gorm.ErrRecordNotFound
		}

		for _, courseID := range ids {
			if err := tx.Exec("INSERT INTO course_lecturers (course_id, user_id) VALUES (?, ?)", courseID, user.ID).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *userRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.User{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *userRepository) ReplaceLecturerCourses(ctx context.Context, lecturerID uint, courseIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM course_lecturers WHERE user_id = ?", lecturerID).Error; err != nil {
			return err
		}

		for _, courseID := range uniqueIDs(courseIDs) {
			var course models.Course
			if err := tx.First(&course, courseID).Error; err != nil {
				return err
			}
			if err := tx.Exec("INSERT INTO course_lecturers (course_id, user_id) VALUES (?, ?)", courseID, lecturerID).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	result := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
