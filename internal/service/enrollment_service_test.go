package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/opencourse/lms-api/internal/dto"
	"github.com/opencourse/lms-api/internal/models"
)

type memoryEnrollmentRepo struct {
	seq         uint
	enrollments map[uint]models.Enrollment
}

func newMemoryEnrollmentRepo() *memoryEnrollmentRepo {
	return &memoryEnrollmentRepo{enrollments: make(map[uint]models.Enrollment)}
}

func (m *memoryEnrollmentRepo) ListByStudent(_ context.Context, studentID uint) ([]models.Enrollment, error) {
	var items []models.Enrollment
	for _, enrollment := range m.enrollments {
		if enrollment.StudentID == studentID {
			items = append(items, enrollment)
		}
	}
	return items, nil
}

func (m *memoryEnrollmentRepo) ListByCourse(_ context.Context, courseID uint) ([]models.Enrollment, error) {
	var items []models.Enrollment
	for _, enrollment := range m.enrollments {
		if enrollment.CourseID == courseID {
			items = append(items, enrollment)
		}
	}
	return items, nil
}

func (m *memoryEnrollmentRepo) Exists(_ context.Context, studentID, courseID uint) (bool, error) {
	for _, enrollment := range m.enrollments {
		if enrollment.StudentID == studentID && enrollment.CourseID == courseID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if exists, _ := m.Exists(ctx, enrollment.StudentID, enrollment.CourseID); exists {
		return gorm.ErrDuplicatedKey
	}
	m.seq++
	enrollment.ID = m.seq
	m.enrollments[enrollment.ID] = *enrollment
	return nil
}

func (m *memoryEnrollmentRepo) Delete(_ context.Context, studentID, courseID uint) error {
	for id, enrollment := range m.enrollments {
		if enrollment.StudentID == studentID && enrollment.CourseID == courseID {
			delete(m.enrollments, id)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func setupEnrollmentService(t *testing.T) (EnrollmentService, *memoryEnrollmentRepo, *memoryCourseRepo) {
	t.Helper()

	enrollments := newMemoryEnrollmentRepo()
	courses := newMemoryCourseRepo()
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewEnrollmentService(enrollments, courses, validate, testLogger())

	return svc, enrollments, courses
}

func TestEnrollmentServiceEnrollAndDuplicate(t *testing.T) {
	svc, _, courses := setupEnrollmentService(t)
	require.NoError(t, courses.Create(context.Background(), &models.Course{Code: "CS101", Title: "Intro"}, nil))

	enrollment, err := svc.Enroll(context.Background(), 5, dto.EnrollmentCreateRequest{CourseID: 1})
	require.NoError(t, err)
	require.Equal(t, uint(1), enrollment.CourseID)

	_, err = svc.Enroll(context.Background(), 5, dto.EnrollmentCreateRequest{CourseID: 1})
	require.ErrorIs(t, err, ErrAlreadyEnrolled)
}

func TestEnrollmentServiceUnknownCourse(t *testing.T) {
	svc, _, _ := setupEnrollmentService(t)

	_, err := svc.Enroll(context.Background(), 5, dto.EnrollmentCreateRequest{CourseID: 77})
	require.ErrorIs(t, err, ErrCourseNotFound)
}

func TestEnrollmentServiceUnenroll(t *testing.T) {
	svc, _, courses := setupEnrollmentService(t)
	require.NoError(t, courses.Create(context.Background(), &models.Course{Code: "CS101", Title: "Intro"}, nil))

	_, err := svc.Enroll(context.Background(), 5, dto.EnrollmentCreateRequest{CourseID: 1})
	require.NoError(t, err)

	require.NoError(t, svc.Unenroll(context.Background(), 5, 1))
	require.ErrorIs(t, svc.Unenroll(context.Background(), 5, 1), ErrEnrollmentNotFound)

	listed, err := svc.ListMine(context.Background(), 5)
	require.NoError(t, err)
	require.Empty(t, listed)
}
