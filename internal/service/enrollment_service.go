package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/opencourse/lms-api/internal/dto"
	"github.com/opencourse/lms-api/internal/models"
	"github.com/opencourse/lms-api/internal/repository"
)

// Enrollment errors.
var (
	ErrAlreadyEnrolled    = errors.New("student already enrolled in this course")
	ErrEnrollmentNotFound = errors.New("enrollment not found")
)

// EnrollmentService handles student self-enrollment.
type EnrollmentService interface {
	Enroll(ctx context.Context, studentID uint, payload dto.EnrollmentCreateRequest) (dto.EnrollmentResponse, error)
	ListMine(ctx context.Context, studentID uint) ([]dto.EnrollmentResponse, error)
	Unenroll(ctx context.Context, studentID, courseID uint) error
}

type enrollmentService struct {
	enrollments repository.EnrollmentRepository
	courses     repository.CourseRepository
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewEnrollmentService constructs an EnrollmentService instance.
func NewEnrollmentService(enrollments repository.EnrollmentRepository, courses repository.CourseRepository, validate *validator.Validate, logger zerolog.Logger) EnrollmentService {
	return &enrollmentService{
		enrollments: enrollments,
		courses:     courses,
		validator:   validate,
		logger:      logger.With().Str("component", "enrollment_service").Logger(),
	}
}

// Enroll creates the (student, course) pair. The existence check only gives a
// friendlier message; the unique constraint closes the race window and is the
// correctness guarantee, so a concurrent duplicate still comes back as a
// conflict.
func (s *enrollmentService) Enroll(ctx context.Context, studentID uint, payload dto.EnrollmentCreateRequest) (dto.EnrollmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.EnrollmentResponse{}, err
	}

	if _, err := s.courses.GetByID(ctx, payload.CourseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EnrollmentResponse{}, ErrCourseNotFound
		}
		return dto.EnrollmentResponse{}, err
	}

	exists, err := s.enrollments.Exists(ctx, studentID, payload.CourseID)
	if err != nil {
		return dto.EnrollmentResponse{}, err
	}
	if exists {
		return dto.EnrollmentResponse{}, ErrAlreadyEnrolled
	}

	enrollment := models.Enrollment{
		StudentID: studentID,
		CourseID:  payload.CourseID,
	}

	if err := s.enrollments.Create(ctx, &enrollment); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.EnrollmentResponse{}, ErrAlreadyEnrolled
		}
		return dto.EnrollmentResponse{}, err
	}

	s.logger.Info().Uint("student_id", studentID).Uint("course_id", payload.CourseID).Msg("student enrolled")

	return dto.NewEnrollmentResponse(enrollment), nil
}

func (s *enrollmentService) ListMine(ctx context.Context, studentID uint) ([]dto.EnrollmentResponse, error) {
	enrollments, err := s.enrollments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	return dto.NewEnrollmentResponseSlice(enrollments), nil
}

func (s *enrollmentService) Unenroll(ctx context.Context, studentID, courseID uint) error {
	if err := s.enrollments.Delete(ctx, studentID, courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEnrollmentNotFound
		}
		return err
	}

	s.logger.Info().Uint("student_id", studentID).Uint("course_id", courseID).Msg("student unenrolled")

	return nil
}
