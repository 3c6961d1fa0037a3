package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/opencourse/lms-api/internal/dto"
	"github.com/opencourse/lms-api/internal/models"
	"github.com/opencourse/lms-api/internal/repository"
)

// Assignment errors.
var (
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrInvalidDueDate     = errors.New("invalid due date")
	ErrWrongCourse        = errors.New("assignment does not belong to this course")
)

// AssignmentService orchestrates assignment management within a course.
type AssignmentService interface {
	ListByCourse(ctx context.Context, courseID uint, filter dto.AssignmentFilter) (dto.AssignmentListResponse, error)
	Get(ctx context.Context, courseID, id uint) (dto.AssignmentResponse, error)
	Create(ctx context.Context, courseID uint, payload dto.AssignmentCreateRequest, actor ActivityActor) (dto.AssignmentResponse, error)
	Update(ctx context.Context, courseID, id uint, payload dto.AssignmentUpdateRequest, actor ActivityActor) (dto.AssignmentResponse, error)
	Delete(ctx context.Context, courseID, id uint, actor ActivityActor) error
}

type assignmentService struct {
	assignments repository.AssignmentRepository
	courses     repository.CourseRepository
	validator   *validator.Validate
	activity    ActivityRecorder
	logger      zerolog.Logger
}

// NewAssignmentService constructs an AssignmentService instance.
func NewAssignmentService(assignments repository.AssignmentRepository, courses repository.CourseRepository, validate *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) AssignmentService {
	return &assignmentService{
		assignments: assignments,
		courses:     courses,
		validator:   validate,
		activity:    activity,
		logger:      logger.With().Str("component", "assignment_service").Logger(),
	}
}

func (s *assignmentService) ListByCourse(ctx context.Context, courseID uint, filter dto.AssignmentFilter) (dto.AssignmentListResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return dto.AssignmentListResponse{}, err
	}

	assignments, total, err := s.assignments.ListByCourse(ctx, repository.AssignmentFilter{
		CourseID: courseID,
		Search:   filter.Search,
		Sort:     filter.Sort,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	})
	if err != nil {
		return dto.AssignmentListResponse{}, err
	}

	return dto.AssignmentListResponse{
		Items:      dto.NewAssignmentResponseSlice(assignments),
		Pagination: paginationMeta(filter.Page, filter.PageSize, total),
	}, nil
}

func (s *assignmentService) Get(ctx context.Context, courseID, id uint) (dto.AssignmentResponse, error) {
	assignment, err := s.getOwned(ctx, courseID, id)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Create(ctx context.Context, courseID uint, payload dto.AssignmentCreateRequest, actor ActivityActor) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	if _, err := s.courses.GetByID(ctx, courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrCourseNotFound
		}
		return dto.AssignmentResponse{}, err
	}

	dueDate, err := parseDueDate(payload.DueDate)
	if err != nil {
		return dto.AssignmentResponse{}, ErrInvalidDueDate
	}

	assignment := models.Assignment{
		CourseID:    courseID,
		Title:       strings.TrimSpace(payload.Title),
		Description: payload.Description,
		DueDate:     dueDate,
		MaxPoints:   payload.MaxPoints,
	}

	if err := s.assignments.Create(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.recordActivity(ctx, actor, "assignment.created", assignment.ID, map[string]interface{}{
		"course_id":  courseID,
		"max_points": assignment.MaxPoints,
	})
	s.logger.Info().Uint("assignment_id", assignment.ID).Uint("course_id", courseID).Msg("assignment created")

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Update(ctx context.Context, courseID, id uint, payload dto.AssignmentUpdateRequest, actor ActivityActor) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment, err := s.getOwned(ctx, courseID, id)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	if payload.Title != nil {
		assignment.Title = strings.TrimSpace(*payload.Title)
	}
	if payload.Description != nil {
		assignment.Description = *payload.Description
	}
	if payload.DueDate != nil {
		dueDate, err := parseDueDate(*payload.DueDate)
		if err != nil {
			return dto.AssignmentResponse{}, ErrInvalidDueDate
		}
		assignment.DueDate = dueDate
	}
	if payload.MaxPoints != nil {
		assignment.MaxPoints = *payload.MaxPoints
	}

	if err := s.assignments.Update(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.recordActivity(ctx, actor, "assignment.updated", id, map[string]interface{}{"course_id": courseID})

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Delete(ctx context.Context, courseID, id uint, actor ActivityActor) error {
	if _, err := s.getOwned(ctx, courseID, id); err != nil {
		return err
	}

	if err := s.assignments.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssignmentNotFound
		}
		return err
	}

	s.recordActivity(ctx, actor, "assignment.deleted", id, map[string]interface{}{"course_id": courseID})

	return nil
}

// getOwned loads the assignment and verifies course ownership; an id/course
// mismatch is treated as not found rather than leaking another course's data.
func (s *assignmentService) getOwned(ctx context.Context, courseID, id uint) (models.Assignment, error) {
	assignment, err := s.assignments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, ErrAssignmentNotFound
		}
		return models.Assignment{}, err
	}

	if assignment.CourseID != courseID {
		return models.Assignment{}, ErrAssignmentNotFound
	}

	return assignment, nil
}

func (s *assignmentService) recordActivity(ctx context.Context, actor ActivityActor, action string, entityID uint, metadata map[string]interface{}) {
	if s.activity == nil {
		return
	}
	id := entityID
	_, _ = s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: "assignment",
		EntityID:   &id,
		Metadata:   metadata,
	})
}

func parseDueDate(raw string) (time.Time, error) {
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed, nil
	}
	return time.Parse("2006-01-02", raw)
}
