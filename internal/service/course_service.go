package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/opencourse/lms-api/internal/dto"
	"github.com/opencourse/lms-api/internal/models"
	"github.com/opencourse/lms-api/internal/observability"
	"github.com/opencourse/lms-api/internal/repository"
)

// Course errors.
var (
	ErrCourseNotFound   = errors.New("course not found")
	ErrDuplicateCode    = errors.New("course code already exists")
	ErrUnknownLecturer  = errors.New("one or more lecturers do not exist")
	ErrCourseHasRecords = errors.New("course has dependent records")
)

// CourseScope restricts listings to the caller's relationship to courses.
type CourseScope struct {
	Role   string
	UserID uint
}

// CourseService orchestrates course management.
type CourseService interface {
	List(ctx context.Context, filter dto.CourseFilter, scope CourseScope) (dto.CourseListResponse, error)
	Get(ctx context.Context, id uint) (dto.CourseResponse, error)
	Create(ctx context.Context, payload dto.CourseCreateRequest, actor ActivityActor) (dto.CourseResponse, error)
	Update(ctx context.Context, id uint, payload dto.CourseUpdateRequest, actor ActivityActor) (dto.CourseResponse, error)
	Delete(ctx context.Context, id uint, actor ActivityActor) error
	ReplaceLecturers(ctx context.Context, id uint, payload dto.CourseLecturerSetRequest, actor ActivityActor) (dto.CourseResponse, error)
}

type courseService struct {
	courses   repository.CourseRepository
	validator *validator.Validate
	cache     *redis.Client
	cacheTTL  time.Duration
	activity  ActivityRecorder
	logger    zerolog.Logger
}

// NewCourseService constructs a CourseService instance.
func NewCourseService(courses repository.CourseRepository, validate *validator.Validate, cache *redis.Client, cacheTTL time.Duration, activity ActivityRecorder, logger zerolog.Logger) CourseService {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &courseService{
		courses:   courses,
		validator: validate,
		cache:     cache,
		cacheTTL:  cacheTTL,
		activity:  activity,
		logger:    logger.With().Str("component", "course_service").Logger(),
	}
}

func (s *courseService) List(ctx context.Context, filter dto.CourseFilter, scope CourseScope) (dto.CourseListResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return dto.CourseListResponse{}, err
	}

	repoFilter := repository.CourseFilter{
		Search:   filter.Search,
		Semester: filter.Semester,
		Year:     filter.Year,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}

	// Lecturers see assigned courses, students see enrolled ones; the full
	// catalog is admin-only and the only listing worth caching.
	cacheKey := ""
	switch strings.ToUpper(scope.Role) {
	case models.RoleLecturer:
		repoFilter.LecturerID = &scope.UserID
	case models.RoleStudent:
		repoFilter.StudentID = &scope.UserID
	default:
		if s.cache != nil && filter.Search == "" {
			cacheKey = fmt.Sprintf("courses:catalog:v1:%s:%d:%d:%d", filter.Semester, filter.Year, filter.Page, filter.PageSize)
			if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil && cached != "" {
				var response dto.CourseListResponse
				if err := json.Unmarshal([]byte(cached), &response); err == nil {
					response.CacheHit = true
					observability.CacheOutcomes().WithLabelValues("courses", "hit").Inc()
					return response, nil
				}
			}
		}
	}

	courses, total, err := s.courses.List(ctx, repoFilter)
	if err != nil {
		if cacheKey != "" {
			observability.CacheOutcomes().WithLabelValues("courses", "error").Inc()
		}
		return dto.CourseListResponse{}, err
	}

	response := dto.CourseListResponse{
		Items:      dto.NewCourseResponseSlice(courses),
		Pagination: paginationMeta(filter.Page, filter.PageSize, total),
	}

	if cacheKey != "" {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to cache course catalog")
			}
		}
		observability.CacheOutcomes().WithLabelValues("courses", "miss").Inc()
	}

	return response, nil
}

func (s *courseService) Get(ctx context.Context, id uint) (dto.CourseResponse, error) {
	course, err := s.courses.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CourseResponse{}, ErrCourseNotFound
		}
		return dto.CourseResponse{}, err
	}

	return dto.NewCourseResponse(course), nil
}

func (s *courseService) Create(ctx context.Context, payload dto.CourseCreateRequest, actor ActivityActor) (dto.CourseResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CourseResponse{}, err
	}

	// Friendlier message only; the unique index on code is the arbiter.
	if _, err := s.courses.GetByCode(ctx, payload.Code); err == nil {
		return dto.CourseResponse{}, ErrDuplicateCode
	}

	course := models.Course{
		Code:        strings.TrimSpace(payload.Code),
		Title:       strings.TrimSpace(payload.Title),
		Description: payload.Description,
		Semester:    payload.Semester,
		Year:        payload.Year,
	}

	if err := s.courses.Create(ctx, &course, payload.LecturerIDs); err != nil {
		switch {
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return dto.CourseResponse{}, ErrDuplicateCode
		case errors.Is(err, gorm.ErrRecordNotFound):
			return dto.CourseResponse{}, ErrUnknownLecturer
		default:
			return dto.CourseResponse{}, err
		}
	}

	created, err := s.courses.GetByID(ctx, course.ID)
	if err != nil {
		return dto.CourseResponse{}, err
	}

	s.invalidateCatalog(ctx)
	s.recordActivity(ctx, actor, "course.created", course.ID, map[string]interface{}{"code": course.Code})
	s.logger.Info().Uint("course_id", course.ID).Str("code", course.Code).Msg("course created")

	return dto.NewCourseResponse(created), nil
}

func (s *courseService) Update(ctx context.Context, id uint, payload dto.CourseUpdateRequest, actor ActivityActor) (dto.CourseResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CourseResponse{}, err
	}

	course, err := s.courses.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CourseResponse{}, ErrCourseNotFound
		}
		return dto.CourseResponse{}, err
	}

	if payload.Title != nil {
		course.Title = strings.TrimSpace(*payload.Title)
	}
	if payload.Description != nil {
		course.Description = *payload.Description
	}
	if payload.Semester != nil {
		course.Semester = *payload.Semester
	}
	if payload.Year != nil {
		course.Year = *payload.Year
	}

	if payload.LecturerIDs != nil {
		// One transaction: a bad lecturer id must roll the field changes back.
		if err := s.courses.UpdateWithLecturers(ctx, &course, *payload.LecturerIDs); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.CourseResponse{}, ErrUnknownLecturer
			}
			return dto.CourseResponse{}, err
		}
	} else if err := s.courses.Update(ctx, &course); err != nil {
		return dto.CourseResponse{}, err
	}

	updated, err := s.courses.GetByID(ctx, id)
	if err != nil {
		return dto.CourseResponse{}, err
	}

	s.invalidateCatalog(ctx)
	s.recordActivity(ctx, actor, "course.updated", id, nil)

	return dto.NewCourseResponse(updated), nil
}

func (s *courseService) Delete(ctx context.Context, id uint, actor ActivityActor) error {
	if err := s.courses.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return ErrCourseNotFound
		case errors.Is(err, gorm.ErrForeignKeyViolated):
			return ErrCourseHasRecords
		default:
			return err
		}
	}

	s.invalidateCatalog(ctx)
	s.recordActivity(ctx, actor, "course.deleted", id, nil)
	s.logger.Info().Uint("course_id", id).Msg("course deleted")

	return nil
}

func (s *courseService) ReplaceLecturers(ctx context.Context, id uint, payload dto.CourseLecturerSetRequest, actor ActivityActor) (dto.CourseResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CourseResponse{}, err
	}

	if err := s.courses.ReplaceLecturers(ctx, id, payload.LecturerIDs); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CourseResponse{}, ErrUnknownLecturer
		}
		return dto.CourseResponse{}, err
	}

	updated, err := s.courses.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CourseResponse{}, ErrCourseNotFound
		}
		return dto.CourseResponse{}, err
	}

	s.invalidateCatalog(ctx)
	s.recordActivity(ctx, actor, "course.lecturers_replaced", id, map[string]interface{}{
		"lecturers": len(payload.LecturerIDs),
	})

	return dto.NewCourseResponse(updated), nil
}

func (s *courseService) invalidateCatalog(ctx context.Context) {
	if s.cache == nil {
		return
	}

	iter := s.cache.Scan(ctx, 0, "courses:catalog:v1:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.cache.Del(ctx, iter.Val()).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to invalidate course catalog cache")
			return
		}
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to scan course catalog cache")
	}
}

func (s *courseService) recordActivity(ctx context.Context, actor ActivityActor, action string, entityID uint, metadata map[string]interface{}) {
	if s.activity == nil {
		return
	}
	id := entityID
	_, _ = s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: "course",
		EntityID:   &id,
		Metadata:   metadata,
	})
}
