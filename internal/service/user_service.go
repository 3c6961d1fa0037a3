package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/opencourse/lms-api/internal/dto"
	"github.com/opencourse/lms-api/internal/models"
	"github.com/opencourse/lms-api/internal/repository"
)

// User management errors.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUnknownCourse     = errors.New("one or more courses do not exist")
	ErrCoursesNotAllowed = errors.New("course assignment only applies to lecturers")
)

// UserService provides admin account management.
type UserService interface {
	List(ctx context.Context, req dto.UserListRequest) (dto.UserListResponse, error)
	Get(ctx context.Context, id uint) (dto.UserResponse, error)
	Create(ctx context.Context, payload dto.UserCreateRequest, actor ActivityActor) (dto.UserResponse, error)
	Update(ctx context.Context, id uint, payload dto.UserUpdateRequest, actor ActivityActor) (dto.UserResponse, error)
	Delete(ctx context.Context, id uint, actor ActivityActor) error
}

type userService struct {
	users     repository.UserRepository
	validator *validator.Validate
	activity  ActivityRecorder
	logger    zerolog.Logger
}

// NewUserService constructs a UserService instance.
func NewUserService(users repository.UserRepository, validate *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) UserService {
	return &userService{
		users:     users,
		validator: validate,
		activity:  activity,
		logger:    logger.With().Str("component", "user_service").Logger(),
	}
}

func (s *userService) List(ctx context.Context, req dto.UserListRequest) (dto.UserListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.UserListResponse{}, err
	}

	users, total, err := s.users.List(ctx, repository.UserFilter{
		Search:   req.Search,
		Role:     req.Role,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		return dto.UserListResponse{}, err
	}

	return dto.UserListResponse{
		Items:      dto.NewUserResponseSlice(users),
		Pagination: paginationMeta(req.Page, req.PageSize, total),
	}, nil
}

func (s *userService) Get(ctx context.Context, id uint) (dto.UserResponse, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrUserNotFound
		}
		return dto.UserResponse{}, err
	}

	return dto.NewUserResponse(user), nil
}

// Create makes an account of any role. When CourseIDs is present the role
// must be LECTURER and the create+connect runs atomically: an unknown course
// id rejects the whole operation, no partial record survives.
func (s *userService) Create(ctx context.Context, payload dto.UserCreateRequest, actor ActivityActor) (dto.UserResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	role := strings.ToUpper(payload.Role)
	if len(payload.CourseIDs) > 0 && role != models.RoleLecturer {
		return dto.UserResponse{}, ErrCoursesNotAllowed
	}

	user := models.User{
		Name:  strings.TrimSpace(payload.Name),
		Email: strings.ToLower(strings.TrimSpace(payload.Email)),
		Role:  role,
	}
	if err := user.SetPassword(payload.Password); err != nil {
		return dto.UserResponse{}, fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.users.CreateWithCourses(ctx, &user, payload.CourseIDs); err != nil {
		switch {
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return dto.UserResponse{}, ErrEmailTaken
		case errors.Is(err, gorm.ErrRecordNotFound):
			return dto.UserResponse{}, ErrUnknownCourse
		default:
			return dto.UserResponse{}, err
		}
	}

	s.recordActivity(ctx, actor, "user.created", user.ID, map[string]interface{}{
		"role":    user.Role,
		"courses": len(payload.CourseIDs),
	})

	return dto.NewUserResponse(user), nil
}

func (s *userService) Update(ctx context.Context, id uint, payload dto.UserUpdateRequest, actor ActivityActor) (dto.UserResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrUserNotFound
		}
		return dto.UserResponse{}, err
	}

	if payload.Name != nil {
		user.Name = strings.TrimSpace(*payload.Name)
	}
	if payload.Email != nil {
		user.Email = strings.ToLower(strings.TrimSpace(*payload.Email))
	}
	if payload.Role != nil {
		user.Role = strings.ToUpper(*payload.Role)
	}
	if payload.Password != nil {
		if err := user.SetPassword(*payload.Password); err != nil {
			return dto.UserResponse{}, fmt.Errorf("failed to hash password: %w", err)
		}
	}

	if err := s.users.Update(ctx, &user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.UserResponse{}, ErrEmailTaken
		}
		return dto.UserResponse{}, err
	}

	if payload.CourseIDs != nil {
		if !user.HasRole(models.RoleLecturer) {
			return dto.UserResponse{}, ErrCoursesNotAllowed
		}
		if err := s.users.ReplaceLecturerCourses(ctx, user.ID, *payload.CourseIDs); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.UserResponse{}, ErrUnknownCourse
			}
			return dto.UserResponse{}, err
		}
	}

	s.recordActivity(ctx, actor, "user.updated", user.ID, map[string]interface{}{"role": user.Role})

	return dto.NewUserResponse(user), nil
}

func (s *userService) Delete(ctx context.Context, id uint, actor ActivityActor) error {
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	s.recordActivity(ctx, actor, "user.deleted", id, nil)

	return nil
}

func (s *userService) recordActivity(ctx context.Context, actor ActivityActor, action string, entityID uint, metadata map[string]interface{}) {
	if s.activity == nil {
		return
	}
	id := entityID
	_, _ = s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: "user",
		EntityID:   &id,
		Metadata:   metadata,
	})
}

func paginationMeta(page, pageSize int, total int64) dto.PaginationMeta {
	meta := dto.PaginationMeta{
		Page:       maxInt(page, 1),
		PageSize:   pageSize,
		TotalItems: total,
	}
	if pageSize > 0 {
		meta.TotalPages = int(math.Ceil(float64(total) / float64(pageSize)))
	} else {
		meta.TotalPages = 1
	}
	return meta
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
