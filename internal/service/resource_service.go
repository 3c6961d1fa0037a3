package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/opencourse/lms-api/internal/dto"
	"github.com/opencourse/lms-api/internal/models"
	"github.com/opencourse/lms-api/internal/observability"
	"github.com/opencourse/lms-api/internal/repository"
	"github.com/opencourse/lms-api/pkg/storage"
)

// Resource errors.
var (
	ErrResourceNotFound = errors.New("resource not found")
	ErrFileRequired     = errors.New("a file is required")
)

// ResourceService manages course learning materials backed by blob storage.
type ResourceService interface {
	ListByCourse(ctx context.Context, courseID uint) ([]dto.ResourceResponse, error)
	Get(ctx context.Context, courseID, id uint) (dto.ResourceResponse, error)
	Create(ctx context.Context, courseID uint, payload dto.ResourceCreateRequest, file *multipart.FileHeader, actor ActivityActor) (dto.ResourceResponse, error)
	Update(ctx context.Context, courseID, id uint, payload dto.ResourceUpdateRequest, file *multipart.FileHeader, actor ActivityActor) (dto.ResourceResponse, error)
	Delete(ctx context.Context, courseID, id uint, actor ActivityActor) error
}

type resourceService struct {
	resources repository.ResourceRepository
	courses   repository.CourseRepository
	store     FileStore
	validator *validator.Validate
	activity  ActivityRecorder
	logger    zerolog.Logger
	maxUpload int64
	now       func() time.Time
}

// NewResourceService constructs a ResourceService instance.
func NewResourceService(
	resources repository.ResourceRepository,
	courses repository.CourseRepository,
	store FileStore,
	validate *validator.Validate,
	activity ActivityRecorder,
	logger zerolog.Logger,
	maxUploadBytes int64,
) ResourceService {
	return &resourceService{
		resources: resources,
		courses:   courses,
		store:     store,
		validator: validate,
		activity:  activity,
		logger:    logger.With().Str("component", "resource_service").Logger(),
		maxUpload: maxUploadBytes,
		now:       time.Now,
	}
}

func (s *resourceService) ListByCourse(ctx context.Context, courseID uint) ([]dto.ResourceResponse, error) {
	if _, err := s.courses.GetByID(ctx, courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}

	resources, err := s.resources.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	return dto.NewResourceResponseSlice(resources), nil
}

func (s *resourceService) Get(ctx context.Context, courseID, id uint) (dto.ResourceResponse, error) {
	resource, err := s.getOwned(ctx, courseID, id)
	if err != nil {
		return dto.ResourceResponse{}, err
	}

	return dto.NewResourceResponse(resource), nil
}

func (s *resourceService) Create(ctx context.Context, courseID uint, payload dto.ResourceCreateRequest, file *multipart.FileHeader, actor ActivityActor) (dto.ResourceResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ResourceResponse{}, err
	}

	if file == nil {
		return dto.ResourceResponse{}, ErrFileRequired
	}

	if _, err := s.courses.GetByID(ctx, courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ResourceResponse{}, ErrCourseNotFound
		}
		return dto.ResourceResponse{}, err
	}

	uploaded, err := s.uploadFile(ctx, courseID, file)
	if err != nil {
		return dto.ResourceResponse{}, err
	}

	resource := models.Resource{
		CourseID:     courseID,
		Title:        strings.TrimSpace(payload.Title),
		Description:  payload.Description,
		FileURL:      uploaded.URL,
		FilePublicID: uploaded.PublicID,
		UploadedBy:   actor.ID,
	}

	if err := s.resources.Create(ctx, &resource); err != nil {
		// Roll the upload back so a failed insert leaves no orphaned asset.
		if delErr := s.store.Delete(ctx, uploaded.PublicID); delErr != nil {
			s.logger.Warn().Err(delErr).Str("public_id", uploaded.PublicID).Msg("failed to roll back resource upload")
		}
		return dto.ResourceResponse{}, err
	}

	s.recordActivity(ctx, actor, "resource.created", resource.ID, map[string]interface{}{"course_id": courseID})
	s.logger.Info().Uint("resource_id", resource.ID).Uint("course_id", courseID).Msg("resource published")

	return dto.NewResourceResponse(resource), nil
}

func (s *resourceService) Update(ctx context.Context, courseID, id uint, payload dto.ResourceUpdateRequest, file *multipart.FileHeader, actor ActivityActor) (dto.ResourceResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ResourceResponse{}, err
	}

	resource, err := s.getOwned(ctx, courseID, id)
	if err != nil {
		return dto.ResourceResponse{}, err
	}

	if payload.Title != nil {
		resource.Title = strings.TrimSpace(*payload.Title)
	}
	if payload.Description != nil {
		resource.Description = *payload.Description
	}

	previousPublicID := ""
	if file != nil {
		uploaded, err := s.uploadFile(ctx, courseID, file)
		if err != nil {
			return dto.ResourceResponse{}, err
		}
		previousPublicID = resource.FilePublicID
		resource.FileURL = uploaded.URL
		resource.FilePublicID = uploaded.PublicID
	}

	if err := s.resources.Update(ctx, &resource); err != nil {
		if file != nil {
			if delErr := s.store.Delete(ctx, resource.FilePublicID); delErr != nil {
				s.logger.Warn().Err(delErr).Str("public_id", resource.FilePublicID).Msg("failed to roll back replacement upload")
			}
		}
		return dto.ResourceResponse{}, err
	}

	// Destroy the replaced asset only after the new row is durable.
	if previousPublicID != "" && previousPublicID != resource.FilePublicID {
		if err := s.store.Delete(ctx, previousPublicID); err != nil {
			s.logger.Warn().Err(err).Str("public_id", previousPublicID).Msg("failed to remove replaced resource file")
		}
	}

	s.recordActivity(ctx, actor, "resource.updated", id, map[string]interface{}{"course_id": courseID, "file_replaced": file != nil})

	return dto.NewResourceResponse(resource), nil
}

func (s *resourceService) Delete(ctx context.Context, courseID, id uint, actor ActivityActor) error {
	resource, err := s.getOwned(ctx, courseID, id)
	if err != nil {
		return err
	}

	if err := s.resources.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrResourceNotFound
		}
		return err
	}

	s.recordActivity(ctx, actor, "resource.deleted", id, map[string]interface{}{"course_id": courseID})

	if err := s.store.Delete(ctx, resource.FilePublicID); err != nil {
		s.logger.Error().Err(err).Str("public_id", resource.FilePublicID).Msg("resource row removed but file cleanup failed")
		return fmt.Errorf("%w: %s", ErrFileCleanup, resource.FilePublicID)
	}

	return nil
}

func (s *resourceService) uploadFile(ctx context.Context, courseID uint, file *multipart.FileHeader) (storage.StoredFile, error) {
	start := s.now()

	detected, err := validateUpload(file, s.maxUpload)
	if err != nil {
		reason := "type"
		if errors.Is(err, ErrUploadTooLarge) {
			reason = "size"
		}
		observability.UploadRejected().WithLabelValues(reason).Inc()
		return storage.StoredFile{}, err
	}

	reader, err := file.Open()
	if err != nil {
		return storage.StoredFile{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer reader.Close()

	name := fmt.Sprintf("resources/%d/%s", courseID, file.Filename)
	uploaded, err := s.store.Upload(ctx, name, reader)
	if err != nil {
		return storage.StoredFile{}, fmt.Errorf("failed to store resource file: %w", err)
	}

	observability.UploadRequests().WithLabelValues(detected).Inc()
	observability.UploadLatency().Observe(s.now().Sub(start).Seconds())

	return uploaded, nil
}

func (s *resourceService) getOwned(ctx context.Context, courseID, id uint) (models.Resource, error) {
	resource, err := s.resources.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Resource{}, ErrResourceNotFound
		}
		return models.Resource{}, err
	}

	if resource.CourseID != courseID {
		return models.Resource{}, ErrResourceNotFound
	}

	return resource, nil
}

func (s *resourceService) recordActivity(ctx context.Context, actor ActivityActor, action string, entityID uint, metadata map[string]interface{}) {
	if s.activity == nil {
		return
	}
	id := entityID
	_, _ = s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: "resource",
		EntityID:   &id,
		Metadata:   metadata,
	})
}
