package service

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/opencourse/lms-api/internal/models"
	"github.com/opencourse/lms-api/internal/repository"
)

// ActivityActor identifies who performed an audited action.
type ActivityActor struct {
	ID   uint
	Role string
}

// ActivityEntry describes one auditable event.
type ActivityEntry struct {
	ActorID    uint
	ActorRole  string
	Action     string
	EntityType string
	EntityID   *uint
	Metadata   map[string]interface{}
}

// ActivityRecorder persists audit entries. Recording failures are logged and
// never fail the triggering operation.
type ActivityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry) (models.ActivityLog, error)
}

type activityService struct {
	repo   repository.ActivityLogRepository
	logger zerolog.Logger
}

// NewActivityService constructs an activity recorder.
func NewActivityService(repo repository.ActivityLogRepository, logger zerolog.Logger) ActivityRecorder {
	return &activityService{
		repo:   repo,
		logger: logger.With().Str("component", "activity_service").Logger(),
	}
}

func (s *activityService) Record(ctx context.Context, entry ActivityEntry) (models.ActivityLog, error) {
	record := models.ActivityLog{
		ActorID:    entry.ActorID,
		ActorRole:  entry.ActorRole,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Metadata:   datatypes.JSONMap(entry.Metadata),
	}

	if err := s.repo.Create(ctx, &record); err != nil {
		s.logger.Warn().Err(err).Str("action", entry.Action).Msg("failed to record activity")
		return models.ActivityLog{}, err
	}

	return record, nil
}
