package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/opencourse/lms-api/internal/dto"
	"github.com/opencourse/lms-api/internal/models"
	"github.com/opencourse/lms-api/internal/observability"
	"github.com/opencourse/lms-api/internal/repository"
)

// Announcement errors.
var (
	ErrAnnouncementNotFound = errors.New("announcement not found")
	ErrInvalidWindow        = errors.New("announcement window ends before it starts")
)

// AnnouncementEventSubject is the NATS subject new announcements are published on.
const AnnouncementEventSubject = "lms.announcements.published"

// AnnouncementService manages platform-wide announcements. The active listing
// is visible to every authenticated user and served from cache.
type AnnouncementService interface {
	ListActive(ctx context.Context, filter dto.AnnouncementFilter) (dto.AnnouncementListResponse, error)
	Get(ctx context.Context, id uint) (dto.AnnouncementResponse, error)
	Create(ctx context.Context, payload dto.AnnouncementCreateRequest, actor ActivityActor) (dto.AnnouncementResponse, error)
	Update(ctx context.Context, id uint, payload dto.AnnouncementUpdateRequest, actor ActivityActor) (dto.AnnouncementResponse, error)
	Delete(ctx context.Context, id uint, actor ActivityActor) error
}

type announcementService struct {
	announcements repository.AnnouncementRepository
	validator     *validator.Validate
	cache         *redis.Client
	cacheTTL      time.Duration
	sanitizer     *bluemonday.Policy
	activity      ActivityRecorder
	nats          *nats.Conn
	logger        zerolog.Logger
	now           func() time.Time
}

// NewAnnouncementService constructs an AnnouncementService instance.
func NewAnnouncementService(
	announcements repository.AnnouncementRepository,
	validate *validator.Validate,
	cache *redis.Client,
	cacheTTL time.Duration,
	activity ActivityRecorder,
	natsConn *nats.Conn,
	logger zerolog.Logger,
) AnnouncementService {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &announcementService{
		announcements: announcements,
		validator:     validate,
		cache:         cache,
		cacheTTL:      cacheTTL,
		sanitizer:     bluemonday.UGCPolicy(),
		activity:      activity,
		nats:          natsConn,
		logger:        logger.With().Str("component", "announcement_service").Logger(),
		now:           time.Now,
	}
}

func (s *announcementService) ListActive(ctx context.Context, filter dto.AnnouncementFilter) (dto.AnnouncementListResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return dto.AnnouncementListResponse{}, err
	}

	cacheKey := ""
	if s.cache != nil {
		cacheKey = fmt.Sprintf("announcements:active:v1:%d:%d", filter.Page, filter.PageSize)
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil && cached != "" {
			var response dto.AnnouncementListResponse
			if err := json.Unmarshal([]byte(cached), &response); err == nil {
				response.CacheHit = true
				observability.CacheOutcomes().WithLabelValues("announcements", "hit").Inc()
				return response, nil
			}
		}
	}

	announcements, total, err := s.announcements.ListActive(ctx, repository.AnnouncementFilter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
	})
	if err != nil {
		if cacheKey != "" {
			observability.CacheOutcomes().WithLabelValues("announcements", "error").Inc()
		}
		return dto.AnnouncementListResponse{}, err
	}

	items := make([]dto.AnnouncementResponse, 0, len(announcements))
	for _, announcement := range announcements {
		items = append(items, dto.NewAnnouncementResponse(announcement))
	}

	response := dto.AnnouncementListResponse{
		Items:      items,
		Pagination: paginationMeta(filter.Page, filter.PageSize, total),
	}

	if cacheKey != "" {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to cache active announcements")
			}
		}
		observability.CacheOutcomes().WithLabelValues("announcements", "miss").Inc()
	}

	return response, nil
}

func (s *announcementService) Get(ctx context.Context, id uint) (dto.AnnouncementResponse, error) {
	announcement, err := s.announcements.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AnnouncementResponse{}, ErrAnnouncementNotFound
		}
		return dto.AnnouncementResponse{}, err
	}

	return dto.NewAnnouncementResponse(announcement), nil
}

func (s *announcementService) Create(ctx context.Context, payload dto.AnnouncementCreateRequest, actor ActivityActor) (dto.AnnouncementResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AnnouncementResponse{}, err
	}

	startsAt := s.now()
	if payload.StartsAt != nil {
		startsAt = *payload.StartsAt
	}
	if payload.EndsAt != nil && payload.EndsAt.Before(startsAt) {
		return dto.AnnouncementResponse{}, ErrInvalidWindow
	}

	announcement := models.Announcement{
		Title:    strings.TrimSpace(payload.Title),
		Body:     s.sanitizer.Sanitize(payload.Body),
		IsPinned: payload.IsPinned,
		StartsAt: startsAt,
		EndsAt:   payload.EndsAt,
	}

	if err := s.announcements.Create(ctx, &announcement); err != nil {
		return dto.AnnouncementResponse{}, err
	}

	s.invalidate(ctx)
	s.recordActivity(ctx, actor, "announcement.created", announcement.ID, map[string]interface{}{"pinned": announcement.IsPinned})
	s.logger.Info().Uint("announcement_id", announcement.ID).Msg("announcement published")

	response := dto.NewAnnouncementResponse(announcement)
	s.publishEvent(response)

	return response, nil
}

func (s *announcementService) Update(ctx context.Context, id uint, payload dto.AnnouncementUpdateRequest, actor ActivityActor) (dto.AnnouncementResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AnnouncementResponse{}, err
	}

	announcement, err := s.announcements.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AnnouncementResponse{}, ErrAnnouncementNotFound
		}
		return dto.AnnouncementResponse{}, err
	}

	if payload.Title != nil {
		announcement.Title = strings.TrimSpace(*payload.Title)
	}
	if payload.Body != nil {
		announcement.Body = s.sanitizer.Sanitize(*payload.Body)
	}
	if payload.IsPinned != nil {
		announcement.IsPinned = *payload.IsPinned
	}
	if payload.StartsAt != nil {
		announcement.StartsAt = *payload.StartsAt
	}
	if payload.EndsAt != nil {
		announcement.EndsAt = payload.EndsAt
	}

	if announcement.EndsAt != nil && announcement.EndsAt.Before(announcement.StartsAt) {
		return dto.AnnouncementResponse{}, ErrInvalidWindow
	}

	if err := s.announcements.Update(ctx, &announcement); err != nil {
		return dto.AnnouncementResponse{}, err
	}

	s.invalidate(ctx)
	s.recordActivity(ctx, actor, "announcement.updated", id, nil)

	return dto.NewAnnouncementResponse(announcement), nil
}

func (s *announcementService) Delete(ctx context.Context, id uint, actor ActivityActor) error {
	if err := s.announcements.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAnnouncementNotFound
		}
		return err
	}

	s.invalidate(ctx)
	s.recordActivity(ctx, actor, "announcement.deleted", id, nil)

	return nil
}

func (s *announcementService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}

	iter := s.cache.Scan(ctx, 0, "announcements:active:v1:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.cache.Del(ctx, iter.Val()).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to invalidate announcement cache")
			return
		}
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to scan announcement cache")
	}
}

func (s *announcementService) publishEvent(announcement dto.AnnouncementResponse) {
	if s.nats == nil {
		return
	}

	payload, err := json.Marshal(announcement)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode announcement event")
		return
	}

	if err := s.nats.Publish(AnnouncementEventSubject, payload); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish announcement event")
	}
}

func (s *announcementService) recordActivity(ctx context.Context, actor ActivityActor, action string, entityID uint, metadata map[string]interface{}) {
	if s.activity == nil {
		return
	}
	id := entityID
	_, _ = s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: "announcement",
		EntityID:   &id,
		Metadata:   metadata,
	})
}
