package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/opencourse/lms-api/internal/dto"
	"github.com/opencourse/lms-api/internal/models"
	"github.com/opencourse/lms-api/internal/repository"
)

// Messaging errors.
var (
	ErrMessageNotFound   = errors.New("message not found")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrSelfMessage       = errors.New("cannot send a message to yourself")
	ErrEmptyMessage      = errors.New("message content is empty")
	ErrNotRecipient      = errors.New("only the recipient can change a message's status")
)

// MessageEventSubject is the NATS subject new messages are published on.
const MessageEventSubject = "lms.messages.sent"

// MessageBroker fans sent messages out to in-process stream subscribers.
// Slow subscribers are skipped rather than blocking the sender.
type MessageBroker struct {
	mu          sync.RWMutex
	subscribers map[uint][]chan dto.MessageResponse
}

// NewMessageBroker constructs an empty broker.
func NewMessageBroker() *MessageBroker {
	return &MessageBroker{subscribers: make(map[uint][]chan dto.MessageResponse)}
}

// Subscribe registers a stream for the given user and returns the channel
// plus a cancel function that must be called when the stream closes.
func (b *MessageBroker) Subscribe(userID uint) (<-chan dto.MessageResponse, func()) {
	ch := make(chan dto.MessageResponse, 16)

	b.mu.Lock()
	b.subscribers[userID] = append(b.subscribers[userID], ch)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		channels := b.subscribers[userID]
		for i, existing := range channels {
			if existing == ch {
				b.subscribers[userID] = append(channels[:i], channels[i+1:]...)
				break
			}
		}
		if len(b.subscribers[userID]) == 0 {
			delete(b.subscribers, userID)
		}
		close(ch)
	}

	return ch, cancel
}

// Publish delivers the message to every open stream of the recipient.
func (b *MessageBroker) Publish(recipientID uint, message dto.MessageResponse) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers[recipientID] {
		select {
		case ch <- message:
		default:
		}
	}
}

// MessageService manages direct messages between users.
type MessageService interface {
	Send(ctx context.Context, senderID uint, payload dto.MessageSendRequest) (dto.MessageResponse, error)
	List(ctx context.Context, userID uint, filter dto.MessageFilter) ([]dto.MessageResponse, error)
	Conversation(ctx context.Context, userID, otherID uint, limit int) ([]dto.MessageResponse, error)
	MarkRead(ctx context.Context, userID, id uint) (dto.MessageResponse, error)
	Archive(ctx context.Context, userID, id uint) (dto.MessageResponse, error)
}

type messageService struct {
	messages  repository.MessageRepository
	users     repository.UserRepository
	courses   repository.CourseRepository
	broker    *MessageBroker
	nats      *nats.Conn
	sanitizer *bluemonday.Policy
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewMessageService constructs a MessageService. The NATS connection may be
// nil when no broker is configured; event publishing is then skipped.
func NewMessageService(
	messages repository.MessageRepository,
	users repository.UserRepository,
	courses repository.CourseRepository,
	broker *MessageBroker,
	natsConn *nats.Conn,
	validate *validator.Validate,
	logger zerolog.Logger,
) MessageService {
	return &messageService{
		messages:  messages,
		users:     users,
		courses:   courses,
		broker:    broker,
		nats:      natsConn,
		sanitizer: bluemonday.UGCPolicy(),
		validator: validate,
		logger:    logger.With().Str("component", "message_service").Logger(),
	}
}

func (s *messageService) Send(ctx context.Context, senderID uint, payload dto.MessageSendRequest) (dto.MessageResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.MessageResponse{}, err
	}

	if payload.RecipientID == senderID {
		return dto.MessageResponse{}, ErrSelfMessage
	}

	if _, err := s.users.GetByID(ctx, payload.RecipientID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.MessageResponse{}, ErrRecipientNotFound
		}
		return dto.MessageResponse{}, err
	}

	if payload.CourseID != nil {
		if _, err := s.courses.GetByID(ctx, *payload.CourseID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.MessageResponse{}, ErrCourseNotFound
			}
			return dto.MessageResponse{}, err
		}
	}

	content := strings.TrimSpace(s.sanitizer.Sanitize(payload.Content))
	if content == "" {
		return dto.MessageResponse{}, ErrEmptyMessage
	}

	message := models.Message{
		SenderID:    senderID,
		RecipientID: payload.RecipientID,
		CourseID:    payload.CourseID,
		Content:     content,
		Status:      models.MessageStatusSent,
	}

	if err := s.messages.Create(ctx, &message); err != nil {
		return dto.MessageResponse{}, err
	}

	response := dto.NewMessageResponse(message)
	s.broker.Publish(message.RecipientID, response)
	s.publishEvent(response)

	return response, nil
}

func (s *messageService) List(ctx context.Context, userID uint, filter dto.MessageFilter) ([]dto.MessageResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, err
	}

	repoFilter := repository.MessageFilter{Limit: filter.Limit}
	if filter.Box == "sent" {
		repoFilter.SenderID = &userID
	} else {
		repoFilter.RecipientID = &userID
	}
	if filter.Status != "" {
		status := filter.Status
		repoFilter.Status = &status
	}

	messages, err := s.messages.List(ctx, repoFilter)
	if err != nil {
		return nil, err
	}

	return dto.NewMessageResponseSlice(messages), nil
}

func (s *messageService) Conversation(ctx context.Context, userID, otherID uint, limit int) ([]dto.MessageResponse, error) {
	if _, err := s.users.GetByID(ctx, otherID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecipientNotFound
		}
		return nil, err
	}

	messages, err := s.messages.Conversation(ctx, userID, otherID, limit)
	if err != nil {
		return nil, err
	}

	return dto.NewMessageResponseSlice(messages), nil
}

func (s *messageService) MarkRead(ctx context.Context, userID, id uint) (dto.MessageResponse, error) {
	return s.transition(ctx, userID, id, models.MessageStatusRead)
}

func (s *messageService) Archive(ctx context.Context, userID, id uint) (dto.MessageResponse, error) {
	return s.transition(ctx, userID, id, models.MessageStatusArchived)
}

func (s *messageService) transition(ctx context.Context, userID, id uint, status string) (dto.MessageResponse, error) {
	message, err := s.messages.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.MessageResponse{}, ErrMessageNotFound
		}
		return dto.MessageResponse{}, err
	}

	if message.RecipientID != userID {
		return dto.MessageResponse{}, ErrNotRecipient
	}

	if message.Status != status {
		if err := s.messages.UpdateStatus(ctx, id, status); err != nil {
			return dto.MessageResponse{}, err
		}
		message.Status = status
	}

	return dto.NewMessageResponse(message), nil
}

func (s *messageService) publishEvent(message dto.MessageResponse) {
	if s.nats == nil {
		return
	}

	payload, err := json.Marshal(message)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode message event")
		return
	}

	if err := s.nats.Publish(MessageEventSubject, payload); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish message event")
	}
}
