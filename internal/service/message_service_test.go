package service

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/opencourse/lms-api/internal/dto"
	"github.com/opencourse/lms-api/internal/models"
	"github.com/opencourse/lms-api/internal/repository"
)

type memoryMessageRepo struct {
	seq      uint
	messages map[uint]models.Message
}

func newMemoryMessageRepo() *memoryMessageRepo {
	return &memoryMessageRepo{messages: make(map[uint]models.Message)}
}

func (m *memoryMessageRepo) List(_ context.Context, filter repository.MessageFilter) ([]models.Message, error) {
	var items []models.Message
	for _, message := range m.messages {
		if filter.SenderID != nil && message.SenderID != *filter.SenderID {
			continue
		}
		if filter.RecipientID != nil && message.RecipientID != *filter.RecipientID {
			continue
		}
		if filter.Status != nil && message.Status != *filter.Status {
			continue
		}
		items = append(items, message)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
	if filter.Limit > 0 && len(items) > filter.Limit {
		items = items[:filter.Limit]
	}
	return items, nil
}

func (m *memoryMessageRepo) Conversation(_ context.Context, userA, userB uint, limit int) ([]models.Message, error) {
	var items []models.Message
	for _, message := range m.messages {
		pair := (message.SenderID == userA && message.RecipientID == userB) ||
			(message.SenderID == userB && message.RecipientID == userA)
		if pair {
			items = append(items, message)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	if limit > 0 && len(items) > limit {
		items = items[len(items)-limit:]
	}
	return items, nil
}

func (m *memoryMessageRepo) GetByID(_ context.Context, id uint) (models.Message, error) {
	message, ok := m.messages[id]
	if !ok {
		return models.Message{}, gorm.ErrRecordNotFound
	}
	return message, nil
}

func (m *memoryMessageRepo) Create(_ context.Context, message *models.Message) error {
	m.seq++
	message.ID = m.seq
	message.CreatedAt = time.Now()
	m.messages[message.ID] = *message
	return nil
}

func (m *memoryMessageRepo) UpdateStatus(_ context.Context, id uint, status string) error {
	message, ok := m.messages[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	message.Status = status
	m.messages[id] = message
	return nil
}

func setupMessageService(t *testing.T) (MessageService, *MessageBroker, *memoryUserRepo, *memoryCourseRepo) {
	t.Helper()

	messages := newMemoryMessageRepo()
	users := newMemoryUserRepo()
	courses := newMemoryCourseRepo()
	broker := NewMessageBroker()
	validate := validator.New(validator.WithRequiredStructEnabled())

	require.NoError(t, users.Create(context.Background(), &models.User{Name: "Ada", Email: "ada@example.com", Role: models.RoleLecturer}))
	require.NoError(t, users.Create(context.Background(), &models.User{Name: "Linus", Email: "linus@example.com", Role: models.RoleStudent}))

	svc := NewMessageService(messages, users, courses, broker, nil, validate, testLogger())

	return svc, broker, users, courses
}

func TestMessageServiceSend(t *testing.T) {
	svc, _, _, _ := setupMessageService(t)

	sent, err := svc.Send(context.Background(), 1, dto.MessageSendRequest{
		RecipientID: 2,
		Content:     "office hours moved to 3pm",
	})
	require.NoError(t, err)
	require.Equal(t, uint(1), sent.SenderID)
	require.Equal(t, uint(2), sent.RecipientID)
	require.Equal(t, models.MessageStatusSent, sent.Status)
}

func TestMessageServiceSendSanitizesContent(t *testing.T) {
	svc, _, _, _ := setupMessageService(t)

	sent, err := svc.Send(context.Background(), 1, dto.MessageSendRequest{
		RecipientID: 2,
		Content:     `see <script>alert("x")</script><b>notes</b>`,
	})
	require.NoError(t, err)
	require.NotContains(t, sent.Content, "<script>")
	require.Contains(t, sent.Content, "<b>notes</b>")

	// content that is nothing but markup collapses to empty after sanitizing
	_, err = svc.Send(context.Background(), 1, dto.MessageSendRequest{
		RecipientID: 2,
		Content:     `<script>alert("x")</script>`,
	})
	require.ErrorIs(t, err, ErrEmptyMessage)
}

func TestMessageServiceSendRejections(t *testing.T) {
	svc, _, _, _ := setupMessageService(t)

	_, err := svc.Send(context.Background(), 1, dto.MessageSendRequest{RecipientID: 1, Content: "note to self"})
	require.ErrorIs(t, err, ErrSelfMessage)

	_, err = svc.Send(context.Background(), 1, dto.MessageSendRequest{RecipientID: 99, Content: "hello"})
	require.ErrorIs(t, err, ErrRecipientNotFound)

	unknownCourse := uint(42)
	_, err = svc.Send(context.Background(), 1, dto.MessageSendRequest{RecipientID: 2, Content: "hello", CourseID: &unknownCourse})
	require.ErrorIs(t, err, ErrCourseNotFound)
}

func TestMessageBrokerDeliversToSubscriber(t *testing.T) {
	svc, broker, _, _ := setupMessageService(t)

	events, cancel := broker.Subscribe(2)
	defer cancel()

	sent, err := svc.Send(context.Background(), 1, dto.MessageSendRequest{RecipientID: 2, Content: "ping"})
	require.NoError(t, err)

	select {
	case event := <-events:
		require.Equal(t, sent.ID, event.ID)
		require.Equal(t, "ping", event.Content)
	case <-time.After(time.Second):
		t.Fatal("expected a streamed message")
	}
}

func TestMessageBrokerCancelStopsDelivery(t *testing.T) {
	broker := NewMessageBroker()

	events, cancel := broker.Subscribe(2)
	cancel()

	// publishing after cancel must not panic on a closed channel
	broker.Publish(2, dto.MessageResponse{ID: 1})

	_, open := <-events
	require.False(t, open)
}

func TestMessageServiceStatusTransitions(t *testing.T) {
	svc, _, _, _ := setupMessageService(t)

	sent, err := svc.Send(context.Background(), 1, dto.MessageSendRequest{RecipientID: 2, Content: "hello"})
	require.NoError(t, err)

	_, err = svc.MarkRead(context.Background(), 1, sent.ID)
	require.ErrorIs(t, err, ErrNotRecipient)

	read, err := svc.MarkRead(context.Background(), 2, sent.ID)
	require.NoError(t, err)
	require.Equal(t, models.MessageStatusRead, read.Status)

	// idempotent
	again, err := svc.MarkRead(context.Background(), 2, sent.ID)
	require.NoError(t, err)
	require.Equal(t, models.MessageStatusRead, again.Status)

	archived, err := svc.Archive(context.Background(), 2, sent.ID)
	require.NoError(t, err)
	require.Equal(t, models.MessageStatusArchived, archived.Status)

	_, err = svc.MarkRead(context.Background(), 2, 999)
	require.ErrorIs(t, err, ErrMessageNotFound)
}

func TestMessageServiceListAndConversation(t *testing.T) {
	svc, _, _, _ := setupMessageService(t)

	_, err := svc.Send(context.Background(), 1, dto.MessageSendRequest{RecipientID: 2, Content: "first"})
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), 2, dto.MessageSendRequest{RecipientID: 1, Content: "reply"})
	require.NoError(t, err)

	inbox, err := svc.List(context.Background(), 2, dto.MessageFilter{Box: "inbox"})
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	require.Equal(t, "first", inbox[0].Content)

	sentBox, err := svc.List(context.Background(), 2, dto.MessageFilter{Box: "sent"})
	require.NoError(t, err)
	require.Len(t, sentBox, 1)
	require.Equal(t, "reply", sentBox[0].Content)

	conversation, err := svc.Conversation(context.Background(), 1, 2, 50)
	require.NoError(t, err)
	require.Len(t, conversation, 2)

	_, err = svc.Conversation(context.Background(), 1, 99, 50)
	require.ErrorIs(t, err, ErrRecipientNotFound)
}
