package handler

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/opencourse/lms-api/internal/dto"
	"github.com/opencourse/lms-api/internal/middleware"
	"github.com/opencourse/lms-api/internal/observability"
	"github.com/opencourse/lms-api/internal/service"
	"github.com/opencourse/lms-api/internal/utils"
)

// MessageHandler exposes direct messaging endpoints including the websocket
// stream for live delivery.
type MessageHandler struct {
	messages service.MessageService
	broker   *service.MessageBroker
	logger   zerolog.Logger
}

// NewMessageHandler constructs a MessageHandler.
func NewMessageHandler(messages service.MessageService, broker *service.MessageBroker, logger zerolog.Logger) *MessageHandler {
	return &MessageHandler{
		messages: messages,
		broker:   broker,
		logger:   logger.With().Str("component", "message_handler").Logger(),
	}
}

// Send delivers a direct message to another user.
func (h *MessageHandler) Send(c *fiber.Ctx) error {
	var payload dto.MessageSendRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	message, err := h.messages.Send(c.UserContext(), middleware.UserIDFromCtx(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", message)
}

// List returns the caller's inbox or sent box.
func (h *MessageHandler) List(c *fiber.Ctx) error {
	var filter dto.MessageFilter
	if err := c.QueryParser(&filter); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	messages, err := h.messages.List(c.UserContext(), middleware.UserIDFromCtx(c), filter)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "messages retrieved", messages)
}

// Conversation returns the two-way thread between the caller and another user.
func (h *MessageHandler) Conversation(c *fiber.Ctx) error {
	otherID, err := parseUintParam(c, "userID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid user id")
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
		}
		limit = parsed
	}

	messages, err := h.messages.Conversation(c.UserContext(), middleware.UserIDFromCtx(c), otherID, limit)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "conversation retrieved", messages)
}

// MarkRead marks a received message as read.
func (h *MessageHandler) MarkRead(c *fiber.Ctx) error {
	return h.transition(c, h.messages.MarkRead, "message marked read")
}

// Archive archives a received message.
func (h *MessageHandler) Archive(c *fiber.Ctx) error {
	return h.transition(c, h.messages.Archive, "message archived")
}

func (h *MessageHandler) transition(c *fiber.Ctx, apply func(ctx context.Context, userID, id uint) (dto.MessageResponse, error), message string) error {
	id, err := parseUintParam(c, "messageID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid message id")
	}

	updated, err := apply(c.UserContext(), middleware.UserIDFromCtx(c), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, message, updated)
}

// UpgradeGuard rejects non-websocket requests to the stream endpoint.
func (h *MessageHandler) UpgradeGuard(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Stream pushes messages addressed to the authenticated user over a websocket
// connection as they arrive.
func (h *MessageHandler) Stream(conn *websocket.Conn) {
	userID := websocketUserID(conn)
	if userID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusUnauthorized, "authentication required"))
		_ = conn.Close()
		return
	}

	events, cancel := h.broker.Subscribe(userID)
	defer cancel()

	observability.MessageStreamConnections().Inc()
	defer observability.MessageStreamConnections().Dec()

	h.logger.Info().Uint("user_id", userID).Msg("message stream connected")
	defer h.logger.Info().Uint("user_id", userID).Msg("message stream disconnected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case message, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(message); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *MessageHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrMessageNotFound), errors.Is(err, service.ErrRecipientNotFound), errors.Is(err, service.ErrCourseNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrSelfMessage), errors.Is(err, service.ErrEmptyMessage):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotRecipient):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	default:
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

func websocketUserID(conn *websocket.Conn) uint {
	switch v := conn.Locals("user_id").(type) {
	case uint:
		return v
	case int:
		if v > 0 {
			return uint(v)
		}
	case float64:
		if v > 0 {
			return uint(v)
		}
	case string:
		if parsed, err := strconv.ParseUint(v, 10, 64); err == nil {
			return uint(parsed)
		}
	}
	return 0
}
