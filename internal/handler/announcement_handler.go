package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/opencourse/lms-api/internal/dto"
	"github.com/opencourse/lms-api/internal/service"
	"github.com/opencourse/lms-api/internal/utils"
)

// AnnouncementHandler exposes platform announcement endpoints.
type AnnouncementHandler struct {
	announcements service.AnnouncementService
}

// NewAnnouncementHandler constructs an AnnouncementHandler.
func NewAnnouncementHandler(announcements service.AnnouncementService) *AnnouncementHandler {
	return &AnnouncementHandler{announcements: announcements}
}

// ListActive returns currently visible announcements, pinned first.
func (h *AnnouncementHandler) ListActive(c *fiber.Ctx) error {
	var filter dto.AnnouncementFilter
	if err := c.QueryParser(&filter); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	response, err := h.announcements.ListActive(c.UserContext(), filter)
	if err != nil {
		return h.handleError(c, err)
	}

	if response.CacheHit {
		c.Set("X-Cache", "HIT")
	}

	return utils.SendSuccess(c, "announcements retrieved", response)
}

// Get returns a single announcement, visible or not.
func (h *AnnouncementHandler) Get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid id")
	}

	announcement, err := h.announcements.Get(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "announcement retrieved", announcement)
}

// Create publishes an announcement.
func (h *AnnouncementHandler) Create(c *fiber.Ctx) error {
	var payload dto.AnnouncementCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	announcement, err := h.announcements.Create(c.UserContext(), payload, actorFromCtx(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "announcement published", announcement)
}

// Update edits an announcement.
func (h *AnnouncementHandler) Update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid id")
	}

	var payload dto.AnnouncementUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	announcement, err := h.announcements.Update(c.UserContext(), id, payload, actorFromCtx(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "announcement updated", announcement)
}

// Delete removes an announcement.
func (h *AnnouncementHandler) Delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid id")
	}

	if err := h.announcements.Delete(c.UserContext(), id, actorFromCtx(c)); err != nil {
		return h.handleError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AnnouncementHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrAnnouncementNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidWindow):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
