package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/opencourse/lms-api/internal/dto"
	"github.com/opencourse/lms-api/internal/service"
	"github.com/opencourse/lms-api/internal/utils"
)

// ResourceHandler exposes course material endpoints nested under a course.
type ResourceHandler struct {
	resources service.ResourceService
}

// NewResourceHandler constructs a ResourceHandler.
func NewResourceHandler(resources service.ResourceService) *ResourceHandler {
	return &ResourceHandler{resources: resources}
}

// List returns a course's resources.
func (h *ResourceHandler) List(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course id")
	}

	resources, err := h.resources.ListByCourse(c.UserContext(), courseID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "resources retrieved", resources)
}

// Get returns a single resource.
func (h *ResourceHandler) Get(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course id")
	}
	id, err := parseUintParam(c, "resourceID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid resource id")
	}

	resource, err := h.resources.Get(c.UserContext(), courseID, id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "resource retrieved", resource)
}

// Create uploads a file and publishes it as a course resource.
func (h *ResourceHandler) Create(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course id")
	}

	var payload dto.ResourceCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	resource, err := h.resources.Create(c.UserContext(), courseID, payload, formFile(c, "file"), actorFromCtx(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "resource published", resource)
}

// Update edits resource metadata; a new file part replaces the stored file.
func (h *ResourceHandler) Update(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course id")
	}
	id, err := parseUintParam(c, "resourceID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid resource id")
	}

	var payload dto.ResourceUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	resource, err := h.resources.Update(c.UserContext(), courseID, id, payload, formFile(c, "file"), actorFromCtx(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "resource updated", resource)
}

// Delete removes a resource and its stored file.
func (h *ResourceHandler) Delete(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course id")
	}
	id, err := parseUintParam(c, "resourceID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid resource id")
	}

	if err := h.resources.Delete(c.UserContext(), courseID, id, actorFromCtx(c)); err != nil {
		return h.handleError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ResourceHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrResourceNotFound), errors.Is(err, service.ErrCourseNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrFileRequired), errors.Is(err, service.ErrUploadTypeNotAllowed):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUploadTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
	default:
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
