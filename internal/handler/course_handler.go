package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/opencourse/lms-api/internal/dto"
	"github.com/opencourse/lms-api/internal/middleware"
	"github.com/opencourse/lms-api/internal/service"
	"github.com/opencourse/lms-api/internal/utils"
)

// CourseHandler exposes course catalog and management endpoints.
type CourseHandler struct {
	courses service.CourseService
}

// NewCourseHandler constructs a CourseHandler.
func NewCourseHandler(courses service.CourseService) *CourseHandler {
	return &CourseHandler{courses: courses}
}

// List returns courses scoped to the caller's role.
func (h *CourseHandler) List(c *fiber.Ctx) error {
	var filter dto.CourseFilter
	if err := c.QueryParser(&filter); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	scope := service.CourseScope{
		Role:   middleware.UserRoleFromCtx(c),
		UserID: middleware.UserIDFromCtx(c),
	}

	response, err := h.courses.List(c.UserContext(), filter, scope)
	if err != nil {
		return h.handleError(c, err)
	}

	if response.CacheHit {
		c.Set("X-Cache", "HIT")
	}

	return utils.SendSuccess(c, "courses retrieved", response)
}

// Get returns a single course with its lecturers.
func (h *CourseHandler) Get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "courseID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course id")
	}

	course, err := h.courses.Get(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "course retrieved", course)
}

// Create adds a course, optionally assigning lecturers in the same request.
func (h *CourseHandler) Create(c *fiber.Ctx) error {
	var payload dto.CourseCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	course, err := h.courses.Create(c.UserContext(), payload, actorFromCtx(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "course created", course)
}

// Update edits course fields and, when present, the lecturer set.
func (h *CourseHandler) Update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "courseID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course id")
	}

	var payload dto.CourseUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	course, err := h.courses.Update(c.UserContext(), id, payload, actorFromCtx(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "course updated", course)
}

// Delete removes a course and its dependent records.
func (h *CourseHandler) Delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "courseID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course id")
	}

	if err := h.courses.Delete(c.UserContext(), id, actorFromCtx(c)); err != nil {
		return h.handleError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ReplaceLecturers swaps the course's lecturer set wholesale.
func (h *CourseHandler) ReplaceLecturers(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "courseID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course id")
	}

	var payload dto.CourseLecturerSetRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	course, err := h.courses.ReplaceLecturers(c.UserContext(), id, payload, actorFromCtx(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "lecturers updated", course)
}

func (h *CourseHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrCourseNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrDuplicateCode), errors.Is(err, service.ErrCourseHasRecords):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrUnknownLecturer):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
