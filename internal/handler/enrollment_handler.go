package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/opencourse/lms-api/internal/dto"
	"github.com/opencourse/lms-api/internal/middleware"
	"github.com/opencourse/lms-api/internal/service"
	"github.com/opencourse/lms-api/internal/utils"
)

// EnrollmentHandler exposes a student's self-service enrollment endpoints.
type EnrollmentHandler struct {
	enrollments service.EnrollmentService
}

// NewEnrollmentHandler constructs an EnrollmentHandler.
func NewEnrollmentHandler(enrollments service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// Enroll joins the caller to a course.
func (h *EnrollmentHandler) Enroll(c *fiber.Ctx) error {
	var payload dto.EnrollmentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	enrollment, err := h.enrollments.Enroll(c.UserContext(), middleware.UserIDFromCtx(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "enrolled", enrollment)
}

// ListMine returns the caller's enrollments with course details.
func (h *EnrollmentHandler) ListMine(c *fiber.Ctx) error {
	enrollments, err := h.enrollments.ListMine(c.UserContext(), middleware.UserIDFromCtx(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "enrollments retrieved", enrollments)
}

// Unenroll removes the caller from a course.
func (h *EnrollmentHandler) Unenroll(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course id")
	}

	if err := h.enrollments.Unenroll(c.UserContext(), middleware.UserIDFromCtx(c), courseID); err != nil {
		return h.handleError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *EnrollmentHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrCourseNotFound), errors.Is(err, service.ErrEnrollmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrAlreadyEnrolled):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	default:
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
