package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/opencourse/lms-api/internal/dto"
	"github.com/opencourse/lms-api/internal/middleware"
	"github.com/opencourse/lms-api/internal/service"
	"github.com/opencourse/lms-api/internal/utils"
)

// SubmissionHandler exposes the hand-in and grading endpoints nested under
// a course's assignment.
type SubmissionHandler struct {
	submissions service.SubmissionService
}

// NewSubmissionHandler constructs a SubmissionHandler.
func NewSubmissionHandler(submissions service.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions}
}

// List returns submissions for an assignment, scoped to the caller's role.
func (h *SubmissionHandler) List(c *fiber.Ctx) error {
	courseID, assignmentID, err := h.pathIDs(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid path parameters")
	}

	var filter dto.SubmissionFilter
	if err := c.QueryParser(&filter); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	submissions, err := h.submissions.List(c.UserContext(), h.scope(c), courseID, assignmentID, filter)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

// Get returns a single submission.
func (h *SubmissionHandler) Get(c *fiber.Ctx) error {
	courseID, assignmentID, err := h.pathIDs(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid path parameters")
	}
	id, err := parseUintParam(c, "submissionID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	submission, err := h.submissions.Get(c.UserContext(), h.scope(c), courseID, assignmentID, id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}

// Submit hands in work for the caller. Resubmissions update the existing record.
func (h *SubmissionHandler) Submit(c *fiber.Ctx) error {
	courseID, assignmentID, err := h.pathIDs(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid path parameters")
	}

	var payload dto.SubmissionCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.submissions.Submit(c.UserContext(), courseID, assignmentID, middleware.UserIDFromCtx(c), payload, formFile(c, "file"))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission received", submission)
}

// Grade records a grade and feedback for a submission.
func (h *SubmissionHandler) Grade(c *fiber.Ctx) error {
	courseID, assignmentID, err := h.pathIDs(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid path parameters")
	}
	id, err := parseUintParam(c, "submissionID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	var payload dto.GradeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.submissions.Grade(c.UserContext(), courseID, assignmentID, id, payload, actorFromCtx(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission graded", submission)
}

func (h *SubmissionHandler) pathIDs(c *fiber.Ctx) (uint, uint, error) {
	courseID, err := parseUintParam(c, "courseID")
	if err != nil {
		return 0, 0, err
	}
	assignmentID, err := parseUintParam(c, "assignmentID")
	if err != nil {
		return 0, 0, err
	}
	return courseID, assignmentID, nil
}

func (h *SubmissionHandler) scope(c *fiber.Ctx) service.SubmissionScope {
	return service.SubmissionScope{
		Role:   middleware.UserRoleFromCtx(c),
		UserID: middleware.UserIDFromCtx(c),
	}
}

func (h *SubmissionHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrSubmissionNotFound),
		errors.Is(err, service.ErrAssignmentNotFound),
		errors.Is(err, service.ErrCourseNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrEmptySubmission),
		errors.Is(err, service.ErrGradeExceedsMax),
		errors.Is(err, service.ErrUploadTypeNotAllowed):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUploadTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, service.ErrNotEnrolled):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	default:
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
