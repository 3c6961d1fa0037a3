package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/opencourse/lms-api/internal/dto"
	"github.com/opencourse/lms-api/internal/models"
	"github.com/opencourse/lms-api/internal/observability"
	"github.com/opencourse/lms-api/internal/repository"
	"github.com/opencourse/lms-api/pkg/storage"
)

// Submission errors.
var (
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrEmptySubmission    = errors.New("submission requires text or a file")
	ErrGradeExceedsMax    = errors.New("grade exceeds the assignment's maximum points")
	ErrNotEnrolled        = errors.New("student is not enrolled in this course")
)

// SubmissionScope carries the caller's identity for role-scoped reads.
type SubmissionScope struct {
	Role   string
	UserID uint
}

// SubmissionService manages the hand-in and grading workflow.
type SubmissionService interface {
	List(ctx context.Context, scope SubmissionScope, courseID, assignmentID uint, filter dto.SubmissionFilter) ([]dto.SubmissionResponse, error)
	Get(ctx context.Context, scope SubmissionScope, courseID, assignmentID, id uint) (dto.SubmissionResponse, error)
	Submit(ctx context.Context, courseID, assignmentID, studentID uint, payload dto.SubmissionCreateRequest, file *multipart.FileHeader) (dto.SubmissionResponse, error)
	Grade(ctx context.Context, courseID, assignmentID, id uint, payload dto.GradeRequest, grader ActivityActor) (dto.SubmissionResponse, error)
}

type submissionService struct {
	submissions repository.SubmissionRepository
	assignments repository.AssignmentRepository
	courses     repository.CourseRepository
	store       FileStore
	validator   *validator.Validate
	activity    ActivityRecorder
	logger      zerolog.Logger
	tracer      trace.Tracer
	maxUpload   int64
	now         func() time.Time
}

// NewSubmissionService constructs a SubmissionService instance.
func NewSubmissionService(
	submissions repository.SubmissionRepository,
	assignments repository.AssignmentRepository,
	courses repository.CourseRepository,
	store FileStore,
	validate *validator.Validate,
	activity ActivityRecorder,
	logger zerolog.Logger,
	maxUploadBytes int64,
) SubmissionService {
	return &submissionService{
		submissions: submissions,
		assignments: assignments,
		courses:     courses,
		store:       store,
		validator:   validate,
		activity:    activity,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		tracer:      otel.Tracer("lms/submissions"),
		maxUpload:   maxUploadBytes,
		now:         time.Now,
	}
}

func (s *submissionService) List(ctx context.Context, scope SubmissionScope, courseID, assignmentID uint, filter dto.SubmissionFilter) ([]dto.SubmissionResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, err
	}

	if _, err := s.getAssignment(ctx, courseID, assignmentID); err != nil {
		return nil, err
	}

	repoFilter := repository.SubmissionFilter{
		AssignmentID: &assignmentID,
		Status:       filter.Status,
	}

	// Students only ever see their own work regardless of query parameters.
	if scope.Role == models.RoleStudent {
		repoFilter.StudentID = &scope.UserID
	} else if filter.StudentID != nil {
		repoFilter.StudentID = filter.StudentID
	}

	submissions, err := s.submissions.List(ctx, repoFilter)
	if err != nil {
		return nil, err
	}

	return dto.NewSubmissionResponseSlice(submissions), nil
}

func (s *submissionService) Get(ctx context.Context, scope SubmissionScope, courseID, assignmentID, id uint) (dto.SubmissionResponse, error) {
	submission, err := s.getOwned(ctx, courseID, assignmentID, id)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	if scope.Role == models.RoleStudent && submission.StudentID != scope.UserID {
		return dto.SubmissionResponse{}, ErrSubmissionNotFound
	}

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) Submit(ctx context.Context, courseID, assignmentID, studentID uint, payload dto.SubmissionCreateRequest, file *multipart.FileHeader) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	assignment, err := s.getAssignment(ctx, courseID, assignmentID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	enrolled, err := s.courses.IsStudentEnrolled(ctx, courseID, studentID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	if !enrolled {
		return dto.SubmissionResponse{}, ErrNotEnrolled
	}

	text := strings.TrimSpace(payload.Text)
	if text == "" && file == nil {
		return dto.SubmissionResponse{}, ErrEmptySubmission
	}

	var uploaded storage.StoredFile
	if file != nil {
		uploaded, err = s.uploadFile(ctx, assignmentID, studentID, file)
		if err != nil {
			return dto.SubmissionResponse{}, err
		}
	}

	existing, err := s.submissions.GetByAssignmentAndStudent(ctx, assignmentID, studentID)
	switch {
	case err == nil:
		return s.resubmit(ctx, existing, text, uploaded)
	case errors.Is(err, gorm.ErrRecordNotFound):
		// first hand-in, fall through to create
	default:
		s.cleanupUpload(ctx, uploaded)
		return dto.SubmissionResponse{}, err
	}

	submission := models.Submission{
		AssignmentID: assignmentID,
		StudentID:    studentID,
		Text:         text,
		FileURL:      uploaded.URL,
		FilePublicID: uploaded.PublicID,
		Status:       models.SubmissionStatusSubmitted,
	}

	if err := s.submissions.Create(ctx, &submission); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost a race against a concurrent first submission; retry as an update.
			current, getErr := s.submissions.GetByAssignmentAndStudent(ctx, assignmentID, studentID)
			if getErr != nil {
				s.cleanupUpload(ctx, uploaded)
				return dto.SubmissionResponse{}, getErr
			}
			return s.resubmit(ctx, current, text, uploaded)
		}
		s.cleanupUpload(ctx, uploaded)
		return dto.SubmissionResponse{}, err
	}

	if assignment.IsPastDue(s.now()) {
		s.logger.Info().Uint("assignment_id", assignmentID).Uint("student_id", studentID).Msg("submission accepted after due date")
	}

	s.recordActivity(ctx, ActivityActor{ID: studentID, Role: models.RoleStudent}, "submission.created", submission.ID, map[string]interface{}{
		"assignment_id": assignmentID,
		"has_file":      submission.FileURL != "",
	})

	return s.reload(ctx, submission)
}

// resubmit updates the existing row for the (assignment, student) pair. A
// graded submission may still be revised; its status drops back to SUBMITTED
// so graders can see it needs another pass, while the grade history is kept.
func (s *submissionService) resubmit(ctx context.Context, submission models.Submission, text string, uploaded storage.StoredFile) (dto.SubmissionResponse, error) {
	if submission.IsGraded() {
		s.logger.Warn().
			Uint("submission_id", submission.ID).
			Uint("student_id", submission.StudentID).
			Msg("student revised an already graded submission")
	}

	previousPublicID := submission.FilePublicID

	if text != "" {
		submission.Text = text
	}
	if uploaded.URL != "" {
		submission.FileURL = uploaded.URL
		submission.FilePublicID = uploaded.PublicID
	}
	submission.Status = models.SubmissionStatusSubmitted

	if err := s.submissions.Update(ctx, &submission); err != nil {
		s.cleanupUpload(ctx, uploaded)
		return dto.SubmissionResponse{}, err
	}

	if uploaded.URL != "" && previousPublicID != "" && previousPublicID != uploaded.PublicID {
		if err := s.store.Delete(ctx, previousPublicID); err != nil {
			s.logger.Warn().Err(err).Str("public_id", previousPublicID).Msg("failed to remove replaced submission file")
		}
	}

	s.recordActivity(ctx, ActivityActor{ID: submission.StudentID, Role: models.RoleStudent}, "submission.updated", submission.ID, map[string]interface{}{
		"assignment_id": submission.AssignmentID,
	})

	return s.reload(ctx, submission)
}

func (s *submissionService) Grade(ctx context.Context, courseID, assignmentID, id uint, payload dto.GradeRequest, grader ActivityActor) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.grade")
	defer span.End()
	span.SetAttributes(
		attribute.Int("submission.id", int(id)),
		attribute.Int("grader.id", int(grader.ID)),
	)

	if err := s.validator.Struct(payload); err != nil {
		observability.Grading().WithLabelValues("invalid").Inc()
		return dto.SubmissionResponse{}, err
	}

	submission, err := s.getOwned(ctx, courseID, assignmentID, id)
	if err != nil {
		observability.Grading().WithLabelValues("not_found").Inc()
		return dto.SubmissionResponse{}, err
	}

	assignment, err := s.getAssignment(ctx, courseID, assignmentID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	if payload.Grade > assignment.MaxPoints {
		observability.Grading().WithLabelValues("rejected").Inc()
		return dto.SubmissionResponse{}, fmt.Errorf("%w: %d > %d", ErrGradeExceedsMax, payload.Grade, assignment.MaxPoints)
	}

	outcome := "graded"
	if submission.IsGraded() {
		outcome = "regraded"
	}

	gradedAt := s.now()
	grade := payload.Grade
	graderID := grader.ID

	submission.Status = models.SubmissionStatusGraded
	submission.Grade = &grade
	submission.Feedback = payload.Feedback
	submission.GradedBy = &graderID
	submission.GradedAt = &gradedAt

	if err := s.submissions.Update(ctx, &submission); err != nil {
		observability.Grading().WithLabelValues("error").Inc()
		return dto.SubmissionResponse{}, err
	}

	history := models.SubmissionGradeHistory{
		SubmissionID: submission.ID,
		Grade:        grade,
		Feedback:     payload.Feedback,
		GradedBy:     graderID,
		GradedAt:     gradedAt,
	}
	if err := s.submissions.CreateHistory(ctx, &history); err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to append grade history")
	}

	observability.Grading().WithLabelValues(outcome).Inc()
	s.recordActivity(ctx, grader, "submission.graded", submission.ID, map[string]interface{}{
		"assignment_id": assignmentID,
		"grade":         grade,
		"outcome":       outcome,
	})
	s.logger.Info().
		Uint("submission_id", submission.ID).
		Uint("grader_id", graderID).
		Int("grade", grade).
		Str("outcome", outcome).
		Msg("submission graded")

	return s.reload(ctx, submission)
}

func (s *submissionService) uploadFile(ctx context.Context, assignmentID, studentID uint, file *multipart.FileHeader) (storage.StoredFile, error) {
	start := s.now()

	detected, err := validateUpload(file, s.maxUpload)
	if err != nil {
		reason := "type"
		if errors.Is(err, ErrUploadTooLarge) {
			reason = "size"
		}
		observability.UploadRejected().WithLabelValues(reason).Inc()
		return storage.StoredFile{}, err
	}

	reader, err := file.Open()
	if err != nil {
		return storage.StoredFile{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer reader.Close()

	name := fmt.Sprintf("submissions/%d/%d/%s", assignmentID, studentID, file.Filename)
	uploaded, err := s.store.Upload(ctx, name, reader)
	if err != nil {
		return storage.StoredFile{}, fmt.Errorf("failed to store submission file: %w", err)
	}

	observability.UploadRequests().WithLabelValues(detected).Inc()
	observability.UploadLatency().Observe(s.now().Sub(start).Seconds())

	return uploaded, nil
}

// cleanupUpload best-effort deletes a file whose database row never landed.
func (s *submissionService) cleanupUpload(ctx context.Context, uploaded storage.StoredFile) {
	if uploaded.PublicID == "" {
		return
	}
	if err := s.store.Delete(ctx, uploaded.PublicID); err != nil {
		s.logger.Warn().Err(err).Str("public_id", uploaded.PublicID).Msg("failed to clean up orphaned upload")
	}
}

func (s *submissionService) getAssignment(ctx context.Context, courseID, assignmentID uint) (models.Assignment, error) {
	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, ErrAssignmentNotFound
		}
		return models.Assignment{}, err
	}

	if assignment.CourseID != courseID {
		return models.Assignment{}, ErrAssignmentNotFound
	}

	return assignment, nil
}

func (s *submissionService) getOwned(ctx context.Context, courseID, assignmentID, id uint) (models.Submission, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, ErrSubmissionNotFound
		}
		return models.Submission{}, err
	}

	if submission.AssignmentID != assignmentID || submission.Assignment.CourseID != courseID {
		return models.Submission{}, ErrSubmissionNotFound
	}

	return submission, nil
}

// reload re-reads the submission with its associations for the response.
func (s *submissionService) reload(ctx context.Context, submission models.Submission) (dto.SubmissionResponse, error) {
	full, err := s.submissions.GetByID(ctx, submission.ID)
	if err != nil {
		return dto.NewSubmissionResponse(submission), nil
	}
	return dto.NewSubmissionResponse(full), nil
}

func (s *submissionService) recordActivity(ctx context.Context, actor ActivityActor, action string, entityID uint, metadata map[string]interface{}) {
	if s.activity == nil {
		return
	}
	id := entityID
	_, _ = s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: "submission",
		EntityID:   &id,
		Metadata:   metadata,
	})
}
