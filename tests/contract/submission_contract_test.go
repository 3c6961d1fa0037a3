package contract_test

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/opencourse/lms-api/internal/dto"
	"github.com/opencourse/lms-api/internal/handler"
	"github.com/opencourse/lms-api/internal/service"
)

type stubSubmissionService struct {
	response dto.SubmissionResponse
}

func (s stubSubmissionService) List(context.Context, service.SubmissionScope, uint, uint, dto.SubmissionFilter) ([]dto.SubmissionResponse, error) {
	return []dto.SubmissionResponse{s.response}, nil
}

func (s stubSubmissionService) Get(context.Context, service.SubmissionScope, uint, uint, uint) (dto.SubmissionResponse, error) {
	return s.response, nil
}

func (s stubSubmissionService) Submit(context.Context, uint, uint, uint, dto.SubmissionCreateRequest, *multipart.FileHeader) (dto.SubmissionResponse, error) {
	return s.response, nil
}

func (s stubSubmissionService) Grade(context.Context, uint, uint, uint, dto.GradeRequest, service.ActivityActor) (dto.SubmissionResponse, error) {
	return s.response, nil
}

func ptrInt(v int) *int { return &v }

func ptrUint(v uint) *uint { return &v }

func ptrTime(v time.Time) *time.Time { return &v }

func TestSubmissionResponseContract(t *testing.T) {
	schemaPath, err := filepath.Abs(filepath.Join("..", "contracts", "submission.schema.json"))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + schemaPath)
	require.NoError(t, err)

	now := time.Now().UTC()
	svc := stubSubmissionService{response: dto.SubmissionResponse{
		ID:           55,
		AssignmentID: 10,
		StudentID:    5,
		Text:         "final answer",
		FileURL:      "https://files.example.com/submissions/10/5/answer.pdf",
		Status:       "GRADED",
		Grade:        ptrInt(85),
		Feedback:     "Good work",
		GradedBy:     ptrUint(7),
		GradedAt:     ptrTime(now),
		History: []dto.GradeHistoryResponse{
			{Grade: 85, Feedback: "Good work", GradedBy: 7, GradedAt: now},
		},
		CreatedAt: now.Add(-48 * time.Hour),
		UpdatedAt: now,
		Assignment: dto.AssignmentLite{
			ID:        10,
			Title:     "Heaps",
			DueDate:   now.Add(24 * time.Hour),
			MaxPoints: 100,
		},
		Student: dto.StudentLite{ID: 5, Name: "Linus", Email: "linus@example.com"},
	}}

	h := handler.NewSubmissionHandler(svc)

	app := fiber.New()
	app.Get("/api/v1/courses/:courseID/assignments/:assignmentID/submissions/:submissionID",
		func(c *fiber.Ctx) error {
			c.Locals("user_id", uint(7))
			c.Locals("user_role", "LECTURER")
			return c.Next()
		},
		h.Get,
	)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/courses/1/assignments/10/submissions/55", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))
}
