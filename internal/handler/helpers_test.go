package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/opencourse/lms-api/internal/config"
	"github.com/opencourse/lms-api/internal/handler"
	"github.com/opencourse/lms-api/internal/models"
	"github.com/opencourse/lms-api/internal/repository"
	"github.com/opencourse/lms-api/internal/router"
	"github.com/opencourse/lms-api/internal/service"
	"github.com/opencourse/lms-api/pkg/storage"
)

// fakeStore satisfies the blob storage interface without network calls.
type fakeStore struct {
	uploads []string
	deleted []string
}

func (s *fakeStore) Upload(_ context.Context, name string, _ io.Reader) (storage.StoredFile, error) {
	s.uploads = append(s.uploads, name)
	return storage.StoredFile{URL: "https://files.example.com/" + name, PublicID: "test/" + name}, nil
}

func (s *fakeStore) Delete(_ context.Context, publicID string) error {
	s.deleted = append(s.deleted, publicID)
	return nil
}

type testEnv struct {
	app   *fiber.App
	db    *gorm.DB
	store *fakeStore
}

// fakeJWT trusts X-Test-User-ID and X-Test-Role headers instead of verifying
// a signed token, so tests can impersonate any identity.
func fakeJWT(c *fiber.Ctx) error {
	if raw := c.Get("X-Test-User-ID"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			c.Locals("user_id", uint(id))
		}
	}
	if role := c.Get("X-Test-Role"); role != "" {
		c.Locals("user_role", role)
	}
	return c.Next()
}

func setupEnv(t *testing.T) testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Course{},
		&models.Enrollment{},
		&models.Assignment{},
		&models.Submission{},
		&models.SubmissionGradeHistory{},
		&models.Resource{},
		&models.Message{},
		&models.Announcement{},
		&models.ActivityLog{},
	))

	logger := zerolog.New(io.Discard)
	validate := validator.New(validator.WithRequiredStructEnabled())
	store := &fakeStore{}

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	resourceRepo := repository.NewResourceRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	activity := service.NewActivityService(activityRepo, logger)
	broker := service.NewMessageBroker()

	tokens := service.TokenConfig{
		Secret:        "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
	}

	deps := router.Dependencies{
		AuthHandler:         handler.NewAuthHandler(service.NewAuthService(userRepo, validate, tokens, logger)),
		UserHandler:         handler.NewUserHandler(service.NewUserService(userRepo, validate, activity, logger)),
		CourseHandler:       handler.NewCourseHandler(service.NewCourseService(courseRepo, validate, nil, time.Minute, activity, logger)),
		EnrollmentHandler:   handler.NewEnrollmentHandler(service.NewEnrollmentService(enrollmentRepo, courseRepo, validate, logger)),
		AssignmentHandler:   handler.NewAssignmentHandler(service.NewAssignmentService(assignmentRepo, courseRepo, validate, activity, logger)),
		SubmissionHandler:   handler.NewSubmissionHandler(service.NewSubmissionService(submissionRepo, assignmentRepo, courseRepo, store, validate, activity, logger, 0)),
		ResourceHandler:     handler.NewResourceHandler(service.NewResourceService(resourceRepo, courseRepo, store, validate, activity, logger, 0)),
		MessageHandler:      handler.NewMessageHandler(service.NewMessageService(messageRepo, userRepo, courseRepo, broker, nil, validate, logger), broker, logger),
		AnnouncementHandler: handler.NewAnnouncementHandler(service.NewAnnouncementService(announcementRepo, validate, nil, time.Minute, activity, nil, logger)),
		JWTMiddleware:       fakeJWT,
		CourseAccess:        courseRepo,
	}

	app := fiber.New()
	router.Register(app, config.Config{AppName: "lms-api-test"}, deps)

	return testEnv{app: app, db: db, store: store}
}

type identity struct {
	ID   uint
	Role string
}

func (e testEnv) createUser(t *testing.T, name, role string) identity {
	t.Helper()

	user := models.User{
		Name:  name,
		Email: strings.ToLower(name) + "@example.com",
		Role:  role,
	}
	require.NoError(t, user.SetPassword("pass-1234"))
	require.NoError(t, e.db.Create(&user).Error)

	return identity{ID: user.ID, Role: role}
}

func (e testEnv) request(t *testing.T, method, path string, body any, as *identity) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if as != nil {
		req.Header.Set("X-Test-User-ID", strconv.FormatUint(uint64(as.ID), 10))
		req.Header.Set("X-Test-Role", as.Role)
	}

	resp, err := e.app.Test(req, 5000)
	require.NoError(t, err)
	return resp
}

func (e testEnv) multipartRequest(t *testing.T, method, path string, fields map[string]string, fileName string, fileContent []byte, as *identity) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if fileName != "" {
		part, err := writer.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = part.Write(fileContent)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if as != nil {
		req.Header.Set("X-Test-User-ID", strconv.FormatUint(uint64(as.ID), 10))
		req.Header.Set("X-Test-Role", as.Role)
	}

	resp, err := e.app.Test(req, 5000)
	require.NoError(t, err)
	return resp
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func decodeEnvelope(t *testing.T, resp *http.Response) envelope {
	t.Helper()

	defer resp.Body.Close()
	var body envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func decodeData(t *testing.T, resp *http.Response, out any) {
	t.Helper()

	body := decodeEnvelope(t, resp)
	require.NoError(t, json.Unmarshal(body.Data, out))
}
