package handler_test

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/opencourse/lms-api/internal/dto"
)

// seedCourse creates a course taught by the given lecturer and returns its id.
func seedCourse(t *testing.T, env testEnv, admin identity, code string, lecturerID uint) uint {
	t.Helper()

	resp := env.request(t, http.MethodPost, "/api/v1/courses/", dto.CourseCreateRequest{
		Code:        code,
		Title:       "Data Structures",
		Semester:    "FIRST",
		Year:        2026,
		LecturerIDs: []uint{lecturerID},
	}, &admin)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var created dto.CourseResponse
	decodeData(t, resp, &created)
	return created.ID
}

func TestSubmissionHandlerFlow(t *testing.T) {
	env := setupEnv(t)
	admin := env.createUser(t, "Admin", "ADMIN")
	lecturer := env.createUser(t, "Lecturer", "LECTURER")
	student := env.createUser(t, "Student", "STUDENT")

	courseID := seedCourse(t, env, admin, "CS101", lecturer.ID)

	resp := env.request(t, http.MethodPost, "/api/v1/enrollments/", dto.EnrollmentCreateRequest{CourseID: courseID}, &student)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = env.request(t, http.MethodPost, "/api/v1/courses/1/assignments/", dto.AssignmentCreateRequest{
		Title:     "Heaps",
		DueDate:   "2026-12-01",
		MaxPoints: 100,
	}, &lecturer)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var assignment dto.AssignmentResponse
	decodeData(t, resp, &assignment)

	resp = env.multipartRequest(t, http.MethodPost, "/api/v1/courses/1/assignments/1/submissions/",
		map[string]string{"text": "my answer"}, "", nil, &student)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var submission dto.SubmissionResponse
	decodeData(t, resp, &submission)
	require.Equal(t, "SUBMITTED", submission.Status)

	// grade above the assignment maximum is rejected
	resp = env.request(t, http.MethodPost, "/api/v1/courses/1/assignments/1/submissions/1/grade",
		dto.GradeRequest{Grade: 150}, &lecturer)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = env.request(t, http.MethodPost, "/api/v1/courses/1/assignments/1/submissions/1/grade",
		dto.GradeRequest{Grade: 85, Feedback: "Good work"}, &lecturer)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var graded dto.SubmissionResponse
	decodeData(t, resp, &graded)
	require.Equal(t, "GRADED", graded.Status)
	require.NotNil(t, graded.Grade)
	require.Equal(t, 85, *graded.Grade)

	// the student may still revise after grading
	resp = env.multipartRequest(t, http.MethodPost, "/api/v1/courses/1/assignments/1/submissions/",
		map[string]string{"text": "revised answer"}, "", nil, &student)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var revised dto.SubmissionResponse
	decodeData(t, resp, &revised)
	require.Equal(t, submission.ID, revised.ID)
	require.Equal(t, "SUBMITTED", revised.Status)
}

func TestSubmissionHandlerCapabilityGates(t *testing.T) {
	env := setupEnv(t)
	admin := env.createUser(t, "Admin", "ADMIN")
	lecturer := env.createUser(t, "Lecturer", "LECTURER")
	outsider := env.createUser(t, "Outsider", "LECTURER")
	student := env.createUser(t, "Student", "STUDENT")
	stranger := env.createUser(t, "Stranger", "STUDENT")

	seedCourse(t, env, admin, "CS101", lecturer.ID)

	resp := env.request(t, http.MethodPost, "/api/v1/enrollments/", dto.EnrollmentCreateRequest{CourseID: 1}, &student)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = env.request(t, http.MethodPost, "/api/v1/courses/1/assignments/", dto.AssignmentCreateRequest{
		Title: "Heaps", DueDate: "2026-12-01", MaxPoints: 100,
	}, &lecturer)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	// a lecturer not assigned to the course cannot create assignments there
	resp = env.request(t, http.MethodPost, "/api/v1/courses/1/assignments/", dto.AssignmentCreateRequest{
		Title: "Rogue", DueDate: "2026-12-01", MaxPoints: 10,
	}, &outsider)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// a student not enrolled in the course cannot hand in work
	resp = env.multipartRequest(t, http.MethodPost, "/api/v1/courses/1/assignments/1/submissions/",
		map[string]string{"text": "sneaky"}, "", nil, &stranger)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = env.multipartRequest(t, http.MethodPost, "/api/v1/courses/1/assignments/1/submissions/",
		map[string]string{"text": "legit"}, "", nil, &student)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	// grading requires the assigned lecturer (or an admin)
	resp = env.request(t, http.MethodPost, "/api/v1/courses/1/assignments/1/submissions/1/grade",
		dto.GradeRequest{Grade: 50}, &outsider)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = env.request(t, http.MethodPost, "/api/v1/courses/1/assignments/1/submissions/1/grade",
		dto.GradeRequest{Grade: 50}, &admin)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestSubmissionHandlerEmptyBody(t *testing.T) {
	env := setupEnv(t)
	admin := env.createUser(t, "Admin", "ADMIN")
	lecturer := env.createUser(t, "Lecturer", "LECTURER")
	student := env.createUser(t, "Student", "STUDENT")

	seedCourse(t, env, admin, "CS101", lecturer.ID)

	resp := env.request(t, http.MethodPost, "/api/v1/enrollments/", dto.EnrollmentCreateRequest{CourseID: 1}, &student)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = env.request(t, http.MethodPost, "/api/v1/courses/1/assignments/", dto.AssignmentCreateRequest{
		Title: "Heaps", DueDate: "2026-12-01", MaxPoints: 100,
	}, &lecturer)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = env.multipartRequest(t, http.MethodPost, "/api/v1/courses/1/assignments/1/submissions/",
		map[string]string{"text": "   "}, "", nil, &student)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSubmissionHandlerStudentOnlySeesOwnWork(t *testing.T) {
	env := setupEnv(t)
	admin := env.createUser(t, "Admin", "ADMIN")
	lecturer := env.createUser(t, "Lecturer", "LECTURER")
	first := env.createUser(t, "First", "STUDENT")
	second := env.createUser(t, "Second", "STUDENT")

	seedCourse(t, env, admin, "CS101", lecturer.ID)

	for _, student := range []identity{first, second} {
		resp := env.request(t, http.MethodPost, "/api/v1/enrollments/", dto.EnrollmentCreateRequest{CourseID: 1}, &student)
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	}

	resp := env.request(t, http.MethodPost, "/api/v1/courses/1/assignments/", dto.AssignmentCreateRequest{
		Title: "Heaps", DueDate: "2026-12-01", MaxPoints: 100,
	}, &lecturer)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	for _, student := range []identity{first, second} {
		resp := env.multipartRequest(t, http.MethodPost, "/api/v1/courses/1/assignments/1/submissions/",
			map[string]string{"text": "work"}, "", nil, &student)
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	}

	resp = env.request(t, http.MethodGet, "/api/v1/courses/1/assignments/1/submissions/", nil, &first)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var mine []dto.SubmissionResponse
	decodeData(t, resp, &mine)
	require.Len(t, mine, 1)
	require.Equal(t, first.ID, mine[0].StudentID)

	resp = env.request(t, http.MethodGet, "/api/v1/courses/1/assignments/1/submissions/", nil, &lecturer)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var all []dto.SubmissionResponse
	decodeData(t, resp, &all)
	require.Len(t, all, 2)
}
