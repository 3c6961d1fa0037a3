package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/opencourse/lms-api/internal/dto"
	"github.com/opencourse/lms-api/internal/models"
)

func TestCourseServiceCreateAndDuplicateCode(t *testing.T) {
	repo := newMemoryCourseRepo()
	repo.knownLecturers[7] = true
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewCourseService(repo, validate, nil, time.Minute, nil, testLogger())

	payload := dto.CourseCreateRequest{
		Code:        "CS101",
		Title:       "Intro to Computer Science",
		Semester:    models.SemesterFirst,
		Year:        2026,
		LecturerIDs: []uint{7},
	}

	course, err := svc.Create(context.Background(), payload, ActivityActor{ID: 1, Role: models.RoleAdmin})
	require.NoError(t, err)
	require.Equal(t, "CS101", course.Code)

	_, err = svc.Create(context.Background(), payload, ActivityActor{})
	require.ErrorIs(t, err, ErrDuplicateCode)
}

func TestCourseServiceCreateUnknownLecturer(t *testing.T) {
	repo := newMemoryCourseRepo()
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewCourseService(repo, validate, nil, time.Minute, nil, testLogger())

	_, err := svc.Create(context.Background(), dto.CourseCreateRequest{
		Code:        "CS102",
		Title:       "Algorithms",
		Semester:    models.SemesterSecond,
		Year:        2026,
		LecturerIDs: []uint{404},
	}, ActivityActor{})
	require.ErrorIs(t, err, ErrUnknownLecturer)
}

func TestCourseServiceListScopedByRole(t *testing.T) {
	repo := newMemoryCourseRepo()
	repo.knownLecturers[7] = true
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewCourseService(repo, validate, nil, time.Minute, nil, testLogger())

	_, err := svc.Create(context.Background(), dto.CourseCreateRequest{
		Code: "CS101", Title: "Intro", Semester: models.SemesterFirst, Year: 2026, LecturerIDs: []uint{7},
	}, ActivityActor{})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), dto.CourseCreateRequest{
		Code: "CS201", Title: "Advanced", Semester: models.SemesterFirst, Year: 2026,
	}, ActivityActor{})
	require.NoError(t, err)

	repo.students[2] = []uint{33}

	lecturerView, err := svc.List(context.Background(), dto.CourseFilter{}, CourseScope{Role: models.RoleLecturer, UserID: 7})
	require.NoError(t, err)
	require.Len(t, lecturerView.Items, 1)
	require.Equal(t, "CS101", lecturerView.Items[0].Code)

	studentView, err := svc.List(context.Background(), dto.CourseFilter{}, CourseScope{Role: models.RoleStudent, UserID: 33})
	require.NoError(t, err)
	require.Len(t, studentView.Items, 1)
	require.Equal(t, "CS201", studentView.Items[0].Code)

	adminView, err := svc.List(context.Background(), dto.CourseFilter{}, CourseScope{Role: models.RoleAdmin, UserID: 1})
	require.NoError(t, err)
	require.Len(t, adminView.Items, 2)
}

func TestCourseServiceCatalogCaching(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()

	repo := newMemoryCourseRepo()
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewCourseService(repo, validate, redisClient, time.Minute, nil, testLogger())

	_, err = svc.Create(context.Background(), dto.CourseCreateRequest{
		Code: "CS101", Title: "Intro", Semester: models.SemesterFirst, Year: 2026,
	}, ActivityActor{})
	require.NoError(t, err)

	admin := CourseScope{Role: models.RoleAdmin, UserID: 1}

	first, err := svc.List(context.Background(), dto.CourseFilter{}, admin)
	require.NoError(t, err)
	require.False(t, first.CacheHit)
	require.Len(t, first.Items, 1)

	second, err := svc.List(context.Background(), dto.CourseFilter{}, admin)
	require.NoError(t, err)
	require.True(t, second.CacheHit)
	require.Len(t, second.Items, 1)

	// any mutation invalidates the catalog
	_, err = svc.Create(context.Background(), dto.CourseCreateRequest{
		Code: "CS201", Title: "Advanced", Semester: models.SemesterFirst, Year: 2026,
	}, ActivityActor{})
	require.NoError(t, err)

	third, err := svc.List(context.Background(), dto.CourseFilter{}, admin)
	require.NoError(t, err)
	require.False(t, third.CacheHit)
	require.Len(t, third.Items, 2)
}

func TestCourseServiceDeleteWithDependents(t *testing.T) {
	repo := newMemoryCourseRepo()
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewCourseService(repo, validate, nil, time.Minute, nil, testLogger())

	created, err := svc.Create(context.Background(), dto.CourseCreateRequest{
		Code: "CS101", Title: "Intro", Semester: models.SemesterFirst, Year: 2026,
	}, ActivityActor{})
	require.NoError(t, err)

	repo.hasRecords[created.ID] = true
	err = svc.Delete(context.Background(), created.ID, ActivityActor{})
	require.ErrorIs(t, err, ErrCourseHasRecords)

	repo.hasRecords[created.ID] = false
	require.NoError(t, svc.Delete(context.Background(), created.ID, ActivityActor{}))
	require.ErrorIs(t, svc.Delete(context.Background(), created.ID, ActivityActor{}), ErrCourseNotFound)
}

func TestCourseServiceReplaceLecturersToEmpty(t *testing.T) {
	repo := newMemoryCourseRepo()
	repo.knownLecturers[7] = true
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewCourseService(repo, validate, nil, time.Minute, nil, testLogger())

	created, err := svc.Create(context.Background(), dto.CourseCreateRequest{
		Code: "CS101", Title: "Intro", Semester: models.SemesterFirst, Year: 2026, LecturerIDs: []uint{7},
	}, ActivityActor{})
	require.NoError(t, err)

	_, err = svc.ReplaceLecturers(context.Background(), created.ID, dto.CourseLecturerSetRequest{LecturerIDs: []uint{}}, ActivityActor{})
	require.NoError(t, err)
	require.Empty(t, repo.lecturers[created.ID])
}
