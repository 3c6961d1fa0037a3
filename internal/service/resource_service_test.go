package service

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/opencourse/lms-api/internal/dto"
	"github.com/opencourse/lms-api/internal/models"
)

type memoryResourceRepo struct {
	seq        uint
	resources  map[uint]models.Resource
	failCreate bool
}

func newMemoryResourceRepo() *memoryResourceRepo {
	return &memoryResourceRepo{resources: make(map[uint]models.Resource)}
}

func (m *memoryResourceRepo) ListByCourse(_ context.Context, courseID uint) ([]models.Resource, error) {
	var items []models.Resource
	for _, resource := range m.resources {
		if resource.CourseID == courseID {
			items = append(items, resource)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (m *memoryResourceRepo) GetByID(_ context.Context, id uint) (models.Resource, error) {
	resource, ok := m.resources[id]
	if !ok {
		return models.Resource{}, gorm.ErrRecordNotFound
	}
	return resource, nil
}

func (m *memoryResourceRepo) Create(_ context.Context, resource *models.Resource) error {
	if m.failCreate {
		return gorm.ErrInvalidData
	}
	m.seq++
	resource.ID = m.seq
	resource.CreatedAt = time.Now()
	m.resources[resource.ID] = *resource
	return nil
}

func (m *memoryResourceRepo) Update(_ context.Context, resource *models.Resource) error {
	if _, ok := m.resources[resource.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.resources[resource.ID] = *resource
	return nil
}

func (m *memoryResourceRepo) Delete(_ context.Context, id uint) error {
	if _, ok := m.resources[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.resources, id)
	return nil
}

func setupResourceService(t *testing.T) (ResourceService, *memoryResourceRepo, *stubFileStore) {
	t.Helper()

	resources := newMemoryResourceRepo()
	courses := newMemoryCourseRepo()
	store := &stubFileStore{}
	validate := validator.New(validator.WithRequiredStructEnabled())

	require.NoError(t, courses.Create(context.Background(), &models.Course{Code: "CS101", Title: "Intro"}, nil))

	svc := NewResourceService(resources, courses, store, validate, nil, testLogger(), 0)

	return svc, resources, store
}

func TestResourceServiceCreate(t *testing.T) {
	svc, _, store := setupResourceService(t)

	lecturer := ActivityActor{ID: 7, Role: models.RoleLecturer}
	file := makeFileHeader(t, "syllabus.txt", []byte("week one: introductions"))

	created, err := svc.Create(context.Background(), 1, dto.ResourceCreateRequest{Title: "Syllabus"}, file, lecturer)
	require.NoError(t, err)
	require.Equal(t, "Syllabus", created.Title)
	require.NotEmpty(t, created.FileURL)
	require.Equal(t, uint(7), created.UploadedBy)
	require.Len(t, store.uploads, 1)

	_, err = svc.Create(context.Background(), 1, dto.ResourceCreateRequest{Title: "No attachment"}, nil, lecturer)
	require.ErrorIs(t, err, ErrFileRequired)
}

func TestResourceServiceCreateRollsBackUpload(t *testing.T) {
	svc, resources, store := setupResourceService(t)
	resources.failCreate = true

	file := makeFileHeader(t, "notes.txt", []byte("lecture notes"))
	_, err := svc.Create(context.Background(), 1, dto.ResourceCreateRequest{Title: "Notes"}, file, ActivityActor{ID: 7})
	require.Error(t, err)
	// the stored file must be removed when the row never lands
	require.Len(t, store.uploads, 1)
	require.Len(t, store.deleted, 1)
}

func TestResourceServiceUpdateReplacesFile(t *testing.T) {
	svc, _, store := setupResourceService(t)

	created, err := svc.Create(context.Background(), 1, dto.ResourceCreateRequest{Title: "Slides"},
		makeFileHeader(t, "v1.txt", []byte("draft slides")), ActivityActor{ID: 7})
	require.NoError(t, err)

	newTitle := "Slides (final)"
	updated, err := svc.Update(context.Background(), 1, created.ID, dto.ResourceUpdateRequest{Title: &newTitle},
		makeFileHeader(t, "v2.txt", []byte("final slides")), ActivityActor{ID: 7})
	require.NoError(t, err)
	require.Equal(t, "Slides (final)", updated.Title)
	require.NotEqual(t, created.FileURL, updated.FileURL)
	require.Len(t, store.uploads, 2)
	require.Len(t, store.deleted, 1)

	// metadata-only update keeps the stored file
	plainTitle := "Slides"
	_, err = svc.Update(context.Background(), 1, created.ID, dto.ResourceUpdateRequest{Title: &plainTitle}, nil, ActivityActor{ID: 7})
	require.NoError(t, err)
	require.Len(t, store.deleted, 1)
}

func TestResourceServiceCourseScoping(t *testing.T) {
	svc, resources, _ := setupResourceService(t)

	require.NoError(t, resources.Create(context.Background(), &models.Resource{
		CourseID: 2, Title: "Other course", FilePublicID: "stub/other",
	}))

	_, err := svc.Get(context.Background(), 1, 1)
	require.ErrorIs(t, err, ErrResourceNotFound)
}

func TestResourceServiceDeleteCleansUpFile(t *testing.T) {
	svc, _, store := setupResourceService(t)

	created, err := svc.Create(context.Background(), 1, dto.ResourceCreateRequest{Title: "Handout"},
		makeFileHeader(t, "handout.txt", []byte("read before class")), ActivityActor{ID: 7})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), 1, created.ID, ActivityActor{ID: 7}))
	require.Len(t, store.deleted, 1)

	err = svc.Delete(context.Background(), 1, created.ID, ActivityActor{ID: 7})
	require.True(t, errors.Is(err, ErrResourceNotFound))
}
