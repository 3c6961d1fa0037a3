package service

import (
	"context"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/opencourse/lms-api/internal/models"
	"github.com/opencourse/lms-api/internal/repository"
	"github.com/opencourse/lms-api/pkg/storage"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func ptrUint(v uint) *uint {
	return &v
}

type memoryActivityRepo struct {
	entries []models.ActivityLog
}

func (m *memoryActivityRepo) Create(_ context.Context, entry *models.ActivityLog) error {
	entry.ID = uint(len(m.entries) + 1)
	entry.CreatedAt = time.Now()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memoryActivityRepo) ListRecent(_ context.Context, limit int) ([]models.ActivityLog, error) {
	if limit <= 0 || limit > len(m.entries) {
		limit = len(m.entries)
	}
	return append([]models.ActivityLog(nil), m.entries[len(m.entries)-limit:]...), nil
}

type memoryUserRepo struct {
	seq             uint
	users           map[uint]models.User
	knownCourses    map[uint]bool
	lecturerCourses map[uint][]uint
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{
		users:           make(map[uint]models.User),
		knownCourses:    make(map[uint]bool),
		lecturerCourses: make(map[uint][]uint),
	}
}

func (m *memoryUserRepo) List(_ context.Context, filter repository.UserFilter) ([]models.User, int64, error) {
	var users []models.User
	for _, user := range m.users {
		if filter.Role != "" && user.Role != filter.Role {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(user.Name), strings.ToLower(filter.Search)) {
			continue
		}
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, int64(len(users)), nil
}

func (m *memoryUserRepo) GetByID(_ context.Context, id uint) (models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return models.User{}, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (m *memoryUserRepo) GetByEmail(_ context.Context, email string) (models.User, error) {
	for _, user := range m.users {
		if user.Email == strings.ToLower(email) {
			return user, nil
		}
	}
	return models.User{}, gorm.ErrRecordNotFound
}

func (m *memoryUserRepo) Create(_ context.Context, user *models.User) error {
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	m.seq++
	user.ID = m.seq
	user.CreatedAt = time.Now()
	m.users[user.ID] = *user
	return nil
}

func (m *memoryUserRepo) CreateWithCourses(ctx context.Context, user *models.User, courseIDs []uint) error {
	for _, id := range courseIDs {
		if !m.knownCourses[id] {
			return gorm.ErrRecordNotFound
		}
	}
	if err := m.Create(ctx, user); err != nil {
		return err
	}
	m.lecturerCourses[user.ID] = append([]uint(nil), courseIDs...)
	return nil
}

func (m *memoryUserRepo) Update(_ context.Context, user *models.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.users[user.ID] = *user
	return nil
}

func (m *memoryUserRepo) Delete(_ context.Context, id uint) error {
	if _, ok := m.users[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *memoryUserRepo) ReplaceLecturerCourses(_ context.Context, lecturerID uint, courseIDs []uint) error {
	for _, id := range courseIDs {
		if !m.knownCourses[id] {
			return gorm.ErrRecordNotFound
		}
	}
	m.lecturerCourses[lecturerID] = append([]uint(nil), courseIDs...)
	return nil
}

type memoryCourseRepo struct {
	seq            uint
	courses        map[uint]models.Course
	lecturers      map[uint][]uint
	students       map[uint][]uint
	knownLecturers map[uint]bool
	hasRecords     map[uint]bool
}

func newMemoryCourseRepo() *memoryCourseRepo {
	return &memoryCourseRepo{
		courses:        make(map[uint]models.Course),
		lecturers:      make(map[uint][]uint),
		students:       make(map[uint][]uint),
		knownLecturers: make(map[uint]bool),
		hasRecords:     make(map[uint]bool),
	}
}

func (m *memoryCourseRepo) List(_ context.Context, filter repository.CourseFilter) ([]models.Course, int64, error) {
	var courses []models.Course
	for id, course := range m.courses {
		if filter.Semester != "" && course.Semester != filter.Semester {
			continue
		}
		if filter.Year != 0 && course.Year != filter.Year {
			continue
		}
		if filter.LecturerID != nil && !containsUint(m.lecturers[id], *filter.LecturerID) {
			continue
		}
		if filter.StudentID != nil && !containsUint(m.students[id], *filter.StudentID) {
			continue
		}
		courses = append(courses, course)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })
	return courses, int64(len(courses)), nil
}

func (m *memoryCourseRepo) GetByID(_ context.Context, id uint) (models.Course, error) {
	course, ok := m.courses[id]
	if !ok {
		return models.Course{}, gorm.ErrRecordNotFound
	}
	return course, nil
}

func (m *memoryCourseRepo) GetByCode(_ context.Context, code string) (models.Course, error) {
	for _, course := range m.courses {
		if course.Code == code {
			return course, nil
		}
	}
	return models.Course{}, gorm.ErrRecordNotFound
}

func (m *memoryCourseRepo) Create(_ context.Context, course *models.Course, lecturerIDs []uint) error {
	for _, existing := range m.courses {
		if existing.Code == course.Code {
			return gorm.ErrDuplicatedKey
		}
	}
	for _, id := range lecturerIDs {
		if !m.knownLecturers[id] {
			return gorm.ErrRecordNotFound
		}
	}
	m.seq++
	course.ID = m.seq
	course.CreatedAt = time.Now()
	m.courses[course.ID] = *course
	m.lecturers[course.ID] = append([]uint(nil), lecturerIDs...)
	return nil
}

func (m *memoryCourseRepo) Update(_ context.Context, course *models.Course) error {
	if _, ok := m.courses[course.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.courses[course.ID] = *course
	return nil
}

func (m *memoryCourseRepo) UpdateWithLecturers(ctx context.Context, course *models.Course, lecturerIDs []uint) error {
	for _, id := range lecturerIDs {
		if !m.knownLecturers[id] {
			return gorm.ErrRecordNotFound
		}
	}
	if err := m.Update(ctx, course); err != nil {
		return err
	}
	m.lecturers[course.ID] = append([]uint(nil), lecturerIDs...)
	return nil
}

func (m *memoryCourseRepo) Delete(_ context.Context, id uint) error {
	if _, ok := m.courses[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	if m.hasRecords[id] {
		return gorm.ErrForeignKeyViolated
	}
	delete(m.courses, id)
	return nil
}

func (m *memoryCourseRepo) ReplaceLecturers(_ context.Context, courseID uint, lecturerIDs []uint) error {
	if _, ok := m.courses[courseID]; !ok {
		return gorm.ErrRecordNotFound
	}
	for _, id := range lecturerIDs {
		if !m.knownLecturers[id] {
			return gorm.ErrRecordNotFound
		}
	}
	m.lecturers[courseID] = append([]uint(nil), lecturerIDs...)
	return nil
}

func (m *memoryCourseRepo) IsLecturerAssigned(_ context.Context, courseID, lecturerID uint) (bool, error) {
	return containsUint(m.lecturers[courseID], lecturerID), nil
}

func (m *memoryCourseRepo) IsStudentEnrolled(_ context.Context, courseID, studentID uint) (bool, error) {
	return containsUint(m.students[courseID], studentID), nil
}

func containsUint(values []uint, target uint) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

type stubFileStore struct {
	uploads []string
	deleted []string
	failUp  bool
}

func (s *stubFileStore) Upload(_ context.Context, name string, _ io.Reader) (storage.StoredFile, error) {
	if s.failUp {
		return storage.StoredFile{}, gorm.ErrInvalidData
	}
	s.uploads = append(s.uploads, name)
	return storage.StoredFile{
		URL:      "https://files.example.com/" + name,
		PublicID: "stub/" + name,
	}, nil
}

func (s *stubFileStore) Delete(_ context.Context, publicID string) error {
	s.deleted = append(s.deleted, publicID)
	return nil
}
