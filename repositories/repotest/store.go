// Package repotest provides an in-memory repositories.Store for tests.
package repotest

import (
	"context"
	"strings"
	"sync"

	"github.com/Mustafaygtbs/CertificateManagement/models"
	"github.com/Mustafaygtbs/CertificateManagement/repositories"
	"github.com/google/uuid"
)

// Store is an in-memory repositories.Store. Transactions snapshot the maps
// and restore them when fn fails.
type Store struct {
	mu       sync.Mutex
	courses  map[uuid.UUID]models.Course
	students map[uuid.UUID]models.Student
	users    map[uuid.UUID]models.User

	courseUpdateErr  error
	studentUpdateErr func(s *models.Student) error
	commits          int
	rollbacks        int
}

func NewStore() *Store {
	return &Store{
		courses:  map[uuid.UUID]models.Course{},
		students: map[uuid.UUID]models.Student{},
		users:    map[uuid.UUID]models.User{},
	}
}

func (m *Store) Courses() repositories.CourseRepository   { return courseRepo{m} }
func (m *Store) Students() repositories.StudentRepository { return studentRepo{m} }
func (m *Store) Users() repositories.UserRepository       { return userRepo{m} }
func (m *Store) Ping(context.Context) error               { return nil }

func (m *Store) WithTransaction(ctx context.Context, fn func(repositories.Store) error) error {
	m.mu.Lock()
	courses := cloneMap(m.courses)
	students := cloneMap(m.students)
	users := cloneMap(m.users)
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.courses, m.students, m.users = courses, students, users
		m.rollbacks++
		m.mu.Unlock()
		return err
	}
	m.mu.Lock()
	m.commits++
	m.mu.Unlock()
	return nil
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// SeedCourse stores the course and its students, assigning ids and tokens
// where missing.
func (m *Store) SeedCourse(c models.Course) models.Course {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	for i := range c.Students {
		st := c.Students[i]
		if st.ID == uuid.Nil {
			st.ID = uuid.New()
		}
		if st.CertificateAccessToken == "" {
			st.CertificateAccessToken = uuid.NewString()
		}
		st.CourseID = c.ID
		st.Course = nil
		m.students[st.ID] = st
		c.Students[i] = st
	}
	stored := c
	stored.Students = nil
	m.courses[c.ID] = stored
	return c
}

// FailCourseUpdates makes every course update return err. Nil restores
// normal behaviour.
func (m *Store) FailCourseUpdates(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.courseUpdateErr = err
}

// FailStudentUpdates consults fn before every student update and returns its
// error when non-nil.
func (m *Store) FailStudentUpdates(fn func(s *models.Student) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.studentUpdateErr = fn
}

func (m *Store) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}

func (m *Store) Rollbacks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rollbacks
}

func (m *Store) UserCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

func (m *Store) StudentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.students)
}

// Student returns the stored row without its course.
func (m *Store) Student(id uuid.UUID) models.Student {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.students[id]
}

func (m *Store) Course(id uuid.UUID) models.Course {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.courses[id]
}

// withCourse must be called with mu held.
func (m *Store) withCourse(s models.Student) models.Student {
	if c, ok := m.courses[s.CourseID]; ok {
		s.Course = &c
	}
	return s
}

type courseRepo struct{ m *Store }

func (r courseRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Course, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.courses[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &c, nil
}

func (r courseRepo) GetAll(ctx context.Context) ([]models.Course, error) {
	return r.Find(ctx, repositories.CourseFilter{})
}

func (r courseRepo) Find(_ context.Context, f repositories.CourseFilter) ([]models.Course, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []models.Course
	for _, c := range r.m.courses {
		if f.Completed != nil && c.IsCompleted != *f.Completed {
			continue
		}
		if f.NameContains != "" && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(f.NameContains)) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r courseRepo) GetCourseWithStudents(_ context.Context, id uuid.UUID) (*models.Course, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.courses[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	for _, s := range r.m.students {
		if s.CourseID == id {
			c.Students = append(c.Students, s)
		}
	}
	return &c, nil
}

func (r courseRepo) CountStudents(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	want := map[uuid.UUID]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := map[uuid.UUID]int64{}
	for _, s := range r.m.students {
		if want[s.CourseID] {
			out[s.CourseID]++
		}
	}
	return out, nil
}

func (r courseRepo) Add(_ context.Context, c *models.Course) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	stored := *c
	stored.Students = nil
	r.m.courses[c.ID] = stored
	return nil
}

func (r courseRepo) Update(_ context.Context, c *models.Course) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.courseUpdateErr != nil {
		return r.m.courseUpdateErr
	}
	if _, ok := r.m.courses[c.ID]; !ok {
		return repositories.ErrNotFound
	}
	stored := *c
	stored.Students = nil
	r.m.courses[c.ID] = stored
	return nil
}

func (r courseRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.courses[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.m.courses, id)
	for sid, s := range r.m.students {
		if s.CourseID == id {
			delete(r.m.students, sid)
		}
	}
	return nil
}

type studentRepo struct{ m *Store }

func (r studentRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Student, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.students[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	s = r.m.withCourse(s)
	return &s, nil
}

func (r studentRepo) GetAll(ctx context.Context) ([]models.Student, error) {
	return r.Find(ctx, repositories.StudentFilter{})
}

func (r studentRepo) Find(_ context.Context, f repositories.StudentFilter) ([]models.Student, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []models.Student
	for _, s := range r.m.students {
		if f.CourseID != nil && s.CourseID != *f.CourseID {
			continue
		}
		if f.HasCompleted != nil && s.HasCompletedCourse != *f.HasCompleted {
			continue
		}
		if f.CourseCompleted != nil && r.m.courses[s.CourseID].IsCompleted != *f.CourseCompleted {
			continue
		}
		if f.WithoutCertificate && s.CertificateURL != "" {
			continue
		}
		out = append(out, r.m.withCourse(s))
	}
	return out, nil
}

func (r studentRepo) GetStudentsByCourse(ctx context.Context, courseID uuid.UUID) ([]models.Student, error) {
	return r.Find(ctx, repositories.StudentFilter{CourseID: &courseID})
}

func (r studentRepo) GetStudentByToken(_ context.Context, token string) (*models.Student, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if token == "" {
		return nil, repositories.ErrNotFound
	}
	for _, s := range r.m.students {
		if s.CertificateAccessToken == token {
			s = r.m.withCourse(s)
			return &s, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r studentRepo) Add(_ context.Context, s *models.Student) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.add(s)
}

// add must be called with mu held.
func (r studentRepo) add(s *models.Student) error {
	for _, existing := range r.m.students {
		if existing.CertificateAccessToken == s.CertificateAccessToken {
			return repositories.ErrDuplicate
		}
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	stored := *s
	stored.Course = nil
	r.m.students[s.ID] = stored
	return nil
}

func (r studentRepo) AddMany(_ context.Context, students []*models.Student) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, s := range students {
		if err := r.add(s); err != nil {
			return err
		}
	}
	return nil
}

func (r studentRepo) Update(_ context.Context, s *models.Student) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.studentUpdateErr != nil {
		if err := r.m.studentUpdateErr(s); err != nil {
			return err
		}
	}
	existing, ok := r.m.students[s.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	stored := *s
	stored.Course = nil
	stored.CertificateAccessToken = existing.CertificateAccessToken
	r.m.students[s.ID] = stored
	return nil
}

func (r studentRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.students[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.m.students, id)
	return nil
}

type userRepo struct{ m *Store }

func (r userRepo) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &u, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r userRepo) Add(_ context.Context, u *models.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.users {
		if existing.Email == u.Email {
			return repositories.ErrDuplicate
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	r.m.users[u.ID] = *u
	return nil
}

func (r userRepo) Update(_ context.Context, u *models.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.users[u.ID]; !ok {
		return repositories.ErrNotFound
	}
	r.m.users[u.ID] = *u
	return nil
}
