// Package repositories is the persistence gateway over courses, students and
// users.
package repositories

import (
	"context"
	"errors"

	"github.com/Mustafaygtbs/CertificateManagement/models"
	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Store groups the entity repositories. Repositories obtained inside
// WithTransaction share one database transaction that commits when fn returns
// nil.
type Store interface {
	Courses() CourseRepository
	Students() StudentRepository
	Users() UserRepository

	WithTransaction(ctx context.Context, fn func(Store) error) error
	Ping(ctx context.Context) error
}

type CourseFilter struct {
	Completed    *bool
	NameContains string
}

type CourseRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Course, error)
	GetAll(ctx context.Context) ([]models.Course, error)
	Find(ctx context.Context, filter CourseFilter) ([]models.Course, error)
	GetCourseWithStudents(ctx context.Context, id uuid.UUID) (*models.Course, error)
	// CountStudents returns the roster size for each of the given courses.
	// Courses without students are absent from the map.
	CountStudents(ctx context.Context, courseIDs []uuid.UUID) (map[uuid.UUID]int64, error)
	Add(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type StudentFilter struct {
	CourseID        *uuid.UUID
	HasCompleted    *bool
	CourseCompleted *bool
	// WithoutCertificate keeps only students whose certificate was never
	// generated.
	WithoutCertificate bool
}

type StudentRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Student, error)
	GetAll(ctx context.Context) ([]models.Student, error)
	Find(ctx context.Context, filter StudentFilter) ([]models.Student, error)
	GetStudentsByCourse(ctx context.Context, courseID uuid.UUID) ([]models.Student, error)
	// GetStudentByToken matches the access token exactly.
	GetStudentByToken(ctx context.Context, token string) (*models.Student, error)
	Add(ctx context.Context, student *models.Student) error
	AddMany(ctx context.Context, students []*models.Student) error
	// Update writes every mutable column. The access token is never written.
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Add(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
}
