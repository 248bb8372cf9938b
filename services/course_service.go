package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Mustafaygtbs/CertificateManagement/logging"
	"github.com/Mustafaygtbs/CertificateManagement/models"
	"github.com/Mustafaygtbs/CertificateManagement/repositories"
	"github.com/Mustafaygtbs/CertificateManagement/storage"
	"github.com/Mustafaygtbs/CertificateManagement/utils"
	"github.com/google/uuid"
)

const maxCourseNameLength = 200

type CourseInput struct {
	Name        string
	Description string
	StartDate   time.Time
	EndDate     time.Time
	IsCompleted bool
}

func (in CourseInput) validate() error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return fmt.Errorf("course name is required: %w", ErrInvalid)
	}
	if len(name) > maxCourseNameLength {
		return fmt.Errorf("course name exceeds %d characters: %w", maxCourseNameLength, ErrInvalid)
	}
	if !in.StartDate.IsZero() && !in.EndDate.IsZero() && in.EndDate.Before(in.StartDate) {
		return fmt.Errorf("course end date precedes start date: %w", ErrInvalid)
	}
	return nil
}

type CourseSummary struct {
	models.Course
	StudentCount int64 `json:"student_count"`
}

type CourseService struct {
	store      repositories.Store
	blobs      storage.Store
	completion *CompletionOrchestrator
	cache      VerificationCache
	log        *slog.Logger
}

func NewCourseService(store repositories.Store, blobs storage.Store, completion *CompletionOrchestrator, cache VerificationCache, log *slog.Logger) *CourseService {
	return &CourseService{store: store, blobs: blobs, completion: completion, cache: cache, log: log}
}

func (s *CourseService) GetAll(ctx context.Context) ([]CourseSummary, error) {
	const op = "services.course.GetAll"

	courses, err := s.store.Courses().GetAll(ctx)
	if err != nil {
		return nil, storeErr(op, err)
	}
	ids := make([]uuid.UUID, len(courses))
	for i := range courses {
		ids[i] = courses[i].ID
	}
	counts, err := s.store.Courses().CountStudents(ctx, ids)
	if err != nil {
		return nil, storeErr(op, err)
	}

	out := make([]CourseSummary, len(courses))
	for i := range courses {
		out[i] = CourseSummary{Course: courses[i], StudentCount: counts[courses[i].ID]}
	}
	return out, nil
}

func (s *CourseService) GetByID(ctx context.Context, id uuid.UUID) (*CourseSummary, error) {
	course, err := s.store.Courses().GetCourseWithStudents(ctx, id)
	if err != nil {
		return nil, storeErr("services.course.GetByID", err)
	}
	count := int64(len(course.Students))
	course.Students = nil
	return &CourseSummary{Course: *course, StudentCount: count}, nil
}

func (s *CourseService) Create(ctx context.Context, in CourseInput) (*models.Course, error) {
	const op = "services.course.Create"

	if err := in.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	course := &models.Course{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		IsCompleted: in.IsCompleted,
	}
	if err := s.store.Courses().Add(ctx, course); err != nil {
		return nil, storeErr(op, err)
	}
	s.log.Info("course_created", slog.String("course_id", course.ID.String()))
	return course, nil
}

// Update overwrites the editable fields. A completed course stays completed
// even when in.IsCompleted is false.
func (s *CourseService) Update(ctx context.Context, id uuid.UUID, in CourseInput) (*models.Course, error) {
	const op = "services.course.Update"

	if err := in.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	course, err := s.store.Courses().GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(op, err)
	}

	course.Name = strings.TrimSpace(in.Name)
	course.Description = in.Description
	course.StartDate = in.StartDate
	course.EndDate = in.EndDate
	course.IsCompleted = course.IsCompleted || in.IsCompleted

	if err := s.store.Courses().Update(ctx, course); err != nil {
		return nil, storeErr(op, err)
	}
	s.invalidateCourse(ctx, id)
	return course, nil
}

// Delete removes the course, its roster and, best effort, the stored
// documents that belonged to them.
func (s *CourseService) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "services.course.Delete"

	course, err := s.store.Courses().GetCourseWithStudents(ctx, id)
	if err != nil {
		return storeErr(op, err)
	}
	if err := s.store.Courses().Delete(ctx, id); err != nil {
		return storeErr(op, err)
	}

	tokens := make([]string, 0, len(course.Students))
	paths := make([]string, 0, len(course.Students)+1)
	for _, st := range course.Students {
		tokens = append(tokens, st.CertificateAccessToken)
		if st.HasCertificate() {
			paths = append(paths, st.CertificateURL)
		}
	}
	if course.CertificateTemplateURL != "" {
		paths = append(paths, course.CertificateTemplateURL)
	}
	s.invalidate(ctx, tokens)
	s.deleteBlobs(ctx, paths...)

	s.log.Info("course_deleted", slog.String("course_id", id.String()), slog.Int("students", len(course.Students)))
	return nil
}

// UploadCertificateTemplate stores an HTML template and points the course at
// it. The previous template is removed.
func (s *CourseService) UploadCertificateTemplate(ctx context.Context, id uuid.UUID, data []byte) (string, error) {
	const op = "services.course.UploadCertificateTemplate"

	if len(data) == 0 {
		return "", fmt.Errorf("%s: template file is empty: %w", op, ErrInvalid)
	}
	if !strings.HasPrefix(http.DetectContentType(data), "text/html") {
		return "", fmt.Errorf("%s: template must be an HTML document: %w", op, ErrInvalid)
	}

	course, err := s.store.Courses().GetByID(ctx, id)
	if err != nil {
		return "", storeErr(op, err)
	}

	path, err := s.blobs.Upload(ctx, data, utils.ContentTypeHTML, storage.FolderTemplates)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	previous := course.CertificateTemplateURL
	course.CertificateTemplateURL = path
	if err := s.store.Courses().Update(ctx, course); err != nil {
		s.deleteBlobs(ctx, path)
		return "", storeErr(op, err)
	}
	if previous != "" {
		s.deleteBlobs(ctx, previous)
	}
	return path, nil
}

func (s *CourseService) CompleteCourse(ctx context.Context, id uuid.UUID) (*CompletionReport, error) {
	return s.completion.CompleteCourse(ctx, id)
}

func (s *CourseService) invalidateCourse(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	students, err := s.store.Students().GetStudentsByCourse(ctx, id)
	if err != nil {
		s.log.Warn("verification_cache_lookup_failed", logging.Err(err))
		return
	}
	tokens := make([]string, len(students))
	for i := range students {
		tokens[i] = students[i].CertificateAccessToken
	}
	s.invalidate(ctx, tokens)
}

func (s *CourseService) invalidate(ctx context.Context, tokens []string) {
	if s.cache == nil || len(tokens) == 0 {
		return
	}
	if err := s.cache.Invalidate(ctx, tokens...); err != nil {
		s.log.Warn("verification_cache_invalidate_failed", logging.Err(err))
	}
}

func (s *CourseService) deleteBlobs(ctx context.Context, paths ...string) {
	ctx = context.WithoutCancel(ctx)
	for _, p := range paths {
		if err := s.blobs.Delete(ctx, p); err != nil {
			s.log.Warn("blob_delete_failed", slog.String("path", p), logging.Err(err))
		}
	}
}
