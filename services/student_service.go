package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Mustafaygtbs/CertificateManagement/logging"
	"github.com/Mustafaygtbs/CertificateManagement/models"
	"github.com/Mustafaygtbs/CertificateManagement/repositories"
	"github.com/Mustafaygtbs/CertificateManagement/storage"
	"github.com/Mustafaygtbs/CertificateManagement/utils"
	"github.com/google/uuid"
)

const maxEmailLength = 100

type StudentInput struct {
	FirstName          string
	LastName           string
	Email              string
	PhoneNumber        string
	HasCompletedCourse bool
	CourseID           uuid.UUID
}

func (in StudentInput) validate() error {
	if strings.TrimSpace(in.FirstName) == "" {
		return fmt.Errorf("first name is required: %w", ErrInvalid)
	}
	email := strings.TrimSpace(in.Email)
	if email == "" {
		return fmt.Errorf("email is required: %w", ErrInvalid)
	}
	if len(email) > maxEmailLength {
		return fmt.Errorf("email exceeds %d characters: %w", maxEmailLength, ErrInvalid)
	}
	if in.CourseID == uuid.Nil {
		return fmt.Errorf("course id is required: %w", ErrInvalid)
	}
	return nil
}

type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

type StudentService struct {
	store     repositories.Store
	generator DocumentGenerator
	blobs     storage.Store
	notifier  Notifier
	cache     VerificationCache
	baseURL   string
	now       func() time.Time
	log       *slog.Logger
}

func NewStudentService(
	store repositories.Store,
	generator DocumentGenerator,
	blobs storage.Store,
	notifier Notifier,
	cache VerificationCache,
	baseURL string,
	log *slog.Logger,
) *StudentService {
	return &StudentService{
		store:     store,
		generator: generator,
		blobs:     blobs,
		notifier:  notifier,
		cache:     cache,
		baseURL:   baseURL,
		now:       time.Now,
		log:       log,
	}
}

func (s *StudentService) GetByCourse(ctx context.Context, courseID uuid.UUID) ([]models.Student, error) {
	const op = "services.student.GetByCourse"

	if _, err := s.store.Courses().GetByID(ctx, courseID); err != nil {
		return nil, storeErr(op, err)
	}
	students, err := s.store.Students().GetStudentsByCourse(ctx, courseID)
	if err != nil {
		return nil, storeErr(op, err)
	}
	return students, nil
}

func (s *StudentService) GetByID(ctx context.Context, id uuid.UUID) (*models.Student, error) {
	student, err := s.store.Students().GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("services.student.GetByID", err)
	}
	return student, nil
}

func (s *StudentService) GetByToken(ctx context.Context, token string) (*models.Student, error) {
	student, err := s.store.Students().GetStudentByToken(ctx, token)
	if err != nil {
		return nil, storeErr("services.student.GetByToken", err)
	}
	return student, nil
}

// Create adds a student to a course and assigns a fresh access token.
func (s *StudentService) Create(ctx context.Context, in StudentInput) (*models.Student, error) {
	const op = "services.student.Create"

	if err := in.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := s.store.Courses().GetByID(ctx, in.CourseID); err != nil {
		return nil, storeErr(op, err)
	}

	token, err := s.newToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	student := &models.Student{
		FirstName:              strings.TrimSpace(in.FirstName),
		LastName:               strings.TrimSpace(in.LastName),
		Email:                  strings.TrimSpace(in.Email),
		PhoneNumber:            strings.TrimSpace(in.PhoneNumber),
		HasCompletedCourse:     in.HasCompletedCourse,
		CourseID:               in.CourseID,
		CertificateAccessToken: token,
	}
	if err := s.store.Students().Add(ctx, student); err != nil {
		return nil, storeErr(op, err)
	}
	return student, nil
}

func (s *StudentService) Update(ctx context.Context, id uuid.UUID, in StudentInput) (*models.Student, error) {
	const op = "services.student.Update"

	if err := in.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	student, err := s.store.Students().GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(op, err)
	}
	if in.CourseID != student.CourseID {
		if _, err := s.store.Courses().GetByID(ctx, in.CourseID); err != nil {
			return nil, storeErr(op, err)
		}
	}

	student.FirstName = strings.TrimSpace(in.FirstName)
	student.LastName = strings.TrimSpace(in.LastName)
	student.Email = strings.TrimSpace(in.Email)
	student.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	student.HasCompletedCourse = in.HasCompletedCourse
	student.CourseID = in.CourseID

	if err := s.store.Students().Update(ctx, student); err != nil {
		return nil, storeErr(op, err)
	}
	s.invalidate(ctx, student.CertificateAccessToken)
	return student, nil
}

func (s *StudentService) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "services.student.Delete"

	student, err := s.store.Students().GetByID(ctx, id)
	if err != nil {
		return storeErr(op, err)
	}
	if err := s.store.Students().Delete(ctx, id); err != nil {
		return storeErr(op, err)
	}
	s.invalidate(ctx, student.CertificateAccessToken)
	if student.HasCertificate() {
		s.deleteBlob(ctx, student.CertificateURL)
	}
	return nil
}

// MarkCompleted flags the student as having completed their course. It does
// not generate a certificate.
func (s *StudentService) MarkCompleted(ctx context.Context, id uuid.UUID) (*models.Student, error) {
	const op = "services.student.MarkCompleted"

	student, err := s.store.Students().GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(op, err)
	}
	if student.HasCompletedCourse {
		return student, nil
	}
	student.HasCompletedCourse = true
	if err := s.store.Students().Update(ctx, student); err != nil {
		return nil, storeErr(op, err)
	}
	s.invalidate(ctx, student.CertificateAccessToken)
	return student, nil
}

// SendCertificateEmail mails the certificate link to one student. A missing
// certificate is generated and stored first; an existing one is reused. The
// email is sent on every call.
func (s *StudentService) SendCertificateEmail(ctx context.Context, id uuid.UUID) error {
	const op = "services.student.SendCertificateEmail"

	student, err := s.store.Students().GetByID(ctx, id)
	if err != nil {
		return storeErr(op, err)
	}
	if !student.HasCompletedCourse {
		return fmt.Errorf("%s: %w", op, ErrNotCompleted)
	}

	if !student.HasCertificate() {
		if err := s.issue(ctx, student); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	link := CertificateLink(s.baseURL, student.CertificateAccessToken)
	if err := s.notifier.SendCertificateEmail(ctx, student.Email, student.FullName(), link); err != nil {
		return fmt.Errorf("%s: send email: %w", op, err)
	}
	s.log.Info("certificate_email_sent", slog.String("student_id", student.ID.String()), slog.String("to", student.Email))
	return nil
}

// IssuePendingCertificates sends certificates to students who completed a
// completed course but never received one. It returns how many were sent.
func (s *StudentService) IssuePendingCertificates(ctx context.Context) (int, error) {
	const op = "services.student.IssuePendingCertificates"

	yes := true
	pending, err := s.store.Students().Find(ctx, repositories.StudentFilter{
		HasCompleted:       &yes,
		CourseCompleted:    &yes,
		WithoutCertificate: true,
	})
	if err != nil {
		return 0, storeErr(op, err)
	}

	var (
		sent int
		errs []error
	)
	for i := range pending {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.SendCertificateEmail(ctx, pending[i].ID); err != nil {
			errs = append(errs, fmt.Errorf("student %s: %w", pending[i].ID, err))
			continue
		}
		sent++
	}
	if len(errs) > 0 {
		return sent, fmt.Errorf("%s: %w", op, errors.Join(errs...))
	}
	return sent, nil
}

// ImportFromExcel adds every usable row of the workbook to the course in one
// transaction.
func (s *StudentService) ImportFromExcel(ctx context.Context, courseID uuid.UUID, r io.Reader) (*ImportResult, error) {
	const op = "services.student.ImportFromExcel"

	if _, err := s.store.Courses().GetByID(ctx, courseID); err != nil {
		return nil, storeErr(op, err)
	}
	rows, skipped, err := ParseStudentSheet(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", op, err, ErrInvalid)
	}

	students := make([]*models.Student, 0, len(rows))
	for _, row := range rows {
		if len(row.Email) > maxEmailLength {
			skipped++
			continue
		}
		token, err := s.newToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		students = append(students, &models.Student{
			FirstName:              row.FirstName,
			LastName:               row.LastName,
			Email:                  row.Email,
			PhoneNumber:            row.PhoneNumber,
			HasCompletedCourse:     row.HasCompleted,
			CourseID:               courseID,
			CertificateAccessToken: token,
		})
	}

	if len(students) > 0 {
		err := s.store.WithTransaction(ctx, func(tx repositories.Store) error {
			return tx.Students().AddMany(ctx, students)
		})
		if err != nil {
			return nil, storeErr(op, err)
		}
	}

	s.log.Info("students_imported",
		slog.String("course_id", courseID.String()),
		slog.Int("imported", len(students)),
		slog.Int("skipped", skipped),
	)
	return &ImportResult{Imported: len(students), Skipped: skipped}, nil
}

// ExportToExcel returns the course roster as an xlsx workbook and a file name
// for it.
func (s *StudentService) ExportToExcel(ctx context.Context, courseID uuid.UUID) ([]byte, string, error) {
	const op = "services.student.ExportToExcel"

	course, err := s.store.Courses().GetCourseWithStudents(ctx, courseID)
	if err != nil {
		return nil, "", storeErr(op, err)
	}
	data, err := BuildStudentSheet(course.Students, course.Name)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	name := fmt.Sprintf("students-%s%s", s.now().UTC().Format("20060102"), utils.ExtensionFor(utils.ContentTypeXLSX))
	return data, name, nil
}

// issue generates and persists a certificate for student. The uploaded
// document is removed again when the update fails.
func (s *StudentService) issue(ctx context.Context, student *models.Student) error {
	course := student.Course
	if course == nil {
		c, err := s.store.Courses().GetByID(ctx, student.CourseID)
		if err != nil {
			return storeErr("load course", err)
		}
		course = c
	}

	issuedAt := s.now().UTC()
	path, err := s.generator.Generate(ctx, course.CertificateTemplateURL, CertificateSubstitutions(student, course, issuedAt))
	if err != nil {
		return err
	}

	student.CertificateURL = path
	student.CertificateIssuedAt = &issuedAt
	if err := s.store.Students().Update(ctx, student); err != nil {
		student.CertificateURL = ""
		student.CertificateIssuedAt = nil
		s.deleteBlob(ctx, path)
		return storeErr("save certificate", err)
	}
	s.invalidate(ctx, student.CertificateAccessToken)
	return nil
}

func (s *StudentService) newToken(ctx context.Context) (string, error) {
	return utils.GenerateUniqueAccessToken(func(token string) (bool, error) {
		_, err := s.store.Students().GetStudentByToken(ctx, token)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, repositories.ErrNotFound):
			return false, nil
		default:
			return false, err
		}
	})
}

func (s *StudentService) invalidate(ctx context.Context, token string) {
	if s.cache == nil || token == "" {
		return
	}
	if err := s.cache.Invalidate(ctx, token); err != nil {
		s.log.Warn("verification_cache_invalidate_failed", logging.Err(err))
	}
}

func (s *StudentService) deleteBlob(ctx context.Context, path string) {
	if err := s.blobs.Delete(context.WithoutCancel(ctx), path); err != nil {
		s.log.Warn("blob_delete_failed", slog.String("path", path), logging.Err(err))
	}
}
