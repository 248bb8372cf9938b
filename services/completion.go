package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Mustafaygtbs/CertificateManagement/logging"
	"github.com/Mustafaygtbs/CertificateManagement/models"
	"github.com/Mustafaygtbs/CertificateManagement/repositories"
	"github.com/Mustafaygtbs/CertificateManagement/storage"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Stages reported in CompletionEvent.
const (
	StageGenerate = "generate"
	StageCommit   = "commit"
	StageNotify   = "notify"
	StageDone     = "done"
)

type Notifier interface {
	SendCertificateEmail(ctx context.Context, to, displayName, link string) error
}

type CompletionEvent struct {
	CourseID  string `json:"course_id"`
	StudentID string `json:"student_id,omitempty"`
	Stage     string `json:"stage"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
}

type ProgressPublisher interface {
	Publish(event CompletionEvent)
}

type CompletionMetrics interface {
	CertificateGenerated()
	CertificateFailed(stage string)
	EmailSent()
	CompletionFinished(d time.Duration)
}

type StudentOutcome struct {
	StudentID uuid.UUID `json:"student_id"`
	Email     string    `json:"email"`
	Generated bool      `json:"generated"`
	Notified  bool      `json:"notified"`
	Error     string    `json:"error,omitempty"`
}

func (o StudentOutcome) Succeeded() bool {
	return o.Generated && o.Notified
}

type CompletionReport struct {
	CourseID   uuid.UUID        `json:"course_id"`
	Qualifying int              `json:"qualifying"`
	Succeeded  int              `json:"succeeded"`
	Failed     int              `json:"failed"`
	Outcomes   []StudentOutcome `json:"outcomes"`
}

type CompletionOptions struct {
	BaseURL     string
	Workers     int
	BlobTimeout time.Duration
	Progress    ProgressPublisher
	Metrics     CompletionMetrics
	Cache       VerificationCache
}

// CompletionOrchestrator marks a course complete and issues certificates to
// every student that individually completed it.
//
// Work runs in three phases. Certificates are generated through a bounded
// worker pool; the course flag and every generated certificate path are then
// committed in one transaction; emails go out only for committed
// certificates. A failure for one student never aborts the others. When the
// commit fails the freshly uploaded documents are removed and the call fails.
type CompletionOrchestrator struct {
	store     repositories.Store
	generator DocumentGenerator
	blobs     storage.Store
	notifier  Notifier
	opts      CompletionOptions
	now       func() time.Time
	log       *slog.Logger
}

func NewCompletionOrchestrator(
	store repositories.Store,
	generator DocumentGenerator,
	blobs storage.Store,
	notifier Notifier,
	opts CompletionOptions,
	log *slog.Logger,
) *CompletionOrchestrator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &CompletionOrchestrator{
		store:     store,
		generator: generator,
		blobs:     blobs,
		notifier:  notifier,
		opts:      opts,
		now:       time.Now,
		log:       log,
	}
}

var errStudentGone = fmt.Errorf("student was deleted: %w", ErrNotFound)

type studentJob struct {
	student  *models.Student
	previous string
	path     string
	// dropped is set when the student row vanished before the commit; the
	// generated document is then orphaned.
	dropped  bool
	outcome  StudentOutcome
}

// CompleteCourse is safe to call again on a completed course. Every
// qualifying student then receives a freshly generated certificate and a new
// email.
func (o *CompletionOrchestrator) CompleteCourse(ctx context.Context, courseID uuid.UUID) (*CompletionReport, error) {
	const op = "services.completion.CompleteCourse"
	started := o.now()

	course, err := o.store.Courses().GetCourseWithStudents(ctx, courseID)
	if err != nil {
		return nil, storeErr(op, err)
	}

	log := o.log.With(slog.String("course_id", courseID.String()))
	completedAt := o.now().UTC()

	qualifying := course.QualifyingStudents()
	jobs := make([]*studentJob, len(qualifying))
	for i, s := range qualifying {
		jobs[i] = &studentJob{
			student:  s,
			previous: s.CertificateURL,
			outcome:  StudentOutcome{StudentID: s.ID, Email: s.Email},
		}
	}

	o.generateAll(ctx, course, jobs, completedAt)

	if err := o.commit(ctx, course, jobs, completedAt); err != nil {
		o.discardGenerated(ctx, jobs)
		o.publish(CompletionEvent{CourseID: courseID.String(), Stage: StageCommit, Error: err.Error()})
		log.Error("course_completion_commit_failed", logging.Err(err))
		return nil, storeErr(op+": commit", err)
	}
	o.publish(CompletionEvent{CourseID: courseID.String(), Stage: StageCommit, OK: true})

	o.discardDropped(ctx, course, jobs)
	o.discardSuperseded(ctx, jobs)
	o.invalidate(ctx, qualifying)
	o.notifyAll(ctx, course, jobs)

	report := &CompletionReport{CourseID: courseID, Qualifying: len(jobs), Outcomes: make([]StudentOutcome, 0, len(jobs))}
	for _, j := range jobs {
		if j.outcome.Succeeded() {
			report.Succeeded++
		} else {
			report.Failed++
		}
		report.Outcomes = append(report.Outcomes, j.outcome)
	}

	o.publish(CompletionEvent{CourseID: courseID.String(), Stage: StageDone, OK: report.Failed == 0})
	if o.opts.Metrics != nil {
		o.opts.Metrics.CompletionFinished(o.now().Sub(started))
	}
	log.Info("course_completed",
		slog.Int("qualifying", report.Qualifying),
		slog.Int("succeeded", report.Succeeded),
		slog.Int("failed", report.Failed),
	)
	return report, nil
}

func (o *CompletionOrchestrator) generateAll(ctx context.Context, course *models.Course, jobs []*studentJob, completedAt time.Time) {
	g := new(errgroup.Group)
	g.SetLimit(o.opts.Workers)

	for _, j := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				o.fail(course, j, StageGenerate, err)
				return nil
			}
			subs := CertificateSubstitutions(j.student, course, completedAt)
			path, err := o.generator.Generate(ctx, course.CertificateTemplateURL, subs)
			if err != nil {
				o.fail(course, j, StageGenerate, err)
				return nil
			}
			j.path = path
			j.outcome.Generated = true
			if o.opts.Metrics != nil {
				o.opts.Metrics.CertificateGenerated()
			}
			o.publish(CompletionEvent{CourseID: course.ID.String(), StudentID: j.student.ID.String(), Stage: StageGenerate, OK: true})
			return nil
		})
	}
	_ = g.Wait()
}

// commit fails only for course-level or infrastructure errors. A student
// deleted since the course was loaded is reported as a per-student failure.
func (o *CompletionOrchestrator) commit(ctx context.Context, course *models.Course, jobs []*studentJob, completedAt time.Time) error {
	return o.store.WithTransaction(ctx, func(tx repositories.Store) error {
		for _, j := range jobs {
			j.dropped = false
		}
		wasCompleted := course.IsCompleted
		course.IsCompleted = true
		if err := tx.Courses().Update(ctx, course); err != nil {
			course.IsCompleted = wasCompleted
			return fmt.Errorf("update course: %w", err)
		}
		for _, j := range jobs {
			if !j.outcome.Generated {
				continue
			}
			prevIssuedAt := j.student.CertificateIssuedAt
			j.student.CertificateURL = j.path
			issuedAt := completedAt
			j.student.CertificateIssuedAt = &issuedAt
			err := tx.Students().Update(ctx, j.student)
			if errors.Is(err, repositories.ErrNotFound) {
				j.student.CertificateURL = j.previous
				j.student.CertificateIssuedAt = prevIssuedAt
				j.dropped = true
				continue
			}
			if err != nil {
				return fmt.Errorf("update student %s: %w", j.student.ID, err)
			}
		}
		return nil
	})
}

func (o *CompletionOrchestrator) notifyAll(ctx context.Context, course *models.Course, jobs []*studentJob) {
	g := new(errgroup.Group)
	g.SetLimit(o.opts.Workers)

	for _, j := range jobs {
		if !j.outcome.Generated {
			continue
		}
		g.Go(func() error {
			link := CertificateLink(o.opts.BaseURL, j.student.CertificateAccessToken)
			if err := o.notifier.SendCertificateEmail(ctx, j.student.Email, j.student.FullName(), link); err != nil {
				o.fail(course, j, StageNotify, err)
				return nil
			}
			j.outcome.Notified = true
			if o.opts.Metrics != nil {
				o.opts.Metrics.EmailSent()
			}
			o.publish(CompletionEvent{CourseID: course.ID.String(), StudentID: j.student.ID.String(), Stage: StageNotify, OK: true})
			return nil
		})
	}
	_ = g.Wait()
}

func (o *CompletionOrchestrator) fail(course *models.Course, j *studentJob, stage string, err error) {
	j.outcome.Error = stage + ": " + err.Error()
	if o.opts.Metrics != nil {
		o.opts.Metrics.CertificateFailed(stage)
	}
	o.publish(CompletionEvent{
		CourseID:  course.ID.String(),
		StudentID: j.student.ID.String(),
		Stage:     stage,
		Error:     err.Error(),
	})
	o.log.Warn("certificate_step_failed",
		slog.String("course_id", course.ID.String()),
		slog.String("student_id", j.student.ID.String()),
		slog.String("stage", stage),
		logging.Err(err),
	)
}

// discardGenerated removes documents uploaded by a completion whose commit
// failed.
func (o *CompletionOrchestrator) discardGenerated(ctx context.Context, jobs []*studentJob) {
	for _, j := range jobs {
		if j.outcome.Generated {
			o.deleteBlob(ctx, j.path)
		}
	}
}

// discardDropped removes documents generated for students deleted
// mid-completion and records the failure on their outcome.
func (o *CompletionOrchestrator) discardDropped(ctx context.Context, course *models.Course, jobs []*studentJob) {
	for _, j := range jobs {
		if !j.dropped {
			continue
		}
		j.outcome.Generated = false
		o.fail(course, j, StageCommit, errStudentGone)
		o.deleteBlob(ctx, j.path)
	}
}

// discardSuperseded removes certificates replaced by this completion.
func (o *CompletionOrchestrator) discardSuperseded(ctx context.Context, jobs []*studentJob) {
	for _, j := range jobs {
		if j.outcome.Generated && j.previous != "" && j.previous != j.path {
			o.deleteBlob(ctx, j.previous)
		}
	}
}

func (o *CompletionOrchestrator) deleteBlob(ctx context.Context, path string) {
	ctx, cancel := withTimeout(context.WithoutCancel(ctx), o.opts.BlobTimeout)
	defer cancel()
	if err := o.blobs.Delete(ctx, path); err != nil {
		o.log.Warn("certificate_blob_cleanup_failed", slog.String("path", path), logging.Err(err))
	}
}

func (o *CompletionOrchestrator) invalidate(ctx context.Context, students []*models.Student) {
	if o.opts.Cache == nil || len(students) == 0 {
		return
	}
	tokens := make([]string, 0, len(students))
	for _, s := range students {
		tokens = append(tokens, s.CertificateAccessToken)
	}
	if err := o.opts.Cache.Invalidate(ctx, tokens...); err != nil {
		o.log.Warn("verification_cache_invalidate_failed", logging.Err(err))
	}
}

func (o *CompletionOrchestrator) publish(ev CompletionEvent) {
	if o.opts.Progress != nil {
		o.opts.Progress.Publish(ev)
	}
}

// CertificateLink is the public retrieval link mailed to a student.
func CertificateLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/certificate/" + token
}
