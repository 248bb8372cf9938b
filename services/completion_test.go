package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Mustafaygtbs/CertificateManagement/logging"
	"github.com/Mustafaygtbs/CertificateManagement/models"
	"github.com/Mustafaygtbs/CertificateManagement/repositories/repotest"
	"github.com/Mustafaygtbs/CertificateManagement/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "https://certs.example.com/"

type completionFixture struct {
	store    *repotest.Store
	blobs    *storage.MemoryStore
	renderer *stubRenderer
	notifier *stubNotifier
	cache    *memCache
	events   *recordedEvents
	metrics  *countingMetrics
	orch     *CompletionOrchestrator
}

func newCompletionFixture() *completionFixture {
	f := &completionFixture{
		store:    repotest.NewStore(),
		blobs:    storage.NewMemoryStore(),
		renderer: &stubRenderer{},
		notifier: &stubNotifier{failFor: map[string]bool{}},
		cache:    newMemCache(),
		events:   &recordedEvents{},
		metrics:  &countingMetrics{},
	}
	generator := NewCertificateGenerator(f.blobs, f.renderer, time.Second)
	f.orch = NewCompletionOrchestrator(f.store, generator, f.blobs, f.notifier, CompletionOptions{
		BaseURL:     testBaseURL,
		Workers:     2,
		BlobTimeout: time.Second,
		Progress:    f.events,
		Metrics:     f.metrics,
		Cache:       f.cache,
	}, logging.Discard())
	return f
}

func TestCompleteCourseIssuesCertificatesToCompletedStudents(t *testing.T) {
	ctx := context.Background()
	f := newCompletionFixture()

	course := f.store.SeedCourse(models.Course{
		Name: "Go Fundamentals",
		Students: []models.Student{
			{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", HasCompletedCourse: true},
			{FirstName: "John", LastName: "Roe", Email: "john@example.com"},
		},
	})
	jane, john := course.Students[0], course.Students[1]

	report, err := f.orch.CompleteCourse(ctx, course.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Qualifying)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 0, report.Failed)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, jane.ID, report.Outcomes[0].StudentID)

	assert.True(t, f.store.Course(course.ID).IsCompleted)

	storedJane := f.store.Student(jane.ID)
	assert.True(t, strings.HasPrefix(storedJane.CertificateURL, storage.FolderCertificates+"/"))
	require.NotNil(t, storedJane.CertificateIssuedAt)
	assert.Equal(t, jane.CertificateAccessToken, storedJane.CertificateAccessToken)
	assert.Empty(t, f.store.Student(john.ID).CertificateURL)

	pdf, err := f.blobs.Download(ctx, storedJane.CertificateURL)
	require.NoError(t, err)
	assert.Contains(t, string(pdf), "Jane Doe")
	assert.Contains(t, string(pdf), "Go Fundamentals")

	require.Equal(t, 1, f.notifier.count())
	assert.Equal(t, sentEmail{
		To:   "jane@example.com",
		Name: "Jane Doe",
		Link: "https://certs.example.com/certificate/" + jane.CertificateAccessToken,
	}, f.notifier.sent[0])

	assert.Equal(t, 1, f.store.Commits())
	assert.Equal(t, 1, f.metrics.generated)
	assert.Equal(t, 1, f.metrics.emails)
	assert.Len(t, f.metrics.finished, 1)
	assert.Contains(t, f.cache.invalidated, jane.CertificateAccessToken)

	stages := f.events.stages()
	assert.Equal(t, 1, stages[StageGenerate])
	assert.Equal(t, 1, stages[StageCommit])
	assert.Equal(t, 1, stages[StageNotify])
	assert.Equal(t, 1, stages[StageDone])
}

func TestCompleteCourseUnknownCourse(t *testing.T) {
	f := newCompletionFixture()

	report, err := f.orch.CompleteCourse(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, report)
	assert.Equal(t, 0, f.store.Commits())
	assert.Equal(t, 0, f.blobs.Len())
	assert.Equal(t, 0, f.notifier.count())
}

func TestCompleteCourseWithoutQualifyingStudentsStillCompletes(t *testing.T) {
	f := newCompletionFixture()
	course := f.store.SeedCourse(models.Course{
		Name:     "Empty",
		Students: []models.Student{{FirstName: "A", Email: "a@example.com"}},
	})

	report, err := f.orch.CompleteCourse(context.Background(), course.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Qualifying)
	assert.True(t, f.store.Course(course.ID).IsCompleted)
	assert.Equal(t, 0, f.renderer.calls)
}

func TestCompleteCourseCommitFailureRemovesUploads(t *testing.T) {
	ctx := context.Background()
	f := newCompletionFixture()
	course := f.store.SeedCourse(models.Course{
		Name: "Databases",
		Students: []models.Student{
			{FirstName: "A", Email: "a@example.com", HasCompletedCourse: true},
			{FirstName: "B", Email: "b@example.com", HasCompletedCourse: true},
		},
	})
	f.store.FailCourseUpdates(errors.New("connection reset"))

	report, err := f.orch.CompleteCourse(ctx, course.ID)
	require.Error(t, err)
	assert.Nil(t, report)
	assert.Contains(t, err.Error(), "connection reset")

	assert.Equal(t, 2, f.renderer.calls)
	assert.Equal(t, 0, f.blobs.Len())
	assert.Equal(t, 1, f.store.Rollbacks())
	assert.False(t, f.store.Course(course.ID).IsCompleted)
	for _, s := range course.Students {
		assert.Empty(t, f.store.Student(s.ID).CertificateURL)
	}
	assert.Equal(t, 0, f.notifier.count())
}

func TestCompleteCourseCommitFailureOnStudentRollsBackCourse(t *testing.T) {
	f := newCompletionFixture()
	course := f.store.SeedCourse(models.Course{
		Name:     "Networks",
		Students: []models.Student{{FirstName: "A", Email: "a@example.com", HasCompletedCourse: true}},
	})
	f.store.FailStudentUpdates(func(*models.Student) error { return errors.New("deadlock detected") })

	_, err := f.orch.CompleteCourse(context.Background(), course.ID)
	require.Error(t, err)
	assert.False(t, f.store.Course(course.ID).IsCompleted)
	assert.Equal(t, 0, f.blobs.Len())
}

func TestCompleteCourseSkipsStudentDeletedMidRun(t *testing.T) {
	ctx := context.Background()
	f := newCompletionFixture()
	course := f.store.SeedCourse(models.Course{
		Name: "Compilers",
		Students: []models.Student{
			{FirstName: "Kept", Email: "kept@example.com", HasCompletedCourse: true},
			{FirstName: "Gone", Email: "gone@example.com", HasCompletedCourse: true},
		},
	})
	kept, gone := course.Students[0], course.Students[1]
	f.renderer.onRender = func(html string) {
		if strings.Contains(html, "Gone") {
			assert.NoError(t, f.store.Students().Delete(ctx, gone.ID))
		}
	}

	report, err := f.orch.CompleteCourse(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Qualifying)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)

	byID := map[uuid.UUID]StudentOutcome{}
	for _, o := range report.Outcomes {
		byID[o.StudentID] = o
	}
	assert.True(t, byID[kept.ID].Succeeded())
	assert.False(t, byID[gone.ID].Generated)
	assert.Contains(t, byID[gone.ID].Error, StageCommit)

	assert.True(t, f.store.Course(course.ID).IsCompleted)
	storedKept := f.store.Student(kept.ID)
	assert.NotEmpty(t, storedKept.CertificateURL)
	assert.Equal(t, 1, f.blobs.Len())
	require.Equal(t, 1, f.notifier.count())
	assert.Equal(t, "kept@example.com", f.notifier.sent[0].To)
	assert.Equal(t, 1, f.store.Commits())
	assert.Equal(t, 0, f.store.Rollbacks())
}

func TestCompleteCourseDeletedCourseIsNotFound(t *testing.T) {
	ctx := context.Background()
	f := newCompletionFixture()
	course := f.store.SeedCourse(models.Course{
		Name:     "Ephemeral",
		Students: []models.Student{{FirstName: "A", Email: "a@example.com", HasCompletedCourse: true}},
	})
	f.renderer.onRender = func(string) {
		assert.NoError(t, f.store.Courses().Delete(ctx, course.ID))
	}

	_, err := f.orch.CompleteCourse(ctx, course.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, f.blobs.Len())
	assert.Equal(t, 0, f.notifier.count())
}

func TestCompleteCourseCollectsPerStudentFailures(t *testing.T) {
	ctx := context.Background()
	f := newCompletionFixture()
	f.renderer.failFor = "Broken Render"
	f.notifier.failFor["bounce@example.com"] = true

	course := f.store.SeedCourse(models.Course{
		Name: "Distributed Systems",
		Students: []models.Student{
			{FirstName: "Good", LastName: "Student", Email: "good@example.com", HasCompletedCourse: true},
			{FirstName: "Broken", LastName: "Render", Email: "broken@example.com", HasCompletedCourse: true},
			{FirstName: "Bounced", LastName: "Mail", Email: "bounce@example.com", HasCompletedCourse: true},
		},
	})

	report, err := f.orch.CompleteCourse(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Qualifying)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 2, report.Failed)

	byID := map[uuid.UUID]StudentOutcome{}
	for _, o := range report.Outcomes {
		byID[o.StudentID] = o
	}
	good, broken, bounced := course.Students[0], course.Students[1], course.Students[2]

	assert.True(t, byID[good.ID].Succeeded())
	assert.False(t, byID[broken.ID].Generated)
	assert.True(t, strings.HasPrefix(byID[broken.ID].Error, StageGenerate))
	assert.True(t, byID[bounced.ID].Generated)
	assert.False(t, byID[bounced.ID].Notified)
	assert.True(t, strings.HasPrefix(byID[bounced.ID].Error, StageNotify))

	assert.True(t, f.store.Course(course.ID).IsCompleted)
	assert.NotEmpty(t, f.store.Student(good.ID).CertificateURL)
	assert.Empty(t, f.store.Student(broken.ID).CertificateURL)
	assert.NotEmpty(t, f.store.Student(bounced.ID).CertificateURL)

	assert.Equal(t, 2, f.metrics.generated)
	assert.Equal(t, 1, f.metrics.failed[StageGenerate])
	assert.Equal(t, 1, f.metrics.failed[StageNotify])
	assert.Equal(t, 1, f.metrics.emails)
}

func TestCompleteCourseTwiceRegeneratesAndResends(t *testing.T) {
	ctx := context.Background()
	f := newCompletionFixture()
	course := f.store.SeedCourse(models.Course{
		Name:     "Compilers",
		Students: []models.Student{{FirstName: "A", Email: "a@example.com", HasCompletedCourse: true}},
	})
	id := course.Students[0].ID

	_, err := f.orch.CompleteCourse(ctx, course.ID)
	require.NoError(t, err)
	first := f.store.Student(id).CertificateURL

	_, err = f.orch.CompleteCourse(ctx, course.ID)
	require.NoError(t, err)
	second := f.store.Student(id).CertificateURL

	assert.NotEqual(t, first, second)
	assert.Equal(t, 1, f.blobs.Len())
	_, err = f.blobs.Download(ctx, first)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, 2, f.notifier.count())
}

func TestCompleteCourseUsesCourseTemplate(t *testing.T) {
	ctx := context.Background()
	f := newCompletionFixture()

	tmpl, err := f.blobs.Upload(ctx, []byte("<html><body>{{StudentName}} finished {{CourseName}}</body></html>"), "text/html", storage.FolderTemplates)
	require.NoError(t, err)
	course := f.store.SeedCourse(models.Course{
		Name:                   "R&D <Basics>",
		CertificateTemplateURL: tmpl,
		Students:               []models.Student{{FirstName: "Zoë", Email: "z@example.com", HasCompletedCourse: true}},
	})

	_, err = f.orch.CompleteCourse(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, "<html><body>Zoë finished R&amp;D &lt;Basics&gt;</body></html>", f.renderer.last)
}

func TestCertificateLink(t *testing.T) {
	assert.Equal(t, "https://x.io/certificate/abc", CertificateLink("https://x.io/", "abc"))
	assert.Equal(t, "https://x.io/certificate/abc", CertificateLink("https://x.io", "abc"))
}
