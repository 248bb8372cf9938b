package services

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Mustafaygtbs/CertificateManagement/logging"
	"github.com/Mustafaygtbs/CertificateManagement/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newStudentFixture() (*completionFixture, *StudentService) {
	f := newCompletionFixture()
	generator := NewCertificateGenerator(f.blobs, f.renderer, time.Second)
	svc := NewStudentService(f.store, generator, f.blobs, f.notifier, f.cache, testBaseURL, logging.Discard())
	svc.now = func() time.Time { return time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC) }
	return f, svc
}

func TestStudentCreateAssignsToken(t *testing.T) {
	ctx := context.Background()
	f, svc := newStudentFixture()
	course := f.store.SeedCourse(models.Course{Name: "Go"})

	a, err := svc.Create(ctx, StudentInput{FirstName: "Ada", Email: "ada@example.com", CourseID: course.ID})
	require.NoError(t, err)
	b, err := svc.Create(ctx, StudentInput{FirstName: "Bob", Email: "bob@example.com", CourseID: course.ID})
	require.NoError(t, err)

	_, err = uuid.Parse(a.CertificateAccessToken)
	assert.NoError(t, err)
	assert.NotEqual(t, a.CertificateAccessToken, b.CertificateAccessToken)

	got, err := svc.GetByToken(ctx, a.CertificateAccessToken)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = svc.Create(ctx, StudentInput{FirstName: "C", Email: "c@example.com", CourseID: uuid.New()})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Create(ctx, StudentInput{FirstName: "C", CourseID: course.ID})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestStudentUpdateKeepsToken(t *testing.T) {
	ctx := context.Background()
	f, svc := newStudentFixture()
	course := f.store.SeedCourse(models.Course{Name: "Go", Students: []models.Student{{FirstName: "A", Email: "a@example.com"}}})
	st := course.Students[0]

	updated, err := svc.Update(ctx, st.ID, StudentInput{FirstName: "Alice", LastName: "Smith", Email: "alice@example.com", CourseID: course.ID, HasCompletedCourse: true})
	require.NoError(t, err)
	assert.Equal(t, "Alice Smith", updated.FullName())
	assert.Equal(t, st.CertificateAccessToken, f.store.Student(st.ID).CertificateAccessToken)
	assert.Contains(t, f.cache.invalidated, st.CertificateAccessToken)

	_, err = svc.Update(ctx, st.ID, StudentInput{FirstName: "A", Email: "a@example.com", CourseID: uuid.New()})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStudentMarkCompletedAndDelete(t *testing.T) {
	ctx := context.Background()
	f, svc := newStudentFixture()
	course := f.store.SeedCourse(models.Course{Name: "Go", Students: []models.Student{{FirstName: "A", Email: "a@example.com"}}})
	st := course.Students[0]

	marked, err := svc.MarkCompleted(ctx, st.ID)
	require.NoError(t, err)
	assert.True(t, marked.HasCompletedCourse)
	assert.Empty(t, marked.CertificateURL)
	assert.Equal(t, 0, f.notifier.count())

	require.NoError(t, svc.Delete(ctx, st.ID))
	_, err = svc.GetByID(ctx, st.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.MarkCompleted(ctx, st.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSendCertificateEmailGeneratesOnce(t *testing.T) {
	ctx := context.Background()
	f, svc := newStudentFixture()
	course := f.store.SeedCourse(models.Course{
		Name:     "Go",
		Students: []models.Student{{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", HasCompletedCourse: true}},
	})
	st := course.Students[0]

	require.NoError(t, svc.SendCertificateEmail(ctx, st.ID))
	first := f.store.Student(st.ID)
	assert.NotEmpty(t, first.CertificateURL)
	require.NotNil(t, first.CertificateIssuedAt)
	assert.Equal(t, 1, f.renderer.calls)

	require.NoError(t, svc.SendCertificateEmail(ctx, st.ID))
	assert.Equal(t, first.CertificateURL, f.store.Student(st.ID).CertificateURL)
	assert.Equal(t, 1, f.renderer.calls)
	assert.Equal(t, 2, f.notifier.count())
	assert.Equal(t, testBaseURL+"certificate/"+st.CertificateAccessToken, f.notifier.sent[1].Link)
}

func TestSendCertificateEmailRejections(t *testing.T) {
	ctx := context.Background()
	f, svc := newStudentFixture()
	course := f.store.SeedCourse(models.Course{Name: "Go", Students: []models.Student{{FirstName: "A", Email: "a@example.com"}}})

	assert.ErrorIs(t, svc.SendCertificateEmail(ctx, course.Students[0].ID), ErrNotCompleted)
	assert.ErrorIs(t, svc.SendCertificateEmail(ctx, uuid.New()), ErrNotFound)
	assert.Equal(t, 0, f.renderer.calls)
	assert.Equal(t, 0, f.notifier.count())
}

func TestSendCertificateEmailRemovesUploadWhenSaveFails(t *testing.T) {
	ctx := context.Background()
	f, svc := newStudentFixture()
	course := f.store.SeedCourse(models.Course{Name: "Go", Students: []models.Student{{FirstName: "A", Email: "a@example.com", HasCompletedCourse: true}}})
	f.store.FailStudentUpdates(func(*models.Student) error { return errors.New("disk full") })

	err := svc.SendCertificateEmail(ctx, course.Students[0].ID)
	require.Error(t, err)
	assert.Equal(t, 0, f.blobs.Len())
	assert.Equal(t, 0, f.notifier.count())
}

func TestIssuePendingCertificates(t *testing.T) {
	ctx := context.Background()
	f, svc := newStudentFixture()

	done := f.store.SeedCourse(models.Course{
		Name:        "Done",
		IsCompleted: true,
		Students: []models.Student{
			{FirstName: "Late", Email: "late@example.com", HasCompletedCourse: true},
			{FirstName: "Had", Email: "had@example.com", HasCompletedCourse: true, CertificateURL: "certificates/x.pdf"},
			{FirstName: "Never", Email: "never@example.com"},
		},
	})
	f.store.SeedCourse(models.Course{
		Name:     "Running",
		Students: []models.Student{{FirstName: "Early", Email: "early@example.com", HasCompletedCourse: true}},
	})

	sent, err := svc.IssuePendingCertificates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Equal(t, 1, f.notifier.count())
	assert.Equal(t, "late@example.com", f.notifier.sent[0].To)
	assert.NotEmpty(t, f.store.Student(done.Students[0].ID).CertificateURL)

	sent, err = svc.IssuePendingCertificates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
}

func TestIssuePendingCertificatesReportsFailures(t *testing.T) {
	f, svc := newStudentFixture()
	f.notifier.failFor["bad@example.com"] = true
	f.store.SeedCourse(models.Course{
		Name:        "Done",
		IsCompleted: true,
		Students: []models.Student{
			{FirstName: "Good", Email: "good@example.com", HasCompletedCourse: true},
			{FirstName: "Bad", Email: "bad@example.com", HasCompletedCourse: true},
		},
	})

	sent, err := svc.IssuePendingCertificates(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad@example.com")
	assert.Equal(t, 1, sent)
}

func buildWorkbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cellRef, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestImportAndExportExcel(t *testing.T) {
	ctx := context.Background()
	f, svc := newStudentFixture()
	course := f.store.SeedCourse(models.Course{Name: "Go"})

	book := buildWorkbook(t, [][]any{
		{"FirstName", "LastName", "Email", "Phone", "HasCompleted"},
		{"Ada", "Lovelace", "ada@example.com", "555-0100", "true"},
		{"Alan", "Turing", "alan@example.com", "", "no"},
		{"", "Nameless", "nameless@example.com", "", "true"},
		{"Grace", "Hopper", "", "", "TRUE"},
	})

	res, err := svc.ImportFromExcel(ctx, course.ID, book)
	require.NoError(t, err)
	assert.Equal(t, &ImportResult{Imported: 2, Skipped: 2}, res)
	assert.Equal(t, 1, f.store.Commits())

	students, err := svc.GetByCourse(ctx, course.ID)
	require.NoError(t, err)
	require.Len(t, students, 2)
	byEmail := map[string]models.Student{}
	for _, s := range students {
		byEmail[s.Email] = s
		assert.NotEmpty(t, s.CertificateAccessToken)
	}
	assert.True(t, byEmail["ada@example.com"].HasCompletedCourse)
	assert.Equal(t, "555-0100", byEmail["ada@example.com"].PhoneNumber)
	assert.False(t, byEmail["alan@example.com"].HasCompletedCourse)

	data, name, err := svc.ExportToExcel(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, "students-20260504.xlsx", name)

	out, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer out.Close()
	rows, err := out.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"FirstName", "LastName", "Email", "Phone", "HasCompleted", "CourseName"}, rows[0])
	assert.Equal(t, "Go", rows[1][5])
}

func TestImportExcelErrors(t *testing.T) {
	ctx := context.Background()
	f, svc := newStudentFixture()
	course := f.store.SeedCourse(models.Course{Name: "Go"})

	_, err := svc.ImportFromExcel(ctx, course.ID, bytes.NewReader([]byte("not a workbook")))
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = svc.ImportFromExcel(ctx, uuid.New(), buildWorkbook(t, nil))
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = svc.ExportToExcel(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
