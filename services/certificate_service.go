package services

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"sort"
	"strings"
	"time"

	config "github.com/Mustafaygtbs/CertificateManagement/configs"
	"github.com/Mustafaygtbs/CertificateManagement/logging"
	"github.com/Mustafaygtbs/CertificateManagement/models"
	"github.com/Mustafaygtbs/CertificateManagement/repositories"
	"github.com/Mustafaygtbs/CertificateManagement/storage"
	"github.com/Mustafaygtbs/CertificateManagement/utils"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const dateLayout = "January 2, 2006"

// Placeholders recognised in certificate templates.
const (
	PlaceholderStudentName     = "StudentName"
	PlaceholderCourseName      = "CourseName"
	PlaceholderCompletionDate  = "CompletionDate"
	PlaceholderCourseStartDate = "CourseStartDate"
	PlaceholderCourseEndDate   = "CourseEndDate"
)

//go:embed templates/default_certificate.html
var defaultLayout string

type Renderer interface {
	RenderPDF(ctx context.Context, htmlContent string) ([]byte, error)
}

// DocumentGenerator produces a certificate document and returns its blob path.
type DocumentGenerator interface {
	Generate(ctx context.Context, templateRef string, substitutions map[string]string) (string, error)
}

// ChromeRenderer prints HTML to PDF with headless Chrome.
type ChromeRenderer struct {
	execPath string
	timeout  time.Duration
}

func NewChromeRenderer(cfg config.PDFConfig) *ChromeRenderer {
	return &ChromeRenderer{execPath: cfg.ChromePath, timeout: cfg.Timeout}
}

func (r *ChromeRenderer) RenderPDF(ctx context.Context, htmlContent string) ([]byte, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if r.execPath != "" {
		opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.ExecPath(r.execPath))
		var cancelAlloc context.CancelFunc
		ctx, cancelAlloc = chromedp.NewExecAllocator(ctx, opts...)
		defer cancelAlloc()
	}

	ctx, cancel := chromedp.NewContext(ctx)
	defer cancel()

	var pdfBuffer []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, htmlContent).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			pdf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithLandscape(true).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				Do(ctx)
			if err != nil {
				return err
			}
			pdfBuffer = pdf
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdfBuffer, nil
}

// CertificateGenerator merges substitutions into the course template, or into
// the built-in layout when the course has none, renders the result and stores
// the PDF under a fresh path.
type CertificateGenerator struct {
	blobs    storage.Store
	renderer Renderer
	timeout  time.Duration
}

func NewCertificateGenerator(blobs storage.Store, renderer Renderer, blobTimeout time.Duration) *CertificateGenerator {
	return &CertificateGenerator{blobs: blobs, renderer: renderer, timeout: blobTimeout}
}

func (g *CertificateGenerator) Generate(ctx context.Context, templateRef string, substitutions map[string]string) (string, error) {
	const op = "services.certificate.Generate"

	layout := defaultLayout
	if templateRef != "" {
		data, err := g.download(ctx, templateRef)
		if err != nil {
			return "", fmt.Errorf("%s: load template: %w: %w", op, ErrGeneration, err)
		}
		layout = string(data)
	}

	pdf, err := g.renderer.RenderPDF(ctx, MergePlaceholders(layout, substitutions))
	if err != nil {
		return "", fmt.Errorf("%s: render: %w: %w", op, ErrGeneration, err)
	}
	if len(pdf) == 0 {
		return "", fmt.Errorf("%s: render produced an empty document: %w", op, ErrGeneration)
	}

	path, err := g.upload(ctx, pdf)
	if err != nil {
		return "", fmt.Errorf("%s: upload: %w: %w", op, ErrGeneration, err)
	}
	return path, nil
}

func (g *CertificateGenerator) download(ctx context.Context, path string) ([]byte, error) {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()
	return g.blobs.Download(ctx, path)
}

func (g *CertificateGenerator) upload(ctx context.Context, pdf []byte) (string, error) {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()
	return g.blobs.Upload(ctx, pdf, utils.ContentTypePDF, storage.FolderCertificates)
}

// MergePlaceholders replaces every {{Key}} with the HTML-escaped value.
// Unknown placeholders are left untouched.
func MergePlaceholders(layout string, substitutions map[string]string) string {
	keys := make([]string, 0, len(substitutions))
	for k := range substitutions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		pairs = append(pairs, "{{"+k+"}}", html.EscapeString(substitutions[k]))
	}
	return strings.NewReplacer(pairs...).Replace(layout)
}

// CertificateSubstitutions builds the placeholder values for one student.
func CertificateSubstitutions(student *models.Student, course *models.Course, completedAt time.Time) map[string]string {
	return map[string]string{
		PlaceholderStudentName:     student.FullName(),
		PlaceholderCourseName:      course.Name,
		PlaceholderCompletionDate:  completedAt.Format(dateLayout),
		PlaceholderCourseStartDate: formatDate(course.StartDate),
		PlaceholderCourseEndDate:   formatDate(course.EndDate),
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

type CertificateFile struct {
	Data        []byte
	FileName    string
	ContentType string
}

type Verification struct {
	Valid       bool       `json:"valid"`
	StudentName string     `json:"studentName,omitempty"`
	CourseName  string     `json:"courseName,omitempty"`
	IssueDate   *time.Time `json:"issueDate,omitempty"`
}

type VerificationCache interface {
	Get(ctx context.Context, token string) (*Verification, bool, error)
	Set(ctx context.Context, token string, v *Verification) error
	Invalidate(ctx context.Context, tokens ...string) error
}

// CertificateService serves certificates publicly by access token.
type CertificateService struct {
	store repositories.Store
	blobs storage.Store
	cache VerificationCache
	log   *slog.Logger
}

func NewCertificateService(store repositories.Store, blobs storage.Store, cache VerificationCache, log *slog.Logger) *CertificateService {
	return &CertificateService{store: store, blobs: blobs, cache: cache, log: log}
}

// GetCertificate returns the stored document. Students that have not
// completed, or whose certificate was never generated, yield ErrNotFound.
func (s *CertificateService) GetCertificate(ctx context.Context, token string) (*CertificateFile, error) {
	const op = "services.certificate.GetCertificate"

	student, err := s.store.Students().GetStudentByToken(ctx, token)
	if err != nil {
		return nil, storeErr(op, err)
	}
	if !student.HasCompletedCourse || !student.HasCertificate() {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	data, err := s.blobs.Download(ctx, student.CertificateURL)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.log.Warn("certificate_blob_missing", slog.String("student_id", student.ID.String()))
		}
		return nil, storeErr(op, err)
	}

	return &CertificateFile{
		Data:        data,
		FileName:    certificateFileName(student),
		ContentType: utils.ContentTypePDF,
	}, nil
}

// VerifyCertificate never exposes the document. Unknown tokens and students
// that have not completed return a Verification with Valid false together
// with ErrNotFound.
func (s *CertificateService) VerifyCertificate(ctx context.Context, token string) (*Verification, error) {
	const op = "services.certificate.VerifyCertificate"

	if s.cache != nil {
		if v, ok, err := s.cache.Get(ctx, token); err != nil {
			s.log.Warn("verification_cache_get_failed", logging.Err(err))
		} else if ok {
			return v, nil
		}
	}

	student, err := s.store.Students().GetStudentByToken(ctx, token)
	if err != nil {
		return &Verification{Valid: false}, storeErr(op, err)
	}
	if !student.HasCompletedCourse {
		return &Verification{Valid: false}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	v := &Verification{
		Valid:       true,
		StudentName: student.FullName(),
		IssueDate:   student.CertificateIssuedAt,
	}
	if student.Course != nil {
		v.CourseName = student.Course.Name
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, token, v); err != nil {
			s.log.Warn("verification_cache_set_failed", logging.Err(err))
		}
	}
	return v, nil
}

func certificateFileName(student *models.Student) string {
	name := strings.Join(strings.Fields(student.FirstName+" "+student.LastName), "_")
	if name == "" {
		name = student.ID.String()
	}
	return "Certificate_" + name + ".pdf"
}
