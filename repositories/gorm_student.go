package repositories

import (
	"context"

	"github.com/Mustafaygtbs/CertificateManagement/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// certificate_access_token is deliberately absent.
var studentColumns = []string{
	"first_name", "last_name", "email", "phone_number",
	"has_completed_course", "certificate_url", "certificate_issued_at",
	"course_id", "updated_at",
}

const importBatchSize = 200

type studentRepository struct {
	db *gorm.DB
}

func (r *studentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).Preload("Course").Where("id = ?", id).First(&student).Error; err != nil {
		return nil, translate(err)
	}
	return &student, nil
}

func (r *studentRepository) GetAll(ctx context.Context) ([]models.Student, error) {
	return r.Find(ctx, StudentFilter{})
}

func (r *studentRepository) Find(ctx context.Context, filter StudentFilter) ([]models.Student, error) {
	q := r.db.WithContext(ctx).Model(&models.Student{}).Preload("Course")
	if filter.CourseID != nil {
		q = q.Where("students.course_id = ?", *filter.CourseID)
	}
	if filter.HasCompleted != nil {
		q = q.Where("students.has_completed_course = ?", *filter.HasCompleted)
	}
	if filter.WithoutCertificate {
		q = q.Where("(students.certificate_url IS NULL OR students.certificate_url = '')")
	}
	if filter.CourseCompleted != nil {
		q = q.Joins("JOIN courses ON courses.id = students.course_id").
			Where("courses.is_completed = ?", *filter.CourseCompleted)
	}

	var students []models.Student
	if err := q.Order("students.last_name").Order("students.first_name").Find(&students).Error; err != nil {
		return nil, translate(err)
	}
	return students, nil
}

func (r *studentRepository) GetStudentsByCourse(ctx context.Context, courseID uuid.UUID) ([]models.Student, error) {
	return r.Find(ctx, StudentFilter{CourseID: &courseID})
}

func (r *studentRepository) GetStudentByToken(ctx context.Context, token string) (*models.Student, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	var student models.Student
	err := r.db.WithContext(ctx).
		Preload("Course").
		Where("certificate_access_token = ?", token).
		First(&student).Error
	if err != nil {
		return nil, translate(err)
	}
	return &student, nil
}

func (r *studentRepository) Add(ctx context.Context, student *models.Student) error {
	return translate(r.db.WithContext(ctx).Omit("Course").Create(student).Error)
}

func (r *studentRepository) AddMany(ctx context.Context, students []*models.Student) error {
	if len(students) == 0 {
		return nil
	}
	return translate(r.db.WithContext(ctx).Omit("Course").CreateInBatches(students, importBatchSize).Error)
}

func (r *studentRepository) Update(ctx context.Context, student *models.Student) error {
	return affected(r.db.WithContext(ctx).Model(student).Select(studentColumns).Updates(student))
}

func (r *studentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return affected(r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Student{}))
}
