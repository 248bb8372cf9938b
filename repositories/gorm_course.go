package repositories

import (
	"context"

	"github.com/Mustafaygtbs/CertificateManagement/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var courseColumns = []string{
	"name", "description", "start_date", "end_date",
	"is_completed", "certificate_template_url", "updated_at",
}

type courseRepository struct {
	db *gorm.DB
}

func (r *courseRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&course).Error; err != nil {
		return nil, translate(err)
	}
	return &course, nil
}

func (r *courseRepository) GetAll(ctx context.Context) ([]models.Course, error) {
	return r.Find(ctx, CourseFilter{})
}

func (r *courseRepository) Find(ctx context.Context, filter CourseFilter) ([]models.Course, error) {
	q := r.db.WithContext(ctx).Model(&models.Course{})
	if filter.Completed != nil {
		q = q.Where("is_completed = ?", *filter.Completed)
	}
	if filter.NameContains != "" {
		q = q.Where("name ILIKE ?", "%"+filter.NameContains+"%")
	}

	var courses []models.Course
	if err := q.Order("start_date DESC").Order("name").Find(&courses).Error; err != nil {
		return nil, translate(err)
	}
	return courses, nil
}

func (r *courseRepository) GetCourseWithStudents(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	var course models.Course
	err := r.db.WithContext(ctx).
		Preload("Students", func(db *gorm.DB) *gorm.DB {
			return db.Order("last_name").Order("first_name")
		}).
		Where("id = ?", id).
		First(&course).Error
	if err != nil {
		return nil, translate(err)
	}
	return &course, nil
}

func (r *courseRepository) CountStudents(ctx context.Context, courseIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64, len(courseIDs))
	if len(courseIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		CourseID uuid.UUID
		Total    int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Student{}).
		Select("course_id, count(*) AS total").
		Where("course_id IN ?", courseIDs).
		Group("course_id").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	for _, row := range rows {
		counts[row.CourseID] = row.Total
	}
	return counts, nil
}

func (r *courseRepository) Add(ctx context.Context, course *models.Course) error {
	return translate(r.db.WithContext(ctx).Omit("Students").Create(course).Error)
}

func (r *courseRepository) Update(ctx context.Context, course *models.Course) error {
	return affected(r.db.WithContext(ctx).Model(course).Select(courseColumns).Updates(course))
}

func (r *courseRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return affected(r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Course{}))
}
