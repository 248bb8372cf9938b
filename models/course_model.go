package models

import (
	"time"

	"github.com/google/uuid"
)

type Course struct {
	ID                     uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Name                   string    `gorm:"size:200;not null" json:"name"`
	Description            string    `gorm:"type:text" json:"description"`
	StartDate              time.Time `json:"start_date"`
	EndDate                time.Time `json:"end_date"`
	IsCompleted            bool      `gorm:"not null;default:false" json:"is_completed"`
	CertificateTemplateURL string    `gorm:"type:text" json:"certificate_template_url"`

	Students []Student `gorm:"foreignkey:CourseID;constraint:OnDelete:CASCADE" json:"students,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QualifyingStudents returns the students that individually completed the
// course. Course completion never marks students complete by itself.
func (c *Course) QualifyingStudents() []*Student {
	var out []*Student
	for i := range c.Students {
		if c.Students[i].HasCompletedCourse {
			out = append(out, &c.Students[i])
		}
	}
	return out
}
