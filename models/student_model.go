package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Student struct {
	ID                 uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	FirstName          string    `gorm:"size:100;not null" json:"first_name"`
	LastName           string    `gorm:"size:100" json:"last_name"`
	Email              string    `gorm:"size:100;not null" json:"email"`
	PhoneNumber        string    `gorm:"size:30" json:"phone_number"`
	HasCompletedCourse bool      `gorm:"not null;default:false" json:"has_completed_course"`
	CertificateURL     string    `gorm:"type:text" json:"certificate_url"`

	CertificateIssuedAt *time.Time `json:"certificate_issued_at,omitempty"`

	// CertificateAccessToken is the only public handle on a certificate. It is
	// assigned once at creation and never rewritten.
	CertificateAccessToken string `gorm:"size:36;not null;uniqueIndex" json:"-"`

	CourseID uuid.UUID `gorm:"type:uuid;not null;index" json:"course_id"`
	Course   *Course   `gorm:"foreignkey:CourseID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

func (s *Student) HasCertificate() bool {
	return s.CertificateURL != ""
}
