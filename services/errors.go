package services

import (
	"errors"
	"fmt"

	"github.com/Mustafaygtbs/CertificateManagement/repositories"
	"github.com/Mustafaygtbs/CertificateManagement/storage"
)

// Error categories. Handlers map them to HTTP statuses with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalid      = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrGeneration   = errors.New("certificate generation failed")
)

var (
	ErrInvalidCredentials = fmt.Errorf("invalid email or password: %w", ErrUnauthorized)
	ErrWrongPassword      = fmt.Errorf("current password is incorrect: %w", ErrUnauthorized)
	ErrInvalidToken       = fmt.Errorf("invalid session token: %w", ErrUnauthorized)
	ErrEmailTaken         = fmt.Errorf("email already registered: %w", ErrConflict)
	ErrNotCompleted       = fmt.Errorf("student has not completed the course: %w", ErrInvalid)
)

// storeErr folds repository and blob errors into the service categories.
func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, repositories.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, repositories.ErrDuplicate):
		return fmt.Errorf("%s: %w", op, ErrConflict)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
