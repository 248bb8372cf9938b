package utils

import (
	"errors"
	"fmt"
	"path"

	"github.com/google/uuid"
)

const maxTokenAttempts = 5

var ErrTokenExhausted = errors.New("could not generate a unique access token")

// NewAccessToken returns a random version 4 UUID. It carries 122 bits of
// entropy and is not derived from any student field.
func NewAccessToken() string {
	return uuid.New().String()
}

// GenerateUniqueAccessToken draws tokens until taken reports one as unused.
func GenerateUniqueAccessToken(taken func(token string) (bool, error)) (string, error) {
	for i := 0; i < maxTokenAttempts; i++ {
		token := NewAccessToken()
		exists, err := taken(token)
		if err != nil {
			return "", fmt.Errorf("check access token: %w", err)
		}
		if !exists {
			return token, nil
		}
	}
	return "", ErrTokenExhausted
}

const (
	ContentTypePDF  = "application/pdf"
	ContentTypeHTML = "text/html"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var extensions = map[string]string{
	ContentTypePDF:  ".pdf",
	ContentTypeHTML: ".html",
	ContentTypeXLSX: ".xlsx",
}

// ObjectKey builds a fresh blob path of the form folder/<uuid><ext>.
func ObjectKey(folder, contentType string) string {
	return path.Join(folder, uuid.New().String()+ExtensionFor(contentType))
}

func ExtensionFor(contentType string) string {
	return extensions[contentType]
}
