// Package storage persists certificate and template documents under opaque
// paths.
package storage

import (
	"context"
	"errors"
	"fmt"

	config "github.com/Mustafaygtbs/CertificateManagement/configs"
)

const (
	FolderCertificates = "certificates"
	FolderTemplates    = "certificate-templates"
)

var ErrNotFound = errors.New("blob not found")

type Store interface {
	// Upload stores data under a fresh path inside folder and returns it.
	Upload(ctx context.Context, data []byte, contentType, folder string) (string, error)
	Download(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
}

// New builds the driver selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemoryStore(), nil
	case "cloudinary":
		return NewCloudinaryStore(cfg.CloudinaryURL)
	case "s3":
		return NewS3Store(ctx, cfg.S3)
	case "minio":
		return NewMinioStore(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
}
