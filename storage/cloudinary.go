package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Mustafaygtbs/CertificateManagement/utils"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

const cloudinaryResourceType = "raw"

// CloudinaryStore keeps documents as raw Cloudinary assets. The returned path
// is the asset public ID.
type CloudinaryStore struct {
	cld    *cloudinary.Cloudinary
	client *http.Client
}

func NewCloudinaryStore(cloudinaryURL string) (*CloudinaryStore, error) {
	const op = "storage/cloudinary/New"

	if cloudinaryURL == "" {
		return nil, fmt.Errorf("%s: CLOUDINARY_URL is empty", op)
	}
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &CloudinaryStore{cld: cld, client: &http.Client{Timeout: 30 * time.Second}}, nil
}

func (s *CloudinaryStore) Upload(ctx context.Context, data []byte, contentType, folder string) (string, error) {
	const op = "storage/cloudinary/Upload"

	publicID := utils.ObjectKey(folder, contentType)
	overwrite := false
	res, err := s.cld.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		PublicID:     publicID,
		ResourceType: cloudinaryResourceType,
		Overwrite:    &overwrite,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("%s: %s", op, res.Error.Message)
	}
	return res.PublicID, nil
}

func (s *CloudinaryStore) Download(ctx context.Context, path string) ([]byte, error) {
	const op = "storage/cloudinary/Download"

	link, err := s.deliveryURL(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("%s: unexpected status %d", op, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return data, nil
}

func (s *CloudinaryStore) Delete(ctx context.Context, path string) error {
	const op = "storage/cloudinary/Delete"

	res, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     path,
		ResourceType: cloudinaryResourceType,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("%s: %s", op, res.Error.Message)
	}
	if res.Result != "ok" && res.Result != "not found" {
		return errors.New(op + ": unexpected result " + res.Result)
	}
	return nil
}

// deliveryURL honours the account's secure, private CDN and cname settings.
func (s *CloudinaryStore) deliveryURL(publicID string) (string, error) {
	file, err := s.cld.File(publicID)
	if err != nil {
		return "", err
	}
	return file.String()
}
