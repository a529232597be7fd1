package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// ErrUploaderNotConfigured is returned when CDN credentials are missing.
var ErrUploaderNotConfigured = errors.New("image cdn is not configured")

// Uploader stores images on the CDN.
type Uploader interface {
	// Upload stores the image under its file name (without extension) and
	// returns the public https URL.
	Upload(ctx context.Context, filename string, file io.Reader) (string, error)
	// Destroy removes the asset with the given public id.
	Destroy(ctx context.Context, publicID string) (string, error)
}

// CloudinaryUploader is the Cloudinary-backed Uploader.
type CloudinaryUploader struct {
	cld *cloudinary.Cloudinary
}

// NewCloudinaryUploader constructs a CloudinaryUploader. Empty credentials
// yield an uploader that rejects every call.
func NewCloudinaryUploader(cloudName, apiKey, apiSecret string) (*CloudinaryUploader, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return &CloudinaryUploader{}, nil
	}
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary config: %w", err)
	}
	cld.Config.URL.Secure = true
	return &CloudinaryUploader{cld: cld}, nil
}

func (u *CloudinaryUploader) Upload(ctx context.Context, filename string, file io.Reader) (string, error) {
	if u.cld == nil {
		return "", ErrUploaderNotConfigured
	}

	resp, err := u.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		PublicID:       PublicIDFromName(filename),
		UniqueFilename: api.Bool(false),
		Overwrite:      api.Bool(false),
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload %s: %w", filename, err)
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("cloudinary upload %s: %s", filename, resp.Error.Message)
	}
	return resp.SecureURL, nil
}

func (u *CloudinaryUploader) Destroy(ctx context.Context, publicID string) (string, error) {
	if u.cld == nil {
		return "", ErrUploaderNotConfigured
	}

	resp, err := u.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return "", fmt.Errorf("cloudinary destroy %s: %w", publicID, err)
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("cloudinary destroy %s: %s", publicID, resp.Error.Message)
	}
	return resp.Result, nil
}

// PublicIDFromName strips directories and the extension from a file name.
func PublicIDFromName(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if i := strings.Index(base, "."); i > 0 {
		base = base[:i]
	}
	return base
}

// PublicIDFromURL returns the asset id encoded in a CDN URL: the last path
// segment without its extension.
func PublicIDFromURL(raw string) string {
	p := raw
	if parsed, err := url.Parse(raw); err == nil && parsed.Path != "" {
		p = parsed.Path
	}
	return PublicIDFromName(p)
}
