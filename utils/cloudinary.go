package utils

import (
	"context"
	"fmt"
	"io"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"github.com/psicanalise-online/platform/config"
)

// Uploader stores images on Cloudinary.
type Uploader struct {
	cld    *cloudinary.Cloudinary
	preset string
}

// NewUploader initializes the Cloudinary client
func NewUploader(cfg config.CloudinaryConfig) (*Uploader, error) {
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	return &Uploader{cld: cld, preset: cfg.UploadPreset}, nil
}

// Upload uploads an image and returns its secure URL
func (u *Uploader) Upload(ctx context.Context, file io.Reader, folder, publicID string) (string, error) {
	overwrite := true
	params := uploader.UploadParams{
		PublicID:     publicID,
		Folder:       folder,
		UploadPreset: u.preset,
		Overwrite:    &overwrite,
	}
	if folder == "avatars" {
		params.Transformation = "c_thumb,w_200,h_200"
	}

	resp, err := u.cld.Upload.Upload(ctx, file, params)
	if err != nil {
		return "", err
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("cloudinary: %s", resp.Error.Message)
	}
	return resp.SecureURL, nil
}
