// Package storage keeps uploaded book cover images.
package storage

import (
	"context"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-catalog/library/internal/errs"
)

const (
	MaxImageSize = 5 << 20 // 5 MiB

	BackendDisk = "disk"
	BackendS3   = "s3"
)

var imageTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

type Config struct {
	Backend string `envconfig:"STORAGE_BACKEND" default:"disk"`
	Dir     string `envconfig:"UPLOAD_DIR" default:"uploads/images"`

	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Bucket    string `envconfig:"S3_BUCKET"`
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY" json:"-"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY" json:"-"`
}

// ImageStore saves and releases cover images by name.
type ImageStore interface {
	Save(ctx context.Context, name string, r io.Reader) error
	Delete(ctx context.Context, name string) error
}

func New(ctx context.Context, cfg Config, log *zap.Logger) (ImageStore, error) {
	switch cfg.Backend {
	case BackendDisk, "":
		return NewDiskStore(cfg.Dir, log)
	case BackendS3:
		return NewS3Store(ctx, cfg, log)
	default:
		return nil, errors.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// ValidateUpload checks the original file name and size of an upload.
func ValidateUpload(filename string, size int64) error {
	if _, ok := imageTypes[strings.ToLower(filepath.Ext(filename))]; !ok {
		return errs.Validation("only image files are allowed (png, jpg, jpeg, gif, webp)")
	}
	if size > MaxImageSize {
		return errs.Validation("image must not exceed 5MB")
	}
	return nil
}

// NewImageName derives the stored name: book-<unix millis>-<random><ext>.
func NewImageName(filename string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return "book-" + strconv.FormatInt(now.UnixMilli(), 10) + "-" + uuid.NewString() + ext
}

func contentType(name string) string {
	if ct, ok := imageTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// cleanName rejects anything that is not a plain file name.
func cleanName(name string) (string, error) {
	base := filepath.Base(name)
	if name == "" || base != name || base == "." || base == ".." {
		return "", errors.Errorf("invalid image name %q", name)
	}
	return base, nil
}
