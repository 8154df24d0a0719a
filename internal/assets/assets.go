// Package assets stores uploaded timeline images and favicons in an
// S3-compatible bucket and hands back their public URLs.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MaxUploadBytes caps a single upload.
const MaxUploadBytes = 5 << 20

var (
	ErrNotConfigured = errors.New("asset storage is not configured")
	ErrNotImage      = errors.New("only image uploads are accepted")
	ErrTooLarge      = errors.New("upload exceeds size limit")
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL is the base that serves the bucket's objects; when empty
	// URLs point at Endpoint/Bucket directly.
	PublicURL string
}

// Asset describes a stored object.
type Asset struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

type objectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error
}

type Uploader struct {
	objects objectStore
	bucket  string
	baseURL string
	logger  *log.Logger
	now     func() time.Time
}

// New connects to MinIO and makes sure the bucket exists. A blank endpoint
// returns ErrNotConfigured.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Uploader, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, ErrNotConfigured
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	u := newUploader(client, cfg, logger)
	if err := u.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return u, nil
}

func newUploader(objects objectStore, cfg Config, logger *log.Logger) *Uploader {
	if logger == nil {
		logger = log.Default()
	}
	return &Uploader{
		objects: objects,
		bucket:  cfg.Bucket,
		baseURL: publicBase(cfg),
		logger:  logger.WithPrefix("assets"),
		now:     time.Now,
	}
}

func publicBase(cfg Config) string {
	if base := strings.TrimRight(strings.TrimSpace(cfg.PublicURL), "/"); base != "" {
		return base
	}
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
}

func (u *Uploader) ensureBucket(ctx context.Context) error {
	exists, err := u.objects.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", u.bucket, err)
	}
	if exists {
		return nil
	}
	if err := u.objects.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", u.bucket, err)
	}
	u.logger.Info("created bucket", "bucket", u.bucket)
	return nil
}

// Upload stores r under a generated key. size must be known; contentType
// may be blank, in which case it is derived from filename.
func (u *Uploader) Upload(ctx context.Context, filename, contentType string, size int64, r io.Reader) (Asset, error) {
	if size > MaxUploadBytes {
		return Asset{}, ErrTooLarge
	}
	ct, err := imageContentType(filename, contentType)
	if err != nil {
		return Asset{}, err
	}

	key := u.objectKey(filename, ct)
	info, err := u.objects.PutObject(ctx, u.bucket, key, r, size, minio.PutObjectOptions{
		ContentType:  ct,
		CacheControl: "public, max-age=31536000, immutable",
	})
	if err != nil {
		return Asset{}, fmt.Errorf("put object %s: %w", key, err)
	}
	u.logger.Info("stored asset", "key", key, "size", info.Size, "contentType", ct)
	return Asset{Key: key, URL: u.baseURL + "/" + key, ContentType: ct, Size: info.Size}, nil
}

func (u *Uploader) Delete(ctx context.Context, key string) error {
	if err := u.objects.RemoveObject(ctx, u.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}

func (u *Uploader) objectKey(filename, contentType string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
			ext = exts[0]
		}
	}
	return fmt.Sprintf("uploads/%s/%s%s", u.now().UTC().Format("2006/01"), uuid.NewString(), ext)
}

// imageContentType returns the media type to store, or ErrNotImage.
func imageContentType(filename, declared string) (string, error) {
	ct := ""
	if declared != "" {
		if parsed, _, err := mime.ParseMediaType(declared); err == nil {
			ct = parsed
		}
	}
	if ct == "" || ct == "application/octet-stream" {
		ct = extensionType(path.Ext(filename))
	}
	if !strings.HasPrefix(ct, "image/") {
		return "", ErrNotImage
	}
	return ct, nil
}

func extensionType(ext string) string {
	switch strings.ToLower(ext) {
	case ".svg":
		return "image/svg+xml"
	case ".png":
		return "image/png"
	case ".ico":
		return "image/x-icon"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	}
	return ""
}
