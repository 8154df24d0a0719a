package assets

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/minio/minio-go/v7"
)

type fakeObjects struct {
	exists    bool
	existsErr error
	made      []string
	puts      map[string]minio.PutObjectOptions
	putErr    error
	removed   []string
}

func (f *fakeObjects) BucketExists(context.Context, string) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeObjects) MakeBucket(_ context.Context, bucket string, _ minio.MakeBucketOptions) error {
	f.made = append(f.made, bucket)
	return nil
}

func (f *fakeObjects) PutObject(_ context.Context, _ string, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	if f.puts == nil {
		f.puts = map[string]minio.PutObjectOptions{}
	}
	n, _ := io.Copy(io.Discard, r)
	f.puts[key] = opts
	return minio.UploadInfo{Key: key, Size: n}, nil
}

func (f *fakeObjects) RemoveObject(_ context.Context, _ string, key string, _ minio.RemoveObjectOptions) error {
	f.removed = append(f.removed, key)
	return nil
}

func newTestUploader(objects *fakeObjects, cfg Config) *Uploader {
	u := newUploader(objects, cfg, log.New(io.Discard))
	u.now = func() time.Time { return time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC) }
	return u
}

func TestNewRequiresEndpoint(t *testing.T) {
	if _, err := New(context.Background(), Config{}, nil); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestEnsureBucketCreatesMissingBucket(t *testing.T) {
	objects := &fakeObjects{}
	u := newTestUploader(objects, Config{Endpoint: "minio:9000", Bucket: "assets"})
	if err := u.ensureBucket(context.Background()); err != nil {
		t.Fatalf("ensureBucket: %v", err)
	}
	if len(objects.made) != 1 || objects.made[0] != "assets" {
		t.Fatalf("expected bucket created, got %v", objects.made)
	}

	objects = &fakeObjects{exists: true}
	u = newTestUploader(objects, Config{Endpoint: "minio:9000", Bucket: "assets"})
	if err := u.ensureBucket(context.Background()); err != nil {
		t.Fatalf("ensureBucket: %v", err)
	}
	if len(objects.made) != 0 {
		t.Fatal("existing bucket should not be recreated")
	}
}

func TestUploadStoresImage(t *testing.T) {
	objects := &fakeObjects{}
	u := newTestUploader(objects, Config{Endpoint: "minio:9000", Bucket: "assets", PublicURL: "https://cdn.example.com/"})

	asset, err := u.Upload(context.Background(), "Logo.PNG", "", 4, strings.NewReader("\x89PNG"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if asset.ContentType != "image/png" || asset.Size != 4 {
		t.Fatalf("unexpected asset %+v", asset)
	}
	if !strings.HasPrefix(asset.Key, "uploads/2026/03/") || !strings.HasSuffix(asset.Key, ".png") {
		t.Fatalf("unexpected key %s", asset.Key)
	}
	if asset.URL != "https://cdn.example.com/"+asset.Key {
		t.Fatalf("unexpected url %s", asset.URL)
	}
	if objects.puts[asset.Key].ContentType != "image/png" {
		t.Fatalf("content type not passed to store: %+v", objects.puts[asset.Key])
	}
}

func TestUploadRejectsNonImages(t *testing.T) {
	u := newTestUploader(&fakeObjects{}, Config{Endpoint: "minio:9000", Bucket: "assets"})

	cases := []struct{ name, ct string }{
		{"notes.txt", "text/plain"},
		{"archive.zip", ""},
		{"payload.svg", "application/javascript"},
	}
	for _, tc := range cases {
		if _, err := u.Upload(context.Background(), tc.name, tc.ct, 1, strings.NewReader("x")); !errors.Is(err, ErrNotImage) {
			t.Fatalf("%s (%s): expected ErrNotImage, got %v", tc.name, tc.ct, err)
		}
	}
}

func TestUploadRejectsLargeFiles(t *testing.T) {
	u := newTestUploader(&fakeObjects{}, Config{Endpoint: "minio:9000", Bucket: "assets"})
	_, err := u.Upload(context.Background(), "big.png", "image/png", MaxUploadBytes+1, strings.NewReader(""))
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestPublicBaseDefaultsToEndpoint(t *testing.T) {
	got := publicBase(Config{Endpoint: "minio:9000", Bucket: "assets", UseSSL: true})
	if got != "https://minio:9000/assets" {
		t.Fatalf("publicBase = %s", got)
	}
}

func TestImageContentTypeHonoursDeclaredType(t *testing.T) {
	ct, err := imageContentType("favicon", "image/svg+xml; charset=utf-8")
	if err != nil || ct != "image/svg+xml" {
		t.Fatalf("got %q, %v", ct, err)
	}
	ct, err = imageContentType("favicon.ico", "application/octet-stream")
	if err != nil || ct != "image/x-icon" {
		t.Fatalf("got %q, %v", ct, err)
	}
}
