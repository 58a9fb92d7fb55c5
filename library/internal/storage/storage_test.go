package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-catalog/library/internal/errs"
)

func TestValidateUpload(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		size     int64
		wantErr  bool
	}{
		{name: "png", filename: "cover.png", size: 1024},
		{name: "upper case jpeg", filename: "COVER.JPEG", size: 1024},
		{name: "exactly 5MB", filename: "cover.webp", size: MaxImageSize},
		{name: "too large", filename: "cover.gif", size: MaxImageSize + 1, wantErr: true},
		{name: "not an image", filename: "notes.pdf", size: 10, wantErr: true},
		{name: "no extension", filename: "cover", size: 10, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUpload(tt.filename, tt.size)
			if tt.wantErr {
				require.ErrorIs(t, err, errs.ErrValidation)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNewImageName(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	name := NewImageName("My Cover.JPG", now)
	require.Regexp(t, regexp.MustCompile(`^book-1700000000123-[0-9a-f-]{36}\.jpg$`), name)
	require.NotEqual(t, name, NewImageName("My Cover.JPG", now))
}

func TestDiskStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir, zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "book-1.png", strings.NewReader("png bytes")))
	data, err := os.ReadFile(filepath.Join(dir, "book-1.png"))
	require.NoError(t, err)
	require.Equal(t, "png bytes", string(data))

	require.Error(t, store.Save(ctx, "book-1.png", strings.NewReader("again")), "existing image is never overwritten")
	require.Error(t, store.Save(ctx, "../escape.png", strings.NewReader("x")))

	require.NoError(t, store.Delete(ctx, "book-1.png"))
	_, err = os.Stat(filepath.Join(dir, "book-1.png"))
	require.True(t, os.IsNotExist(err))

	require.NoError(t, store.Delete(ctx, "book-1.png"), "deleting a missing image is a no-op")
}

func TestS3Store(t *testing.T) {
	var (
		mu       sync.Mutex
		requests []string
		body     string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		requests = append(requests, r.Method+" "+r.URL.Path)
		switch r.Method {
		case http.MethodPut:
			b, _ := io.ReadAll(r.Body)
			body = string(b)
			w.Header().Set("ETag", `"etag"`)
			w.WriteHeader(http.StatusOK)
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer srv.Close()

	store, err := NewS3Store(context.Background(), Config{
		S3Region:    "us-east-1",
		S3Bucket:    "covers",
		S3Endpoint:  srv.URL,
		S3AccessKey: "minio",
		S3SecretKey: "minio123",
	}, zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "book-1.png", strings.NewReader("png bytes")))
	require.NoError(t, store.Delete(ctx, "book-1.png"))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"PUT /covers/book-1.png", "DELETE /covers/book-1.png"}, requests)
	require.Contains(t, body, "png bytes")
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(context.Background(), Config{Backend: "ftp"}, zap.NewNop())
	require.Error(t, err)
}
