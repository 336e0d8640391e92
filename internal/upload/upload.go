// Package upload stores image blobs behind a backend-neutral interface.
// Object names are random uuids plus the original extension, so concurrent
// uploads can never collide. Backends: local disk (served as static files)
// and MinIO.
package upload

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"example.com/pixsoul/internal/logger"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var logg = logger.New()

type Store interface {
	// Save writes the blob and returns the public path it is served under.
	Save(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (string, error)
	// Remove deletes a previously saved blob by its public path.
	Remove(ctx context.Context, publicPath string) error
}

// ObjectName derives the stored name from the original filename: a fresh
// uuid with the original extension.
func ObjectName(filename string) string {
	return uuid.NewString() + strings.ToLower(filepath.Ext(filename))
}

// --- Disk backend ---

// DiskStore writes blobs under a fixed directory, served at /uploads/.
type DiskStore struct {
	Dir string
}

func NewDisk(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &DiskStore{Dir: dir}, nil
}

func (d *DiskStore) Save(_ context.Context, filename string, r io.Reader, _ int64, _ string) (string, error) {
	dst, err := os.Create(filepath.Join(d.Dir, filename))
	if err != nil {
		logg.Error("upload", "Failed to create upload file", err)
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		logg.Error("upload", "Failed to write upload file", err)
		return "", err
	}
	return "/uploads/" + filename, nil
}

func (d *DiskStore) Remove(_ context.Context, publicPath string) error {
	name := path.Base(publicPath)
	if err := os.Remove(filepath.Join(d.Dir, name)); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		logg.Error("upload", "Failed to remove upload file", err)
		return err
	}
	return nil
}

// --- MinIO backend ---

type MinioStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

func NewMinio(endpoint, accessKey, secretKey, bucket, publicURL string, useSSL bool) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MinIO: %w", err)
	}
	return &MinioStore{client: client, bucket: bucket, publicURL: strings.TrimSuffix(publicURL, "/")}, nil
}

func (m *MinioStore) Save(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := m.client.PutObject(ctx, m.bucket, filename, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		logg.Error("upload", "Failed to upload object to MinIO", err)
		return "", err
	}
	return m.publicURL + "/" + m.bucket + "/" + filename, nil
}

func (m *MinioStore) Remove(ctx context.Context, publicPath string) error {
	name := path.Base(publicPath)
	if err := m.client.RemoveObject(ctx, m.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		logg.Error("upload", "Failed to remove object from MinIO", err)
		return err
	}
	return nil
}

// ---------------------------------------------

// MockStore keeps saved blobs in memory for tests.
type MockStore struct {
	Saved   map[string][]byte
	Removed []string
}

func NewMockStore() *MockStore {
	return &MockStore{Saved: make(map[string][]byte)}
}

func (m *MockStore) Save(_ context.Context, filename string, r io.Reader, _ int64, _ string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	publicPath := "/uploads/" + filename
	m.Saved[publicPath] = data
	return publicPath, nil
}

func (m *MockStore) Remove(_ context.Context, publicPath string) error {
	delete(m.Saved, publicPath)
	m.Removed = append(m.Removed, publicPath)
	return nil
}
