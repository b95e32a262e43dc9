// Package blobstore stores uploads and generated reports on local disk or S3.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("blob not found")

// ObjectInfo describes a stored blob.
type ObjectInfo struct {
	Key         string    `json:"key"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type,omitempty"`
	ModTime     time.Time `json:"mod_time"`
}

// BlobStore is the narrow storage capability the pipeline and API depend on.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// List returns blobs under prefix sorted by key.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// Type identifies the storage backend.
type Type string

const (
	TypeLocal Type = "local"
	TypeS3    Type = "s3"
)

// Config holds storage configuration.
type Config struct {
	Type      Type
	LocalPath string

	S3Bucket          string
	S3Region          string
	S3Endpoint        string // S3-compatible services (MinIO etc.)
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// New creates the BlobStore selected by cfg.Type.
func New(ctx context.Context, cfg Config) (BlobStore, error) {
	switch cfg.Type {
	case TypeS3:
		return NewS3Store(ctx, cfg)
	case TypeLocal, "":
		return NewLocalStore(cfg.LocalPath)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// CleanKey normalises a key and rejects ones that escape the store root.
func CleanKey(key string) (string, error) {
	key = strings.ReplaceAll(key, "\\", "/")
	if key == "" || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return "", fmt.Errorf("invalid key %q", key)
		}
	}
	cleaned := path.Clean(key)
	if cleaned == "." {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return cleaned, nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9.]+`)

// Slug lower-cases a display name and joins its words with hyphens,
// e.g. "All Graduate Courses.csv" -> "all-graduate-courses.csv".
func Slug(name string) string {
	s := nonSlug.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	return strings.Trim(s, "-")
}

// ResultKey is where a generated file for a task is stored.
func ResultKey(taskID, name string, at time.Time) string {
	return fmt.Sprintf("%s/%s-%s", taskID, at.Format("20060102-150405"), Slug(name))
}

// UploadKey is where an uploaded file is held while its task runs.
func UploadKey(taskID, filename string) string {
	return fmt.Sprintf("uploads/%s/%s", taskID, sanitizeFilename(path.Base(strings.ReplaceAll(filename, "\\", "/"))))
}

// sanitizeFilename removes unsafe characters from filenames.
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		"..", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}
