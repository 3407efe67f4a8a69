package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/therealutkarshpriyadarshi/watchswap/internal/config"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/logging"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/metrics"
	"github.com/therealutkarshpriyadarshi/watchswap/pkg/models"
)

// Object key prefixes
const (
	ThumbnailPrefix = "thumbnails/"
	ProofPrefix     = "proofs/"
)

// ErrUnsupportedMedia is returned for uploads that are neither images nor
// videos
var ErrUnsupportedMedia = errors.New("unsupported media type")

// Storage keeps thumbnails and proof media in an object store
type Storage struct {
	client        *minio.Client
	bucketName    string
	presignExpiry time.Duration
	logger        *logging.Logger
}

// New creates a new storage client
func New(cfg config.StorageConfig, logger *logging.Logger) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{
			Region: cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}

	return &Storage{
		client:        client,
		bucketName:    cfg.BucketName,
		presignExpiry: expiry,
		logger:        logger.WithComponent("storage"),
	}, nil
}

func (s *Storage) observe(operation, key string, size int64, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	elapsed := time.Since(start)
	metrics.RecordStorageOperation(operation, status, elapsed.Seconds(), size)
	s.logger.LogStorageOperation(operation, s.bucketName, key, size, elapsed, err)
}

// Upload stores an object
func (s *Storage) Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (err error) {
	defer func(start time.Time) { s.observe("upload", objectName, size, start, err) }(time.Now())

	_, err = s.client.PutObject(ctx, s.bucketName, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}
	return nil
}

// UploadThumbnail stores a thumbnail image for userID and returns its
// reference
func (s *Storage) UploadThumbnail(ctx context.Context, userID int64, filename string, reader io.Reader, size int64) (string, error) {
	contentType := getContentType(filename)
	if MediaKind(contentType) != models.ProofKindPhoto {
		return "", fmt.Errorf("%w: thumbnail must be an image", ErrUnsupportedMedia)
	}

	key := fmt.Sprintf("%s%d/%s%s", ThumbnailPrefix, userID, uuid.NewString(), strings.ToLower(filepath.Ext(filename)))
	if err := s.Upload(ctx, key, reader, size, contentType); err != nil {
		return "", err
	}
	return key, nil
}

// UploadProof stores proof media for a task and returns its reference and
// proof kind
func (s *Storage) UploadProof(ctx context.Context, viewerID, taskID int64, filename string, reader io.Reader, size int64) (string, string, error) {
	contentType := getContentType(filename)
	kind := MediaKind(contentType)
	if kind == "" {
		return "", "", fmt.Errorf("%w: proof must be a photo or video", ErrUnsupportedMedia)
	}

	key := fmt.Sprintf("%s%d/%d/%s%s", ProofPrefix, viewerID, taskID, uuid.NewString(), strings.ToLower(filepath.Ext(filename)))
	if err := s.Upload(ctx, key, reader, size, contentType); err != nil {
		return "", "", err
	}
	return key, kind, nil
}

// PresignedURL returns a time limited download URL for an object
func (s *Storage) PresignedURL(ctx context.Context, objectName string) (string, error) {
	url, err := s.client.PresignedGetObject(ctx, s.bucketName, objectName, s.presignExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate URL: %w", err)
	}
	return url.String(), nil
}

// Delete deletes an object from storage
func (s *Storage) Delete(ctx context.Context, objectName string) (err error) {
	defer func(start time.Time) { s.observe("delete", objectName, 0, start, err) }(time.Now())

	err = s.client.RemoveObject(ctx, s.bucketName, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// List lists objects with a prefix
func (s *Storage) List(ctx context.Context, prefix string) ([]string, error) {
	var objects []string

	for object := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", object.Err)
		}
		objects = append(objects, object.Key)
	}

	return objects, nil
}

// DeleteUserMedia removes every thumbnail and proof uploaded by userID
func (s *Storage) DeleteUserMedia(ctx context.Context, userID int64) error {
	var keys []string
	for _, prefix := range []string{ThumbnailPrefix, ProofPrefix} {
		found, err := s.List(ctx, fmt.Sprintf("%s%d/", prefix, userID))
		if err != nil {
			return err
		}
		keys = append(keys, found...)
	}
	if len(keys) == 0 {
		return nil
	}
	return s.BatchDelete(ctx, keys)
}

// BatchDelete deletes multiple objects
func (s *Storage) BatchDelete(ctx context.Context, keys []string) (err error) {
	defer func(start time.Time) {
		s.observe("batch_delete", fmt.Sprintf("%d objects", len(keys)), 0, start, err)
	}(time.Now())

	objectsCh := make(chan minio.ObjectInfo, len(keys))
	go func() {
		defer close(objectsCh)
		for _, key := range keys {
			objectsCh <- minio.ObjectInfo{Key: key}
		}
	}()

	errorCh := s.client.RemoveObjects(ctx, s.bucketName, objectsCh, minio.RemoveObjectsOptions{})
	for rerr := range errorCh {
		if rerr.Err != nil {
			return fmt.Errorf("failed to delete object %s: %w", rerr.ObjectName, rerr.Err)
		}
	}
	return nil
}

// IsObjectRef reports whether ref names an object this service stored
func IsObjectRef(ref string) bool {
	return strings.HasPrefix(ref, ThumbnailPrefix) || strings.HasPrefix(ref, ProofPrefix)
}

// MediaKind maps a content type to a proof kind, or "" when it is neither
// a photo nor a video
func MediaKind(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return models.ProofKindPhoto
	case strings.HasPrefix(contentType, "video/"):
		return models.ProofKindVideo
	default:
		return ""
	}
}

// getContentType returns the content type based on file extension
func getContentType(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	default:
		return "application/octet-stream"
	}
}
