// Package storage persists inbound message attachments in S3-compatible
// object storage.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"rental_portal_backend/platform/config"
)

// PresignedURLTTL is the default expiration time for presigned URLs.
const PresignedURLTTL = 15 * time.Minute

// maxAttachmentSize caps inbound attachment uploads at 25 MiB, matching the
// limit most email providers enforce.
const maxAttachmentSize = 25 << 20

// PresignedURL is a time-limited URL for direct object access.
type PresignedURL struct {
	URL       string
	FileKey   string
	ExpiresAt time.Time
}

// Service stores and retrieves message attachments in MinIO.
// NewService returns nil when storage is not configured; callers treat a nil
// service as attachments-disabled.
type Service struct {
	client *minio.Client
	bucket string
}

// NewService creates the attachment store and ensures its bucket exists.
func NewService(ctx context.Context, cfg config.StorageConfig) (*Service, error) {
	if !cfg.IsStorageEnabled() {
		return nil, nil
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	svc := &Service{client: client, bucket: cfg.GetAttachmentBucket()}
	if err := svc.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *Service) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// StoreAttachment uploads an inbound attachment under the thread's folder and
// returns the object key. File names get a short random suffix so repeated
// uploads never overwrite each other.
func (s *Service) StoreAttachment(ctx context.Context, threadID, fileName, contentType string, r io.Reader, size int64) (string, error) {
	if s == nil {
		return "", fmt.Errorf("attachment storage not configured")
	}
	if size > maxAttachmentSize {
		return "", fmt.Errorf("attachment %s exceeds %d bytes", fileName, int64(maxAttachmentSize))
	}

	ext := path.Ext(fileName)
	baseName := strings.TrimSuffix(fileName, ext)
	uniqueFileName := fmt.Sprintf("%s_%s%s", baseName, uuid.New().String()[:8], ext)
	fileKey := filepath.ToSlash(filepath.Join("threads", threadID, uniqueFileName))

	_, err := s.client.PutObject(ctx, s.bucket, fileKey, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload attachment %s: %w", fileKey, err)
	}
	return fileKey, nil
}

// AttachmentURL creates a presigned download URL for a stored attachment.
func (s *Service) AttachmentURL(ctx context.Context, fileKey string) (*PresignedURL, error) {
	if s == nil {
		return nil, fmt.Errorf("attachment storage not configured")
	}

	expiresAt := time.Now().Add(PresignedURLTTL)
	presignedURL, err := s.client.PresignedGetObject(ctx, s.bucket, fileKey, PresignedURLTTL, url.Values{})
	if err != nil {
		return nil, fmt.Errorf("presign attachment %s: %w", fileKey, err)
	}

	return &PresignedURL{
		URL:       presignedURL.String(),
		FileKey:   fileKey,
		ExpiresAt: expiresAt,
	}, nil
}

// DeleteAttachment removes a stored attachment.
func (s *Service) DeleteAttachment(ctx context.Context, fileKey string) error {
	if s == nil {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, fileKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete attachment %s: %w", fileKey, err)
	}
	return nil
}
