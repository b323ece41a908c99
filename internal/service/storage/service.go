// Package storage implements avatar uploads backed by MinIO.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"callbridge-backend/internal/config"
	apperrors "callbridge-backend/pkg/errors"
	"callbridge-backend/pkg/logger"
)

// maxAvatarSize caps avatar uploads at 5 MiB
const maxAvatarSize = 5 << 20

var allowedAvatarTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// ObjectStore defines the object storage operations used by the service
type ObjectStore interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
}

// UserUpdater persists the stored avatar URL
type UserUpdater interface {
	UpdateAvatar(ctx context.Context, userID uuid.UUID, avatarURL string) error
}

// Service handles avatar storage
type Service struct {
	store     ObjectStore
	users     UserUpdater
	bucket    string
	publicURL string
}

// NewMinIOClient creates a MinIO client from configuration
func NewMinIOClient(cfg config.MinIOConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	return client, nil
}

// NewService creates a new storage service
func NewService(store ObjectStore, users UserUpdater, cfg config.MinIOConfig) *Service {
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return &Service{
		store:     store,
		users:     users,
		bucket:    cfg.Bucket,
		publicURL: fmt.Sprintf("%s://%s", scheme, cfg.Endpoint),
	}
}

// EnsureBucket creates the avatar bucket if it does not exist yet
func (s *Service) EnsureBucket(ctx context.Context) error {
	exists, err := s.store.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.store.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	logger.Info("Created avatar bucket", zap.String("bucket", s.bucket))
	return nil
}

// UploadAvatar stores a user's avatar and records its URL on the account.
// Returns the public URL of the stored object.
func (s *Service) UploadAvatar(ctx context.Context, userID uuid.UUID, reader io.Reader, size int64, contentType string) (string, error) {
	ext, ok := allowedAvatarTypes[strings.ToLower(contentType)]
	if !ok {
		return "", apperrors.ValidationError("Avatar must be JPEG, PNG, or WebP")
	}
	if size <= 0 || size > maxAvatarSize {
		return "", apperrors.ValidationError("Avatar must be between 1 byte and 5 MiB")
	}

	objectName := path.Join("avatars", userID.String()+ext)

	_, err := s.store.PutObject(ctx, s.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", apperrors.StorageError(err)
	}

	avatarURL := fmt.Sprintf("%s/%s/%s", s.publicURL, s.bucket, objectName)

	if err := s.users.UpdateAvatar(ctx, userID, avatarURL); err != nil {
		return "", err
	}

	logger.Info("Avatar uploaded",
		zap.String("user_id", userID.String()),
		zap.String("object", objectName))

	return avatarURL, nil
}
