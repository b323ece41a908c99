package storage

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"callbridge-backend/internal/config"
	apperrors "callbridge-backend/pkg/errors"
)

// Mocks

type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	args := m.Called(ctx, bucketName, objectName, reader, objectSize, opts)
	return args.Get(0).(minio.UploadInfo), args.Error(1)
}

func (m *MockObjectStore) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	args := m.Called(ctx, bucketName)
	return args.Bool(0), args.Error(1)
}

func (m *MockObjectStore) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	args := m.Called(ctx, bucketName, opts)
	return args.Error(0)
}

type MockUserUpdater struct {
	mock.Mock
}

func (m *MockUserUpdater) UpdateAvatar(ctx context.Context, userID uuid.UUID, avatarURL string) error {
	args := m.Called(ctx, userID, avatarURL)
	return args.Error(0)
}

func newTestService() (*Service, *MockObjectStore, *MockUserUpdater) {
	store := new(MockObjectStore)
	users := new(MockUserUpdater)
	svc := NewService(store, users, config.MinIOConfig{
		Endpoint: "minio.local:9000",
		Bucket:   "avatars",
	})
	return svc, store, users
}

func TestUploadAvatar(t *testing.T) {
	userID := uuid.New()
	data := bytes.NewReader([]byte("fake-png-bytes"))

	t.Run("stores the object and records the URL", func(t *testing.T) {
		svc, store, users := newTestService()
		ctx := context.Background()

		wantObject := "avatars/" + userID.String() + ".png"
		wantURL := "http://minio.local:9000/avatars/" + wantObject

		store.On("PutObject", ctx, "avatars", wantObject, data, int64(14), mock.AnythingOfType("minio.PutObjectOptions")).
			Return(minio.UploadInfo{}, nil)
		users.On("UpdateAvatar", ctx, userID, wantURL).Return(nil)

		url, err := svc.UploadAvatar(ctx, userID, data, 14, "image/png")
		require.NoError(t, err)
		assert.Equal(t, wantURL, url)

		store.AssertExpectations(t)
		users.AssertExpectations(t)
	})

	t.Run("rejects an unsupported content type", func(t *testing.T) {
		svc, store, _ := newTestService()

		_, err := svc.UploadAvatar(context.Background(), userID, data, 14, "application/pdf")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))

		store.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects an oversized upload", func(t *testing.T) {
		svc, _, _ := newTestService()

		_, err := svc.UploadAvatar(context.Background(), userID, data, maxAvatarSize+1, "image/jpeg")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
	})
}

func TestEnsureBucket(t *testing.T) {
	t.Run("creates the bucket when missing", func(t *testing.T) {
		svc, store, _ := newTestService()
		ctx := context.Background()

		store.On("BucketExists", ctx, "avatars").Return(false, nil)
		store.On("MakeBucket", ctx, "avatars", mock.AnythingOfType("minio.MakeBucketOptions")).Return(nil)

		assert.NoError(t, svc.EnsureBucket(ctx))
		store.AssertExpectations(t)
	})

	t.Run("does nothing when the bucket exists", func(t *testing.T) {
		svc, store, _ := newTestService()
		ctx := context.Background()

		store.On("BucketExists", ctx, "avatars").Return(true, nil)

		assert.NoError(t, svc.EnsureBucket(ctx))
		store.AssertNotCalled(t, "MakeBucket", mock.Anything, mock.Anything, mock.Anything)
	})
}
