package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"callbridge-backend/internal/domain"
	apperrors "callbridge-backend/pkg/errors"
	"callbridge-backend/pkg/jwt"
	"callbridge-backend/pkg/password"
)

// Mocks

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

type MockPushTokenStore struct {
	mock.Mock
}

func (m *MockPushTokenStore) Upsert(ctx context.Context, userID uuid.UUID, token string) error {
	args := m.Called(ctx, userID, token)
	return args.Error(0)
}

func newTestService() (*Service, *MockUserRepository, *MockPushTokenStore) {
	repo := new(MockUserRepository)
	tokens := new(MockPushTokenStore)
	manager := jwt.NewManager("test-secret-key-at-least-32-characters!", 15*time.Minute, 24*time.Hour)
	return NewService(repo, tokens, manager), repo, tokens
}

func TestRegister(t *testing.T) {
	t.Run("creates an account and returns a token pair", func(t *testing.T) {
		svc, repo, _ := newTestService()
		ctx := context.Background()

		repo.On("EmailExists", ctx, "alice@example.com").Return(false, nil)
		repo.On("UsernameExists", ctx, "alice").Return(false, nil)
		repo.On("Create", ctx, mock.AnythingOfType("*domain.User")).Return(nil)

		out, err := svc.Register(ctx, &RegisterInput{
			Email:    "alice@example.com",
			Username: "alice",
			Password: "secret123",
		})

		require.NoError(t, err)
		assert.Equal(t, "alice", out.User.Username)
		assert.NotEmpty(t, out.AccessToken)
		assert.NotEmpty(t, out.RefreshToken)
		repo.AssertExpectations(t)
	})

	t.Run("stores the username with whitespace stripped", func(t *testing.T) {
		svc, repo, _ := newTestService()
		ctx := context.Background()

		repo.On("EmailExists", ctx, "alice@example.com").Return(false, nil)
		repo.On("UsernameExists", ctx, "alice").Return(false, nil)
		repo.On("Create", ctx, mock.MatchedBy(func(u *domain.User) bool {
			return u.Username == "alice"
		})).Return(nil)

		out, err := svc.Register(ctx, &RegisterInput{
			Email:    "alice@example.com",
			Username: "  alice  ",
			Password: "secret123",
		})

		require.NoError(t, err)
		assert.Equal(t, "alice", out.User.Username)
		repo.AssertExpectations(t)
	})

	t.Run("rejects a taken email", func(t *testing.T) {
		svc, repo, _ := newTestService()
		ctx := context.Background()

		repo.On("EmailExists", ctx, "alice@example.com").Return(true, nil)

		_, err := svc.Register(ctx, &RegisterInput{
			Email:    "alice@example.com",
			Username: "alice",
			Password: "secret123",
		})

		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeEmailExists))
	})

	t.Run("rejects invalid input before touching storage", func(t *testing.T) {
		svc, repo, _ := newTestService()
		ctx := context.Background()

		cases := []*RegisterInput{
			{Username: "alice", Password: "secret123"},
			{Email: "not-an-email", Username: "alice", Password: "secret123"},
			{Email: "alice@example.com", Username: "al", Password: "secret123"},
			{Email: "alice@example.com", Username: "alice", Password: "short"},
		}

		for _, input := range cases {
			_, err := svc.Register(ctx, input)
			assert.Error(t, err)
		}

		repo.AssertNotCalled(t, "EmailExists", mock.Anything, mock.Anything)
	})
}

func TestLogin(t *testing.T) {
	hash, err := password.Hash("secret123")
	require.NoError(t, err)

	user := &domain.User{
		UserID:       uuid.New(),
		Email:        "alice@example.com",
		Username:     "alice",
		PasswordHash: hash,
		Status:       domain.UserStatusActive,
	}

	t.Run("authenticates with valid credentials", func(t *testing.T) {
		svc, repo, _ := newTestService()
		ctx := context.Background()

		repo.On("GetByEmail", ctx, "alice@example.com").Return(user, nil)

		out, err := svc.Login(ctx, &LoginInput{Email: "alice@example.com", Password: "secret123"})
		require.NoError(t, err)
		assert.Equal(t, user.UserID, out.User.UserID)
	})

	t.Run("rejects a wrong password", func(t *testing.T) {
		svc, repo, _ := newTestService()
		ctx := context.Background()

		repo.On("GetByEmail", ctx, "alice@example.com").Return(user, nil)

		_, err := svc.Login(ctx, &LoginInput{Email: "alice@example.com", Password: "wrong"})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidCreds))
	})

	t.Run("does not reveal whether the account exists", func(t *testing.T) {
		svc, repo, _ := newTestService()
		ctx := context.Background()

		repo.On("GetByEmail", ctx, "ghost@example.com").Return(nil, apperrors.UserNotFoundError())

		_, err := svc.Login(ctx, &LoginInput{Email: "ghost@example.com", Password: "secret123"})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidCreds))
	})

	t.Run("rejects a banned account", func(t *testing.T) {
		svc, repo, _ := newTestService()
		ctx := context.Background()

		banned := *user
		banned.Status = domain.UserStatusBanned
		repo.On("GetByEmail", ctx, "alice@example.com").Return(&banned, nil)

		_, err := svc.Login(ctx, &LoginInput{Email: "alice@example.com", Password: "secret123"})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUnauthorized))
	})
}

func TestRefresh(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	user := &domain.User{
		UserID:   uuid.New(),
		Email:    "alice@example.com",
		Username: "alice",
		Status:   domain.UserStatusActive,
	}

	refreshToken, err := svc.jwtManager.GenerateRefreshToken(user.UserID)
	require.NoError(t, err)

	repo.On("GetByID", ctx, user.UserID).Return(user, nil)

	out, err := svc.Refresh(ctx, refreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, out.AccessToken)

	_, err = svc.Refresh(ctx, "garbage")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidToken))
}

func TestSavePushToken(t *testing.T) {
	svc, _, tokens := newTestService()
	ctx := context.Background()
	userID := uuid.New()

	tokens.On("Upsert", ctx, userID, "ExponentPushToken[abc]").Return(nil)

	assert.NoError(t, svc.SavePushToken(ctx, userID, "ExponentPushToken[abc]"))
	assert.Error(t, svc.SavePushToken(ctx, userID, ""))

	tokens.AssertExpectations(t)
}
