package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/comeencasa/restaurant-api/internal/auth"
	"github.com/comeencasa/restaurant-api/internal/domain"
	"github.com/comeencasa/restaurant-api/internal/repository"
	apperrors "github.com/comeencasa/restaurant-api/pkg/errors"
)

// RegisterInput holds the parameters for registering a new user.
type RegisterInput struct {
	Email    string
	Username string
	Password string
}

// LoginInput identifies the account by Email or, when empty, Username.
type LoginInput struct {
	Email    string
	Username string
	Password string
}

// RegisterResult is either RegisterCreated or RegisterConflict.
type RegisterResult interface {
	isRegisterResult()
}

// RegisterCreated carries the newly stored user.
type RegisterCreated struct {
	User *domain.User
}

// RegisterConflict names the unique field ("email" or "username") that is
// already taken.
type RegisterConflict struct {
	Field string
}

func (RegisterCreated) isRegisterResult()  {}
func (RegisterConflict) isRegisterResult() {}

// LoginResult is either LoginSucceeded or LoginRejected.
type LoginResult interface {
	isLoginResult()
}

// LoginSucceeded carries the issued tokens.
type LoginSucceeded struct {
	Tokens *domain.TokenPair
}

// LoginRejected does not say whether the account or the password was wrong.
type LoginRejected struct{}

func (LoginSucceeded) isLoginResult() {}
func (LoginRejected) isLoginResult()  {}

var errInvalidRefreshToken = apperrors.Unauthorized("invalid or expired refresh token")

// AuthService implements registration, login and token lifecycle.
type AuthService struct {
	users    repository.UserRepository
	tokens   repository.RefreshTokenRepository
	hasher   *auth.Hasher
	jwt      *auth.Manager
	denylist auth.Denylist
	logger   *slog.Logger
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService creates the service. denylist may be nil, in which case
// logout only revokes refresh tokens.
func NewAuthService(
	users repository.UserRepository,
	tokens repository.RefreshTokenRepository,
	hasher *auth.Hasher,
	jwt *auth.Manager,
	denylist auth.Denylist,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		hasher:   hasher,
		jwt:      jwt,
		denylist: denylist,
		logger:   logger,
		now:      time.Now,
	}
}

// Register hashes the password and stores a new user with role "user".
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (RegisterResult, error) {
	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && errors.Is(err, apperrors.ErrAlreadyExists) {
			return RegisterConflict{Field: appErr.Field}, nil
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.Int64("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return RegisterCreated{User: user}, nil
}

// Login verifies the credentials and issues an access/refresh token pair.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (LoginResult, error) {
	var (
		user *domain.User
		err  error
	)
	if input.Email != "" {
		user, err = s.users.GetByEmail(ctx, input.Email)
	} else {
		user, err = s.users.GetByUsername(ctx, input.Username)
	}
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("look up user: %w", err)
		}
		// Spend the same bcrypt work as a real comparison.
		s.hasher.Verify(input.Password, s.dummy())
		s.logger.InfoContext(ctx, "login rejected", slog.String("reason", "unknown account"))
		return LoginRejected{}, nil
	}

	if !s.hasher.Verify(input.Password, user.PasswordHash) {
		s.logger.InfoContext(ctx, "login rejected",
			slog.String("reason", "wrong password"),
			slog.Int64("user_id", user.ID),
		)
		return LoginRejected{}, nil
	}

	tokens, err := s.issuePair(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user logged in", slog.Int64("user_id", user.ID))
	return LoginSucceeded{Tokens: tokens}, nil
}

// Refresh exchanges a live refresh token for a new pair and revokes the old
// one. Presenting an already revoked token revokes every token of the user.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.jwt.VerifyRefresh(refreshToken)
	if err != nil {
		s.logger.InfoContext(ctx, "refresh rejected", slog.String("reason", err.Error()))
		return nil, errInvalidRefreshToken
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, errInvalidRefreshToken
	}

	hash := hashToken(refreshToken)
	stored, err := s.tokens.GetByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, errInvalidRefreshToken
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}

	if stored.RevokedAt != nil {
		s.logger.WarnContext(ctx, "revoked refresh token reused, revoking all sessions",
			slog.Int64("user_id", stored.UserID),
		)
		if err := s.tokens.RevokeByUserID(ctx, stored.UserID); err != nil {
			return nil, fmt.Errorf("revoke user tokens: %w", err)
		}
		return nil, errInvalidRefreshToken
	}
	if !stored.Usable(s.now()) || stored.UserID != userID {
		return nil, errInvalidRefreshToken
	}

	if err := s.tokens.Revoke(ctx, hash); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, errInvalidRefreshToken
		}
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, errInvalidRefreshToken
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	tokens, err := s.issuePair(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tokens refreshed", slog.Int64("user_id", userID))
	return tokens, nil
}

// Logout revokes every refresh token of the user and denylists the access
// token described by claims until it expires.
func (s *AuthService) Logout(ctx context.Context, userID int64, claims *auth.AccessClaims) error {
	if err := s.tokens.RevokeByUserID(ctx, userID); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}

	if s.denylist != nil && claims != nil && claims.ID != "" {
		if err := s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAtTime()); err != nil {
			return fmt.Errorf("revoke access token: %w", err)
		}
	}

	s.logger.InfoContext(ctx, "user logged out", slog.Int64("user_id", userID))
	return nil
}

// Me returns the caller's own record.
func (s *AuthService) Me(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user", userID)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// DeleteUser removes a user. Their refresh tokens and orders go with them.
func (s *AuthService) DeleteUser(ctx context.Context, userID int64) error {
	if err := s.users.Delete(ctx, userID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "user deleted", slog.Int64("user_id", userID))
	return nil
}

func (s *AuthService) issuePair(ctx context.Context, userID int64) (*domain.TokenPair, error) {
	access, err := s.jwt.IssueAccess(userID, 0)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.jwt.IssueRefresh(userID, 0)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	if err := s.tokens.Create(ctx, userID, hashToken(refresh.Token), refresh.ExpiresAt); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  access.Token,
		RefreshToken: refresh.Token,
		TokenType:    domain.TokenTypeBearer,
		UserID:       userID,
	}, nil
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("not-a-real-password")
	})
	return s.dummyHash
}

// hashToken returns the SHA256 hex digest of the given token string.
func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
