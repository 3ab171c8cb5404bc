package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/shades-uz/api/internal/platform/auth"
	"github.com/shades-uz/api/internal/repositories"
)

var (
	// ErrAuthInvalidCredentials signals an unknown username or wrong password.
	ErrAuthInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrAuthInvalidInput signals the caller provided invalid data.
	ErrAuthInvalidInput = errors.New("auth: invalid input")
	// ErrAuthUserNotFound indicates the account behind a session no longer exists.
	ErrAuthUserNotFound = errors.New("auth: user not found")
)

// TokenIssuer signs session tokens for an authenticated identity.
type TokenIssuer interface {
	Issue(identity auth.Identity) (string, time.Time, error)
}

// AuthServiceDeps bundles collaborators for the auth service.
type AuthServiceDeps struct {
	Users  repositories.UserRepository
	Tokens TokenIssuer
}

type authService struct {
	users  repositories.UserRepository
	tokens TokenIssuer
}

var _ AuthService = (*authService)(nil)

// NewAuthService wires dependencies into a concrete AuthService implementation.
func NewAuthService(deps AuthServiceDeps) (AuthService, error) {
	if deps.Users == nil {
		return nil, errors.New("auth service: user repository is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("auth service: token issuer is required")
	}
	return &authService{users: deps.Users, tokens: deps.Tokens}, nil
}

func (s *authService) Login(ctx context.Context, cmd LoginCommand) (AuthSession, error) {
	username := strings.TrimSpace(cmd.Username)
	if username == "" {
		return AuthSession{}, fmt.Errorf("%w: username is required", ErrAuthInvalidInput)
	}
	if cmd.Password == "" {
		return AuthSession{}, fmt.Errorf("%w: password is required", ErrAuthInvalidInput)
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return AuthSession{}, ErrAuthInvalidCredentials
		}
		return AuthSession{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(cmd.Password)); err != nil {
		return AuthSession{}, ErrAuthInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(auth.Identity{
		UserID:   user.ID,
		Username: user.Username,
		Role:     string(user.Role),
		Locale:   string(user.PreferredLanguage),
	})
	if err != nil {
		return AuthSession{}, fmt.Errorf("auth service: issue token: %w", err)
	}

	user.PasswordHash = ""
	return AuthSession{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *authService) CurrentUser(ctx context.Context, userID string) (User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, fmt.Errorf("%w: user id is required", ErrAuthInvalidInput)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return User{}, fmt.Errorf("%w: %s", ErrAuthUserNotFound, userID)
		}
		return User{}, err
	}

	user.PasswordHash = ""
	return user, nil
}
