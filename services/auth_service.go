package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Mustafaygtbs/CertificateManagement/models"
	"github.com/Mustafaygtbs/CertificateManagement/repositories"
	"github.com/google/uuid"
)

type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     string
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *models.User
}

type AuthService struct {
	store  repositories.Store
	hasher *PasswordHasher
	tokens *TokenIssuer
	log    *slog.Logger
}

func NewAuthService(store repositories.Store, hasher *PasswordHasher, tokens *TokenIssuer, log *slog.Logger) *AuthService {
	return &AuthService{store: store, hasher: hasher, tokens: tokens, log: log}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a user. A second registration with the same email fails
// with ErrEmailTaken and leaves the store unchanged.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	const op = "services.auth.Register"

	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" || strings.TrimSpace(in.Username) == "" {
		return nil, fmt.Errorf("%s: username, email and password are required: %w", op, ErrInvalid)
	}
	role := in.Role
	if role == "" {
		role = models.RoleUser
	}
	if !models.ValidRole(role) {
		return nil, fmt.Errorf("%s: unknown role %q: %w", op, role, ErrInvalid)
	}

	_, err := s.store.Users().GetByEmail(ctx, email)
	if err == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user := &models.User{
		Username:     strings.TrimSpace(in.Username),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.store.Users().Add(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user_registered", slog.String("user_id", user.ID.String()), slog.String("role", user.Role))
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	const op = "services.auth.Login"

	if password == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	user, err := s.store.Users().GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// ChangePassword replaces the hash with one derived under a new salt. No
// history or complexity policy is applied.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	const op = "services.auth.ChangePassword"

	if next == "" {
		return fmt.Errorf("%s: new password is required: %w", op, ErrInvalid)
	}

	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return storeErr(op, err)
	}
	if !s.hasher.Verify(current, user.PasswordHash) {
		return fmt.Errorf("%s: %w", op, ErrWrongPassword)
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	user.PasswordHash = hash
	if err := s.store.Users().Update(ctx, user); err != nil {
		return storeErr(op, err)
	}

	s.log.Info("password_changed", slog.String("user_id", user.ID.String()))
	return nil
}
