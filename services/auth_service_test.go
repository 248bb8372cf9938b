package services

import (
	"context"
	"testing"

	"github.com/Mustafaygtbs/CertificateManagement/logging"
	"github.com/Mustafaygtbs/CertificateManagement/models"
	"github.com/Mustafaygtbs/CertificateManagement/repositories/repotest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthFixture() (*repotest.Store, *AuthService) {
	store := repotest.NewStore()
	svc := NewAuthService(store, NewPasswordHasher(1000), NewTokenIssuer(testJWTConfig()), logging.Discard())
	return store, svc
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	_, svc := newAuthFixture()

	user, err := svc.Register(ctx, RegisterInput{Username: "ada", Email: " Ada@Example.com ", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.NotEqual(t, "s3cret", user.PasswordHash)

	res, err := svc.Login(ctx, "ADA@example.com", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, user.ID, res.User.ID)
	assert.False(t, res.ExpiresAt.IsZero())
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	store, svc := newAuthFixture()

	_, err := svc.Register(ctx, RegisterInput{Username: "a", Email: "a@example.com", Password: "x"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{Username: "b", Email: "a@example.com", Password: "y"})
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 1, store.UserCount())
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	_, svc := newAuthFixture()

	for name, in := range map[string]RegisterInput{
		"missing email":    {Username: "a", Password: "x"},
		"missing password": {Username: "a", Email: "a@example.com"},
		"missing username": {Email: "a@example.com", Password: "x"},
		"unknown role":     {Username: "a", Email: "a@example.com", Password: "x", Role: "Root"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Register(ctx, in)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoginFailures(t *testing.T) {
	ctx := context.Background()
	_, svc := newAuthFixture()

	_, err := svc.Register(ctx, RegisterInput{Username: "a", Email: "a@example.com", Password: "right"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "a@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@example.com", "right")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "a@example.com", "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	_, svc := newAuthFixture()

	user, err := svc.Register(ctx, RegisterInput{Username: "a", Email: "a@example.com", Password: "old"})
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, user.ID, "not-old", "new")
	assert.ErrorIs(t, err, ErrWrongPassword)

	err = svc.ChangePassword(ctx, user.ID, "old", "")
	assert.ErrorIs(t, err, ErrInvalid)

	require.NoError(t, svc.ChangePassword(ctx, user.ID, "old", "new"))

	_, err = svc.Login(ctx, "a@example.com", "old")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "a@example.com", "new")
	assert.NoError(t, err)

	err = svc.ChangePassword(ctx, uuid.New(), "new", "newer")
	assert.ErrorIs(t, err, ErrNotFound)
}
