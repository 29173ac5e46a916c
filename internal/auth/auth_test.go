package auth

import (
	"context"
	"testing"
	"time"

	"ai-trading-assistant-go/internal/testutil"
	"ai-trading-assistant-go/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) *Service {
	db := testutil.NewDB(t)
	return NewService(db, NewTokenManager("test-secret", time.Hour), 10000, zap.NewNop())
}

func TestTokenManager(t *testing.T) {
	t.Run("Round trip", func(t *testing.T) {
		m := NewTokenManager("secret", time.Hour)
		token, exp, err := m.Issue(42)
		require.NoError(t, err)
		assert.True(t, exp.After(time.Now()))

		id, err := m.Parse(token)
		require.NoError(t, err)
		assert.Equal(t, uint(42), id)
	})

	t.Run("Wrong secret", func(t *testing.T) {
		token, _, err := NewTokenManager("a", time.Hour).Issue(1)
		require.NoError(t, err)

		_, err = NewTokenManager("b", time.Hour).Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Expired", func(t *testing.T) {
		m := NewTokenManager("secret", time.Minute)
		m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, _, err := m.Issue(1)
		require.NoError(t, err)

		m.now = time.Now
		_, err = m.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestService_RegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	// Arrange
	user, err := svc.Register(ctx, "alice", "alice@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, 10000.0, user.Balance)
	assert.NotEqual(t, "secret123", user.PasswordHash)

	t.Run("Duplicate username", func(t *testing.T) {
		_, err := svc.Register(ctx, "alice", "other@example.com", "secret123")
		assert.EqualError(t, err, "Username already exists")
		assert.True(t, validation.IsValidationError(err))
	})

	t.Run("Duplicate email", func(t *testing.T) {
		_, err := svc.Register(ctx, "bob", "alice@example.com", "secret123")
		assert.EqualError(t, err, "Email already registered")
	})

	t.Run("Login by username", func(t *testing.T) {
		u, token, err := svc.Login(ctx, "alice", "secret123")
		require.NoError(t, err)
		assert.Equal(t, user.ID, u.ID)

		id, err := svc.Tokens().Parse(token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, id)
	})

	t.Run("Login by email", func(t *testing.T) {
		_, _, err := svc.Login(ctx, "alice@example.com", "secret123")
		assert.NoError(t, err)
	})

	t.Run("Wrong password", func(t *testing.T) {
		_, _, err := svc.Login(ctx, "alice", "nope")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("Unknown user", func(t *testing.T) {
		_, _, err := svc.Login(ctx, "mallory", "secret123")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	user, err := svc.Register(ctx, "carol", "carol@example.com", "secret123")
	require.NoError(t, err)

	t.Run("Email change", func(t *testing.T) {
		updated, err := svc.UpdateProfile(ctx, user.ID, ProfileUpdate{Email: "carol@new.io"})
		require.NoError(t, err)
		assert.Equal(t, "carol@new.io", updated.Email)
	})

	t.Run("Password change needs current password", func(t *testing.T) {
		_, err := svc.UpdateProfile(ctx, user.ID, ProfileUpdate{NewPassword: "another1"})
		assert.Error(t, err)

		_, err = svc.UpdateProfile(ctx, user.ID, ProfileUpdate{CurrentPassword: "wrong", NewPassword: "another1"})
		assert.EqualError(t, err, "Current password is incorrect")
	})

	t.Run("Password change", func(t *testing.T) {
		_, err := svc.UpdateProfile(ctx, user.ID, ProfileUpdate{CurrentPassword: "secret123", NewPassword: "another1"})
		require.NoError(t, err)

		_, _, err = svc.Login(ctx, "carol", "another1")
		assert.NoError(t, err)
	})

	t.Run("No changes", func(t *testing.T) {
		_, err := svc.UpdateProfile(ctx, user.ID, ProfileUpdate{})
		assert.EqualError(t, err, "No changes provided")
	})
}
