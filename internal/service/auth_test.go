package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ayushgupta1777/f-vite-backend/internal/auth"
	"github.com/ayushgupta1777/f-vite-backend/internal/errs"
	"github.com/ayushgupta1777/f-vite-backend/internal/repository"
)

func newTestAuth(t *testing.T) (*AuthService, *auth.Manager) {
	t.Helper()
	store := repository.NewMemoryStore()
	tokens := auth.NewManager("test-secret", time.Hour)
	svc := NewAuthService(store.Users(), tokens, auth.NewMemoryOTPStore(), zap.NewNop().Sugar())
	return svc, tokens
}

func TestSignupIssuesToken(t *testing.T) {
	ctx := context.Background()
	svc, tokens := newTestAuth(t)

	token, user, err := svc.Signup(ctx, "111")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "111", user.Mobile)
	assert.NotEmpty(t, user.ID)

	claims, err := tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "111", claims.Mobile)
	assert.Equal(t, user.ID, claims.Subject)
}

func TestSignupDuplicateIsConflict(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestAuth(t)

	_, _, err := svc.Signup(ctx, "111")
	require.NoError(t, err)
	_, _, err = svc.Signup(ctx, "111")
	require.Error(t, err)
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))
}

func TestSignupValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestAuth(t)

	_, _, err := svc.Signup(ctx, "   ")
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	svc, tokens := newTestAuth(t)

	_, created, err := svc.Signup(ctx, "111")
	require.NoError(t, err)

	token, user, err := svc.Login(ctx, "111")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)
	_, err = tokens.Verify(token)
	assert.NoError(t, err)

	_, _, err = svc.Login(ctx, "999")
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestOTPFlow(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestAuth(t)

	_, _, err := svc.Signup(ctx, "111")
	require.NoError(t, err)

	code, err := svc.RequestOTP(ctx, "111")
	require.NoError(t, err)
	require.Len(t, code, otpLength)

	// Wrong code fails and consumes the pending code.
	_, _, err = svc.VerifyOTP(ctx, "111", "0000x")
	require.Error(t, err)

	code, err = svc.RequestOTP(ctx, "111")
	require.NoError(t, err)
	token, user, err := svc.VerifyOTP(ctx, "111", code)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "111", user.Mobile)

	// Single use.
	_, _, err = svc.VerifyOTP(ctx, "111", code)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestUpdateProfilePicture(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestAuth(t)

	_, _, err := svc.Signup(ctx, "111")
	require.NoError(t, err)

	user, err := svc.UpdateProfilePicture(ctx, "111", "https://cdn.example.com/a.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a.png", user.ProfilePicture)

	_, err = svc.UpdateProfilePicture(ctx, "111", "   ")
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	_, err = svc.UpdateProfilePicture(ctx, "999", "https://cdn.example.com/b.png")
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestOTPUnknownUser(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestAuth(t)

	_, err := svc.RequestOTP(ctx, "999")
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}
