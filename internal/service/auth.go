package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ayushgupta1777/f-vite-backend/internal/auth"
	"github.com/ayushgupta1777/f-vite-backend/internal/errs"
	"github.com/ayushgupta1777/f-vite-backend/internal/models"
	"github.com/ayushgupta1777/f-vite-backend/internal/repository"
)

const (
	otpLength = 4
	otpTTL    = 5 * time.Minute
)

// AuthService owns account creation and credential issuance. The chat
// engine itself only ever sees an already-verified phone number.
type AuthService struct {
	users  repository.Users
	tokens *auth.Manager
	otps   auth.OTPStore
	log    *zap.SugaredLogger
}

func NewAuthService(users repository.Users, tokens *auth.Manager, otps auth.OTPStore, log *zap.SugaredLogger) *AuthService {
	return &AuthService{users: users, tokens: tokens, otps: otps, log: log}
}

// Signup creates an account and issues a token. A duplicate mobile
// number is a conflict, not a silent login.
func (s *AuthService) Signup(ctx context.Context, mobile string) (string, *models.User, error) {
	mobile = strings.TrimSpace(mobile)
	if mobile == "" {
		return "", nil, errs.Validation("mobile number is required")
	}
	u := &models.User{Mobile: mobile}
	if err := s.users.Create(ctx, u); err != nil {
		return "", nil, err
	}
	token, err := s.tokens.Issue(u.ID, u.Mobile)
	if err != nil {
		return "", nil, errs.Internal("token issue failed", err)
	}
	return token, u, nil
}

func (s *AuthService) Login(ctx context.Context, mobile string) (string, *models.User, error) {
	mobile = strings.TrimSpace(mobile)
	if mobile == "" {
		return "", nil, errs.Validation("mobile number is required")
	}
	u, err := s.users.FindByMobile(ctx, mobile)
	if err != nil {
		return "", nil, err
	}
	_ = s.users.TouchLastSeen(ctx, mobile, time.Now().UTC())
	token, err := s.tokens.Issue(u.ID, u.Mobile)
	if err != nil {
		return "", nil, errs.Internal("token issue failed", err)
	}
	return token, u, nil
}

// RequestOTP generates a one-time login code for an existing account
// and stores it with a bounded lifetime. Delivering the code (SMS) is a
// collaborator's job; it is returned here for that collaborator.
func (s *AuthService) RequestOTP(ctx context.Context, mobile string) (string, error) {
	mobile = strings.TrimSpace(mobile)
	if mobile == "" {
		return "", errs.Validation("mobile number is required")
	}
	if s.otps == nil {
		return "", errs.Validation("otp login is not enabled")
	}
	if _, err := s.users.FindByMobile(ctx, mobile); err != nil {
		return "", err
	}
	code := auth.GenerateOTP(otpLength)
	if err := s.otps.Put(ctx, mobile, code, otpTTL); err != nil {
		return "", err
	}
	return code, nil
}

// VerifyOTP exchanges a pending code for a token. Codes are single-use.
func (s *AuthService) VerifyOTP(ctx context.Context, mobile, code string) (string, *models.User, error) {
	mobile = strings.TrimSpace(mobile)
	if mobile == "" || code == "" {
		return "", nil, errs.Validation("mobile number and otp are required")
	}
	if s.otps == nil {
		return "", nil, errs.Validation("otp login is not enabled")
	}
	stored, err := s.otps.Take(ctx, mobile)
	if err != nil {
		return "", nil, err
	}
	if stored != code {
		return "", nil, errs.Validation("invalid otp")
	}
	return s.Login(ctx, mobile)
}

// UpdateProfilePicture sets the caller's avatar URL and returns the
// updated profile.
func (s *AuthService) UpdateProfilePicture(ctx context.Context, mobile, url string) (*models.User, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errs.Validation("profile picture url is required")
	}
	if err := s.users.UpdateProfilePicture(ctx, mobile, url); err != nil {
		return nil, err
	}
	return s.users.FindByMobile(ctx, mobile)
}

// Me resolves the account behind a verified token.
func (s *AuthService) Me(ctx context.Context, mobile string) (*models.User, error) {
	return s.users.FindByMobile(ctx, mobile)
}
