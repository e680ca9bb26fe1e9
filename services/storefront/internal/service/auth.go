package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/souq/pkg/apperr"
	"github.com/Skotchmaster/souq/pkg/logging"
	"github.com/Skotchmaster/souq/pkg/tokens"
	"github.com/Skotchmaster/souq/services/storefront/internal/models"
	"github.com/Skotchmaster/souq/services/storefront/internal/repo"
	"github.com/Skotchmaster/souq/services/storefront/internal/transport"
)

var (
	moroccanMobile = regexp.MustCompile(`^(\+212|0)[5-7][0-9]{8}$`)
	emailPattern   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	notPhoneChar   = regexp.MustCompile(`[^\d+]`)
)

type AuthService struct {
	Repo          *repo.GormRepo
	AccessSecret  []byte
	RefreshSecret []byte
	Now           func() time.Time
}

type LoginResult struct {
	User    *models.User
	Tokens  transport.TokenPair
	Created bool
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func ValidPhone(phone string) bool {
	return moroccanMobile.MatchString(strings.Join(strings.Fields(phone), ""))
}

// CanonicalPhone reduces a Moroccan number to its +212 form.
func CanonicalPhone(phone string) string {
	cleaned := notPhoneChar.ReplaceAllString(phone, "")
	if strings.HasPrefix(cleaned, "0") {
		cleaned = "+212" + cleaned[1:]
	}
	if !strings.HasPrefix(cleaned, "+") {
		cleaned = "+212" + cleaned
	}
	return cleaned
}

func defaultName(phone string) string {
	if len(phone) > 4 {
		phone = phone[len(phone)-4:]
	}
	return "Client " + phone
}

func (s *AuthService) issue(ctx context.Context, user *models.User) (transport.TokenPair, *models.RefreshToken, error) {
	now := s.now()
	access, err := tokens.NewAccessToken(user.ID.String(), user.Phone, now.Add(tokens.AccessTTL), s.AccessSecret)
	if err != nil {
		return transport.TokenPair{}, nil, err
	}

	jti := tokens.NewJTI()
	refreshExp := now.Add(tokens.RefreshTTL)
	refresh, err := tokens.NewRefreshToken(user.ID.String(), jti, refreshExp, s.RefreshSecret)
	if err != nil {
		return transport.TokenPair{}, nil, err
	}

	row := &models.RefreshToken{
		UserID:    user.ID,
		TokenHash: tokens.Sha256Hex(refresh),
		JTI:       jti,
		ExpiresAt: refreshExp.UTC(),
	}
	return transport.TokenPair{AccessToken: access, RefreshToken: refresh}, row, nil
}

// Login signs a phone number in, creating the account on first use.
func (s *AuthService) Login(ctx context.Context, phone, name string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	if strings.TrimSpace(phone) == "" {
		return nil, fmt.Errorf("%w: phone is required", apperr.ErrValidation)
	}
	if !ValidPhone(phone) {
		return nil, fmt.Errorf("%w: phone must be a Moroccan mobile number (+212XXXXXXXXX or 0XXXXXXXXX)", apperr.ErrValidation)
	}
	canonical := CanonicalPhone(phone)

	display := strings.TrimSpace(name)
	if display == "" {
		display = defaultName(canonical)
	}

	user, created, err := s.Repo.FindOrCreateUserByPhone(ctx, canonical, display)
	if err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot load user", "error", err)
		return nil, err
	}

	pair, row, err := s.issue(ctx, user)
	if err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot sign tokens", "error", err)
		return nil, err
	}
	if err := s.Repo.AddRefreshToken(ctx, row); err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot store refresh token", "error", err)
		return nil, err
	}

	l.Info("login_success", "user_id", user.ID, "created", created)
	return &LoginResult{User: user, Tokens: pair, Created: created}, nil
}

// Refresh rotates the pair: the presented refresh token is revoked and a new one stored.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (transport.TokenPair, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	if refreshToken == "" {
		return transport.TokenPair{}, fmt.Errorf("%w: refreshToken is required", apperr.ErrValidation)
	}
	claims, err := tokens.RefreshClaimsFromToken(refreshToken, s.RefreshSecret)
	if err != nil {
		l.Warn("refresh_failed", "status", 401, "reason", "invalid refresh token", "error", err)
		return transport.TokenPair{}, fmt.Errorf("%w: invalid refresh token", apperr.ErrUnauthorized)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return transport.TokenPair{}, fmt.Errorf("%w: invalid refresh token subject", apperr.ErrUnauthorized)
	}

	user, err := s.Repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return transport.TokenPair{}, fmt.Errorf("%w: user no longer exists", apperr.ErrUnauthorized)
		}
		return transport.TokenPair{}, err
	}

	pair, row, err := s.issue(ctx, user)
	if err != nil {
		return transport.TokenPair{}, err
	}
	if err := s.Repo.RotateRefreshToken(ctx, claims.ID, user.ID, row, s.now().UTC()); err != nil {
		l.Warn("refresh_failed", "status", apperr.Status(err), "error", err)
		return transport.TokenPair{}, err
	}
	return pair, nil
}

func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := tokens.RefreshClaimsFromToken(refreshToken, s.RefreshSecret)
	if err != nil {
		return fmt.Errorf("%w: invalid refresh token", apperr.ErrUnauthorized)
	}
	return s.Repo.RevokeRefreshToken(ctx, claims.ID)
}

func (s *AuthService) Profile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.Repo.GetUserByID(ctx, userID)
}

// UpdateProfile applies only the allow-listed, non-empty fields.
func (s *AuthService) UpdateProfile(ctx context.Context, userID uuid.UUID, in transport.UpdateProfileRequest) (*models.User, error) {
	fields := map[string]any{}
	if in.Name != nil && strings.TrimSpace(*in.Name) != "" {
		fields["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil && strings.TrimSpace(*in.Email) != "" {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if !emailPattern.MatchString(email) {
			return nil, fmt.Errorf("%w: invalid email format", apperr.ErrValidation)
		}
		fields["email"] = email
	}
	if in.Address != nil && strings.TrimSpace(*in.Address) != "" {
		fields["address"] = strings.TrimSpace(*in.Address)
	}
	if in.City != nil && strings.TrimSpace(*in.City) != "" {
		fields["city"] = strings.TrimSpace(*in.City)
	}

	user, err := s.Repo.UpdateUser(ctx, userID, fields)
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, fmt.Errorf("%w: email already in use", apperr.ErrValidation)
		}
		return nil, err
	}
	return user, nil
}
