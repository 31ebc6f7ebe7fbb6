package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/psicanalise-online/platform/config"
	"github.com/psicanalise-online/platform/models"
	"github.com/psicanalise-online/platform/repository"
	"github.com/psicanalise-online/platform/utils"
)

const minPasswordLength = 8

type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

// SessionClaims are the claims carried by session tokens.
type SessionClaims struct {
	UserID uint        `json:"id"`
	Role   models.Role `json:"role"`
	Kind   TokenKind   `json:"kind"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken      string    `json:"token"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type RegisterInput struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Phone    string      `json:"phone"`
	Role     models.Role `json:"role"`
}

type AuthService struct {
	store        repository.Store
	verification *VerificationService
	uploader     MediaUploader
	cfg          config.JWTConfig
	now          func() time.Time
	log          *zap.Logger
}

func NewAuthService(store repository.Store, verification *VerificationService, uploader MediaUploader, cfg config.JWTConfig, log *zap.Logger) *AuthService {
	return &AuthService{
		store:        store,
		verification: verification,
		uploader:     uploader,
		cfg:          cfg,
		now:          time.Now,
		log:          log,
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", utils.NewValidation("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", utils.NewValidation("invalid email address")
	}
	return email, nil
}

// Register creates a pending client profile and sends the first
// verification email. Professionals are onboarded with CreateProfessional.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.Profile, error) {
	switch in.Role {
	case "", models.RoleClient:
	case models.RoleProfessional:
		return nil, utils.NewForbidden("professional accounts are created by the platform team")
	default:
		return nil, utils.NewValidation("role must be client")
	}
	profile, err := s.newProfile(in, models.RoleClient)
	if err != nil {
		return nil, err
	}
	profile.Status = models.ProfilePending
	if err := s.createProfile(ctx, profile); err != nil {
		return nil, err
	}

	if err := s.verification.issue(ctx, profile); err != nil {
		s.log.Error("failed to send first verification email", zap.Uint("user_id", profile.ID), zap.Error(err))
	}
	return profile, nil
}

// CreateProfessional onboards a professional account. It is an operator
// action and never reachable from the public API.
func (s *AuthService) CreateProfessional(ctx context.Context, in RegisterInput) (*models.Profile, error) {
	profile, err := s.newProfile(in, models.RoleProfessional)
	if err != nil {
		return nil, err
	}
	now := s.now()
	profile.Status = models.ProfileActive
	profile.EmailVerifiedAt = &now
	if err := s.createProfile(ctx, profile); err != nil {
		return nil, err
	}
	s.log.Info("professional account created", zap.Uint("user_id", profile.ID), zap.String("email", profile.Email))
	return profile, nil
}

func (s *AuthService) newProfile(in RegisterInput, role models.Role) (*models.Profile, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, utils.NewValidation("name is required")
	}
	if len(in.Password) < minPasswordLength {
		return nil, utils.NewValidation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, utils.NewInternal(fmt.Errorf("hash password: %w", err))
	}
	return &models.Profile{
		Name:         name,
		Email:        email,
		Phone:        strings.TrimSpace(in.Phone),
		PasswordHash: string(hash),
		Role:         role,
	}, nil
}

func (s *AuthService) createProfile(ctx context.Context, profile *models.Profile) error {
	if err := s.store.CreateProfile(ctx, profile); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return utils.NewConflict("user with this email already exists")
		}
		return utils.NewInternal(err)
	}
	return nil
}

// Login checks credentials and issues a token pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (*TokenPair, *models.Profile, error) {
	invalid := &utils.AppError{Kind: utils.KindUnauthorized, Message: "invalid credentials"}

	profile, err := s.store.GetProfileByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, invalid
		}
		return nil, nil, utils.NewInternal(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)); err != nil {
		return nil, nil, invalid
	}
	if !profile.CanAuthenticate() {
		return nil, nil, utils.NewForbidden("account is not available")
	}

	pair, err := s.IssueTokens(profile)
	if err != nil {
		return nil, nil, err
	}
	return pair, profile, nil
}

func (s *AuthService) sign(profile *models.Profile, kind TokenKind, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(ttl)
	claims := SessionClaims{
		UserID: profile.ID,
		Role:   profile.Role,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(profile.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", time.Time{}, utils.NewInternal(fmt.Errorf("sign %s token: %w", kind, err))
	}
	return signed, exp, nil
}

func (s *AuthService) IssueTokens(profile *models.Profile) (*TokenPair, error) {
	access, accessExp, err := s.sign(profile, TokenAccess, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.sign(profile, TokenRefresh, s.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// IssueAccessToken signs a fresh access token, used for session rotation.
func (s *AuthService) IssueAccessToken(profile *models.Profile) (string, time.Time, error) {
	return s.sign(profile, TokenAccess, s.cfg.AccessTokenTTL)
}

// ParseToken validates a session token of the given kind.
func (s *AuthService) ParseToken(raw string, kind TokenKind) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, utils.ErrUnauthorized
	}
	if claims.Kind != kind || claims.UserID == 0 {
		return nil, utils.ErrUnauthorized
	}
	return claims, nil
}

// Refresh exchanges a refresh token for a new pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, utils.NewValidation("refresh token is required")
	}
	claims, err := s.ParseToken(refreshToken, TokenRefresh)
	if err != nil {
		return nil, err
	}
	profile, err := s.store.GetProfile(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, utils.ErrUnauthorized
		}
		return nil, utils.NewInternal(err)
	}
	if !profile.CanAuthenticate() {
		return nil, utils.NewForbidden("account is not available")
	}
	return s.IssueTokens(profile)
}

func (s *AuthService) Me(ctx context.Context, caller Caller) (*models.Profile, error) {
	if caller.UserID == 0 {
		return nil, utils.ErrUnauthorized
	}
	profile, err := s.store.GetProfile(ctx, caller.UserID)
	if err != nil {
		return nil, storeErr(err, "profile not found")
	}
	return profile, nil
}

// UpdateAvatar uploads a profile picture and stores its URL.
func (s *AuthService) UpdateAvatar(ctx context.Context, caller Caller, file io.Reader) (*models.Profile, error) {
	if caller.UserID == 0 {
		return nil, utils.ErrUnauthorized
	}
	if s.uploader == nil {
		return nil, utils.NewValidation("image uploads are not available")
	}
	profile, err := s.store.GetProfile(ctx, caller.UserID)
	if err != nil {
		return nil, storeErr(err, "profile not found")
	}
	url, err := s.uploader.Upload(ctx, file, "avatars", fmt.Sprintf("profile-%d", profile.ID))
	if err != nil {
		return nil, utils.NewUpstream("failed to upload image", err)
	}
	profile.AvatarURL = url
	if err := s.store.UpdateProfile(ctx, profile); err != nil {
		return nil, utils.NewInternal(err)
	}
	return profile, nil
}
