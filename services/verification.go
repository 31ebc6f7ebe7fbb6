package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/psicanalise-online/platform/config"
	"github.com/psicanalise-online/platform/models"
	"github.com/psicanalise-online/platform/repository"
	"github.com/psicanalise-online/platform/utils"
)

// VerificationService issues and redeems email verification tokens.
type VerificationService struct {
	store         repository.Store
	cooldown      Cooldown
	notifications *NotificationService
	cfg           config.VerificationConfig
	siteURL       string
	now           func() time.Time
	log           *zap.Logger
}

func NewVerificationService(store repository.Store, cooldown Cooldown, notifications *NotificationService, cfg *config.Config, log *zap.Logger) *VerificationService {
	return &VerificationService{
		store:         store,
		cooldown:      cooldown,
		notifications: notifications,
		cfg:           cfg.Verification,
		siteURL:       cfg.Site.BaseURL,
		now:           time.Now,
		log:           log,
	}
}

// RequestVerification sends a fresh verification email when the address
// belongs to an unverified active account. Every other case returns nil so
// the response does not reveal whether the account exists.
func (s *VerificationService) RequestVerification(ctx context.Context, rawEmail string) error {
	email, err := normalizeEmail(rawEmail)
	if err != nil {
		return err
	}

	profile, err := s.store.GetProfileByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return utils.NewInternal(err)
	}
	if profile.IsVerified() || !profile.CanAuthenticate() {
		return nil
	}

	if s.cooldown != nil {
		allowed, err := s.cooldown.Allow(ctx, "verify:resend:"+email, s.cfg.ResendCooldown)
		if err != nil {
			s.log.Warn("verification cooldown unavailable", zap.Error(err))
		} else if !allowed {
			return nil
		}
	}

	return s.issue(ctx, profile)
}

// issue rotates the profile's pending tokens and queues the email.
func (s *VerificationService) issue(ctx context.Context, profile *models.Profile) error {
	raw, hash, err := utils.GenerateToken()
	if err != nil {
		return utils.NewInternal(err)
	}
	now := s.now()
	link := fmt.Sprintf("%s/verify-email?token=%s", s.siteURL, raw)

	err = s.store.Tx(ctx, func(tx repository.Store) error {
		if err := tx.DeleteUnusedEmailVerifications(ctx, profile.ID); err != nil {
			return err
		}
		if err := tx.CreateEmailVerification(ctx, &models.EmailVerification{
			UserID:    profile.ID,
			TokenHash: hash,
			ExpiresAt: now.Add(s.cfg.TokenTTL),
		}); err != nil {
			return err
		}
		subject, body := utils.VerificationEmail(profile.Name, link, s.cfg.TokenTTL)
		return enqueueEmail(ctx, tx, now, profile.Email, subject, body)
	})
	if err != nil {
		return utils.NewInternal(fmt.Errorf("issue verification token: %w", err))
	}
	return nil
}

// Verify redeems a raw token and marks the profile's email as verified.
func (s *VerificationService) Verify(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return utils.NewValidation("token is required")
	}

	record, err := s.store.GetEmailVerificationByHash(ctx, utils.HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return utils.ErrInvalidToken
		}
		return utils.NewInternal(err)
	}
	if record.IsUsed() {
		return utils.ErrTokenAlreadyUsed
	}
	now := s.now()
	if record.IsExpired(now) {
		return utils.ErrTokenExpired
	}

	var created *models.Notification
	err = s.store.Tx(ctx, func(tx repository.Store) error {
		marked, err := tx.MarkEmailVerificationUsed(ctx, record.ID, now)
		if err != nil {
			return err
		}
		if !marked {
			return utils.ErrTokenAlreadyUsed
		}

		profile, err := tx.GetProfile(ctx, record.UserID)
		if err != nil {
			return err
		}
		profile.EmailVerifiedAt = &now
		if profile.Status == models.ProfilePending {
			profile.Status = models.ProfileActive
		}
		if err := tx.UpdateProfile(ctx, profile); err != nil {
			return err
		}

		created = &models.Notification{
			UserID:  profile.ID,
			Type:    models.NotifyEmailVerified,
			Title:   "Email confirmado",
			Message: "Seu email foi verificado com sucesso.",
		}
		if err := s.notifications.Create(ctx, tx, created); err != nil {
			return err
		}
		return enqueueEvent(ctx, tx, now, EventEmailVerified, fmt.Sprint(profile.ID), map[string]interface{}{
			"user_id":     profile.ID,
			"verified_at": now,
		})
	})
	if err != nil {
		return storeErr(err, "profile not found")
	}
	s.notifications.Push(created)
	return nil
}
