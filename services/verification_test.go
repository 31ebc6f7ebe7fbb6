package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/psicanalise-online/platform/models"
	"github.com/psicanalise-online/platform/utils"
)

func registerPending(t *testing.T, f *fixture, email string) *models.Profile {
	t.Helper()
	p, err := f.auth.Register(f.ctx, RegisterInput{Name: "Ana", Email: email, Password: "secret123"})
	require.NoError(t, err)
	return p
}

func TestVerifyActivatesProfile(t *testing.T) {
	f := newFixture(t)
	p := registerPending(t, f, "ana@example.com")
	token := f.lastVerificationToken(t, "ana@example.com")

	require.NoError(t, f.verification.Verify(f.ctx, token))

	got, err := f.store.GetProfile(f.ctx, p.ID)
	require.NoError(t, err)
	require.True(t, got.IsVerified())
	require.Equal(t, models.ProfileActive, got.Status)

	page, err := f.notifications.List(f.ctx, Caller{UserID: p.ID}, ListNotificationsInput{})
	require.NoError(t, err)
	require.Len(t, page.Notifications, 1)
	require.Equal(t, models.NotifyEmailVerified, page.Notifications[0].Type)
}

func TestVerifyTokenCannotBeReused(t *testing.T) {
	f := newFixture(t)
	registerPending(t, f, "ana@example.com")
	token := f.lastVerificationToken(t, "ana@example.com")

	require.NoError(t, f.verification.Verify(f.ctx, token))
	require.ErrorIs(t, f.verification.Verify(f.ctx, token), utils.ErrTokenAlreadyUsed)
}

func TestVerifyExpiredToken(t *testing.T) {
	f := newFixture(t)
	registerPending(t, f, "ana@example.com")
	token := f.lastVerificationToken(t, "ana@example.com")

	f.now = f.now.Add(24*time.Hour + time.Second)
	require.ErrorIs(t, f.verification.Verify(f.ctx, token), utils.ErrTokenExpired)
}

func TestVerifyRejectsUnknownAndEmptyTokens(t *testing.T) {
	f := newFixture(t)

	err := f.verification.Verify(f.ctx, "  ")
	require.Equal(t, utils.KindValidation, utils.KindOf(err))
	require.Equal(t, "token is required", utils.PublicMessage(err))

	require.ErrorIs(t, f.verification.Verify(f.ctx, "deadbeef"), utils.ErrInvalidToken)
}

func TestResendRotatesTokens(t *testing.T) {
	f := newFixture(t)
	registerPending(t, f, "ana@example.com")
	first := f.lastVerificationToken(t, "ana@example.com")

	require.NoError(t, f.verification.RequestVerification(f.ctx, "ana@example.com"))
	second := f.lastVerificationToken(t, "ana@example.com")
	require.NotEqual(t, first, second)

	require.ErrorIs(t, f.verification.Verify(f.ctx, first), utils.ErrInvalidToken)
	require.NoError(t, f.verification.Verify(f.ctx, second))
}

func TestResendIsIndistinguishable(t *testing.T) {
	f := newFixture(t)
	registerPending(t, f, "pending@example.com")
	f.profile(t, models.RoleClient, "Verified", "verified@example.com")
	blocked, _ := f.profile(t, models.RoleClient, "Blocked", "blocked@example.com")
	blocked.Status = models.ProfileBlocked
	blocked.EmailVerifiedAt = nil
	require.NoError(t, f.store.UpdateProfile(f.ctx, blocked))

	for _, email := range []string{"pending@example.com", "verified@example.com", "blocked@example.com", "nobody@example.com"} {
		require.NoError(t, f.verification.RequestVerification(f.ctx, email), email)
	}
	require.Empty(t, f.pendingEmails(t, "verified@example.com"))
	require.Empty(t, f.pendingEmails(t, "blocked@example.com"))
	require.Empty(t, f.pendingEmails(t, "nobody@example.com"))

	err := f.verification.RequestVerification(f.ctx, "not an email")
	require.Equal(t, utils.KindValidation, utils.KindOf(err))
}

func TestResendCooldown(t *testing.T) {
	f := newFixture(t)
	registerPending(t, f, "ana@example.com")
	require.Len(t, f.pendingEmails(t, "ana@example.com"), 1)

	require.NoError(t, f.verification.RequestVerification(f.ctx, "ana@example.com"))
	require.NoError(t, f.verification.RequestVerification(f.ctx, "ana@example.com"))
	require.Len(t, f.pendingEmails(t, "ana@example.com"), 2)
}
