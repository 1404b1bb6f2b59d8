package auth

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/hklaunchpad/site/internal/config"
	"github.com/hklaunchpad/site/internal/models"
	"github.com/hklaunchpad/site/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		SecretKey:         "test-secret",
		SessionDuration:   time.Hour,
		DefaultCommission: decimal.NewFromInt(500),
	}
	return NewService(cfg, storage.NewPartnerRepository(db), storage.NewSessionRepository(db))
}

func TestService_RegisterAndLogin(t *testing.T) {
	svc := newTestService(t)

	partner, err := svc.Register(RegisterInput{Email: " Agent@Example.com ", Password: "password123", Name: "Agent"})
	require.NoError(t, err)
	assert.Equal(t, "agent@example.com", partner.Email)
	assert.True(t, models.IsValidReferralCode(partner.ReferralCode))
	assert.Equal(t, models.RolePartner, partner.Role)
	assert.True(t, partner.Commission.Equal(decimal.NewFromInt(500)))

	result, err := svc.Login(LoginInput{Email: "agent@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)

	validated, err := svc.ValidateToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, partner.ID, validated.ID)
}

func TestService_RegisterRejectsDuplicatesAndWeakPasswords(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Register(RegisterInput{Email: "a@example.com", Password: "short", Name: "A"})
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, err = svc.Register(RegisterInput{Email: "a@example.com", Password: "password123", Name: "A"})
	require.NoError(t, err)

	_, err = svc.Register(RegisterInput{Email: "a@example.com", Password: "password123", Name: "A"})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestService_LoginWrongPassword(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Register(RegisterInput{Email: "a@example.com", Password: "password123", Name: "A"})
	require.NoError(t, err)

	_, err = svc.Login(LoginInput{Email: "a@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(LoginInput{Email: "nobody@example.com", Password: "password123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_LogoutRevokesToken(t *testing.T) {
	svc := newTestService(t)
	partner, err := svc.Register(RegisterInput{Email: "a@example.com", Password: "password123", Name: "A"})
	require.NoError(t, err)

	result, err := svc.Login(LoginInput{Email: "a@example.com", Password: "password123"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(partner.ID))

	_, err = svc.ValidateToken(result.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestService_ValidateTokenRejectsGarbage(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.ValidateToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestService_EnsureAdmin(t *testing.T) {
	svc := newTestService(t)

	none, err := svc.EnsureAdmin("", "")
	require.NoError(t, err)
	assert.Nil(t, none)

	admin, err := svc.EnsureAdmin("admin@example.com", "admin-password")
	require.NoError(t, err)
	require.NotNil(t, admin)
	assert.True(t, admin.IsAdmin())
	assert.True(t, admin.Commission.IsZero())

	again, err := svc.EnsureAdmin("admin@example.com", "admin-password")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, again.ID)
}
