// Package auth provides partner authentication services
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hklaunchpad/site/internal/config"
	"github.com/hklaunchpad/site/internal/models"
	"github.com/hklaunchpad/site/internal/storage"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailExists        = errors.New("email already registered")
	ErrSessionExpired     = errors.New("session expired")
	ErrInvalidToken       = errors.New("invalid token")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

// maxCodeAttempts bounds retries when a generated referral code collides
const maxCodeAttempts = 5

// Service handles partner authentication operations
type Service struct {
	cfg         *config.Config
	partnerRepo *storage.PartnerRepository
	sessionRepo *storage.SessionRepository
}

// NewService creates a new auth service
func NewService(cfg *config.Config, partnerRepo *storage.PartnerRepository, sessionRepo *storage.SessionRepository) *Service {
	return &Service{
		cfg:         cfg,
		partnerRepo: partnerRepo,
		sessionRepo: sessionRepo,
	}
}

// RegisterInput contains partner registration data
type RegisterInput struct {
	Email      string
	Password   string
	Name       string
	Role       models.Role
	Commission *decimal.Decimal // nil uses the configured default
}

// Register creates a new partner account with a fresh referral code
func (s *Service) Register(input RegisterInput) (*models.Partner, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	if len(input.Password) < 8 {
		return nil, ErrWeakPassword
	}

	// Check if email exists
	exists, err := s.partnerRepo.EmailExists(email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, ErrEmailExists
	}

	// Hash password
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	code, err := s.uniqueReferralCode()
	if err != nil {
		return nil, err
	}

	commission := s.cfg.DefaultCommission
	if input.Commission != nil {
		commission = *input.Commission
	}

	partner := models.NewPartner(email, strings.TrimSpace(input.Name), string(hash), code, commission)
	if input.Role != "" {
		partner.Role = input.Role
	}
	if err := s.partnerRepo.Create(partner); err != nil {
		return nil, fmt.Errorf("failed to create partner: %w", err)
	}

	return partner, nil
}

// EnsureAdmin creates the bootstrap admin account when it does not exist yet.
// It is a no-op when either credential is empty.
func (s *Service) EnsureAdmin(email, password string) (*models.Partner, error) {
	if email == "" || password == "" {
		return nil, nil
	}

	existing, err := s.partnerRepo.GetByEmail(strings.ToLower(email))
	if err != nil {
		return nil, fmt.Errorf("failed to look up admin: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	zero := decimal.Zero
	return s.Register(RegisterInput{
		Email:      email,
		Password:   password,
		Name:       "Administrator",
		Role:       models.RoleAdmin,
		Commission: &zero,
	})
}

// LoginInput contains login credentials
type LoginInput struct {
	Email    string
	Password string
}

// LoginResult contains the result of a successful login
type LoginResult struct {
	Partner *models.Partner
	Token   string
	Expires time.Time
}

// Login authenticates a partner and creates a session
func (s *Service) Login(input LoginInput) (*LoginResult, error) {
	// Find partner
	partner, err := s.partnerRepo.GetByEmail(strings.ToLower(strings.TrimSpace(input.Email)))
	if err != nil {
		return nil, fmt.Errorf("failed to find partner: %w", err)
	}
	if partner == nil {
		return nil, ErrInvalidCredentials
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(partner.PasswordHash), []byte(input.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	// Create session token
	token, err := s.createToken(partner)
	if err != nil {
		return nil, fmt.Errorf("failed to create token: %w", err)
	}

	expires := time.Now().UTC().Add(s.cfg.SessionDuration)

	// Store session
	session := &models.Session{
		ID:        uuid.New(),
		PartnerID: partner.ID,
		Token:     token,
		ExpiresAt: expires,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.sessionRepo.Create(session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &LoginResult{
		Partner: partner,
		Token:   token,
		Expires: expires,
	}, nil
}

// ValidateToken verifies a JWT token and returns the partner
func (s *Service) ValidateToken(tokenString string) (*models.Partner, error) {
	// Parse token
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.SecretKey), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	// Sessions are revoked on logout
	session, err := s.sessionRepo.GetByToken(tokenString)
	if err != nil || session == nil {
		return nil, ErrInvalidToken
	}
	if session.IsExpired() {
		return nil, ErrSessionExpired
	}

	// Get partner ID
	partnerID, ok := claims["sub"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}

	id, err := uuid.Parse(partnerID)
	if err != nil {
		return nil, ErrInvalidToken
	}

	// Load partner
	partner, err := s.partnerRepo.GetByID(id)
	if err != nil || partner == nil {
		return nil, ErrInvalidToken
	}

	return partner, nil
}

// Logout invalidates all sessions for a partner
func (s *Service) Logout(partnerID uuid.UUID) error {
	return s.sessionRepo.DeleteByPartnerID(partnerID)
}

// CleanupExpiredSessions removes expired sessions from the database
func (s *Service) CleanupExpiredSessions() error {
	return s.sessionRepo.DeleteExpired()
}

func (s *Service) uniqueReferralCode() (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := models.GenerateReferralCode()
		if err != nil {
			return "", err
		}
		taken, err := s.partnerRepo.ReferralCodeExists(code)
		if err != nil {
			return "", fmt.Errorf("failed to check referral code: %w", err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", errors.New("could not allocate a unique referral code")
}

func (s *Service) createToken(partner *models.Partner) (string, error) {
	claims := jwt.MapClaims{
		"sub":  partner.ID.String(),
		"role": string(partner.Role),
		"exp":  time.Now().Add(s.cfg.SessionDuration).Unix(),
		"iat":  time.Now().Unix(),
		"jti":  generateJTI(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.SecretKey))
}

func generateJTI() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
