// Package models defines core domain types
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Role controls which dashboards a partner account may open
type Role string

const (
	RolePartner Role = "partner"
	RoleAdmin   Role = "admin"
)

// Partner represents a referral partner (or an admin) who can sign in
type Partner struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	PasswordHash string          `json:"-"` // Never serialize to JSON
	ReferralCode string          `json:"referral_code"`
	Role         Role            `json:"role"`
	Commission   decimal.Decimal `json:"commission"` // HKD per booked appointment
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// NewPartner creates a new partner with generated ID and timestamps
func NewPartner(email, name, passwordHash, referralCode string, commission decimal.Decimal) *Partner {
	now := time.Now().UTC()
	return &Partner{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		ReferralCode: referralCode,
		Role:         RolePartner,
		Commission:   commission,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsAdmin reports whether the partner may open the admin statistics view
func (p *Partner) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Session represents an active partner session
type Session struct {
	ID        uuid.UUID `json:"id"`
	PartnerID uuid.UUID `json:"partner_id"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// IsExpired checks if the session has expired
func (s *Session) IsExpired() bool {
	return time.Now().UTC().After(s.ExpiresAt)
}
