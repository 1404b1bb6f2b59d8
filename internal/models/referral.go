package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ReferralCodePrefix starts every partner referral code
const ReferralCodePrefix = "HKP-"

// VisitDedupWindow is how long a repeat visit from the same visitor is ignored
const VisitDedupWindow = 24 * time.Hour

var referralCodePattern = regexp.MustCompile(`^HKP-[A-F0-9]{6}$`)

// IsValidReferralCode reports whether code is exactly HKP- followed by six
// uppercase hex digits. No trimming or case folding is applied.
func IsValidReferralCode(code string) bool {
	return referralCodePattern.MatchString(code)
}

// GenerateReferralCode returns a random, well-formed referral code
func GenerateReferralCode() (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate referral code: %w", err)
	}
	return ReferralCodePrefix + strings.ToUpper(hex.EncodeToString(b)), nil
}

// ReferralVisit records one attributed landing on the site
type ReferralVisit struct {
	ID           uuid.UUID `json:"id"`
	ReferralCode string    `json:"referral_code"`
	PartnerID    uuid.UUID `json:"partner_id"`
	VisitorHash  string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewReferralVisit creates a visit for the given partner and visitor
func NewReferralVisit(partnerID uuid.UUID, code, visitorHash string) *ReferralVisit {
	return &ReferralVisit{
		ID:           uuid.New(),
		ReferralCode: code,
		PartnerID:    partnerID,
		VisitorHash:  visitorHash,
		CreatedAt:    time.Now().UTC(),
	}
}

// HashVisitor derives an opaque visitor fingerprint from request metadata
func HashVisitor(ip, userAgent string) string {
	sum := sha256.Sum256([]byte(ip + "|" + userAgent))
	return hex.EncodeToString(sum[:])
}
