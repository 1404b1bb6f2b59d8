package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hklaunchpad/site/internal/models"
	"github.com/shopspring/decimal"
)

// PartnerRepository provides partner data access
type PartnerRepository struct {
	db *DB
}

// NewPartnerRepository creates a new partner repository
func NewPartnerRepository(db *DB) *PartnerRepository {
	return &PartnerRepository{db: db}
}

const partnerColumns = `id, email, password_hash, name, referral_code, role, commission, created_at, updated_at`

// Create inserts a new partner
func (r *PartnerRepository) Create(partner *models.Partner) error {
	query := `
		INSERT INTO partners (` + partnerColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		partner.ID.String(),
		partner.Email,
		partner.PasswordHash,
		partner.Name,
		partner.ReferralCode,
		string(partner.Role),
		partner.Commission.String(),
		partner.CreatedAt,
		partner.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create partner: %w", err)
	}
	return nil
}

// GetByID retrieves a partner by ID
func (r *PartnerRepository) GetByID(id uuid.UUID) (*models.Partner, error) {
	query := `SELECT ` + partnerColumns + ` FROM partners WHERE id = ?`
	return r.scanPartner(r.db.QueryRow(query, id.String()))
}

// GetByEmail retrieves a partner by email
func (r *PartnerRepository) GetByEmail(email string) (*models.Partner, error) {
	query := `SELECT ` + partnerColumns + ` FROM partners WHERE email = ?`
	return r.scanPartner(r.db.QueryRow(query, email))
}

// GetByReferralCode retrieves the partner owning a referral code
func (r *PartnerRepository) GetByReferralCode(code string) (*models.Partner, error) {
	query := `SELECT ` + partnerColumns + ` FROM partners WHERE referral_code = ?`
	return r.scanPartner(r.db.QueryRow(query, code))
}

// List returns all partners ordered by name
func (r *PartnerRepository) List() ([]*models.Partner, error) {
	rows, err := r.db.Query(`SELECT ` + partnerColumns + ` FROM partners ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list partners: %w", err)
	}
	defer rows.Close()

	var partners []*models.Partner
	for rows.Next() {
		p, err := r.scanPartner(rows)
		if err != nil {
			return nil, err
		}
		partners = append(partners, p)
	}
	return partners, rows.Err()
}

// Update modifies an existing partner
func (r *PartnerRepository) Update(partner *models.Partner) error {
	partner.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE partners SET email = ?, name = ?, password_hash = ?, role = ?, commission = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.Exec(query,
		partner.Email,
		partner.Name,
		partner.PasswordHash,
		string(partner.Role),
		partner.Commission.String(),
		partner.UpdatedAt,
		partner.ID.String(),
	)
	return err
}

// EmailExists checks if an email is already registered
func (r *PartnerRepository) EmailExists(email string) (bool, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM partners WHERE email = ?", email).Scan(&count)
	return count > 0, err
}

// ReferralCodeExists checks if a referral code is already assigned
func (r *PartnerRepository) ReferralCodeExists(code string) (bool, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM partners WHERE referral_code = ?", code).Scan(&count)
	return count > 0, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func (r *PartnerRepository) scanPartner(row scanner) (*models.Partner, error) {
	var partner models.Partner
	var id, role, commission string

	err := row.Scan(
		&id,
		&partner.Email,
		&partner.PasswordHash,
		&partner.Name,
		&partner.ReferralCode,
		&role,
		&commission,
		&partner.CreatedAt,
		&partner.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan partner: %w", err)
	}

	partner.ID, _ = uuid.Parse(id)
	partner.Role = models.Role(role)
	partner.Commission, _ = decimal.NewFromString(commission)

	return &partner, nil
}

// SessionRepository provides session data access
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session
func (r *SessionRepository) Create(session *models.Session) error {
	query := `
		INSERT INTO sessions (id, partner_id, token, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		session.ID.String(),
		session.PartnerID.String(),
		session.Token,
		session.ExpiresAt,
		session.CreatedAt,
	)
	return err
}

// GetByToken retrieves a session by token
func (r *SessionRepository) GetByToken(token string) (*models.Session, error) {
	query := `
		SELECT id, partner_id, token, expires_at, created_at
		FROM sessions WHERE token = ?
	`
	var session models.Session
	var id, partnerID string

	err := r.db.QueryRow(query, token).Scan(
		&id,
		&partnerID,
		&session.Token,
		&session.ExpiresAt,
		&session.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	session.ID, _ = uuid.Parse(id)
	session.PartnerID, _ = uuid.Parse(partnerID)

	return &session, nil
}

// DeleteByPartnerID removes all sessions for a partner
func (r *SessionRepository) DeleteByPartnerID(partnerID uuid.UUID) error {
	_, err := r.db.Exec("DELETE FROM sessions WHERE partner_id = ?", partnerID.String())
	return err
}

// DeleteExpired removes all expired sessions
func (r *SessionRepository) DeleteExpired() error {
	_, err := r.db.Exec("DELETE FROM sessions WHERE expires_at < ?", time.Now().UTC())
	return err
}
