package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hklaunchpad/site/internal/models"
)

// VisitRepository provides referral visit data access
type VisitRepository struct {
	db *DB
}

// NewVisitRepository creates a new visit repository
func NewVisitRepository(db *DB) *VisitRepository {
	return &VisitRepository{db: db}
}

// RecordIfNew inserts the visit unless the same visitor already landed with
// the same code inside window. It reports whether a row was written.
func (r *VisitRepository) RecordIfNew(visit *models.ReferralVisit, window time.Duration) (bool, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	err = tx.QueryRow(`
		SELECT COUNT(*) FROM referral_visits
		WHERE referral_code = ? AND visitor_hash = ? AND created_at > ?
	`, visit.ReferralCode, visit.VisitorHash, visit.CreatedAt.Add(-window)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check recent visits: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	_, err = tx.Exec(`
		INSERT INTO referral_visits (id, referral_code, partner_id, visitor_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		visit.ID.String(),
		visit.ReferralCode,
		visit.PartnerID.String(),
		visit.VisitorHash,
		visit.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to record visit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit visit: %w", err)
	}
	return true, nil
}

// CountByPartner returns total and distinct-visitor counts for a partner
func (r *VisitRepository) CountByPartner(partnerID uuid.UUID) (visits, unique int, err error) {
	err = r.db.QueryRow(`
		SELECT COUNT(*), COUNT(DISTINCT visitor_hash) FROM referral_visits WHERE partner_id = ?
	`, partnerID.String()).Scan(&visits, &unique)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count visits: %w", err)
	}
	return visits, unique, nil
}

// DailyCounts returns visits per calendar day in loc since the given time,
// oldest first
func (r *VisitRepository) DailyCounts(partnerID uuid.UUID, since time.Time, loc *time.Location) ([]models.DailyCount, error) {
	rows, err := r.db.Query(`
		SELECT created_at
		FROM referral_visits
		WHERE partner_id = ? AND created_at >= ?
		ORDER BY created_at
	`, partnerID.String(), since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query daily visits: %w", err)
	}
	defer rows.Close()

	var counts []models.DailyCount
	for rows.Next() {
		var at time.Time
		if err := rows.Scan(&at); err != nil {
			return nil, fmt.Errorf("failed to scan daily visits: %w", err)
		}
		at = at.In(loc)
		day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, loc)
		if n := len(counts); n > 0 && counts[n-1].Day.Equal(day) {
			counts[n-1].Visits++
			continue
		}
		counts = append(counts, models.DailyCount{Day: day, Visits: 1})
	}
	return counts, rows.Err()
}

// AppointmentRepository provides appointment data access
type AppointmentRepository struct {
	db *DB
}

// NewAppointmentRepository creates a new appointment repository
func NewAppointmentRepository(db *DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

// Create inserts a new appointment
func (r *AppointmentRepository) Create(a *models.Appointment) error {
	var partnerID sql.NullString
	if a.PartnerID != nil {
		partnerID = sql.NullString{String: a.PartnerID.String(), Valid: true}
	}

	_, err := r.db.Exec(`
		INSERT INTO appointments (id, name, email, phone, company_name, service, slot, notes, referral_code, partner_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID.String(),
		a.Name,
		a.Email,
		a.Phone,
		a.CompanyName,
		string(a.Service),
		a.Slot,
		a.Notes,
		a.ReferralCode,
		partnerID,
		a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

// CountByPartner returns how many appointments a partner referred
func (r *AppointmentRepository) CountByPartner(partnerID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM appointments WHERE partner_id = ?", partnerID.String()).Scan(&count)
	return count, err
}

// Count returns the total number of appointments
func (r *AppointmentRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM appointments").Scan(&count)
	return count, err
}

// ListByPartner returns a partner's most recent appointments
func (r *AppointmentRepository) ListByPartner(partnerID uuid.UUID, limit int) ([]*models.Appointment, error) {
	rows, err := r.db.Query(`
		SELECT id, name, email, phone, company_name, service, slot, notes, referral_code, partner_id, created_at
		FROM appointments WHERE partner_id = ?
		ORDER BY created_at DESC LIMIT ?
	`, partnerID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer rows.Close()

	var appointments []*models.Appointment
	for rows.Next() {
		var a models.Appointment
		var id, service string
		var phone, company, notes, code, pid sql.NullString

		if err := rows.Scan(&id, &a.Name, &a.Email, &phone, &company, &service, &a.Slot, &notes, &code, &pid, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}

		a.ID, _ = uuid.Parse(id)
		a.Service = models.Service(service)
		a.Phone = phone.String
		a.CompanyName = company.String
		a.Notes = notes.String
		a.ReferralCode = code.String
		if pid.Valid {
			if parsed, err := uuid.Parse(pid.String); err == nil {
				a.PartnerID = &parsed
			}
		}
		appointments = append(appointments, &a)
	}
	return appointments, rows.Err()
}
