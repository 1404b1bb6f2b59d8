// Package storage provides database access and repositories
package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// New creates a new database connection
func New(databaseURL string) (*DB, error) {
	db, err := sql.Open("sqlite3", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	return &DB{db}, nil
}

// Migrate runs database migrations
func (db *DB) Migrate() error {
	migrations := []string{
		createPartnersTable,
		createSessionsTable,
		createReferralVisitsTable,
		createAppointmentsTable,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

const createPartnersTable = `
CREATE TABLE IF NOT EXISTS partners (
	id TEXT PRIMARY KEY,
	email TEXT UNIQUE NOT NULL,
	password_hash TEXT NOT NULL,
	name TEXT NOT NULL,
	referral_code TEXT UNIQUE NOT NULL,
	role TEXT NOT NULL DEFAULT 'partner',
	commission TEXT DEFAULT '0',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_partners_email ON partners(email);
CREATE INDEX IF NOT EXISTS idx_partners_referral_code ON partners(referral_code);
`

const createSessionsTable = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	partner_id TEXT NOT NULL,
	token TEXT NOT NULL,
	expires_at DATETIME NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (partner_id) REFERENCES partners(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_sessions_partner_id ON sessions(partner_id);
CREATE INDEX IF NOT EXISTS idx_sessions_token ON sessions(token);
`

const createReferralVisitsTable = `
CREATE TABLE IF NOT EXISTS referral_visits (
	id TEXT PRIMARY KEY,
	referral_code TEXT NOT NULL,
	partner_id TEXT NOT NULL,
	visitor_hash TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (partner_id) REFERENCES partners(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_referral_visits_partner_id ON referral_visits(partner_id);
CREATE INDEX IF NOT EXISTS idx_referral_visits_dedup ON referral_visits(referral_code, visitor_hash, created_at);
`

const createAppointmentsTable = `
CREATE TABLE IF NOT EXISTS appointments (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL,
	phone TEXT,
	company_name TEXT,
	service TEXT NOT NULL,
	slot DATETIME NOT NULL,
	notes TEXT,
	referral_code TEXT,
	partner_id TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (partner_id) REFERENCES partners(id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_appointments_partner_id ON appointments(partner_id);
`
