package db

import (
	"database/sql"
	"fmt"
)

// RunMigrations executes all database migrations
func RunMigrations(db *DB) error {
	// Check if schema_version table exists
	var tableExists bool
	err := db.QueryRow(`
		SELECT COUNT(*) > 0
		FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("failed to check schema_version table: %w", err)
	}

	if !tableExists {
		// First time initialization
		if err := initializeSchema(db); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
		return nil
	}

	// Get current version
	var currentVersion int
	err = db.QueryRow(`
		SELECT version FROM schema_version
		ORDER BY version DESC LIMIT 1
	`).Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	// Currently only version 1 exists
	if currentVersion < 1 {
		return fmt.Errorf("invalid schema version: %d", currentVersion)
	}

	return nil
}

// initializeSchema creates all tables for a new database
func initializeSchema(db *DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		schemaVersionTable,
		usersTable,
		usersIndexes,
		certificatesTable,
		certificatesIndexes,
		auditLogsTable,
		auditLogsIndexes,
		`INSERT INTO schema_version (version) VALUES (1)`,
	} {
		if err := execSQL(tx, stmt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// execSQL executes a SQL statement
func execSQL(tx *sql.Tx, query string) error {
	_, err := tx.Exec(query)
	return err
}

// Schema definitions
const (
	schemaVersionTable = `
CREATE TABLE schema_version (
    version INTEGER NOT NULL,
    applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

	usersTable = `
CREATE TABLE users (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    username          TEXT NOT NULL UNIQUE,
    password_hash     TEXT NOT NULL,
    totp_secret       TEXT NOT NULL,
    role              TEXT NOT NULL,
    enabled           INTEGER NOT NULL DEFAULT 1,
    max_certs_per_day INTEGER NOT NULL DEFAULT 0,
    created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

	usersIndexes = `
CREATE INDEX idx_users_username ON users(username);
CREATE INDEX idx_users_role ON users(role)`

	// certificate_key holds the upper-cased certificate_id so verification
	// is a single indexed lookup.
	certificatesTable = `
CREATE TABLE certificates (
    id               TEXT PRIMARY KEY,
    certificate_id   TEXT NOT NULL,
    certificate_key  TEXT NOT NULL UNIQUE,
    recipient_name   TEXT NOT NULL CHECK (recipient_name <> ''),
    recipient_email  TEXT NOT NULL CHECK (recipient_email <> ''),
    program_name     TEXT NOT NULL CHECK (program_name <> ''),
    completion_date  TEXT NOT NULL,
    issue_date       TEXT NOT NULL,
    type             TEXT NOT NULL,
    commendation     TEXT NOT NULL DEFAULT '',
    hash             TEXT NOT NULL,
    status           TEXT NOT NULL DEFAULT 'active',
    signatories      TEXT NOT NULL DEFAULT '[]',
    issuer_role      TEXT NOT NULL DEFAULT '',
    issued_by        TEXT NOT NULL DEFAULT '',
    cloud_url        TEXT NOT NULL DEFAULT '',
    document         BLOB,
    document_type    TEXT NOT NULL DEFAULT '',
    timestamp        INTEGER NOT NULL
)`

	certificatesIndexes = `
CREATE INDEX idx_certs_issuer_role ON certificates(issuer_role);
CREATE INDEX idx_certs_issued_by ON certificates(issued_by, timestamp);
CREATE INDEX idx_certs_timestamp ON certificates(timestamp)`

	auditLogsTable = `
CREATE TABLE audit_logs (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    action      TEXT NOT NULL,
    username    TEXT,
    client_ip   TEXT NOT NULL,
    user_agent  TEXT,
    success     INTEGER NOT NULL,
    error_msg   TEXT,
    details     TEXT
)`

	auditLogsIndexes = `
CREATE INDEX idx_audit_timestamp ON audit_logs(timestamp);
CREATE INDEX idx_audit_action ON audit_logs(action);
CREATE INDEX idx_audit_username ON audit_logs(username);
CREATE INDEX idx_audit_success ON audit_logs(success)`
)
