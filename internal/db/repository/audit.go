package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/adamscao/certvault/internal/models"
)

// AuditRepository handles audit log data access
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// AuditFilter narrows an audit log listing. Zero values match everything.
type AuditFilter struct {
	Username string
	Action   string
	Since    time.Time
	Limit    int
}

// Create records an audit log entry
func (r *AuditRepository) Create(ctx context.Context, log *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (action, username, client_ip, user_agent, success, error_msg, details)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		log.Action,
		log.Username,
		log.ClientIP,
		log.UserAgent,
		boolInt(log.Success),
		log.ErrorMsg,
		log.Details,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	log.ID = id
	log.Timestamp = time.Now()

	return nil
}

// List returns the newest entries matching filter
func (r *AuditRepository) List(ctx context.Context, filter AuditFilter) ([]*models.AuditLog, error) {
	query := `
		SELECT id, timestamp, action, username, client_ip, user_agent, success, error_msg, details
		FROM audit_logs
		WHERE 1=1
	`
	var args []any

	if filter.Username != "" {
		query += " AND username = ?"
		args = append(args, filter.Username)
	}
	if filter.Action != "" {
		query += " AND action = ?"
		args = append(args, filter.Action)
	}
	if !filter.Since.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, sqliteTime(filter.Since))
	}

	query += " ORDER BY timestamp DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.AuditLog
	for rows.Next() {
		log, err := scanAuditLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		logs = append(logs, log)
	}

	return logs, rows.Err()
}

// CountSince returns the number of entries per action at or after since
func (r *AuditRepository) CountSince(ctx context.Context, since time.Time) (map[string]int, error) {
	query := `
		SELECT action, COUNT(*)
		FROM audit_logs
		WHERE timestamp >= ?
		GROUP BY action
	`

	rows, err := r.db.QueryContext(ctx, query, sqliteTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to count audit logs: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var action string
		var n int
		if err := rows.Scan(&action, &n); err != nil {
			return nil, fmt.Errorf("failed to scan audit count: %w", err)
		}
		counts[action] = n
	}

	return counts, rows.Err()
}

// DeleteOld deletes audit logs older than before
func (r *AuditRepository) DeleteOld(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE timestamp < ?`, sqliteTime(before))
	if err != nil {
		return 0, fmt.Errorf("failed to delete old audit logs: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return count, nil
}

func scanAuditLog(row rowScanner) (*models.AuditLog, error) {
	log := &models.AuditLog{}
	var success int
	var username, userAgent, errorMsg, details sql.NullString

	err := row.Scan(
		&log.ID,
		&log.Timestamp,
		&log.Action,
		&username,
		&log.ClientIP,
		&userAgent,
		&success,
		&errorMsg,
		&details,
	)
	if err != nil {
		return nil, err
	}

	log.Success = success == 1
	log.Username = username.String
	log.UserAgent = userAgent.String
	log.ErrorMsg = errorMsg.String
	log.Details = details.String

	return log, nil
}

// sqliteTime formats t the way CURRENT_TIMESTAMP stores it, so text
// comparison against the timestamp column orders correctly
func sqliteTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}
