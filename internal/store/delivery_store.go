package store

import (
	"context"
	"fmt"

	"github.com/Priya8975/alert-notifications/internal/domain"
)

// DeliveryAttemptRecord holds data for inserting a notification attempt.
type DeliveryAttemptRecord struct {
	AlertID        string
	JobID          string
	Destination    string
	Status         string
	HTTPStatusCode *int
	ResponseTimeMs int
	ErrorMessage   string
}

// RecordDeliveryAttempt inserts a notification attempt into the database.
func (s *PostgresStore) RecordDeliveryAttempt(ctx context.Context, rec DeliveryAttemptRecord) error {
	var errMsg *string
	if rec.ErrorMessage != "" {
		errMsg = &rec.ErrorMessage
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO notification_attempts (alert_id, job_id, destination, status, http_status_code, response_time_ms, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.AlertID, rec.JobID, rec.Destination, rec.Status, rec.HTTPStatusCode, rec.ResponseTimeMs, errMsg)
	if err != nil {
		return fmt.Errorf("inserting delivery attempt: %w", err)
	}
	return nil
}

// ListDeliveryAttempts returns the most recent attempts for an alert.
func (s *PostgresStore) ListDeliveryAttempts(ctx context.Context, alertID string, limit int) ([]domain.DeliveryAttempt, error) {
	query := `SELECT id, alert_id, job_id, destination, status, http_status_code, response_time_ms, error_message, created_at
		FROM notification_attempts WHERE alert_id = $1 ORDER BY created_at DESC`
	args := []interface{}{alertID}

	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying delivery attempts: %w", err)
	}
	defer rows.Close()

	attempts := []domain.DeliveryAttempt{}
	for rows.Next() {
		var a domain.DeliveryAttempt
		err := rows.Scan(
			&a.ID, &a.AlertID, &a.JobID, &a.Destination, &a.Status,
			&a.HTTPStatusCode, &a.ResponseTimeMs, &a.ErrorMessage, &a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning delivery attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating delivery attempts: %w", err)
	}

	return attempts, nil
}
