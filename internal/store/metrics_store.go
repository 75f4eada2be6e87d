package store

import (
	"context"
	"fmt"

	"github.com/Priya8975/alert-notifications/internal/domain"
)

// NotificationSummary holds aggregated alert and delivery statistics.
type NotificationSummary struct {
	TotalAlerts   int                             `json:"total_alerts"`
	EnabledAlerts int                             `json:"enabled_alerts"`
	DeletedAlerts int                             `json:"deleted_alerts"`
	ByType        map[domain.SubscriptionType]int `json:"by_type"`
	TotalAttempts int                             `json:"total_attempts"`
	SuccessCount  int                             `json:"success_count"`
	FailedCount   int                             `json:"failed_count"`
	SuccessRate   float64                         `json:"success_rate"`
	AvgResponseMs float64                         `json:"avg_response_ms"`
}

// GetNotificationSummary returns aggregated statistics from the database.
func (s *PostgresStore) GetNotificationSummary(ctx context.Context) (*NotificationSummary, error) {
	m := NotificationSummary{ByType: map[domain.SubscriptionType]int{}}

	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE deleted = false) AS total,
			COUNT(*) FILTER (WHERE deleted = false AND enabled = true) AS enabled,
			COUNT(*) FILTER (WHERE deleted = true) AS deleted
		FROM event_subscriptions
	`).Scan(&m.TotalAlerts, &m.EnabledAlerts, &m.DeletedAlerts)
	if err != nil {
		return nil, fmt.Errorf("querying alert counts: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT subscription_type, COUNT(*) FROM event_subscriptions
		WHERE deleted = false GROUP BY subscription_type
	`)
	if err != nil {
		return nil, fmt.Errorf("querying alerts by type: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			t domain.SubscriptionType
			n int
		)
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("scanning alerts by type: %w", err)
		}
		m.ByType[t] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alerts by type: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'success') AS success,
			COUNT(*) FILTER (WHERE status = 'failed') AS failed,
			COALESCE(AVG(response_time_ms) FILTER (WHERE response_time_ms > 0), 0) AS avg_response_ms
		FROM notification_attempts
	`).Scan(&m.TotalAttempts, &m.SuccessCount, &m.FailedCount, &m.AvgResponseMs)
	if err != nil {
		return nil, fmt.Errorf("querying delivery metrics: %w", err)
	}

	if m.TotalAttempts > 0 {
		m.SuccessRate = float64(m.SuccessCount) / float64(m.TotalAttempts) * 100
	}

	return &m, nil
}
