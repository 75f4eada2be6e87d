package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Priya8975/alert-notifications/internal/domain"
)

const alertColumns = `id, name, fully_qualified_name, description, version, updated_at, updated_by,
	filtering_rules, subscription_type, subscription_config, enabled, batch_size,
	timeout, read_timeout, deleted, provider`

// pgUniqueViolation is the SQLSTATE for unique constraint violations.
const pgUniqueViolation = "23505"

func scanAlert(row pgx.Row) (*domain.AlertSubscription, error) {
	var a domain.AlertSubscription
	err := row.Scan(
		&a.ID, &a.Name, &a.FullyQualifiedName, &a.Description, &a.Version,
		&a.UpdatedAt, &a.UpdatedBy, &a.FilteringRules, &a.SubscriptionType,
		&a.SubscriptionConfig, &a.Enabled, &a.BatchSize, &a.Timeout,
		&a.ReadTimeout, &a.Deleted, &a.Provider,
	)
	if err != nil {
		return nil, err
	}
	if a.FilteringRules.Rules == nil {
		a.FilteringRules.Rules = []domain.FilteringRule{}
	}
	return &a, nil
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// CreateAlert inserts a new alert subscription. req must already be validated.
func (s *PostgresStore) CreateAlert(ctx context.Context, req domain.CreateAlertRequest, createdBy string) (*domain.AlertSubscription, error) {
	if req.FilteringRules.Rules == nil {
		req.FilteringRules.Rules = []domain.FilteringRule{}
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO event_subscriptions (name, fully_qualified_name, description, version, updated_at, updated_by,
			filtering_rules, subscription_type, subscription_config, enabled, batch_size, timeout, read_timeout, provider)
		VALUES ($1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+alertColumns,
		req.Name, req.Description, domain.InitialVersion, nowMillis(), createdBy,
		req.FilteringRules, req.SubscriptionType, req.SubscriptionConfig, *req.Enabled,
		req.BatchSize, req.Timeout, req.ReadTimeout, req.Provider,
	)

	alert, err := scanAlert(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, domain.ErrDuplicateName
		}
		return nil, fmt.Errorf("inserting alert: %w", err)
	}
	return alert, nil
}

// GetAlert returns the alert with id, or nil when it does not exist.
func (s *PostgresStore) GetAlert(ctx context.Context, id string) (*domain.AlertSubscription, error) {
	alert, err := scanAlert(s.pool.QueryRow(ctx,
		`SELECT `+alertColumns+` FROM event_subscriptions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying alert: %w", err)
	}
	return alert, nil
}

// GetAlertByName looks an alert up by its fully qualified name.
func (s *PostgresStore) GetAlertByName(ctx context.Context, fqn string) (*domain.AlertSubscription, error) {
	alert, err := scanAlert(s.pool.QueryRow(ctx,
		`SELECT `+alertColumns+` FROM event_subscriptions WHERE fully_qualified_name = $1`, fqn))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying alert by name: %w", err)
	}
	return alert, nil
}

// ListAlerts returns one page of alerts ordered by name. Paging.Total counts
// all matching alerts, not only the returned ones.
func (s *PostgresStore) ListAlerts(ctx context.Context, params domain.ListParams) (*domain.AlertList, error) {
	offset, limit, err := params.Window()
	if err != nil {
		return nil, err
	}

	conditions := []string{}
	args := []interface{}{}
	argIdx := 1

	if !params.IncludeDeleted {
		conditions = append(conditions, "deleted = false")
	}
	if params.SubscriptionType != "" {
		conditions = append(conditions, fmt.Sprintf("subscription_type = $%d", argIdx))
		args = append(args, params.SubscriptionType)
		argIdx++
	}
	if params.Provider != "" {
		conditions = append(conditions, fmt.Sprintf("provider = $%d", argIdx))
		args = append(args, params.Provider)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM event_subscriptions`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting alerts: %w", err)
	}

	query := `SELECT ` + alertColumns + ` FROM event_subscriptions` + where +
		fmt.Sprintf(" ORDER BY name, id LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying alerts: %w", err)
	}
	defer rows.Close()

	alerts := []domain.AlertSubscription{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}
		alerts = append(alerts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alerts: %w", err)
	}

	return &domain.AlertList{
		Data:   alerts,
		Paging: domain.NewPaging(total, offset, len(alerts)),
	}, nil
}

// UpdateAlert applies a partial update and bumps the version. Returns nil
// when the alert does not exist.
func (s *PostgresStore) UpdateAlert(ctx context.Context, id string, req domain.UpdateAlertRequest, updatedBy string) (*domain.AlertSubscription, error) {
	if req.Empty() {
		return s.GetAlert(ctx, id)
	}

	setClauses := []string{}
	args := []interface{}{}
	argIdx := 1

	set := func(column string, value interface{}) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argIdx))
		args = append(args, value)
		argIdx++
	}

	if req.Description != nil {
		set("description", *req.Description)
	}
	if req.FilteringRules != nil {
		set("filtering_rules", *req.FilteringRules)
	}
	if req.SubscriptionConfig != nil {
		set("subscription_config", *req.SubscriptionConfig)
	}
	if req.Enabled != nil {
		set("enabled", *req.Enabled)
	}
	if req.BatchSize != nil {
		set("batch_size", *req.BatchSize)
	}
	if req.Timeout != nil {
		set("timeout", *req.Timeout)
	}
	if req.ReadTimeout != nil {
		set("read_timeout", *req.ReadTimeout)
	}
	set("updated_at", nowMillis())
	set("updated_by", updatedBy)
	setClauses = append(setClauses, fmt.Sprintf("version = ROUND((version + %v)::numeric, 1)::float8", domain.VersionStep))

	query := fmt.Sprintf(`UPDATE event_subscriptions SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(setClauses, ", "), argIdx, alertColumns)
	args = append(args, id)

	alert, err := scanAlert(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("updating alert: %w", err)
	}
	return alert, nil
}

// DeleteAlert soft deletes an alert, or removes it when hard is set.
// Returns false when the alert does not exist.
func (s *PostgresStore) DeleteAlert(ctx context.Context, id string, hard bool, deletedBy string) (bool, error) {
	var (
		tag pgconn.CommandTag
		err error
	)
	if hard {
		tag, err = s.pool.Exec(ctx, `DELETE FROM event_subscriptions WHERE id = $1`, id)
	} else {
		tag, err = s.pool.Exec(ctx, `
			UPDATE event_subscriptions
			SET deleted = true, updated_at = $2, updated_by = $3,
				version = ROUND((version + 0.1)::numeric, 1)::float8
			WHERE id = $1 AND deleted = false
		`, id, nowMillis(), deletedBy)
	}
	if err != nil {
		return false, fmt.Errorf("deleting alert: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
