package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiuth/recruitment-api/internal/model"
)

const notificationColumns = `id, application_id, channel, recipient, subject, body, attach_slip,
		       status, attempts, max_attempts, next_attempt_at, last_error, created_at, sent_at`

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type NotificationRepo struct {
	pool *pgxpool.Pool
}

func NewNotificationRepo(pool *pgxpool.Pool) *NotificationRepo {
	return &NotificationRepo{pool: pool}
}

// Enqueue adds a standalone outbox row
func (r *NotificationRepo) Enqueue(ctx context.Context, n model.Notification) error {
	return insertNotification(ctx, r.pool, n.ApplicationID, n)
}

func insertNotification(ctx context.Context, db execer, applicationID *uuid.UUID, n model.Notification) error {
	maxAttempts := n.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 6
	}
	_, err := db.Exec(ctx, `
		INSERT INTO notifications (application_id, channel, recipient, subject, body, attach_slip, max_attempts)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, applicationID, n.Channel, n.Recipient, n.Subject, n.Body, n.AttachSlip, maxAttempts)
	if err != nil {
		return fmt.Errorf("queueing %s notification: %w", n.Channel, err)
	}
	return nil
}

// ClaimDue leases up to limit due notifications. Leased rows are pushed
// lease into the future so a concurrent dispatcher skips them; a crash
// before MarkSent simply lets the lease expire.
func (r *NotificationRepo) ClaimDue(ctx context.Context, limit int, lease time.Duration) ([]model.Notification, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE notifications
		SET next_attempt_at = now() + $2::interval
		WHERE id IN (
			SELECT id FROM notifications
			WHERE status = 'pending' AND next_attempt_at <= now()
			ORDER BY next_attempt_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+notificationColumns,
		limit, lease,
	)
	if err != nil {
		return nil, fmt.Errorf("claiming notifications: %w", err)
	}
	defer rows.Close()

	var due []model.Notification
	for rows.Next() {
		var n model.Notification
		err := rows.Scan(
			&n.ID, &n.ApplicationID, &n.Channel, &n.Recipient, &n.Subject, &n.Body, &n.AttachSlip,
			&n.Status, &n.Attempts, &n.MaxAttempts, &n.NextAttemptAt, &n.LastError, &n.CreatedAt, &n.SentAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		due = append(due, n)
	}
	return due, rows.Err()
}

func (r *NotificationRepo) MarkSent(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET status = 'sent', attempts = attempts + 1, sent_at = now(), last_error = ''
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("marking notification sent: %w", err)
	}
	return nil
}

// MarkRetry records a failed attempt and schedules the next one
func (r *NotificationRepo) MarkRetry(ctx context.Context, id uuid.UUID, next time.Time, lastErr string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET attempts = attempts + 1, next_attempt_at = $2, last_error = $3
		WHERE id = $1
	`, id, next, lastErr)
	if err != nil {
		return fmt.Errorf("rescheduling notification: %w", err)
	}
	return nil
}

// MarkFailed gives up on a notification
func (r *NotificationRepo) MarkFailed(ctx context.Context, id uuid.UUID, lastErr string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET status = 'failed', attempts = attempts + 1, last_error = $2
		WHERE id = $1
	`, id, lastErr)
	if err != nil {
		return fmt.Errorf("marking notification failed: %w", err)
	}
	return nil
}
