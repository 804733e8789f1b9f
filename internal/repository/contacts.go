package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiuth/recruitment-api/internal/model"
)

type ContactRepo struct {
	pool *pgxpool.Pool
}

func NewContactRepo(pool *pgxpool.Pool) *ContactRepo {
	return &ContactRepo{pool: pool}
}

// Create stores a contact message and queues the inbox email with it
func (r *ContactRepo) Create(ctx context.Context, m *model.ContactMessage, notify *model.Notification) (*model.ContactMessage, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var c model.ContactMessage
	err = tx.QueryRow(ctx, `
		INSERT INTO contact_messages (name, email, subject, message)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, email, subject, message, status, created_at
	`, m.Name, m.Email, m.Subject, m.Message).Scan(
		&c.ID, &c.Name, &c.Email, &c.Subject, &c.Message, &c.Status, &c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating contact message: %w", err)
	}

	if notify != nil {
		if err := insertNotification(ctx, tx, nil, *notify); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return &c, nil
}

// List returns messages newest first, optionally filtered by status
func (r *ContactRepo) List(ctx context.Context, status string) ([]model.ContactMessage, error) {
	query := `SELECT id, name, email, subject, message, status, created_at FROM contact_messages`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing contact messages: %w", err)
	}
	defer rows.Close()

	msgs := []model.ContactMessage{}
	for rows.Next() {
		var c model.ContactMessage
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Subject, &c.Message, &c.Status, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning contact message: %w", err)
		}
		msgs = append(msgs, c)
	}
	return msgs, rows.Err()
}

func (r *ContactRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*model.ContactMessage, error) {
	var c model.ContactMessage
	err := r.pool.QueryRow(ctx, `
		UPDATE contact_messages SET status = $2
		WHERE id = $1
		RETURNING id, name, email, subject, message, status, created_at
	`, id, status).Scan(&c.ID, &c.Name, &c.Email, &c.Subject, &c.Message, &c.Status, &c.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("updating contact message: %w", err)
	}
	return &c, nil
}
