// Package notify routes owner notifications to SMS or email based on urgency
// and records every delivery attempt.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotificationNotFound = errors.New("notification not found")

// Delivery statuses.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Notification is one delivery attempt to a property owner.
type Notification struct {
	ID        uuid.UUID
	Recipient string
	Subject   string
	Message   string
	Channel   string
	Priority  string
	Status    string
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository provides data access for the notification delivery log.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a notification repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const notificationColumns = `id, recipient, subject, message, channel, priority, status, error, created_at, updated_at`

func scanNotification(row pgx.Row) (Notification, error) {
	var n Notification
	err := row.Scan(
		&n.ID, &n.Recipient, &n.Subject, &n.Message, &n.Channel,
		&n.Priority, &n.Status, &n.Error, &n.CreatedAt, &n.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Notification{}, ErrNotificationNotFound
	}
	return n, err
}

// Create inserts a pending notification before any transport is attempted,
// so the attempt is visible even if the process dies mid-send.
func (r *Repository) Create(ctx context.Context, recipient, subject, message, channel, priority string) (Notification, error) {
	return scanNotification(r.pool.QueryRow(ctx, `
		INSERT INTO notifications (recipient, subject, message, channel, priority, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+notificationColumns+`
	`, recipient, subject, message, channel, priority, StatusPending))
}

// MarkSent records a successful delivery.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notifications SET status = $2, updated_at = now() WHERE id = $1
	`, id, StatusSent)
	return err
}

// MarkFailed records a failed delivery with the transport error.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notifications SET status = $2, error = $3, updated_at = now() WHERE id = $1
	`, id, StatusFailed, errMsg)
	return err
}

// List returns the most recent delivery attempts for the operator view.
func (r *Repository) List(ctx context.Context, limit int) ([]Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
