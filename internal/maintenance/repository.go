// Package maintenance owns maintenance requests created by the action
// pipeline and their lifecycle from open to resolved.
package maintenance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrRequestNotFound = errors.New("maintenance request not found")

// Request statuses.
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
	StatusCancelled  = "cancelled"
)

// Request is one maintenance request raised for a property.
type Request struct {
	ID          uuid.UUID
	PropertyID  uuid.UUID
	TenantID    uuid.UUID
	ThreadID    *uuid.UUID
	MessageID   *uuid.UUID
	Description string
	Priority    string
	Status      string
	ResolvedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Repository provides data access for maintenance requests.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a maintenance repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const requestColumns = `id, property_id, tenant_id, thread_id, message_id, description, priority, status, resolved_at, created_at, updated_at`

func scanRequest(row pgx.Row) (Request, error) {
	var r Request
	err := row.Scan(
		&r.ID, &r.PropertyID, &r.TenantID, &r.ThreadID, &r.MessageID,
		&r.Description, &r.Priority, &r.Status, &r.ResolvedAt,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, ErrRequestNotFound
	}
	return r, err
}

// Create inserts a new open request.
func (r *Repository) Create(ctx context.Context, req Request) (Request, error) {
	return scanRequest(r.pool.QueryRow(ctx, `
		INSERT INTO maintenance_requests (property_id, tenant_id, thread_id, message_id, description, priority, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+requestColumns+`
	`, req.PropertyID, req.TenantID, req.ThreadID, req.MessageID, req.Description, req.Priority, StatusOpen))
}

// Get retrieves a request by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Request, error) {
	return scanRequest(r.pool.QueryRow(ctx, `
		SELECT `+requestColumns+` FROM maintenance_requests WHERE id = $1
	`, id))
}

// ListRecentByTenant returns requests created by a tenant for a property
// since the given time, newest first. Used by near-duplicate suppression.
func (r *Repository) ListRecentByTenant(ctx context.Context, tenantID, propertyID uuid.UUID, since time.Time) ([]Request, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+requestColumns+` FROM maintenance_requests
		WHERE tenant_id = $1 AND property_id = $2 AND created_at >= $3
		ORDER BY created_at DESC
	`, tenantID, propertyID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRequests(rows)
}

// ListByProperty returns requests for a property, optionally filtered by status.
func (r *Repository) ListByProperty(ctx context.Context, propertyID uuid.UUID, status string) ([]Request, error) {
	query := `SELECT ` + requestColumns + ` FROM maintenance_requests WHERE property_id = $1`
	args := []any{propertyID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRequests(rows)
}

// UpdateStatus transitions a request. resolved_at is set when entering
// resolved and cleared when leaving it.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (Request, error) {
	return scanRequest(r.pool.QueryRow(ctx, `
		UPDATE maintenance_requests
		SET status = $2,
		    resolved_at = CASE WHEN $2 = 'resolved' THEN now() ELSE NULL END,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+requestColumns+`
	`, id, status))
}

func collectRequests(rows pgx.Rows) ([]Request, error) {
	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}
