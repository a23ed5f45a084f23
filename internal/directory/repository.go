// Package directory provides the tenant and property bounded context.
// The rest of the pipeline uses it for sender resolution and property context;
// the HTTP surface is a thin CRUD wrapper around this repository.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrTenantNotFound = errors.New("tenant not found")
var ErrPropertyNotFound = errors.New("property not found")

// Tenant is a resident linked to one property. Contact fields are the only
// mutable attributes after creation.
type Tenant struct {
	ID         uuid.UUID
	PropertyID uuid.UUID
	FirstName  string
	LastName   string
	Phone      string
	Email      string
	Unit       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// FullName returns the display name for prompts and notifications.
func (t Tenant) FullName() string {
	return strings.TrimSpace(t.FirstName + " " + t.LastName)
}

// Property holds owner contacts, free-form amenities/rules and the
// per-property auto-closure threshold.
type Property struct {
	ID                       uuid.UUID
	Name                     string
	Address                  string
	OwnerName                string
	OwnerPhone               string
	OwnerEmail               string
	Amenities                json.RawMessage
	Rules                    json.RawMessage
	InactivityThresholdHours int
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// Repository provides data access for tenants and properties.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new directory repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const tenantColumns = `id, property_id, first_name, last_name, phone, email, unit, created_at, updated_at`

func scanTenant(row pgx.Row) (Tenant, error) {
	var t Tenant
	err := row.Scan(
		&t.ID, &t.PropertyID, &t.FirstName, &t.LastName,
		&t.Phone, &t.Email, &t.Unit, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Tenant{}, ErrTenantNotFound
	}
	return t, err
}

// GetTenant retrieves a tenant by id.
func (r *Repository) GetTenant(ctx context.Context, id uuid.UUID) (Tenant, error) {
	return scanTenant(r.pool.QueryRow(ctx, `
		SELECT `+tenantColumns+` FROM tenants WHERE id = $1
	`, id))
}

// FindTenantByPhone resolves a tenant by an E.164-normalized phone number.
func (r *Repository) FindTenantByPhone(ctx context.Context, phone string) (Tenant, error) {
	return scanTenant(r.pool.QueryRow(ctx, `
		SELECT `+tenantColumns+` FROM tenants WHERE phone = $1
		ORDER BY created_at DESC LIMIT 1
	`, phone))
}

// FindTenantByEmail resolves a tenant by email, case-insensitively.
func (r *Repository) FindTenantByEmail(ctx context.Context, email string) (Tenant, error) {
	return scanTenant(r.pool.QueryRow(ctx, `
		SELECT `+tenantColumns+` FROM tenants WHERE lower(email) = lower($1)
		ORDER BY created_at DESC LIMIT 1
	`, strings.TrimSpace(email)))
}

// CreateTenantParams describes a new tenant record.
type CreateTenantParams struct {
	PropertyID uuid.UUID
	FirstName  string
	LastName   string
	Phone      string
	Email      string
	Unit       string
}

// CreateTenant inserts a tenant.
func (r *Repository) CreateTenant(ctx context.Context, params CreateTenantParams) (Tenant, error) {
	return scanTenant(r.pool.QueryRow(ctx, `
		INSERT INTO tenants (property_id, first_name, last_name, phone, email, unit)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+tenantColumns+`
	`, params.PropertyID, params.FirstName, params.LastName, params.Phone, params.Email, params.Unit))
}

// UpdateTenantContact updates the mutable contact fields of a tenant.
func (r *Repository) UpdateTenantContact(ctx context.Context, id uuid.UUID, phone, email string) (Tenant, error) {
	return scanTenant(r.pool.QueryRow(ctx, `
		UPDATE tenants SET phone = $2, email = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+tenantColumns+`
	`, id, phone, email))
}

// DeleteTenant removes a tenant by explicit request.
func (r *Repository) DeleteTenant(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	return nil
}

// ListTenantsByProperty returns all tenants at a property.
func (r *Repository) ListTenantsByProperty(ctx context.Context, propertyID uuid.UUID) ([]Tenant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+tenantColumns+` FROM tenants
		WHERE property_id = $1
		ORDER BY created_at
	`, propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

const propertyColumns = `id, name, address, owner_name, owner_phone, owner_email,
	amenities, rules, inactivity_threshold_hours, created_at, updated_at`

func scanProperty(row pgx.Row) (Property, error) {
	var p Property
	err := row.Scan(
		&p.ID, &p.Name, &p.Address, &p.OwnerName, &p.OwnerPhone, &p.OwnerEmail,
		&p.Amenities, &p.Rules, &p.InactivityThresholdHours, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Property{}, ErrPropertyNotFound
	}
	return p, err
}

// GetProperty retrieves a property by id.
func (r *Repository) GetProperty(ctx context.Context, id uuid.UUID) (Property, error) {
	return scanProperty(r.pool.QueryRow(ctx, `
		SELECT `+propertyColumns+` FROM properties WHERE id = $1
	`, id))
}

// CreatePropertyParams describes a new property record.
type CreatePropertyParams struct {
	Name                     string
	Address                  string
	OwnerName                string
	OwnerPhone               string
	OwnerEmail               string
	Amenities                json.RawMessage
	Rules                    json.RawMessage
	InactivityThresholdHours int
}

// CreateProperty inserts a property.
func (r *Repository) CreateProperty(ctx context.Context, params CreatePropertyParams) (Property, error) {
	amenities := params.Amenities
	if amenities == nil {
		amenities = json.RawMessage(`{}`)
	}
	rules := params.Rules
	if rules == nil {
		rules = json.RawMessage(`{}`)
	}
	threshold := params.InactivityThresholdHours
	if threshold <= 0 {
		threshold = 72
	}

	return scanProperty(r.pool.QueryRow(ctx, `
		INSERT INTO properties (name, address, owner_name, owner_phone, owner_email, amenities, rules, inactivity_threshold_hours)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+propertyColumns+`
	`, params.Name, params.Address, params.OwnerName, params.OwnerPhone, params.OwnerEmail,
		amenities, rules, threshold))
}

// ListProperties returns all properties.
func (r *Repository) ListProperties(ctx context.Context) ([]Property, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+propertyColumns+` FROM properties ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var properties []Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		properties = append(properties, p)
	}
	return properties, rows.Err()
}
