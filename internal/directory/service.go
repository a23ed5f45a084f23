package directory

import (
	"context"
	"errors"
	"strings"

	"rental_portal_backend/platform/apperr"
	"rental_portal_backend/platform/phone"

	"github.com/google/uuid"
)

// Service answers sender-resolution and property-context queries for the
// intake pipeline and backs the thin CRUD surface.
type Service struct {
	repo *Repository
}

// NewService creates the directory service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Sender bundles a resolved tenant and their property.
type Sender struct {
	Tenant   Tenant
	Property Property
}

// ResolveSender finds the tenant behind an inbound address. SMS senders are
// matched on the E.164-normalized phone number, email senders on the address.
// Returns ErrTenantNotFound when nothing matches; the intake coordinator turns
// that into its canned unrecognized-sender branch, not an error response.
func (s *Service) ResolveSender(ctx context.Context, channel, address string) (Sender, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Sender{}, ErrTenantNotFound
	}

	var (
		tenant Tenant
		err    error
	)
	switch channel {
	case "sms":
		tenant, err = s.repo.FindTenantByPhone(ctx, phone.NormalizeE164(address))
	case "email":
		tenant, err = s.repo.FindTenantByEmail(ctx, address)
	default:
		// Direct API calls may pass either a tenant id or a contact address.
		if id, parseErr := uuid.Parse(address); parseErr == nil {
			tenant, err = s.repo.GetTenant(ctx, id)
		} else if strings.Contains(address, "@") {
			tenant, err = s.repo.FindTenantByEmail(ctx, address)
		} else {
			tenant, err = s.repo.FindTenantByPhone(ctx, phone.NormalizeE164(address))
		}
	}
	if err != nil {
		return Sender{}, err
	}

	property, err := s.repo.GetProperty(ctx, tenant.PropertyID)
	if err != nil {
		return Sender{}, err
	}

	return Sender{Tenant: tenant, Property: property}, nil
}

// GetTenant returns a tenant, mapping repository errors to domain errors.
func (s *Service) GetTenant(ctx context.Context, id uuid.UUID) (Tenant, error) {
	tenant, err := s.repo.GetTenant(ctx, id)
	if errors.Is(err, ErrTenantNotFound) {
		return Tenant{}, apperr.NotFound("tenant not found")
	}
	return tenant, err
}

// GetProperty returns a property, mapping repository errors to domain errors.
func (s *Service) GetProperty(ctx context.Context, id uuid.UUID) (Property, error) {
	property, err := s.repo.GetProperty(ctx, id)
	if errors.Is(err, ErrPropertyNotFound) {
		return Property{}, apperr.NotFound("property not found")
	}
	return property, err
}

// CreateTenant validates and inserts a tenant. The phone number is normalized
// before storage so SMS sender resolution stays an exact match.
func (s *Service) CreateTenant(ctx context.Context, params CreateTenantParams) (Tenant, error) {
	if strings.TrimSpace(params.FirstName) == "" {
		return Tenant{}, apperr.Validation("first name is required")
	}
	if params.Phone == "" && params.Email == "" {
		return Tenant{}, apperr.Validation("at least one contact (phone or email) is required")
	}
	if _, err := s.repo.GetProperty(ctx, params.PropertyID); err != nil {
		if errors.Is(err, ErrPropertyNotFound) {
			return Tenant{}, apperr.Validation("property does not exist")
		}
		return Tenant{}, err
	}

	params.Phone = phone.NormalizeE164(params.Phone)
	return s.repo.CreateTenant(ctx, params)
}

// UpdateTenantContact updates a tenant's phone/email.
func (s *Service) UpdateTenantContact(ctx context.Context, id uuid.UUID, phoneNumber, email string) (Tenant, error) {
	if phoneNumber == "" && email == "" {
		return Tenant{}, apperr.Validation("at least one contact (phone or email) is required")
	}
	tenant, err := s.repo.UpdateTenantContact(ctx, id, phone.NormalizeE164(phoneNumber), email)
	if errors.Is(err, ErrTenantNotFound) {
		return Tenant{}, apperr.NotFound("tenant not found")
	}
	return tenant, err
}

// DeleteTenant removes a tenant.
func (s *Service) DeleteTenant(ctx context.Context, id uuid.UUID) error {
	err := s.repo.DeleteTenant(ctx, id)
	if errors.Is(err, ErrTenantNotFound) {
		return apperr.NotFound("tenant not found")
	}
	return err
}

// CreateProperty validates and inserts a property.
func (s *Service) CreateProperty(ctx context.Context, params CreatePropertyParams) (Property, error) {
	if strings.TrimSpace(params.Name) == "" {
		return Property{}, apperr.Validation("property name is required")
	}
	params.OwnerPhone = phone.NormalizeE164(params.OwnerPhone)
	return s.repo.CreateProperty(ctx, params)
}

// ListProperties returns all properties.
func (s *Service) ListProperties(ctx context.Context) ([]Property, error) {
	return s.repo.ListProperties(ctx)
}

// ListTenantsByProperty returns all tenants at a property.
func (s *Service) ListTenantsByProperty(ctx context.Context, propertyID uuid.UUID) ([]Tenant, error) {
	return s.repo.ListTenantsByProperty(ctx, propertyID)
}
