package maintenance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"rental_portal_backend/internal/events"
	"rental_portal_backend/platform/apperr"
	"rental_portal_backend/platform/logger"
)

// duplicateWindow is how far back Create looks for a near-duplicate request
// from the same tenant and property.
const duplicateWindow = 15 * time.Minute

// CreateInput describes a request to open.
type CreateInput struct {
	PropertyID  uuid.UUID
	TenantID    uuid.UUID
	ThreadID    *uuid.UUID
	MessageID   *uuid.UUID
	Description string
	Priority    string
}

// CreateResult reports what Create did. When Duplicate is true the returned
// Request is the earlier one that suppressed this create.
type CreateResult struct {
	Request   Request
	Duplicate bool
}

// Service applies the maintenance request rules on top of the repository.
type Service struct {
	repo *Repository
	bus  events.Bus
	log  *logger.Logger
}

// NewService creates the maintenance service.
func NewService(repo *Repository, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, bus: bus, log: log}
}

// Create opens a maintenance request unless an equivalent one was already
// created in the last 15 minutes. Equivalence is judged on the normalized
// description for the same tenant and property; a suppressed duplicate is an
// outcome, not an error.
func (s *Service) Create(ctx context.Context, input CreateInput) (CreateResult, error) {
	if strings.TrimSpace(input.Description) == "" {
		return CreateResult{}, apperr.Validation("maintenance request requires a description")
	}

	since := time.Now().Add(-duplicateWindow)
	recent, err := s.repo.ListRecentByTenant(ctx, input.TenantID, input.PropertyID, since)
	if err != nil {
		return CreateResult{}, fmt.Errorf("check recent requests: %w", err)
	}

	normalized := normalizeDescription(input.Description)
	for _, existing := range recent {
		if normalizeDescription(existing.Description) == normalized {
			s.log.Info("maintenance request suppressed as near-duplicate",
				"existingId", existing.ID,
				"tenantId", input.TenantID,
			)
			return CreateResult{Request: existing, Duplicate: true}, nil
		}
	}

	created, err := s.repo.Create(ctx, Request{
		PropertyID:  input.PropertyID,
		TenantID:    input.TenantID,
		ThreadID:    input.ThreadID,
		MessageID:   input.MessageID,
		Description: strings.TrimSpace(input.Description),
		Priority:    input.Priority,
	})
	if err != nil {
		return CreateResult{}, fmt.Errorf("create maintenance request: %w", err)
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.MaintenanceRequestCreated{
			BaseEvent:  events.NewBaseEvent(),
			RequestID:  created.ID,
			TenantID:   created.TenantID,
			PropertyID: created.PropertyID,
			Priority:   created.Priority,
		})
	}

	return CreateResult{Request: created}, nil
}

// Get retrieves a request.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Request, error) {
	req, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrRequestNotFound) {
		return Request{}, apperr.NotFound("maintenance request not found")
	}
	return req, err
}

// ListByProperty lists requests for a property, optionally filtered by status.
func (s *Service) ListByProperty(ctx context.Context, propertyID uuid.UUID, status string) ([]Request, error) {
	if status != "" && !validStatus(status) {
		return nil, apperr.Validation("unknown status filter: " + status)
	}
	return s.repo.ListByProperty(ctx, propertyID, status)
}

// UpdateStatus transitions a request through its lifecycle. resolved and
// cancelled are terminal.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (Request, error) {
	if !validStatus(status) {
		return Request{}, apperr.Validation("unknown status: " + status)
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if !validTransition(current.Status, status) {
		return Request{}, apperr.Conflict(fmt.Sprintf("cannot move request from %s to %s", current.Status, status))
	}

	return s.repo.UpdateStatus(ctx, id, status)
}

func validStatus(s string) bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusCancelled:
		return true
	}
	return false
}

func validTransition(from, to string) bool {
	switch from {
	case StatusOpen:
		return to == StatusInProgress || to == StatusResolved || to == StatusCancelled
	case StatusInProgress:
		return to == StatusResolved || to == StatusCancelled
	}
	return false
}

// normalizeDescription lowercases, strips punctuation and collapses
// whitespace so trivially reworded duplicates compare equal.
func normalizeDescription(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}
