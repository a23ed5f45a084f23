package intake

import (
	"context"

	"github.com/google/uuid"

	"rental_portal_backend/internal/directory"
	"rental_portal_backend/internal/maintenance"
	"rental_portal_backend/internal/notify"
	"rental_portal_backend/platform/logger"
)

// Execution outcomes recorded per action.
const (
	OutcomeExecuted = "executed"
	OutcomeFailed   = "failed"
	OutcomeSkipped  = "skipped"
)

// ExecutionResult records what happened to one action.
type ExecutionResult struct {
	Action    Action     `json:"-"`
	Type      string     `json:"action"`
	Outcome   string     `json:"outcome"`
	Detail    string     `json:"detail,omitempty"`
	RequestID *uuid.UUID `json:"requestId,omitempty"`
}

// ExecutionContext carries the originating identifiers and owner contact
// context every action needs.
type ExecutionContext struct {
	TenantID   uuid.UUID
	PropertyID uuid.UUID
	ThreadID   *uuid.UUID
	MessageID  *uuid.UUID
	Property   directory.Property
	TenantName string
}

type maintenanceCreator interface {
	Create(ctx context.Context, input maintenance.CreateInput) (maintenance.CreateResult, error)
}

type ownerNotifier interface {
	Dispatch(ctx context.Context, req notify.Request) (notify.Notification, error)
}

// Executor dispatches deduplicated actions to their side effects. Each
// action runs independently: one failure never stops the rest.
type Executor struct {
	maintenance maintenanceCreator
	notifier    ownerNotifier
	log         *logger.Logger
}

// NewExecutor creates the action executor.
func NewExecutor(m maintenanceCreator, n ownerNotifier, log *logger.Logger) *Executor {
	return &Executor{maintenance: m, notifier: n, log: log}
}

// ExecuteAll runs every action and reports per-action outcomes.
func (e *Executor) ExecuteAll(ctx context.Context, actions []Action, ectx ExecutionContext) []ExecutionResult {
	results := make([]ExecutionResult, 0, len(actions))
	for _, action := range actions {
		results = append(results, e.execute(ctx, action, ectx))
	}
	return results
}

func (e *Executor) execute(ctx context.Context, action Action, ectx ExecutionContext) ExecutionResult {
	switch action.Type {
	case ActionMaintenanceRequest:
		return e.executeMaintenance(ctx, action, ectx)
	case ActionAlertManager:
		return e.executeAlert(ctx, action, ectx)
	default:
		e.log.Warn("unrecognized action type, recorded as no-op", "type", action.Type)
		return ExecutionResult{
			Action:  action,
			Type:    action.Type,
			Outcome: OutcomeSkipped,
			Detail:  "unrecognized action type",
		}
	}
}

func (e *Executor) executeMaintenance(ctx context.Context, action Action, ectx ExecutionContext) ExecutionResult {
	result := ExecutionResult{Action: action, Type: action.Type}

	if action.Maintenance == nil || action.Maintenance.Description == "" || action.Maintenance.Priority == "" {
		result.Outcome = OutcomeFailed
		result.Detail = "maintenance_request requires description and priority"
		return result
	}

	created, err := e.maintenance.Create(ctx, maintenance.CreateInput{
		PropertyID:  ectx.PropertyID,
		TenantID:    ectx.TenantID,
		ThreadID:    ectx.ThreadID,
		MessageID:   ectx.MessageID,
		Description: action.Maintenance.Description,
		Priority:    notify.NormalizePriority(action.Maintenance.Priority),
	})
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Detail = err.Error()
		return result
	}

	id := created.Request.ID
	result.RequestID = &id
	if created.Duplicate {
		result.Outcome = OutcomeSkipped
		result.Detail = "suppressed as near-duplicate of recent request"
		return result
	}

	result.Outcome = OutcomeExecuted
	return result
}

func (e *Executor) executeAlert(ctx context.Context, action Action, ectx ExecutionContext) ExecutionResult {
	result := ExecutionResult{Action: action, Type: action.Type}

	if action.Alert == nil || action.Alert.Message == "" || action.Alert.Urgency == "" {
		result.Outcome = OutcomeFailed
		result.Detail = "alert_manager requires message and urgency"
		return result
	}

	_, err := e.notifier.Dispatch(ctx, notify.Request{
		Kind:            notify.KindAlert,
		OwnerName:       ectx.Property.OwnerName,
		OwnerPhone:      ectx.Property.OwnerPhone,
		OwnerEmail:      ectx.Property.OwnerEmail,
		PropertyAddress: ectx.Property.Address,
		TenantName:      ectx.TenantName,
		Message:         action.Alert.Message,
		Priority:        notify.NormalizePriority(action.Alert.Urgency),
	})
	if err != nil {
		// Delivery failure is a partial failure; it is already persisted as a
		// failed Notification by the router.
		result.Outcome = OutcomeFailed
		result.Detail = err.Error()
		return result
	}

	result.Outcome = OutcomeExecuted
	return result
}
