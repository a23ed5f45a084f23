// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"rental_portal_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Intake Domain Events
// =============================================================================

// MessageReceived is published after an inbound message has been persisted
// and its actions executed.
type MessageReceived struct {
	BaseEvent
	MessageID  uuid.UUID `json:"messageId"`
	ThreadID   uuid.UUID `json:"threadId"`
	TenantID   uuid.UUID `json:"tenantId"`
	PropertyID uuid.UUID `json:"propertyId"`
	Channel    string    `json:"channel"`
	NewThread  bool      `json:"newThread"`
}

func (e MessageReceived) EventName() string { return "intake.message.received" }

// MaintenanceRequestCreated is published when the action executor opens a
// maintenance request.
type MaintenanceRequestCreated struct {
	BaseEvent
	RequestID  uuid.UUID `json:"requestId"`
	TenantID   uuid.UUID `json:"tenantId"`
	PropertyID uuid.UUID `json:"propertyId"`
	Priority   string    `json:"priority"`
}

func (e MaintenanceRequestCreated) EventName() string { return "maintenance.request.created" }

// =============================================================================
// Thread Lifecycle Events
// =============================================================================

// ThreadEscalated is published when escalation detection flips a thread to escalated.
type ThreadEscalated struct {
	BaseEvent
	ThreadID   uuid.UUID `json:"threadId"`
	TenantID   uuid.UUID `json:"tenantId"`
	Confidence float64   `json:"confidence"`
	Reasoning  string    `json:"reasoning"`
}

func (e ThreadEscalated) EventName() string { return "threads.escalated" }

// ThreadAutoClosed is published when the inactivity sweep closes a thread.
type ThreadAutoClosed struct {
	BaseEvent
	ThreadID      uuid.UUID `json:"threadId"`
	TenantID      uuid.UUID `json:"tenantId"`
	HoursInactive float64   `json:"hoursInactive"`
	ThresholdHrs  int       `json:"thresholdHours"`
}

func (e ThreadAutoClosed) EventName() string { return "threads.auto_closed" }

// ThreadsMerged is published after a merge absorbs a source thread into a target.
type ThreadsMerged struct {
	BaseEvent
	TargetID      uuid.UUID `json:"targetId"`
	SourceID      uuid.UUID `json:"sourceId"`
	TenantID      uuid.UUID `json:"tenantId"`
	MessagesMoved int       `json:"messagesMoved"`
}

func (e ThreadsMerged) EventName() string { return "threads.merged" }

// =============================================================================
// Notification Events
// =============================================================================

// NotificationDispatched is published after the router attempts a delivery,
// whether it succeeded or not.
type NotificationDispatched struct {
	BaseEvent
	NotificationID uuid.UUID `json:"notificationId"`
	Channel        string    `json:"channel"`
	Success        bool      `json:"success"`
}

func (e NotificationDispatched) EventName() string { return "notifications.dispatched" }
