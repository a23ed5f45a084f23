package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"rental_portal_backend/internal/events"
	"rental_portal_backend/platform/apperr"
	"rental_portal_backend/platform/logger"
)

// Priorities, highest first. Unknown values are treated as normal.
const (
	PriorityEmergency = "emergency"
	PriorityUrgent    = "urgent"
	PriorityNormal    = "normal"
	PriorityLow       = "low"
)

// Delivery channels.
const (
	ChannelSMS   = "sms"
	ChannelEmail = "email"
)

// Notification kinds.
const (
	KindAlert      = "alert"
	KindEscalation = "escalation"
)

// NormalizePriority maps any input to one of the four known priorities.
func NormalizePriority(p string) string {
	switch p {
	case PriorityEmergency, PriorityUrgent, PriorityNormal, PriorityLow:
		return p
	default:
		return PriorityNormal
	}
}

// channelForPriority picks the primary channel: high-urgency goes to SMS so
// the owner sees it immediately, the rest goes to email.
func channelForPriority(priority string) string {
	switch priority {
	case PriorityEmergency, PriorityUrgent:
		return ChannelSMS
	default:
		return ChannelEmail
	}
}

type smsSender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

type emailSender interface {
	SendOwnerAlert(ctx context.Context, toEmail, ownerName, propertyAddress, urgency, message string) error
	SendEscalationAlert(ctx context.Context, toEmail, ownerName, propertyAddress, tenantName, reason string) error
}

type deliveryStore interface {
	Create(ctx context.Context, recipient, subject, message, channel, priority string) (Notification, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
}

// Request describes one owner notification to deliver.
type Request struct {
	Kind            string
	OwnerName       string
	OwnerPhone      string
	OwnerEmail      string
	PropertyAddress string
	TenantName      string
	Message         string
	Priority        string
}

// Router delivers owner notifications over the channel matching the request
// priority, falling back to the other channel when the first attempt fails or
// the owner has no address on it. Every attempt is persisted before the
// transport is called.
type Router struct {
	store deliveryStore
	sms   smsSender
	email emailSender
	bus   events.Bus
	log   *logger.Logger
}

// NewRouter wires the router. sms and email may be nil when the transport is
// not configured; the router treats a missing transport like a missing
// recipient address.
func NewRouter(store deliveryStore, sms smsSender, email emailSender, bus events.Bus, log *logger.Logger) *Router {
	return &Router{store: store, sms: sms, email: email, bus: bus, log: log}
}

// SetSMS injects the SMS transport after construction. The composition root
// calls it only when Twilio is configured.
func (r *Router) SetSMS(s smsSender) { r.sms = s }

// SetEmail injects the email transport after construction.
func (r *Router) SetEmail(e emailSender) { r.email = e }

// Dispatch delivers the notification. It returns the final persisted
// Notification; the error is non-nil only when every candidate channel
// failed, and callers treat it as a partial failure, not a fatal one.
func (r *Router) Dispatch(ctx context.Context, req Request) (Notification, error) {
	priority := NormalizePriority(req.Priority)

	var lastNotification Notification
	var lastErr error
	attempted := false

	for _, channel := range r.candidateChannels(priority, req) {
		attempted = true

		notification, err := r.store.Create(ctx, r.recipientFor(channel, req), r.subjectFor(req), req.Message, channel, priority)
		if err != nil {
			return Notification{}, fmt.Errorf("persist notification: %w", err)
		}
		lastNotification = notification

		sendErr := r.deliver(ctx, channel, req)
		if sendErr == nil {
			if err := r.store.MarkSent(ctx, notification.ID); err != nil {
				r.log.DatabaseError("notifications.mark_sent", err)
			}
			notification.Status = StatusSent
			r.publish(ctx, notification.ID, channel, true)
			return notification, nil
		}

		r.log.TransportError(channel, r.recipientFor(channel, req), sendErr)
		if err := r.store.MarkFailed(ctx, notification.ID, sendErr.Error()); err != nil {
			r.log.DatabaseError("notifications.mark_failed", err)
		}
		notification.Status = StatusFailed
		lastNotification = notification
		lastErr = sendErr
		r.publish(ctx, notification.ID, channel, false)
	}

	if !attempted {
		return Notification{}, apperr.Unavailable("owner has no reachable contact channel")
	}
	return lastNotification, apperr.Wrap(apperr.KindUnavailable, "notification delivery failed", lastErr)
}

// candidateChannels returns the priority channel first, then the fallback,
// skipping channels with no transport or no recipient address.
func (r *Router) candidateChannels(priority string, req Request) []string {
	order := []string{ChannelSMS, ChannelEmail}
	if channelForPriority(priority) == ChannelEmail {
		order = []string{ChannelEmail, ChannelSMS}
	}

	var out []string
	for _, channel := range order {
		switch channel {
		case ChannelSMS:
			if r.sms != nil && req.OwnerPhone != "" {
				out = append(out, channel)
			}
		case ChannelEmail:
			if r.email != nil && req.OwnerEmail != "" {
				out = append(out, channel)
			}
		}
	}
	return out
}

func (r *Router) recipientFor(channel string, req Request) string {
	if channel == ChannelSMS {
		return req.OwnerPhone
	}
	return req.OwnerEmail
}

func (r *Router) subjectFor(req Request) string {
	if req.Kind == KindEscalation {
		return fmt.Sprintf("Escalated conversation at %s", req.PropertyAddress)
	}
	return fmt.Sprintf("Tenant update for %s", req.PropertyAddress)
}

func (r *Router) deliver(ctx context.Context, channel string, req Request) error {
	if channel == ChannelSMS {
		body := fmt.Sprintf("[%s] %s: %s", NormalizePriority(req.Priority), req.PropertyAddress, req.Message)
		_, err := r.sms.Send(ctx, req.OwnerPhone, body)
		return err
	}

	if req.Kind == KindEscalation {
		return r.email.SendEscalationAlert(ctx, req.OwnerEmail, req.OwnerName, req.PropertyAddress, req.TenantName, req.Message)
	}
	return r.email.SendOwnerAlert(ctx, req.OwnerEmail, req.OwnerName, req.PropertyAddress, NormalizePriority(req.Priority), req.Message)
}

func (r *Router) publish(ctx context.Context, id uuid.UUID, channel string, success bool) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(ctx, events.NotificationDispatched{
		BaseEvent:      events.NewBaseEvent(),
		NotificationID: id,
		Channel:        channel,
		Success:        success,
	})
}
