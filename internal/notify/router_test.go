package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"rental_portal_backend/platform/logger"
)

type fakeStore struct {
	created []Notification
	sent    []uuid.UUID
	failed  map[uuid.UUID]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{failed: make(map[uuid.UUID]string)}
}

func (s *fakeStore) Create(_ context.Context, recipient, subject, message, channel, priority string) (Notification, error) {
	n := Notification{
		ID:        uuid.New(),
		Recipient: recipient,
		Subject:   subject,
		Message:   message,
		Channel:   channel,
		Priority:  priority,
		Status:    StatusPending,
	}
	s.created = append(s.created, n)
	return n, nil
}

func (s *fakeStore) MarkSent(_ context.Context, id uuid.UUID) error {
	s.sent = append(s.sent, id)
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, id uuid.UUID, errMsg string) error {
	s.failed[id] = errMsg
	return nil
}

type fakeSMS struct {
	calls int
	err   error
}

func (f *fakeSMS) Send(_ context.Context, _, _ string) (string, error) {
	f.calls++
	return "SM123", f.err
}

type fakeEmail struct {
	alerts      int
	escalations int
	err         error
}

func (f *fakeEmail) SendOwnerAlert(_ context.Context, _, _, _, _, _ string) error {
	f.alerts++
	return f.err
}

func (f *fakeEmail) SendEscalationAlert(_ context.Context, _, _, _, _, _ string) error {
	f.escalations++
	return f.err
}

func testRequest(priority string) Request {
	return Request{
		Kind:            KindAlert,
		OwnerName:       "Dana Owner",
		OwnerPhone:      "+15550001111",
		OwnerEmail:      "dana@example.com",
		PropertyAddress: "12 Oak St",
		Message:         "Pipe burst in unit 2",
		Priority:        priority,
	}
}

func TestDispatchEmergencyUsesSMS(t *testing.T) {
	store := newFakeStore()
	sms := &fakeSMS{}
	email := &fakeEmail{}
	router := NewRouter(store, sms, email, nil, logger.NewNop())

	n, err := router.Dispatch(context.Background(), testRequest(PriorityEmergency))
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if n.Channel != ChannelSMS {
		t.Fatalf("channel = %q, want sms", n.Channel)
	}
	if sms.calls != 1 || email.alerts != 0 {
		t.Fatalf("sms.calls = %d, email.alerts = %d", sms.calls, email.alerts)
	}
	if n.Status != StatusSent {
		t.Fatalf("status = %q, want sent", n.Status)
	}
}

func TestDispatchNormalUsesEmail(t *testing.T) {
	store := newFakeStore()
	sms := &fakeSMS{}
	email := &fakeEmail{}
	router := NewRouter(store, sms, email, nil, logger.NewNop())

	n, err := router.Dispatch(context.Background(), testRequest(PriorityNormal))
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if n.Channel != ChannelEmail {
		t.Fatalf("channel = %q, want email", n.Channel)
	}
	if email.alerts != 1 || sms.calls != 0 {
		t.Fatalf("email.alerts = %d, sms.calls = %d", email.alerts, sms.calls)
	}
}

func TestDispatchFallsBackToEmailWhenSMSFails(t *testing.T) {
	store := newFakeStore()
	sms := &fakeSMS{err: errors.New("twilio down")}
	email := &fakeEmail{}
	router := NewRouter(store, sms, email, nil, logger.NewNop())

	n, err := router.Dispatch(context.Background(), testRequest(PriorityUrgent))
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if n.Channel != ChannelEmail {
		t.Fatalf("final channel = %q, want email fallback", n.Channel)
	}
	if len(store.created) != 2 {
		t.Fatalf("created %d notifications, want 2 (failed sms + sent email)", len(store.created))
	}
	if len(store.failed) != 1 {
		t.Fatalf("failed count = %d, want 1", len(store.failed))
	}
}

func TestDispatchAllChannelsFail(t *testing.T) {
	store := newFakeStore()
	sms := &fakeSMS{err: errors.New("twilio down")}
	email := &fakeEmail{err: errors.New("smtp down")}
	router := NewRouter(store, sms, email, nil, logger.NewNop())

	n, err := router.Dispatch(context.Background(), testRequest(PriorityEmergency))
	if err == nil {
		t.Fatal("expected error when every channel fails")
	}
	if n.Status != StatusFailed {
		t.Fatalf("status = %q, want failed", n.Status)
	}
	if len(store.failed) != 2 {
		t.Fatalf("failed count = %d, want 2", len(store.failed))
	}
}

func TestDispatchSkipsChannelWithoutRecipient(t *testing.T) {
	store := newFakeStore()
	sms := &fakeSMS{}
	email := &fakeEmail{}
	router := NewRouter(store, sms, email, nil, logger.NewNop())

	req := testRequest(PriorityEmergency)
	req.OwnerPhone = ""

	n, err := router.Dispatch(context.Background(), req)
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if n.Channel != ChannelEmail {
		t.Fatalf("channel = %q, want email", n.Channel)
	}
	if sms.calls != 0 {
		t.Fatalf("sms.calls = %d, want 0", sms.calls)
	}
}

func TestDispatchNoReachableChannel(t *testing.T) {
	store := newFakeStore()
	router := NewRouter(store, nil, nil, nil, logger.NewNop())

	_, err := router.Dispatch(context.Background(), testRequest(PriorityNormal))
	if err == nil {
		t.Fatal("expected error when no channel is reachable")
	}
	if len(store.created) != 0 {
		t.Fatalf("created %d notifications, want 0", len(store.created))
	}
}

func TestDispatchEscalationUsesEscalationEmail(t *testing.T) {
	store := newFakeStore()
	email := &fakeEmail{}
	router := NewRouter(store, nil, email, nil, logger.NewNop())

	req := testRequest(PriorityNormal)
	req.Kind = KindEscalation
	req.TenantName = "Sam Tenant"

	if _, err := router.Dispatch(context.Background(), req); err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if email.escalations != 1 || email.alerts != 0 {
		t.Fatalf("escalations = %d, alerts = %d", email.escalations, email.alerts)
	}
}

func TestNormalizePriority(t *testing.T) {
	if got := NormalizePriority("emergency"); got != PriorityEmergency {
		t.Fatalf("NormalizePriority(emergency) = %q", got)
	}
	if got := NormalizePriority("whatever"); got != PriorityNormal {
		t.Fatalf("NormalizePriority(whatever) = %q, want normal", got)
	}
	if got := NormalizePriority(""); got != PriorityNormal {
		t.Fatalf("NormalizePriority(empty) = %q, want normal", got)
	}
}
