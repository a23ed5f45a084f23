package intake

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"rental_portal_backend/internal/directory"
	"rental_portal_backend/internal/maintenance"
	"rental_portal_backend/internal/notify"
	"rental_portal_backend/platform/logger"
)

type fakeMaintenance struct {
	inputs    []maintenance.CreateInput
	duplicate bool
	err       error
}

func (f *fakeMaintenance) Create(_ context.Context, input maintenance.CreateInput) (maintenance.CreateResult, error) {
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return maintenance.CreateResult{}, f.err
	}
	return maintenance.CreateResult{
		Request:   maintenance.Request{ID: uuid.New(), Priority: input.Priority},
		Duplicate: f.duplicate,
	}, nil
}

type fakeNotifier struct {
	requests []notify.Request
	err      error
}

func (f *fakeNotifier) Dispatch(_ context.Context, req notify.Request) (notify.Notification, error) {
	f.requests = append(f.requests, req)
	return notify.Notification{ID: uuid.New()}, f.err
}

func testContext() ExecutionContext {
	return ExecutionContext{
		TenantID:   uuid.New(),
		PropertyID: uuid.New(),
		Property: directory.Property{
			OwnerName:  "Dana Owner",
			OwnerPhone: "+15550001111",
			OwnerEmail: "dana@example.com",
			Address:    "12 Oak St",
		},
		TenantName: "Sam Tenant",
	}
}

func TestExecuteMaintenanceRequest(t *testing.T) {
	m := &fakeMaintenance{}
	ex := NewExecutor(m, &fakeNotifier{}, logger.NewNop())

	results := ex.ExecuteAll(context.Background(), []Action{
		maintenanceAction("burst pipe flooding", "emergency"),
	}, testContext())

	if len(results) != 1 || results[0].Outcome != OutcomeExecuted {
		t.Fatalf("results = %+v", results)
	}
	if results[0].RequestID == nil {
		t.Fatal("expected request id on executed maintenance action")
	}
	if len(m.inputs) != 1 || m.inputs[0].Priority != "emergency" {
		t.Fatalf("maintenance inputs = %+v", m.inputs)
	}
}

func TestExecuteMaintenanceMissingFieldsFailsValidation(t *testing.T) {
	m := &fakeMaintenance{}
	ex := NewExecutor(m, &fakeNotifier{}, logger.NewNop())

	results := ex.ExecuteAll(context.Background(), []Action{
		maintenanceAction("", "urgent"),
		maintenanceAction("window cracked", ""),
	}, testContext())

	for i, r := range results {
		if r.Outcome != OutcomeFailed {
			t.Errorf("result %d outcome = %q, want failed", i, r.Outcome)
		}
	}
	if len(m.inputs) != 0 {
		t.Fatalf("invalid actions reached the service: %+v", m.inputs)
	}
}

func TestExecuteAlertManager(t *testing.T) {
	n := &fakeNotifier{}
	ex := NewExecutor(&fakeMaintenance{}, n, logger.NewNop())

	results := ex.ExecuteAll(context.Background(), []Action{
		{Type: ActionAlertManager, Alert: &AlertManagerAction{Message: "tenant locked out", Urgency: "urgent"}},
	}, testContext())

	if results[0].Outcome != OutcomeExecuted {
		t.Fatalf("outcome = %q", results[0].Outcome)
	}
	if len(n.requests) != 1 {
		t.Fatalf("notifier calls = %d, want 1", len(n.requests))
	}
	if n.requests[0].Kind != notify.KindAlert || n.requests[0].Priority != "urgent" {
		t.Fatalf("request = %+v", n.requests[0])
	}
}

func TestExecuteAlertMissingFieldsFailsValidation(t *testing.T) {
	n := &fakeNotifier{}
	ex := NewExecutor(&fakeMaintenance{}, n, logger.NewNop())

	results := ex.ExecuteAll(context.Background(), []Action{
		{Type: ActionAlertManager, Alert: &AlertManagerAction{Message: "no heat in unit 4"}},
		{Type: ActionAlertManager, Alert: &AlertManagerAction{Urgency: "urgent"}},
	}, testContext())

	for i, r := range results {
		if r.Outcome != OutcomeFailed {
			t.Errorf("result %d outcome = %q, want failed", i, r.Outcome)
		}
	}
	if len(n.requests) != 0 {
		t.Fatalf("invalid alerts reached the notifier: %+v", n.requests)
	}
}

func TestExecuteUnknownActionIsNoOp(t *testing.T) {
	m := &fakeMaintenance{}
	n := &fakeNotifier{}
	ex := NewExecutor(m, n, logger.NewNop())

	results := ex.ExecuteAll(context.Background(), []Action{
		{Type: "schedule_viewing"},
	}, testContext())

	if results[0].Outcome != OutcomeSkipped {
		t.Fatalf("outcome = %q, want skipped", results[0].Outcome)
	}
	if len(m.inputs) != 0 || len(n.requests) != 0 {
		t.Fatal("unknown action must cause no side effects")
	}
}

func TestExecuteActionsIndependent(t *testing.T) {
	// A failing first action must not stop the rest of the batch.
	m := &fakeMaintenance{err: errors.New("db down")}
	n := &fakeNotifier{}
	ex := NewExecutor(m, n, logger.NewNop())

	results := ex.ExecuteAll(context.Background(), []Action{
		maintenanceAction("burst pipe", "emergency"),
		{Type: ActionAlertManager, Alert: &AlertManagerAction{Message: "flooding", Urgency: "emergency"}},
	}, testContext())

	if results[0].Outcome != OutcomeFailed {
		t.Fatalf("first outcome = %q, want failed", results[0].Outcome)
	}
	if results[1].Outcome != OutcomeExecuted {
		t.Fatalf("second outcome = %q, want executed", results[1].Outcome)
	}
}

func TestExecuteDuplicateMaintenanceSkipped(t *testing.T) {
	m := &fakeMaintenance{duplicate: true}
	ex := NewExecutor(m, &fakeNotifier{}, logger.NewNop())

	results := ex.ExecuteAll(context.Background(), []Action{
		maintenanceAction("leaking sink", "normal"),
	}, testContext())

	if results[0].Outcome != OutcomeSkipped {
		t.Fatalf("outcome = %q, want skipped", results[0].Outcome)
	}
	if results[0].RequestID == nil {
		t.Fatal("duplicate result should reference the earlier request")
	}
}

func TestExecuteAlertTransportFailureIsPartial(t *testing.T) {
	n := &fakeNotifier{err: errors.New("all channels failed")}
	ex := NewExecutor(&fakeMaintenance{}, n, logger.NewNop())

	results := ex.ExecuteAll(context.Background(), []Action{
		{Type: ActionAlertManager, Alert: &AlertManagerAction{Message: "urgent issue", Urgency: "urgent"}},
	}, testContext())

	if results[0].Outcome != OutcomeFailed {
		t.Fatalf("outcome = %q, want failed", results[0].Outcome)
	}
	if results[0].Detail == "" {
		t.Fatal("failed result must carry the reason")
	}
}
