package intake

import "testing"

func maintenanceAction(description, priority string) Action {
	return Action{
		Type:        ActionMaintenanceRequest,
		Maintenance: &MaintenanceRequestAction{Description: description, Priority: priority},
	}
}

func TestDedupeActionsFirstWins(t *testing.T) {
	actions := []Action{
		maintenanceAction("leaking sink", "urgent"),
		maintenanceAction("leaking sink", "urgent"),
		maintenanceAction("leaking sink", "urgent"),
	}

	deduped, dropped := DedupeActions(actions)
	if len(deduped) != 1 {
		t.Fatalf("got %d actions, want 1", len(deduped))
	}
	if dropped != 2 {
		t.Fatalf("dropped = %d, want 2", dropped)
	}
}

func TestDedupeActionsDifferentPriorityKept(t *testing.T) {
	actions := []Action{
		maintenanceAction("leaking sink", "urgent"),
		maintenanceAction("leaking sink", "normal"),
	}

	deduped, dropped := DedupeActions(actions)
	if len(deduped) != 2 || dropped != 0 {
		t.Fatalf("got %d actions, dropped %d; want 2 and 0", len(deduped), dropped)
	}
}

func TestDedupeActionsCaseSensitive(t *testing.T) {
	// The contract is byte-for-byte equality; near-duplicates are the
	// maintenance service's time-windowed check's job.
	actions := []Action{
		maintenanceAction("Leaking sink", "urgent"),
		maintenanceAction("leaking sink", "urgent"),
	}

	deduped, _ := DedupeActions(actions)
	if len(deduped) != 2 {
		t.Fatalf("got %d actions, want 2", len(deduped))
	}
}

func TestDedupeActionsPreservesOrder(t *testing.T) {
	actions := []Action{
		maintenanceAction("a", "low"),
		maintenanceAction("b", "low"),
		maintenanceAction("a", "low"),
		maintenanceAction("c", "low"),
	}

	deduped, dropped := DedupeActions(actions)
	if dropped != 1 {
		t.Fatalf("dropped = %d, want 1", dropped)
	}
	want := []string{"a", "b", "c"}
	for i, w := range want {
		if deduped[i].Maintenance.Description != w {
			t.Fatalf("position %d = %q, want %q", i, deduped[i].Maintenance.Description, w)
		}
	}
}

func TestDedupeActionsEmptyAndSingle(t *testing.T) {
	if out, dropped := DedupeActions(nil); len(out) != 0 || dropped != 0 {
		t.Fatalf("nil input: %v, %d", out, dropped)
	}
	single := []Action{maintenanceAction("x", "low")}
	if out, dropped := DedupeActions(single); len(out) != 1 || dropped != 0 {
		t.Fatalf("single input: %v, %d", out, dropped)
	}
}
