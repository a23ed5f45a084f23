package intake

import (
	"strings"
	"testing"

	"rental_portal_backend/platform/logger"
)

func TestExtractActionsBurstPipeScenario(t *testing.T) {
	reply := `I'm so sorry to hear that! I've flagged this as an emergency and notified the owner right away.

{"action": "maintenance_request", "description": "Burst pipe flooding the unit", "priority": "emergency"}
{"action": "alert_manager", "message": "Tenant reports burst pipe and flooding", "urgency": "emergency"}`

	actions, cleaned := ExtractActions(reply, logger.NewNop())
	if len(actions) != 2 {
		t.Fatalf("got %d actions, want 2", len(actions))
	}

	if actions[0].Type != ActionMaintenanceRequest {
		t.Fatalf("first action = %q, want maintenance_request", actions[0].Type)
	}
	if actions[0].Maintenance == nil || actions[0].Maintenance.Priority != "emergency" {
		t.Fatalf("maintenance variant = %+v", actions[0].Maintenance)
	}
	if actions[1].Type != ActionAlertManager {
		t.Fatalf("second action = %q, want alert_manager", actions[1].Type)
	}
	if actions[1].Alert == nil || actions[1].Alert.Message == "" {
		t.Fatalf("alert variant = %+v", actions[1].Alert)
	}

	if strings.Contains(cleaned, "{") || strings.Contains(cleaned, "action") {
		t.Fatalf("cleaned reply still contains block content: %q", cleaned)
	}
	if !strings.Contains(cleaned, "flagged this as an emergency") {
		t.Fatalf("prose lost from cleaned reply: %q", cleaned)
	}
}

func TestExtractActionsPreservesOrder(t *testing.T) {
	reply := `Done.
{"action": "alert_manager", "message": "first", "urgency": "normal"}
{"action": "maintenance_request", "description": "second", "priority": "low"}
{"action": "alert_manager", "message": "third", "urgency": "low"}`

	actions, _ := ExtractActions(reply, logger.NewNop())
	if len(actions) != 3 {
		t.Fatalf("got %d actions, want 3", len(actions))
	}
	if actions[0].Alert.Message != "first" || actions[1].Maintenance.Description != "second" || actions[2].Alert.Message != "third" {
		t.Fatalf("order not preserved: %+v", actions)
	}
}

func TestExtractActionsMalformedBlockKeepsProse(t *testing.T) {
	reply := `Here's what I did.
{"action": "maintenance_request", "description": "broken {{{ quote, "priority":}
All set!`

	actions, cleaned := ExtractActions(reply, logger.NewNop())
	// The block may or may not be recoverable by repair; the prose must
	// survive either way.
	if !strings.Contains(cleaned, "Here's what I did.") {
		t.Fatalf("leading prose lost: %q", cleaned)
	}
	for _, a := range actions {
		if a.Type == "" {
			t.Fatalf("action without discriminator: %+v", a)
		}
	}
}

func TestExtractActionsNoBlocks(t *testing.T) {
	reply := "The pool is open from 8am to 10pm. Let me know if you need anything else!"
	actions, cleaned := ExtractActions(reply, logger.NewNop())
	if len(actions) != 0 {
		t.Fatalf("got %d actions, want 0", len(actions))
	}
	if cleaned != reply {
		t.Fatalf("reply changed: %q", cleaned)
	}
}

func TestExtractActionsLeavesNonActionJSON(t *testing.T) {
	reply := `Your lease data is {"rent": 1200} per month.`
	actions, cleaned := ExtractActions(reply, logger.NewNop())
	if len(actions) != 0 {
		t.Fatalf("got %d actions, want 0", len(actions))
	}
	if !strings.Contains(cleaned, `{"rent": 1200}`) {
		t.Fatalf("non-action JSON removed: %q", cleaned)
	}
}

func TestExtractActionsUnknownTypeKept(t *testing.T) {
	reply := `Sure.
{"action": "schedule_viewing", "description": "tomorrow 3pm"}`

	actions, _ := ExtractActions(reply, logger.NewNop())
	if len(actions) != 1 {
		t.Fatalf("got %d actions, want 1", len(actions))
	}
	if actions[0].Type != "schedule_viewing" {
		t.Fatalf("type = %q", actions[0].Type)
	}
	if actions[0].Maintenance != nil || actions[0].Alert != nil {
		t.Fatal("unknown action must carry no variant")
	}
}

func TestExtractActionsCodeFencedBlock(t *testing.T) {
	reply := "On it!\n```json\n{\"action\": \"maintenance_request\", \"description\": \"AC not cooling\", \"priority\": \"urgent\"}\n```"
	actions, cleaned := ExtractActions(reply, logger.NewNop())
	if len(actions) != 1 || actions[0].Maintenance == nil {
		t.Fatalf("actions = %+v", actions)
	}
	if strings.Contains(cleaned, "```") {
		t.Fatalf("fence left in cleaned reply: %q", cleaned)
	}
}

func TestExtractActionsTrailingComma(t *testing.T) {
	reply := `Noted.
{"action": "maintenance_request", "description": "door lock jammed", "priority": "normal",}`

	actions, _ := ExtractActions(reply, logger.NewNop())
	if len(actions) != 1 {
		t.Fatalf("got %d actions, want 1 (repairable block)", len(actions))
	}
	if actions[0].Maintenance.Description != "door lock jammed" {
		t.Fatalf("description = %q", actions[0].Maintenance.Description)
	}
}
