package assistant

import "testing"

func TestDecodeLooseValidJSON(t *testing.T) {
	var out EscalationAssessment
	err := decodeLoose(`{"is_escalating": true, "confidence": 0.85, "reasoning": "legal threat"}`, &out)
	if err != nil {
		t.Fatalf("decodeLoose returned error: %v", err)
	}
	if !out.IsEscalating || out.Confidence != 0.85 {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestDecodeLooseCodeFence(t *testing.T) {
	raw := "```json\n{\"topic\": \"maintenance\", \"subtopic\": \"plumbing\"}\n```"
	var out Categorization
	if err := decodeLoose(raw, &out); err != nil {
		t.Fatalf("decodeLoose returned error: %v", err)
	}
	if out.Topic != "maintenance" || out.Subtopic != "plumbing" {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestDecodeLooseSurroundingProse(t *testing.T) {
	raw := `Here is my assessment: {"is_escalating": false, "confidence": 0.2, "reasoning": "routine question"} Let me know if you need more.`
	var out EscalationAssessment
	if err := decodeLoose(raw, &out); err != nil {
		t.Fatalf("decodeLoose returned error: %v", err)
	}
	if out.IsEscalating || out.Confidence != 0.2 {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestDecodeLooseTrailingComma(t *testing.T) {
	raw := `{"topic": "payments", "subtopic": "late fee",}`
	var out Categorization
	if err := decodeLoose(raw, &out); err != nil {
		t.Fatalf("decodeLoose returned error: %v", err)
	}
	if out.Topic != "payments" {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestDecodeLooseNoObject(t *testing.T) {
	var out Categorization
	if err := decodeLoose("I could not produce a result.", &out); err == nil {
		t.Fatal("expected error for output without JSON")
	}
}

func TestExtractJSONObjectIgnoresBracesInStrings(t *testing.T) {
	raw := `{"reasoning": "tenant wrote {angry}", "confidence": 0.9}`
	got := extractJSONObject(raw)
	if got != raw {
		t.Fatalf("extractJSONObject = %q, want full object", got)
	}
}

func TestExtractJSONObjectNested(t *testing.T) {
	raw := `prefix {"a": {"b": 1}} suffix`
	got := extractJSONObject(raw)
	if got != `{"a": {"b": 1}}` {
		t.Fatalf("extractJSONObject = %q", got)
	}
}
