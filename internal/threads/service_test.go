package threads

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"rental_portal_backend/platform/logger"
)

func TestCanClose(t *testing.T) {
	for _, status := range []string{StatusActive, StatusClosing, StatusEscalated} {
		if !canClose(status) {
			t.Errorf("canClose(%s) = false, want true", status)
		}
	}
	for _, status := range []string{StatusClosed, StatusMerged} {
		if canClose(status) {
			t.Errorf("canClose(%s) = true, want false", status)
		}
	}
}

func TestCanReopen(t *testing.T) {
	for _, status := range []string{StatusClosed, StatusClosing} {
		if !canReopen(status) {
			t.Errorf("canReopen(%s) = false, want true", status)
		}
	}
	// Reopening an active thread is an invalid-state error, and merged
	// threads stay merged.
	for _, status := range []string{StatusActive, StatusEscalated, StatusMerged} {
		if canReopen(status) {
			t.Errorf("canReopen(%s) = true, want false", status)
		}
	}
}

func TestCanMergeRejectsTerminalStates(t *testing.T) {
	for _, status := range []string{StatusActive, StatusClosing, StatusEscalated} {
		if !canMerge(status) {
			t.Errorf("canMerge(%s) = false, want true", status)
		}
	}
	// A second merge attempt on an absorbed thread must fail here.
	for _, status := range []string{StatusMerged, StatusClosed} {
		if canMerge(status) {
			t.Errorf("canMerge(%s) = true, want false", status)
		}
	}
}

func TestOrderPair(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000002")

	first, second := orderPair(a, b)
	if first != a || second != b {
		t.Fatalf("orderPair(a, b) = (%s, %s)", first, second)
	}

	first, second = orderPair(b, a)
	if first != a || second != b {
		t.Fatalf("orderPair(b, a) = (%s, %s), want normalized order", first, second)
	}
}

func TestSweepSkipsWhenAlreadyRunning(t *testing.T) {
	sweeper := NewSweeper(nil, nil, nil, logger.NewNop(), 0, 0)
	sweeper.running.Store(true)

	stats, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep returned error: %v", err)
	}
	if !stats.Skipped {
		t.Fatal("expected overlapping sweep to be skipped")
	}
	if stats.Processed != 0 || stats.Closed != 0 {
		t.Fatalf("skipped sweep reported work: %+v", stats)
	}
}

func TestSweeperDefaults(t *testing.T) {
	sweeper := NewSweeper(nil, nil, nil, logger.NewNop(), 0, 0)
	if sweeper.interval <= 0 {
		t.Fatal("expected default interval")
	}
	if sweeper.defaultThresholdHours != 72 {
		t.Fatalf("defaultThresholdHours = %d, want 72", sweeper.defaultThresholdHours)
	}
}

func TestMessageBodies(t *testing.T) {
	messages := []Message{
		{Body: "first"},
		{Body: "second"},
	}
	bodies := messageBodies(messages)
	if len(bodies) != 2 || bodies[0] != "first" || bodies[1] != "second" {
		t.Fatalf("messageBodies = %v", bodies)
	}
}
