package maintenance

import "testing"

func TestNormalizeDescription(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "Leaking PIPE", "leaking pipe"},
		{"strips punctuation", "pipe burst, flooding!", "pipe burst flooding"},
		{"collapses whitespace", "  pipe   burst \n flooding ", "pipe burst flooding"},
		{"keeps digits", "unit 2B heater broken", "unit 2b heater broken"},
		{"empty", "  !!  ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeDescription(tt.in); got != tt.want {
				t.Fatalf("normalizeDescription(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeDescriptionEquivalence(t *testing.T) {
	a := normalizeDescription("The kitchen sink is leaking!")
	b := normalizeDescription("the kitchen  sink is leaking")
	if a != b {
		t.Fatalf("expected %q and %q to normalize equal", a, b)
	}
}

func TestValidTransition(t *testing.T) {
	allowed := []struct{ from, to string }{
		{StatusOpen, StatusInProgress},
		{StatusOpen, StatusResolved},
		{StatusOpen, StatusCancelled},
		{StatusInProgress, StatusResolved},
		{StatusInProgress, StatusCancelled},
	}
	for _, tt := range allowed {
		if !validTransition(tt.from, tt.to) {
			t.Errorf("validTransition(%s, %s) = false, want true", tt.from, tt.to)
		}
	}

	denied := []struct{ from, to string }{
		{StatusResolved, StatusOpen},
		{StatusCancelled, StatusInProgress},
		{StatusResolved, StatusResolved},
		{StatusOpen, StatusOpen},
	}
	for _, tt := range denied {
		if validTransition(tt.from, tt.to) {
			t.Errorf("validTransition(%s, %s) = true, want false", tt.from, tt.to)
		}
	}
}
