package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "national format", input: "(212) 555-0123", want: "+12125550123"},
		{name: "already e164", input: "+12125550123", want: "+12125550123"},
		{name: "with whitespace", input: "  212-555-0123  ", want: "+12125550123"},
		{name: "international", input: "+31 20 262 1166", want: "+31202621166"},
		{name: "invalid passes through", input: "12345", want: "12345"},
		{name: "garbage passes through", input: "not-a-number", want: "not-a-number"},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeE164(tt.input); got != tt.want {
				t.Fatalf("NormalizeE164(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
