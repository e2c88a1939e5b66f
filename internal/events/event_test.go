package events

import "testing"

func TestValidEventTypes(t *testing.T) {
	types := ValidEventTypes()
	if len(types) != 3 {
		t.Fatalf("expected 3 valid event types, got %d", len(types))
	}
}

func TestIsValidEventType(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"output", true},
		{"closed", true},
		{"diagnostic", true},
		{"invalid", false},
		{"", false},
		{"OUTPUT", false},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			if got := IsValidEventType(tc.input); got != tc.expected {
				t.Errorf("IsValidEventType(%q) = %v, want %v", tc.input, got, tc.expected)
			}
		})
	}
}
