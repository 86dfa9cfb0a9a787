package moderation

import "testing"

func TestContainsPhoneNumber(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"dashed", "555-123-4567", true},
		{"parenthesized area code", "(555) 123-4567", true},
		{"dotted", "555.123.4567", true},
		{"spaced", "555 123 4567", true},
		{"ten digits", "5551234567", true},
		{"long sku", "order 123456789012", true},
		{"in sentence", "call 555-123-4567 today", true},
		{"fullwidth digits", "text ５５５１２３４５６７", true},
		{"no-break spaces", "555\u00a0123\u00a04567", true},
		{"arabic-indic digits", "٥٥٥-١٢٣-٤٥٦٧", true},
		{"fullwidth short number", "room ４０２", false},
		{"short number", "I have 3 cats", false},
		{"price", "only $450 obo", false},
		{"year", "bought in 2019", false},
		{"nine digits", "123456789", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := containsPhoneNumber(tt.input); got != tt.want {
				t.Errorf("containsPhoneNumber(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
