package cost

import (
	"testing"

	"bookdigest/internal/core"
)

func TestEstimateTokenCount(t *testing.T) {
	tests := []struct {
		name string
		text string
		min  int
		max  int
	}{
		{"empty", "", 0, 0},
		{"short", "hello world", 3, 5},
		{"whitespace collapsed", "  hello\nworld  ", 3, 5},
		{"longer text", "The quick brown fox jumps over the lazy dog near the river bank.", 15, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateTokenCount(tt.text)
			if got < tt.min || got > tt.max {
				t.Errorf("EstimateTokenCount(%q) = %d, want between %d and %d", tt.text, got, tt.min, tt.max)
			}
		})
	}
}

func TestUsageCost(t *testing.T) {
	usage := core.TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}

	got := UsageCost("gemini-2.5-flash", usage)
	want := 0.30 + 2.50
	if got != want {
		t.Errorf("UsageCost flash = %f, want %f", got, want)
	}

	// Unknown model falls back to flash pricing
	if fallback := UsageCost("some-unknown-model", usage); fallback != want {
		t.Errorf("UsageCost unknown model = %f, want flash fallback %f", fallback, want)
	}
}
