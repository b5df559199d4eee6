package logger

import (
	"errors"
	"testing"
)

func TestLevelHelpers(t *testing.T) {
	// The helpers chain level methods off Get(); this exercises every one.
	Init()
	Info("info message", "key", "value")
	Warn("warn message", "count", 3)
	Error("error message", errors.New("boom"), "id", "1")
	Debug("debug message")
}

func TestGetReturnsUsableLogger(t *testing.T) {
	l := Get()
	if l == nil {
		t.Fatal("Expected non-nil logger")
	}
	l.Info().Str("key", "value").Msg("direct use")
}

func TestSetLevel(t *testing.T) {
	SetLevel("debug")
	SetLevel("warn")
	SetLevel("not-a-level") // falls back to info
	SetLevel("info")
}

func TestFields(t *testing.T) {
	m := fields([]any{"a", 1, "b", "two"})
	if m["a"] != 1 || m["b"] != "two" {
		t.Errorf("Unexpected fields map: %v", m)
	}

	if got := fields(nil); got != nil {
		t.Errorf("Expected nil map for no args, got %v", got)
	}

	// Trailing key with no value is dropped.
	m = fields([]any{"a", 1, "dangling"})
	if _, ok := m["dangling"]; ok {
		t.Error("Dangling key should be dropped")
	}
}
