package domain

import (
	"errors"
	"fmt"
	"testing"
)

type codedErr struct{ code int }

func (e codedErr) Error() string { return fmt.Sprintf("coded %d", e.code) }
func (e codedErr) Code() int     { return e.code }

func TestLevelForCode(t *testing.T) {
	tests := []struct {
		code int
		want LogLevel
	}{
		{0, LogLevelDebug},
		{99, LogLevelDebug},
		{100, LogLevelWarning},
		{199, LogLevelWarning},
		{200, LogLevelInfo},
		{399, LogLevelInfo},
		{400, LogLevelError},
		{500, LogLevelError},
	}

	for _, tt := range tests {
		if got := LevelForCode(tt.code); got != tt.want {
			t.Errorf("LevelForCode(%d) = %s, want %s", tt.code, got, tt.want)
		}
	}
}

func TestCodeForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"plain error", errors.New("boom"), 500},
		{"coded 404", codedErr{404}, 404},
		{"coded below 400", codedErr{210}, 500},
		{"wrapped coded", fmt.Errorf("wrap: %w", codedErr{415}), 415},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeForError(tt.err); got != tt.want {
				t.Errorf("CodeForError() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLogError(t *testing.T) {
	pos := testPosition(t, testTaskListID(), 1)
	err := NewProcessingError(CodeWrongMessageReceived, "wrong type", map[string]any{"type": "Order"})

	msg := LogError(pos, fmt.Errorf("perform: %w", err))

	if msg.Code != CodeWrongMessageReceived {
		t.Errorf("expected code 415, got %d", msg.Code)
	}
	if !msg.IsError() {
		t.Errorf("expected error level, got %s", msg.Level())
	}
	if msg.Params["type"] != "Order" {
		t.Error("params should be taken from ProcessingError")
	}
	if msg.Position != pos {
		t.Error("position should be kept")
	}
}
