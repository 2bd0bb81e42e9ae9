package gpio

import (
	"errors"
	"testing"
)

func TestLevelIsActiveLow(t *testing.T) {
	if Level(true) != Low {
		t.Errorf("Level(true): got %d, want %d", Level(true), Low)
	}
	if Level(false) != High {
		t.Errorf("Level(false): got %d, want %d", Level(false), High)
	}
}

func TestFakeLEDDrive(t *testing.T) {
	f := NewFakeLED()

	if f.Lit() {
		t.Error("should not be lit before any drive")
	}

	for _, on := range []bool{true, true, false} {
		if err := f.Drive(on); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if len(f.States) != 3 {
		t.Fatalf("expected 3 drives, got %d", len(f.States))
	}
	wantLevels := []int{Low, Low, High}
	for i, want := range wantLevels {
		if f.Levels[i] != want {
			t.Errorf("drive %d: level %d, want %d", i, f.Levels[i], want)
		}
	}
	if f.Lit() {
		t.Error("should be off after last drive false")
	}
}

func TestFakeLEDError(t *testing.T) {
	f := NewFakeLED()
	f.DriveError = errors.New("simulated error")

	err := f.Drive(true)
	if err == nil || err.Error() != "simulated error" {
		t.Errorf("unexpected error: %v", err)
	}
	if len(f.States) != 1 {
		t.Error("drive should still be recorded")
	}
}

func TestFakeLEDCloseAndReset(t *testing.T) {
	f := NewFakeLED()
	f.Drive(true)

	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !f.Closed {
		t.Error("should be closed after Close()")
	}

	f.Reset()
	if f.Closed || len(f.States) != 0 || len(f.Levels) != 0 {
		t.Error("Reset should clear state")
	}
}
