package adc

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sweeney/fret-sensor/internal/logic"
)

func writeRaw(t *testing.T, dir string, pin int, content string) {
	t.Helper()
	if err := os.WriteFile(RawPath(dir, pin), []byte(content), 0o644); err != nil {
		t.Fatalf("write raw: %v", err)
	}
}

func TestRawPath(t *testing.T) {
	got := RawPath("/sys/bus/iio/devices/iio:device0", 4)
	want := "/sys/bus/iio/devices/iio:device0/in_voltage4_raw"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNewIIOSamplerMissingDir(t *testing.T) {
	_, err := NewIIOSampler(filepath.Join(t.TempDir(), "nope"), nil)
	if err == nil {
		t.Error("expected error for missing device directory")
	}
}

func TestNewIIOSamplerNotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	os.WriteFile(f, nil, 0o644)
	if _, err := NewIIOSampler(f, nil); err == nil {
		t.Error("expected error when device path is a file")
	}
}

func TestIIOSamplerRead(t *testing.T) {
	dir := t.TempDir()
	writeRaw(t, dir, 4, "2770\n")

	s, err := NewIIOSampler(dir, nil)
	if err != nil {
		t.Fatalf("NewIIOSampler: %v", err)
	}

	v, err := s.Read(4)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if v != 2770 {
		t.Errorf("got %d, want 2770", v)
	}

	if got := s.Sample(logic.Channel{Index: 0, Pin: 4}); got != 2770 {
		t.Errorf("Sample: got %d, want 2770", got)
	}
}

func TestIIOSamplerReusesLastOnError(t *testing.T) {
	dir := t.TempDir()
	writeRaw(t, dir, 4, "1800")

	core, logs := observer.New(zapcore.WarnLevel)
	s, err := NewIIOSampler(dir, zap.New(core))
	if err != nil {
		t.Fatalf("NewIIOSampler: %v", err)
	}
	ch := logic.Channel{Index: 0, Pin: 4}

	if got := s.Sample(ch); got != 1800 {
		t.Fatalf("first sample: got %d", got)
	}

	writeRaw(t, dir, 4, "garbage")
	if got := s.Sample(ch); got != 1800 {
		t.Errorf("after parse error: got %d, want last reading 1800", got)
	}

	os.Remove(RawPath(dir, 4))
	if got := s.Sample(ch); got != 1800 {
		t.Errorf("after missing file: got %d, want last reading 1800", got)
	}

	if logs.Len() != 2 {
		t.Errorf("expected 2 warnings, got %d", logs.Len())
	}
}

func TestIIOSamplerNeverReadReturnsZero(t *testing.T) {
	s, err := NewIIOSampler(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewIIOSampler: %v", err)
	}
	if got := s.Sample(logic.Channel{Pin: 9}); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}

func TestFakeSampler(t *testing.T) {
	f := NewFakeSampler(map[int][]int{0: {3000, 2000}})
	ch0 := logic.Channel{Index: 0}
	ch1 := logic.Channel{Index: 1}

	if got := f.Sample(ch0); got != 3000 {
		t.Errorf("sample 0: got %d", got)
	}
	if got := f.Sample(ch0); got != 2000 {
		t.Errorf("sample 1: got %d", got)
	}
	if got := f.Sample(ch0); got != 2000 {
		t.Errorf("sample 2 (repeat): got %d", got)
	}
	if got := f.Sample(ch1); got != MaxRaw {
		t.Errorf("unscripted channel: got %d, want %d", got, MaxRaw)
	}
	if f.Calls != 4 {
		t.Errorf("calls: got %d, want 4", f.Calls)
	}

	f.Reset()
	if got := f.Sample(ch0); got != 3000 {
		t.Errorf("after reset: got %d", got)
	}
}
