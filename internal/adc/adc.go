// Package adc samples analog flex sensors.
// The real implementation reads the Linux IIO sysfs interface.
// The fake implementation allows testing without hardware.
package adc

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sweeney/fret-sensor/internal/logic"
)

// DefaultDevice is the IIO device directory of the on-board ADC.
const DefaultDevice = "/sys/bus/iio/devices/iio:device0"

// MaxRaw is the largest value a 12-bit converter reports.
const MaxRaw = 4095

// IIOSampler reads in_voltage<pin>_raw files below an IIO device directory.
// A failed read is logged and the channel's previous reading is returned, so
// Sample never fails.
type IIOSampler struct {
	dir    string
	last   map[int]int
	logger *zap.Logger
}

// NewIIOSampler creates a sampler for the given IIO device directory.
func NewIIOSampler(dir string, logger *zap.Logger) (*IIOSampler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("open iio device: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open iio device: %s is not a directory", dir)
	}
	return &IIOSampler{dir: dir, last: map[int]int{}, logger: logger}, nil
}

// RawPath returns the sysfs file holding the raw reading for pin.
func RawPath(dir string, pin int) string {
	return filepath.Join(dir, fmt.Sprintf("in_voltage%d_raw", pin))
}

// Read returns the current raw value for pin.
func (s *IIOSampler) Read(pin int) (int, error) {
	data, err := os.ReadFile(RawPath(s.dir, pin))
	if err != nil {
		return 0, fmt.Errorf("read pin %d: %w", pin, err)
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pin %d: %w", pin, err)
	}
	return v, nil
}

// Sample implements logic.Sampler.
func (s *IIOSampler) Sample(ch logic.Channel) int {
	v, err := s.Read(ch.Pin)
	if err != nil {
		s.logger.Warn("adc read failed, reusing last reading",
			zap.Int("channel", ch.Index),
			zap.Int("pin", ch.Pin),
			zap.Int("last", s.last[ch.Pin]),
			zap.Error(err))
		return s.last[ch.Pin]
	}
	s.last[ch.Pin] = v
	return v
}
