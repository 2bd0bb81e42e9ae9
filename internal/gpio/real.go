//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/multierr"
)

// RealLED drives an LED on an actual GPIO character device line.
type RealLED struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealLED requests the line as an output, initially driven high (LED off).
func NewRealLED(chipName string, offset int) (*RealLED, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	line, err := chip.RequestLine(offset, gpiocdev.AsOutput(Level(false)), gpiocdev.WithConsumer("fret-sensor"))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request LED line %d: %w", offset, err)
	}

	return &RealLED{chip: chip, line: line}, nil
}

// Drive sets the line level for the logical LED state.
func (r *RealLED) Drive(on bool) error {
	if err := r.line.SetValue(Level(on)); err != nil {
		return fmt.Errorf("set LED line: %w", err)
	}
	return nil
}

// Close turns the LED off and reconfigures the line as an input with
// pull-down (the Pi boot default) before releasing it.
func (r *RealLED) Close() error {
	var err error
	if r.line != nil {
		err = multierr.Append(err, r.line.SetValue(Level(false)))
		if rerr := r.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); rerr != nil {
			err = multierr.Append(err, fmt.Errorf("reconfigure LED line: %w", rerr))
		}
		if cerr := r.line.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close LED line: %w", cerr))
		}
	}
	if r.chip != nil {
		if cerr := r.chip.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close chip: %w", cerr))
		}
	}
	return err
}
