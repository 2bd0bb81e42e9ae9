// Package gpio drives the status LED with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Driver drives the LED output line.
type Driver interface {
	// Drive lights the LED when on is true.
	// The line is active-low: on = electrical low.
	Drive(on bool) error

	// Close releases GPIO resources.
	Close() error
}

// Defaults matching the reference wiring.
const (
	DefaultChip = "gpiochip0"
	DefaultLine = 13
)

// Electrical line levels.
const (
	Low  = 0
	High = 1
)

// Level returns the electrical level that represents the logical LED state.
func Level(on bool) int {
	if on {
		return Low
	}
	return High
}
