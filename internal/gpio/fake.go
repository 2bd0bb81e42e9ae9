package gpio

// FakeLED is a test double that records every drive.
type FakeLED struct {
	// States contains the logical states passed to Drive, in order.
	States []bool

	// Levels contains the electrical levels the line would have been set to.
	Levels []int

	// DriveError, if set, will be returned by Drive() after recording.
	DriveError error

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeLED creates a FakeLED.
func NewFakeLED() *FakeLED {
	return &FakeLED{}
}

// Drive records the requested state.
func (f *FakeLED) Drive(on bool) error {
	f.States = append(f.States, on)
	f.Levels = append(f.Levels, Level(on))
	return f.DriveError
}

// Lit reports whether the last drive lit the LED.
func (f *FakeLED) Lit() bool {
	return len(f.States) > 0 && f.States[len(f.States)-1]
}

// Close marks the LED as closed.
func (f *FakeLED) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded drives.
func (f *FakeLED) Reset() {
	f.States = nil
	f.Levels = nil
	f.Closed = false
}
