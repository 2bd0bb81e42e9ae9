package mqtt

import (
	"context"

	"github.com/sweeney/fret-sensor/internal/logic"
)

// FakePublisher records published states for test assertions.
type FakePublisher struct {
	// Writes contains all channel states that were published.
	Writes []logic.WriteRequest

	// Attempts counts PutBool calls, including failed ones.
	Attempts int

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PutError, if set, will be returned by PutBool.
	PutError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected and Ready.
	Connected bool
}

// NewFakePublisher creates a connected FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{Connected: true}
}

// PutBool records the write.
func (f *FakePublisher) PutBool(_ context.Context, path string, value bool) error {
	f.Attempts++
	if f.PutError != nil {
		return f.PutError
	}
	f.Writes = append(f.Writes, logic.WriteRequest{Path: path, Value: value})
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	f.SystemEvents = append(f.SystemEvents, event)

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemPayloads = append(f.SystemPayloads, payload)

	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Ready reports whether the fake publisher is "connected".
func (f *FakePublisher) Ready() bool {
	return f.Connected
}

// Reset clears recorded writes and events.
func (f *FakePublisher) Reset() {
	f.Writes = nil
	f.Attempts = 0
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PutError = nil
	f.PublishSystemError = nil
	f.Connected = true
}
