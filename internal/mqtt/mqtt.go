// Package mqtt provides the MQTT-backed remote store with abstraction for testing.
package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "fret-sensor/system"

// Publisher writes channel states and system events to the broker.
type Publisher interface {
	// PutBool publishes a channel state to the topic derived from path.
	// Returns error if publishing fails (should not crash the process).
	PutBool(ctx context.Context, path string, value bool) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Options configures a RealPublisher.
type Options struct {
	Broker      string
	ClientID    string // empty derives a unique id
	TopicPrefix string // prepended to the store path, e.g. "home/guitar"
}

// Topic maps a store path such as "/frets/0" to an MQTT topic.
// The leading slash is dropped; a non-empty prefix is joined with "/".
func Topic(prefix, path string) string {
	p := strings.TrimPrefix(path, "/")
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return p
	}
	return prefix + "/" + p
}

// FormatValue returns the payload for a boolean state: JSON true or false.
func FormatValue(value bool) []byte {
	if value {
		return []byte("true")
	}
	return []byte("false")
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
