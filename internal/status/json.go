package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/fret-sensor/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Channels      []ChannelJSON `json:"channels"`
	Ready         bool          `json:"ready"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	LastCycle     string        `json:"last_cycle,omitempty"`
	Store         StoreStatus   `json:"store"`
	Counts        CountsJSON    `json:"counts"`
	Network       *NetworkJSON  `json:"network,omitempty"`
	Config        ConfigJSON    `json:"config"`
}

// ChannelJSON is the JSON representation of one channel.
type ChannelJSON struct {
	Index     int    `json:"index"`
	Path      string `json:"path"`
	Pin       int    `json:"pin"`
	LED       bool   `json:"led"`
	Raw       *int   `json:"raw"`
	State     string `json:"state"`
	Outcome   string `json:"outcome,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// StoreStatus reports the remote store session state.
type StoreStatus struct {
	Kind   string `json:"kind"`
	Target string `json:"target"`
	Ready  bool   `json:"ready"`
}

// CountsJSON is the JSON representation of cycle and publish totals.
type CountsJSON struct {
	Cycles      int `json:"cycles"`
	Transitions int `json:"transitions"`
	Published   int `json:"published"`
	Failed      int `json:"failed"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Threshold   int    `json:"threshold"`
	IntervalMs  int64  `json:"interval_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	HTTPAddr    string `json:"http_addr"`
}

func buildChannels(snap Snapshot) []ChannelJSON {
	out := make([]ChannelJSON, len(snap.Channels))
	for i, cs := range snap.Channels {
		cj := ChannelJSON{
			Index:     cs.Index,
			Path:      logic.Channel{Index: cs.Index}.Path(),
			Pin:       cs.Pin,
			LED:       cs.Actuated,
			State:     "UNKNOWN",
			Outcome:   string(cs.Outcome),
			LastError: cs.LastErr,
		}
		if cs.Sampled {
			raw := cs.Raw
			cj.Raw = &raw
			cj.State = string(cs.State)
		}
		out[i] = cj
	}
	return out
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Channels:      buildChannels(snap),
		Ready:         snap.SessionReady,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Store: StoreStatus{
			Kind:   snap.Config.Store,
			Target: snap.Config.Target,
			Ready:  snap.SessionReady,
		},
		Counts: CountsJSON{
			Cycles:      snap.Counts.Cycles,
			Transitions: snap.Counts.Transitions,
			Published:   snap.Counts.Published,
			Failed:      snap.Counts.Failed,
		},
		Config: ConfigJSON{
			Threshold:   snap.Config.Threshold,
			IntervalMs:  snap.Config.IntervalMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
	if !snap.LastCycle.IsZero() {
		inner.LastCycle = snap.LastCycle.UTC().Format(time.RFC3339Nano)
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
