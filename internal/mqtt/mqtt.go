// Package mqtt publishes bounce reports and lifecycle events to a broker,
// with an abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/bounce-recorder/internal/capture"
)

// Topic suffixes under the configured prefix.
const (
	ReportsSuffix = "/reports"
	SystemSuffix  = "/system"
)

// Topics returns the report and system topics for prefix.
func Topics(prefix string) (reports, system string) {
	return prefix + ReportsSuffix, prefix + SystemSuffix
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a completed burst to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event ReportEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// ReportEvent is a settled burst with the wall-clock time it was reported.
type ReportEvent struct {
	Timestamp time.Time
	Report    capture.Report
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload is the MQTT message body for a report.
type Payload struct {
	Bounce BouncePayload `json:"bounce"`
}

// BouncePayload contains the burst details.
type BouncePayload struct {
	Timestamp   string        `json:"timestamp"`
	StartState  int           `json:"start_state"`
	StartUs     uint64        `json:"start_us"`
	DurationUs  uint64        `json:"duration_us"`
	EdgeCount   int           `json:"edge_count"`
	Dropped     uint64        `json:"dropped"`
	EndState    int           `json:"end_state"`
	EndInferred bool          `json:"end_inferred,omitempty"`
	Edges       []EdgePayload `json:"edges"`
}

// EdgePayload is one transition.
type EdgePayload struct {
	Index    int    `json:"index"`
	State    int    `json:"state"`
	OffsetUs uint64 `json:"offset_us"`
}

// FormatPayload creates the JSON payload for a report.
func FormatPayload(event ReportEvent) ([]byte, error) {
	r := event.Report
	edges := make([]EdgePayload, 0, len(r.Edges))
	for _, tr := range r.Transitions() {
		edges = append(edges, EdgePayload{
			Index:    tr.Index,
			State:    int(tr.State),
			OffsetUs: tr.Offset,
		})
	}
	payload := Payload{
		Bounce: BouncePayload{
			Timestamp:   event.Timestamp.UTC().Format(time.RFC3339Nano),
			StartState:  int(r.StartState),
			StartUs:     r.Start(),
			DurationUs:  r.Duration(),
			EdgeCount:   len(r.Edges),
			Dropped:     r.Dropped,
			EndState:    int(r.FinalState),
			EndInferred: r.FinalInferred,
			Edges:       edges,
		},
	}
	return json.Marshal(payload)
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

// WillPayload is the last-will message published by the broker when the
// connection drops without a clean disconnect.
func WillPayload() []byte {
	data, _ := json.Marshal(SystemPayload{System: SystemPayloadInner{Event: "OFFLINE", Reason: "LWT"}})
	return data
}
