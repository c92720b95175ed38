package mqtt

import (
	"encoding/json"
	"fmt"

	"github.com/sweeney/bounce-recorder/internal/capture"
)

// FakePublisher records published events for test assertions.
type FakePublisher struct {
	// Events contains all reports that were published.
	Events []ReportEvent

	// Payloads contains the JSON payloads that were published.
	Payloads [][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records the report.
func (f *FakePublisher) Publish(event ReportEvent) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatPayload(event)
	if err != nil {
		return err
	}
	f.Events = append(f.Events, event)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
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

// Reset clears recorded events.
func (f *FakePublisher) Reset() {
	*f = FakePublisher{}
}

// Reports returns the published bursts in order.
func (f *FakePublisher) Reports() []capture.Report {
	out := make([]capture.Report, len(f.Events))
	for i, ev := range f.Events {
		out[i] = ev.Report
	}
	return out
}

// Bounce decodes the i-th report payload as a subscriber would see it.
func (f *FakePublisher) Bounce(i int) (BouncePayload, error) {
	if i < 0 || i >= len(f.Payloads) {
		return BouncePayload{}, fmt.Errorf("no payload %d (have %d)", i, len(f.Payloads))
	}
	var p Payload
	if err := json.Unmarshal(f.Payloads[i], &p); err != nil {
		return BouncePayload{}, fmt.Errorf("decode payload %d: %w", i, err)
	}
	return p.Bounce, nil
}
