// Package status provides a thread-safe status tracker for the recorder
// daemon. It is read by HTTP handlers and lifecycle MQTT events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/bounce-recorder/internal/capture"
)

// NetworkInfo contains network state as written by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Chip        string
	Pin         int
	Samples     int
	SettleUs    uint64
	PollMs      int64
	HeartbeatMs int64
	Serial      string // empty = stdout
	Broker      string // empty = MQTT disabled
	Topic       string
	HTTPAddr    string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Armed         bool
	Capturing     bool
	StartState    capture.Level
	Counts        capture.Counts
	LastReport    *capture.Report
	LastReportAt  time.Time
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu            sync.RWMutex
	snap          Snapshot
	lastHeartbeat time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		lastHeartbeat: startTime,
	}
}

// Update sets the capture state. Called from the run loop on every tick.
func (t *Tracker) Update(armed, capturing bool, startState capture.Level, counts capture.Counts) {
	t.mu.Lock()
	t.snap.Armed = armed
	t.snap.Capturing = capturing
	t.snap.StartState = startState
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetLastReport stores the most recent report. The report must not be
// modified afterwards.
func (t *Tracker) SetLastReport(r *capture.Report, at time.Time) {
	t.mu.Lock()
	t.snap.LastReport = r
	t.snap.LastReportAt = at
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}

// HeartbeatDue reports whether interval has elapsed since the last
// heartbeat (or startup) and, if so, restarts the interval at now.
// An interval <= 0 disables heartbeats.
func (t *Tracker) HeartbeatDue(now time.Time, interval time.Duration) bool {
	if interval <= 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if now.Sub(t.lastHeartbeat) < interval {
		return false
	}
	t.lastHeartbeat = now
	return true
}
