package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string          `json:"event,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	Armed         bool            `json:"armed"`
	Capturing     bool            `json:"capturing"`
	RestState     int             `json:"rest_state"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	StartTime     string          `json:"start_time"`
	Timestamp     string          `json:"timestamp"`
	MQTT          MQTTStatus      `json:"mqtt"`
	Counts        CountsJSON      `json:"counts"`
	LastReport    *LastReportJSON `json:"last_report,omitempty"`
	Network       *NetworkJSON    `json:"network,omitempty"`
	Config        ConfigJSON      `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of capture totals.
type CountsJSON struct {
	Bursts  int    `json:"bursts"`
	Edges   int    `json:"edges"`
	Dropped uint64 `json:"dropped"`
}

// LastReportJSON summarizes the most recent burst.
type LastReportJSON struct {
	Timestamp  string `json:"timestamp"`
	StartState int    `json:"start_state"`
	EndState   int    `json:"end_state"`
	Edges      int    `json:"edges"`
	DurationUs uint64 `json:"duration_us"`
	Dropped    uint64 `json:"dropped"`
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
	Chip        string `json:"chip"`
	Pin         int    `json:"pin"`
	Samples     int    `json:"samples"`
	SettleUs    uint64 `json:"settle_us"`
	PollMs      int64  `json:"poll_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Serial      string `json:"serial,omitempty"`
	Broker      string `json:"broker,omitempty"`
	Topic       string `json:"topic,omitempty"`
	HTTPAddr    string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Armed:         snap.Armed,
		Capturing:     snap.Capturing,
		RestState:     int(snap.StartState),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Bursts:  snap.Counts.Bursts,
			Edges:   snap.Counts.Edges,
			Dropped: snap.Counts.Dropped,
		},
		Config: ConfigJSON{
			Chip:        snap.Config.Chip,
			Pin:         snap.Config.Pin,
			Samples:     snap.Config.Samples,
			SettleUs:    snap.Config.SettleUs,
			PollMs:      snap.Config.PollMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Serial:      snap.Config.Serial,
			Broker:      snap.Config.Broker,
			Topic:       snap.Config.Topic,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
	if r := snap.LastReport; r != nil {
		inner.LastReport = &LastReportJSON{
			Timestamp:  snap.LastReportAt.UTC().Format(time.RFC3339),
			StartState: int(r.StartState),
			EndState:   int(r.FinalState),
			Edges:      len(r.Edges),
			DurationUs: r.Duration(),
			Dropped:    r.Dropped,
		}
	}
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
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
