package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/bounce-recorder/internal/capture"
	"github.com/sweeney/bounce-recorder/internal/status"
)

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		Chip:        "gpiochip0",
		Pin:         17,
		Samples:     200,
		SettleUs:    200000,
		PollMs:      1,
		HeartbeatMs: 900000,
		Broker:      "tcp://192.168.1.200:1883",
		Topic:       "bouncer",
		HTTPAddr:    ":8080",
	}
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, tr
}

func getJSON(t *testing.T, url string) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return sj
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.Update(true, false, capture.High, capture.Counts{Bursts: 5, Edges: 40, Dropped: 2})
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	sj := getJSON(t, ts.URL+"/index.json")
	if !sj.Status.Armed {
		t.Error("expected Armed=true")
	}
	if sj.Status.RestState != 1 {
		t.Errorf("RestState: got %d, want 1", sj.Status.RestState)
	}
	if sj.Status.Counts.Bursts != 5 || sj.Status.Counts.Dropped != 2 {
		t.Errorf("Counts: got %+v", sj.Status.Counts)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.Config.SettleUs != 200000 {
		t.Errorf("Config.SettleUs: got %d", sj.Status.Config.SettleUs)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr := newTestServer(t)

	if sj := getJSON(t, ts.URL+"/index.json"); sj.Status.Capturing {
		t.Error("expected Capturing=false initially")
	}

	tr.Update(true, true, capture.Low, capture.Counts{})
	if sj := getJSON(t, ts.URL+"/index.json"); !sj.Status.Capturing {
		t.Error("expected Capturing=true after update")
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.Update(true, true, capture.Low, capture.Counts{Bursts: 1})
	tr.SetLastReport(&capture.Report{Edges: []uint64{0, 1500}, FinalState: capture.Low}, time.Now())

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"capturing", "gpiochip0:17", "Last burst", "1.5ms", "200ms"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("page should contain %q", want)
		}
	}
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET /index.html: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
}

func TestLastReportText(t *testing.T) {
	ts, tr := newTestServer(t)

	resp, err := http.Get(ts.URL + "/last.txt")
	if err != nil {
		t.Fatalf("GET /last.txt: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Errorf("status before any burst: got %d, want 404", resp.StatusCode)
	}

	tr.SetLastReport(&capture.Report{
		StartState: capture.Low,
		Edges:      []uint64{100, 150},
		FinalState: capture.Low,
	}, time.Now())

	resp, err = http.Get(ts.URL + "/last.txt")
	if err != nil {
		t.Fatalf("GET /last.txt: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	want := "START:0:100\n0:0:0\n1:1:50\nEND:0\n"
	if string(body) != want {
		t.Errorf("body: got %q, want %q", body, want)
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}
