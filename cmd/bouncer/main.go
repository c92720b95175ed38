// Command bouncer records contact bounce on a GPIO input and reports every
// burst over a serial link, with optional MQTT fan-out and an HTTP status page.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/bounce-recorder/internal/capture"
	"github.com/sweeney/bounce-recorder/internal/clock"
	"github.com/sweeney/bounce-recorder/internal/config"
	"github.com/sweeney/bounce-recorder/internal/gpio"
	"github.com/sweeney/bounce-recorder/internal/mqtt"
	"github.com/sweeney/bounce-recorder/internal/report"
	"github.com/sweeney/bounce-recorder/internal/serialport"
	"github.com/sweeney/bounce-recorder/internal/status"
	"github.com/sweeney/bounce-recorder/internal/web"
)

func main() {
	cfg, printState, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := run(cfg, printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// parseFlags builds the configuration: defaults, then the -config file,
// then any flags set explicitly on the command line.
func parseFlags(fs *flag.FlagSet, args []string) (*config.Config, bool, error) {
	def := config.Default()

	configPath := fs.String("config", "", "YAML config file")
	chip := fs.String("chip", def.GPIO.Chip, "GPIO chip")
	pin := fs.Int("pin", def.GPIO.Pin, "line offset (BCM pin) of the switch under test")
	pull := fs.String("pull", def.GPIO.Pull, "input bias: none, up or down")
	activeLow := fs.Bool("active-low", def.GPIO.ActiveLow, "invert the input level")
	led := fs.Int("led", def.GPIO.LED, "line offset of the capture LED (-1 to disable)")
	samples := fs.Int("samples", def.Capture.Samples, "maximum edges recorded per burst")
	settle := fs.Duration("settle", def.Capture.Settle, "quiet time that ends a burst")
	poll := fs.Duration("poll", def.Capture.Poll, "settle polling interval")
	serialPort := fs.String("serial", def.Serial.Port, "serial port for reports (empty for stdout)")
	baud := fs.Int("baud", def.Serial.Baud, "serial baud rate")
	broker := fs.String("broker", def.MQTT.Broker, "MQTT broker address (empty to disable)")
	topic := fs.String("topic", def.MQTT.Topic, "MQTT topic prefix")
	heartbeat := fs.Duration("heartbeat", def.MQTT.Heartbeat, "heartbeat interval (0 to disable)")
	httpAddr := fs.String("http", def.HTTP.Addr, "HTTP status address (empty to disable)")
	printState := fs.Bool("print-state", false, "print the current pin level and exit")

	if err := fs.Parse(args); err != nil {
		return nil, false, err
	}

	cfg := def
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return nil, false, err
		}
		cfg = loaded
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "chip":
			cfg.GPIO.Chip = *chip
		case "pin":
			cfg.GPIO.Pin = *pin
		case "pull":
			cfg.GPIO.Pull = *pull
		case "active-low":
			cfg.GPIO.ActiveLow = *activeLow
		case "led":
			cfg.GPIO.LED = *led
		case "samples":
			cfg.Capture.Samples = *samples
		case "settle":
			cfg.Capture.Settle = *settle
		case "poll":
			cfg.Capture.Poll = *poll
		case "serial":
			cfg.Serial.Port = *serialPort
		case "baud":
			cfg.Serial.Baud = *baud
		case "broker":
			cfg.MQTT.Broker = *broker
		case "topic":
			cfg.MQTT.Topic = *topic
		case "heartbeat":
			cfg.MQTT.Heartbeat = *heartbeat
		case "http":
			cfg.HTTP.Addr = *httpAddr
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}
	return cfg, *printState, nil
}

func run(cfg *config.Config, printState bool) error {
	pinCfg, err := pinConfig(cfg)
	if err != nil {
		return err
	}
	pin, err := gpio.NewRealPin(pinCfg)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer pin.Close()

	// Print state mode
	if printState {
		lvl, err := pin.Level()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		fmt.Printf("pin %d: %s\n", cfg.GPIO.Pin, lvl)
		return nil
	}

	var sink io.Writer = os.Stdout
	if cfg.Serial.Port != "" {
		port, err := serialport.Open(cfg.Serial.Port, cfg.Serial.Baud)
		if err != nil {
			return err
		}
		defer port.Close()
		sink = port
	}

	var led gpio.LED
	if cfg.GPIO.LED >= 0 {
		l, err := gpio.NewRealLED(cfg.GPIO.Chip, cfg.GPIO.LED)
		if err != nil {
			return fmt.Errorf("init led: %w", err)
		}
		defer l.Close()
		led = l
	}

	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if cfg.MQTT.Broker != "" {
		p := mqtt.NewRealPublisher(cfg.MQTT.Broker, clientID(), cfg.MQTT.Topic)
		defer p.Close()
		publisher, mqttStatus = p, p
	}

	tracker := status.NewTracker(time.Now(), status.Config{
		Chip:        cfg.GPIO.Chip,
		Pin:         cfg.GPIO.Pin,
		Samples:     cfg.Capture.Samples,
		SettleUs:    cfg.SettleMicros(),
		PollMs:      cfg.Capture.Poll.Milliseconds(),
		HeartbeatMs: cfg.MQTT.Heartbeat.Milliseconds(),
		Serial:      cfg.Serial.Port,
		Broker:      cfg.MQTT.Broker,
		Topic:       cfg.MQTT.Topic,
		HTTPAddr:    cfg.HTTP.Addr,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	clk := clock.Monotonic{}
	rec := capture.NewRecorder(cfg.Capture.Samples, clk)
	if err := pin.Watch(func(ts uint64) { rec.Record(ts) }); err != nil {
		return fmt.Errorf("watch gpio: %w", err)
	}
	ctrl := capture.NewController(cfg.SettleMicros(), rec, pin, report.NewWriter(sink))
	if err := ctrl.Start(); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}
	tracker.Update(rec.Armed(), false, ctrl.StartState(), ctrl.Counts())

	if publisher != nil {
		snap := tracker.Snapshot()
		startup := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		}
		if err := publisher.PublishSystem(startup); err != nil {
			log.Printf("failed to publish startup event: %v", err)
		}
	}

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	log.Printf("started: chip=%s pin=%d samples=%d settle=%v poll=%v level=%s",
		cfg.GPIO.Chip, cfg.GPIO.Pin, cfg.Capture.Samples, cfg.Capture.Settle, cfg.Capture.Poll, ctrl.StartState())

	ticker := time.NewTicker(cfg.Capture.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	l := &loop{
		ctrl:       ctrl,
		rec:        rec,
		clock:      clk,
		led:        led,
		publisher:  publisher,
		mqttStatus: mqttStatus,
		tracker:    tracker,
		heartbeat:  cfg.MQTT.Heartbeat,
		now:        time.Now,
	}
	return l.run(ticker.C, sigCh)
}

func pinConfig(cfg *config.Config) (gpio.PinConfig, error) {
	pull, err := gpio.ParsePull(cfg.GPIO.Pull)
	if err != nil {
		return gpio.PinConfig{}, fmt.Errorf("init gpio: %w", err)
	}
	return gpio.PinConfig{
		Chip:      cfg.GPIO.Chip,
		Offset:    cfg.GPIO.Pin,
		Pull:      pull,
		ActiveLow: cfg.GPIO.ActiveLow,
	}, nil
}

// loop is the polling side of the recorder. Everything here runs on one
// goroutine; only the recorder is shared with the edge handler.
type loop struct {
	ctrl       *capture.Controller
	rec        *capture.Recorder
	clock      capture.Clock
	led        gpio.LED              // may be nil
	publisher  mqtt.Publisher        // may be nil
	mqttStatus mqtt.ConnectionStatus // may be nil
	tracker    *status.Tracker
	heartbeat  time.Duration
	now        func() time.Time

	ledOn bool
}

func (l *loop) run(tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			l.shutdown(s)
			return nil

		case <-tick:
			l.poll()
		}
	}
}

func (l *loop) poll() {
	rep, err := l.ctrl.Poll(l.clock.Micros())
	if err != nil {
		log.Printf("report error: %v", err)
	}
	if rep != nil {
		l.onReport(rep)
	}

	capturing := l.ctrl.Capturing()
	if l.led != nil && capturing != l.ledOn {
		if err := l.led.Set(capturing); err != nil {
			log.Printf("led error: %v", err)
		} else {
			l.ledOn = capturing
		}
	}

	l.tracker.Update(l.rec.Armed(), capturing, l.ctrl.StartState(), l.ctrl.Counts())
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}

	if l.publisher != nil && l.tracker.HeartbeatDue(l.now(), l.heartbeat) {
		if net := readNetworkInfo(); net != nil {
			l.tracker.SetNetwork(net)
		}
		snap := l.tracker.Snapshot()
		log.Printf("heartbeat: uptime=%v bursts=%d edges=%d dropped=%d",
			snap.Uptime().Truncate(time.Second), snap.Counts.Bursts, snap.Counts.Edges, snap.Counts.Dropped)
		hb := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "HEARTBEAT",
			RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
		}
		if err := l.publisher.PublishSystem(hb); err != nil {
			log.Printf("heartbeat publish error: %v", err)
		}
	}
}

func (l *loop) onReport(rep *capture.Report) {
	at := l.now()
	log.Printf("burst: edges=%d dropped=%d duration=%dus start=%s end=%s",
		len(rep.Edges), rep.Dropped, rep.Duration(), rep.StartState, rep.FinalState)
	if rep.FinalInferred {
		log.Printf("burst: pin read failed, end state inferred from edge count")
	}
	l.tracker.SetLastReport(rep, at)

	if l.publisher != nil {
		if err := l.publisher.Publish(mqtt.ReportEvent{Timestamp: at, Report: *rep}); err != nil {
			log.Printf("publish error: %v", err)
		}
	}
}

func (l *loop) shutdown(s os.Signal) {
	if l.led != nil && l.ledOn {
		l.led.Set(false)
	}
	if l.publisher == nil {
		return
	}
	signalName := "UNKNOWN"
	if s == syscall.SIGINT {
		signalName = "SIGINT"
	} else if s == syscall.SIGTERM {
		signalName = "SIGTERM"
	}
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
	snap := l.tracker.Snapshot()
	event := mqtt.SystemEvent{
		Timestamp:  l.now(),
		Event:      "SHUTDOWN",
		Reason:     signalName,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", signalName),
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish shutdown event: %v", err)
	} else {
		log.Printf("published shutdown event")
	}
}

func clientID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "bouncer"
	}
	return "bouncer-" + host
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
