package mqtt

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	// offlineBuffer is the number of messages held while disconnected.
	offlineBuffer = 256
	// outboxSize is the number of messages queued for the send goroutine.
	outboxSize = 64
	// publishTimeout bounds the wait for a broker acknowledgement.
	publishTimeout = 5 * time.Second
)

// ErrClosed is returned when publishing after Close.
var ErrClosed = errors.New("mqtt: publisher closed")

// RealPublisher publishes to an actual MQTT broker. Publish and
// PublishSystem only queue the message; a single goroutine talks to the
// broker, so callers never wait on the network.
type RealPublisher struct {
	client       paho.Client
	reportsTopic string
	systemTopic  string

	outbox chan bufferedMsg
	done   chan struct{}

	mu      sync.Mutex
	pending *ringBuffer
	closed  bool
	dropped int
}

// NewRealPublisher creates a publisher for the given broker and topic
// prefix. The connection is retried in the background, so a broker that is
// down at startup does not stop the recorder; messages published before
// the first connection are buffered.
func NewRealPublisher(broker, clientID, prefix string) *RealPublisher {
	p := newPublisher(prefix)

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(p.systemTopic, string(WillPayload()), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	p.start(paho.NewClient(opts))
	p.client.Connect()
	return p
}

func newPublisher(prefix string) *RealPublisher {
	reports, system := Topics(prefix)
	return &RealPublisher{
		reportsTopic: reports,
		systemTopic:  system,
		outbox:       make(chan bufferedMsg, outboxSize),
		done:         make(chan struct{}),
		pending:      newRingBuffer(offlineBuffer),
	}
}

func (p *RealPublisher) start(client paho.Client) {
	p.client = client
	go p.run()
}

func (p *RealPublisher) run() {
	defer close(p.done)
	for msg := range p.outbox {
		if err := p.send(msg); err != nil {
			log.Printf("mqtt: %v", err)
		}
	}
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	msgs := p.pending.drainAll()
	p.mu.Unlock()

	if len(msgs) > 0 {
		log.Printf("mqtt: connected, replaying %d buffered messages", len(msgs))
	}
	for _, m := range msgs {
		token := c.Publish(m.topic, m.qos, m.retained, m.payload)
		if !token.WaitTimeout(publishTimeout) {
			log.Printf("mqtt: replay to %s timed out", m.topic)
			continue
		}
		if err := token.Error(); err != nil {
			log.Printf("mqtt: replay to %s: %v", m.topic, err)
		}
	}
}

// send runs on the publisher goroutine only.
func (p *RealPublisher) send(msg bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.pending.push(msg)
		p.mu.Unlock()
		return nil
	}
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", msg.topic, err)
	}
	return nil
}

// enqueue hands msg to the publisher goroutine without blocking. When the
// outbox is full the message is dropped.
func (p *RealPublisher) enqueue(msg bufferedMsg) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.outbox <- msg:
		return nil
	default:
		p.dropped++
		return fmt.Errorf("publish to %s: outbox full, %d dropped", msg.topic, p.dropped)
	}
}

// Publish queues a report for the broker.
func (p *RealPublisher) Publish(event ReportEvent) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.enqueue(bufferedMsg{topic: p.reportsTopic, payload: payload})
}

// PublishSystem queues a system lifecycle event for the broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) for lifecycle events
	return p.enqueue(bufferedMsg{topic: p.systemTopic, payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close sends whatever is queued, then disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.outbox)
	p.mu.Unlock()

	<-p.done
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
