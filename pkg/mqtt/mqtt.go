// Package mqtt publishes bus frames to a mqtt broker.
package mqtt

import (
	"encoding/json"
	"errors"
	"time"

	mqttlib "github.com/eclipse/paho.mqtt.golang"
	"github.com/womat/debug"
)

const (
	// quiesce is the specified number of milliseconds to wait for existing work to be completed.
	quiesce = 250
	// connectTimeout limits the wait for the broker's connack.
	connectTimeout = 10 * time.Second
)

// ErrQueueFull is returned by Publish if the message queue C is full.
var ErrQueueFull = errors.New("mqtt message queue is full")

// Handler contains the handler of the mqtt broker.
type Handler struct {
	handler mqttlib.Client
	// C is the channel to service the mqtt message
	// sending a message to channel C will send the message.
	C chan Message
}

// Message contains the properties of the mqtt message.
type Message struct {
	Topic    string
	Payload  []byte
	Qos      byte
	Retained bool
}

// New generate a new mqtt broker client.
func New() *Handler {
	return &Handler{
		C: make(chan Message, 16),
	}
}

// Connect connects to the mqtt broker.
// If no broker is defined, no mqtt message are send.
func (m *Handler) Connect(broker string) error {
	if broker == "" {
		return nil
	}

	opts := mqttlib.NewClientOptions().
		AddBroker(broker).
		SetClientID("dali").
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(true)

	m.handler = mqttlib.NewClient(opts)
	return m.ReConnect()
}

// ReConnect reconnects to the defined mqtt broker.
func (m *Handler) ReConnect() error {
	t := m.handler.Connect()
	t.Wait()
	return t.Error()
}

// Disconnect will end the connection to the broker.
func (m *Handler) Disconnect() error {
	if m.handler == nil {
		return nil
	}

	m.handler.Disconnect(quiesce)
	return nil
}

// Publish marshals v to json and queues it as retained message for topic.
// Publish never blocks, ErrQueueFull is returned if the queue is full.
func (m *Handler) Publish(topic string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	debug.TraceLog.Printf("queue mqtt message %v: %s", topic, b)

	// a slow or unreachable broker must not block the caller, the message is dropped
	select {
	case m.C <- Message{Topic: topic, Payload: b, Retained: true}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Service listen to a message on the channel C and send the message to mqtt.
// If no handler or topic is defined, the message will be ignored.
// Service returns when C is closed.
func (m *Handler) Service() {
	for msg := range m.C {
		if m.handler == nil || msg.Topic == "" {
			continue
		}

		if !m.handler.IsConnected() {
			debug.DebugLog.Printf("mqtt broker isn't connected, reconnect it")

			if err := m.ReConnect(); err != nil {
				debug.ErrorLog.Printf("can't reconnect to mqtt broker %v", err)
				continue
			}
		}

		debug.DebugLog.Printf("publishing %v bytes to topic %v", len(msg.Payload), msg.Topic)
		t := m.handler.Publish(msg.Topic, msg.Qos, msg.Retained, msg.Payload)

		// the asynchronous nature of this library makes it easy to forget to check for errors.
		go func(topic string) {
			t.Wait()
			if err := t.Error(); err != nil {
				debug.ErrorLog.Printf("publishing topic %v: %v", topic, err)
			}
		}(msg.Topic)
	}
}
