// Package transport holds the broker-neutral message type exchanged between
// the bridge loops and the cloud client.
package transport

import (
	"errors"
	"sync"
)

// ErrNotConnected is returned by send and receive while the cloud link is
// down.
var ErrNotConnected = errors.New("transport: not connected")

// Message is a received downlink message. It must be acked once processing
// has finished; until then the broker may redeliver it.
type Message struct {
	Topic   string
	Payload []byte

	ackOnce sync.Once
	ack     func() error
	ackErr  error
}

func NewMessage(topic string, payload []byte, ack func() error) *Message {
	return &Message{Topic: topic, Payload: payload, ack: ack}
}

// Ack settles the message. Repeated calls return the first result.
func (m *Message) Ack() error {
	m.ackOnce.Do(func() {
		if m.ack != nil {
			m.ackErr = m.ack()
		}
	})
	return m.ackErr
}
