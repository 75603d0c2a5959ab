// Package bridge runs the two device loops: uplink (sample, display, send)
// and downlink (receive, apply, ack).
package bridge

import (
	"sync"
	"time"
)

// Status is a snapshot of the last uplink and downlink activity.
type Status struct {
	Counter        uint64    `json:"counter"`
	LastStatusLine string    `json:"last_status_line"`
	LastLive       bool      `json:"last_live"`
	LastSentAt     time.Time `json:"last_sent_at,omitzero"`
	LastSendError  string    `json:"last_send_error,omitempty"`
	LastCommand    string    `json:"last_command,omitempty"`
	LastCommandAt  time.Time `json:"last_command_at,omitzero"`
}

// StatusBoard is the shared diagnostics surface the loops write to and the
// status API reads from.
type StatusBoard struct {
	mu sync.RWMutex
	s  Status
}

func NewStatusBoard() *StatusBoard {
	return &StatusBoard{}
}

func (b *StatusBoard) recordCycle(counter uint64, line string, live bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.s.Counter = counter
	b.s.LastStatusLine = line
	b.s.LastLive = live
}

func (b *StatusBoard) recordSend(at time.Time, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.s.LastSendError = err.Error()
		return
	}
	b.s.LastSentAt = at
	b.s.LastSendError = ""
}

func (b *StatusBoard) recordCommand(at time.Time, cmd string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.s.LastCommand = cmd
	b.s.LastCommandAt = at
}

func (b *StatusBoard) Snapshot() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.s
}
