package display

import (
	"context"
	"errors"
)

// ErrClosed is returned by writes issued after Run has returned.
var ErrClosed = errors.New("display: closed")

type request struct {
	apply  func(Display) error
	result chan error
}

// Serialized funnels every write to the wrapped display through the
// goroutine running Run, so a display shared by several loops sees one
// writer. Each call blocks until its write has been applied.
type Serialized struct {
	target Display
	reqs   chan request
	done   chan struct{}
}

func NewSerialized(target Display) *Serialized {
	return &Serialized{
		target: target,
		reqs:   make(chan request),
		done:   make(chan struct{}),
	}
}

// Run applies queued writes until ctx is cancelled.
func (s *Serialized) Run(ctx context.Context) error {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-s.reqs:
			req.result <- req.apply(s.target)
		}
	}
}

func (s *Serialized) SetText(text string) error {
	return s.do(func(d Display) error { return d.SetText(text) })
}

func (s *Serialized) SetColor(ind Indicator) error {
	return s.do(func(d Display) error { return d.SetColor(ind) })
}

func (s *Serialized) do(apply func(Display) error) error {
	req := request{apply: apply, result: make(chan error, 1)}
	select {
	case s.reqs <- req:
	case <-s.done:
		return ErrClosed
	}
	return <-req.result
}
