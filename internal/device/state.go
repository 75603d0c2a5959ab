// Package device holds the indicator state shared by the uplink loop, the
// downlink loop and the local UI, plus the commands that mutate it.
package device

import "sync/atomic"

// Color is the indicator color reported in telemetry.
type Color string

const (
	ColorGreen Color = "green"
	ColorRed   Color = "red"
)

// ColorOf maps the indicator flag to its color.
func ColorOf(on bool) Color {
	if on {
		return ColorGreen
	}
	return ColorRed
}

// State is the single source of truth for the indicator. Share it by
// pointer; all methods are safe for concurrent use.
type State struct {
	indicatorOn atomic.Bool
}

func NewState(indicatorOn bool) *State {
	s := &State{}
	s.indicatorOn.Store(indicatorOn)
	return s
}

// IndicatorOn reports whether the indicator is green.
func (s *State) IndicatorOn() bool {
	return s.indicatorOn.Load()
}

func (s *State) SetIndicator(on bool) {
	s.indicatorOn.Store(on)
}

// Toggle flips the indicator and returns the new value.
func (s *State) Toggle() bool {
	for {
		cur := s.indicatorOn.Load()
		if s.indicatorOn.CompareAndSwap(cur, !cur) {
			return !cur
		}
	}
}

func (s *State) Color() Color {
	return ColorOf(s.IndicatorOn())
}
