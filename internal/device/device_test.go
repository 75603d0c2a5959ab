package device

import (
	"sync"
	"testing"
)

func TestState_SetThenGet(t *testing.T) {
	s := NewState(true)
	if !s.IndicatorOn() {
		t.Fatal("IndicatorOn() = false, want initial true")
	}
	for _, v := range []bool{false, true, true, false} {
		s.SetIndicator(v)
		if got := s.IndicatorOn(); got != v {
			t.Fatalf("after SetIndicator(%v) IndicatorOn() = %v", v, got)
		}
	}
}

func TestState_Color(t *testing.T) {
	s := NewState(true)
	if s.Color() != ColorGreen {
		t.Errorf("Color() = %q, want green", s.Color())
	}
	s.SetIndicator(false)
	if s.Color() != ColorRed {
		t.Errorf("Color() = %q, want red", s.Color())
	}
}

func TestState_Toggle(t *testing.T) {
	s := NewState(true)
	if got := s.Toggle(); got {
		t.Fatalf("Toggle() = %v, want false", got)
	}
	if got := s.Toggle(); !got {
		t.Fatalf("Toggle() = %v, want true", got)
	}
}

func TestState_ConcurrentAccess(t *testing.T) {
	s := NewState(false)
	var wg sync.WaitGroup

	// Writers from the "downlink" and "UI" contexts, a reader from "uplink".
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func(v bool) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				s.SetIndicator(v)
			}
		}(w == 0)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			s.Toggle()
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			if c := s.Color(); c != ColorGreen && c != ColorRed {
				t.Errorf("Color() = %q, want green or red", c)
				return
			}
		}
	}()
	wg.Wait()

	s.SetIndicator(true)
	if !s.IndicatorOn() {
		t.Fatal("final SetIndicator(true) not visible")
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
	}{
		{in: "green", want: Command{Kind: CommandSetIndicator, Indicator: true}},
		{in: "Green", want: Command{Kind: CommandSetIndicator, Indicator: true}},
		{in: "GREEN", want: Command{Kind: CommandSetIndicator, Indicator: true}},
		{in: "red", want: Command{Kind: CommandSetIndicator, Indicator: false}},
		{in: "rEd", want: Command{Kind: CommandSetIndicator, Indicator: false}},
		{in: "blue", want: Command{Kind: CommandUnknown}},
		{in: "", want: Command{Kind: CommandUnknown}},
		{in: " green", want: Command{Kind: CommandUnknown}},
		{in: "greenish", want: Command{Kind: CommandUnknown}},
		{in: "\xff\xfe", want: Command{Kind: CommandUnknown}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseCommand([]byte(tt.in)); got != tt.want {
				t.Errorf("ParseCommand(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCommand_Apply(t *testing.T) {
	s := NewState(true)

	if changed := ParseCommand([]byte("blue")).Apply(s); changed {
		t.Error("unknown command reported a state change")
	}
	if !s.IndicatorOn() {
		t.Fatal("unknown command mutated state")
	}

	if changed := ParseCommand([]byte("RED")).Apply(s); !changed {
		t.Error("red command did not report a state change")
	}
	if s.IndicatorOn() {
		t.Fatal("red command did not clear the indicator")
	}
}

func TestCommand_String(t *testing.T) {
	if got := (Command{Kind: CommandSetIndicator, Indicator: true}).String(); got != "set_indicator:green" {
		t.Errorf("String() = %q", got)
	}
	if got := (Command{}).String(); got != "unknown" {
		t.Errorf("String() = %q", got)
	}
}
