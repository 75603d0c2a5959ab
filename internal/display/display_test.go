package display

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"periph.io/x/conn/v3/i2c/i2ctest"

	"cloudpico-bridge/internal/device"
	"cloudpico-bridge/internal/logging"
)

const (
	testTextAddr = 0x3e
	testRGBAddr  = 0x62
)

func TestIndicatorFor(t *testing.T) {
	if IndicatorFor(device.ColorGreen) != IndicatorGreen {
		t.Error("green did not map to IndicatorGreen")
	}
	if IndicatorFor(device.ColorRed) != IndicatorRed {
		t.Error("red did not map to IndicatorRed")
	}
}

func TestGroveLCD_Init(t *testing.T) {
	rec := &i2ctest.Record{}
	if _, err := newGroveLCD(rec, testTextAddr, testRGBAddr, 0); err != nil {
		t.Fatalf("newGroveLCD: %v", err)
	}
	want := []i2ctest.IO{
		{Addr: testRGBAddr, W: []byte{0x00, 0x00}},
		{Addr: testRGBAddr, W: []byte{0x01, 0x00}},
		{Addr: testRGBAddr, W: []byte{0x08, 0xAA}},
	}
	assertOps(t, rec.Ops, want)
}

func TestGroveLCD_SetColor(t *testing.T) {
	rec := &i2ctest.Record{}
	lcd, err := newGroveLCD(rec, testTextAddr, testRGBAddr, 0)
	if err != nil {
		t.Fatalf("newGroveLCD: %v", err)
	}
	rec.Ops = nil

	if err := lcd.SetColor(IndicatorRed); err != nil {
		t.Fatalf("SetColor: %v", err)
	}
	want := []i2ctest.IO{
		{Addr: testRGBAddr, W: []byte{0x04, 255}},
		{Addr: testRGBAddr, W: []byte{0x03, 0}},
		{Addr: testRGBAddr, W: []byte{0x02, 0}},
	}
	assertOps(t, rec.Ops, want)
}

func TestGroveLCD_SetTextWraps(t *testing.T) {
	rec := &i2ctest.Record{}
	lcd, err := newGroveLCD(rec, testTextAddr, testRGBAddr, 0)
	if err != nil {
		t.Fatalf("newGroveLCD: %v", err)
	}
	rec.Ops = nil

	if err := lcd.SetText("ab\ncd\nef"); err != nil {
		t.Fatalf("SetText: %v", err)
	}
	cmd := func(c byte) i2ctest.IO { return i2ctest.IO{Addr: testTextAddr, W: []byte{0x80, c}} }
	data := func(c byte) i2ctest.IO { return i2ctest.IO{Addr: testTextAddr, W: []byte{0x40, c}} }
	want := []i2ctest.IO{
		cmd(0x01), cmd(0x0C), cmd(0x28),
		data('a'), data('b'),
		cmd(0xC0),
		data('c'), data('d'),
	}
	assertOps(t, rec.Ops, want)
}

func TestGroveLCD_SetTextLongLine(t *testing.T) {
	rec := &i2ctest.Record{}
	lcd, err := newGroveLCD(rec, testTextAddr, testRGBAddr, 0)
	if err != nil {
		t.Fatalf("newGroveLCD: %v", err)
	}
	rec.Ops = nil

	if err := lcd.SetText("Temp = 72.3       Humidity = 45%"); err != nil {
		t.Fatalf("SetText: %v", err)
	}
	var chars, newlines int
	for _, op := range rec.Ops {
		switch {
		case op.W[0] == 0x40:
			chars++
		case op.W[0] == 0x80 && op.W[1] == 0xC0:
			newlines++
		}
	}
	if chars != 32 || newlines != 1 {
		t.Errorf("chars=%d newlines=%d, want 32 and 1", chars, newlines)
	}
}

func TestGroveLCD_MissingModule(t *testing.T) {
	bus := &i2ctest.Playback{DontPanic: true}
	if _, err := newGroveLCD(bus, testTextAddr, testRGBAddr, 0); err == nil {
		t.Fatal("expected error for absent module")
	}
}

func assertOps(t *testing.T, got, want []i2ctest.IO) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d ops, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i].Addr != want[i].Addr || string(got[i].W) != string(want[i].W) {
			t.Errorf("op %d = %#v, want %#v", i, got[i], want[i])
		}
	}
}

type recordingDisplay struct {
	mu     sync.Mutex
	writes []string
}

func (r *recordingDisplay) SetText(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, "text:"+text)
	return nil
}

func (r *recordingDisplay) SetColor(ind Indicator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, "color:"+ind.String())
	if ind == IndicatorOff {
		return errors.New("backlight fault")
	}
	return nil
}

func TestSerialized_AppliesInOrder(t *testing.T) {
	target := &recordingDisplay{}
	s := NewSerialized(target)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	if err := s.SetColor(IndicatorGreen); err != nil {
		t.Fatalf("SetColor: %v", err)
	}
	if err := s.SetText("hello"); err != nil {
		t.Fatalf("SetText: %v", err)
	}
	if err := s.SetColor(IndicatorOff); err == nil {
		t.Fatal("target error not propagated")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"color:green", "text:hello", "color:off"}
	if len(target.writes) != len(want) {
		t.Fatalf("writes = %v, want %v", target.writes, want)
	}
	for i := range want {
		if target.writes[i] != want[i] {
			t.Errorf("write %d = %q, want %q", i, target.writes[i], want[i])
		}
	}

	if err := s.SetText("late"); !errors.Is(err, ErrClosed) {
		t.Fatalf("write after Run returned err = %v, want ErrClosed", err)
	}
}

func TestSerialized_ConcurrentWriters(t *testing.T) {
	target := &recordingDisplay{}
	s := NewSerialized(target)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	var wg sync.WaitGroup
	for w := 0; w < 3; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = s.SetColor(IndicatorRed)
			}
		}()
	}
	wg.Wait()

	target.mu.Lock()
	defer target.mu.Unlock()
	if len(target.writes) != 150 {
		t.Fatalf("got %d writes, want 150", len(target.writes))
	}
}

func TestConsole_Snapshot(t *testing.T) {
	c := NewConsole(logging.Discard())
	_ = c.SetText("Bridge ready.")
	_ = c.SetColor(IndicatorGreen)

	text, color := c.Snapshot()
	if text != "Bridge ready." || color != IndicatorGreen {
		t.Errorf("Snapshot() = %q, %v", text, color)
	}
}

func TestSerialized_BlocksUntilRun(t *testing.T) {
	s := NewSerialized(&recordingDisplay{})
	errc := make(chan error, 1)
	go func() { errc <- s.SetText("queued") }()

	select {
	case <-errc:
		t.Fatal("write returned before Run started")
	case <-time.After(20 * time.Millisecond):
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)
	if err := <-errc; err != nil {
		t.Fatalf("SetText: %v", err)
	}
}
