package bridge

import (
	"context"
	"log/slog"
	"time"

	"cloudpico-bridge/internal/device"
	"cloudpico-bridge/internal/display"
	"cloudpico-bridge/internal/journal"
	"cloudpico-bridge/internal/metrics"
	"cloudpico-bridge/internal/telemetry"
)

type Sender interface {
	Send(ctx context.Context, payload []byte) error
}

type Sampler interface {
	Sample(color device.Color) telemetry.Reading
}

type UplinkRecorder interface {
	RecordUplink(ctx context.Context, e journal.UplinkEntry) error
}

type UplinkDeps struct {
	Sampler  Sampler
	State    *device.State
	Display  display.Display
	Board    *StatusBoard
	Sender   Sender
	Journal  UplinkRecorder // optional
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Interval time.Duration
}

// Uplink samples, renders and sends one telemetry message per interval.
type Uplink struct {
	d       UplinkDeps
	counter uint64
	now     func() time.Time
}

func NewUplink(d UplinkDeps) *Uplink {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Uplink{d: d, now: time.Now}
}

// Run loops until ctx is cancelled. The interval sleep follows every cycle,
// whether or not the send succeeded.
func (u *Uplink) Run(ctx context.Context) error {
	u.d.Logger.Info("uplink started", "interval", u.d.Interval)
	for {
		if ctx.Err() != nil {
			break
		}
		u.cycle(ctx)
		if !sleep(ctx, u.d.Interval) {
			break
		}
	}
	u.d.Logger.Info("uplink stopped", "messages", u.counter)
	return nil
}

func (u *Uplink) cycle(ctx context.Context) {
	color := u.d.State.Color()
	reading := u.d.Sampler.Sample(color)
	if reading.LiveData {
		u.d.Metrics.LiveReadings.Inc()
	}

	payload, err := telemetry.Marshal(reading)
	if err != nil {
		u.d.Logger.Error("encode telemetry failed", "error", err)
		return
	}

	seq := u.counter
	line := telemetry.StatusLine(seq, payload)
	u.counter++

	u.render(telemetry.LCDText(reading))
	u.d.Board.recordCycle(seq, line, reading.LiveData)
	u.d.Logger.Debug(line)

	sendErr := u.d.Sender.Send(ctx, payload)
	at := u.now()
	u.d.Board.recordSend(at, sendErr)
	if sendErr != nil {
		u.d.Metrics.UplinkFailed.Inc()
		u.d.Logger.Warn("send telemetry failed", "seq", seq, "error", sendErr)
	} else {
		u.d.Metrics.UplinkSent.Inc()
	}

	if u.d.Journal != nil {
		e := journal.UplinkEntry{
			Seq:     seq,
			At:      at,
			Payload: string(payload),
			Live:    reading.LiveData,
			Sent:    sendErr == nil,
		}
		if sendErr != nil {
			e.Error = sendErr.Error()
		}
		if err := u.d.Journal.RecordUplink(ctx, e); err != nil {
			u.d.Logger.Warn("journal uplink failed", "seq", seq, "error", err)
		}
	}
}

// render reads the indicator again so a command applied since the sample
// is not overwritten by the color the reading carries.
func (u *Uplink) render(text string) {
	if err := u.d.Display.SetColor(display.IndicatorFor(u.d.State.Color())); err != nil {
		u.d.Metrics.DisplayFaults.Inc()
		u.d.Logger.Warn("display color update failed", "error", err)
	}
	if err := u.d.Display.SetText(text); err != nil {
		u.d.Metrics.DisplayFaults.Inc()
		u.d.Logger.Warn("display text update failed", "error", err)
	}
}
