package bridge

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"cloudpico-bridge/internal/device"
	"cloudpico-bridge/internal/journal"
	"cloudpico-bridge/internal/metrics"
	"cloudpico-bridge/internal/transport"
)

// Receiver returns the next downlink message, or (nil, nil) when none
// arrived within its own wait bound.
type Receiver interface {
	Receive(ctx context.Context) (*transport.Message, error)
}

type CommandRecorder interface {
	RecordCommand(ctx context.Context, e journal.CommandEntry) error
}

type DownlinkDeps struct {
	Receiver  Receiver
	Indicator *IndicatorControl
	Board     *StatusBoard
	Journal   CommandRecorder // optional
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	Backoff   time.Duration
}

// Downlink applies cloud commands to the indicator. Every received message
// is acked after processing, recognized or not.
type Downlink struct {
	d   DownlinkDeps
	now func() time.Time
}

func NewDownlink(d DownlinkDeps) *Downlink {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Downlink{d: d, now: time.Now}
}

func (dl *Downlink) Run(ctx context.Context) error {
	dl.d.Logger.Info("downlink started", "backoff", dl.d.Backoff)
	for ctx.Err() == nil {
		msg, err := dl.d.Receiver.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			dl.d.Metrics.DownlinkErrors.Inc()
			if errors.Is(err, transport.ErrNotConnected) {
				dl.d.Logger.Debug("receive skipped", "error", err)
			} else {
				dl.d.Logger.Warn("receive failed", "error", err)
			}
		}
		if msg == nil {
			if !sleep(ctx, dl.d.Backoff) {
				break
			}
			continue
		}
		dl.handle(ctx, msg)
	}
	dl.d.Logger.Info("downlink stopped")
	return nil
}

func (dl *Downlink) handle(ctx context.Context, msg *transport.Message) {
	cmd := device.ParseCommand(msg.Payload)
	dl.d.Metrics.Commands.WithLabelValues(cmd.Kind.String()).Inc()

	applied := dl.d.Indicator.Apply(cmd)
	if cmd.Kind == device.CommandUnknown {
		dl.d.Logger.Debug("ignoring unrecognized command", "payload", string(msg.Payload), "topic", msg.Topic)
	} else {
		dl.d.Logger.Info("command applied", "command", cmd.String(), "topic", msg.Topic)
	}
	at := dl.now()
	dl.d.Board.recordCommand(at, cmd.String())

	ackErr := msg.Ack()
	if ackErr != nil {
		dl.d.Metrics.DownlinkAckErrs.Inc()
		dl.d.Logger.Warn("ack failed", "command", cmd.String(), "error", ackErr)
	}

	if dl.d.Journal != nil {
		e := journal.CommandEntry{
			At:      at,
			Topic:   msg.Topic,
			Payload: msg.Payload,
			Command: cmd.String(),
			Applied: applied,
		}
		if ackErr != nil {
			e.AckError = ackErr.Error()
		}
		if err := dl.d.Journal.RecordCommand(ctx, e); err != nil {
			dl.d.Logger.Warn("journal command failed", "error", err)
		}
	}
}
