package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sony/gobreaker"

	"cloudpico-bridge/internal/config"
	"cloudpico-bridge/internal/transport"
)

const (
	qosAtLeastOnce = 1
	inboxSize      = 64

	connectAttemptTimeout = 10 * time.Second
)

var (
	ErrStopped     = errors.New("mqtt: client stopped")
	ErrBreakerOpen = errors.New("mqtt: publish circuit open")
)

// Client is the bridge's cloud link: it publishes telemetry to the uplink
// topic and queues downlink commands for Receive. Downlink messages are acked
// manually, after the caller has processed them.
type Client struct {
	client  mqtt.Client
	cfg     config.Config
	logger  *slog.Logger
	breaker *gobreaker.CircuitBreaker
	inbox   chan mqtt.Message

	// attemptTimeout bounds one connect attempt inside the retry budget.
	attemptTimeout time.Duration

	// publish is swapped out in tests.
	publish func(ctx context.Context, payload []byte) error

	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewClient(cfg config.Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg:    cfg,
		logger: logger,
		inbox:  make(chan mqtt.Message, inboxSize),
		stopCh: make(chan struct{}),

		attemptTimeout: min(connectAttemptTimeout, cfg.MQTTConnectTimeout),
	}
	c.publish = c.pahoPublish
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "mqtt-publish",
		Timeout: cfg.PublishBreakerOpen,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.PublishBreakerFailures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)
	if cfg.MQTTUsername != "" {
		opts.SetUsername(cfg.MQTTUsername)
		opts.SetPassword(cfg.MQTTPassword)
	}

	// Persistent session so unacked commands survive a reconnect.
	opts.SetCleanSession(false)
	opts.SetAutoAckDisabled(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetConnectTimeout(connectAttemptTimeout)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(cl mqtt.Client) {
		c.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
		// Subscribing here restores the subscription after auto-reconnect.
		token := cl.Subscribe(cfg.MQTTDownlinkTopic, qosAtLeastOnce, c.onMessage)
		go func() {
			if !token.WaitTimeout(cfg.MQTTPublishTimeout) {
				logger.Warn("mqtt subscribe timeout", "topic", cfg.MQTTDownlinkTopic)
				return
			}
			if err := token.Error(); err != nil {
				logger.Error("mqtt subscribe failed", "topic", cfg.MQTTDownlinkTopic, "error", err)
				return
			}
			logger.Info("mqtt subscribed", "topic", cfg.MQTTDownlinkTopic)
		}()
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	c.client = mqtt.NewClient(opts)
	return c, nil
}

// Connect establishes the first connection, retrying with exponential
// backoff for up to MQTTConnectTimeout. Later drops are handled by paho's
// auto-reconnect.
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.stopCh:
		return ErrStopped
	default:
	}

	if c.IsConnected() {
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = c.cfg.MQTTConnectTimeout

	attempt := func() error {
		select {
		case <-c.stopCh:
			return backoff.Permanent(ErrStopped)
		default:
		}
		token := c.client.Connect()
		if !token.WaitTimeout(c.attemptTimeout) {
			return fmt.Errorf("connect attempt timed out after %s", c.attemptTimeout)
		}
		return token.Error()
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("mqtt connect failed; retrying", "error", err, "retry_in", wait)
	}

	if err := backoff.RetryNotify(attempt, backoff.WithContext(bo, ctx), notify); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// Send publishes payload to the uplink topic at QoS 1 and waits for the
// broker's acknowledgement.
func (c *Client) Send(ctx context.Context, payload []byte) error {
	if !c.IsConnected() {
		return transport.ErrNotConnected
	}
	return c.guardedPublish(ctx, payload)
}

func (c *Client) guardedPublish(ctx context.Context, payload []byte) error {
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.publish(ctx, payload)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrBreakerOpen, err)
	}
	return err
}

func (c *Client) pahoPublish(ctx context.Context, payload []byte) error {
	topic := c.cfg.MQTTUplinkTopic
	token := c.client.Publish(topic, qosAtLeastOnce, false, payload)

	timer := time.NewTimer(c.cfg.MQTTPublishTimeout)
	defer timer.Stop()
	select {
	case <-token.Done():
	case <-timer.C:
		return fmt.Errorf("publish timeout for topic %s", topic)
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	c.logger.Debug("published telemetry", "topic", topic, "bytes", len(payload))
	return nil
}

// Receive waits up to MQTTReceiveTimeout for the next downlink message.
// It returns (nil, nil) when nothing arrived in time. Messages already
// queued are delivered even while the link is down.
func (c *Client) Receive(ctx context.Context) (*transport.Message, error) {
	select {
	case m := <-c.inbox:
		return wrap(m), nil
	default:
	}
	if !c.IsConnected() {
		return nil, transport.ErrNotConnected
	}

	timer := time.NewTimer(c.cfg.MQTTReceiveTimeout)
	defer timer.Stop()
	select {
	case m := <-c.inbox:
		return wrap(m), nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.stopCh:
		return nil, ErrStopped
	}
}

func wrap(m mqtt.Message) *transport.Message {
	return transport.NewMessage(m.Topic(), m.Payload(), func() error {
		m.Ack()
		return nil
	})
}

// onMessage runs on paho's router goroutine. Blocking here preserves the
// delivery order of commands; it only blocks when the inbox is full.
func (c *Client) onMessage(_ mqtt.Client, m mqtt.Message) {
	select {
	case c.inbox <- m:
	case <-c.stopCh:
	}
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

// BreakerState reports the publish circuit breaker state.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// Disconnect stops the client and closes the MQTT connection.
// Idempotent and safe to call multiple times.
func (c *Client) Disconnect() {
	c.stopOnce.Do(func() { close(c.stopCh) })

	if c.client != nil {
		c.client.Disconnect(250)
	}

	c.setConnected(false)
	c.logger.Info("mqtt disconnected")
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}
