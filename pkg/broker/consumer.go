package broker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Handler processes one delivered message. A returned error is logged only.
type Handler func(topic string, msg mqtt.Message) error

// IConsumer is what services depend on, so tests can replace the broker.
type IConsumer interface {
	ConsumeMessage(ctx context.Context)
	SetHandler(handler Handler)
}

// Consumer subscribes one topic on a Manager's connection. The subscription is
// issued again on every reconnect because sessions are clean.
type Consumer struct {
	conns  *Manager
	topic  string
	qos    byte
	logger *slog.Logger

	mu      sync.RWMutex
	handler Handler

	subscribeTimeout time.Duration
	maxRetryElapsed  time.Duration
}

var _ IConsumer = (*Consumer)(nil)

// NewConsumer creates a consumer; handler may be nil and injected later.
func NewConsumer(conns *Manager, topic string, qos byte, handler Handler, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		conns:            conns,
		topic:            topic,
		qos:              qos,
		handler:          handler,
		logger:           logger,
		subscribeTimeout: 10 * time.Second,
		maxRetryElapsed:  time.Minute,
	}
}

func (c *Consumer) SetHandler(handler Handler) {
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()
}

// ConsumeMessage subscribes and blocks until ctx is cancelled, then unsubscribes.
func (c *Consumer) ConsumeMessage(ctx context.Context) {
	c.conns.OnConnect(func(client mqtt.Client) {
		if ctx.Err() != nil {
			return
		}
		c.subscribe(ctx, client)
	})

	client := c.conns.GetConnection()
	if client == nil {
		c.logger.Error("cannot consume: connection manager closed", "topic", c.topic)
		return
	}
	if c.conns.State() == StateConnected {
		go c.subscribe(ctx, client)
	}

	<-ctx.Done()

	if client.IsConnectionOpen() {
		client.Unsubscribe(c.topic).WaitTimeout(2 * time.Second)
	}
	c.logger.Info("unsubscribed", "topic", c.topic)
}

func (c *Consumer) subscribe(ctx context.Context, client mqtt.Client) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxRetryElapsed

	err := backoff.Retry(func() error {
		token := client.Subscribe(c.topic, c.qos, c.dispatch)
		if !token.WaitTimeout(c.subscribeTimeout) {
			return ErrAckTimeout
		}
		return token.Error()
	}, backoff.WithContext(bo, ctx))

	if err != nil {
		c.logger.Error("subscribe failed", "topic", c.topic, "error", err)
		return
	}
	c.logger.Info("subscribed", "topic", c.topic, "qos", c.qos)
}

func (c *Consumer) dispatch(_ mqtt.Client, msg mqtt.Message) {
	c.mu.RLock()
	h := c.handler
	c.mu.RUnlock()

	if h == nil {
		c.logger.Warn("no handler set", "topic", c.topic)
		return
	}
	if err := h(msg.Topic(), msg); err != nil {
		c.logger.Warn("error handling message", "topic", msg.Topic(), "error", err)
	}
}
