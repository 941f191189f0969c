package broker

import (
	"context"
	"log/slog"
	"time"
)

// Publisher sends payloads to one topic over a Manager's shared connection.
// It borrows the connection and never closes it.
type Publisher struct {
	conns   *Manager
	topic   string
	qos     byte
	timeout time.Duration
	logger  *slog.Logger
}

// NewPublisher creates a QoS 1 publisher. timeout bounds the wait for the
// broker acknowledgment; zero means DefaultPublishTimeout.
func NewPublisher(conns *Manager, topic string, timeout time.Duration, logger *slog.Logger) *Publisher {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conns:   conns,
		topic:   topic,
		qos:     AtLeastOnce,
		timeout: timeout,
		logger:  logger,
	}
}

// Topic returns the destination topic.
func (p *Publisher) Topic() string { return p.topic }

// Publish blocks until the broker acknowledges payload, the context ends or the
// acknowledgment timeout expires. Every failure is a *PublishError.
func (p *Publisher) Publish(ctx context.Context, payload []byte) error {
	client := p.conns.GetConnection()
	if client == nil {
		return &PublishError{Topic: p.topic, Err: ErrClosed}
	}

	token := client.Publish(p.topic, p.qos, false, payload)

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return &PublishError{Topic: p.topic, Err: err}
		}
	case <-timer.C:
		return &PublishError{Topic: p.topic, Err: ErrAckTimeout}
	case <-ctx.Done():
		return &PublishError{Topic: p.topic, Err: ctx.Err()}
	}

	p.logger.Debug("message acknowledged", "topic", p.topic, "bytes", len(payload))
	return nil
}
