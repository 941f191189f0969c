package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/LeonardoBeccarini/firelinx/internal/model/entities"
	"github.com/LeonardoBeccarini/firelinx/internal/model/messages"
	"github.com/LeonardoBeccarini/firelinx/internal/observability"
	"github.com/LeonardoBeccarini/firelinx/pkg/broker"
)

// Transport is a confirmed publish on a fixed topic; *broker.Publisher
// satisfies it.
type Transport interface {
	Publish(ctx context.Context, payload []byte) error
}

// PublishFailed is the single failure outcome of Publisher.Publish.
type PublishFailed struct {
	Cause error
}

func (e *PublishFailed) Error() string { return fmt.Sprintf("publish failed: %v", e.Cause) }
func (e *PublishFailed) Unwrap() error { return e.Cause }

// Publisher turns a report into a fire_alert and waits for the broker to
// acknowledge it. It never retries; each call is one unit of work.
type Publisher struct {
	transport Transport
	metrics   *observability.Metrics
	logger    *slog.Logger
	clock     clockwork.Clock
}

func NewPublisher(t Transport, metrics *observability.Metrics, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}
	return &Publisher{transport: t, metrics: metrics, logger: logger, clock: clockwork.NewRealClock()}
}

// Publish validates and encodes r, then publishes it at least once. On
// acknowledgment it returns the message that went on the wire; otherwise a
// *PublishFailed carrying the cause.
func (p *Publisher) Publish(ctx context.Context, r entities.FireReport) (messages.AlertMessage, error) {
	if err := r.Validate(); err != nil {
		p.metrics.AlertsPublished.WithLabelValues(observability.OutcomeError).Inc()
		return messages.AlertMessage{}, &PublishFailed{Cause: err}
	}

	msg := Encode(r)
	body, err := Marshal(msg)
	if err != nil {
		p.metrics.AlertsPublished.WithLabelValues(observability.OutcomeError).Inc()
		return messages.AlertMessage{}, &PublishFailed{Cause: err}
	}

	start := p.clock.Now()
	err = p.transport.Publish(ctx, body)
	p.metrics.PublishDuration.Observe(p.clock.Since(start).Seconds())

	if err != nil {
		p.metrics.AlertsPublished.WithLabelValues(outcome(err)).Inc()
		p.logger.Error("fire alert not acknowledged",
			"fire_type", r.FireType, "intensity", r.FireIntensity, "stn_id", r.StnID, "error", err)
		return messages.AlertMessage{}, &PublishFailed{Cause: err}
	}

	p.metrics.AlertsPublished.WithLabelValues(observability.OutcomeSuccess).Inc()
	p.logger.Info("fire alert published",
		"fire_type", r.FireType, "intensity", r.FireIntensity, "user", r.User,
		"stn_id", r.StnID, "latitude", r.Latitude, "longitude", r.Longitude)
	return msg, nil
}

func outcome(err error) string {
	if errors.Is(err, broker.ErrAckTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return observability.OutcomeTimeout
	}
	return observability.OutcomeError
}
