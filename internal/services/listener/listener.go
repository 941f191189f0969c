// Package listener consumes fire alerts from the broker, drops QoS 1
// redeliveries and malformed payloads, and hands valid alerts to sinks.
package listener

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LeonardoBeccarini/firelinx/internal/alert"
	"github.com/LeonardoBeccarini/firelinx/internal/model/messages"
	"github.com/LeonardoBeccarini/firelinx/internal/observability"
	"github.com/LeonardoBeccarini/firelinx/pkg/broker"
	"github.com/LeonardoBeccarini/firelinx/pkg/dedup"
)

// Sink receives every decoded alert.
type Sink interface {
	HandleAlert(topic string, msg messages.AlertMessage)
}

type SinkFunc func(topic string, msg messages.AlertMessage)

func (f SinkFunc) HandleAlert(topic string, msg messages.AlertMessage) { f(topic, msg) }

type Listener struct {
	consumer broker.IConsumer
	dedup    *dedup.Deduper
	metrics  *observability.Metrics
	logger   *slog.Logger

	mu    sync.RWMutex
	sinks []Sink
}

// New wires the listener as the consumer's handler. d may be nil to disable
// redelivery filtering.
func New(consumer broker.IConsumer, d *dedup.Deduper, metrics *observability.Metrics, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}
	l := &Listener{consumer: consumer, dedup: d, metrics: metrics, logger: logger}
	consumer.SetHandler(l.Handle)
	return l
}

func (l *Listener) AddSink(s Sink) {
	l.mu.Lock()
	l.sinks = append(l.sinks, s)
	l.mu.Unlock()
}

// Run blocks until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) {
	l.consumer.ConsumeMessage(ctx)
}

// Handle processes one delivery. Malformed payloads are logged and dropped,
// never returned, so the consumer keeps going.
func (l *Listener) Handle(topic string, msg mqtt.Message) error {
	payload := msg.Payload()

	if l.dedup != nil && !l.dedup.ShouldProcessPayload(payload) {
		l.metrics.AlertsReceived.WithLabelValues(observability.ResultDuplicate).Inc()
		l.logger.Debug("duplicate delivery dropped", "topic", topic, "message_id", msg.MessageID())
		return nil
	}

	decoded, err := alert.Decode(payload)
	if err != nil {
		l.metrics.AlertsReceived.WithLabelValues(observability.ResultMalformed).Inc()
		reason := err.Error()
		var de *alert.DecodeError
		if errors.As(err, &de) {
			reason = de.Reason
		}
		l.logger.Warn("discarding malformed alert", "topic", topic, "reason", reason, "bytes", len(payload))
		return nil
	}

	l.metrics.AlertsReceived.WithLabelValues(observability.ResultDecoded).Inc()
	p := decoded.Payload
	l.logger.Info("fire alert received",
		"topic", topic,
		"fire_type", p.FireType,
		"intensity", p.FireIntensity,
		"verified", p.Verified,
		"user", p.User,
		"user_id", p.UserID,
		"stn_id", p.StnID,
		"latitude", p.Latitude,
		"longitude", p.Longitude,
		"date", p.Date,
		"time", p.Time,
	)

	l.mu.RLock()
	sinks := append([]Sink(nil), l.sinks...)
	l.mu.RUnlock()
	for _, s := range sinks {
		s.HandleAlert(topic, decoded)
	}
	return nil
}
