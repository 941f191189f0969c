// Package simulator publishes synthetic fire alerts at a fixed pace, for drills
// and for exercising listeners and dashboards without real operators.
package simulator

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/LeonardoBeccarini/firelinx/internal/model"
)

// AlertPublisher is satisfied by *alert.Publisher.
type AlertPublisher interface {
	Publish(ctx context.Context, r model.FireReport) (model.AlertMessage, error)
}

type Simulator struct {
	generator *Generator
	publisher AlertPublisher
	clock     clockwork.Clock
	logger    *slog.Logger
}

func New(gen *Generator, p AlertPublisher, clock clockwork.Clock, logger *slog.Logger) *Simulator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{generator: gen, publisher: p, clock: clock, logger: logger}
}

// Start publishes one report every interval until ctx is cancelled or, when
// limit > 0, limit reports were attempted. It returns how many were acknowledged.
func (s *Simulator) Start(ctx context.Context, interval time.Duration, limit int) int {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	sent, attempts := 0, 0
	for {
		select {
		case <-ctx.Done():
			return sent
		case <-ticker.Chan():
			attempts++
			r := s.generator.Next()
			msg, err := s.publisher.Publish(ctx, r)
			if err != nil {
				s.logger.Warn("simulated alert not delivered", "error", err)
			} else {
				sent++
				s.logger.Info("simulated alert published",
					"fire_type", msg.Payload.FireType,
					"intensity", msg.Payload.FireIntensity,
					"latitude", msg.Payload.Latitude,
					"longitude", msg.Payload.Longitude)
			}
			if limit > 0 && attempts >= limit {
				return sent
			}
		}
	}
}
