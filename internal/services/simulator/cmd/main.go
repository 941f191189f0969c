package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/LeonardoBeccarini/firelinx/internal/alert"
	"github.com/LeonardoBeccarini/firelinx/internal/config"
	"github.com/LeonardoBeccarini/firelinx/internal/model"
	"github.com/LeonardoBeccarini/firelinx/internal/observability"
	"github.com/LeonardoBeccarini/firelinx/internal/services/simulator"
	"github.com/LeonardoBeccarini/firelinx/pkg/broker"
)

func main() {
	interval := flag.Duration("interval", 10*time.Second, "publish interval")
	count := flag.Int("count", 0, "number of alerts to send, 0 runs until interrupted")
	lat := flag.Float64("lat", 22.5726, "latitude of the drill area centre")
	lng := flag.Float64("lng", 88.3639, "longitude of the drill area centre")
	radius := flag.Float64("radius-km", 15, "radius of the drill area")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed, fixed to replay a drill")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.RequireBroker(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat).With("service", "simulator")
	metrics := observability.NewMetrics()

	conns := broker.NewManager(cfg.Broker(),
		broker.WithLogger(logger),
		broker.WithStateHook(func(s broker.State) { metrics.BrokerState.Set(float64(s)) }),
		broker.WithErrorHook(func(error) { metrics.BrokerConnectionErrors.Inc() }),
	)
	defer conns.Close()

	publisher := alert.NewPublisher(
		broker.NewPublisher(conns, cfg.MQTTTopic, cfg.PublishTimeout, logger),
		metrics, logger)

	clock := clockwork.NewRealClock()
	gen := simulator.NewGenerator(simulator.Area{
		Center:   model.Coordinates{Lat: *lat, Lng: *lng},
		RadiusKm: *radius,
	}, *seed, clock)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("simulator starting", "interval", interval.String(), "count", *count, "seed", *seed)
	sent := simulator.New(gen, publisher, clock, logger).Start(ctx, *interval, *count)
	logger.Info("simulator stopped", "sent", sent)
}
