package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/LeonardoBeccarini/firelinx/internal/alert"
	"github.com/LeonardoBeccarini/firelinx/internal/config"
	"github.com/LeonardoBeccarini/firelinx/internal/grpchealth"
	"github.com/LeonardoBeccarini/firelinx/internal/observability"
	"github.com/LeonardoBeccarini/firelinx/internal/services/telegram"
	"github.com/LeonardoBeccarini/firelinx/pkg/broker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	for _, check := range []func() error{cfg.RequireBroker, cfg.RequireTelegram} {
		if err := check(); err != nil {
			slog.Error("invalid config", "error", err)
			os.Exit(1)
		}
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat).With("service", "telegram")
	metrics := observability.NewMetrics()

	var health *grpchealth.Server
	if cfg.GRPCAddr != "" {
		health = grpchealth.New(logger)
	}

	conns := broker.NewManager(cfg.Broker(),
		broker.WithLogger(logger),
		broker.WithStateHook(func(s broker.State) {
			metrics.BrokerState.Set(float64(s))
			if health != nil {
				health.SetBrokerState(s)
			}
		}),
		broker.WithErrorHook(func(error) { metrics.BrokerConnectionErrors.Inc() }),
	)

	publisher := alert.NewPublisher(
		broker.NewPublisher(conns, cfg.MQTTTopic, cfg.PublishTimeout, logger),
		metrics, logger)

	bot := telegram.NewBot(
		publisher,
		telegram.NewAPIClient(cfg.TelegramAPIURL, cfg.TelegramToken, cfg.RemoteTimeout),
		telegram.NewHTTPResolver(cfg.RemoteTimeout),
		clockwork.NewRealClock(),
		logger,
	)
	srv := telegram.NewServer(cfg.HTTPAddr, cfg.TelegramToken, bot, conns, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conns.GetConnection()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	if health != nil {
		go func() {
			if err := health.ListenAndServe(cfg.GRPCAddr); err != nil {
				logger.Error("grpc health server error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if health != nil {
		health.Stop()
	}
	conns.Close()
	logger.Info("shutdown complete")
}
