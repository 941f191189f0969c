package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LeonardoBeccarini/firelinx/internal/config"
	"github.com/LeonardoBeccarini/firelinx/internal/grpchealth"
	"github.com/LeonardoBeccarini/firelinx/internal/observability"
	"github.com/LeonardoBeccarini/firelinx/internal/services/listener"
	"github.com/LeonardoBeccarini/firelinx/pkg/broker"
	"github.com/LeonardoBeccarini/firelinx/pkg/dedup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.RequireBroker(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat).With("service", "listener")
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

	consumer := broker.NewConsumer(conns, cfg.MQTTTopic, broker.AtLeastOnce, nil, logger)
	l := listener.New(consumer, dedup.New(cfg.DedupTTL, dedup.DefaultMax, nil), metrics, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if conns.State() != broker.StateConnected {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_, _ = w.Write([]byte(conns.State().String()))
	})
	mux.Handle("/metrics", promhttp.Handler())
	hs := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("http server starting", "addr", cfg.HTTPAddr)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	if health != nil {
		go func() {
			if err := health.ListenAndServe(cfg.GRPCAddr); err != nil {
				logger.Error("grpc health server error", "error", err)
			}
		}()
	}

	logger.Info("listening for fire alerts", "topic", cfg.MQTTTopic, "broker", cfg.Broker().BrokerURL())
	l.Run(ctx)

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if health != nil {
		health.Stop()
	}
	conns.Close()
	logger.Info("shutdown complete")
}
