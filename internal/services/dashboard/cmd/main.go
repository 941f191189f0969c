package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/LeonardoBeccarini/firelinx/internal/config"
	"github.com/LeonardoBeccarini/firelinx/internal/observability"
	"github.com/LeonardoBeccarini/firelinx/internal/services/dashboard"
	"github.com/LeonardoBeccarini/firelinx/internal/services/listener"
	"github.com/LeonardoBeccarini/firelinx/pkg/broker"
	"github.com/LeonardoBeccarini/firelinx/pkg/dedup"
)

func main() {
	logPath := flag.String("log", "firelinx-dashboard.log", "file receiving the dashboard logs")
	maxAlerts := flag.Int("max", dashboard.DefaultMaxAlerts, "number of alerts kept on screen")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.RequireBroker(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	// il terminale è occupato dalla TUI: i log vanno su file
	f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot open log file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()
	logger := observability.NewLoggerTo(f, cfg.LogLevel, cfg.LogFormat).With("service", "dashboard")

	p := tea.NewProgram(dashboard.New(cfg.MQTTTopic, *maxAlerts), tea.WithAltScreen())
	sink := dashboard.NewSink(p, nil)

	conns := broker.NewManager(cfg.Broker(),
		broker.WithLogger(logger),
		broker.WithStateHook(sink.StateHook()),
	)
	consumer := broker.NewConsumer(conns, cfg.MQTTTopic, broker.AtLeastOnce, nil, logger)
	l := listener.New(consumer, dedup.New(cfg.DedupTTL, dedup.DefaultMax, nil), nil, logger)
	l.AddSink(sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Run(ctx)
	}()

	_, runErr := p.Run()
	cancel()
	<-done
	conns.Close()

	if runErr != nil {
		logger.Error("dashboard error", "error", runErr)
		fmt.Fprintf(os.Stderr, "Error running dashboard: %v\n", runErr)
		os.Exit(1)
	}
}
