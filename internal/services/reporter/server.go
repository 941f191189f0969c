// Package reporter is the backend of the fire report form: it stamps and
// locates reports, publishes them as fire alerts and fronts the SOS and
// recognition services.
package reporter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LeonardoBeccarini/firelinx/internal/model/entities"
	"github.com/LeonardoBeccarini/firelinx/internal/model/messages"
	"github.com/LeonardoBeccarini/firelinx/internal/remote"
	"github.com/LeonardoBeccarini/firelinx/pkg/broker"
)

// AlertPublisher is satisfied by *alert.Publisher.
type AlertPublisher interface {
	Publish(ctx context.Context, r entities.FireReport) (messages.AlertMessage, error)
}

// RemoteServices is satisfied by *remote.Client.
type RemoteServices interface {
	TriggerSOS(ctx context.Context) (*remote.Response, error)
	Recognize(ctx context.Context) (remote.Identity, *remote.Response, error)
}

// BrokerState reports the shared connection state; *broker.Manager satisfies it.
type BrokerState interface {
	State() broker.State
}

type Deps struct {
	Publisher   AlertPublisher
	Remote      RemoteServices
	Broker      BrokerState
	Clock       clockwork.Clock
	Logger      *slog.Logger
	MapboxToken string
	SOSEnabled  bool
}

// Server exposes the form API plus health, readiness and metrics.
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     *slog.Logger
}

func NewServer(addr string, deps Deps) *Server {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	s := &Server{deps: deps, logger: deps.Logger}
	r := mux.NewRouter()

	// rotte sul router radice: un subrouter risponde 404 anche al metodo sbagliato
	r.HandleFunc("/api/reports/defaults", s.handleDefaults).Methods(http.MethodGet)
	r.HandleFunc("/api/reports", s.handleReport).Methods(http.MethodPost)
	r.HandleFunc("/api/sos", s.handleSOS).Methods(http.MethodPost)
	r.HandleFunc("/api/recognize", s.handleRecognize).Methods(http.MethodPost)
	r.HandleFunc("/api/map-config", s.handleMapConfig).Methods(http.MethodGet)
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// la risposta a POST /api/reports attende l'ack del broker
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the router, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleReady is 200 only while the broker link is up, so a load balancer stops
// sending reports that would wait out the publish timeout.
func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	state := broker.StateUninitialized
	if s.deps.Broker != nil {
		state = s.deps.Broker.State()
	}
	if state != broker.StateConnected {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"broker": state.String(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "broker": state.String()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
