package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LeonardoBeccarini/firelinx/pkg/broker"
)

// BrokerState is satisfied by *broker.Manager.
type BrokerState interface {
	State() broker.State
}

// Server receives webhook updates on /webhook/{token}. A wrong token gets a
// 404 so the path does not reveal that a bot lives here.
type Server struct {
	httpServer *http.Server
	bot        *Bot
	token      string
	state      BrokerState
	logger     *slog.Logger
}

func NewServer(addr, token string, bot *Bot, state BrokerState, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{bot: bot, token: token, state: state, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/webhook/{token}", s.handleWebhook).Methods(http.MethodPost)
	r.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("Pong!"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	s.logger.Info("telegram webhook listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error { return s.httpServer.Shutdown(ctx) }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	got := mux.Vars(r)["token"]
	if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
		http.NotFound(w, r)
		return
	}

	var u Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&u); err != nil {
		http.Error(w, "invalid update", http.StatusBadRequest)
		return
	}
	s.bot.HandleUpdate(r.Context(), u)
	// Telegram ritenta finché non riceve 200
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	st := broker.StateUninitialized
	if s.state != nil {
		st = s.state.State()
	}
	if st != broker.StateConnected {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "broker": st.String()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "broker": st.String()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
