package trader

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"signal-trade-bot-go/internal/metrics"

	"go.uber.org/zap"
)

// APIServer provides an HTTP interface for the trading engine.
type APIServer struct {
	server *http.Server
	engine *Engine
	logger *zap.Logger
}

// NewAPIServer creates a new APIServer listening on port.
func NewAPIServer(engine *Engine, port int, logger *zap.Logger) *APIServer {
	s := &APIServer{
		engine: engine,
		logger: logger.Named("api-server"),
	}
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.routes(),
	}
	return s
}

func (s *APIServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.statusHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// Start runs the HTTP server in a new goroutine.
func (s *APIServer) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *APIServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}

func (s *APIServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.engine.Status()); err != nil {
		s.logger.Error("Failed to write status response", zap.Error(err))
		http.Error(w, "Failed to encode status", http.StatusInternalServerError)
	}
}

func (s *APIServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	if s.engine.Status().EmergencyStop {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintln(w, "EMERGENCY STOP")
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}
