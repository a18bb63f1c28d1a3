package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"mixcraft/internal/config"
	"mixcraft/internal/logging"
	"mixcraft/internal/pipeline"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	router *mux.Router

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}
	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}

	router := mux.NewRouter()
	router.HandleFunc("/api/health", srv.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/api/notifications/test", srv.handleTestNotification).Methods(http.MethodPost)
	router.HandleFunc("/ws/{kind}/{id}", srv.handleSubscribe).Methods(http.MethodGet)
	srv.router = router

	srv.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	s.mu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
	s.mu.Unlock()
}

func (s *apiServer) addr() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	sent, message, err := s.daemon.TestNotification(r.Context())
	status := http.StatusOK
	if err != nil {
		status = http.StatusBadGateway
		message = message + ": " + err.Error()
	}
	s.writeJSON(w, status, map[string]any{"sent": sent, "message": message})
}

// handleSubscribe upgrades to a websocket that receives every event for one
// project or draft.
func (s *apiServer) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	kind, ok := pipeline.ParseEntityKind(vars["kind"])
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown entity kind")
		return
	}
	hub := s.daemon.hub
	if hub == nil {
		s.writeError(w, http.StatusNotFound, "progress feed disabled")
		return
	}

	id := vars["id"]
	exists, err := s.entityExists(r.Context(), kind, id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !exists {
		s.writeError(w, http.StatusNotFound, string(kind)+" not found")
		return
	}
	hub.ServeWS(w, r, kind, id)
}

func (s *apiServer) entityExists(ctx context.Context, kind pipeline.EntityKind, id string) (bool, error) {
	st := s.daemon.store
	if kind == pipeline.EntityDraft {
		draft, err := st.GetDraft(ctx, id)
		return draft != nil, err
	}
	project, err := st.GetProject(ctx, id)
	return project != nil, err
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	return logging.NewComponentLogger(s.logger, "api-server")
}
