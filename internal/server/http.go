package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"thestack-server/internal/engine"
	"thestack-server/internal/version"
	"thestack-server/pkg/logger"
)

type Server struct {
	Engine *engine.GameService
	Port   string

	httpServer *http.Server
}

func New(eng *engine.GameService, port string) *Server {
	return &Server{
		Engine: eng,
		Port:   port,
	}
}

// Run запускает HTTP сервер и блокируется до его остановки.
func (s *Server) Run() error {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/ws", s.handleWS)
	r.Get("/health", s.handleHealth)
	r.Get("/version", s.handleVersion)

	debugHandler := NewDebugHandler(s.Engine)
	debugHandler.RegisterRoutes(r)

	s.httpServer = &http.Server{
		Addr:    ":" + s.Port,
		Handler: r,
	}

	logger.Log.Infof("🧱 Tower sync server running on :%s", s.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown мягко гасит HTTP сервер (активные ws-соединения рвутся,
// клиенты получат server-shutdown через закрытие сокета).
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleWS обрабатывает подключение по WebSocket
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.WithError(err).Error("Upgrade error")
		return
	}

	// Реконнект приносит прежний ID в ?session=, чтобы попасть
	// в grace-окно своей старой сессии.
	client := NewClient(s.Engine, conn, r.URL.Query().Get("session"))

	go client.writePump()
	go client.readPump()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.Engine.Stats()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"time":   time.Now().UnixMilli(),
		"stats":  stats,
	}); err != nil {
		logger.Log.WithError(err).Debug("health encode failed")
	}
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(version.Info()); err != nil {
		logger.Log.WithError(err).Debug("version encode failed")
	}
}
