package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"thestack-server/internal/engine"
)

// DebugHandler предоставляет доступ к внутреннему состоянию движка.
// Все эндпоинты read-only: запрос уходит в цикл движка и возвращается
// согласованным снимком.
type DebugHandler struct {
	Service *engine.GameService
}

func NewDebugHandler(s *engine.GameService) *DebugHandler {
	return &DebugHandler{Service: s}
}

// RegisterRoutes регистрирует debug-эндпоинты
func (h *DebugHandler) RegisterRoutes(r chi.Router) {
	r.Get("/debug/sessions", h.handleDumpSessions)
	r.Get("/debug/bricks", h.handleDumpBricks)
	r.Get("/debug/tower", h.handleTower)
}

// /debug/sessions - живые сессии с последними трансформами
func (h *DebugHandler) handleDumpSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Service.DumpSessions())
}

// /debug/bricks - полный журнал кирпичей в порядке установки
func (h *DebugHandler) handleDumpBricks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Service.DumpBricks())
}

// /debug/tower - производное состояние башни (слой, завершенные)
func (h *DebugHandler) handleTower(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Service.DumpTower())
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")

	// Пустой срез сериализуем как [], а не null
	if data == nil {
		if _, err := w.Write([]byte("[]")); err != nil {
			return
		}
		return
	}

	_ = json.NewEncoder(w).Encode(data)
}
