package state

import (
	"time"

	"thestack-server/internal/domain"
)

// Store хранит последний известный трансформ каждой сессии.
// Побеждает последняя запись; истории нет. Как и леджер, Store
// принадлежит циклу движка и не имеет внутренней блокировки.
type Store struct {
	transforms map[string]*domain.PlayerTransform

	// lastFanout - время последней рассылки трансформа сессии.
	// Нужен для потолка частоты рассылок (состояние при этом
	// обновляется всегда, ограничивается только фан-аут).
	lastFanout map[string]time.Time
}

func New() *Store {
	return &Store{
		transforms: make(map[string]*domain.PlayerTransform),
		lastFanout: make(map[string]time.Time),
	}
}

// Apply перезаписывает трансформ сессии и штампует время.
func (s *Store) Apply(sessionID string, t domain.PlayerTransform, now time.Time) {
	t.UpdatedAt = now
	s.transforms[sessionID] = &t
}

// SetCarrying меняет только флаг переноски. Возвращает false,
// если трансформа для сессии еще нет.
func (s *Store) SetCarrying(sessionID string, carrying bool, now time.Time) bool {
	t, ok := s.transforms[sessionID]
	if !ok {
		return false
	}
	t.IsCarrying = carrying
	t.UpdatedAt = now
	return true
}

// Get возвращает трансформ или nil.
func (s *Store) Get(sessionID string) *domain.PlayerTransform {
	return s.transforms[sessionID]
}

// Remove забывает сессию.
func (s *Store) Remove(sessionID string) {
	delete(s.transforms, sessionID)
	delete(s.lastFanout, sessionID)
}

// ShouldFanout решает, пора ли рассылать трансформ этой сессии.
// При положительном ответе штамп сразу обновляется: вызывающий
// обязан рассылку выполнить.
func (s *Store) ShouldFanout(sessionID string, now time.Time, floor time.Duration) bool {
	if last, ok := s.lastFanout[sessionID]; ok {
		if now.Sub(last) < floor {
			return false
		}
	}
	s.lastFanout[sessionID] = now
	return true
}

// Count возвращает число отслеживаемых сессий.
func (s *Store) Count() int { return len(s.transforms) }
