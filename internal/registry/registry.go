package registry

import (
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"thestack-server/internal/domain"
	"thestack-server/pkg/logger"
)

// Identity - поля, которые клиент сообщает о себе в join.
type Identity struct {
	UserID      int64
	DisplayName string
	AvatarRef   string
}

// removalSlot - отложенное удаление одной сессии.
// Слот живет в мапе по ID сессии и переиспользуется между
// дисконнектами (арена+индекс вместо утечки таймеров по сокетам).
// Поколение (gen) защищает от гонки "таймер выстрелил, пока мы его
// отменяли": цикл движка сверяет gen выстрела с текущим.
type removalSlot struct {
	gen   uint64
	timer *time.Timer
}

// Registry владеет множеством живых сессий и их grace-таймерами.
// Все методы, кроме колбэка onExpire, должны вызываться из одной
// горутины (цикла движка) - внутренней блокировки здесь нет.
type Registry struct {
	sessions map[string]*domain.Session
	removals map[string]*removalSlot

	// onExpire вызывается из горутины таймера. Единственная его задача -
	// переправить факт "grace истек" обратно в цикл движка.
	onExpire func(sessionID string, gen uint64)
}

func New(onExpire func(sessionID string, gen uint64)) *Registry {
	return &Registry{
		sessions: make(map[string]*domain.Session),
		removals: make(map[string]*removalSlot),
		onExpire: onExpire,
	}
}

// Join создает сессию или обновляет существующую (идемпотентный re-join).
// Любой join отменяет отложенное удаление этой сессии.
// Возвращает сессию и признак того, что она уже существовала.
func (r *Registry) Join(sessionID string, ident Identity, now time.Time) (*domain.Session, bool) {
	r.CancelRemoval(sessionID)

	if sess, ok := r.sessions[sessionID]; ok {
		// Реконнект или повторный join: мутируем на месте,
		// не создавая второй сессии.
		sess.UserID = ident.UserID
		sess.DisplayName = ident.DisplayName
		sess.AvatarRef = ident.AvatarRef
		sess.LastSeen = now
		return sess, true
	}

	sess := &domain.Session{
		ID:          sessionID,
		UserID:      ident.UserID,
		DisplayName: ident.DisplayName,
		AvatarRef:   ident.AvatarRef,
		JoinedAt:    now,
		LastSeen:    now,
	}
	r.sessions[sessionID] = sess
	return sess, false
}

// ScheduleRemoval взводит grace-таймер удаления сессии.
// Повторный вызов перевзводит таймер и обесценивает предыдущий выстрел.
func (r *Registry) ScheduleRemoval(sessionID string, after time.Duration) {
	slot, ok := r.removals[sessionID]
	if !ok {
		slot = &removalSlot{}
		r.removals[sessionID] = slot
	}

	if slot.timer != nil {
		slot.timer.Stop()
	}

	slot.gen++
	gen := slot.gen
	slot.timer = time.AfterFunc(after, func() {
		r.onExpire(sessionID, gen)
	})
}

// CancelRemoval гасит отложенное удаление (реконнект успел).
// Инкремент поколения отсекает выстрел, который уже в полете.
func (r *Registry) CancelRemoval(sessionID string) {
	if slot, ok := r.removals[sessionID]; ok {
		if slot.timer != nil {
			slot.timer.Stop()
		}
		slot.gen++
	}
}

// ValidExpiry проверяет, актуален ли выстрел таймера.
// Устаревшее поколение означает, что между выстрелом и обработкой
// случился реконнект - удалять нельзя.
func (r *Registry) ValidExpiry(sessionID string, gen uint64) bool {
	slot, ok := r.removals[sessionID]
	if !ok || slot.gen != gen {
		return false
	}
	_, alive := r.sessions[sessionID]
	return alive
}

// Remove немедленно удаляет сессию. Возвращает false для неизвестного
// ID - это не ошибка, а ожидаемый исход гонки disconnect/cleanup.
func (r *Registry) Remove(sessionID string) bool {
	if _, ok := r.sessions[sessionID]; !ok {
		return false
	}
	r.CancelRemoval(sessionID)
	delete(r.removals, sessionID)
	delete(r.sessions, sessionID)

	logger.Log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"component":  "registry",
	}).Debug("Session removed")
	return true
}

// Get возвращает сессию или nil.
func (r *Registry) Get(sessionID string) *domain.Session {
	return r.sessions[sessionID]
}

// List возвращает сессии в стабильном порядке (по времени входа,
// затем по ID). Стабильность нужна, чтобы периодический ростер
// не "прыгал" у клиентов.
func (r *Registry) List() []*domain.Session {
	out := make([]*domain.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Count возвращает число живых сессий.
func (r *Registry) Count() int {
	return len(r.sessions)
}
