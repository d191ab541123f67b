package network

import (
	"sync"

	"thestack-server/pkg/api"
)

// Broadcaster занимается только рассылкой сообщений подписчикам.
// Подписчик - одно живое соединение, ключ - SessionID.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]chan api.ServerMessage
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[string]chan api.ServerMessage),
	}
}

// Register создает личный канал для сессии.
// Повторная регистрация того же ID закрывает старый канал:
// одно соединение - один подписчик.
func (b *Broadcaster) Register(sessionID string) chan api.ServerMessage {
	b.mu.Lock()
	defer b.mu.Unlock()

	if old, ok := b.subscribers[sessionID]; ok {
		close(old)
	}

	ch := make(chan api.ServerMessage, 100)
	b.subscribers[sessionID] = ch
	return ch
}

// Unregister удаляет подписчика, если его канал все еще текущий.
// Канал обязателен: уборка старого соединения не должна снимать
// подписку реконнекта, который успел перерегистрироваться под тем же
// ID (Register уже закрыл старый канал за него). Возвращает false,
// если подписка принадлежит другому (более новому) соединению.
func (b *Broadcaster) Unregister(sessionID string, ch chan api.ServerMessage) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	current, ok := b.subscribers[sessionID]
	if !ok || current != ch {
		return false
	}
	close(current)
	delete(b.subscribers, sessionID)
	return true
}

// SendTo отправляет сообщение конкретной сессии (Unicast).
// Переполненный канал означает безнадежно отставшего клиента -
// сообщение молча отбрасывается, его догонит периодический ростер.
func (b *Broadcaster) SendTo(sessionID string, msg api.ServerMessage) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if ch, ok := b.subscribers[sessionID]; ok {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Broadcast отправляет сообщение всем подписчикам, включая автора.
// Используется для событий леджера и ростера: автор обязан видеть
// то же, что и все (echo-for-consistency).
func (b *Broadcaster) Broadcast(msg api.ServerMessage) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- msg:
		default:
		}
	}
}

// BroadcastExcept отправляет всем, кроме одного.
// Используется для трансформов: собственный рендер автора локально
// авторитетен, эхо ему не нужно.
func (b *Broadcaster) BroadcastExcept(exceptID string, msg api.ServerMessage) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers {
		if id == exceptID {
			continue
		}
		select {
		case ch <- msg:
		default:
		}
	}
}

// HasSubscriber проверяет наличие живого подписчика.
func (b *Broadcaster) HasSubscriber(sessionID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.subscribers[sessionID]
	return ok
}

// SubscriberCount возвращает количество активных подписчиков.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
