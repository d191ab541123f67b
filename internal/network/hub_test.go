package network

import (
	"testing"

	"thestack-server/pkg/api"
)

func TestBroadcast_AllSubscribers(t *testing.T) {
	b := NewBroadcaster()
	chA := b.Register("a")
	chB := b.Register("b")

	b.Broadcast(api.ServerMessage{Type: "roster"})

	if msg := <-chA; msg.Type != "roster" {
		t.Errorf("A got %s", msg.Type)
	}
	if msg := <-chB; msg.Type != "roster" {
		t.Errorf("B got %s", msg.Type)
	}
}

func TestBroadcastExcept(t *testing.T) {
	b := NewBroadcaster()
	chA := b.Register("a")
	chB := b.Register("b")

	b.BroadcastExcept("a", api.ServerMessage{Type: "transform-update"})

	if msg := <-chB; msg.Type != "transform-update" {
		t.Errorf("B got %s", msg.Type)
	}
	select {
	case msg := <-chA:
		t.Errorf("excluded subscriber received %s", msg.Type)
	default:
	}
}

func TestSendTo(t *testing.T) {
	b := NewBroadcaster()
	chA := b.Register("a")
	chB := b.Register("b")

	b.SendTo("a", api.ServerMessage{Type: "world-state"})
	// Отправка несуществующему - no-op
	b.SendTo("ghost", api.ServerMessage{Type: "world-state"})

	if msg := <-chA; msg.Type != "world-state" {
		t.Errorf("A got %s", msg.Type)
	}
	select {
	case msg := <-chB:
		t.Errorf("B received unicast for A: %s", msg.Type)
	default:
	}
}

func TestRegister_ReplacesOldChannel(t *testing.T) {
	b := NewBroadcaster()
	old := b.Register("a")
	fresh := b.Register("a")

	// Старый канал закрыт
	if _, ok := <-old; ok {
		t.Error("old channel still open after re-register")
	}

	b.SendTo("a", api.ServerMessage{Type: "roster"})
	if msg := <-fresh; msg.Type != "roster" {
		t.Errorf("fresh channel got %s", msg.Type)
	}

	if b.SubscriberCount() != 1 {
		t.Errorf("expected 1 subscriber, got %d", b.SubscriberCount())
	}
}

func TestUnregister(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Register("a")

	if !b.Unregister("a", ch) {
		t.Error("Unregister of own channel returned false")
	}
	if _, ok := <-ch; ok {
		t.Error("channel still open after Unregister")
	}
	if b.HasSubscriber("a") {
		t.Error("subscriber still present")
	}

	// Повторный Unregister безопасен
	if b.Unregister("a", ch) {
		t.Error("second Unregister returned true")
	}
}

// Уборка мертвого соединения не должна снимать подписку реконнекта,
// который успел перерегистрироваться под тем же ID.
func TestUnregister_StaleConnectionDoesNotEvictReconnect(t *testing.T) {
	b := NewBroadcaster()
	stale := b.Register("a")
	fresh := b.Register("a") // реконнект перехватывает ID, stale закрыт

	if b.Unregister("a", stale) {
		t.Error("stale cleanup claimed ownership of the session")
	}
	if !b.HasSubscriber("a") {
		t.Fatal("reconnect subscription evicted by stale cleanup")
	}

	// Свежий канал жив и получает сообщения
	b.SendTo("a", api.ServerMessage{Type: "roster"})
	if msg, ok := <-fresh; !ok || msg.Type != "roster" {
		t.Fatalf("fresh channel dead after stale cleanup: ok=%v", ok)
	}

	// Собственная уборка реконнекта работает как обычно
	if !b.Unregister("a", fresh) {
		t.Error("owner Unregister returned false")
	}
	if b.SubscriberCount() != 0 {
		t.Errorf("subscriber count = %d, want 0", b.SubscriberCount())
	}
}

func TestBroadcast_FullChannelDropped(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Register("a")

	// Забиваем буфер до отказа
	for i := 0; i < cap(ch)+10; i++ {
		b.Broadcast(api.ServerMessage{Type: "roster"})
	}

	// Рассылка не заблокировалась и лишние сообщения отброшены
	if len(ch) != cap(ch) {
		t.Errorf("expected full buffer, got %d/%d", len(ch), cap(ch))
	}
}
