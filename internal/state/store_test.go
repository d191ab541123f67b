package state

import (
	"testing"
	"time"

	"thestack-server/internal/domain"
)

func TestApply_LastWriteWins(t *testing.T) {
	s := New()
	now := time.Now()

	s.Apply("s1", domain.PlayerTransform{Pos: domain.Vec3{X: 1}}, now)
	s.Apply("s1", domain.PlayerTransform{Pos: domain.Vec3{X: 2}}, now.Add(time.Millisecond))

	got := s.Get("s1")
	if got == nil {
		t.Fatal("transform missing")
	}
	if got.Pos.X != 2 {
		t.Errorf("expected last write to win, got X=%f", got.Pos.X)
	}
	if !got.UpdatedAt.Equal(now.Add(time.Millisecond)) {
		t.Error("UpdatedAt not stamped")
	}
}

func TestSetCarrying(t *testing.T) {
	s := New()
	now := time.Now()

	// До первого трансформа флаг ставить некуда
	if s.SetCarrying("s1", true, now) {
		t.Error("SetCarrying succeeded for unknown session")
	}

	s.Apply("s1", domain.PlayerTransform{}, now)
	if !s.SetCarrying("s1", true, now.Add(time.Millisecond)) {
		t.Error("SetCarrying failed for known session")
	}

	got := s.Get("s1")
	if !got.IsCarrying {
		t.Error("carrying flag not set")
	}
}

func TestRemove(t *testing.T) {
	s := New()
	s.Apply("s1", domain.PlayerTransform{}, time.Now())
	s.Remove("s1")

	if s.Get("s1") != nil {
		t.Error("transform survived Remove")
	}
	if s.Count() != 0 {
		t.Errorf("expected empty store, got %d", s.Count())
	}
}

func TestShouldFanout_Floor(t *testing.T) {
	s := New()
	base := time.Now()
	floor := 16 * time.Millisecond

	// Первый раз - всегда можно
	if !s.ShouldFanout("s1", base, floor) {
		t.Fatal("first fanout blocked")
	}

	// Внутри окна - нельзя
	if s.ShouldFanout("s1", base.Add(5*time.Millisecond), floor) {
		t.Error("fanout allowed inside the floor window")
	}

	// После окна - снова можно
	if !s.ShouldFanout("s1", base.Add(20*time.Millisecond), floor) {
		t.Error("fanout blocked after the floor window")
	}

	// Разные сессии не делят окно
	if !s.ShouldFanout("s2", base.Add(time.Millisecond), floor) {
		t.Error("sessions share a fanout window")
	}
}
