package registry

import (
	"sync"
	"testing"
	"time"
)

// expiryRecorder собирает выстрелы grace-таймеров.
// В проде их принимает цикл движка, в тестах - этот буфер.
type expiryRecorder struct {
	mu    sync.Mutex
	fired []struct {
		id  string
		gen uint64
	}
	notify chan struct{}
}

func newRecorder() *expiryRecorder {
	return &expiryRecorder{notify: make(chan struct{}, 16)}
}

func (rec *expiryRecorder) callback(id string, gen uint64) {
	rec.mu.Lock()
	rec.fired = append(rec.fired, struct {
		id  string
		gen uint64
	}{id, gen})
	rec.mu.Unlock()
	rec.notify <- struct{}{}
}

func (rec *expiryRecorder) count() int {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return len(rec.fired)
}

func (rec *expiryRecorder) last() (string, uint64) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	f := rec.fired[len(rec.fired)-1]
	return f.id, f.gen
}

func (rec *expiryRecorder) waitFire(t *testing.T) {
	t.Helper()
	select {
	case <-rec.notify:
	case <-time.After(2 * time.Second):
		t.Fatal("grace timer did not fire")
	}
}

func TestJoin_NewAndRejoin(t *testing.T) {
	r := New(func(string, uint64) {})
	now := time.Now()

	sess, existed := r.Join("s1", Identity{UserID: 7, DisplayName: "Alice"}, now)
	if existed {
		t.Error("first join reported as rejoin")
	}
	if sess.DisplayName != "Alice" || sess.UserID != 7 {
		t.Errorf("unexpected session: %+v", sess)
	}

	// Повторный join той же сессии мутирует на месте
	again, existed := r.Join("s1", Identity{UserID: 7, DisplayName: "Alice2"}, now.Add(time.Second))
	if !existed {
		t.Error("rejoin reported as new session")
	}
	if again != sess {
		t.Error("rejoin created a second session object")
	}
	if sess.DisplayName != "Alice2" {
		t.Errorf("rejoin did not update identity: %s", sess.DisplayName)
	}
	if r.Count() != 1 {
		t.Errorf("expected 1 session, got %d", r.Count())
	}
}

func TestGraceTimer_Fires(t *testing.T) {
	rec := newRecorder()
	r := New(rec.callback)

	r.Join("s1", Identity{DisplayName: "A"}, time.Now())
	r.ScheduleRemoval("s1", 10*time.Millisecond)

	rec.waitFire(t)

	id, gen := rec.last()
	if id != "s1" {
		t.Errorf("fired for wrong session: %s", id)
	}
	if !r.ValidExpiry(id, gen) {
		t.Error("expiry should be valid: no reconnect happened")
	}
}

func TestGraceTimer_CancelledByRejoin(t *testing.T) {
	rec := newRecorder()
	r := New(rec.callback)

	r.Join("s1", Identity{DisplayName: "A"}, time.Now())
	r.ScheduleRemoval("s1", 50*time.Millisecond)

	// Реконнект до выстрела
	r.Join("s1", Identity{DisplayName: "A"}, time.Now())

	time.Sleep(120 * time.Millisecond)
	if rec.count() != 0 {
		t.Fatal("cancelled timer still fired")
	}
	if r.Get("s1") == nil {
		t.Error("session lost after rejoin")
	}
}

func TestGraceTimer_StaleGenerationRejected(t *testing.T) {
	rec := newRecorder()
	r := New(rec.callback)

	r.Join("s1", Identity{DisplayName: "A"}, time.Now())
	r.ScheduleRemoval("s1", 5*time.Millisecond)
	rec.waitFire(t)
	_, staleGen := rec.last()

	// Между выстрелом и обработкой случился реконнект
	r.Join("s1", Identity{DisplayName: "A"}, time.Now())

	if r.ValidExpiry("s1", staleGen) {
		t.Error("stale expiry accepted after reconnect")
	}
}

func TestGraceTimer_Rearm(t *testing.T) {
	rec := newRecorder()
	r := New(rec.callback)

	r.Join("s1", Identity{DisplayName: "A"}, time.Now())
	r.ScheduleRemoval("s1", time.Hour)
	// Перевзвод коротким таймером обесценивает длинный
	r.ScheduleRemoval("s1", 5*time.Millisecond)

	rec.waitFire(t)
	_, gen := rec.last()
	if !r.ValidExpiry("s1", gen) {
		t.Error("rearmed expiry should be valid")
	}
}

func TestRemove(t *testing.T) {
	r := New(func(string, uint64) {})
	r.Join("s1", Identity{DisplayName: "A"}, time.Now())

	if !r.Remove("s1") {
		t.Error("Remove returned false for live session")
	}
	if r.Remove("s1") {
		t.Error("Remove returned true for already removed session")
	}
	if r.Remove("ghost") {
		t.Error("Remove returned true for unknown session")
	}
	if r.Count() != 0 {
		t.Errorf("expected empty registry, got %d", r.Count())
	}
}

func TestList_StableOrder(t *testing.T) {
	r := New(func(string, uint64) {})
	base := time.Now()

	r.Join("b", Identity{DisplayName: "B"}, base.Add(time.Second))
	r.Join("a", Identity{DisplayName: "A"}, base)
	r.Join("c", Identity{DisplayName: "C"}, base.Add(time.Second))

	list := r.List()
	if len(list) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(list))
	}
	// Сортировка: по времени входа, при равенстве - по ID
	if list[0].ID != "a" || list[1].ID != "b" || list[2].ID != "c" {
		t.Errorf("unexpected order: %s, %s, %s", list[0].ID, list[1].ID, list[2].ID)
	}
}
