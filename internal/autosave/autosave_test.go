package autosave

import (
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	saves []string
}

func (r *recorder) save(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves = append(r.saves, id)
}

func (r *recorder) count(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.saves {
		if s == id {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestScheduleCoalescesBursts(t *testing.T) {
	rec := &recorder{}
	s := New(30*time.Millisecond, rec.save)
	defer s.Stop()

	for i := 0; i < 5; i++ {
		s.Schedule("n1")
		time.Sleep(5 * time.Millisecond)
	}
	waitFor(t, func() bool { return rec.count("n1") > 0 })

	// No second save may arrive for the single burst.
	time.Sleep(60 * time.Millisecond)
	if got := rec.count("n1"); got != 1 {
		t.Errorf("burst produced %d saves, want 1", got)
	}
}

func TestNotesDebounceIndependently(t *testing.T) {
	rec := &recorder{}
	s := New(20*time.Millisecond, rec.save)
	defer s.Stop()

	s.Schedule("n1")
	s.Schedule("n2")
	waitFor(t, func() bool { return rec.count("n1") == 1 && rec.count("n2") == 1 })
}

func TestCancelDropsPendingSave(t *testing.T) {
	rec := &recorder{}
	s := New(20*time.Millisecond, rec.save)
	defer s.Stop()

	s.Schedule("n1")
	s.Cancel("n1")
	if s.Pending("n1") {
		t.Error("Pending after Cancel")
	}
	time.Sleep(50 * time.Millisecond)
	if got := rec.count("n1"); got != 0 {
		t.Errorf("cancelled note saved %d times", got)
	}
}

func TestFlushSavesImmediately(t *testing.T) {
	rec := &recorder{}
	s := New(time.Hour, rec.save)
	defer s.Stop()

	s.Schedule("n1")
	s.Flush("n1")
	if got := rec.count("n1"); got != 1 {
		t.Errorf("Flush produced %d saves, want 1", got)
	}

	// Flushing again with nothing pending is a no-op.
	s.Flush("n1")
	if got := rec.count("n1"); got != 1 {
		t.Errorf("idle Flush produced extra save, total %d", got)
	}
}

func TestFlushAllRunsEveryPendingSave(t *testing.T) {
	rec := &recorder{}
	s := New(time.Hour, rec.save)

	s.Schedule("n1")
	s.Schedule("n2")
	s.FlushAll()

	if rec.count("n1") != 1 || rec.count("n2") != 1 {
		t.Fatalf("saves after FlushAll: n1=%d n2=%d, want 1 each", rec.count("n1"), rec.count("n2"))
	}
	if s.Pending("n1") || s.Pending("n2") {
		t.Error("saves still pending after FlushAll")
	}

	// Nothing pending: a second FlushAll is a no-op.
	s.FlushAll()
	if rec.count("n1") != 1 {
		t.Errorf("FlushAll on empty scheduler saved again: n1=%d", rec.count("n1"))
	}
}
