// Package autosave coalesces rapid note edits into a single version commit
// per note once the note has been quiet for a configurable period.
package autosave

import (
	"sync"
	"time"
)

// DefaultQuiet is the debounce window applied when the configuration does
// not set one.
const DefaultQuiet = 3 * time.Second

// Scheduler debounces per-note save callbacks. Each call to Schedule resets
// that note's timer; the save function runs only after the note has seen no
// further edits for the quiet period. Saves for different notes are
// independent.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	quiet  time.Duration
	save   func(id string)
}

// New returns a Scheduler invoking save after quiet elapses without further
// edits to a note. A non-positive quiet falls back to DefaultQuiet.
func New(quiet time.Duration, save func(id string)) *Scheduler {
	if quiet <= 0 {
		quiet = DefaultQuiet
	}
	return &Scheduler{
		timers: map[string]*time.Timer{},
		quiet:  quiet,
		save:   save,
	}
}

// Schedule arms (or re-arms) the save timer for a note.
func (s *Scheduler) Schedule(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[id]; ok {
		t.Stop()
	}
	s.timers[id] = time.AfterFunc(s.quiet, func() {
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()
		s.save(id)
	})
}

// Cancel drops any pending save for a note, for example when the note is
// deleted before its timer fires.
func (s *Scheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
}

// Flush runs a pending save for a note immediately. It is a no-op when
// nothing is scheduled.
func (s *Scheduler) Flush(id string) {
	s.mu.Lock()
	t, ok := s.timers[id]
	if ok {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	if ok {
		s.save(id)
	}
}

// FlushAll runs every pending save immediately. Used on shutdown so edits
// still inside their quiet period are not lost.
func (s *Scheduler) FlushAll() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.timers))
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.save(id)
	}
}

// Stop cancels every pending save without running them.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// Pending reports whether a save is currently scheduled for a note.
func (s *Scheduler) Pending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[id]
	return ok
}
