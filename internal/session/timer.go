package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/certdrill/certdrill/internal/model"
)

// runTimer drives the one-second countdown cadence. It exits when the
// session finishes or is discarded; ticks delivered after that are
// ignored by Tick, so a late firing cannot touch a completed session.
func (s *Session) runTimer(stop chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if s.Tick(1) {
				return
			}
		}
	}
}

// Tick consumes elapsed seconds from the countdown and reports whether
// the session is complete. Reaching zero forces a finish exactly once,
// scoring only the questions submitted so far. A paused timer keeps its
// remaining time.
func (s *Session) Tick(elapsed int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return true
	}
	if !s.timerRunning {
		return false
	}
	s.remainingSeconds -= elapsed
	if s.remainingSeconds > 0 {
		return false
	}
	s.remainingSeconds = 0
	if err := s.finishLocked(context.Background(), model.EndTimeExpired); err != nil {
		slog.Error("failed to record expired session", "session_id", s.id, "error", err)
	}
	return true
}

// Pause stops the countdown from decrementing, e.g. while the browser
// tab is backgrounded. Elapsed time is kept.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.timerRunning = false
}

// Resume restarts a paused countdown.
func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished || s.stopTimer == nil {
		return
	}
	s.timerRunning = true
}

// stopTimerLocked cancels the countdown goroutine. Safe to call more
// than once.
func (s *Session) stopTimerLocked() {
	s.timerRunning = false
	if s.stopTimer != nil {
		close(s.stopTimer)
		s.stopTimer = nil
	}
}
