package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/certdrill/certdrill/internal/model"
)

// QuestionSource supplies the question bank and topic metadata at
// session start.
type QuestionSource interface {
	FetchQuestions(ctx context.Context) ([]model.Question, []model.Topic, error)
}

// ModificationApplier overlays administrator-corrected answer keys onto
// raw questions. Corrections apply to future session starts only.
type ModificationApplier interface {
	ApplyOverrides(ctx context.Context, questions []model.Question) ([]model.Question, error)
}

// Manager is the registry of active sessions. Dependencies are injected
// so every server (and every test) gets an isolated instance.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	source  QuestionSource
	mods    ModificationApplier
	history HistoryLog
}

// NewManager creates a session registry over the given collaborators.
func NewManager(source QuestionSource, mods ModificationApplier, history HistoryLog) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		source:   source,
		mods:     mods,
		history:  history,
	}
}

// Start fetches the question bank, applies answer-key overrides, and
// configures a new session. Collaborator failures surface to the caller
// and leave no partial session behind.
func (m *Manager) Start(ctx context.Context, cfg model.SessionConfig) (*Session, error) {
	questions, _, err := m.source.FetchQuestions(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch questions: %w", err)
	}
	questions, err = m.mods.ApplyOverrides(ctx, questions)
	if err != nil {
		return nil, fmt.Errorf("apply answer-key overrides: %w", err)
	}

	s, err := New(cfg, questions, m.history)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	slog.Info("session started",
		"session_id", s.ID(),
		"mode", s.Mode(),
		"questions", len(s.questions),
		"topics", cfg.SelectedTopics,
	)
	return s, nil
}

// Get returns an active or completed session by id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Discard removes a session from the registry, stopping its countdown.
func (m *Manager) Discard(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.Discard()
	}
}

// Topics returns the bank's topic metadata for the configuration screen.
func (m *Manager) Topics(ctx context.Context) ([]model.Topic, error) {
	_, topics, err := m.source.FetchQuestions(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch topics: %w", err)
	}
	return topics, nil
}

// History lists the recorded exam sessions, newest first.
func (m *Manager) History(ctx context.Context) ([]model.HistoryRecord, error) {
	return m.history.ListHistory(ctx)
}
