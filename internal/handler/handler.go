package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	appI18n "github.com/certdrill/certdrill/internal/i18n"
	"github.com/certdrill/certdrill/internal/model"
	"github.com/certdrill/certdrill/internal/session"
	"github.com/certdrill/certdrill/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	sessions *session.Manager
	config   model.ServerConfig
}

// New creates a new Handler.
func New(s *store.Store, m *session.Manager, cfg model.ServerConfig) *Handler {
	return &Handler{store: s, sessions: m, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/topics", h.handleTopics)
	r.Get("/api/history", h.handleHistory)

	r.Post("/api/sessions", h.handleStartSession)
	r.Route("/api/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", h.handleSessionState)
		r.Delete("/", h.handleDiscardSession)
		r.Post("/answer", h.handleAnswer)
		r.Post("/submit", h.handleSubmit)
		r.Post("/advance", h.handleAdvance)
		r.Post("/finish", h.handleFinish)
		r.Post("/end-early", h.handleEndEarly)
		r.Post("/pause", h.handlePause)
		r.Post("/resume", h.handleResume)
		r.Get("/results", h.handleResults)
	})

	r.Post("/api/admin/login", h.handleLogin)
	r.Post("/api/admin/logout", h.handleLogout)
	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Use(requireRole(model.UserRoleAdmin))
		r.Get("/api/admin/questions", h.handleListQuestions)
		r.Post("/api/admin/questions", h.handleUploadQuestions)
		r.Put("/api/admin/questions/{questionID}/answer-key", h.handleSaveOverride)
	})
}

// optionView is an answer choice as shown to the practicing client: no
// correctness flag before submission.
type optionView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type questionView struct {
	ID      int64        `json:"id"`
	Topic   string       `json:"topic"`
	Prompt  string       `json:"prompt"`
	Note    string       `json:"note,omitempty"`
	Options []optionView `json:"options"`
}

// feedbackView carries the post-submit verdict with a localized message.
type feedbackView struct {
	IsCorrect      bool     `json:"is_correct"`
	CorrectAnswers []string `json:"correct_answers"`
	Message        string   `json:"message"`
}

// stateResponse is the session projection returned by most session
// endpoints.
type stateResponse struct {
	ID               string                `json:"id"`
	Mode             model.SessionMode     `json:"mode"`
	Active           bool                  `json:"active"`
	Index            int                   `json:"index"`
	Total            int                   `json:"total"`
	Question         *questionView         `json:"question,omitempty"`
	Selected         []string              `json:"selected,omitempty"`
	Submitted        bool                  `json:"submitted"`
	Feedback         *feedbackView         `json:"feedback,omitempty"`
	RemainingSeconds *int                  `json:"remaining_seconds,omitempty"`
	Results          *model.SessionResults `json:"results,omitempty"`
	EndReason        model.EndReason       `json:"end_reason,omitempty"`
}

func toStateResponse(r *http.Request, v session.View) stateResponse {
	resp := stateResponse{
		ID:               v.ID,
		Mode:             v.Mode,
		Active:           v.Active,
		Index:            v.Index,
		Total:            v.Total,
		Selected:         v.Selected,
		Submitted:        v.Submitted,
		RemainingSeconds: v.RemainingSeconds,
		Results:          v.Results,
		EndReason:        v.EndReason,
	}
	if v.Feedback != nil {
		msgID := "AnswerIncorrect"
		if v.Feedback.IsCorrect {
			msgID = "AnswerCorrect"
		}
		resp.Feedback = &feedbackView{
			IsCorrect:      v.Feedback.IsCorrect,
			CorrectAnswers: v.Feedback.CorrectAnswers,
			Message:        appI18n.T(r.Context(), msgID),
		}
	}
	if v.Question != nil {
		qv := questionView{
			ID:     v.Question.ID,
			Topic:  v.Question.Topic,
			Prompt: v.Question.Prompt,
			Note:   v.Question.Note,
		}
		for _, o := range v.Question.Options {
			qv.Options = append(qv.Options, optionView{ID: o.ID, Text: o.Text})
		}
		resp.Question = &qv
	}
	return resp
}

type startSessionRequest struct {
	SelectedTopics     []string `json:"selected_topics"`
	ShuffleQuestions   *bool    `json:"shuffle_questions"`
	ShuffleOptions     *bool    `json:"shuffle_options"`
	AutoAdvance        *bool    `json:"auto_advance"`
	ShowFeedback       *bool    `json:"show_feedback"`
	TimerEnabled       *bool    `json:"timer_enabled"`
	MinutesPerQuestion *float64 `json:"minutes_per_question"`
}

func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	// Server defaults, overridden per request.
	cfg := h.config.Defaults
	if req.SelectedTopics != nil {
		cfg.SelectedTopics = req.SelectedTopics
	}
	if req.ShuffleQuestions != nil {
		cfg.ShuffleQuestions = *req.ShuffleQuestions
	}
	if req.ShuffleOptions != nil {
		cfg.ShuffleOptions = *req.ShuffleOptions
	}
	if req.AutoAdvance != nil {
		cfg.AutoAdvance = *req.AutoAdvance
	}
	if req.ShowFeedback != nil {
		cfg.ShowFeedback = *req.ShowFeedback
	}
	if req.TimerEnabled != nil {
		cfg.TimerEnabled = *req.TimerEnabled
	}
	if req.MinutesPerQuestion != nil {
		cfg.MinutesPerQuestion = *req.MinutesPerQuestion
	}
	if cfg.TimerEnabled && cfg.MinutesPerQuestion <= 0 {
		h.respondError(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}

	s, err := h.sessions.Start(r.Context(), cfg)
	if err != nil {
		h.sessionError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toStateResponse(r, s.Snapshot()))
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) *session.Session {
	s, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondError(w, r, http.StatusNotFound, "SessionNotFound")
		return nil
	}
	return s
}

func (h *Handler) handleSessionState(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	respondJSON(w, http.StatusOK, toStateResponse(r, s.Snapshot()))
}

type answerRequest struct {
	Selected []string `json:"selected"`
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	var req answerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.Answer(req.Selected); err != nil {
		h.sessionError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toStateResponse(r, s.Snapshot()))
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	if _, err := s.Submit(); err != nil {
		h.sessionError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toStateResponse(r, s.Snapshot()))
}

type advanceRequest struct {
	Direction session.Direction `json:"direction"`
}

func (h *Handler) handleAdvance(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	var req advanceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.Advance(r.Context(), req.Direction); err != nil {
		h.sessionError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toStateResponse(r, s.Snapshot()))
}

func (h *Handler) handleFinish(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	results, err := s.Finish(r.Context())
	if err != nil && results == nil {
		h.sessionError(w, r, err)
		return
	}
	if err != nil {
		// The session is complete; only the history append failed.
		slog.Error("history append failed", "session_id", s.ID(), "error", err)
	}
	respondJSON(w, http.StatusOK, results)
}

func (h *Handler) handleEndEarly(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	results, err := s.EndEarly(r.Context())
	if err != nil && results == nil {
		h.sessionError(w, r, err)
		return
	}
	if err != nil {
		slog.Error("history append failed", "session_id", s.ID(), "error", err)
	}
	respondJSON(w, http.StatusOK, results)
}

func (h *Handler) handlePause(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	s.Pause()
	respondJSON(w, http.StatusOK, toStateResponse(r, s.Snapshot()))
}

func (h *Handler) handleResume(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	s.Resume()
	respondJSON(w, http.StatusOK, toStateResponse(r, s.Snapshot()))
}

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	if s == nil {
		return
	}
	results := s.Results()
	if results == nil {
		h.respondError(w, r, http.StatusConflict, "SessionActive")
		return
	}
	respondJSON(w, http.StatusOK, results)
}

func (h *Handler) handleDiscardSession(w http.ResponseWriter, r *http.Request) {
	h.sessions.Discard(chi.URLParam(r, "sessionID"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := h.sessions.Topics(r.Context())
	if err != nil {
		slog.Error("failed to list topics", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, topics)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	records, err := h.sessions.History(r.Context())
	if err != nil {
		slog.Error("failed to list history", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []model.HistoryRecord{}
	}
	respondJSON(w, http.StatusOK, records)
}

// sessionError maps state-machine errors to HTTP responses.
func (h *Handler) sessionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrEmptyQuestionSet):
		h.respondError(w, r, http.StatusBadRequest, "EmptyQuestionSet")
	case errors.Is(err, session.ErrNoAnswerSelected):
		h.respondError(w, r, http.StatusBadRequest, "NoAnswerSelected")
	case errors.Is(err, session.ErrInvalidOptionID):
		h.respondError(w, r, http.StatusBadRequest, "InvalidOption")
	case errors.Is(err, session.ErrInvalidDirection):
		h.respondError(w, r, http.StatusBadRequest, "InvalidDirection")
	case errors.Is(err, session.ErrInvalidTimerConfig):
		h.respondError(w, r, http.StatusBadRequest, "InvalidRequest")
	case errors.Is(err, session.ErrSessionComplete):
		h.respondError(w, r, http.StatusConflict, "SessionComplete")
	case errors.Is(err, session.ErrNotFound):
		h.respondError(w, r, http.StatusNotFound, "SessionNotFound")
	default:
		slog.Error("session operation failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, status int, msgID string) {
	respondJSON(w, status, map[string]string{"error": appI18n.T(r.Context(), msgID)})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
