package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/certdrill/certdrill/internal/model"
	"github.com/certdrill/certdrill/internal/store"
)

// handleListQuestions returns the full bank with answer-key overrides
// applied. Admin-only: correctness flags are included.
func (h *Handler) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	questions, _, err := h.store.FetchQuestions(r.Context())
	if err != nil {
		slog.Error("failed to list questions", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	questions, err = h.store.ApplyOverrides(r.Context(), questions)
	if err != nil {
		slog.Error("failed to apply overrides", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if questions == nil {
		questions = []model.Question{}
	}
	respondJSON(w, http.StatusOK, questions)
}

// handleUploadQuestions adds questions to the bank from a JSON payload.
func (h *Handler) handleUploadQuestions(w http.ResponseWriter, r *http.Request) {
	var imports []model.QuestionImport
	if !decodeJSON(w, r, &imports) {
		return
	}

	for i, qi := range imports {
		if err := validateImport(qi); err != nil {
			http.Error(w, fmt.Sprintf("question %d: %v", i, err), http.StatusBadRequest)
			return
		}
	}

	for _, qi := range imports {
		q := model.Question{Topic: qi.Topic, Prompt: qi.Prompt, Note: qi.Note}
		for _, oi := range qi.Options {
			q.Options = append(q.Options, model.Option{ID: oi.ID, Text: oi.Text, Correct: oi.Correct})
		}
		if _, err := h.store.InsertQuestion(q); err != nil {
			slog.Error("failed to insert question", "error", err)
			http.Error(w, "failed to insert question: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}

	slog.Info("uploaded questions via admin", "count", len(imports))
	respondJSON(w, http.StatusCreated, map[string]int{"imported": len(imports)})
}

type overrideRequest struct {
	CorrectOptionIDs []string `json:"correct_option_ids"`
}

// handleSaveOverride records a corrected answer key for a question.
// The correction applies to sessions started afterwards.
func (h *Handler) handleSaveOverride(w http.ResponseWriter, r *http.Request) {
	questionID, err := strconv.ParseInt(chi.URLParam(r, "questionID"), 10, 64)
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}

	var req overrideRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err = h.store.SaveOverride(r.Context(), questionID, req.CorrectOptionIDs)
	switch {
	case errors.Is(err, store.ErrQuestionNotFound):
		h.respondError(w, r, http.StatusNotFound, "QuestionNotFound")
	case errors.Is(err, store.ErrInvalidModification):
		h.respondError(w, r, http.StatusBadRequest, "InvalidModification")
	case err != nil:
		slog.Error("failed to save override", "question_id", questionID, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		respondJSON(w, http.StatusOK, map[string]string{"status": "saved"})
	}
}

// validateImport checks a bank-file question before insertion: unique
// non-empty option ids and at least one option marked correct.
func validateImport(qi model.QuestionImport) error {
	if qi.Prompt == "" {
		return errors.New("prompt is required")
	}
	if qi.Topic == "" {
		return errors.New("topic is required")
	}
	if len(qi.Options) < 2 {
		return errors.New("at least two options are required")
	}
	seen := make(map[string]bool, len(qi.Options))
	hasCorrect := false
	for _, o := range qi.Options {
		if o.ID == "" {
			return errors.New("option id is required")
		}
		if seen[o.ID] {
			return fmt.Errorf("duplicate option id %q", o.ID)
		}
		seen[o.ID] = true
		if o.Correct {
			hasCorrect = true
		}
	}
	if !hasCorrect {
		return errors.New("at least one option must be marked correct")
	}
	return nil
}
