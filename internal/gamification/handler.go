package gamification

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/studysage/backend/internal/auth"
	"github.com/studysage/backend/internal/httputil"
	"github.com/studysage/backend/internal/models"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func getUserID(r *http.Request) (uuid.UUID, bool) {
	return auth.UserIDFromContext(r.Context())
}

// ── Progress ────────────────────────────────────────────

func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		httputil.WriteJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	resp, err := h.service.GetProgress(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err, "Failed to get progress")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// ── Completion ──────────────────────────────────────────

func (h *Handler) CompleteFlashcardSet(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		httputil.WriteJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	setID, err := httputil.PathID(r)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid flashcard set ID"})
		return
	}

	var req models.CompleteFlashcardsRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	resp, err := h.service.CompleteFlashcardSession(r.Context(), userID, setID, req.CardsStudied, req.CorrectAnswers)
	if err != nil {
		httputil.WriteError(w, err, "Failed to complete session")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) CompleteQuiz(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		httputil.WriteJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	quizID, err := httputil.PathID(r)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid quiz ID"})
		return
	}

	var req models.CompleteQuizRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	resp, err := h.service.CompleteQuiz(r.Context(), userID, quizID, req.Score, req.TotalQuestions)
	if err != nil {
		httputil.WriteError(w, err, "Failed to complete quiz")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}
