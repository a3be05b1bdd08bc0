package study

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/studysage/backend/internal/auth"
	"github.com/studysage/backend/internal/httputil"
	"github.com/studysage/backend/internal/models"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	service    *Service
	upgradeURL string
}

// NewHandler builds the study routes. upgradeURL is the payment link behind
// GET /upgrade; empty disables the route.
func NewHandler(service *Service, upgradeURL string) *Handler {
	return &Handler{service: service, upgradeURL: upgradeURL}
}

func getUserID(r *http.Request) (uuid.UUID, bool) {
	return auth.UserIDFromContext(r.Context())
}

func unauthorized(w http.ResponseWriter) {
	httputil.WriteJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
}

// ── Documents ───────────────────────────────────────────

func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		unauthorized(w)
		return
	}

	var req models.CreateDocumentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	doc, err := h.service.CreateDocument(r.Context(), userID, req)
	if err != nil {
		httputil.WriteError(w, err, "Failed to create document")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, doc)
}

func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		unauthorized(w)
		return
	}

	docs, err := h.service.ListDocuments(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err, "Failed to list documents")
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}

	httputil.WriteJSON(w, http.StatusOK, docs)
}

func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		unauthorized(w)
		return
	}

	id, err := httputil.PathID(r)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid document ID"})
		return
	}

	doc, err := h.service.GetDocument(r.Context(), userID, id)
	if err != nil {
		httputil.WriteError(w, err, "Failed to get document")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, doc)
}

// ── Generation ──────────────────────────────────────────

func (h *Handler) GenerateFlashcards(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		unauthorized(w)
		return
	}

	docID, err := httputil.PathID(r)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid document ID"})
		return
	}

	set, err := h.service.GenerateFlashcards(r.Context(), userID, docID)
	if err != nil {
		httputil.WriteError(w, err, "Failed to generate flashcards")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, set)
}

func (h *Handler) GenerateQuiz(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		unauthorized(w)
		return
	}

	docID, err := httputil.PathID(r)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid document ID"})
		return
	}

	quiz, err := h.service.GenerateQuiz(r.Context(), userID, docID)
	if err != nil {
		httputil.WriteError(w, err, "Failed to generate quiz")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, quiz)
}

// ── Flashcard sets & quizzes ────────────────────────────

func (h *Handler) ListFlashcardSets(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		unauthorized(w)
		return
	}

	sets, err := h.service.ListFlashcardSets(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err, "Failed to list flashcard sets")
		return
	}
	if sets == nil {
		sets = []models.FlashcardSet{}
	}

	httputil.WriteJSON(w, http.StatusOK, sets)
}

func (h *Handler) GetFlashcardSet(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		unauthorized(w)
		return
	}

	id, err := httputil.PathID(r)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid flashcard set ID"})
		return
	}

	set, err := h.service.GetFlashcardSet(r.Context(), userID, id)
	if err != nil {
		httputil.WriteError(w, err, "Failed to get flashcard set")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, set)
}

func (h *Handler) ListQuizzes(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		unauthorized(w)
		return
	}

	quizzes, err := h.service.ListQuizzes(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err, "Failed to list quizzes")
		return
	}
	if quizzes == nil {
		quizzes = []models.Quiz{}
	}

	httputil.WriteJSON(w, http.StatusOK, quizzes)
}

func (h *Handler) GetQuiz(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		unauthorized(w)
		return
	}

	id, err := httputil.PathID(r)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid quiz ID"})
		return
	}

	quiz, err := h.service.GetQuiz(r.Context(), userID, id)
	if err != nil {
		httputil.WriteError(w, err, "Failed to get quiz")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, quiz)
}

// ── Study sessions ──────────────────────────────────────

func (h *Handler) ListStudySessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		unauthorized(w)
		return
	}

	limit := httputil.IntQueryParam(r.URL.Query(), "limit", DefaultSessionsLimit)
	if limit > 100 {
		limit = 100
	}

	events, err := h.service.ListStudySessions(r.Context(), userID, limit)
	if err != nil {
		httputil.WriteError(w, err, "Failed to list study sessions")
		return
	}
	if events == nil {
		events = []models.StudyEvent{}
	}

	httputil.WriteJSON(w, http.StatusOK, events)
}

func (h *Handler) ExportStudySessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		unauthorized(w)
		return
	}

	// Buffer so an error can still be reported as JSON.
	var buf bytes.Buffer
	if err := h.service.ExportStudySessions(r.Context(), userID, &buf); err != nil {
		httputil.WriteError(w, err, "Failed to export study sessions")
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="study-sessions-%s.xlsx"`, h.service.clock.Now().In(h.service.loc).Format("2006-01-02")))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.WithField("user_id", userID).WithError(err).Warn("[study] export write interrupted")
	}
}

// ── Upgrade ─────────────────────────────────────────────

func (h *Handler) Upgrade(w http.ResponseWriter, r *http.Request) {
	if h.upgradeURL == "" {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, models.ErrorResponse{Error: "Payments are not configured"})
		return
	}
	http.Redirect(w, r, h.upgradeURL, http.StatusFound)
}
