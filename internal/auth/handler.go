package auth

import (
	"errors"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/studysage/backend/internal/apperr"
	"github.com/studysage/backend/internal/clock"
	"github.com/studysage/backend/internal/httputil"
	"github.com/studysage/backend/internal/models"
	"github.com/studysage/backend/internal/store"
)

type Handler struct {
	store  store.Store
	tokens *Tokens
	clock  clock.Clock
}

func NewHandler(st store.Store, tokens *Tokens, clk clock.Clock) *Handler {
	return &Handler{store: st, tokens: tokens, clock: clk}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Name = strings.TrimSpace(req.Name)

	if req.Email == "" || req.Name == "" || req.Password == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Email, name, and password are required"})
		return
	}

	if len(req.Password) < 8 {
		httputil.WriteJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Password must be at least 8 characters"})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
		return
	}

	now := h.clock.Now()
	user := models.User{
		Email:     req.Email,
		Name:      req.Name,
		Password:  string(hashedPassword),
		CreatedAt: now,
		UpdatedAt: now,
	}
	progress := models.NewUserProgress(user.ID, now)

	if err := h.store.CreateUser(r.Context(), &user, &progress); err != nil {
		if errors.Is(err, apperr.ErrDuplicate) {
			httputil.WriteJSON(w, http.StatusConflict, models.ErrorResponse{Error: "An account with this email already exists"})
			return
		}
		log.WithError(err).Error("[auth] create user")
		httputil.WriteJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to create account"})
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to generate token"})
		return
	}

	log.WithField("user_id", user.ID).Info("[auth] user registered")
	httputil.WriteJSON(w, http.StatusCreated, models.AuthResponse{Token: token, User: user, Progress: &progress})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	if req.Email == "" || req.Password == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Email and password are required"})
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if errors.Is(err, apperr.ErrNotFound) {
		httputil.WriteJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid email or password"})
		return
	}
	if err != nil {
		log.WithError(err).Error("[auth] lookup user")
		httputil.WriteJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		httputil.WriteJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid email or password"})
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to generate token"})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.AuthResponse{Token: token, User: *user})
}

func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		httputil.WriteJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	user, err := h.store.GetUser(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err, "Failed to get user")
		return
	}
	progress, err := h.store.GetProgress(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err, "Failed to get user")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.MeResponse{User: *user, Progress: progress})
}
