package middleware

import (
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/studysage/backend/internal/auth"
	"github.com/studysage/backend/internal/httputil"
	"github.com/studysage/backend/internal/models"
)

// AuthMiddleware validates the bearer token and puts the user id in the
// request context.
func AuthMiddleware(tokens *auth.Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, found := strings.CutPrefix(header, "Bearer ")
			if !found || strings.TrimSpace(raw) == "" {
				httputil.WriteJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
				return
			}

			userID, err := tokens.Parse(strings.TrimSpace(raw))
			if err != nil {
				log.WithField("request_id", RequestID(r.Context())).WithError(err).Debug("[auth] rejected token")
				httputil.WriteJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid or expired token"})
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), userID)))
		})
	}
}
