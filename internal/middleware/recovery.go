package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	log "github.com/sirupsen/logrus"

	"github.com/studysage/backend/internal/httputil"
	"github.com/studysage/backend/internal/models"
)

// Recovery turns a handler panic into a 500 and logs the stack.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.WithFields(log.Fields{
					"component":  "panic_recovery",
					"request_id": RequestID(r.Context()),
					"panic":      fmt.Sprintf("%v", rec),
					"stack":      string(debug.Stack()),
				}).Error("[http] panic in handler, recovered")
				httputil.WriteJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
