// Package httputil holds the JSON response helpers shared by every handler.
package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/studysage/backend/internal/apperr"
	"github.com/studysage/backend/internal/models"
)

func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Warn("[http] encode response")
	}
}

// WriteError maps err to its status code. Internal errors are logged and
// replaced by fallback so driver details never reach the client.
func WriteError(w http.ResponseWriter, err error, fallback string) {
	status := apperr.HTTPStatus(err)
	msg := err.Error()

	var qe *apperr.QuotaError
	switch {
	case errors.As(err, &qe):
		msg = qe.Error()
	case status == http.StatusInternalServerError:
		log.WithError(err).Error("[http] " + fallback)
		msg = fallback
	case status == http.StatusBadGateway:
		msg = "AI generation failed, please try again"
	case status == http.StatusConflict && errors.Is(err, apperr.ErrPersistenceConflict):
		msg = "Your progress was updated elsewhere, please retry"
	}

	WriteJSON(w, status, models.ErrorResponse{Error: msg, Retryable: apperr.Retryable(err)})
}

const maxBodyBytes = 2 << 20

// DecodeJSON reads the request body into v.
func DecodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return apperr.Invalid("invalid request body")
	}
	return nil
}

// PathID parses the {id} route variable.
func PathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid("invalid id %q", mux.Vars(r)["id"])
	}
	return id, nil
}

func IntQueryParam(query url.Values, key string, defaultVal int) int {
	s := query.Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	return v
}
