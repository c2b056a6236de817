package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/car-rental/internal/lifecycle"
	"github.com/ukydev/car-rental/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, body models.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Warn("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse(message))
}

// writeLifecycleError maps a controller error to its status code. Only the
// error's Message reaches the client; wrapped store errors stay in the logs.
func writeLifecycleError(w http.ResponseWriter, err error) {
	var lerr *lifecycle.Error
	if !errors.As(err, &lerr) {
		log.WithError(err).Error("Unexpected handler error")
		writeJSON(w, http.StatusInternalServerError,
			models.KindErrorResponse(string(lifecycle.KindStoreFailure), "internal server error"))
		return
	}
	writeJSON(w, lerr.Kind.HTTPStatus(), models.KindErrorResponse(string(lerr.Kind), lerr.Message))
}
