package handlers

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/car-rental/internal/models"
)

// Health reports 200 when ping succeeds and 503 otherwise.
func Health(ping func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := ping(ctx); err != nil {
			log.WithError(err).Warn("Health check failed")
			writeJSON(w, http.StatusServiceUnavailable, models.ErrorResponse("database unavailable"))
			return
		}
		writeJSON(w, http.StatusOK, models.Response{Success: true, Message: "ok"})
	}
}
