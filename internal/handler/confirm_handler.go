package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/boddenberg/zenith-finance-go/internal/service"
)

func getConfirmationHandler(c *service.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pc, ok := c.PendingConfirmation()
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, pc)
	}
}

func confirmHandler(c *service.Coordinator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/confirmation/confirm")
		defer span.End()

		if err := c.Confirm(ctx); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func cancelHandler(c *service.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.Cancel()
		w.WriteHeader(http.StatusNoContent)
	}
}
