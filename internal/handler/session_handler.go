package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/boddenberg/zenith-finance-go/internal/domain"
	"github.com/boddenberg/zenith-finance-go/internal/service"
)

type sessionResponse struct {
	ActiveAccountID string      `json:"activeAccountId"`
	Page            domain.Page `json:"page"`
}

func getSessionHandler(c *service.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := c.Session()
		writeJSON(w, http.StatusOK, sessionResponse{ActiveAccountID: s.ActiveAccountID(), Page: s.Page()})
	}
}

type setActiveAccountRequest struct {
	AccountID string `json:"accountId"`
}

// setActiveAccountHandler also moves the session to the dashboard, as
// picking an account does in the app.
func setActiveAccountHandler(c *service.Coordinator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req setActiveAccountRequest
		if err := decodeJSON(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		s := c.Session()
		if err := s.SetActiveAccount(req.AccountID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		s.SetPage(domain.PageDashboard)
		writeJSON(w, http.StatusOK, sessionResponse{ActiveAccountID: s.ActiveAccountID(), Page: s.Page()})
	}
}

type setPageRequest struct {
	Page domain.Page `json:"page"`
}

func setPageHandler(c *service.Coordinator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req setPageRequest
		if err := decodeJSON(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		s := c.Session()
		if err := s.SetPage(req.Page); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{ActiveAccountID: s.ActiveAccountID(), Page: s.Page()})
	}
}

func reloadHandler(c *service.Coordinator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/reload")
		defer span.End()

		if err := c.Load(ctx); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, c.Store().Snapshot())
	}
}
