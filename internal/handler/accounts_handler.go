package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/boddenberg/zenith-finance-go/internal/domain"
	"github.com/boddenberg/zenith-finance-go/internal/service"
)

// ============================================================
// Accounts Handlers
// ============================================================

func listAccountsHandler(c *service.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, c.Store().ListAccounts())
	}
}

type accountOptionsResponse struct {
	Currencies []string `json:"currencies"`
	Icons      []string `json:"icons"`
	Colors     []string `json:"colors"`
}

// accountOptionsHandler serves the choices offered by the account form.
func accountOptionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, accountOptionsResponse{
			Currencies: domain.Currencies,
			Icons:      domain.AccountIcons,
			Colors:     domain.AccountColors,
		})
	}
}

func createAccountHandler(c *service.Coordinator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/accounts")
		defer span.End()

		var draft domain.AccountDraft
		if err := decodeJSON(r, &draft); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		acc, err := c.CreateAccount(ctx, draft)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, acc)
	}
}

func updateAccountHandler(c *service.Coordinator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/accounts/{accountId}")
		defer span.End()

		var patch domain.AccountPatch
		if err := decodeJSON(r, &patch); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		acc, err := c.UpdateAccount(ctx, chi.URLParam(r, "accountId"), patch)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, acc)
	}
}

// requestDeleteAccountHandler only opens the confirmation; the delete
// happens on POST /v1/confirmation/confirm.
func requestDeleteAccountHandler(c *service.Coordinator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pc, err := c.RequestDeleteAccount(chi.URLParam(r, "accountId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, pc)
	}
}
