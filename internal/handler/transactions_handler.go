package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/boddenberg/zenith-finance-go/internal/aggregate"
	"github.com/boddenberg/zenith-finance-go/internal/domain"
	"github.com/boddenberg/zenith-finance-go/internal/service"
)

// ============================================================
// Transactions Handlers
// ============================================================

// listTransactionsHandler serves the active account's transactions,
// newest first, optionally narrowed by ?range=today|month|all.
func listTransactionsHandler(c *service.Coordinator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rng, err := aggregate.ParseRange(r.URL.Query().Get("range"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		txs, err := c.ActiveTransactions()
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, aggregate.FilterByRange(txs, rng, c.Now()))
	}
}

func createTransactionHandler(c *service.Coordinator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transactions")
		defer span.End()

		var draft domain.TransactionDraft
		if err := decodeJSON(r, &draft); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		tx, err := c.CreateTransaction(ctx, draft)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, tx)
	}
}

func updateTransactionHandler(c *service.Coordinator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/transactions/{transactionId}")
		defer span.End()

		var patch domain.TransactionPatch
		if err := decodeJSON(r, &patch); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		tx, err := c.UpdateTransaction(ctx, chi.URLParam(r, "transactionId"), patch)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, tx)
	}
}

func requestDeleteTransactionHandler(c *service.Coordinator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pc, err := c.RequestDeleteTransaction(chi.URLParam(r, "transactionId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, pc)
	}
}

// ============================================================
// Quick-log & seed
// ============================================================

func quickLogHandler(c *service.Coordinator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transactions/quick-log")
		defer span.End()

		var entry service.QuickLogEntry
		if err := decodeJSON(r, &entry); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		tx, err := c.QuickLog(ctx, entry)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, tx)
	}
}

type quickLogKind struct {
	Kind   service.QuickLogKind `json:"kind"`
	Fields []string             `json:"fields"`
}

func quickLogKindsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kinds := service.QuickLogKinds()
		out := make([]quickLogKind, len(kinds))
		for i, k := range kinds {
			out[i] = quickLogKind{Kind: k, Fields: k.Fields()}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func seedHandler(c *service.Coordinator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transactions/seed")
		defer span.End()

		n, err := c.SeedTestData(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]int{"added": n})
	}
}
