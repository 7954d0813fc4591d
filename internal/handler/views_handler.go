package handler

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/zenith-finance-go/internal/aggregate"
	"github.com/boddenberg/zenith-finance-go/internal/domain"
	"github.com/boddenberg/zenith-finance-go/internal/service"
)

// ============================================================
// Aggregated views
// ============================================================

func dashboardHandler(c *service.Coordinator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rng, err := aggregate.ParseRange(r.URL.Query().Get("range"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		d, err := c.Dashboard(rng)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

// calendarHandler serves ?year=2024&month=5; both omitted means this month.
func calendarHandler(c *service.Coordinator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var (
			year  int
			month time.Month
		)
		if q.Get("year") != "" || q.Get("month") != "" {
			y, errY := strconv.Atoi(q.Get("year"))
			m, errM := strconv.Atoi(q.Get("month"))
			if errY != nil || errM != nil || y < 1 {
				handleServiceError(w, &domain.ErrValidation{Field: "year/month", Message: "must be numeric"}, logger)
				return
			}
			year, month = y, time.Month(m)
		}

		cal, err := c.Calendar(year, month)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, cal)
	}
}

func historyHandler(c *service.Coordinator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groups, err := c.History()
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, groups)
	}
}

// ============================================================
// Categories
// ============================================================

func categoriesHandler(c *service.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, c.Categories())
	}
}

type suggestRequest struct {
	Description string `json:"description"`
}

type suggestResponse struct {
	Category string `json:"category"`
}

func suggestCategoryHandler(c *service.Coordinator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/categories/suggest")
		defer span.End()

		var req suggestRequest
		if err := decodeJSON(r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, suggestResponse{Category: c.SuggestCategory(ctx, req.Description)})
	}
}
