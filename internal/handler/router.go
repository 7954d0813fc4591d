package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/boddenberg/zenith-finance-go/internal/domain"
	"github.com/boddenberg/zenith-finance-go/internal/infra/observability"
	"github.com/boddenberg/zenith-finance-go/internal/service"
)

var tracer = otel.Tracer("handler")

// Pinger reports whether the persistence backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Notifications is the read side of the notification queue.
type Notifications interface {
	List() []domain.Notification
	Dismiss(id string) bool
}

// Options carries the collaborators the router serves.
type Options struct {
	Backend       string
	Pinger        Pinger
	Notifications Notifications
	Metrics       *observability.Metrics
	Logger        *zap.Logger
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(c *service.Coordinator, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(opts.Backend, opts.Pinger))
	r.Get("/readyz", readyzHandler(c))
	if opts.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Metrics.Registry, promhttp.HandlerOpts{}))
	} else {
		r.Handle("/metrics", promhttp.Handler())
	}

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		if c == nil {
			return
		}

		// Accounts
		r.Get("/accounts", listAccountsHandler(c))
		r.Post("/accounts", createAccountHandler(c, logger))
		r.Get("/accounts/options", accountOptionsHandler())
		r.Patch("/accounts/{accountId}", updateAccountHandler(c, logger))
		r.Delete("/accounts/{accountId}", requestDeleteAccountHandler(c, logger))

		// Transactions (active account)
		r.Get("/transactions", listTransactionsHandler(c, logger))
		r.Post("/transactions", createTransactionHandler(c, logger))
		r.Patch("/transactions/{transactionId}", updateTransactionHandler(c, logger))
		r.Delete("/transactions/{transactionId}", requestDeleteTransactionHandler(c, logger))
		r.Post("/transactions/quick-log", quickLogHandler(c, logger))
		r.Get("/transactions/quick-log/kinds", quickLogKindsHandler())
		r.Post("/transactions/seed", seedHandler(c, logger))

		// Confirmation gate
		r.Get("/confirmation", getConfirmationHandler(c))
		r.Post("/confirmation/confirm", confirmHandler(c, logger))
		r.Post("/confirmation/cancel", cancelHandler(c))

		// Views
		r.Get("/dashboard", dashboardHandler(c, logger))
		r.Get("/calendar", calendarHandler(c, logger))
		r.Get("/history", historyHandler(c, logger))

		// Session
		r.Get("/session", getSessionHandler(c))
		r.Put("/session/active-account", setActiveAccountHandler(c, logger))
		r.Put("/session/page", setPageHandler(c, logger))
		r.Post("/reload", reloadHandler(c, logger))

		// Categories
		r.Get("/categories", categoriesHandler(c))
		r.Post("/categories/suggest", suggestCategoryHandler(c, logger))

		// Notifications
		if opts.Notifications != nil {
			r.Get("/notifications", listNotificationsHandler(opts.Notifications))
			r.Delete("/notifications/{notificationId}", dismissNotificationHandler(opts.Notifications))
		}

		// Metrics summary
		if opts.Metrics != nil {
			r.Get("/metrics/summary", metricsSummaryHandler(opts.Metrics))
		}
	})

	return r
}

// ============================================================
// Health & metrics
// ============================================================

func healthzHandler(backend string, pinger Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)
		services := []domain.ServiceHealth{
			{Name: "zenith-api", Status: "healthy", LastChecked: now},
		}

		if pinger != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			start := time.Now()
			err := pinger.Ping(ctx)
			status := "healthy"
			if err != nil {
				status = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name: backend, Status: status,
				LatencyMs: time.Since(start).Milliseconds(), LastChecked: now,
			})
		}

		overall := "healthy"
		for _, s := range services {
			if s.Status != "healthy" {
				overall = s.Status
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overall,
			Backend:  backend,
			Services: services,
		})
	}
}

// readyzHandler is ready once a ledger with at least one account is loaded.
func readyzHandler(c *service.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if c != nil && c.Store().AccountCount() == 0 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func metricsSummaryHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Snapshot())
	}
}

// ============================================================
// Notifications
// ============================================================

func listNotificationsHandler(n Notifications) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, n.List())
	}
}

func dismissNotificationHandler(n Notifications) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !n.Dismiss(chi.URLParam(r, "notificationId")) {
			writeError(w, http.StatusNotFound, "notification not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
