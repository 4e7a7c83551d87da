package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"veriseal/authenticity-api/internal/logging"
)

// NewRouter creates and returns a configured Chi router.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	// ── Health check ──────────────────────────────────────────────────────────
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]string{"status": "ok", "service": "veriseal-authenticity-api"})
	})

	// ── API v1 ────────────────────────────────────────────────────────────────
	r.Route("/api/v1", func(r chi.Router) {

		// Verification pipeline
		r.Route("/verifications", func(r chi.Router) {
			r.Post("/", h.SubmitVerification)
			r.Get("/{id}", h.GetVerification)
		})

		// Product registry
		r.Route("/products", func(r chi.Router) {
			r.Post("/", h.RegisterProduct)
			r.Get("/{id}", h.GetProduct)
		})

		// Behavior anomaly analysis
		r.Get("/users/{id}/behavior", h.GetUserBehavior)

		// Feedback loop
		r.Route("/feedback", func(r chi.Router) {
			r.Post("/reports", h.SubmitFeedbackReport)
			r.Post("/reports/{id}/review", h.ReviewFeedbackReport)
			r.Get("/summary", h.GetFeedbackSummary)
		})

		// Model evaluation & drift monitoring
		r.Route("/models/{type}", func(r chi.Router) {
			r.Post("/evaluate", h.EvaluateModel)
			r.Get("/performance", h.GetModelPerformance)
		})
		r.Get("/alerts/drift", h.ListDriftAlerts)

		// Support intent classification
		r.Post("/support/classify", h.ClassifySupportQuery)

		// Webhook registration
		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/", h.RegisterWebhook)
			r.Delete("/{id}", h.DeleteWebhook)
		})

		// Admin / demo utilities
		r.Post("/admin/seed", h.SeedData)
	})

	return r
}

// requestLogger is a minimal structured-logging middleware.
// It replaces chi's default Logger to emit logrus records.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logging.Log.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		}).Info("http")
	})
}
