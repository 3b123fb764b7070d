/**
 * @description
 * HTTP router setup for the billing service using go-chi/chi.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new Chi router and registers billing routes.
func NewRouter(h *Handler, jwtSecret string, internalKey string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Internal-API-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Billing service is healthy"))
	})

	r.Get("/plans", h.handleListPlans)

	r.Group(func(r chi.Router) {
		r.Use(JWTAuthMiddleware(jwtSecret))
		r.Post("/subscriptions", h.handleSubscribe)
		r.Post("/subscriptions/cancel", h.handleUnsubscribe)
		r.Get("/subscriptions", h.handleListSubscriptions)
		r.Get("/invoices", h.handleListInvoices)
		r.Get("/invoices/latest", h.handleLatestInvoice)
		r.Post("/payments/orders", h.handleCreatePaymentOrder)
		r.Post("/payments/verify", h.handleVerifyPayment)
	})

	r.Route("/internal/jobs", func(r chi.Router) {
		r.Use(InternalAuthMiddleware(internalKey))
		r.Post("/generate-invoices", h.handleRunGenerateInvoices)
		r.Post("/mark-overdue", h.handleRunMarkOverdue)
		r.Post("/send-reminders", h.handleRunSendReminders)
	})

	return r
}
