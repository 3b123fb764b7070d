/**
 * @description
 * HTTP handlers for the billing service.
 */
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/karan-ksrk/billing-service/internal/app"
	"github.com/karan-ksrk/billing-service/internal/store"
)

// Handler holds the application service that handlers will interact with.
type Handler struct {
	service app.Service
}

// NewHandler creates a new Handler with the given service.
func NewHandler(service app.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.service.ListPlans(r.Context())
	if err != nil {
		log.Printf("Error listing plans: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, plans)
}

func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		PlanID string `json:"plan_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlanID == "" {
		http.Error(w, "plan_id is required", http.StatusBadRequest)
		return
	}

	sub, err := h.service.Subscribe(r.Context(), userID, req.PlanID, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, store.ErrPlanNotFound):
			http.Error(w, "Plan not found or inactive", http.StatusBadRequest)
		case errors.Is(err, app.ErrActiveSubscriptionExists):
			http.Error(w, "You already have an active subscription", http.StatusBadRequest)
		default:
			log.Printf("Error creating subscription for user %s: %v", userID, err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	respondWithJSON(w, http.StatusCreated, sub)
}

func (h *Handler) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		SubscriptionID string `json:"subscription_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SubscriptionID == "" {
		http.Error(w, "subscription_id is required", http.StatusBadRequest)
		return
	}

	sub, err := h.service.Unsubscribe(r.Context(), userID, req.SubscriptionID)
	if err != nil {
		if errors.Is(err, store.ErrSubscriptionNotFound) {
			http.Error(w, "Subscription not found", http.StatusBadRequest)
			return
		}
		log.Printf("Error cancelling subscription %s: %v", req.SubscriptionID, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, sub)
}

func (h *Handler) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	subs, err := h.service.ListSubscriptions(r.Context(), userID)
	if err != nil {
		log.Printf("Error listing subscriptions for user %s: %v", userID, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, subs)
}

func (h *Handler) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	invoices, err := h.service.ListInvoices(r.Context(), userID)
	if err != nil {
		log.Printf("Error listing invoices for user %s: %v", userID, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, invoices)
}

func (h *Handler) handleLatestInvoice(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	invoice, err := h.service.LatestInvoice(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrInvoiceNotFound) {
			http.Error(w, "No invoices found", http.StatusNotFound)
			return
		}
		log.Printf("Error fetching latest invoice for user %s: %v", userID, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, invoice)
}

func (h *Handler) handleCreatePaymentOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		InvoiceID string `json:"invoice_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.InvoiceID == "" {
		http.Error(w, "invoice_id is required", http.StatusBadRequest)
		return
	}

	orderID, err := h.service.CreatePaymentOrder(r.Context(), userID, req.InvoiceID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInvoiceNotFound):
			http.Error(w, "Invoice not found", http.StatusBadRequest)
		case errors.Is(err, app.ErrInvoiceNotPayable):
			http.Error(w, "Invoice already paid", http.StatusBadRequest)
		default:
			log.Printf("Error creating payment order for invoice %s: %v", req.InvoiceID, err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]string{"order_id": orderID})
}

func (h *Handler) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req app.VerifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.InvoiceID == "" || req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		http.Error(w, "Missing required parameters", http.StatusBadRequest)
		return
	}

	outcome, err := h.service.VerifyPayment(r.Context(), userID, req, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInvoiceNotFound):
			http.Error(w, "Invoice not found", http.StatusBadRequest)
		case errors.Is(err, app.ErrOrderMismatch):
			http.Error(w, "Payment order does not match invoice", http.StatusBadRequest)
		default:
			log.Printf("Error verifying payment for invoice %s: %v", req.InvoiceID, err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	if outcome == app.OutcomeRejected {
		http.Error(w, "Invalid signature", http.StatusBadRequest)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"result": string(outcome)})
}

func (h *Handler) handleRunGenerateInvoices(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.GenerateInvoices(r.Context(), time.Now().UTC())
	if err != nil {
		log.Printf("Error generating invoices: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) handleRunMarkOverdue(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.MarkOverdueInvoices(r.Context(), time.Now().UTC())
	if err != nil {
		log.Printf("Error sweeping overdue invoices: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) handleRunSendReminders(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.SendReminders(r.Context(), time.Now().UTC())
	if err != nil {
		log.Printf("Error dispatching reminders: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// respondWithJSON writes JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
