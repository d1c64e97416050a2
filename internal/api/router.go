/**
 * @description
 * This file sets up the HTTP router for the console service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies
 * standard middleware for logging, panic recovery, and timeouts.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ConsoleRoutes creates and returns a new router for the console service.
func ConsoleRoutes(h *ConsoleHandlers) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	r.Route("/api", func(r chi.Router) {
		// Outbound provider operations. All POST/PATCH because the caller
		// ships credentials in the body.
		r.Post("/verifications", h.CreateVerificationHandler)
		r.Post("/verifications/{id}", h.GetVerificationHandler)
		r.Post("/verifications/{id}/documents", h.FetchDocumentsHandler)
		r.Post("/verifications/{id}/documents/{documentID}", h.UploadDocumentHandler)
		r.Patch("/verifications/{id}/state", h.UpdateVerificationStateHandler)

		r.Post("/payments", h.CreatePaymentHandler)
		r.Post("/payments/{id}", h.GetPaymentHandler)
		r.Post("/payouts", h.CreatePayoutHandler)

		// Local ledger queries and deletes.
		r.Route("/local", func(r chi.Router) {
			r.Get("/verifications", h.ListVerificationsHandler)
			r.Get("/verifications/approved", h.ListApprovedVerificationsHandler)
			r.Get("/verifications/{id}/documents", h.ListLocalDocumentsHandler)
			r.Get("/remitters/approved", h.ListApprovedRemittersHandler)
			r.Get("/beneficiaries/approved", h.ListApprovedBeneficiariesHandler)
			r.Get("/payments", h.ListPaymentsHandler)
			r.Get("/payouts", h.ListPayoutsHandler)

			r.Delete("/verifications/{id}", h.DeleteVerificationHandler)
			r.Delete("/payments/{id}", h.DeletePaymentHandler)
			r.Delete("/payouts/{id}", h.DeletePayoutHandler)
		})
	})

	return r
}
