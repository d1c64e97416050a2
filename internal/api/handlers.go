/**
 * @description
 * This file contains the HTTP handlers for the console's API endpoints.
 * Handlers parse incoming requests, call the application service, and write
 * the response. Outbound operations return the full provider envelope with
 * HTTP 200 whether or not the provider call succeeded; the envelope's own
 * success flag carries the outcome. Local ledger queries and deletes map
 * store sentinels to HTTP statuses.
 *
 * @dependencies
 * - encoding/json, errors, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/domain, internal/store: Service logic, models, and custom errors.
 * - pkg/dlocal: Request input types and credentials.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/remitdesk/kyc-console/internal/app"
	"github.com/remitdesk/kyc-console/internal/domain"
	"github.com/remitdesk/kyc-console/internal/store"
	"github.com/remitdesk/kyc-console/pkg/dlocal"
)

// ConsoleHandlers holds the application service that handlers will use.
type ConsoleHandlers struct {
	service *app.Service
}

// NewConsoleHandlers creates a new instance of ConsoleHandlers.
func NewConsoleHandlers(service *app.Service) *ConsoleHandlers {
	return &ConsoleHandlers{service: service}
}

// credentialsRequest is the per-request credential block every outbound
// operation carries. UseSandbox defaults to true when absent.
type credentialsRequest struct {
	Login          string `json:"login"`
	TransactionKey string `json:"transaction_key"`
	SecretKey      string `json:"secret_key"`
	UseSandbox     *bool  `json:"use_sandbox"`
}

func (c credentialsRequest) credentials() dlocal.Credentials {
	return dlocal.Credentials{
		Login:          c.Login,
		TransactionKey: c.TransactionKey,
		SecretKey:      c.SecretKey,
	}
}

func (c credentialsRequest) sandbox() bool {
	return c.UseSandbox == nil || *c.UseSandbox
}

type createVerificationRequest struct {
	credentialsRequest
	ClientType string                   `json:"client_type"`
	FormData   dlocal.VerificationInput `json:"form_data"`
}

type stateUpdateRequest struct {
	credentialsRequest
	Status       string `json:"status"`
	StatusDetail string `json:"status_detail"`
}

type createPaymentRequest struct {
	credentialsRequest
	PaymentData dlocal.PaymentInput `json:"payment_data"`
}

type createPayoutRequest struct {
	credentialsRequest
	PayoutData dlocal.PayoutInput `json:"payout_data"`
}

// verificationView annotates a ledger verification with the console's display
// fields.
type verificationView struct {
	domain.Verification
	DisplayName   string `json:"display_name"`
	PaymentUserID string `json:"payment_user_id,omitempty"`
}

func verificationViews(list []domain.Verification, withPaymentUserID bool) []verificationView {
	out := make([]verificationView, 0, len(list))
	for _, v := range list {
		view := verificationView{Verification: v, DisplayName: v.DisplayName()}
		if withPaymentUserID {
			view.PaymentUserID = v.PaymentUserID()
		}
		out = append(out, view)
	}
	return out
}

type documentView struct {
	domain.Document
	DisplayName string `json:"display_name"`
}

type paymentView struct {
	domain.Payment
	DisplayName string `json:"display_name"`
}

type payoutView struct {
	domain.Payout
	DisplayName string `json:"display_name"`
}

// CreateVerificationHandler handles POST /api/verifications.
func (h *ConsoleHandlers) CreateVerificationHandler(w http.ResponseWriter, r *http.Request) {
	var req createVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	env, err := h.service.CreateVerification(r.Context(), req.credentials(), req.sandbox(), req.ClientType, req.FormData)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, env)
}

// GetVerificationHandler handles POST /api/verifications/{id}. A POST rather
// than a GET because the caller ships credentials in the body.
func (h *ConsoleHandlers) GetVerificationHandler(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	env, err := h.service.GetVerification(r.Context(), req.credentials(), req.sandbox(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, env)
}

// FetchDocumentsHandler handles POST /api/verifications/{id}/documents.
func (h *ConsoleHandlers) FetchDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	env, err := h.service.FetchDocuments(r.Context(), req.credentials(), req.sandbox(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, env)
}

// UploadDocumentHandler handles POST /api/verifications/{id}/documents/{documentID}.
// The request is a multipart form: credential fields plus a "file" part.
func (h *ConsoleHandlers) UploadDocumentHandler(w http.ResponseWriter, r *http.Request) {
	// 32 MB in memory before spilling to disk, same cap the provider enforces.
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	creds := dlocal.Credentials{
		Login:          r.FormValue("login"),
		TransactionKey: r.FormValue("transaction_key"),
		SecretKey:      r.FormValue("secret_key"),
	}
	sandbox := r.FormValue("use_sandbox") != "false"

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	env, err := h.service.UploadDocument(r.Context(), creds, sandbox,
		chi.URLParam(r, "id"), chi.URLParam(r, "documentID"),
		header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, env)
}

// UpdateVerificationStateHandler handles PATCH /api/verifications/{id}/state.
func (h *ConsoleHandlers) UpdateVerificationStateHandler(w http.ResponseWriter, r *http.Request) {
	var req stateUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	env, err := h.service.UpdateVerificationState(r.Context(), req.credentials(), req.sandbox(),
		chi.URLParam(r, "id"), req.Status, req.StatusDetail)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, env)
}

// CreatePaymentHandler handles POST /api/payments.
func (h *ConsoleHandlers) CreatePaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	env, err := h.service.CreatePayment(r.Context(), req.credentials(), req.sandbox(), req.PaymentData)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, env)
}

// GetPaymentHandler handles POST /api/payments/{id}.
func (h *ConsoleHandlers) GetPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	env, err := h.service.GetPayment(r.Context(), req.credentials(), req.sandbox(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, env)
}

// CreatePayoutHandler handles POST /api/payouts.
func (h *ConsoleHandlers) CreatePayoutHandler(w http.ResponseWriter, r *http.Request) {
	var req createPayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	env, err := h.service.CreatePayout(r.Context(), req.credentials(), req.sandbox(), req.PayoutData)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, env)
}

// ListVerificationsHandler handles GET /api/local/verifications.
func (h *ConsoleHandlers) ListVerificationsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListVerifications(r.Context())
	if err != nil {
		log.Printf("level=error component=api msg=\"listing verifications failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Unable to list verifications")
		return
	}
	h.writeJSON(w, http.StatusOK, verificationViews(list, false))
}

// ListApprovedVerificationsHandler handles GET /api/local/verifications/approved.
// An optional client_type query narrows the list to one role.
func (h *ConsoleHandlers) ListApprovedVerificationsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListApprovedVerifications(r.Context(), r.URL.Query().Get("client_type"))
	if err != nil {
		log.Printf("level=error component=api msg=\"listing approved verifications failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Unable to list verifications")
		return
	}
	h.writeJSON(w, http.StatusOK, verificationViews(list, true))
}

// ListApprovedRemittersHandler handles GET /api/local/remitters/approved.
func (h *ConsoleHandlers) ListApprovedRemittersHandler(w http.ResponseWriter, r *http.Request) {
	h.listApprovedClients(w, r, dlocal.ClientTypeRemitter)
}

// ListApprovedBeneficiariesHandler handles GET /api/local/beneficiaries/approved.
func (h *ConsoleHandlers) ListApprovedBeneficiariesHandler(w http.ResponseWriter, r *http.Request) {
	h.listApprovedClients(w, r, dlocal.ClientTypeBeneficiary)
}

func (h *ConsoleHandlers) listApprovedClients(w http.ResponseWriter, r *http.Request, clientType string) {
	list, err := h.service.ListApprovedClients(r.Context(), clientType)
	if err != nil {
		log.Printf("level=error component=api msg=\"listing approved clients failed\" client_type=%s err=%v", clientType, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to list clients")
		return
	}
	h.writeJSON(w, http.StatusOK, verificationViews(list, true))
}

// ListLocalDocumentsHandler handles GET /api/local/verifications/{id}/documents.
func (h *ConsoleHandlers) ListLocalDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListLocalDocuments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		log.Printf("level=error component=api msg=\"listing documents failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Unable to list documents")
		return
	}
	out := make([]documentView, 0, len(list))
	for _, d := range list {
		out = append(out, documentView{Document: d, DisplayName: d.DisplayName()})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// ListPaymentsHandler handles GET /api/local/payments.
func (h *ConsoleHandlers) ListPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListPayments(r.Context())
	if err != nil {
		log.Printf("level=error component=api msg=\"listing payments failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Unable to list payments")
		return
	}
	out := make([]paymentView, 0, len(list))
	for _, p := range list {
		out = append(out, paymentView{Payment: p, DisplayName: p.DisplayName()})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// ListPayoutsHandler handles GET /api/local/payouts.
func (h *ConsoleHandlers) ListPayoutsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListPayouts(r.Context())
	if err != nil {
		log.Printf("level=error component=api msg=\"listing payouts failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Unable to list payouts")
		return
	}
	out := make([]payoutView, 0, len(list))
	for _, p := range list {
		out = append(out, payoutView{Payout: p, DisplayName: p.DisplayName()})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// DeleteVerificationHandler handles DELETE /api/local/verifications/{id}.
// Documents attached to the verification are removed with it.
func (h *ConsoleHandlers) DeleteVerificationHandler(w http.ResponseWriter, r *http.Request) {
	h.deleteEntity(w, r, h.service.DeleteVerification(r.Context(), chi.URLParam(r, "id")))
}

// DeletePaymentHandler handles DELETE /api/local/payments/{id}.
func (h *ConsoleHandlers) DeletePaymentHandler(w http.ResponseWriter, r *http.Request) {
	h.deleteEntity(w, r, h.service.DeletePayment(r.Context(), chi.URLParam(r, "id")))
}

// DeletePayoutHandler handles DELETE /api/local/payouts/{id}. The id is the
// caller-assigned external id the ledger is keyed by.
func (h *ConsoleHandlers) DeletePayoutHandler(w http.ResponseWriter, r *http.Request) {
	h.deleteEntity(w, r, h.service.DeletePayout(r.Context(), chi.URLParam(r, "id")))
}

func (h *ConsoleHandlers) deleteEntity(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
	case errors.Is(err, store.ErrVerificationNotFound),
		errors.Is(err, store.ErrPaymentNotFound),
		errors.Is(err, store.ErrPayoutNotFound):
		h.writeError(w, http.StatusNotFound, "Record not found")
	default:
		log.Printf("level=error component=api msg=\"delete failed\" path=%s err=%v", r.URL.Path, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to delete record")
	}
}

// writeServiceError maps the service's validation sentinels onto HTTP
// statuses. These fire before any provider call.
func (h *ConsoleHandlers) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrMissingCredentials),
		errors.Is(err, app.ErrMissingStatus),
		errors.Is(err, app.ErrMissingStatusDetail),
		errors.Is(err, app.ErrMissingFile),
		errors.Is(err, app.ErrSandboxOnly):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("level=error component=api msg=\"operation failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *ConsoleHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *ConsoleHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
