/**
 * @description
 * This file implements the reconciliation of normalized dLocal envelopes into
 * the local ledger: create-or-update merges for verifications, documents,
 * payments, and payouts. Reconciliation only runs on successful envelopes,
 * never overwrites known values with empty ones, and reports persistence
 * failures through a save_error annotation on the envelope instead of
 * failing the otherwise-successful call.
 *
 * @dependencies
 * - context, encoding/json, log, strconv, time: Standard Go libraries.
 * - internal/domain, internal/store: Ledger models and access.
 */

package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/remitdesk/kyc-console/internal/domain"
	"github.com/remitdesk/kyc-console/internal/store"
	"github.com/remitdesk/kyc-console/pkg/dlocal"
)

// payoutIDFields is the ordered list of response keys the provider has been
// observed to use for the payout identifier. First hit wins.
var payoutIDFields = []string{"id", "payout_id", "payment_id", "cashout_id", "transaction_id"}

// payoutIDFromResponse resolves the provider-assigned payout id from a
// response body, trying each known field name in order.
func payoutIDFromResponse(response map[string]any) string {
	for _, field := range payoutIDFields {
		if value := stringValue(response[field]); value != "" {
			return value
		}
	}
	return ""
}

func (s *Service) reconcileVerificationCreate(ctx context.Context, env *dlocal.Envelope, clientType string, in dlocal.VerificationInput, sandbox bool) {
	if !env.Success {
		return
	}
	verificationID := env.ResponseString("id")
	if verificationID == "" {
		return
	}

	v, err := s.repo.UpsertVerification(ctx, store.UpsertVerificationParams{
		VerificationID:    verificationID,
		ClientType:        clientType,
		FirstName:         in.FirstName,
		LastName:          in.LastName,
		DocumentNumber:    in.DocumentNumber,
		ExternalReference: in.ExternalReference,
		Status:            s.guardVerificationStatus(ctx, verificationID, env.ResponseString("status")),
		UserID:            env.ClientID(),
		Environment:       environmentName(sandbox),
		RawResponse:       rawResponse(env),
	})
	if err != nil {
		s.recordSaveError(env, "verification", verificationID, err)
		return
	}
	env.SavedLocally = true
	env.LocalID = v.ID.String()
	s.publishReconcileEvent(ctx, "verification", v.VerificationID, v.Status, v.Environment)
}

func (s *Service) reconcileVerificationRefresh(ctx context.Context, env *dlocal.Envelope, verificationID string) {
	if !env.Success {
		return
	}
	v, err := s.repo.RefreshVerification(ctx, store.RefreshVerificationParams{
		VerificationID: verificationID,
		Status:         s.guardVerificationStatus(ctx, verificationID, env.ResponseString("status")),
		UserID:         env.ClientID(),
		RawResponse:    rawResponse(env),
	})
	if errors.Is(err, store.ErrVerificationNotFound) {
		// Nothing stored locally for this id; the envelope still goes back.
		return
	}
	if err != nil {
		s.recordSaveError(env, "verification", verificationID, err)
		return
	}
	env.SavedLocally = true
	env.LocalID = v.ID.String()
	s.publishReconcileEvent(ctx, "verification", v.VerificationID, v.Status, v.Environment)
}

func (s *Service) reconcileStateUpdate(ctx context.Context, env *dlocal.Envelope, verificationID, requestedStatus string) {
	if !env.Success {
		return
	}
	status := env.ResponseString("status")
	if status == "" {
		status = requestedStatus
	}
	v, err := s.repo.RefreshVerification(ctx, store.RefreshVerificationParams{
		VerificationID: verificationID,
		Status:         s.guardVerificationStatus(ctx, verificationID, status),
		RawResponse:    rawResponse(env),
	})
	if errors.Is(err, store.ErrVerificationNotFound) {
		return
	}
	if err != nil {
		s.recordSaveError(env, "verification", verificationID, err)
		return
	}
	env.SavedLocally = true
	env.LocalID = v.ID.String()
	s.publishReconcileEvent(ctx, "verification", v.VerificationID, v.Status, v.Environment)
}

func (s *Service) reconcileDocuments(ctx context.Context, env *dlocal.Envelope, verificationID string, sandbox bool) {
	if !env.Success {
		return
	}
	items, _ := env.Response["items"].([]any)
	saved := 0
	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		documentID := stringValue(item["id"])
		if documentID == "" {
			continue
		}
		_, err := s.repo.UpsertDocument(ctx, store.UpsertDocumentParams{
			VerificationID: verificationID,
			DocumentID:     documentID,
			DocumentType:   stringValue(item["type"]),
			Status:         stringValue(item["status"]),
			Environment:    environmentName(sandbox),
		})
		if err != nil {
			s.recordSaveError(env, "document", documentID, err)
			continue
		}
		saved++
	}
	if saved > 0 {
		env.SavedLocally = true
	}
}

func (s *Service) reconcileDocumentUpload(ctx context.Context, env *dlocal.Envelope, verificationID, documentID string) {
	if !env.Success {
		return
	}
	status := env.ResponseString("status")
	if status == "" {
		status = "UPLOADED"
	}
	d, err := s.repo.RefreshDocumentStatus(ctx, verificationID, documentID, status)
	if errors.Is(err, store.ErrDocumentNotFound) {
		return
	}
	if err != nil {
		s.recordSaveError(env, "document", documentID, err)
		return
	}
	env.SavedLocally = true
	env.LocalID = d.ID.String()
}

func (s *Service) reconcilePaymentCreate(ctx context.Context, env *dlocal.Envelope, body dlocal.PaymentBody, sandbox bool) {
	if !env.Success {
		return
	}
	paymentID := env.ResponseString("id")
	if paymentID == "" {
		return
	}

	p, err := s.repo.UpsertPayment(ctx, store.UpsertPaymentParams{
		PaymentID:         paymentID,
		OrderID:           fallbackString(env.ResponseString("order_id"), body.OrderID),
		Amount:            fallbackFloat(env.Response["amount"], body.Amount),
		Currency:          fallbackString(env.ResponseString("currency"), body.Currency),
		Country:           fallbackString(env.ResponseString("country"), body.Country),
		PaymentMethodID:   fallbackString(env.ResponseString("payment_method_id"), body.PaymentMethodID),
		Status:            s.guardPaymentStatus(ctx, paymentID, env.ResponseString("status")),
		StatusDetail:      env.ResponseString("status_detail"),
		StatusCode:        stringValue(env.Response["status_code"]),
		RemitterUserID:    body.RemitterUserID,
		BeneficiaryUserID: body.BeneficiaryUserID,
		Environment:       environmentName(sandbox),
		RawResponse:       rawResponse(env),
	})
	if err != nil {
		s.recordSaveError(env, "payment", paymentID, err)
		return
	}
	env.SavedLocally = true
	env.LocalID = p.ID.String()
	s.publishReconcileEvent(ctx, "payment", p.PaymentID, p.Status, p.Environment)
}

func (s *Service) reconcilePaymentRefresh(ctx context.Context, env *dlocal.Envelope, paymentID string) {
	if !env.Success {
		return
	}
	p, err := s.repo.RefreshPayment(ctx, store.RefreshPaymentParams{
		PaymentID:    paymentID,
		Status:       s.guardPaymentStatus(ctx, paymentID, env.ResponseString("status")),
		StatusDetail: env.ResponseString("status_detail"),
		StatusCode:   stringValue(env.Response["status_code"]),
		RawResponse:  rawResponse(env),
	})
	if errors.Is(err, store.ErrPaymentNotFound) {
		// Fetching a payment we never created locally is not an error.
		return
	}
	if err != nil {
		s.recordSaveError(env, "payment", paymentID, err)
		return
	}
	env.SavedLocally = true
	env.LocalID = p.ID.String()
	s.publishReconcileEvent(ctx, "payment", p.PaymentID, p.Status, p.Environment)
}

func (s *Service) reconcilePayout(ctx context.Context, env *dlocal.Envelope, in dlocal.PayoutInput, sandbox bool) {
	if !env.Success {
		return
	}
	if in.ExternalID == "" {
		log.Printf("level=warn component=reconciler entity=payout msg=\"no external_id provided; skipping ledger save\"")
		return
	}

	amount, err := strconv.ParseFloat(in.Amount, 64)
	if err != nil {
		amount = 0
	}

	p, err := s.repo.UpsertPayout(ctx, store.UpsertPayoutParams{
		ExternalID:        in.ExternalID,
		PayoutID:          payoutIDFromResponse(env.Response),
		Amount:            amount,
		Currency:          fallbackString(in.Currency, "ARS"),
		Country:           fallbackString(in.Country, "AR"),
		BankAccount:       in.BankAccount,
		Status:            s.guardPayoutStatus(ctx, in.ExternalID, env.ResponseString("status")),
		StatusDetail:      env.ResponseString("status_detail"),
		RemitterUserID:    in.RemitterUserID,
		BeneficiaryUserID: in.BeneficiaryUserID,
		Purpose:           fallbackString(in.Purpose, "EPREMT"),
		Environment:       environmentName(sandbox),
		RawResponse:       rawResponse(env),
	})
	if err != nil {
		s.recordSaveError(env, "payout", in.ExternalID, err)
		return
	}
	env.SavedLocally = true
	env.LocalID = p.ID.String()
	s.publishReconcileEvent(ctx, "payout", p.ExternalID, p.Status, p.Environment)
}

// recordSaveError attaches a ledger failure to the envelope without touching
// its HTTP-level outcome. The outbound call already happened; the caller gets
// the provider's answer plus the diagnostic.
func (s *Service) recordSaveError(env *dlocal.Envelope, entity, key string, err error) {
	log.Printf("level=error component=reconciler entity=%s key=%s msg=\"ledger save failed\" err=%v", entity, key, err)
	if env.SaveError == "" {
		env.SaveError = err.Error()
	}
}

func (s *Service) publishReconcileEvent(ctx context.Context, entity, key, status, environment string) {
	if s.eventProducer == nil || s.eventExchange == "" {
		return
	}
	event := domain.ReconcileEvent{
		Entity:      entity,
		Key:         key,
		Status:      status,
		Environment: environment,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.eventProducer.Publish(ctx, s.eventExchange, "reconcile."+entity+".updated", event); err != nil {
		log.Printf("level=warn component=reconciler entity=%s key=%s msg=\"event publish failed\" err=%v", entity, key, err)
	}
}

// terminalStatuses are the provider states treated as final when status
// regressions are disabled.
func isTerminalStatus(status string) bool {
	switch status {
	case "APPROVED", "REJECTED", "DECLINED", "CANCELLED", "COMPLETED":
		return true
	}
	return false
}

// guardVerificationStatus implements the status-regression policy. The
// default trusts the provider's latest word; with regressions disabled, a
// terminal status is only replaced by itself.
func (s *Service) guardVerificationStatus(ctx context.Context, verificationID, next string) string {
	if s.acceptStatusRegressions || next == "" {
		return next
	}
	existing, err := s.repo.FindVerificationByID(ctx, verificationID)
	if err != nil {
		return next
	}
	if isTerminalStatus(existing.Status) && next != existing.Status {
		log.Printf("level=warn component=reconciler entity=verification key=%s msg=\"status regression dropped\" stored=%s reported=%s", verificationID, existing.Status, next)
		return ""
	}
	return next
}

func (s *Service) guardPaymentStatus(ctx context.Context, paymentID, next string) string {
	if s.acceptStatusRegressions || next == "" {
		return next
	}
	existing, err := s.repo.FindPaymentByID(ctx, paymentID)
	if err != nil {
		return next
	}
	if isTerminalStatus(existing.Status) && next != existing.Status {
		log.Printf("level=warn component=reconciler entity=payment key=%s msg=\"status regression dropped\" stored=%s reported=%s", paymentID, existing.Status, next)
		return ""
	}
	return next
}

func (s *Service) guardPayoutStatus(ctx context.Context, externalID, next string) string {
	if s.acceptStatusRegressions || next == "" {
		return next
	}
	existing, err := s.repo.FindPayoutByExternalID(ctx, externalID)
	if err != nil {
		return next
	}
	if isTerminalStatus(existing.Status) && next != existing.Status {
		log.Printf("level=warn component=reconciler entity=payout key=%s msg=\"status regression dropped\" stored=%s reported=%s", externalID, existing.Status, next)
		return ""
	}
	return next
}

func environmentName(sandbox bool) string {
	if sandbox {
		return "sandbox"
	}
	return "production"
}

// rawResponse serializes the parsed provider body back to the JSON string
// stored in the ledger's raw_response column.
func rawResponse(env *dlocal.Envelope) string {
	if env.Response == nil {
		return "{}"
	}
	raw, err := json.Marshal(env.Response)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func fallbackString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func fallbackFloat(value any, fallback float64) float64 {
	if f, ok := value.(float64); ok {
		return f
	}
	return fallback
}

// stringValue renders a response field as a string, tolerating the numeric
// ids and status codes the provider sometimes returns.
func stringValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}
