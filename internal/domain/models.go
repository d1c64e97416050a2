/**
 * @description
 * This file defines the ledger entities reconciled from dLocal responses:
 * verifications, verification documents, payments, and payouts. Each record is
 * keyed by a provider- or caller-assigned identifier unique within its table,
 * carries the environment it was created against, and keeps the latest raw
 * provider response where the API returns one.
 *
 * @notes
 * - Statuses are free-form strings reported by the provider; the ledger
 *   records the latest reported value and does not validate transitions.
 * - The local `ID` is a UUID per the convention used across our services;
 *   callers address records by the provider/caller key, not the local id.
 */
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Verification is a reconciled KYC verification. UserID is the resolved
// client identity (attributes.client.id) and is set once known, never cleared.
type Verification struct {
	ID                uuid.UUID `json:"id"`
	VerificationID    string    `json:"verification_id"`
	UserID            *string   `json:"user_id"`
	ClientType        string    `json:"client_type"` // REMITTER or BENEFICIARY
	FirstName         string    `json:"first_name"`
	LastName          string    `json:"last_name"`
	DocumentNumber    string    `json:"document_number"`
	ExternalReference string    `json:"external_reference"`
	Status            string    `json:"status"`
	Environment       string    `json:"environment"` // sandbox or production
	RawResponse       string    `json:"-"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// DisplayName is the human-readable summary used by list endpoints.
func (v Verification) DisplayName() string {
	status := v.Status
	if status == "" {
		status = "N/A"
	}
	return fmt.Sprintf("%s %s - %s", v.FirstName, v.LastName, status)
}

// PaymentUserID is the identity to use when creating payments for this
/// verification: the resolved user id when known, otherwise the verification
// id itself (for remittance verifications the two are interchangeable).
func (v Verification) PaymentUserID() string {
	if v.UserID != nil && *v.UserID != "" {
		return *v.UserID
	}
	return v.VerificationID
}

// Document is a reconciled verification document, keyed by the composite
// (verification_id, document_id).
type Document struct {
	ID             uuid.UUID `json:"id"`
	VerificationID string    `json:"verification_id"`
	DocumentID     string    `json:"document_id"`
	DocumentType   string    `json:"document_type"`
	Status         string    `json:"status"`
	Environment    string    `json:"environment"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DisplayName truncates the provider document id the way the console shows it.
func (d Document) DisplayName() string {
	id := d.DocumentID
	if len(id) > 30 {
		id = id[:30] + "..."
	}
	return fmt.Sprintf("%s - %s", d.DocumentType, id)
}

// Payment is a reconciled remittance payment, keyed by the provider-issued
// payment id.
type Payment struct {
	ID                uuid.UUID `json:"id"`
	PaymentID         string    `json:"payment_id"`
	OrderID           string    `json:"order_id"`
	Amount            float64   `json:"amount"`
	Currency          string    `json:"currency"`
	Country           string    `json:"country"`
	PaymentMethodID   string    `json:"payment_method_id"`
	Status            string    `json:"status"`
	StatusDetail      string    `json:"status_detail"`
	StatusCode        string    `json:"status_code"`
	RemitterUserID    string    `json:"remitter_user_id"`
	BeneficiaryUserID string    `json:"beneficiary_user_id"`
	Environment       string    `json:"environment"`
	RawResponse       string    `json:"-"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (p Payment) DisplayName() string {
	status := p.Status
	if status == "" {
		status = "N/A"
	}
	return fmt.Sprintf("%s - %s - %s %v", p.PaymentID, status, p.Currency, p.Amount)
}

// Payout is a reconciled payout, keyed by the caller-assigned external id.
// PayoutID is the provider-assigned identifier and is filled in lazily once
// the provider reports one under any of its several field names.
type Payout struct {
	ID                uuid.UUID `json:"id"`
	ExternalID        string    `json:"external_id"`
	PayoutID          *string   `json:"payout_id"`
	Amount            float64   `json:"amount"`
	Currency          string    `json:"currency"`
	Country           string    `json:"country"`
	BankAccount       string    `json:"bank_account"`
	Status            string    `json:"status"`
	StatusDetail      string    `json:"status_detail"`
	RemitterUserID    string    `json:"remitter_user_id"`
	BeneficiaryUserID string    `json:"beneficiary_user_id"`
	Purpose           string    `json:"purpose"`
	Environment       string    `json:"environment"`
	RawResponse       string    `json:"-"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (p Payout) DisplayName() string {
	status := p.Status
	if status == "" {
		status = "N/A"
	}
	return fmt.Sprintf("%s - %s - %s %v", p.ExternalID, status, p.Currency, p.Amount)
}

// ReconcileEvent is published after a successful ledger merge so downstream
// tooling can observe verification/payment/payout state changes.
type ReconcileEvent struct {
	Entity      string    `json:"entity"` // verification, document, payment, payout
	Key         string    `json:"key"`
	Status      string    `json:"status"`
	Environment string    `json:"environment"`
	Timestamp   time.Time `json:"timestamp"`
}
