/**
 * @description
 * This file defines the `Repository` interface: the contract for the local
 * ledger of reconciled verifications, documents, payments, and payouts. The
 * reconciler is the sole writer; the API layer reads through the list/filter
 * methods and deletes by key. Defining an interface keeps the reconciler
 * testable against the in-memory implementation.
 *
 * @dependencies
 * - context: Standard Go library.
 * - internal/domain: The ledger entity models.
 */

package store

import (
	"context"
	"errors"

	"github.com/remitdesk/kyc-console/internal/domain"
)

var (
	ErrVerificationNotFound = errors.New("verification not found")
	ErrDocumentNotFound     = errors.New("document not found")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPayoutNotFound       = errors.New("payout not found")
)

// UpsertVerificationParams carries the create-or-update fields for a
// verification. On update only Status, UserID, and RawResponse are applied;
// the descriptive fields and Environment stick from creation. An empty UserID
// never clears a stored one.
type UpsertVerificationParams struct {
	VerificationID    string
	ClientType        string
	FirstName         string
	LastName          string
	DocumentNumber    string
	ExternalReference string
	Status            string
	UserID            string
	Environment       string
	RawResponse       string
}

// RefreshVerificationParams updates an existing verification only. Empty
// Status/UserID keep the stored values; RawResponse always replaces.
type RefreshVerificationParams struct {
	VerificationID string
	Status         string
	UserID         string
	RawResponse    string
}

// UpsertDocumentParams carries the create-or-update fields for a document
// keyed by (verification_id, document_id). Empty Status/DocumentType keep
// stored values on update.
type UpsertDocumentParams struct {
	VerificationID string
	DocumentID     string
	DocumentType   string
	Status         string
	Environment    string
}

// UpsertPaymentParams carries the create-or-update fields for a payment. On
// update only the status triplet and RawResponse are applied.
type UpsertPaymentParams struct {
	PaymentID         string
	OrderID           string
	Amount            float64
	Currency          string
	Country           string
	PaymentMethodID   string
	Status            string
	StatusDetail      string
	StatusCode        string
	RemitterUserID    string
	BeneficiaryUserID string
	Environment       string
	RawResponse       string
}

// RefreshPaymentParams updates an existing payment only. Empty fields keep
// stored values; RawResponse always replaces.
type RefreshPaymentParams struct {
	PaymentID    string
	Status       string
	StatusDetail string
	StatusCode   string
	RawResponse  string
}

// UpsertPayoutParams carries the create-or-update fields for a payout keyed
// by the caller-assigned ExternalID. An empty PayoutID never clears a stored
// provider id; empty Status/StatusDetail keep stored values on update.
type UpsertPayoutParams struct {
	ExternalID        string
	PayoutID          string
	Amount            float64
	Currency          string
	Country           string
	BankAccount       string
	Status            string
	StatusDetail      string
	RemitterUserID    string
	BeneficiaryUserID string
	Purpose           string
	Environment       string
	RawResponse       string
}

/// Repository defines the ledger operations. Upserts are atomic per key:
// replaying the same response must not create a second record. Refresh
// methods return the entity's not-found sentinel when no record exists, which
// callers treat as a no-op skip. List methods order newest first.
type Repository interface {
	// Verifications
	UpsertVerification(ctx context.Context, params UpsertVerificationParams) (*domain.Verification, error)
	RefreshVerification(ctx context.Context, params RefreshVerificationParams) (*domain.Verification, error)
	FindVerificationByID(ctx context.Context, verificationID string) (*domain.Verification, error)
	ListVerifications(ctx context.Context) ([]domain.Verification, error)
	// ListApprovedVerifications filters status=APPROVED, optionally by client
	// type; requireUserID further restricts to records with a resolved
	// identity.
	ListApprovedVerifications(ctx context.Context, clientType string, requireUserID bool) ([]domain.Verification, error)
	// DeleteVerification removes the verification and cascades to its
	// documents. ErrVerificationNotFound when the key does not exist.
	DeleteVerification(ctx context.Context, verificationID string) error

	// Documents
	UpsertDocument(ctx context.Context, params UpsertDocumentParams) (*domain.Document, error)
	RefreshDocumentStatus(ctx context.Context, verificationID, documentID, status string) (*domain.Document, error)
	ListDocumentsByVerification(ctx context.Context, verificationID string) ([]domain.Document, error)

	// Payments
	UpsertPayment(ctx context.Context, params UpsertPaymentParams) (*domain.Payment, error)
	RefreshPayment(ctx context.Context, params RefreshPaymentParams) (*domain.Payment, error)
	FindPaymentByID(ctx context.Context, paymentID string) (*domain.Payment, error)
	ListPayments(ctx context.Context) ([]domain.Payment, error)
	DeletePayment(ctx context.Context, paymentID string) error

	// Payouts
	UpsertPayout(ctx context.Context, params UpsertPayoutParams) (*domain.Payout, error)
	FindPayoutByExternalID(ctx context.Context, externalID string) (*domain.Payout, error)
	ListPayouts(ctx context.Context) ([]domain.Payout, error)
	DeletePayout(ctx context.Context, externalID string) error
}
