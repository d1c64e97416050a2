/**
 * @description
 * This file contains the core business logic for the console service. The
 * `Service` struct orchestrates every dLocal operation as the same sequence:
 * validate input, compose the canonical body, sign and send through the
 * dLocal client, then merge the normalized envelope into the local ledger.
 * Validation failures return before any network call; everything after the
 * call is reported through the envelope, never as a raised error.
 *
 * @dependencies
 * - context, errors, io: Standard Go libraries.
 * - internal/domain, internal/store: Domain models and ledger access.
 * - pkg/dlocal, pkg/rabbitmq: Provider client and event publishing.
 */

package app

import (
	"context"
	"errors"
	"io"

	"github.com/remitdesk/kyc-console/internal/domain"
	"github.com/remitdesk/kyc-console/internal/store"
	"github.com/remitdesk/kyc-console/pkg/dlocal"
	"github.com/remitdesk/kyc-console/pkg/rabbitmq"
)

var (
	ErrMissingCredentials   = errors.New("missing required credentials")
	ErrMissingStatus        = errors.New("status is required")
	ErrMissingStatusDetail  = errors.New("status detail is required")
	ErrSandboxOnly          = errors.New("this operation only works in the sandbox environment")
	ErrMissingFile          = errors.New("no file provided")
)

// ProviderClient is the slice of the dLocal client the service depends on,
// kept as an interface so tests can substitute a canned transport.
type ProviderClient interface {
	CreateVerification(ctx context.Context, creds dlocal.Credentials, sandbox bool, body any) *dlocal.Envelope
	GetVerification(ctx context.Context, creds dlocal.Credentials, sandbox bool, verificationID string) *dlocal.Envelope
	ListDocuments(ctx context.Context, creds dlocal.Credentials, sandbox bool, verificationID string) *dlocal.Envelope
	UploadDocument(ctx context.Context, creds dlocal.Credentials, sandbox bool, verificationID, documentID, filename, contentType string, file io.Reader) *dlocal.Envelope
	UpdateVerificationState(ctx context.Context, creds dlocal.Credentials, sandbox bool, verificationID string, body dlocal.StateUpdateBody) *dlocal.Envelope
	CreatePayment(ctx context.Context, creds dlocal.Credentials, sandbox bool, path string, body dlocal.PaymentBody) *dlocal.Envelope
	GetPayment(ctx context.Context, creds dlocal.Credentials, sandbox bool, paymentID string) *dlocal.Envelope
	CreatePayout(ctx context.Context, creds dlocal.Credentials, sandbox bool, body dlocal.PayoutBody) *dlocal.Envelope
}

// Service provides the console operations against the dLocal APIs and the
// local ledger.
type Service struct {
	repo          store.Repository
	client        ProviderClient
	eventProducer rabbitmq.Publisher
	eventExchange string

	// acceptStatusRegressions keeps the reference behavior of recording
	// whatever status the provider last reported, even when it walks a
	// terminal state back. Disabling it freezes terminal statuses.
	acceptStatusRegressions bool
}

// NewService creates a new console service instance.
func NewService(repo store.Repository, client ProviderClient, producer rabbitmq.Publisher, eventExchange string, acceptStatusRegressions bool) *Service {
	return &Service{
		repo:                    repo,
		client:                  client,
		eventProducer:           producer,
		eventExchange:           eventExchange,
		acceptStatusRegressions: acceptStatusRegressions,
	}
}

// CreateVerification submits a KYC verification for the given client role and
// reconciles a successful response into the ledger.
func (s *Service) CreateVerification(ctx context.Context, creds dlocal.Credentials, sandbox bool, clientType string, in dlocal.VerificationInput) (*dlocal.Envelope, error) {
	if !creds.Complete() {
		return nil, ErrMissingCredentials
	}
	if clientType == "" {
		clientType = dlocal.ClientTypeRemitter
	}

	var body any
	if clientType == dlocal.ClientTypeBeneficiary {
		body = dlocal.ComposeBeneficiaryVerification(in)
	} else {
		clientType = dlocal.ClientTypeRemitter
		body = dlocal.ComposeRemitterVerification(in)
	}

	env := s.client.CreateVerification(ctx, creds, sandbox, body)
	s.reconcileVerificationCreate(ctx, env, clientType, in, sandbox)
	return env, nil
}

// GetVerification fetches a verification from the provider and refreshes the
// local record when one exists. A missing local record is a no-op skip.
func (s *Service) GetVerification(ctx context.Context, creds dlocal.Credentials, sandbox bool, verificationID string) (*dlocal.Envelope, error) {
	if !creds.Complete() {
		return nil, ErrMissingCredentials
	}
	env := s.client.GetVerification(ctx, creds, sandbox, verificationID)
	s.reconcileVerificationRefresh(ctx, env, verificationID)
	return env, nil
}

// FetchDocuments lists a verification's documents from the provider and
// reconciles each returned item into the ledger.
func (s *Service) FetchDocuments(ctx context.Context, creds dlocal.Credentials, sandbox bool, verificationID string) (*dlocal.Envelope, error) {
	if !creds.Complete() {
		return nil, ErrMissingCredentials
	}
	env := s.client.ListDocuments(ctx, creds, sandbox, verificationID)
	s.reconcileDocuments(ctx, env, verificationID, sandbox)
	return env, nil
}

// UploadDocument uploads a file into a document slot and refreshes the local
// document status on success.
func (s *Service) UploadDocument(ctx context.Context, creds dlocal.Credentials, sandbox bool, verificationID, documentID, filename, contentType string, file io.Reader) (*dlocal.Envelope, error) {
	if !creds.Complete() {
		return nil, ErrMissingCredentials
	}
	if file == nil || filename == "" {
		return nil, ErrMissingFile
	}
	env := s.client.UploadDocument(ctx, creds, sandbox, verificationID, documentID, filename, contentType, file)
	s.reconcileDocumentUpload(ctx, env, verificationID, documentID)
	return env, nil
}

// UpdateVerificationState forces a sandbox-only state transition and
// refreshes the local record on success. Production targets are rejected
// before any network call.
func (s *Service) UpdateVerificationState(ctx context.Context, creds dlocal.Credentials, sandbox bool, verificationID, status, statusDetail string) (*dlocal.Envelope, error) {
	if !creds.Complete() {
		return nil, ErrMissingCredentials
	}
	if status == "" {
		return nil, ErrMissingStatus
	}
	if statusDetail == "" {
		return nil, ErrMissingStatusDetail
	}
	if !sandbox {
		return nil, ErrSandboxOnly
	}
	env := s.client.UpdateVerificationState(ctx, creds, sandbox, verificationID, dlocal.StateUpdateBody{
		Status:       status,
		StatusDetail: statusDetail,
	})
	s.reconcileStateUpdate(ctx, env, verificationID, status)
	return env, nil
}

// CreatePayment composes and submits a remittance payment, routing raw-card
// submissions to the secure endpoint, and reconciles a successful response.
func (s *Service) CreatePayment(ctx context.Context, creds dlocal.Credentials, sandbox bool, in dlocal.PaymentInput) (*dlocal.Envelope, error) {
	if !creds.Complete() {
		return nil, ErrMissingCredentials
	}
	body, path := dlocal.ComposePayment(in)
	env := s.client.CreatePayment(ctx, creds, sandbox, path, body)
	s.reconcilePaymentCreate(ctx, env, body, sandbox)
	return env, nil
}

// GetPayment fetches payment details and refreshes the local record when one
// exists; a missing local record is not an error.
func (s *Service) GetPayment(ctx context.Context, creds dlocal.Credentials, sandbox bool, paymentID string) (*dlocal.Envelope, error) {
	if !creds.Complete() {
		return nil, ErrMissingCredentials
	}
	env := s.client.GetPayment(ctx, creds, sandbox, paymentID)
	s.reconcilePaymentRefresh(ctx, env, paymentID)
	return env, nil
}

// CreatePayout submits a payout through the Payouts API and reconciles it
// under the caller-assigned external id. Ledger failures surface as a
// save_error annotation on the envelope, not as a failed call.
func (s *Service) CreatePayout(ctx context.Context, creds dlocal.Credentials, sandbox bool, in dlocal.PayoutInput) (*dlocal.Envelope, error) {
	if !creds.Complete() {
		return nil, ErrMissingCredentials
	}
	body := dlocal.ComposePayout(creds, in)
	env := s.client.CreatePayout(ctx, creds, sandbox, body)
	s.reconcilePayout(ctx, env, in, sandbox)
	return env, nil
}

// ListVerifications returns the local verification ledger, newest first.
func (s *Service) ListVerifications(ctx context.Context) ([]domain.Verification, error) {
	return s.repo.ListVerifications(ctx)
}

// ListApprovedVerifications returns approved verifications with a resolved
// identity, optionally filtered by client role.
func (s *Service) ListApprovedVerifications(ctx context.Context, clientType string) ([]domain.Verification, error) {
	return s.repo.ListApprovedVerifications(ctx, clientType, true)
}

// ListApprovedClients returns approved verifications for one client role
// regardless of whether the provider has resolved a user id yet; callers use
// PaymentUserID to pick the identity for payments.
func (s *Service) ListApprovedClients(ctx context.Context, clientType string) ([]domain.Verification, error) {
	return s.repo.ListApprovedVerifications(ctx, clientType, false)
}

// ListLocalDocuments returns the documents stored for a verification.
func (s *Service) ListLocalDocuments(ctx context.Context, verificationID string) ([]domain.Document, error) {
	return s.repo.ListDocumentsByVerification(ctx, verificationID)
}

// ListPayments returns the local payment ledger, newest first.
func (s *Service) ListPayments(ctx context.Context) ([]domain.Payment, error) {
	return s.repo.ListPayments(ctx)
}

// ListPayouts returns the local payout ledger, newest first.
func (s *Service) ListPayouts(ctx context.Context) ([]domain.Payout, error) {
	return s.repo.ListPayouts(ctx)
}

// DeleteVerification removes a verification and its documents from the
// ledger.
func (s *Service) DeleteVerification(ctx context.Context, verificationID string) error {
	return s.repo.DeleteVerification(ctx, verificationID)
}

// DeletePayment removes a payment from the ledger.
func (s *Service) DeletePayment(ctx context.Context, paymentID string) error {
	return s.repo.DeletePayment(ctx, paymentID)
}

// DeletePayout removes a payout from the ledger.
func (s *Service) DeletePayout(ctx context.Context, externalID string) error {
	return s.repo.DeletePayout(ctx, externalID)
}
