/**
 * @description
 * This file provides an in-memory implementation of the `Repository`
 * interface. It backs the unit tests and lets the console run without a
 * database. One mutex guards all four tables, so each create-or-update is a
 * single atomic read-modify-write per key, the same guarantee the Postgres
 * implementation gets from its unique constraints.
 *
 * @dependencies
 * - context, sort, sync, time: Standard Go libraries.
 * - internal/domain: The ledger entity models.
 */

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/remitdesk/kyc-console/internal/domain"
)

// MemoryRepository is a concrete implementation of the Repository interface
// backed by in-process maps.
type MemoryRepository struct {
	mu            sync.Mutex
	verifications map[string]*domain.Verification
	documents     map[string]*domain.Document // keyed verificationID + "\x00" + documentID
	payments      map[string]*domain.Payment
	payouts       map[string]*domain.Payout

	// now is overridable so tests can pin timestamps.
	now func() time.Time
}

// NewMemoryRepository creates an empty in-memory ledger.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		verifications: make(map[string]*domain.Verification),
		documents:     make(map[string]*domain.Document),
		payments:      make(map[string]*domain.Payment),
		payouts:       make(map[string]*domain.Payout),
		now:           time.Now,
	}
}

func documentKey(verificationID, documentID string) string {
	return verificationID + "\x00" + documentID
}

// defaultStatus applies the create-time default used when the provider's
// response carried no status for a brand-new record.
func defaultStatus(status, fallback string) string {
	if status == "" {
		return fallback
	}
	return status
}

func (r *MemoryRepository) UpsertVerification(ctx context.Context, params UpsertVerificationParams) (*domain.Verification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	v, ok := r.verifications[params.VerificationID]
	if !ok {
		v = &domain.Verification{
			ID:                uuid.New(),
			VerificationID:    params.VerificationID,
			ClientType:        params.ClientType,
			FirstName:         params.FirstName,
			LastName:          params.LastName,
			DocumentNumber:    params.DocumentNumber,
			ExternalReference: params.ExternalReference,
			Status:            defaultStatus(params.Status, "CREATED"),
			Environment:       params.Environment,
			RawResponse:       params.RawResponse,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if params.UserID != "" {
			userID := params.UserID
			v.UserID = &userID
		}
		r.verifications[params.VerificationID] = v
	} else {
		if params.Status != "" {
			v.Status = params.Status
		}
		if params.UserID != "" {
			userID := params.UserID
			v.UserID = &userID
		}
		v.RawResponse = params.RawResponse
		v.UpdatedAt = now
	}
	clone := *v
	return &clone, nil
}

func (r *MemoryRepository) RefreshVerification(ctx context.Context, params RefreshVerificationParams) (*domain.Verification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.verifications[params.VerificationID]
	if !ok {
		return nil, ErrVerificationNotFound
	}
	if params.Status != "" {
		v.Status = params.Status
	}
	if params.UserID != "" {
		userID := params.UserID
		v.UserID = &userID
	}
	v.RawResponse = params.RawResponse
	v.UpdatedAt = r.now()
	clone := *v
	return &clone, nil
}

func (r *MemoryRepository) FindVerificationByID(ctx context.Context, verificationID string) (*domain.Verification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.verifications[verificationID]
	if !ok {
		return nil, ErrVerificationNotFound
	}
	clone := *v
	return &clone, nil
}

func (r *MemoryRepository) ListVerifications(ctx context.Context) ([]domain.Verification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Verification, 0, len(r.verifications))
	for _, v := range r.verifications {
		out = append(out, *v)
	}
	sortNewestFirst(out, func(v domain.Verification) time.Time { return v.CreatedAt })
	return out, nil
}

func (r *MemoryRepository) ListApprovedVerifications(ctx context.Context, clientType string, requireUserID bool) ([]domain.Verification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []domain.Verification{}
	for _, v := range r.verifications {
		if v.Status != "APPROVED" {
			continue
		}
		if clientType != "" && v.ClientType != clientType {
			continue
		}
		if requireUserID && (v.UserID == nil || *v.UserID == "") {
			continue
		}
		out = append(out, *v)
	}
	sortNewestFirst(out, func(v domain.Verification) time.Time { return v.CreatedAt })
	return out, nil
}

func (r *MemoryRepository) DeleteVerification(ctx context.Context, verificationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.verifications[verificationID]; !ok {
		return ErrVerificationNotFound
	}
	delete(r.verifications, verificationID)
	for key, d := range r.documents {
		if d.VerificationID == verificationID {
			delete(r.documents, key)
		}
	}
	return nil
}

func (r *MemoryRepository) UpsertDocument(ctx context.Context, params UpsertDocumentParams) (*domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	key := documentKey(params.VerificationID, params.DocumentID)
	d, ok := r.documents[key]
	if !ok {
		d = &domain.Document{
			ID:             uuid.New(),
			VerificationID: params.VerificationID,
			DocumentID:     params.DocumentID,
			DocumentType:   defaultStatus(params.DocumentType, "Unknown"),
			Status:         defaultStatus(params.Status, "PENDING"),
			Environment:    params.Environment,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		r.documents[key] = d
	} else {
		if params.DocumentType != "" {
			d.DocumentType = params.DocumentType
		}
		if params.Status != "" {
			d.Status = params.Status
		}
		d.UpdatedAt = now
	}
	clone := *d
	return &clone, nil
}

func (r *MemoryRepository) RefreshDocumentStatus(ctx context.Context, verificationID, documentID, status string) (*domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.documents[documentKey(verificationID, documentID)]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	if status != "" {
		d.Status = status
	}
	d.UpdatedAt = r.now()
	clone := *d
	return &clone, nil
}

func (r *MemoryRepository) ListDocumentsByVerification(ctx context.Context, verificationID string) ([]domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []domain.Document{}
	for _, d := range r.documents {
		if d.VerificationID == verificationID {
			out = append(out, *d)
		}
	}
	sortNewestFirst(out, func(d domain.Document) time.Time { return d.CreatedAt })
	return out, nil
}

func (r *MemoryRepository) UpsertPayment(ctx context.Context, params UpsertPaymentParams) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	p, ok := r.payments[params.PaymentID]
	if !ok {
		p = &domain.Payment{
			ID:                uuid.New(),
			PaymentID:         params.PaymentID,
			OrderID:           params.OrderID,
			Amount:            params.Amount,
			Currency:          params.Currency,
			Country:           params.Country,
			PaymentMethodID:   params.PaymentMethodID,
			Status:            defaultStatus(params.Status, "CREATED"),
			StatusDetail:      params.StatusDetail,
			StatusCode:        params.StatusCode,
			RemitterUserID:    params.RemitterUserID,
			BeneficiaryUserID: params.BeneficiaryUserID,
			Environment:       params.Environment,
			RawResponse:       params.RawResponse,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		r.payments[params.PaymentID] = p
	} else {
		if params.Status != "" {
			p.Status = params.Status
		}
		if params.StatusDetail != "" {
			p.StatusDetail = params.StatusDetail
		}
		if params.StatusCode != "" {
			p.StatusCode = params.StatusCode
		}
		p.RawResponse = params.RawResponse
		p.UpdatedAt = now
	}
	clone := *p
	return &clone, nil
}

func (r *MemoryRepository) RefreshPayment(ctx context.Context, params RefreshPaymentParams) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[params.PaymentID]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	if params.Status != "" {
		p.Status = params.Status
	}
	if params.StatusDetail != "" {
		p.StatusDetail = params.StatusDetail
	}
	if params.StatusCode != "" {
		p.StatusCode = params.StatusCode
	}
	p.RawResponse = params.RawResponse
	p.UpdatedAt = r.now()
	clone := *p
	return &clone, nil
}

func (r *MemoryRepository) FindPaymentByID(ctx context.Context, paymentID string) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[paymentID]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	clone := *p
	return &clone, nil
}

func (r *MemoryRepository) ListPayments(ctx context.Context) ([]domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Payment, 0, len(r.payments))
	for _, p := range r.payments {
		out = append(out, *p)
	}
	sortNewestFirst(out, func(p domain.Payment) time.Time { return p.CreatedAt })
	return out, nil
}

func (r *MemoryRepository) DeletePayment(ctx context.Context, paymentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.payments[paymentID]; !ok {
		return ErrPaymentNotFound
	}
	delete(r.payments, paymentID)
	return nil
}

func (r *MemoryRepository) UpsertPayout(ctx context.Context, params UpsertPayoutParams) (*domain.Payout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	p, ok := r.payouts[params.ExternalID]
	if !ok {
		p = &domain.Payout{
			ID:                uuid.New(),
			ExternalID:        params.ExternalID,
			Amount:            params.Amount,
			Currency:          params.Currency,
			Country:           params.Country,
			BankAccount:       params.BankAccount,
			Status:            defaultStatus(params.Status, "PENDING"),
			StatusDetail:      params.StatusDetail,
			RemitterUserID:    params.RemitterUserID,
			BeneficiaryUserID: params.BeneficiaryUserID,
			Purpose:           params.Purpose,
			Environment:       params.Environment,
			RawResponse:       params.RawResponse,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if params.PayoutID != "" {
			payoutID := params.PayoutID
			p.PayoutID = &payoutID
		}
		r.payouts[params.ExternalID] = p
	} else {
		if params.PayoutID != "" {
			payoutID := params.PayoutID
			p.PayoutID = &payoutID
		}
		if params.Status != "" {
			p.Status = params.Status
		}
		if params.StatusDetail != "" {
			p.StatusDetail = params.StatusDetail
		}
		p.RawResponse = params.RawResponse
		p.UpdatedAt = now
	}
	clone := *p
	return &clone, nil
}

func (r *MemoryRepository) FindPayoutByExternalID(ctx context.Context, externalID string) (*domain.Payout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payouts[externalID]
	if !ok {
		return nil, ErrPayoutNotFound
	}
	clone := *p
	return &clone, nil
}

func (r *MemoryRepository) ListPayouts(ctx context.Context) ([]domain.Payout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Payout, 0, len(r.payouts))
	for _, p := range r.payouts {
		out = append(out, *p)
	}
	sortNewestFirst(out, func(p domain.Payout) time.Time { return p.CreatedAt })
	return out, nil
}

func (r *MemoryRepository) DeletePayout(ctx context.Context, externalID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.payouts[externalID]; !ok {
		return ErrPayoutNotFound
	}
	delete(r.payouts, externalID)
	return nil
}

func sortNewestFirst[T any](items []T, createdAt func(T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		return createdAt(items[i]).After(createdAt(items[j]))
	})
}
