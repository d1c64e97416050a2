/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. Create-or-update merges are expressed as `INSERT ... ON
 * CONFLICT` statements on the entity key so concurrent reconciliations of the
 * same key serialize on the unique constraint instead of racing a lookup.
 * Field-preservation rules (never overwrite with empty, never clear a known
 * user/payout id) live in the conflict clauses.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver.
 * - internal/domain: The ledger entity models.
 */

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/remitdesk/kyc-console/internal/domain"
)

// PostgresRepository is a concrete implementation of the Repository interface
// for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const verificationColumns = `id, verification_id, user_id, client_type, first_name, last_name,
	document_number, external_reference, status, environment, raw_response, created_at, updated_at`

func scanVerification(row pgx.Row) (*domain.Verification, error) {
	var v domain.Verification
	err := row.Scan(&v.ID, &v.VerificationID, &v.UserID, &v.ClientType, &v.FirstName, &v.LastName,
		&v.DocumentNumber, &v.ExternalReference, &v.Status, &v.Environment, &v.RawResponse,
		&v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// UpsertVerification creates or updates a verification by its provider id.
// On conflict only status, user_id, and raw_response move; user_id is never
// cleared and status keeps its stored value when the new one is empty.
func (r *PostgresRepository) UpsertVerification(ctx context.Context, params UpsertVerificationParams) (*domain.Verification, error) {
	query := `
		INSERT INTO verifications (id, verification_id, user_id, client_type, first_name, last_name,
			document_number, external_reference, status, environment, raw_response, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, COALESCE(NULLIF($9, ''), 'CREATED'), $10, $11, now(), now())
		ON CONFLICT (verification_id) DO UPDATE SET
			status       = COALESCE(NULLIF($9, ''), verifications.status),
			user_id      = COALESCE(EXCLUDED.user_id, verifications.user_id),
			raw_response = EXCLUDED.raw_response,
			updated_at   = now()
		RETURNING ` + verificationColumns
	row := r.db.QueryRow(ctx, query, uuid.New(), params.VerificationID, params.UserID, params.ClientType,
		params.FirstName, params.LastName, params.DocumentNumber, params.ExternalReference,
		params.Status, params.Environment, params.RawResponse)
	v, err := scanVerification(row)
	if err != nil {
		return nil, fmt.Errorf("upsert verification %s: %w", params.VerificationID, err)
	}
	return v, nil
}

// RefreshVerification updates an existing verification only; a missing key is
// reported as ErrVerificationNotFound so callers can skip instead of create.
func (r *PostgresRepository) RefreshVerification(ctx context.Context, params RefreshVerificationParams) (*domain.Verification, error) {
	query := `
		UPDATE verifications SET
			status       = COALESCE(NULLIF($2, ''), status),
			user_id      = COALESCE(NULLIF($3, ''), user_id),
			raw_response = $4,
			updated_at   = now()
		WHERE verification_id = $1
		RETURNING ` + verificationColumns
	row := r.db.QueryRow(ctx, query, params.VerificationID, params.Status, params.UserID, params.RawResponse)
	v, err := scanVerification(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVerificationNotFound
		}
		return nil, fmt.Errorf("refresh verification %s: %w", params.VerificationID, err)
	}
	return v, nil
}

// FindVerificationByID retrieves a verification by its provider id.
func (r *PostgresRepository) FindVerificationByID(ctx context.Context, verificationID string) (*domain.Verification, error) {
	query := `SELECT ` + verificationColumns + ` FROM verifications WHERE verification_id = $1`
	v, err := scanVerification(r.db.QueryRow(ctx, query, verificationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVerificationNotFound
		}
		return nil, err
	}
	return v, nil
}

// ListVerifications returns all verifications, newest first.
func (r *PostgresRepository) ListVerifications(ctx context.Context) ([]domain.Verification, error) {
	query := `SELECT ` + verificationColumns + ` FROM verifications ORDER BY created_at DESC`
	return r.queryVerifications(ctx, query)
}

// ListApprovedVerifications returns approved verifications, optionally
// filtered to one client type and to records with a resolved user identity.
func (r *PostgresRepository) ListApprovedVerifications(ctx context.Context, clientType string, requireUserID bool) ([]domain.Verification, error) {
	query := `SELECT ` + verificationColumns + ` FROM verifications WHERE status = 'APPROVED'`
	args := []any{}
	if clientType != "" {
		args = append(args, clientType)
		query += fmt.Sprintf(" AND client_type = $%d", len(args))
	}
	if requireUserID {
		query += " AND user_id IS NOT NULL"
	}
	query += " ORDER BY created_at DESC"
	return r.queryVerifications(ctx, query, args...)
}

func (r *PostgresRepository) queryVerifications(ctx context.Context, query string, args ...any) ([]domain.Verification, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	verifications := []domain.Verification{}
	for rows.Next() {
		v, err := scanVerification(rows)
		if err != nil {
			return nil, err
		}
		verifications = append(verifications, *v)
	}
	return verifications, rows.Err()
}

// DeleteVerification removes a verification and its documents in one
// transaction. A missing key yields ErrVerificationNotFound, not a silent
// success.
func (r *PostgresRepository) DeleteVerification(ctx context.Context, verificationID string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE verification_id = $1`, verificationID); err != nil {
		return fmt.Errorf("delete documents for %s: %w", verificationID, err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM verifications WHERE verification_id = $1`, verificationID)
	if err != nil {
		return fmt.Errorf("delete verification %s: %w", verificationID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVerificationNotFound
	}
	return tx.Commit(ctx)
}

const documentColumns = `id, verification_id, document_id, document_type, status, environment, created_at, updated_at`

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var d domain.Document
	err := row.Scan(&d.ID, &d.VerificationID, &d.DocumentID, &d.DocumentType, &d.Status,
		&d.Environment, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// UpsertDocument creates or updates a document by its composite key.
func (r *PostgresRepository) UpsertDocument(ctx context.Context, params UpsertDocumentParams) (*domain.Document, error) {
	query := `
		INSERT INTO documents (id, verification_id, document_id, document_type, status, environment, created_at, updated_at)
		VALUES ($1, $2, $3, COALESCE(NULLIF($4, ''), 'Unknown'), COALESCE(NULLIF($5, ''), 'PENDING'), $6, now(), now())
		ON CONFLICT (verification_id, document_id) DO UPDATE SET
			document_type = COALESCE(NULLIF($4, ''), documents.document_type),
			status        = COALESCE(NULLIF($5, ''), documents.status),
			updated_at    = now()
		RETURNING ` + documentColumns
	row := r.db.QueryRow(ctx, query, uuid.New(), params.VerificationID, params.DocumentID,
		params.DocumentType, params.Status, params.Environment)
	d, err := scanDocument(row)
	if err != nil {
		return nil, fmt.Errorf("upsert document %s/%s: %w", params.VerificationID, params.DocumentID, err)
	}
	return d, nil
}

// RefreshDocumentStatus updates the status of an existing document only.
func (r *PostgresRepository) RefreshDocumentStatus(ctx context.Context, verificationID, documentID, status string) (*domain.Document, error) {
	query := `
		UPDATE documents SET
			status     = COALESCE(NULLIF($3, ''), status),
			updated_at = now()
		WHERE verification_id = $1 AND document_id = $2
		RETURNING ` + documentColumns
	d, err := scanDocument(r.db.QueryRow(ctx, query, verificationID, documentID, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("refresh document %s/%s: %w", verificationID, documentID, err)
	}
	return d, nil
}

// ListDocumentsByVerification returns the documents stored for a
// verification, newest first.
func (r *PostgresRepository) ListDocumentsByVerification(ctx context.Context, verificationID string) ([]domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE verification_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, verificationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	documents := []domain.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		documents = append(documents, *d)
	}
	return documents, rows.Err()
}

const paymentColumns = `id, payment_id, order_id, amount, currency, country, payment_method_id,
	status, status_detail, status_code, remitter_user_id, beneficiary_user_id, environment,
	raw_response, created_at, updated_at`

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(&p.ID, &p.PaymentID, &p.OrderID, &p.Amount, &p.Currency, &p.Country,
		&p.PaymentMethodID, &p.Status, &p.StatusDetail, &p.StatusCode, &p.RemitterUserID,
		&p.BeneficiaryUserID, &p.Environment, &p.RawResponse, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertPayment creates or updates a payment by its provider id. On conflict
// only the status triplet and raw response move.
func (r *PostgresRepository) UpsertPayment(ctx context.Context, params UpsertPaymentParams) (*domain.Payment, error) {
	query := `
		INSERT INTO payments (id, payment_id, order_id, amount, currency, country, payment_method_id,
			status, status_detail, status_code, remitter_user_id, beneficiary_user_id, environment,
			raw_response, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE(NULLIF($8, ''), 'CREATED'), $9, $10, $11, $12, $13, $14, now(), now())
		ON CONFLICT (payment_id) DO UPDATE SET
			status        = COALESCE(NULLIF($8, ''), payments.status),
			status_detail = COALESCE(NULLIF($9, ''), payments.status_detail),
			status_code   = COALESCE(NULLIF($10, ''), payments.status_code),
			raw_response  = EXCLUDED.raw_response,
			updated_at    = now()
		RETURNING ` + paymentColumns
	row := r.db.QueryRow(ctx, query, uuid.New(), params.PaymentID, params.OrderID, params.Amount,
		params.Currency, params.Country, params.PaymentMethodID, params.Status, params.StatusDetail,
		params.StatusCode, params.RemitterUserID, params.BeneficiaryUserID, params.Environment,
		params.RawResponse)
	p, err := scanPayment(row)
	if err != nil {
		return nil, fmt.Errorf("upsert payment %s: %w", params.PaymentID, err)
	}
	return p, nil
}

// RefreshPayment updates an existing payment only; ErrPaymentNotFound lets
// callers treat a missing record as a no-op skip.
func (r *PostgresRepository) RefreshPayment(ctx context.Context, params RefreshPaymentParams) (*domain.Payment, error) {
	query := `
		UPDATE payments SET
			status        = COALESCE(NULLIF($2, ''), status),
			status_detail = COALESCE(NULLIF($3, ''), status_detail),
			status_code   = COALESCE(NULLIF($4, ''), status_code),
			raw_response  = $5,
			updated_at    = now()
		WHERE payment_id = $1
		RETURNING ` + paymentColumns
	p, err := scanPayment(r.db.QueryRow(ctx, query, params.PaymentID, params.Status,
		params.StatusDetail, params.StatusCode, params.RawResponse))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("refresh payment %s: %w", params.PaymentID, err)
	}
	return p, nil
}

// FindPaymentByID retrieves a payment by its provider id.
func (r *PostgresRepository) FindPaymentByID(ctx context.Context, paymentID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE payment_id = $1`
	p, err := scanPayment(r.db.QueryRow(ctx, query, paymentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return p, nil
}

// ListPayments returns all payments, newest first.
func (r *PostgresRepository) ListPayments(ctx context.Context) ([]domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := []domain.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

// DeletePayment removes a payment by its provider id.
func (r *PostgresRepository) DeletePayment(ctx context.Context, paymentID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM payments WHERE payment_id = $1`, paymentID)
	if err != nil {
		return fmt.Errorf("delete payment %s: %w", paymentID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

const payoutColumns = `id, external_id, payout_id, amount, currency, country, bank_account,
	status, status_detail, remitter_user_id, beneficiary_user_id, purpose, environment,
	raw_response, created_at, updated_at`

func scanPayout(row pgx.Row) (*domain.Payout, error) {
	var p domain.Payout
	err := row.Scan(&p.ID, &p.ExternalID, &p.PayoutID, &p.Amount, &p.Currency, &p.Country,
		&p.BankAccount, &p.Status, &p.StatusDetail, &p.RemitterUserID, &p.BeneficiaryUserID,
		&p.Purpose, &p.Environment, &p.RawResponse, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertPayout creates or updates a payout by the caller-assigned external
// id. The provider payout id fills in lazily and is never cleared.
func (r *PostgresRepository) UpsertPayout(ctx context.Context, params UpsertPayoutParams) (*domain.Payout, error) {
	query := `
		INSERT INTO payouts (id, external_id, payout_id, amount, currency, country, bank_account,
			status, status_detail, remitter_user_id, beneficiary_user_id, purpose, environment,
			raw_response, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, COALESCE(NULLIF($8, ''), 'PENDING'), $9, $10, $11, $12, $13, $14, now(), now())
		ON CONFLICT (external_id) DO UPDATE SET
			payout_id     = COALESCE(EXCLUDED.payout_id, payouts.payout_id),
			status        = COALESCE(NULLIF($8, ''), payouts.status),
			status_detail = COALESCE(NULLIF($9, ''), payouts.status_detail),
			raw_response  = EXCLUDED.raw_response,
			updated_at    = now()
		RETURNING ` + payoutColumns
	row := r.db.QueryRow(ctx, query, uuid.New(), params.ExternalID, params.PayoutID, params.Amount,
		params.Currency, params.Country, params.BankAccount, params.Status, params.StatusDetail,
		params.RemitterUserID, params.BeneficiaryUserID, params.Purpose, params.Environment,
		params.RawResponse)
	p, err := scanPayout(row)
	if err != nil {
		return nil, fmt.Errorf("upsert payout %s: %w", params.ExternalID, err)
	}
	return p, nil
}

// FindPayoutByExternalID retrieves a payout by its caller-assigned key.
func (r *PostgresRepository) FindPayoutByExternalID(ctx context.Context, externalID string) (*domain.Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE external_id = $1`
	p, err := scanPayout(r.db.QueryRow(ctx, query, externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPayoutNotFound
		}
		return nil, err
	}
	return p, nil
}

// ListPayouts returns all payouts, newest first.
func (r *PostgresRepository) ListPayouts(ctx context.Context) ([]domain.Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM payouts ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payouts := []domain.Payout{}
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		payouts = append(payouts, *p)
	}
	return payouts, rows.Err()
}

// DeletePayout removes a payout by its caller-assigned external id.
func (r *PostgresRepository) DeletePayout(ctx context.Context, externalID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM payouts WHERE external_id = $1`, externalID)
	if err != nil {
		return fmt.Errorf("delete payout %s: %w", externalID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPayoutNotFound
	}
	return nil
}
