package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestUpsertVerificationCreateThenMerge(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	created, err := repo.UpsertVerification(ctx, UpsertVerificationParams{
		VerificationID: "VER-1",
		ClientType:     "REMITTER",
		FirstName:      "Ana",
		Status:         "PENDING",
		Environment:    "sandbox",
		RawResponse:    `{"status":"PENDING"}`,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.UserID != nil {
		t.Errorf("user_id = %v, want nil", created.UserID)
	}

	// Merge with an empty status and a resolved user id: status stays,
	// user id fills in, raw response replaces.
	merged, err := repo.UpsertVerification(ctx, UpsertVerificationParams{
		VerificationID: "VER-1",
		UserID:         "USR-1",
		RawResponse:    `{"new":true}`,
	})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if merged.ID != created.ID {
		t.Error("replay must not mint a new record")
	}
	if merged.Status != "PENDING" {
		t.Errorf("status = %q, empty incoming status must keep stored value", merged.Status)
	}
	if merged.UserID == nil || *merged.UserID != "USR-1" {
		t.Errorf("user_id = %v, want USR-1", merged.UserID)
	}
	if merged.RawResponse != `{"new":true}` {
		t.Errorf("raw_response = %q, must always replace", merged.RawResponse)
	}
	if merged.FirstName != "Ana" {
		t.Errorf("first_name = %q, stored fields must survive the merge", merged.FirstName)
	}
}

func TestUpsertVerificationNeverClearsUserID(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	if _, err := repo.UpsertVerification(ctx, UpsertVerificationParams{
		VerificationID: "VER-1", UserID: "USR-1", Status: "APPROVED",
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	v, err := repo.UpsertVerification(ctx, UpsertVerificationParams{VerificationID: "VER-1"})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if v.UserID == nil || *v.UserID != "USR-1" {
		t.Errorf("user_id = %v, a known identity must never be cleared", v.UserID)
	}
}

func TestRefreshVerificationNotFound(t *testing.T) {
	repo := NewMemoryRepository()
	_, err := repo.RefreshVerification(context.Background(), RefreshVerificationParams{VerificationID: "missing"})
	if !errors.Is(err, ErrVerificationNotFound) {
		t.Fatalf("err = %v, want ErrVerificationNotFound", err)
	}
}

func TestDeleteVerificationCascadesDocuments(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	if _, err := repo.UpsertVerification(ctx, UpsertVerificationParams{VerificationID: "VER-1"}); err != nil {
		t.Fatalf("verification: %v", err)
	}
	for _, docID := range []string{"DOC-1", "DOC-2"} {
		if _, err := repo.UpsertDocument(ctx, UpsertDocumentParams{
			VerificationID: "VER-1", DocumentID: docID, DocumentType: "ID_CARD", Status: "PENDING",
		}); err != nil {
			t.Fatalf("document %s: %v", docID, err)
		}
	}

	if err := repo.DeleteVerification(ctx, "VER-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	docs, err := repo.ListDocumentsByVerification(ctx, "VER-1")
	if err != nil {
		t.Fatalf("list documents: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected cascade to remove documents, %d left", len(docs))
	}
	if err := repo.DeleteVerification(ctx, "VER-1"); !errors.Is(err, ErrVerificationNotFound) {
		t.Fatalf("second delete err = %v, want ErrVerificationNotFound", err)
	}
}

func TestListApprovedVerificationsFilters(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	seed := []UpsertVerificationParams{
		{VerificationID: "VER-1", ClientType: "REMITTER", Status: "APPROVED", UserID: "USR-1"},
		{VerificationID: "VER-2", ClientType: "REMITTER", Status: "APPROVED"},
		{VerificationID: "VER-3", ClientType: "BENEFICIARY", Status: "APPROVED", UserID: "USR-3"},
		{VerificationID: "VER-4", ClientType: "REMITTER", Status: "PENDING", UserID: "USR-4"},
	}
	for _, p := range seed {
		if _, err := repo.UpsertVerification(ctx, p); err != nil {
			t.Fatalf("seed %s: %v", p.VerificationID, err)
		}
	}

	withUser, err := repo.ListApprovedVerifications(ctx, "REMITTER", true)
	if err != nil {
		t.Fatalf("ListApprovedVerifications: %v", err)
	}
	if len(withUser) != 1 || withUser[0].VerificationID != "VER-1" {
		t.Fatalf("remitter+user = %+v, want only VER-1", withUser)
	}

	anyUser, err := repo.ListApprovedVerifications(ctx, "REMITTER", false)
	if err != nil {
		t.Fatalf("ListApprovedVerifications: %v", err)
	}
	if len(anyUser) != 2 {
		t.Fatalf("remitter any = %d records, want 2", len(anyUser))
	}

	all, err := repo.ListApprovedVerifications(ctx, "", false)
	if err != nil {
		t.Fatalf("ListApprovedVerifications: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("all approved = %d records, want 3", len(all))
	}
}

func TestListVerificationsNewestFirst(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time {
		ts = ts.Add(time.Minute)
		return ts
	}

	for _, id := range []string{"VER-1", "VER-2", "VER-3"} {
		if _, err := repo.UpsertVerification(ctx, UpsertVerificationParams{VerificationID: id}); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
	list, err := repo.ListVerifications(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].VerificationID != "VER-3" || list[2].VerificationID != "VER-1" {
		t.Fatalf("order = %v, want newest first", []string{list[0].VerificationID, list[1].VerificationID, list[2].VerificationID})
	}
}

func TestUpsertDocumentCreateDefaults(t *testing.T) {
	repo := NewMemoryRepository()
	d, err := repo.UpsertDocument(context.Background(), UpsertDocumentParams{
		VerificationID: "VER-1", DocumentID: "DOC-1",
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if d.DocumentType != "Unknown" || d.Status != "PENDING" {
		t.Errorf("defaults = %s/%s, want Unknown/PENDING", d.DocumentType, d.Status)
	}
}

func TestRefreshDocumentStatus(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	if _, err := repo.UpsertDocument(ctx, UpsertDocumentParams{
		VerificationID: "VER-1", DocumentID: "DOC-1", Status: "PENDING",
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	d, err := repo.RefreshDocumentStatus(ctx, "VER-1", "DOC-1", "UPLOADED")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if d.Status != "UPLOADED" {
		t.Errorf("status = %q, want UPLOADED", d.Status)
	}

	if _, err := repo.RefreshDocumentStatus(ctx, "VER-1", "DOC-9", "UPLOADED"); !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("err = %v, want ErrDocumentNotFound", err)
	}
}

func TestUpsertPaymentMergeKeepsDetailOnEmpty(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	if _, err := repo.UpsertPayment(ctx, UpsertPaymentParams{
		PaymentID: "PAY-1", Status: "PENDING", StatusDetail: "waiting", Amount: 10,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	p, err := repo.UpsertPayment(ctx, UpsertPaymentParams{PaymentID: "PAY-1", Status: "PAID"})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if p.Status != "PAID" {
		t.Errorf("status = %q, want PAID", p.Status)
	}
	if p.StatusDetail != "waiting" {
		t.Errorf("status_detail = %q, empty incoming value must keep stored one", p.StatusDetail)
	}
	if p.Amount != 10 {
		t.Errorf("amount = %v, create-only fields must not move on merge", p.Amount)
	}
}

func TestRefreshPaymentNotFound(t *testing.T) {
	repo := NewMemoryRepository()
	_, err := repo.RefreshPayment(context.Background(), RefreshPaymentParams{PaymentID: "missing"})
	if !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("err = %v, want ErrPaymentNotFound", err)
	}
}

func TestUpsertPayoutNeverClearsProviderID(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	if _, err := repo.UpsertPayout(ctx, UpsertPayoutParams{
		ExternalID: "ext-1", PayoutID: "P-1", Status: "PENDING",
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	p, err := repo.UpsertPayout(ctx, UpsertPayoutParams{ExternalID: "ext-1", Status: "COMPLETED"})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if p.PayoutID == nil || *p.PayoutID != "P-1" {
		t.Errorf("payout_id = %v, provider id must never be cleared", p.PayoutID)
	}
	if p.Status != "COMPLETED" {
		t.Errorf("status = %q, want COMPLETED", p.Status)
	}
}

func TestDeletePayoutNotFound(t *testing.T) {
	repo := NewMemoryRepository()
	if err := repo.DeletePayout(context.Background(), "missing"); !errors.Is(err, ErrPayoutNotFound) {
		t.Fatalf("err = %v, want ErrPayoutNotFound", err)
	}
}
