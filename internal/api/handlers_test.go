package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/remitdesk/kyc-console/internal/app"
	"github.com/remitdesk/kyc-console/internal/store"
	"github.com/remitdesk/kyc-console/pkg/dlocal"
)

type stubClient struct {
	env *dlocal.Envelope
}

func (c *stubClient) CreateVerification(ctx context.Context, creds dlocal.Credentials, sandbox bool, body any) *dlocal.Envelope {
	return c.env
}

func (c *stubClient) GetVerification(ctx context.Context, creds dlocal.Credentials, sandbox bool, verificationID string) *dlocal.Envelope {
	return c.env
}

func (c *stubClient) ListDocuments(ctx context.Context, creds dlocal.Credentials, sandbox bool, verificationID string) *dlocal.Envelope {
	return c.env
}

func (c *stubClient) UploadDocument(ctx context.Context, creds dlocal.Credentials, sandbox bool, verificationID, documentID, filename, contentType string, file io.Reader) *dlocal.Envelope {
	return c.env
}

func (c *stubClient) UpdateVerificationState(ctx context.Context, creds dlocal.Credentials, sandbox bool, verificationID string, body dlocal.StateUpdateBody) *dlocal.Envelope {
	return c.env
}

func (c *stubClient) CreatePayment(ctx context.Context, creds dlocal.Credentials, sandbox bool, path string, body dlocal.PaymentBody) *dlocal.Envelope {
	return c.env
}

func (c *stubClient) GetPayment(ctx context.Context, creds dlocal.Credentials, sandbox bool, paymentID string) *dlocal.Envelope {
	return c.env
}

func (c *stubClient) CreatePayout(ctx context.Context, creds dlocal.Credentials, sandbox bool, body dlocal.PayoutBody) *dlocal.Envelope {
	return c.env
}

func newTestRouter(env *dlocal.Envelope) (http.Handler, *store.MemoryRepository) {
	repo := store.NewMemoryRepository()
	svc := app.NewService(repo, &stubClient{env: env}, nil, "", true)
	return ConsoleRoutes(NewConsoleHandlers(svc)), repo
}

func credsBody(extra map[string]any) *bytes.Buffer {
	body := map[string]any{
		"login":           "login",
		"transaction_key": "trans",
		"secret_key":      "secret",
	}
	for k, v := range extra {
		body[k] = v
	}
	raw, _ := json.Marshal(body)
	return bytes.NewBuffer(raw)
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCreateVerificationEndpoint(t *testing.T) {
	env := &dlocal.Envelope{Success: true, StatusCode: 200, Response: map[string]any{
		"id": "VER-1", "status": "PENDING",
	}}
	router, repo := newTestRouter(env)

	req := httptest.NewRequest(http.MethodPost, "/api/verifications", credsBody(map[string]any{
		"client_type": "REMITTER",
		"form_data":   map[string]any{"first_name": "Ana", "last_name": "Lima"},
	}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var got dlocal.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !got.Success || !got.SavedLocally {
		t.Errorf("envelope = success=%v saved=%v", got.Success, got.SavedLocally)
	}

	list, _ := repo.ListVerifications(context.Background())
	if len(list) != 1 || list[0].FirstName != "Ana" {
		t.Fatalf("ledger = %+v", list)
	}
}

func TestCreateVerificationMissingCredentials(t *testing.T) {
	router, _ := newTestRouter(nil)
	req := httptest.NewRequest(http.MethodPost, "/api/verifications", strings.NewReader(`{"form_data":{}}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "credentials") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestCreateVerificationInvalidJSON(t *testing.T) {
	router, _ := newTestRouter(nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/verifications", strings.NewReader("{not json")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestStateUpdateRejectsProduction(t *testing.T) {
	router, _ := newTestRouter(nil)
	req := httptest.NewRequest(http.MethodPatch, "/api/verifications/VER-1/state", credsBody(map[string]any{
		"use_sandbox":   false,
		"status":        "APPROVED",
		"status_detail": "APPROVED_DETAIL",
	}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "sandbox") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestUploadDocumentEndpoint(t *testing.T) {
	env := &dlocal.Envelope{Success: true, StatusCode: 200, Response: map[string]any{"status": "UPLOADED"}}
	router, _ := newTestRouter(env)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("login", "login")
	mw.WriteField("transaction_key", "trans")
	mw.WriteField("secret_key", "secret")
	part, _ := mw.CreateFormFile("file", "front.jpg")
	part.Write([]byte("image-bytes"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/verifications/VER-1/documents/DOC-1", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestUploadDocumentWithoutFile(t *testing.T) {
	router, _ := newTestRouter(nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("login", "login")
	mw.WriteField("transaction_key", "trans")
	mw.WriteField("secret_key", "secret")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/verifications/VER-1/documents/DOC-1", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestApprovedRemittersAnnotatePaymentUserID(t *testing.T) {
	router, repo := newTestRouter(nil)
	ctx := context.Background()

	if _, err := repo.UpsertVerification(ctx, store.UpsertVerificationParams{
		VerificationID: "VER-1", ClientType: "REMITTER", FirstName: "Ana", LastName: "Lima",
		Status: "APPROVED", UserID: "USR-1",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := repo.UpsertVerification(ctx, store.UpsertVerificationParams{
		VerificationID: "VER-2", ClientType: "REMITTER", FirstName: "Bia", LastName: "Melo",
		Status: "APPROVED",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/local/remitters/approved", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var got []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	byID := map[string]map[string]any{}
	for _, v := range got {
		byID[v["verification_id"].(string)] = v
	}
	if byID["VER-1"]["payment_user_id"] != "USR-1" {
		t.Errorf("VER-1 payment_user_id = %v, want resolved user id", byID["VER-1"]["payment_user_id"])
	}
	if byID["VER-2"]["payment_user_id"] != "VER-2" {
		t.Errorf("VER-2 payment_user_id = %v, want verification id fallback", byID["VER-2"]["payment_user_id"])
	}
	if byID["VER-1"]["display_name"] != "Ana Lima - APPROVED" {
		t.Errorf("display_name = %v", byID["VER-1"]["display_name"])
	}
}

func TestDeleteVerificationEndpoint(t *testing.T) {
	router, repo := newTestRouter(nil)
	ctx := context.Background()
	if _, err := repo.UpsertVerification(ctx, store.UpsertVerificationParams{VerificationID: "VER-1"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/local/verifications/VER-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/local/verifications/VER-1", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rec.Code)
	}
}

func TestDeleteMissingPayout(t *testing.T) {
	router, _ := newTestRouter(nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/local/payouts/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestListPayoutsEndpoint(t *testing.T) {
	router, repo := newTestRouter(nil)
	if _, err := repo.UpsertPayout(context.Background(), store.UpsertPayoutParams{
		ExternalID: "ext-1", PayoutID: "P-1", Amount: 10, Currency: "ARS", Status: "COMPLETED",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/local/payouts", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0]["display_name"] != "ext-1 - COMPLETED - ARS 10" {
		t.Fatalf("payouts = %v", got)
	}
}
