package dlocal

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

var fixedNow = time.Date(2026, 5, 6, 7, 8, 9, 123_000_000, time.UTC)

func testClient(serverURL string) *Client {
	c := NewClient(serverURL, serverURL, time.Second)
	c.Now = func() time.Time { return fixedNow }
	return c
}

func TestCreateVerificationRequestShape(t *testing.T) {
	creds := Credentials{Login: "login", TransactionKey: "trans", SecretKey: "secret"}
	var gotBody string
	var gotHeaders http.Header

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		if r.Method != http.MethodPost || r.URL.Path != "/kyc/verifications" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "multipart/form-data" {
			t.Errorf("content type = %q (%v)", mediaType, err)
		}
		mr := multipart.NewReader(r.Body, params["boundary"])
		part, err := mr.NextPart()
		if err != nil {
			t.Fatalf("reading part: %v", err)
		}
		if part.FormName() != "body" {
			t.Errorf("part name = %q, want body", part.FormName())
		}
		if ct := part.Header.Get("Content-Type"); ct != "text/plain" {
			t.Errorf("part content type = %q, want text/plain", ct)
		}
		raw, _ := io.ReadAll(part)
		gotBody = string(raw)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"VER-1","status":"PENDING"}`))
	}))
	defer srv.Close()

	body := ComposeRemitterVerification(VerificationInput{FirstName: "Ana"})
	env := testClient(srv.URL).CreateVerification(context.Background(), creds, true, body)

	if !env.Success || env.StatusCode != 200 {
		t.Fatalf("envelope = success=%v status=%d", env.Success, env.StatusCode)
	}
	if env.ResponseString("id") != "VER-1" {
		t.Errorf("response id = %q", env.ResponseString("id"))
	}

	wantDate := "2026-05-06T07:08:09.123Z"
	if gotHeaders.Get("X-Date") != wantDate {
		t.Errorf("X-Date = %q, want %q", gotHeaders.Get("X-Date"), wantDate)
	}
	if gotHeaders.Get("X-Login") != "login" || gotHeaders.Get("X-Trans-Key") != "trans" {
		t.Errorf("credential headers = %q/%q", gotHeaders.Get("X-Login"), gotHeaders.Get("X-Trans-Key"))
	}
	wantSig := SignRequest("login", "secret", wantDate, gotBody)
	if gotHeaders.Get("Authorization") != "V2-HMAC-SHA256, Signature: "+wantSig {
		t.Errorf("Authorization = %q", gotHeaders.Get("Authorization"))
	}

	// The signed string and the transmitted form field must be the same bytes.
	if !strings.Contains(gotBody, `"first_name":"Ana"`) {
		t.Errorf("form body = %q", gotBody)
	}
	if env.Signature != wantSig {
		t.Errorf("envelope signature = %q, want %q", env.Signature, wantSig)
	}
	if env.HeadersSent["Authorization"] != "" {
		t.Error("Authorization must be redacted from the reported headers")
	}
	if env.HeadersSent["X-Login"] != "login" {
		t.Errorf("headers sent = %v", env.HeadersSent)
	}
}

func TestGetVerificationBodilessSignature(t *testing.T) {
	creds := Credentials{Login: "login", TransactionKey: "trans", SecretKey: "secret"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/kyc/verifications/VER-1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("include") != "client_data" {
			t.Errorf("query = %q, want include=client_data", r.URL.RawQuery)
		}
		wantSig := SignRequest("login", "secret", r.Header.Get("X-Date"), "")
		if got := r.Header.Get("Authorization"); got != "V2-HMAC-SHA256, Signature: "+wantSig {
			t.Errorf("bodiless request must be signed over the empty string, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"VER-1"}`))
	}))
	defer srv.Close()

	env := testClient(srv.URL).GetVerification(context.Background(), creds, true, "VER-1")
	if !env.Success {
		t.Fatalf("envelope failed: %+v", env)
	}
}

func TestUploadDocumentSignsEmptyBody(t *testing.T) {
	creds := Credentials{Login: "login", TransactionKey: "trans", SecretKey: "secret"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %q, want PATCH", r.Method)
		}
		if r.URL.Path != "/kyc/verifications/VER-1/documents/DOC-1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		wantSig := SignRequest("login", "secret", r.Header.Get("X-Date"), "")
		if got := r.Header.Get("Authorization"); got != "V2-HMAC-SHA256, Signature: "+wantSig {
			t.Errorf("upload must be signed over the empty body, got %q", got)
		}
		_, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		part, err := multipart.NewReader(r.Body, params["boundary"]).NextPart()
		if err != nil {
			t.Fatalf("part: %v", err)
		}
		if part.FormName() != "file" || part.FileName() != "front.jpg" {
			t.Errorf("part = %q/%q, want file/front.jpg", part.FormName(), part.FileName())
		}
		content, _ := io.ReadAll(part)
		if string(content) != "image-bytes" {
			t.Errorf("file content = %q", content)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"UPLOADED"}`))
	}))
	defer srv.Close()

	env := testClient(srv.URL).UploadDocument(context.Background(), creds, true,
		"VER-1", "DOC-1", "front.jpg", "image/jpeg", strings.NewReader("image-bytes"))
	if !env.Success {
		t.Fatalf("envelope failed: %+v", env)
	}
}

func TestUpdateVerificationStatePath(t *testing.T) {
	creds := Credentials{Login: "login", TransactionKey: "trans", SecretKey: "secret"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The provider spells the path without the "d".
		if r.URL.Path != "/kyc/sanbox-tools/verifications/VER-1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(raw), `"status":"APPROVED"`) {
			t.Errorf("body = %s", raw)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"APPROVED"}`))
	}))
	defer srv.Close()

	env := testClient(srv.URL).UpdateVerificationState(context.Background(), creds, true,
		"VER-1", StateUpdateBody{Status: "APPROVED", StatusDetail: "APPROVED_DETAIL"})
	if !env.Success {
		t.Fatalf("envelope failed: %+v", env)
	}
}

func TestGetPaymentDetailsPath(t *testing.T) {
	creds := Credentials{Login: "login", TransactionKey: "trans", SecretKey: "secret"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/payments/PAY-1/details" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"PAY-1","status":"PAID"}`))
	}))
	defer srv.Close()

	env := testClient(srv.URL).GetPayment(context.Background(), creds, true, "PAY-1")
	if !env.Success || env.ResponseString("status") != "PAID" {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestCreatePayoutUsesPayloadSigning(t *testing.T) {
	creds := Credentials{Login: "login", TransactionKey: "trans", SecretKey: "secret"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api_curl/cashout_api/request_cashout" {
			t.Errorf("path = %q", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		if got, want := r.Header.Get("payload-signature"), SignPayload("secret", string(raw)); got != want {
			t.Errorf("payload-signature = %q, want HMAC over the body alone", got)
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("payout requests must not carry an Authorization header")
		}
		if got := r.Header.Get("X-Date"); got != "Wed, 06 May 2026 07:08:09 GMT" {
			t.Errorf("X-Date = %q, want RFC 1123 GMT", got)
		}
		if !strings.Contains(string(raw), `"login":"login"`) || !strings.Contains(string(raw), `"pass":"trans"`) {
			t.Errorf("payout body must embed the credentials: %s", raw)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"cashout_id":"91021","status":"PENDING"}`))
	}))
	defer srv.Close()

	body := ComposePayout(creds, PayoutInput{ExternalID: "ext-1", Amount: "10.00"})
	env := testClient(srv.URL).CreatePayout(context.Background(), creds, true, body)
	if !env.Success || env.ResponseString("cashout_id") != "91021" {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestNon2xxResponseIsFailureWithParsedBody(t *testing.T) {
	creds := Credentials{Login: "login", TransactionKey: "trans", SecretKey: "secret"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"code":3003,"message":"Invalid signature"}`))
	}))
	defer srv.Close()

	env := testClient(srv.URL).GetPayment(context.Background(), creds, true, "PAY-1")
	if env.Success {
		t.Fatal("4xx must not be success")
	}
	if env.StatusCode != 403 {
		t.Errorf("status = %d, want 403", env.StatusCode)
	}
	if env.ResponseString("message") != "Invalid signature" {
		t.Errorf("response = %v", env.Response)
	}
}

func TestNonJSONResponseWrappedAsRaw(t *testing.T) {
	creds := Credentials{Login: "login", TransactionKey: "trans", SecretKey: "secret"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Service Temporarily Unavailable"))
	}))
	defer srv.Close()

	env := testClient(srv.URL).GetPayment(context.Background(), creds, true, "PAY-1")
	if env.ResponseString("raw") != "Service Temporarily Unavailable" {
		t.Fatalf("response = %v, want raw wrapper", env.Response)
	}
}

func TestTransportFailureEnvelope(t *testing.T) {
	creds := Credentials{Login: "login", TransactionKey: "trans", SecretKey: "secret"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing is listening anymore

	env := testClient(srv.URL).GetPayment(context.Background(), creds, true, "PAY-1")
	if env.Success {
		t.Fatal("transport failure must not be success")
	}
	if env.StatusCode != 0 {
		t.Errorf("status = %d, want 0", env.StatusCode)
	}
	if env.Error == "" {
		t.Error("expected an error description")
	}
	if env.ResponseHeaders == nil || len(env.ResponseHeaders) != 0 {
		t.Errorf("response headers = %v, want empty map", env.ResponseHeaders)
	}
	if env.Signature == "" || env.Date == "" {
		t.Error("signing context must be reported even on failure")
	}
	if env.RequestURL == "" {
		t.Error("request URL must be reported on failure")
	}
}

func TestEnvelopeClientID(t *testing.T) {
	env := &Envelope{Response: map[string]any{
		"attributes": map[string]any{
			"client": map[string]any{"id": "USR-1"},
		},
	}}
	if env.ClientID() != "USR-1" {
		t.Fatalf("ClientID = %q", env.ClientID())
	}
	if (&Envelope{}).ClientID() != "" {
		t.Fatal("missing attributes must yield empty client id")
	}
}

func TestBaseURLSelection(t *testing.T) {
	c := NewClient("", "", 0)
	if c.BaseURL(true) != DefaultSandboxURL {
		t.Errorf("sandbox base = %q", c.BaseURL(true))
	}
	if c.BaseURL(false) != DefaultProductionURL {
		t.Errorf("production base = %q", c.BaseURL(false))
	}
}
