/**
 * @description
 * This package provides a client for the dLocal Remittances APIs: KYC
 * verifications and documents, payments, and payouts. It encapsulates body
 * serialization, the two signing modes, header assembly, and endpoint
 * selection, and returns a uniform Envelope for every call. Transport errors
 * are folded into the envelope rather than returned, so callers handle one
 * result shape.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, io, mime/multipart, net/http, net/url,
 *   time: Standard Go libraries.
 */
package dlocal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"time"
)

// Default API hosts. Either can be overridden through the client fields, which
// the tests use to point at a local server.
const (
	DefaultSandboxURL    = "https://sandbox.dlocal.com"
	DefaultProductionURL = "https://api.dlocal.com"
)

// Client is a client for the dLocal APIs. The sandbox/production split is a
// per-call decision, not a per-client one, because the console lets every
// request pick its environment.
type Client struct {
	SandboxURL    string
	ProductionURL string
	HTTPClient    *http.Client

	// Now supplies the timestamps used for signing. Overridable in tests.
	Now func() time.Time
}

// NewClient creates a dLocal client with the given base URLs. Empty values
// fall back to the public hosts.
func NewClient(sandboxURL, productionURL string, timeout time.Duration) *Client {
	if sandboxURL == "" {
		sandboxURL = DefaultSandboxURL
	}
	if productionURL == "" {
		productionURL = DefaultProductionURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		SandboxURL:    sandboxURL,
		ProductionURL: productionURL,
		HTTPClient:    &http.Client{Timeout: timeout},
		Now:           time.Now,
	}
}

// BaseURL returns the host for the selected environment.
func (c *Client) BaseURL(sandbox bool) string {
	if sandbox {
		return c.SandboxURL
	}
	return c.ProductionURL
}

// CreateVerification submits a KYC verification. The body travels as a
// multipart form field named "body" holding the exact JSON string that was
// signed.
func (c *Client) CreateVerification(ctx context.Context, creds Credentials, sandbox bool, body any) *Envelope {
	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return newTransportFailure(err, nil, "", "", body, "")
	}

	date := ISODate(c.Now())
	signature := SignRequest(creds.Login, creds.SecretKey, date, string(bodyJSON))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	partHeader := textproto.MIMEHeader{}
	partHeader.Set("Content-Disposition", `form-data; name="body"`)
	partHeader.Set("Content-Type", "text/plain")
	part, err := mw.CreatePart(partHeader)
	if err == nil {
		_, err = part.Write(bodyJSON)
	}
	if err == nil {
		err = mw.Close()
	}
	if err != nil {
		return newTransportFailure(err, nil, signature, date, body, "")
	}

	reqURL := c.BaseURL(sandbox) + "/kyc/verifications"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, &buf)
	if err != nil {
		return newTransportFailure(err, nil, signature, date, body, reqURL)
	}
	c.setRequestHeaders(req, creds, date, signature)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return c.send(req, signature, date, body)
}

// GetVerification fetches a verification. client_data is always included so
// the resolved user identity (attributes.client.id) comes back with it.
func (c *Client) GetVerification(ctx context.Context, creds Credentials, sandbox bool, verificationID string) *Envelope {
	path := fmt.Sprintf("/kyc/verifications/%s?include=client_data", url.PathEscape(verificationID))
	return c.signedRequest(ctx, creds, sandbox, http.MethodGet, path, nil)
}

// ListDocuments fetches the documents attached to a verification.
func (c *Client) ListDocuments(ctx context.Context, creds Credentials, sandbox bool, verificationID string) *Envelope {
	path := fmt.Sprintf("/kyc/verifications/%s/documents", url.PathEscape(verificationID))
	return c.signedRequest(ctx, creds, sandbox, http.MethodGet, path, nil)
}

// UploadDocument PATCHes a document file onto a verification document slot.
// The request is signed over the empty body; the file travels as a multipart
// part named "file".
func (c *Client) UploadDocument(ctx context.Context, creds Credentials, sandbox bool, verificationID, documentID, filename, contentType string, file io.Reader) *Envelope {
	date := ISODate(c.Now())
	signature := SignRequest(creds.Login, creds.SecretKey, date, "")
	bodySent := map[string]any{"file": filename}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	partHeader := textproto.MIMEHeader{}
	partHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if contentType != "" {
		partHeader.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(partHeader)
	if err == nil {
		_, err = io.Copy(part, file)
	}
	if err == nil {
		err = mw.Close()
	}
	if err != nil {
		return newTransportFailure(err, nil, signature, date, bodySent, "")
	}

	reqURL := fmt.Sprintf("%s/kyc/verifications/%s/documents/%s",
		c.BaseURL(sandbox), url.PathEscape(verificationID), url.PathEscape(documentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, reqURL, &buf)
	if err != nil {
		return newTransportFailure(err, nil, signature, date, bodySent, reqURL)
	}
	c.setRequestHeaders(req, creds, date, signature)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return c.send(req, signature, date, bodySent)
}

// UpdateVerificationState forces a sandbox state transition. The provider's
// path really is "sanbox-tools"; the typo is theirs and load-bearing.
func (c *Client) UpdateVerificationState(ctx context.Context, creds Credentials, sandbox bool, verificationID string, body StateUpdateBody) *Envelope {
	path := fmt.Sprintf("/kyc/sanbox-tools/verifications/%s", url.PathEscape(verificationID))
	return c.signedRequest(ctx, creds, sandbox, http.MethodPatch, path, body)
}

// CreatePayment posts a payment body to the path chosen by the composer
// (standard or secure endpoint).
func (c *Client) CreatePayment(ctx context.Context, creds Credentials, sandbox bool, path string, body PaymentBody) *Envelope {
	return c.signedRequest(ctx, creds, sandbox, http.MethodPost, path, body)
}

// GetPayment fetches full payment information from the details endpoint.
func (c *Client) GetPayment(ctx context.Context, creds Credentials, sandbox bool, paymentID string) *Envelope {
	path := fmt.Sprintf("/payments/%s/details", url.PathEscape(paymentID))
	return c.signedRequest(ctx, creds, sandbox, http.MethodGet, path, nil)
}

// CreatePayout submits a payout through the Payouts API. This sub-API uses
// the payload signing mode: an HMAC over the body alone in a
// payload-signature header, an RFC 1123 X-Date, and no Authorization header.
func (c *Client) CreatePayout(ctx context.Context, creds Credentials, sandbox bool, body PayoutBody) *Envelope {
	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return newTransportFailure(err, nil, "", "", body, "")
	}

	date := HTTPDate(c.Now())
	signature := SignPayload(creds.SecretKey, string(bodyJSON))

	reqURL := c.BaseURL(sandbox) + "/api_curl/cashout_api/request_cashout"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(bodyJSON))
	if err != nil {
		return newTransportFailure(err, nil, signature, date, body, reqURL)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Date", date)
	req.Header.Set("X-Login", creds.Login)
	req.Header.Set("X-Trans-Key", creds.TransactionKey)
	req.Header.Set("payload-signature", signature)

	return c.send(req, signature, date, body)
}

// signedRequest executes a request in the standard signing mode. A nil body
// means a bodiless request signed over the empty string.
func (c *Client) signedRequest(ctx context.Context, creds Credentials, sandbox bool, method, path string, body any) *Envelope {
	var bodyJSON []byte
	if body != nil {
		var err error
		bodyJSON, err = json.Marshal(body)
		if err != nil {
			return newTransportFailure(err, nil, "", "", body, "")
		}
	}

	date := ISODate(c.Now())
	signature := SignRequest(creds.Login, creds.SecretKey, date, string(bodyJSON))

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(bodyJSON)
	}
	reqURL := c.BaseURL(sandbox) + path
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return newTransportFailure(err, nil, signature, date, body, reqURL)
	}
	c.setRequestHeaders(req, creds, date, signature)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.send(req, signature, date, body)
}

func (c *Client) setRequestHeaders(req *http.Request, creds Credentials, date, signature string) {
	req.Header.Set("X-Date", date)
	req.Header.Set("X-Login", creds.Login)
	req.Header.Set("X-Trans-Key", creds.TransactionKey)
	req.Header.Set("Authorization", fmt.Sprintf("V2-HMAC-SHA256, Signature: %s", signature))
}

func (c *Client) send(req *http.Request, signature, date string, bodySent any) *Envelope {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return newTransportFailure(err, req.Header, signature, date, bodySent, req.URL.String())
	}
	defer resp.Body.Close()
	return newEnvelope(resp, req.Header, signature, date, bodySent, req.URL.String())
}
