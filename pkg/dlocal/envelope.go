/**
 * @description
 * This file defines the uniform result envelope returned by every dLocal
 * operation, and the normalization of raw HTTP results into it. A completed
 * exchange yields an envelope keyed off the HTTP status class; a transport
 * failure (connection, timeout, DNS) yields an envelope with the failure text
 * instead of raising. Callers never need to distinguish an exception from a
 * structured failure.
 *
 * @dependencies
 * - encoding/json, io, net/http: Standard Go libraries.
 */
package dlocal

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// Envelope is the uniform outcome of a dLocal call. Success reflects the HTTP
// status class (2xx) of a completed exchange and is false for transport
// failures and remote rejections alike. The reconciliation annotations
// (SavedLocally, LocalID, SaveError) are filled in after the ledger merge.
type Envelope struct {
	Success         bool              `json:"success"`
	StatusCode      int               `json:"status_code,omitempty"`
	Response        map[string]any    `json:"response,omitempty"`
	ResponseHeaders map[string]string `json:"response_headers"`
	HeadersSent     map[string]string `json:"headers_sent,omitempty"`
	Signature       string            `json:"signature,omitempty"`
	Date            string            `json:"date,omitempty"`
	BodySent        any               `json:"body_sent,omitempty"`
	RequestURL      string            `json:"request_url,omitempty"`
	Error           string            `json:"error,omitempty"`

	SavedLocally bool   `json:"saved_locally,omitempty"`
	LocalID      string `json:"local_id,omitempty"`
	SaveError    string `json:"save_error,omitempty"`
}

// newEnvelope normalizes a completed HTTP exchange. The response body is
// parsed as a JSON object when possible; anything else (including invalid
// JSON and top-level arrays) is preserved under a "raw" key so the caller
// still sees what the provider sent.
func newEnvelope(resp *http.Response, sent http.Header, signature, date string, bodySent any, requestURL string) *Envelope {
	raw, readErr := io.ReadAll(resp.Body)

	parsed := map[string]any{}
	if readErr == nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, &parsed); err != nil {
			parsed = map[string]any{"raw": string(raw)}
		}
	}

	return &Envelope{
		Success:         resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode:      resp.StatusCode,
		Response:        parsed,
		ResponseHeaders: flattenHeaders(resp.Header),
		HeadersSent:     redactedHeaders(sent),
		Signature:       signature,
		Date:            date,
		BodySent:        bodySent,
		RequestURL:      requestURL,
	}
}

// newTransportFailure wraps a transport-level error. No status code, an empty
// response header map, and the failure description; success is always false.
func newTransportFailure(err error, sent http.Header, signature, date string, bodySent any, requestURL string) *Envelope {
	return &Envelope{
		Success:         false,
		ResponseHeaders: map[string]string{},
		HeadersSent:     redactedHeaders(sent),
		Signature:       signature,
		Date:            date,
		BodySent:        bodySent,
		RequestURL:      requestURL,
		Error:           err.Error(),
	}
}

// ResponseString returns the string value under key in the response body, or
// "" when absent or not a string.
func (e *Envelope) ResponseString(key string) string {
	if e.Response == nil {
		return ""
	}
	s, _ := e.Response[key].(string)
	return s
}

// ClientID digs out attributes.client.id from a verification response, the
// field the provider uses for the resolved user identity.
func (e *Envelope) ClientID() string {
	attrs, _ := e.Response["attributes"].(map[string]any)
	client, _ := attrs["client"].(map[string]any)
	id, _ := client["id"].(string)
	return id
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = strings.Join(v, ", ")
	}
	return out
}

// redactedHeaders copies the outbound headers minus the Authorization
// credential, which never leaves the process through an envelope.
func redactedHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if http.CanonicalHeaderKey(k) == "Authorization" {
			continue
		}
		out[k] = strings.Join(v, ", ")
	}
	return out
}
