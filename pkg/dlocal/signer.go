/**
 * @description
 * This file implements the two signing modes used by the dLocal APIs. The
 * Payins/KYC APIs sign `login || date || body` and carry the result in the
 * Authorization header; the Payouts API signs the serialized body alone and
 * carries the result in a `payload-signature` header. The modes are exposed as
 * separately named functions so a caller must pick one explicitly.
 *
 * @dependencies
 * - crypto/hmac, crypto/sha256, encoding/hex: Standard Go libraries for HMAC-SHA256.
 * - net/http, time: Standard Go libraries for timestamp formatting.
 */
package dlocal

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"
)

// Credentials carries the per-request dLocal account credentials. They are
// supplied by the caller on every operation and are never persisted.
type Credentials struct {
	Login          string `json:"login"`
	TransactionKey string `json:"transaction_key"`
	SecretKey      string `json:"secret_key"`
}

// Complete reports whether all three credential parts are present.
func (c Credentials) Complete() bool {
	return c.Login != "" && c.TransactionKey != "" && c.SecretKey != ""
}

// SignRequest computes the V2-HMAC-SHA256 request signature over
// login || date || body, keyed by the secret key, and returns it as a
// lowercase hex digest. The body is the exact JSON string transmitted on the
// wire, or the empty string for bodiless requests. The date string must be the
// same one sent in the X-Date header.
func SignRequest(login, secretKey, date, body string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(login + date + body))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignPayload computes the Payouts API payload signature: HMAC-SHA256 over the
// serialized body only, keyed by the secret key, as a lowercase hex digest.
// No login or date is mixed in; this mode must never be used for the
// Payins/KYC endpoints.
func SignPayload(secretKey, body string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

// ISODate renders t in the ISO-8601 UTC form dLocal expects for the signed
// X-Date header: millisecond precision with a literal Z suffix.
func ISODate(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// HTTPDate renders t as an RFC 1123 GMT date, the X-Date format of the
// Payouts API request headers.
func HTTPDate(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}
