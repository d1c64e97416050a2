package dlocal

import (
	"regexp"
	"testing"
	"time"
)

var hexDigest = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestSignRequestShape(t *testing.T) {
	sig := SignRequest("login", "secret", "2026-01-02T03:04:05.000Z", `{"a":1}`)
	if !hexDigest.MatchString(sig) {
		t.Fatalf("signature %q is not 64 lowercase hex chars", sig)
	}
}

func TestSignRequestDeterministic(t *testing.T) {
	a := SignRequest("login", "secret", "2026-01-02T03:04:05.000Z", `{"a":1}`)
	b := SignRequest("login", "secret", "2026-01-02T03:04:05.000Z", `{"a":1}`)
	if a != b {
		t.Fatal("same inputs must produce the same signature")
	}
}

func TestSignRequestSensitivity(t *testing.T) {
	base := SignRequest("login", "secret", "2026-01-02T03:04:05.000Z", `{"a":1}`)
	tests := []struct {
		name string
		sig  string
	}{
		{"login changed", SignRequest("login2", "secret", "2026-01-02T03:04:05.000Z", `{"a":1}`)},
		{"key changed", SignRequest("login", "secret2", "2026-01-02T03:04:05.000Z", `{"a":1}`)},
		{"date changed", SignRequest("login", "secret", "2026-01-02T03:04:06.000Z", `{"a":1}`)},
		{"body changed", SignRequest("login", "secret", "2026-01-02T03:04:05.000Z", `{"a":2}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.sig == base {
				t.Fatal("signature did not change with input")
			}
		})
	}
}

// The request mode is the payload mode applied to login || date || body. This
// pins the concatenation order without reimplementing the HMAC in the test.
func TestSignRequestMatchesConcatenatedPayload(t *testing.T) {
	login, key, date, body := "login", "secret", "2026-01-02T03:04:05.000Z", `{"a":1}`
	if SignRequest(login, key, date, body) != SignPayload(key, login+date+body) {
		t.Fatal("request signature must cover login || date || body")
	}
}

func TestSignPayloadIgnoresLoginAndDate(t *testing.T) {
	a := SignPayload("secret", `{"amount":"10.00"}`)
	b := SignPayload("secret", `{"amount":"10.00"}`)
	if a != b {
		t.Fatal("payload signature must be deterministic")
	}
	if !hexDigest.MatchString(a) {
		t.Fatalf("signature %q is not 64 lowercase hex chars", a)
	}
}

func TestISODate(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 89_000_000, time.FixedZone("ART", -3*3600))
	got := ISODate(at)
	if got != "2026-03-04T08:06:07.089Z" {
		t.Fatalf("ISODate = %q", got)
	}
}

func TestHTTPDate(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	got := HTTPDate(at)
	if got != "Wed, 04 Mar 2026 05:06:07 GMT" {
		t.Fatalf("HTTPDate = %q", got)
	}
}

func TestCredentialsComplete(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
		want  bool
	}{
		{"all present", Credentials{Login: "l", TransactionKey: "t", SecretKey: "s"}, true},
		{"missing login", Credentials{TransactionKey: "t", SecretKey: "s"}, false},
		{"missing trans key", Credentials{Login: "l", SecretKey: "s"}, false},
		{"missing secret", Credentials{Login: "l", TransactionKey: "t"}, false},
		{"empty", Credentials{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.creds.Complete() != tt.want {
				t.Fatalf("Complete() = %v, want %v", !tt.want, tt.want)
			}
		})
	}
}
