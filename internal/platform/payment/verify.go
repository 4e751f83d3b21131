package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v76/webhook"
)

// Verifier authenticates a raw webhook body before it is parsed.
type Verifier interface {
	Verify(body []byte, h http.Header) bool
}

// HMACVerifier checks a hex HMAC-SHA256 of the raw body carried in Header.
// A "sha256=" prefix on the header value is accepted.
type HMACVerifier struct {
	Header string
	Secret []byte
}

func (v HMACVerifier) Verify(body []byte, h http.Header) bool {
	if len(v.Secret) == 0 {
		return false
	}
	got := strings.TrimSpace(h.Get(v.Header))
	got = strings.TrimPrefix(got, "sha256=")
	sig, err := hex.DecodeString(got)
	if err != nil || len(sig) == 0 {
		return false
	}
	return hmac.Equal(sig, Sign(body, v.Secret))
}

func Sign(body, secret []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}

// StripeVerifier validates the provider's timestamped Stripe-Signature header.
type StripeVerifier struct {
	Secret string
}

func (v StripeVerifier) Verify(body []byte, h http.Header) bool {
	if v.Secret == "" {
		return false
	}
	return webhook.ValidatePayload(body, h.Get("Stripe-Signature"), v.Secret) == nil
}

// NewVerifier picks the Stripe scheme when the configured header is Stripe's own.
func NewVerifier(header, secret string) Verifier {
	if strings.EqualFold(header, "Stripe-Signature") {
		return StripeVerifier{Secret: secret}
	}
	return HMACVerifier{Header: header, Secret: []byte(secret)}
}
