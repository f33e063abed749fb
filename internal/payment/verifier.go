package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var (
	ErrMissingFields     = errors.New("payment: missing verification fields")
	ErrSignatureMismatch = errors.New("payment: signature verification failed")
)

// Verifier checks gateway callbacks against the shared key secret. The HMAC
// over "<gateway order id>|<gateway payment id>" is the sole trust boundary
// between the storefront and the gateway; nothing else authenticates a
// callback.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify fails fast on missing fields, then compares digests in constant
// time.
func (v *Verifier) Verify(gatewayOrderID, gatewayPaymentID, signature string) error {
	if gatewayOrderID == "" || gatewayPaymentID == "" || signature == "" {
		return ErrMissingFields
	}
	if !hmac.Equal([]byte(v.Sign(gatewayOrderID, gatewayPaymentID)), []byte(signature)) {
		return ErrSignatureMismatch
	}
	return nil
}

// Sign computes the hex-encoded HMAC-SHA256 the gateway would produce.
func (v *Verifier) Sign(gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
