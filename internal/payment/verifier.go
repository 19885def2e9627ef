package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/rotisserie/eris"
)

// Verifier checks that a payment callback was signed by the provider.
//
// The provider signs orderID + "|" + paymentID with HMAC-SHA256 under the
// merchant key secret and hex-encodes the digest.
type Verifier struct {
	secret []byte
}

// NewVerifier constructs a Verifier for the provider key secret.
func NewVerifier(secret string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, eris.New("payment key secret is required")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Sign computes the signature the provider would issue for the pair.
func (v *Verifier) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches the pair. It never errors and
// compares the full digest in constant time.
func (v *Verifier) Verify(orderID, paymentID, signature string) bool {
	expected := v.Sign(orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
