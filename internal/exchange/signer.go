package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"
)

// Signer holds one credential slot and signs REST requests with it. Keys
// are stored as []byte so Wipe can zero them on a key-slot rotation.
type Signer struct {
	apiKey     []byte
	apiSecret  []byte
	passphrase []byte
}

// NewSigner builds a Signer from string credentials.
func NewSigner(apiKey, apiSecret, passphrase string) *Signer {
	return &Signer{
		apiKey:     []byte(apiKey),
		apiSecret:  []byte(apiSecret),
		passphrase: []byte(passphrase),
	}
}

// Wipe zeroes the signer's key material. Called when the Gate rotates to
// a different key slot.
func (s *Signer) Wipe() {
	if s == nil {
		return
	}
	wipe(s.apiKey)
	wipe(s.apiSecret)
	wipe(s.passphrase)
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Headers builds the signed headers for one request: timestamp + method +
// path + query + body, HMAC-SHA256'd with the secret and base64-encoded.
func (s *Signer) Headers(method, path, query, body string) map[string]string {
	timestamp := fmt.Sprintf("%d", time.Now().UnixMilli())
	payload := timestamp + method + path + query + body
	signature := s.sign(payload)

	h := map[string]string{
		"ACCESS-KEY":       string(s.apiKey),
		"ACCESS-SIGN":      signature,
		"ACCESS-TIMESTAMP": timestamp,
		"Content-Type":     "application/json",
	}
	if len(s.passphrase) > 0 {
		h["ACCESS-PASSPHRASE"] = string(s.passphrase)
	}
	return h
}

func (s *Signer) sign(payload string) string {
	mac := hmac.New(sha256.New, s.apiSecret)
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
