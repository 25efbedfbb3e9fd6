package exchange

import "testing"

func TestSigner_Headers(t *testing.T) {
	signer := NewSigner("key", "secret", "pass")

	headers := signer.Headers("POST", "/api/v1/order", "", `{"pair":"XBTUSD"}`)

	if headers["ACCESS-KEY"] != "key" {
		t.Errorf("ACCESS-KEY = %q, want key", headers["ACCESS-KEY"])
	}
	if headers["ACCESS-PASSPHRASE"] != "pass" {
		t.Errorf("ACCESS-PASSPHRASE = %q, want pass", headers["ACCESS-PASSPHRASE"])
	}
	if headers["ACCESS-SIGN"] == "" {
		t.Error("ACCESS-SIGN should not be empty")
	}
	if len(headers["ACCESS-TIMESTAMP"]) != 13 {
		t.Errorf("ACCESS-TIMESTAMP len = %d, want 13", len(headers["ACCESS-TIMESTAMP"]))
	}
}

func TestSigner_Headers_NoPassphrase(t *testing.T) {
	signer := NewSigner("key", "secret", "")
	headers := signer.Headers("GET", "/api/v1/balance", "", "")
	if _, ok := headers["ACCESS-PASSPHRASE"]; ok {
		t.Error("ACCESS-PASSPHRASE should be absent when no passphrase was configured")
	}
}

func TestSigner_Sign_KnownVector(t *testing.T) {
	key := "key"
	data := "The quick brown fox jumps over the lazy dog"
	expected := "97yD9DBThCSxMpjmqm+xQ+9NWaFJRhdZl0edvC0aPNg="

	signer := NewSigner("dummy", key, "dummy")

	result := signer.sign(data)
	if result != expected {
		t.Errorf("sign() = %q, want %q", result, expected)
	}
}

func TestSigner_Wipe(t *testing.T) {
	signer := NewSigner("key", "secret", "pass")
	signer.Wipe()

	for _, b := range [][]byte{signer.apiKey, signer.apiSecret, signer.passphrase} {
		for _, c := range b {
			if c != 0 {
				t.Fatal("Wipe() left nonzero key material")
			}
		}
	}
}
