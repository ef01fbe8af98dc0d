package credential

import (
	"encoding/base64"
	"testing"
)

func TestDecryptKeyRoundTrip(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	iv := []byte("fedcba9876543210")

	for _, secret := range []string{"sk-test-1234567890", "exactly16bytes!!", ""} {
		ct, err := EncryptKey(secret, key, iv)
		if err != nil {
			t.Fatalf("EncryptKey(%q): %v", secret, err)
		}
		got, err := DecryptKey(ct, base64.StdEncoding.EncodeToString(key), base64.StdEncoding.EncodeToString(iv))
		if err != nil {
			t.Fatalf("DecryptKey(%q): %v", secret, err)
		}
		if got != secret {
			t.Errorf("round trip = %q, want %q", got, secret)
		}
	}
}

func TestDecryptKeyErrors(t *testing.T) {
	key := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef"))
	iv := base64.StdEncoding.EncodeToString([]byte("fedcba9876543210"))

	tests := []struct {
		name      string
		ct, k, iv string
	}{
		{"bad base64", "!!!", key, iv},
		{"short iv", base64.StdEncoding.EncodeToString(make([]byte, 16)), key, base64.StdEncoding.EncodeToString([]byte("short"))},
		{"bad key size", base64.StdEncoding.EncodeToString(make([]byte, 16)), base64.StdEncoding.EncodeToString([]byte("k")), iv},
		{"partial block", base64.StdEncoding.EncodeToString(make([]byte, 10)), key, iv},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecryptKey(tt.ct, tt.k, tt.iv); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestMaskKey(t *testing.T) {
	tests := map[string]string{
		"":            "",
		"abc":         "***",
		"sk-12345678": "*******5678",
	}
	for in, want := range tests {
		if got := MaskKey(in); got != want {
			t.Errorf("MaskKey(%q) = %q, want %q", in, got, want)
		}
	}
}
