package auth

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"
	"time"
)

func TestAPIKeyLifecycle(t *testing.T) {
	// Before Init: everything is disabled.
	if Enabled() {
		t.Fatal("auth must start disabled")
	}
	if _, err := GenerateAPIKey("athlete-1", nil); err == nil {
		t.Error("expected error generating a key without a key pair")
	}
	if _, err := VerifyAPIKey("svk_whatever"); err == nil {
		t.Error("expected error verifying a key without a key pair")
	}

	seed := bytes.Repeat([]byte{0x42}, 32)
	t.Setenv("API_KEY_PRIVATE_KEY", base64.StdEncoding.EncodeToString(seed))
	if err := Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if !Enabled() {
		t.Fatal("auth must be enabled after Init")
	}

	key, err := GenerateAPIKey("athlete-1", nil)
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	if !strings.HasPrefix(key, "svk_") {
		t.Errorf("key missing svk_ prefix: %s", key)
	}

	subject, err := VerifyAPIKey(key)
	if err != nil {
		t.Fatalf("VerifyAPIKey: %v", err)
	}
	if subject != "athlete-1" {
		t.Errorf("subject = %q, want athlete-1", subject)
	}

	// Missing prefix
	if _, err := VerifyAPIKey(strings.TrimPrefix(key, "svk_")); err == nil {
		t.Error("expected error for key without prefix")
	}

	// Tampered payload
	tampered := key[:len(key)-2] + "xx"
	if _, err := VerifyAPIKey(tampered); err == nil {
		t.Error("expected error for tampered key")
	}

	// Expired key
	past := time.Now().Add(-time.Hour)
	expired, err := GenerateAPIKey("athlete-1", &past)
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	if _, err := VerifyAPIKey(expired); err == nil {
		t.Error("expected error for expired key")
	}

	// JWKS carries the public key
	jwks := JWKS()
	keys, ok := jwks["keys"].([]interface{})
	if !ok || len(keys) != 1 {
		t.Fatalf("unexpected JWKS payload: %v", jwks)
	}
	jwk := keys[0].(map[string]interface{})
	if jwk["kid"] != "stravist-api-key-v1" || jwk["alg"] != "EdDSA" {
		t.Errorf("unexpected JWK: %v", jwk)
	}
}

func TestInitRejectsBadKeys(t *testing.T) {
	t.Setenv("API_KEY_PRIVATE_KEY", "not-base64!!!")
	if err := Init(); err == nil {
		t.Error("expected error for invalid base64")
	}

	t.Setenv("API_KEY_PRIVATE_KEY", base64.StdEncoding.EncodeToString([]byte("short")))
	if err := Init(); err == nil {
		t.Error("expected error for wrong key size")
	}
}
