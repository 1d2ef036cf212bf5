package auth

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// apiKeyPrefix marks Stravist API keys so leaked tokens are recognizable.
const apiKeyPrefix = "svk_"

// KeyPair holds the Ed25519 signing key pair for JWT API keys.
type KeyPair struct {
	PrivateKey ed25519.PrivateKey
	PublicKey  ed25519.PublicKey
	KID        string // Key ID for JWKS
}

var keyPair *KeyPair

// Init loads the Ed25519 private key from the API_KEY_PRIVATE_KEY environment
// variable. The key must be base64-encoded (64-byte private key or 32-byte
// seed). When the variable is unset the MCP endpoint runs without API key
// auth, which is the expected single-user local deployment.
func Init() error {
	encoded := os.Getenv("API_KEY_PRIVATE_KEY")
	if encoded == "" {
		log.Printf("[auth] API_KEY_PRIVATE_KEY not set, API key auth disabled")
		return nil
	}

	seed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("failed to decode API_KEY_PRIVATE_KEY: %w", err)
	}

	var privKey ed25519.PrivateKey
	switch len(seed) {
	case ed25519.SeedSize: // 32 bytes — seed only
		privKey = ed25519.NewKeyFromSeed(seed)
	case ed25519.PrivateKeySize: // 64 bytes — full private key
		privKey = ed25519.PrivateKey(seed)
	default:
		return fmt.Errorf("invalid key size: %d (expected 32 or 64)", len(seed))
	}

	keyPair = &KeyPair{
		PrivateKey: privKey,
		PublicKey:  privKey.Public().(ed25519.PublicKey),
		KID:        "stravist-api-key-v1",
	}

	log.Printf("[auth] Ed25519 key pair loaded (kid: %s)", keyPair.KID)
	return nil
}

// Enabled reports whether API key auth is configured.
func Enabled() bool {
	return keyPair != nil
}

// GetKeyPair returns the loaded key pair, or nil if not initialized.
func GetKeyPair() *KeyPair {
	return keyPair
}

// GenerateAPIKey creates a signed API key for the given subject.
func GenerateAPIKey(subject string, expiresAt *time.Time) (string, error) {
	if keyPair == nil {
		return "", fmt.Errorf("signing key not configured")
	}

	claims := jwt.MapClaims{
		"sub": subject,
		"iat": time.Now().Unix(),
	}
	if expiresAt != nil {
		claims["exp"] = expiresAt.Unix()
	}

	token := jwt.NewWithClaims(&jwt.SigningMethodEd25519{}, claims)
	token.Header["kid"] = keyPair.KID

	signed, err := token.SignedString(keyPair.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign API key: %w", err)
	}

	return apiKeyPrefix + signed, nil
}

// VerifyAPIKey validates a presented API key and returns its subject.
func VerifyAPIKey(key string) (string, error) {
	if keyPair == nil {
		return "", fmt.Errorf("API key verification not configured")
	}

	raw := strings.TrimPrefix(key, apiKeyPrefix)
	if raw == key {
		return "", fmt.Errorf("invalid API key format")
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return keyPair.PublicKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid API key: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid API key")
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("API key has no subject")
	}
	return subject, nil
}

// JWKS returns the JSON Web Key Set payload for the public key, for clients
// that verify keys themselves. Empty key set when auth is disabled.
func JWKS() map[string]interface{} {
	if keyPair == nil {
		return map[string]interface{}{"keys": []interface{}{}}
	}
	jwk := map[string]interface{}{
		"kty": "OKP",
		"crv": "Ed25519",
		"x":   base64.RawURLEncoding.EncodeToString(keyPair.PublicKey),
		"kid": keyPair.KID,
		"use": "sig",
		"alg": "EdDSA",
	}
	return map[string]interface{}{"keys": []interface{}{jwk}}
}
