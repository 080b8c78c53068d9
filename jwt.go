package nextauth

import (
	"crypto/sha256"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

// Token purposes. Keys are derived per purpose so a session token can never
// be replayed as a handshake cookie payload or vice versa.
const (
	purposeSession   = "session-token"
	purposeHandshake = "handshake-token"
)

// deriveKey stretches a configured secret into a 32-byte signing key bound
// to a purpose label.
func deriveKey(secret, purpose string) ([]byte, error) {
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(purpose))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}
	return key, nil
}

// EncodeToken serializes claims into a signed compact token using the newest
// secret. Issued-at and expiry are stamped from maxAge; any exp already in
// the claims is overwritten.
func EncodeToken(secrets []string, claims jwt.MapClaims, maxAge time.Duration) (string, error) {
	return encodeWithPurpose(secrets, claims, maxAge, purposeSession)
}

// DecodeToken tries each secret newest-first and returns the claims of the
// first successful verification. A nil result means "not authenticated", not
// a hard failure: absent, tampered and expired tokens all decode to nil.
func DecodeToken(secrets []string, tokenStr string) jwt.MapClaims {
	return decodeWithPurpose(secrets, tokenStr, purposeSession)
}

func encodeWithPurpose(secrets []string, claims jwt.MapClaims, maxAge time.Duration, purpose string) (string, error) {
	if len(secrets) == 0 {
		return "", NewError(ErrMissingSecret, "no signing secret configured")
	}
	key, err := deriveKey(secrets[0], purpose)
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims["iat"] = now.Unix()
	claims["exp"] = now.Add(maxAge).Unix()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(key)
	if err != nil {
		return "", WrapError(ErrSessionToken, err)
	}
	return signed, nil
}

func decodeWithPurpose(secrets []string, tokenStr, purpose string) jwt.MapClaims {
	if tokenStr == "" {
		return nil
	}
	for _, secret := range secrets {
		key, err := deriveKey(secret, purpose)
		if err != nil {
			continue
		}
		tok, err := jwt.Parse(tokenStr,
			func(t *jwt.Token) (any, error) { return key, nil },
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		)
		if err != nil || !tok.Valid {
			continue
		}
		if claims, ok := tok.Claims.(jwt.MapClaims); ok {
			return claims
		}
	}
	return nil
}

// encodePayload wraps a small handshake payload (state value, PKCE verifier,
// nonce) in the same signed envelope as session tokens, with the 15-minute
// handshake lifetime.
func encodePayload(secrets []string, payload jwt.MapClaims) (string, error) {
	return encodeWithPurpose(secrets, payload, handshakeMaxAge, purposeHandshake)
}

// decodePayload recovers a handshake payload, trying each secret in order.
func decodePayload(secrets []string, tokenStr string) jwt.MapClaims {
	return decodeWithPurpose(secrets, tokenStr, purposeHandshake)
}
