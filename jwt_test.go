package nextauth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenRoundTrip(t *testing.T) {
	secrets := []string{"secret-a"}
	token, err := EncodeToken(secrets, jwt.MapClaims{"sub": "user-1", "email": "a@b.com"}, time.Hour)
	if err != nil {
		t.Fatalf("EncodeToken: %v", err)
	}

	claims := DecodeToken(secrets, token)
	if claims == nil {
		t.Fatal("decode returned nil for a valid token")
	}
	if claims["sub"] != "user-1" || claims["email"] != "a@b.com" {
		t.Fatalf("claims mangled: %v", claims)
	}
}

func TestSecretRotation(t *testing.T) {
	old := []string{"old-secret"}
	token, err := EncodeToken(old, jwt.MapClaims{"sub": "user-1"}, time.Hour)
	if err != nil {
		t.Fatalf("EncodeToken: %v", err)
	}

	// Prepending a new secret keeps old sessions valid.
	rotated := []string{"new-secret", "old-secret"}
	if DecodeToken(rotated, token) == nil {
		t.Fatal("token signed with old secret must decode after rotation")
	}

	// A secret outside the list yields nil, not an error.
	if DecodeToken([]string{"unrelated"}, token) != nil {
		t.Fatal("token must not decode without its secret in the list")
	}

	// New tokens are signed with the newest secret only.
	fresh, err := EncodeToken(rotated, jwt.MapClaims{"sub": "user-2"}, time.Hour)
	if err != nil {
		t.Fatalf("EncodeToken: %v", err)
	}
	if DecodeToken([]string{"new-secret"}, fresh) == nil {
		t.Fatal("fresh token must verify with the newest secret alone")
	}
	if DecodeToken([]string{"old-secret"}, fresh) != nil {
		t.Fatal("fresh token must not verify with the old secret")
	}
}

func TestDecodeEdgeCases(t *testing.T) {
	secrets := []string{"secret"}

	if DecodeToken(secrets, "") != nil {
		t.Fatal("empty token must decode to nil")
	}
	if DecodeToken(secrets, "not.a.token") != nil {
		t.Fatal("garbage must decode to nil")
	}

	expired, err := encodeWithPurpose(secrets, jwt.MapClaims{"sub": "user-1"}, -time.Minute, purposeSession)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if DecodeToken(secrets, expired) != nil {
		t.Fatal("expired token must decode to nil")
	}
}

func TestPurposeSeparation(t *testing.T) {
	secrets := []string{"secret"}
	payload, err := encodePayload(secrets, jwt.MapClaims{"value": "abc"})
	if err != nil {
		t.Fatalf("encodePayload: %v", err)
	}
	if DecodeToken(secrets, payload) != nil {
		t.Fatal("handshake payload must not decode as a session token")
	}
	if decodePayload(secrets, payload) == nil {
		t.Fatal("handshake payload must decode with the handshake purpose")
	}
}

func TestEncodeRequiresSecret(t *testing.T) {
	_, err := EncodeToken(nil, jwt.MapClaims{}, time.Hour)
	if !IsKind(err, ErrMissingSecret) {
		t.Fatalf("want MissingSecret, got %v", err)
	}
}
