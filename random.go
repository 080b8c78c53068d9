package nextauth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// randomToken returns a cryptographically secure 32-byte random value,
// base64url-encoded without padding. Used for CSRF tokens, OAuth state,
// nonces and PKCE code verifiers.
func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
