package nextauth

import (
	"crypto/sha256"
	"encoding/base64"

	"github.com/golang-jwt/jwt/v5"
)

// pkceChallengeMethod is the only challenge method supported. The plain
// method defeats the point of PKCE and is intentionally not negotiable.
const pkceChallengeMethod = "S256"

// pkceChallenge derives the S256 code challenge from a verifier.
func pkceChallenge(verifier string) string {
	h := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(h[:])
}

// createPKCE generates a code verifier, wraps it in a short-lived cookie and
// returns the derived challenge for the authorization URL.
func createPKCE(secrets []string, name string, secure bool) (challenge string, cookie Cookie, err error) {
	verifier, err := randomToken()
	if err != nil {
		return "", Cookie{}, err
	}
	encoded, err := encodePayload(secrets, jwt.MapClaims{"code_verifier": verifier})
	if err != nil {
		return "", Cookie{}, err
	}
	return pkceChallenge(verifier), handshakeCookie(name, encoded, secure), nil
}

// usePKCECodeVerifier consumes the verifier cookie for the token exchange.
// The clearing cookie is appended before validation; a missing or invalid
// cookie returns "" and the caller decides whether PKCE was required.
func usePKCECodeVerifier(secrets []string, cookies map[string]string, name string, secure bool, resp *Response) string {
	raw := readCookie(cookies, name)
	if raw == "" {
		return ""
	}
	resp.Cookies = append(resp.Cookies, clearCookie(name, secure))

	payload := decodePayload(secrets, raw)
	if payload == nil {
		return ""
	}
	verifier, _ := payload["code_verifier"].(string)
	return verifier
}
