package nextauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// CSRFToken is the outcome of inspecting the double-submit pair for one
// request. CookieValue is populated only when a fresh token had to be issued
// and a new cookie must be set on the response.
type CSRFToken struct {
	Token       string
	Verified    bool
	CookieValue string
}

// signCSRFToken computes the keyed hash binding a raw token to the newest
// secret. An attacker who can plant cookies but cannot read the secret
// cannot produce a valid token|hash pair.
func signCSRFToken(token, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// createCSRFToken implements the double-submit check. If the inbound cookie
// carries a validly signed token, that token is trusted and Verified reports
// whether a POST body echoed it back. Anything else (no cookie, bad hash)
// issues a fresh token. A valid cookie with a mismatched body token is
// treated as not verified, never as a reason to fall back to the body value.
func createCSRFToken(secret, cookieValue string, isPost bool, bodyValue string) (CSRFToken, error) {
	if cookieValue != "" {
		token, hash, found := strings.Cut(cookieValue, "|")
		if found && token != "" {
			expected := signCSRFToken(token, secret)
			if subtle.ConstantTimeCompare([]byte(expected), []byte(hash)) == 1 {
				verified := isPost && bodyValue != "" && subtle.ConstantTimeCompare([]byte(token), []byte(bodyValue)) == 1
				return CSRFToken{Token: token, Verified: verified}, nil
			}
		}
	}

	token, err := randomToken()
	if err != nil {
		return CSRFToken{}, err
	}
	return CSRFToken{
		Token:       token,
		CookieValue: token + "|" + signCSRFToken(token, secret),
	}, nil
}

// validateCSRF fails closed for state-mutating actions whose double-submit
// check did not pass.
func validateCSRF(action Action, verified bool) error {
	if verified {
		return nil
	}
	return &Error{Kind: ErrMissingCSRF, Message: "CSRF token missing or mismatched", Meta: map[string]any{"action": string(action)}}
}
