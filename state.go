package nextauth

import "github.com/golang-jwt/jwt/v5"

// createState issues an OAuth state nonce. The raw value goes into the
// outbound authorization URL; the signed cookie is what survives the
// redirect round-trip.
func createState(secrets []string, name string, secure bool) (string, Cookie, error) {
	value, err := randomToken()
	if err != nil {
		return "", Cookie{}, err
	}
	encoded, err := encodePayload(secrets, jwt.MapClaims{"value": value})
	if err != nil {
		return "", Cookie{}, err
	}
	return value, handshakeCookie(name, encoded, secure), nil
}

// useState consumes the state cookie. The clearing cookie is appended before
// any validation so the artifact is single-use whatever the outcome. Callers
// compare the returned value against the state query parameter echoed by the
// provider.
func useState(secrets []string, cookies map[string]string, name string, secure bool, resp *Response) (string, error) {
	raw := readCookie(cookies, name)
	if raw == "" {
		return "", NewError(ErrInvalidState, "state cookie missing")
	}
	resp.Cookies = append(resp.Cookies, clearCookie(name, secure))

	payload := decodePayload(secrets, raw)
	if payload == nil {
		return "", NewError(ErrInvalidState, "state cookie invalid or expired")
	}
	value, _ := payload["value"].(string)
	if value == "" {
		return "", NewError(ErrInvalidState, "state payload missing value")
	}
	return value, nil
}

// createNonce issues an OIDC nonce for providers whose checks include it.
// Same envelope and lifetime as state; the raw value is embedded in the
// authorization request and validated against the ID token by the exchanger.
func createNonce(secrets []string, name string, secure bool) (string, Cookie, error) {
	return createState(secrets, name, secure)
}

// useNonce consumes the nonce cookie, returning "" when the provider never
// set one.
func useNonce(secrets []string, cookies map[string]string, name string, secure bool, resp *Response) (string, error) {
	if readCookie(cookies, name) == "" {
		return "", nil
	}
	return useState(secrets, cookies, name, secure, resp)
}
