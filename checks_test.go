package nextauth

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestStateRoundTrip(t *testing.T) {
	secrets := []string{"secret"}
	value, cookie, err := createState(secrets, "auth.state", false)
	if err != nil {
		t.Fatalf("createState: %v", err)
	}
	if value == "" || cookie.Value == "" {
		t.Fatal("state value and cookie must be populated")
	}
	if cookie.Options.MaxAge > int(handshakeMaxAge.Seconds()) {
		t.Fatalf("state cookie lives too long: %d", cookie.Options.MaxAge)
	}

	resp := &Response{}
	got, err := useState(secrets, map[string]string{"auth.state": cookie.Value}, "auth.state", false, resp)
	if err != nil {
		t.Fatalf("useState: %v", err)
	}
	if got != value {
		t.Fatalf("state mismatch: %q != %q", got, value)
	}
	assertClearing(t, resp, "auth.state")
}

func TestUseStateFailures(t *testing.T) {
	secrets := []string{"secret"}

	t.Run("missing cookie", func(t *testing.T) {
		resp := &Response{}
		_, err := useState(secrets, map[string]string{}, "auth.state", false, resp)
		if !IsKind(err, ErrInvalidState) {
			t.Fatalf("want InvalidState, got %v", err)
		}
	})

	t.Run("garbage cookie still cleared", func(t *testing.T) {
		resp := &Response{}
		_, err := useState(secrets, map[string]string{"auth.state": "garbage"}, "auth.state", false, resp)
		if !IsKind(err, ErrInvalidState) {
			t.Fatalf("want InvalidState, got %v", err)
		}
		assertClearing(t, resp, "auth.state")
	})

	t.Run("expired cookie", func(t *testing.T) {
		expired, err := encodeWithPurpose(secrets, jwt.MapClaims{"value": "v"}, -handshakeMaxAge, purposeHandshake)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		resp := &Response{}
		_, err = useState(secrets, map[string]string{"auth.state": expired}, "auth.state", false, resp)
		if !IsKind(err, ErrInvalidState) {
			t.Fatalf("want InvalidState, got %v", err)
		}
		assertClearing(t, resp, "auth.state")
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, cookie, err := createState([]string{"other"}, "auth.state", false)
		if err != nil {
			t.Fatalf("createState: %v", err)
		}
		resp := &Response{}
		_, err = useState(secrets, map[string]string{"auth.state": cookie.Value}, "auth.state", false, resp)
		if !IsKind(err, ErrInvalidState) {
			t.Fatalf("want InvalidState, got %v", err)
		}
	})
}

func TestPKCEChallengeDeterminism(t *testing.T) {
	verifier := "some-code-verifier-value"
	h := sha256.Sum256([]byte(verifier))
	want := base64.RawURLEncoding.EncodeToString(h[:])
	if got := pkceChallenge(verifier); got != want {
		t.Fatalf("challenge mismatch: %q != %q", got, want)
	}
}

func TestPKCERoundTrip(t *testing.T) {
	secrets := []string{"secret"}
	challenge, cookie, err := createPKCE(secrets, "auth.pkce.code_verifier", false)
	if err != nil {
		t.Fatalf("createPKCE: %v", err)
	}

	resp := &Response{}
	verifier := usePKCECodeVerifier(secrets, map[string]string{"auth.pkce.code_verifier": cookie.Value}, "auth.pkce.code_verifier", false, resp)
	if verifier == "" {
		t.Fatal("verifier not recovered")
	}
	if pkceChallenge(verifier) != challenge {
		t.Fatal("recovered verifier does not match issued challenge")
	}
	assertClearing(t, resp, "auth.pkce.code_verifier")

	// Absent cookie yields "" and no clearing cookie.
	resp = &Response{}
	if usePKCECodeVerifier(secrets, map[string]string{}, "auth.pkce.code_verifier", false, resp) != "" {
		t.Fatal("missing cookie must yield empty verifier")
	}
	if len(resp.Cookies) != 0 {
		t.Fatal("nothing to clear when no cookie was sent")
	}
}

func assertClearing(t *testing.T, resp *Response, name string) {
	t.Helper()
	for _, c := range resp.Cookies {
		if c.Name == name && c.Options.MaxAge < 0 && c.Value == "" {
			return
		}
	}
	t.Fatalf("no clearing cookie for %s in %+v", name, resp.Cookies)
}
