package nextauth_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	nextauth "github.com/nextauthjs/next-auth-sub011"
	"github.com/nextauthjs/next-auth-sub011/stores"
)

func passwordProvider() *nextauth.CredentialsProvider {
	return &nextauth.CredentialsProvider{
		ID: "creds", Name: "Password",
		Authorize: func(ctx context.Context, creds map[string]string) (*nextauth.User, error) {
			return &nextauth.User{ID: "u1", Name: "Pat", Email: "pat@example.com"}, nil
		},
	}
}

// signIn performs a verified credentials sign-in and leaves the session
// cookie in the client's jar.
func signIn(t *testing.T, c *client) {
	t.Helper()
	token := c.csrfToken()
	res := c.postForm(testOrigin+"/auth/callback/creds", url.Values{
		"csrfToken": {token}, "username": {"pat@example.com"}, "password": {"hunter2"},
	})
	if loc := location(t, res); loc.Query().Get("error") != "" {
		t.Fatalf("sign-in failed: %s", loc)
	}
	if c.cookies["auth.session-token"] == "" {
		t.Fatal("no session cookie after sign-in")
	}
}

func TestSignOutJWT(t *testing.T) {
	_, c := newTestAuth(t, func(cfg *nextauth.Config) {
		cfg.Providers = []nextauth.Provider{passwordProvider()}
	})
	signIn(t, c)

	token := c.csrfToken()
	res := c.postForm(testOrigin+"/auth/signout", url.Values{
		"csrfToken": {token}, "callbackUrl": {"/bye"},
	})
	loc := location(t, res)
	if loc.String() != testOrigin+"/bye" {
		t.Fatalf("sign-out redirect %s", loc)
	}
	if c.cookies["auth.session-token"] != "" {
		t.Fatal("session cookie survived sign-out")
	}

	body := decodeBody(t, c.get(testOrigin+"/auth/session"))
	if body["user"] != nil {
		t.Fatalf("session after sign-out: %v", body)
	}
}

func TestSignOutDatabase(t *testing.T) {
	adapter := stores.NewMemoryAdapter()
	_, c := newTestAuth(t, func(cfg *nextauth.Config) {
		cfg.Adapter = adapter
		cfg.SessionStrategy = nextauth.StrategyDatabase
	})

	user, err := adapter.CreateUser(context.Background(), &nextauth.User{Email: "pat@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	session := &nextauth.Session{
		SessionToken: "db-session-token",
		UserID:       user.ID,
		Expires:      time.Now().Add(time.Hour),
	}
	if err := adapter.CreateSession(context.Background(), session); err != nil {
		t.Fatal(err)
	}
	c.cookies["auth.session-token"] = session.SessionToken

	body := decodeBody(t, c.get(testOrigin+"/auth/session"))
	u, _ := body["user"].(map[string]any)
	if u == nil || u["email"] != "pat@example.com" {
		t.Fatalf("database session body %v", body)
	}

	token := c.csrfToken()
	res := c.postForm(testOrigin+"/auth/signout", url.Values{"csrfToken": {token}})
	location(t, res)
	if c.cookies["auth.session-token"] != "" {
		t.Fatal("session cookie survived sign-out")
	}
	s, _, err := adapter.GetSessionAndUser(context.Background(), session.SessionToken)
	if err != nil {
		t.Fatal(err)
	}
	if s != nil {
		t.Fatal("database session survived sign-out")
	}
}

func TestSessionSurvivesSecretRotation(t *testing.T) {
	_, c := newTestAuth(t, func(cfg *nextauth.Config) {
		cfg.Secrets = []string{"alpha"}
		cfg.Providers = []nextauth.Provider{passwordProvider()}
	})
	signIn(t, c)

	// A redeploy prepends a new secret; the existing cookie still resolves.
	rotated, err := nextauth.New(&nextauth.Config{
		Secrets: []string{"beta", "alpha"},
		BaseURL: testOrigin,
	})
	if err != nil {
		t.Fatal(err)
	}
	c.handler = rotated.Handler()

	body := decodeBody(t, c.get(testOrigin+"/auth/session"))
	u, _ := body["user"].(map[string]any)
	if u == nil || u["email"] != "pat@example.com" {
		t.Fatalf("session lost across rotation: %v", body)
	}
}

func TestSessionRefreshPastUpdateAge(t *testing.T) {
	_, c := newTestAuth(t, func(cfg *nextauth.Config) {
		cfg.Providers = []nextauth.Provider{passwordProvider()}
		cfg.SessionUpdateAge = time.Millisecond
	})
	signIn(t, c)

	time.Sleep(5 * time.Millisecond)
	res := c.get(testOrigin + "/auth/session")
	var reissued bool
	for _, ck := range res.Cookies() {
		if ck.Name == "auth.session-token" && ck.Value != "" {
			reissued = true
		}
	}
	if !reissued {
		t.Fatal("aged session was not re-minted")
	}
	body := decodeBody(t, res)
	if u, _ := body["user"].(map[string]any); u == nil {
		t.Fatalf("session body %v", body)
	}
}

func TestUpdateSessionFoldsInData(t *testing.T) {
	_, c := newTestAuth(t, func(cfg *nextauth.Config) {
		cfg.Providers = []nextauth.Provider{passwordProvider()}
		cfg.Callbacks.JWT = func(ctx context.Context, claims jwt.MapClaims, user *nextauth.User, account *nextauth.Account, profile map[string]any) (jwt.MapClaims, error) {
			if name, ok := profile["name"].(string); ok && name != "" {
				claims["name"] = name
			}
			return claims, nil
		}
	})
	signIn(t, c)

	token := c.csrfToken()
	res := c.postForm(testOrigin+"/auth/session", url.Values{
		"csrfToken": {token}, "name": {"Patricia"},
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("update status %d", res.StatusCode)
	}
	body := decodeBody(t, res)
	u, _ := body["user"].(map[string]any)
	if u == nil || u["name"] != "Patricia" {
		t.Fatalf("update not applied: %v", body)
	}

	// The reissued cookie carries the update too.
	body = decodeBody(t, c.get(testOrigin+"/auth/session"))
	u, _ = body["user"].(map[string]any)
	if u == nil || u["name"] != "Patricia" {
		t.Fatalf("update lost on reload: %v", body)
	}
}

func TestInvalidSessionCookieIsCleared(t *testing.T) {
	_, c := newTestAuth(t, nil)
	c.cookies["auth.session-token"] = "not-a-token"

	res := c.get(testOrigin + "/auth/session")
	body := decodeBody(t, res)
	if body["user"] != nil {
		t.Fatalf("invalid cookie produced a session: %v", body)
	}
	if c.cookies["auth.session-token"] != "" {
		t.Fatal("invalid session cookie must be cleared")
	}
}
