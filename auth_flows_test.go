package nextauth_test

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	nextauth "github.com/nextauthjs/next-auth-sub011"
	"github.com/nextauthjs/next-auth-sub011/stores"
)

const testOrigin = "http://app.example"

// stubExchanger records what the engine asked for and returns a canned
// identity, standing in for the provider round-trip.
type stubExchanger struct {
	identity *nextauth.Identity
	err      error

	calls       int
	gotCode     string
	gotVerifier string
	gotNonce    string
	gotRedirect string
}

func (s *stubExchanger) Exchange(ctx context.Context, provider nextauth.Provider, code, codeVerifier, nonce, redirectURI string) (*nextauth.Identity, error) {
	s.calls++
	s.gotCode = code
	s.gotVerifier = codeVerifier
	s.gotNonce = nonce
	s.gotRedirect = redirectURI
	if s.err != nil {
		return nil, s.err
	}
	return s.identity, nil
}

// client drives the handler like a browser would: it carries cookies between
// requests and honours clearing.
type client struct {
	t       *testing.T
	handler http.Handler
	cookies map[string]string
}

func newTestAuth(t *testing.T, mutate func(*nextauth.Config)) (*nextauth.Auth, *client) {
	t.Helper()
	cfg := &nextauth.Config{
		Secrets: []string{"test-secret"},
		BaseURL: testOrigin,
	}
	if mutate != nil {
		mutate(cfg)
	}
	auth, err := nextauth.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return auth, &client{t: t, handler: auth.Handler(), cookies: map[string]string{}}
}

func (c *client) get(target string) *http.Response {
	return c.do(http.MethodGet, target, nil)
}

func (c *client) postForm(target string, form url.Values) *http.Response {
	return c.do(http.MethodPost, target, form)
}

func (c *client) do(method, target string, form url.Values) *http.Response {
	c.t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for name, value := range c.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	res := rec.Result()
	for _, ck := range res.Cookies() {
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
		} else {
			c.cookies[ck.Name] = ck.Value
		}
	}
	return res
}

// csrfToken fetches a fresh double-submit token; the cookie half lands in the
// client's jar.
func (c *client) csrfToken() string {
	c.t.Helper()
	res := c.get(testOrigin + "/auth/csrf")
	body := decodeBody(c.t, res)
	token, _ := body["csrfToken"].(string)
	if token == "" {
		c.t.Fatal("csrf action returned no token")
	}
	return token
}

func decodeBody(t *testing.T, res *http.Response) map[string]any {
	t.Helper()
	defer res.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func location(t *testing.T, res *http.Response) *url.URL {
	t.Helper()
	if res.StatusCode != http.StatusFound {
		t.Fatalf("want 302, got %d", res.StatusCode)
	}
	loc, err := url.Parse(res.Header.Get("Location"))
	if err != nil {
		t.Fatalf("parse Location: %v", err)
	}
	return loc
}

func acmeProvider() *nextauth.OIDCProvider {
	return &nextauth.OIDCProvider{
		OAuthProvider: nextauth.OAuthProvider{
			ID:               "acme",
			Name:             "Acme",
			ClientID:         "client-id",
			ClientSecret:     "client-secret",
			AuthorizationURL: "https://acme.example/authorize",
			TokenURL:         "https://acme.example/token",
		},
	}
}

func TestOAuthFlowEndToEnd(t *testing.T) {
	exchanger := &stubExchanger{identity: &nextauth.Identity{
		ProviderAccountID: "acct-1",
		Name:              "Pat",
		Email:             "pat@example.com",
	}}
	_, c := newTestAuth(t, func(cfg *nextauth.Config) {
		cfg.Providers = []nextauth.Provider{acmeProvider()}
		cfg.Exchanger = exchanger
	})

	res := c.get(testOrigin + "/auth/signin/acme?callbackUrl=/dashboard")
	authz := location(t, res)
	if got := authz.Scheme + "://" + authz.Host + authz.Path; got != "https://acme.example/authorize" {
		t.Fatalf("redirected to %s", got)
	}
	q := authz.Query()
	state := q.Get("state")
	if state == "" {
		t.Fatal("authorization redirect carries no state")
	}
	if q.Get("code_challenge") == "" || q.Get("code_challenge_method") != "S256" {
		t.Fatalf("bad PKCE params: %v", q)
	}
	if q.Get("nonce") == "" {
		t.Fatal("authorization redirect carries no nonce")
	}
	for _, name := range []string{"auth.state", "auth.pkce.code_verifier", "auth.nonce", "auth.callback-url"} {
		if c.cookies[name] == "" {
			t.Fatalf("handshake cookie %s not set", name)
		}
	}

	res = c.get(testOrigin + "/auth/callback/acme?code=authcode&state=" + url.QueryEscape(state))
	loc := location(t, res)
	if loc.String() != testOrigin+"/dashboard" {
		t.Fatalf("final redirect %s", loc)
	}
	if exchanger.gotCode != "authcode" {
		t.Fatalf("exchanged code %q", exchanger.gotCode)
	}
	if exchanger.gotRedirect != testOrigin+"/auth/callback/acme" {
		t.Fatalf("redirect URI %q", exchanger.gotRedirect)
	}
	h := sha256.Sum256([]byte(exchanger.gotVerifier))
	if base64.RawURLEncoding.EncodeToString(h[:]) != q.Get("code_challenge") {
		t.Fatal("exchanged verifier does not match issued challenge")
	}
	if exchanger.gotNonce != q.Get("nonce") {
		t.Fatal("exchanged nonce does not match issued nonce")
	}

	// Single-use artifacts are gone; the session cookie is in place.
	for _, name := range []string{"auth.state", "auth.pkce.code_verifier", "auth.nonce", "auth.callback-url"} {
		if c.cookies[name] != "" {
			t.Fatalf("handshake cookie %s survived the callback", name)
		}
	}
	if c.cookies["auth.session-token"] == "" {
		t.Fatal("no session cookie after callback")
	}

	body := decodeBody(t, c.get(testOrigin+"/auth/session"))
	user, _ := body["user"].(map[string]any)
	if user == nil || user["email"] != "pat@example.com" {
		t.Fatalf("session body %v", body)
	}
}

func TestOAuthCallbackInvalidState(t *testing.T) {
	exchanger := &stubExchanger{identity: &nextauth.Identity{ProviderAccountID: "acct-1"}}
	_, c := newTestAuth(t, func(cfg *nextauth.Config) {
		cfg.Providers = []nextauth.Provider{&nextauth.OAuthProvider{
			ID:               "acme",
			Name:             "Acme",
			AuthorizationURL: "https://acme.example/authorize",
			TokenURL:         "https://acme.example/token",
		}}
		cfg.Exchanger = exchanger
	})

	location(t, c.get(testOrigin+"/auth/signin/acme"))
	if c.cookies["auth.state"] == "" {
		t.Fatal("state cookie not set at initiation")
	}

	res := c.get(testOrigin + "/auth/callback/acme?code=authcode&state=forged")
	loc := location(t, res)
	if loc.Query().Get("error") != "InvalidState" {
		t.Fatalf("want InvalidState redirect, got %s", loc)
	}
	if exchanger.calls != 0 {
		t.Fatal("exchange must not run on a state mismatch")
	}
	if c.cookies["auth.session-token"] != "" {
		t.Fatal("no session may be minted on a state mismatch")
	}
	if c.cookies["auth.state"] != "" {
		t.Fatal("state cookie must be cleared even when validation fails")
	}
}

func TestCredentialsCallbackRequiresCSRF(t *testing.T) {
	_, c := newTestAuth(t, func(cfg *nextauth.Config) {
		cfg.Providers = []nextauth.Provider{&nextauth.CredentialsProvider{
			ID: "creds", Name: "Password",
			Authorize: func(ctx context.Context, creds map[string]string) (*nextauth.User, error) {
				return &nextauth.User{ID: "u1", Email: creds["username"]}, nil
			},
		}}
	})

	res := c.postForm(testOrigin+"/auth/callback/creds", url.Values{
		"username": {"pat@example.com"}, "password": {"hunter2"},
	})
	loc := location(t, res)
	if loc.Query().Get("error") != "MissingCSRF" {
		t.Fatalf("want MissingCSRF redirect, got %s", loc)
	}
	if c.cookies["auth.session-token"] != "" {
		t.Fatal("session minted without CSRF verification")
	}

	// With the token echoed back the same request succeeds.
	token := c.csrfToken()
	res = c.postForm(testOrigin+"/auth/callback/creds", url.Values{
		"csrfToken": {token}, "username": {"pat@example.com"}, "password": {"hunter2"},
	})
	if loc := location(t, res); loc.Query().Get("error") != "" {
		t.Fatalf("verified sign-in failed: %s", loc)
	}
	if c.cookies["auth.session-token"] == "" {
		t.Fatal("no session cookie after credentials sign-in")
	}
}

func TestEmailFlowEndToEnd(t *testing.T) {
	adapter := stores.NewMemoryAdapter()
	var sent nextauth.VerificationParams
	_, c := newTestAuth(t, func(cfg *nextauth.Config) {
		cfg.Adapter = adapter
		cfg.Providers = []nextauth.Provider{&nextauth.EmailProvider{
			ID: "email", Name: "Email",
			SendVerificationRequest: func(ctx context.Context, params nextauth.VerificationParams) error {
				sent = params
				return nil
			},
		}}
	})

	token := c.csrfToken()
	res := c.postForm(testOrigin+"/auth/signin/email", url.Values{
		"csrfToken": {token}, "email": {"pat@Example.COM"},
	})
	loc := location(t, res)
	if loc.Path != "/auth/verify-request" || loc.Query().Get("provider") != "email" {
		t.Fatalf("want verify-request redirect, got %s", loc)
	}
	if sent.Token == "" || !strings.Contains(sent.URL, sent.Token) {
		t.Fatalf("send callback got %+v", sent)
	}
	if sent.Identifier != "pat@example.com" {
		t.Fatalf("identifier not normalized: %q", sent.Identifier)
	}
	if age := time.Until(sent.Expires); age < 23*time.Hour || age > 25*time.Hour {
		t.Fatalf("token lifetime off default: %v", age)
	}

	// Only the hash is at rest; the raw token is not a valid lookup key.
	if vt, _ := adapter.UseVerificationToken(context.Background(), sent.Identifier, sent.Token); vt != nil {
		t.Fatal("raw token must not be stored")
	}

	res = c.get(sent.URL)
	if loc := location(t, res); loc.Query().Get("error") != "" {
		t.Fatalf("verification failed: %s", loc)
	}
	if c.cookies["auth.session-token"] == "" {
		t.Fatal("no session cookie after verification")
	}
	user, err := adapter.GetUserByEmail(context.Background(), "pat@example.com")
	if err != nil || user == nil || user.EmailVerified == nil {
		t.Fatalf("user not created verified: %v %v", user, err)
	}

	// The token is single-use.
	replay := &client{t: t, handler: c.handler, cookies: map[string]string{}}
	res = replay.get(sent.URL)
	if loc := location(t, res); loc.Query().Get("error") != "SignInError" {
		t.Fatalf("replay must fail, got %s", loc)
	}
}

// countingAdapter proves linkage idempotency by counting writes.
type countingAdapter struct {
	*stores.MemoryAdapter
	createdUsers   int
	linkedAccounts int
}

func (a *countingAdapter) CreateUser(ctx context.Context, user *nextauth.User) (*nextauth.User, error) {
	a.createdUsers++
	return a.MemoryAdapter.CreateUser(ctx, user)
}

func (a *countingAdapter) LinkAccount(ctx context.Context, account *nextauth.Account) error {
	a.linkedAccounts++
	return a.MemoryAdapter.LinkAccount(ctx, account)
}

func TestRepeatedCallbackReusesUser(t *testing.T) {
	adapter := &countingAdapter{MemoryAdapter: stores.NewMemoryAdapter()}
	exchanger := &stubExchanger{identity: &nextauth.Identity{
		ProviderAccountID: "acct-1",
		Email:             "pat@example.com",
	}}
	_, c := newTestAuth(t, func(cfg *nextauth.Config) {
		cfg.Adapter = adapter
		cfg.Providers = []nextauth.Provider{acmeProvider()}
		cfg.Exchanger = exchanger
	})

	signInOnce := func() {
		res := c.get(testOrigin + "/auth/signin/acme")
		state := location(t, res).Query().Get("state")
		res = c.get(testOrigin + "/auth/callback/acme?code=authcode&state=" + url.QueryEscape(state))
		if loc := location(t, res); loc.Query().Get("error") != "" {
			t.Fatalf("callback failed: %s", loc)
		}
	}
	signInOnce()
	signInOnce()

	if adapter.createdUsers != 1 {
		t.Fatalf("created %d users for one identity", adapter.createdUsers)
	}
	if adapter.linkedAccounts != 1 {
		t.Fatalf("linked %d accounts for one identity", adapter.linkedAccounts)
	}
}

func TestAccountNotLinkedOnEmailCollision(t *testing.T) {
	adapter := stores.NewMemoryAdapter()
	if _, err := adapter.CreateUser(context.Background(), &nextauth.User{Email: "pat@example.com"}); err != nil {
		t.Fatal(err)
	}
	exchanger := &stubExchanger{identity: &nextauth.Identity{
		ProviderAccountID: "other-acct",
		Email:             "pat@example.com",
	}}
	_, c := newTestAuth(t, func(cfg *nextauth.Config) {
		cfg.Adapter = adapter
		cfg.Providers = []nextauth.Provider{acmeProvider()}
		cfg.Exchanger = exchanger
	})

	res := c.get(testOrigin + "/auth/signin/acme")
	state := location(t, res).Query().Get("state")
	res = c.get(testOrigin + "/auth/callback/acme?code=authcode&state=" + url.QueryEscape(state))
	loc := location(t, res)
	if loc.Query().Get("error") != "AccountNotLinked" {
		t.Fatalf("want AccountNotLinked, got %s", loc)
	}
	if c.cookies["auth.session-token"] != "" {
		t.Fatal("no session may be minted on a refused link")
	}
}

func TestUnknownActionIsBadRequest(t *testing.T) {
	_, c := newTestAuth(t, nil)
	res := c.get(testOrigin + "/auth/bogus")
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", res.StatusCode)
	}
	body := decodeBody(t, res)
	if body["error"] != "UnknownAction" {
		t.Fatalf("body %v", body)
	}
}

func TestProvidersCatalog(t *testing.T) {
	_, c := newTestAuth(t, func(cfg *nextauth.Config) {
		cfg.Providers = []nextauth.Provider{acmeProvider()}
	})
	body := decodeBody(t, c.get(testOrigin+"/auth/providers"))
	acme, _ := body["acme"].(map[string]any)
	if acme == nil {
		t.Fatalf("catalog %v", body)
	}
	if acme["signinUrl"] != testOrigin+"/auth/signin/acme" {
		t.Fatalf("signinUrl %v", acme["signinUrl"])
	}
	if acme["type"] != "oidc" {
		t.Fatalf("type %v", acme["type"])
	}
}
