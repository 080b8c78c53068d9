// Package nextauth is an embeddable authentication handshake engine. Given
// an inbound request describing an action (sign-in, callback, sign-out,
// session, csrf, verify-request), it drives a cookie-carried security
// protocol that authenticates a user via OAuth/OIDC, a one-time email/SMS
// token, or application-supplied credentials, and emits a signed session.
//
// # Architecture
//
// The engine is stateless by design: no server-side handshake store exists.
// All continuity across the multi-step handshake (initiate → provider
// redirect → callback) rides in signed cookies, or, for verification
// tokens, in the Adapter's persistent store. Any number of instances can
// serve the same traffic, and secrets rotate without invalidating
// outstanding sessions because decoding tries each configured secret
// newest-first.
//
// Provider: a closed union over authentication capabilities — OAuth, OIDC,
// Email, SMS, Credentials, WebAuthn. The engine reads only id, type and
// checks; endpoints belong to the exchange collaborator.
//
// Adapter: the persistence collaborator for users, accounts, sessions and
// verification tokens. The stores package ships in-memory and JSON-file
// implementations; stores/gorm backs it with a database.
//
// Exchanger: the network collaborator performing the OAuth token and
// userinfo exchange. The oauth2 subpackage is the standard implementation.
//
// # Basic Usage
//
//	import (
//	    nextauth "github.com/nextauthjs/next-auth-sub011"
//	    authoauth2 "github.com/nextauthjs/next-auth-sub011/oauth2"
//	    "github.com/nextauthjs/next-auth-sub011/stores"
//	)
//
//	cfg := &nextauth.Config{
//	    Secrets:   []string{"current-secret", "previous-secret"},
//	    BaseURL:   "https://example.com",
//	    Adapter:   stores.NewFSAdapter("/var/lib/myapp/auth"),
//	    Exchanger: authoauth2.New(),
//	    Providers: []nextauth.Provider{
//	        authoauth2.GitHub(clientID, clientSecret),
//	    },
//	}
//	auth, err := nextauth.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	http.Handle("/auth/", auth.Handler())
//
// # Security
//
// Every state-mutating POST is protected by a double-submit CSRF token
// bound to the newest secret. OAuth flows carry state, PKCE (S256 only)
// and nonce artifacts in signed fifteen-minute cookies that are
// consumed exactly once. Verification tokens are stored hashed; the raw
// value exists only in the message sent to the user. Failures surface as
// error-page redirects carrying a coarse code — causes are logged, never
// exposed.
//
// # Testing
//
// Handlers are testable without a network: build requests with
// httptest.NewRequest, run them through Auth.Handler(), and use
// stores.NewMemoryAdapter plus a stub Exchanger for the provider side.
package nextauth
