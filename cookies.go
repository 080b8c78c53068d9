package nextauth

import (
	"net/http"
	"time"
)

// Lifetimes for the short-lived handshake cookies. State, PKCE and nonce
// artifacts must not outlive the provider redirect round-trip.
const (
	handshakeMaxAge = 15 * time.Minute
)

// CookieOption mirrors the subset of http.Cookie attributes the engine
// controls.
type CookieOption struct {
	Path     string
	Domain   string
	MaxAge   int
	HttpOnly bool
	Secure   bool
	SameSite http.SameSite
	Expires  time.Time
}

// Cookie is a named value plus delivery options. Managers produce these; the
// framework shim writes them out with http.SetCookie.
type Cookie struct {
	Name    string
	Value   string
	Options CookieOption
}

// HTTPCookie converts to the stdlib representation.
func (c Cookie) HTTPCookie() *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     c.Options.Path,
		Domain:   c.Options.Domain,
		MaxAge:   c.Options.MaxAge,
		HttpOnly: c.Options.HttpOnly,
		Secure:   c.Options.Secure,
		SameSite: c.Options.SameSite,
		Expires:  c.Options.Expires,
	}
}

// CookieNames holds the resolved names of every cookie the engine uses.
type CookieNames struct {
	CSRFToken    string
	State        string
	PKCEVerifier string
	Nonce        string
	SessionToken string
	CallbackURL  string
}

// cookieNames resolves logical cookie names against the configured prefix.
// Over HTTPS the "__Secure-" host prefix is added so browsers refuse the
// cookie on insecure origins.
func cookieNames(prefix string, secure bool) CookieNames {
	host := ""
	if secure {
		host = "__Secure-"
	}
	return CookieNames{
		CSRFToken:    host + prefix + ".csrf-token",
		State:        host + prefix + ".state",
		PKCEVerifier: host + prefix + ".pkce.code_verifier",
		Nonce:        host + prefix + ".nonce",
		SessionToken: host + prefix + ".session-token",
		CallbackURL:  host + prefix + ".callback-url",
	}
}

// defaultCookieOption returns the baseline attributes every engine cookie
// carries: httpOnly, root path, lax same-site, secure when served over HTTPS.
func defaultCookieOption(secure bool) CookieOption {
	return CookieOption{
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// newCookie builds a cookie with the baseline options and the given lifetime.
func newCookie(name, value string, secure bool, maxAge time.Duration) Cookie {
	opts := defaultCookieOption(secure)
	if maxAge > 0 {
		opts.MaxAge = int(maxAge.Seconds())
		opts.Expires = time.Now().Add(maxAge)
	}
	return Cookie{Name: name, Value: value, Options: opts}
}

// handshakeCookie builds a short-lived cookie for state/PKCE/nonce payloads.
// SameSite is None because the value must survive a cross-site redirect from
// the authorization server; None requires Secure, so plain-HTTP development
// hosts fall back to Lax.
func handshakeCookie(name, value string, secure bool) Cookie {
	c := newCookie(name, value, secure, handshakeMaxAge)
	if secure {
		c.Options.SameSite = http.SameSiteNoneMode
	}
	return c
}

// clearCookie produces the deletion form of a cookie (MaxAge -1, expired).
// Handlers that consume a single-use cookie always emit this in the same
// response, whatever the validation outcome.
func clearCookie(name string, secure bool) Cookie {
	opts := defaultCookieOption(secure)
	opts.MaxAge = -1
	opts.Expires = time.Unix(0, 0)
	return Cookie{Name: name, Value: "", Options: opts}
}

// readCookie returns the named cookie value from the inbound request map, or
// "" if absent.
func readCookie(cookies map[string]string, name string) string {
	return cookies[name]
}
