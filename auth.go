package nextauth

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// Auth is the handshake engine. It holds only the read-only config; all
// continuity across the multi-step handshake lives in cookies or in the
// adapter's store, so any number of instances can serve the same traffic.
type Auth struct {
	config *Config
}

// New validates the config and builds an engine. Configuration errors
// (missing secret, missing adapter, untrusted host) surface here, loudly,
// rather than degrading per request.
func New(cfg *Config) (*Auth, error) {
	cfg.EnsureDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Auth{config: cfg}, nil
}

// baseURL resolves the canonical origin for this request. Deriving it from
// the Host header is an opt-in: a spoofed host would otherwise control
// redirect targets and magic-link URLs.
func (a *Auth) baseURL(req *Request) (string, error) {
	if a.config.BaseURL != "" {
		return strings.TrimSuffix(a.config.BaseURL, "/"), nil
	}
	if !a.config.TrustHost {
		return "", NewError(ErrUntrustedHost, "refusing to derive origin from untrusted Host header")
	}
	scheme := "http"
	if req.Secure() {
		scheme = "https"
	}
	return scheme + "://" + req.URL.Host, nil
}

// names resolves the cookie names for this request.
func (a *Auth) names(req *Request) CookieNames {
	return cookieNames(a.config.CookiePrefix, req.Secure())
}

// resolveRedirect applies the redirect policy: host callback if set,
// otherwise same-origin only. Anything off-origin falls back to the base
// URL.
func (a *Auth) resolveRedirect(ctx context.Context, target, base string) string {
	if cb := a.config.Callbacks.Redirect; cb != nil {
		out, err := cb(ctx, target, base)
		if err != nil || out == "" {
			return base
		}
		return out
	}
	if target == "" {
		return base
	}
	if strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//") {
		return base + target
	}
	tu, err := url.Parse(target)
	if err != nil {
		return base
	}
	bu, err := url.Parse(base)
	if err != nil {
		return base
	}
	if tu.Scheme == bu.Scheme && tu.Host == bu.Host {
		return target
	}
	return base
}

// errorResponse converts a handler failure into the user-visible outcome:
// a structured error for malformed requests and misconfiguration, an
// error-page redirect carrying only the coarse kind for everything else.
// The cause is logged here and goes no further.
func (a *Auth) errorResponse(req *Request, err error) *Response {
	kind := KindOf(err)
	if kind == "" {
		kind = ErrSignIn
	}
	a.config.Logger.Error("auth request failed",
		"action", string(req.Action),
		"provider", req.ProviderID,
		"kind", string(kind),
		"err", err,
	)

	if kind == ErrUnknownAction {
		return &Response{Status: http.StatusBadRequest, Body: map[string]any{"error": string(kind)}}
	}
	if isConfigError(kind) {
		return &Response{Status: http.StatusInternalServerError, Body: map[string]any{"error": "Configuration"}}
	}
	if a.config.RawResponse {
		return &Response{Status: http.StatusUnauthorized, Body: map[string]any{"error": string(kind)}}
	}

	errorPage := a.config.Pages.Error
	if base, berr := a.baseURL(req); berr == nil && strings.HasPrefix(errorPage, "/") {
		errorPage = base + errorPage
	}
	sep := "?"
	if strings.Contains(errorPage, "?") {
		sep = "&"
	}
	return &Response{Redirect: errorPage + sep + "error=" + url.QueryEscape(string(kind))}
}
