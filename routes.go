package nextauth

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
)

// Handler mounts the action routes under the configured base path.
func (a *Auth) Handler() http.Handler {
	r := mux.NewRouter()
	base := a.config.BasePath
	sub := r.PathPrefix(base).Subrouter()
	sub.HandleFunc("/{action}", a.serveAction).Methods(http.MethodGet, http.MethodPost)
	sub.HandleFunc("/{action}/{provider}", a.serveAction).Methods(http.MethodGet, http.MethodPost)
	return r
}

func (a *Auth) serveAction(w http.ResponseWriter, r *http.Request) {
	req, err := NewRequest(r)
	if err != nil {
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
		return
	}
	vars := mux.Vars(r)
	req.Action = Action(vars["action"])
	req.ProviderID = vars["provider"]

	resp := a.Process(r.Context(), req)
	resp.Write(w, r)
}

// Process runs one action end to end: CSRF bookkeeping, dispatch, error
// shaping. This is the framework-independent entry point; shims for other
// frameworks call it with a translated Request.
func (a *Auth) Process(ctx context.Context, req *Request) *Response {
	resp := &Response{Headers: http.Header{}}

	names := a.names(req)
	isPost := req.Method == http.MethodPost
	csrf, err := createCSRFToken(
		a.config.Secrets[0],
		readCookie(req.Cookies, names.CSRFToken),
		isPost,
		req.Body["csrfToken"],
	)
	if err != nil {
		return a.fail(req, resp, err)
	}
	if csrf.CookieValue != "" {
		resp.AddCookie(newCookie(names.CSRFToken, csrf.CookieValue, req.Secure(), 0))
	}
	verified := csrf.Verified || a.config.SkipCSRFCheck

	handler, err := a.dispatch(req, verified)
	if err != nil {
		return a.fail(req, resp, err)
	}
	if err := handler(ctx, req, csrf, resp); err != nil {
		return a.fail(req, resp, err)
	}
	return resp
}

// fail shapes err into the error response while keeping any cookies the
// handler already queued. Single-use handshake cookies must be cleared even
// when validation fails.
func (a *Auth) fail(req *Request, resp *Response, err error) *Response {
	out := a.errorResponse(req, err)
	out.Cookies = append(resp.Cookies, out.Cookies...)
	return out
}

type actionHandler func(ctx context.Context, req *Request, csrf CSRFToken, resp *Response) error

// dispatch is the pure (method, action) table. CSRF enforcement happens here
// for every state-mutating POST except the credentials callback, which
// checks inside the handler where the provider type is known.
func (a *Auth) dispatch(req *Request, verified bool) (actionHandler, error) {
	if req.Method == http.MethodGet {
		switch req.Action {
		case ActionProviders:
			return a.handleProviders, nil
		case ActionCSRF:
			return a.handleCSRFInfo, nil
		case ActionSession:
			return a.handleGetSession, nil
		case ActionSignIn:
			if req.ProviderID != "" {
				return a.handleSignIn, nil
			}
			return a.handleSignInPage, nil
		case ActionSignOut:
			return a.handleSignOutPage, nil
		case ActionCallback:
			return a.handleCallback, nil
		case ActionVerifyRequest:
			return a.handleVerifyRequestPage, nil
		case ActionError:
			return a.handleErrorPage, nil
		case ActionWebAuthnOptions:
			return a.handleWebAuthnOptions, nil
		}
	}

	if req.Method == http.MethodPost {
		requireCSRF := func(h actionHandler) (actionHandler, error) {
			if !verified {
				return nil, validateCSRF(req.Action, false)
			}
			return h, nil
		}
		switch req.Action {
		case ActionSignIn:
			return requireCSRF(a.handleSignIn)
		case ActionSignOut:
			return requireCSRF(a.handleSignOut)
		case ActionSession:
			return requireCSRF(a.handleUpdateSession)
		case ActionCallback:
			// CSRF is enforced inside for credentials providers; OAuth
			// form_post callbacks arrive cross-site by design.
			return a.handleCallback, nil
		case ActionWebAuthnOptions:
			return requireCSRF(a.handleWebAuthnOptions)
		}
	}

	return nil, &Error{
		Kind:    ErrUnknownAction,
		Message: "no handler for request",
		Meta:    map[string]any{"method": req.Method, "action": string(req.Action)},
	}
}

// handleProviders returns the public provider catalog.
func (a *Auth) handleProviders(ctx context.Context, req *Request, _ CSRFToken, resp *Response) error {
	base, err := a.baseURL(req)
	if err != nil {
		return err
	}
	out := map[string]any{}
	for _, p := range a.config.Providers {
		meta := p.Meta()
		out[meta.ID] = map[string]any{
			"id":          meta.ID,
			"name":        meta.Name,
			"type":        string(meta.Type),
			"signinUrl":   base + a.config.BasePath + "/signin/" + meta.ID,
			"callbackUrl": base + a.config.BasePath + "/callback/" + meta.ID,
		}
	}
	resp.Body = out
	return nil
}

// handleCSRFInfo returns the current double-submit token so forms can echo
// it back.
func (a *Auth) handleCSRFInfo(ctx context.Context, req *Request, csrf CSRFToken, resp *Response) error {
	resp.Body = map[string]any{"csrfToken": csrf.Token}
	return nil
}

// handleSignInPage returns the data a host needs to render a sign-in page.
func (a *Auth) handleSignInPage(ctx context.Context, req *Request, csrf CSRFToken, resp *Response) error {
	if err := a.handleProviders(ctx, req, csrf, resp); err != nil {
		return err
	}
	resp.Body = map[string]any{
		"providers": resp.Body,
		"csrfToken": csrf.Token,
		"error":     req.Query.Get("error"),
	}
	return nil
}

// handleSignOutPage returns the data for a sign-out confirmation page.
func (a *Auth) handleSignOutPage(ctx context.Context, req *Request, csrf CSRFToken, resp *Response) error {
	resp.Body = map[string]any{"csrfToken": csrf.Token}
	return nil
}

// handleVerifyRequestPage backs the "check your email" page.
func (a *Auth) handleVerifyRequestPage(ctx context.Context, req *Request, _ CSRFToken, resp *Response) error {
	resp.Body = map[string]any{
		"provider": req.Query.Get("provider"),
		"type":     req.Query.Get("type"),
	}
	return nil
}

// handleErrorPage returns the coarse error code for the host's error page.
// The code arrived via redirect; nothing sensitive is available here.
func (a *Auth) handleErrorPage(ctx context.Context, req *Request, _ CSRFToken, resp *Response) error {
	code := req.Query.Get("error")
	if code == "" {
		code = "default"
	}
	resp.Body = map[string]any{"error": code}
	return nil
}

// handleWebAuthnOptions delegates option generation to the provider's
// collaborator.
func (a *Auth) handleWebAuthnOptions(ctx context.Context, req *Request, _ CSRFToken, resp *Response) error {
	p := a.config.provider(req.ProviderID)
	wp, ok := p.(*WebAuthnProvider)
	if !ok || wp.Options == nil {
		return NewError(ErrUnknownAction, "no webauthn provider configured")
	}
	opts, err := wp.Options(ctx, req)
	if err != nil {
		return WrapError(ErrSignIn, err)
	}
	resp.Body = opts
	return nil
}
