package nextauth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// handleGetSession resolves the current session. An absent or invalid
// session is "null", not an error: the host decides what unauthenticated
// means. Sessions close to expiry are re-minted.
func (a *Auth) handleGetSession(ctx context.Context, req *Request, _ CSRFToken, resp *Response) error {
	names := a.names(req)
	token := readCookie(req.Cookies, names.SessionToken)
	if token == "" {
		resp.Body = map[string]any{}
		return nil
	}

	if a.config.SessionStrategy == StrategyDatabase {
		return a.getDatabaseSession(ctx, req, resp, token)
	}
	return a.getJWTSession(ctx, req, resp, token)
}

func (a *Auth) getJWTSession(ctx context.Context, req *Request, resp *Response, token string) error {
	names := a.names(req)
	secure := req.Secure()

	claims := DecodeToken(a.config.Secrets, token)
	if claims == nil {
		resp.AddCookie(clearCookie(names.SessionToken, secure))
		resp.Body = map[string]any{}
		return nil
	}

	// Refresh when the token has aged past the update threshold, sliding
	// the expiry window without a fresh sign-in.
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		if time.Since(iat.Time) > a.config.SessionUpdateAge {
			if reissued, err := EncodeToken(a.config.Secrets, claims, a.config.SessionMaxAge); err == nil {
				resp.AddCookie(newCookie(names.SessionToken, reissued, secure, a.config.SessionMaxAge))
			}
		}
	}

	resp.Body = a.sessionBody(ctx, claims, nil)
	return nil
}

func (a *Auth) getDatabaseSession(ctx context.Context, req *Request, resp *Response, token string) error {
	names := a.names(req)
	secure := req.Secure()

	session, user, err := a.config.Adapter.GetSessionAndUser(ctx, token)
	if err != nil {
		return WrapError(ErrSessionToken, err)
	}
	if session == nil || time.Now().After(session.Expires) {
		resp.AddCookie(clearCookie(names.SessionToken, secure))
		resp.Body = map[string]any{}
		return nil
	}

	if time.Until(session.Expires) < a.config.SessionMaxAge-a.config.SessionUpdateAge {
		session.Expires = time.Now().Add(a.config.SessionMaxAge)
		if _, err := a.config.Adapter.UpdateSession(ctx, session); err != nil {
			a.config.Logger.Warn("session refresh failed", "err", err)
		}
	}

	claims := jwt.MapClaims{"sub": user.ID, "name": user.Name, "email": user.Email, "picture": user.Image}
	body := a.sessionBody(ctx, claims, user)
	body["expires"] = session.Expires.UTC().Format(time.RFC3339)
	resp.Body = body
	return nil
}

// sessionBody shapes the public session object and runs the host's session
// callback over it.
func (a *Auth) sessionBody(ctx context.Context, claims jwt.MapClaims, user *User) map[string]any {
	body := map[string]any{
		"user": map[string]any{
			"name":  claims["name"],
			"email": claims["email"],
			"image": claims["picture"],
		},
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		body["expires"] = exp.UTC().Format(time.RFC3339)
	}
	if cb := a.config.Callbacks.Session; cb != nil {
		if shaped, err := cb(ctx, body, claims, user); err == nil && shaped != nil {
			return shaped
		}
	}
	return body
}

// handleUpdateSession re-mints the session with host-supplied data folded in
// through the JWT callback. CSRF-gated by the router.
func (a *Auth) handleUpdateSession(ctx context.Context, req *Request, _ CSRFToken, resp *Response) error {
	names := a.names(req)
	secure := req.Secure()
	token := readCookie(req.Cookies, names.SessionToken)
	if token == "" {
		resp.Body = map[string]any{}
		return nil
	}

	if a.config.SessionStrategy == StrategyDatabase {
		return a.getDatabaseSession(ctx, req, resp, token)
	}

	claims := DecodeToken(a.config.Secrets, token)
	if claims == nil {
		resp.AddCookie(clearCookie(names.SessionToken, secure))
		resp.Body = map[string]any{}
		return nil
	}

	if cb := a.config.Callbacks.JWT; cb != nil {
		update := map[string]any{}
		for k, v := range req.Body {
			if k != "csrfToken" {
				update[k] = v
			}
		}
		enriched, err := cb(ctx, claims, nil, nil, update)
		if err != nil {
			return WrapError(ErrSessionToken, err)
		}
		if enriched != nil {
			claims = enriched
		}
	}

	reissued, err := EncodeToken(a.config.Secrets, claims, a.config.SessionMaxAge)
	if err != nil {
		return err
	}
	resp.AddCookie(newCookie(names.SessionToken, reissued, secure, a.config.SessionMaxAge))
	resp.Body = a.sessionBody(ctx, claims, nil)
	return nil
}

// handleSignOut invalidates the session: cookie clearing for the jwt
// strategy, adapter deletion plus cookie clearing for database sessions.
func (a *Auth) handleSignOut(ctx context.Context, req *Request, _ CSRFToken, resp *Response) error {
	names := a.names(req)
	secure := req.Secure()
	base, err := a.baseURL(req)
	if err != nil {
		return err
	}

	token := readCookie(req.Cookies, names.SessionToken)
	if token != "" && a.config.SessionStrategy == StrategyDatabase {
		if err := a.config.Adapter.DeleteSession(ctx, token); err != nil {
			return WrapError(ErrSignOut, err)
		}
	}
	resp.AddCookie(clearCookie(names.SessionToken, secure))

	target := firstNonEmpty(req.Body["callbackUrl"], req.Query.Get("callbackUrl"))
	resp.Redirect = a.resolveRedirect(ctx, target, base)
	return nil
}
