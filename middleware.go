package nextauth

import (
	"context"
	"net/http"
)

type sessionContextKey struct{}

// SessionFromContext returns the claims WithSession attached, or nil when
// the request carried no valid session.
func (a *Auth) SessionFromContext(ctx context.Context) map[string]any {
	claims, _ := ctx.Value(sessionContextKey{}).(map[string]any)
	return claims
}

// WithSession decodes the session cookie and, when valid, attaches the
// claims to the request context. It never rejects; downstream handlers
// decide what an absent session means.
func (a *Auth) WithSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := NewRequest(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		names := a.names(req)
		token := readCookie(req.Cookies, names.SessionToken)

		var claims map[string]any
		switch a.config.SessionStrategy {
		case StrategyDatabase:
			if session, user, err := a.config.Adapter.GetSessionAndUser(r.Context(), token); err == nil && session != nil {
				claims = map[string]any{"sub": user.ID, "name": user.Name, "email": user.Email}
			}
		default:
			if decoded := DecodeToken(a.config.Secrets, token); decoded != nil {
				claims = decoded
			}
		}
		if claims != nil {
			r = r.WithContext(context.WithValue(r.Context(), sessionContextKey{}, claims))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSession is WithSession plus enforcement: requests without a valid
// session get a 401, or a redirect to the sign-in page when redirect is
// true.
func (a *Auth) RequireSession(next http.Handler, redirect bool) http.Handler {
	return a.WithSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.SessionFromContext(r.Context()) == nil {
			if redirect {
				http.Redirect(w, r, a.config.Pages.SignIn, http.StatusFound)
			} else {
				http.Error(w, `{"error":"unauthenticated"}`, http.StatusUnauthorized)
			}
			return
		}
		next.ServeHTTP(w, r)
	}))
}
