package nextauth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// handleCallback completes a flow. Steps run strictly in order and
// short-circuit on the first failure: CSRF, state, PKCE, exchange, sign-in
// policy, account linkage, session mint, redirect.
func (a *Auth) handleCallback(ctx context.Context, req *Request, csrf CSRFToken, resp *Response) error {
	provider := a.config.provider(req.ProviderID)
	if provider == nil {
		return NewError(ErrUnknownAction, "unknown provider "+req.ProviderID)
	}
	base, err := a.baseURL(req)
	if err != nil {
		return err
	}
	target := a.consumeCallbackURL(req, resp)

	switch p := provider.(type) {
	case *OAuthProvider, *OIDCProvider:
		return a.callbackOAuth(ctx, req, resp, provider, base, target)
	case *EmailProvider:
		return a.callbackToken(ctx, req, resp, provider.Meta(), base, target)
	case *SMSProvider:
		return a.callbackToken(ctx, req, resp, provider.Meta(), base, target)
	case *CredentialsProvider:
		return a.callbackCredentials(ctx, req, csrf, resp, p, base, target)
	default:
		return NewError(ErrUnknownAction, "provider has no callback flow")
	}
}

// consumeCallbackURL reads and clears the remembered destination cookie.
func (a *Auth) consumeCallbackURL(req *Request, resp *Response) string {
	names := a.names(req)
	target := readCookie(req.Cookies, names.CallbackURL)
	if target != "" {
		resp.AddCookie(clearCookie(names.CallbackURL, req.Secure()))
	}
	return target
}

// param reads a callback parameter from the query or, for form_post
// responses, the body.
func param(req *Request, name string) string {
	if v := req.Query.Get(name); v != "" {
		return v
	}
	return req.Body[name]
}

func (a *Auth) callbackOAuth(ctx context.Context, req *Request, resp *Response, provider Provider, base, target string) error {
	meta := provider.Meta()
	names := a.names(req)
	secure := req.Secure()
	secrets := a.config.Secrets

	// Provider-reported errors arrive before any artifact is consumed, but
	// the handshake cookies still must die with this response.
	if provErr := param(req, "error"); provErr != "" {
		a.clearHandshakeCookies(req, resp, meta)
		if provErr == "access_denied" {
			return &Error{Kind: ErrAccessDenied, Provider: meta.ID, Message: "user denied authorization"}
		}
		return &Error{Kind: ErrOAuthCallback, Provider: meta.ID, Message: "provider returned " + provErr}
	}

	var codeVerifier, nonce string
	for _, check := range meta.Checks {
		switch check {
		case CheckState:
			expected, err := useState(secrets, req.Cookies, names.State, secure, resp)
			if err != nil {
				return err
			}
			got := param(req, "state")
			if subtle.ConstantTimeCompare([]byte(expected), []byte(got)) != 1 {
				return &Error{Kind: ErrInvalidState, Provider: meta.ID, Message: "state parameter mismatch"}
			}
		case CheckPKCE:
			codeVerifier = usePKCECodeVerifier(secrets, req.Cookies, names.PKCEVerifier, secure, resp)
			if codeVerifier == "" {
				return &Error{Kind: ErrInvalidState, Provider: meta.ID, Message: "PKCE verifier cookie missing or expired"}
			}
		case CheckNonce:
			n, err := useNonce(secrets, req.Cookies, names.Nonce, secure, resp)
			if err != nil {
				return err
			}
			nonce = n
		}
	}

	code := param(req, "code")
	if code == "" {
		return &Error{Kind: ErrOAuthCallback, Provider: meta.ID, Message: "authorization code missing"}
	}
	if a.config.Exchanger == nil {
		return &Error{Kind: ErrOAuthCallback, Provider: meta.ID, Message: "no exchanger configured"}
	}

	redirectURI := base + a.config.BasePath + "/callback/" + meta.ID
	identity, err := a.config.Exchanger.Exchange(ctx, provider, code, codeVerifier, nonce, redirectURI)
	if err != nil {
		return &Error{Kind: ErrOAuthCallback, Provider: meta.ID, Err: err}
	}

	user := &User{Name: identity.Name, Email: identity.Email, Image: identity.Image}
	account := &Account{
		Provider:          meta.ID,
		ProviderAccountID: identity.ProviderAccountID,
		Type:              string(meta.Type),
	}
	if err := a.authorizeSignIn(ctx, SignInParams{User: user, Account: account, Profile: identity.Profile}, meta.ID); err != nil {
		return err
	}

	user, err = a.persistAccount(ctx, identity, account)
	if err != nil {
		return err
	}
	if err := a.mintSession(ctx, req, resp, user, account, identity.Profile); err != nil {
		return err
	}
	resp.Redirect = a.resolveRedirect(ctx, target, base)
	return nil
}

// callbackToken verifies a one-time token from an email/SMS flow. Hashes are
// recomputed per secret so tokens issued before a rotation still verify.
func (a *Auth) callbackToken(ctx context.Context, req *Request, resp *Response, meta ProviderMeta, base, target string) error {
	if a.config.Adapter == nil {
		return NewError(ErrMissingAdapter, "token providers require an adapter")
	}
	token := param(req, "token")
	identifier := firstNonEmpty(param(req, "identifier"), param(req, "email"))
	if token == "" || identifier == "" {
		return &Error{Kind: ErrSignIn, Provider: meta.ID, Message: "verification parameters missing"}
	}

	var vt *VerificationToken
	for _, secret := range a.config.Secrets {
		hash := HashVerificationToken(token, secret)
		found, err := a.config.Adapter.UseVerificationToken(ctx, identifier, hash)
		if err != nil {
			return &Error{Kind: ErrSignIn, Provider: meta.ID, Err: err}
		}
		if found != nil {
			vt = found
			break
		}
	}
	if vt == nil || time.Now().After(vt.Expires) {
		return &Error{Kind: ErrSignIn, Provider: meta.ID, Message: "verification token invalid or expired"}
	}

	user, err := a.config.Adapter.GetUserByEmail(ctx, identifier)
	if err != nil {
		return &Error{Kind: ErrSignIn, Provider: meta.ID, Err: err}
	}
	if user == nil {
		now := time.Now()
		user, err = a.config.Adapter.CreateUser(ctx, &User{Email: identifier, EmailVerified: &now})
		if err != nil {
			return &Error{Kind: ErrSignIn, Provider: meta.ID, Err: err}
		}
	}

	account := &Account{
		Provider:          meta.ID,
		ProviderAccountID: identifier,
		UserID:            user.ID,
		Type:              string(meta.Type),
	}
	if err := a.authorizeSignIn(ctx, SignInParams{User: user, Account: account}, meta.ID); err != nil {
		return err
	}
	if err := a.config.Adapter.LinkAccount(ctx, account); err != nil {
		return &Error{Kind: ErrSignIn, Provider: meta.ID, Err: err}
	}
	if err := a.mintSession(ctx, req, resp, user, account, nil); err != nil {
		return err
	}
	resp.Redirect = a.resolveRedirect(ctx, target, base)
	return nil
}

func (a *Auth) callbackCredentials(ctx context.Context, req *Request, csrf CSRFToken, resp *Response, p *CredentialsProvider, base, target string) error {
	// Credentials mutate state, so the double-submit check applies here
	// even though OAuth callbacks skip it.
	if req.Method != http.MethodPost || !(csrf.Verified || a.config.SkipCSRFCheck) {
		return validateCSRF(req.Action, false)
	}
	if p.Authorize == nil {
		return &Error{Kind: ErrSignIn, Provider: p.ID, Message: "provider has no authorize callback"}
	}

	user, err := p.Authorize(ctx, req.Body)
	if err != nil {
		return &Error{Kind: ErrSignIn, Provider: p.ID, Err: err}
	}
	if user == nil {
		return &Error{Kind: ErrAccessDenied, Provider: p.ID, Message: "credentials rejected"}
	}
	if a.config.SessionStrategy != StrategyJWT {
		return &Error{Kind: ErrSignIn, Provider: p.ID, Message: "credentials provider requires the jwt session strategy"}
	}

	account := &Account{
		Provider:          p.ID,
		ProviderAccountID: user.ID,
		UserID:            user.ID,
		Type:              string(TypeCredentials),
	}
	if err := a.authorizeSignIn(ctx, SignInParams{User: user, Account: account, Credentials: req.Body}, p.ID); err != nil {
		return err
	}
	if err := a.mintSession(ctx, req, resp, user, account, nil); err != nil {
		return err
	}
	resp.Redirect = a.resolveRedirect(ctx, target, base)
	return nil
}

// authorizeSignIn runs the host's sign-in policy. A false return denies
// access; a thrown error is wrapped, never propagated raw.
func (a *Auth) authorizeSignIn(ctx context.Context, params SignInParams, providerID string) error {
	cb := a.config.Callbacks.SignIn
	if cb == nil {
		return nil
	}
	ok, err := cb(ctx, params)
	if err != nil {
		return &Error{Kind: ErrAuthorizedCallback, Provider: providerID, Err: err}
	}
	if !ok {
		return &Error{Kind: ErrAccessDenied, Provider: providerID, Message: "sign-in policy rejected user"}
	}
	return nil
}

// persistAccount links or creates the user behind an OAuth identity.
// Idempotent on (provider, providerAccountID): a second callback for the
// same identity resolves to the existing user.
func (a *Auth) persistAccount(ctx context.Context, identity *Identity, account *Account) (*User, error) {
	adapter := a.config.Adapter
	user := &User{Name: identity.Name, Email: identity.Email, Image: identity.Image}
	if adapter == nil {
		// Pure JWT deployments carry the identity entirely in the token.
		user.ID = account.Provider + ":" + account.ProviderAccountID
		return user, nil
	}

	existing, err := adapter.GetUserByAccount(ctx, account.Provider, account.ProviderAccountID)
	if err != nil {
		return nil, &Error{Kind: ErrOAuthCallback, Provider: account.Provider, Err: err}
	}
	if existing != nil {
		account.UserID = existing.ID
		return existing, nil
	}

	if user.Email != "" {
		byEmail, err := adapter.GetUserByEmail(ctx, user.Email)
		if err != nil {
			return nil, &Error{Kind: ErrOAuthCallback, Provider: account.Provider, Err: err}
		}
		if byEmail != nil {
			// Same address, different provider. Refuse the automatic merge;
			// silent linking would let a provider account hijack the user.
			return nil, &Error{Kind: ErrAccountNotLinked, Provider: account.Provider, Message: "email already associated with another account"}
		}
	}

	created, err := adapter.CreateUser(ctx, user)
	if err != nil {
		return nil, &Error{Kind: ErrOAuthCallback, Provider: account.Provider, Err: err}
	}
	account.UserID = created.ID
	if err := adapter.LinkAccount(ctx, account); err != nil {
		return nil, &Error{Kind: ErrOAuthCallback, Provider: account.Provider, Err: err}
	}
	return created, nil
}

// clearHandshakeCookies clears whatever single-use artifacts this provider
// issues, used on paths that bail before the normal consume steps run.
func (a *Auth) clearHandshakeCookies(req *Request, resp *Response, meta ProviderMeta) {
	names := a.names(req)
	secure := req.Secure()
	for _, check := range meta.Checks {
		switch check {
		case CheckState:
			if readCookie(req.Cookies, names.State) != "" {
				resp.AddCookie(clearCookie(names.State, secure))
			}
		case CheckPKCE:
			if readCookie(req.Cookies, names.PKCEVerifier) != "" {
				resp.AddCookie(clearCookie(names.PKCEVerifier, secure))
			}
		case CheckNonce:
			if readCookie(req.Cookies, names.Nonce) != "" {
				resp.AddCookie(clearCookie(names.Nonce, secure))
			}
		}
	}
}

// mintSession issues the session for a freshly authenticated user: a signed
// token cookie for the jwt strategy, an adapter-backed record plus opaque
// token cookie for the database strategy.
func (a *Auth) mintSession(ctx context.Context, req *Request, resp *Response, user *User, account *Account, profile map[string]any) error {
	names := a.names(req)
	secure := req.Secure()
	maxAge := a.config.SessionMaxAge

	if a.config.SessionStrategy == StrategyDatabase {
		if a.config.Adapter == nil {
			return NewError(ErrMissingAdapter, "database session strategy requires an adapter")
		}
		session := &Session{
			SessionToken: uuid.NewString(),
			UserID:       user.ID,
			Expires:      time.Now().Add(maxAge),
		}
		if err := a.config.Adapter.CreateSession(ctx, session); err != nil {
			return WrapError(ErrSessionToken, err)
		}
		resp.AddCookie(newCookie(names.SessionToken, session.SessionToken, secure, maxAge))
		return nil
	}

	claims := jwt.MapClaims{
		"sub":     user.ID,
		"name":    user.Name,
		"email":   user.Email,
		"picture": user.Image,
	}
	if cb := a.config.Callbacks.JWT; cb != nil {
		enriched, err := cb(ctx, claims, user, account, profile)
		if err != nil {
			return WrapError(ErrSessionToken, err)
		}
		if enriched != nil {
			claims = enriched
		}
	}
	token, err := EncodeToken(a.config.Secrets, claims, maxAge)
	if err != nil {
		return err
	}
	resp.AddCookie(newCookie(names.SessionToken, token, secure, maxAge))
	return nil
}
