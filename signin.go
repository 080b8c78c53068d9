package nextauth

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// handleSignIn starts a provider-specific flow. OAuth/OIDC providers get an
// authorization redirect; token providers dispatch a verification message;
// credentials post straight to the callback and never arrive here.
func (a *Auth) handleSignIn(ctx context.Context, req *Request, csrf CSRFToken, resp *Response) error {
	provider := a.config.provider(req.ProviderID)
	if provider == nil {
		return NewError(ErrUnknownAction, "unknown provider "+req.ProviderID)
	}

	base, err := a.baseURL(req)
	if err != nil {
		return err
	}
	a.rememberCallbackURL(ctx, req, resp, base)

	switch p := provider.(type) {
	case *OAuthProvider:
		return a.signInOAuth(ctx, req, resp, provider, base)
	case *OIDCProvider:
		return a.signInOAuth(ctx, req, resp, provider, base)
	case *EmailProvider:
		return a.signInToken(ctx, req, resp, provider.Meta(), p.tokenMaxAge(), p.GenerateToken, p.SendVerificationRequest, base)
	case *SMSProvider:
		return a.signInToken(ctx, req, resp, provider.Meta(), p.tokenMaxAge(), p.GenerateToken, p.SendVerificationRequest, base)
	case *CredentialsProvider:
		// The credentials form posts straight to the callback; there is no
		// separate initiation step.
		return a.handleCallback(ctx, req, csrf, resp)
	default:
		return NewError(ErrSignIn, "provider cannot initiate sign-in")
	}
}

// rememberCallbackURL validates and stores the post-auth destination so the
// callback leg can finish where the user started.
func (a *Auth) rememberCallbackURL(ctx context.Context, req *Request, resp *Response, base string) {
	target := req.Body["callbackUrl"]
	if target == "" {
		target = req.Query.Get("callbackUrl")
	}
	if target == "" {
		return
	}
	resolved := a.resolveRedirect(ctx, target, base)
	names := a.names(req)
	resp.AddCookie(handshakeCookie(names.CallbackURL, resolved, req.Secure()))
}

// signInOAuth builds the authorization redirect, attaching state, PKCE and
// nonce artifacts as the provider's checks demand. No user lookup happens
// here; identity arrives at the callback.
func (a *Auth) signInOAuth(ctx context.Context, req *Request, resp *Response, provider Provider, base string) error {
	meta := provider.Meta()
	conf, err := oauthConfig(provider, base+a.config.BasePath+"/callback/"+meta.ID)
	if err != nil {
		return &Error{Kind: ErrOAuthSignIn, Provider: meta.ID, Err: err}
	}

	names := a.names(req)
	secure := req.Secure()
	var opts []oauth2.AuthCodeOption
	state := ""

	for _, check := range meta.Checks {
		switch check {
		case CheckState:
			value, cookie, err := createState(a.config.Secrets, names.State, secure)
			if err != nil {
				return &Error{Kind: ErrOAuthSignIn, Provider: meta.ID, Err: err}
			}
			state = value
			resp.AddCookie(cookie)
		case CheckPKCE:
			challenge, cookie, err := createPKCE(a.config.Secrets, names.PKCEVerifier, secure)
			if err != nil {
				return &Error{Kind: ErrOAuthSignIn, Provider: meta.ID, Err: err}
			}
			resp.AddCookie(cookie)
			opts = append(opts,
				oauth2.SetAuthURLParam("code_challenge", challenge),
				oauth2.SetAuthURLParam("code_challenge_method", pkceChallengeMethod),
			)
		case CheckNonce:
			value, cookie, err := createNonce(a.config.Secrets, names.Nonce, secure)
			if err != nil {
				return &Error{Kind: ErrOAuthSignIn, Provider: meta.ID, Err: err}
			}
			resp.AddCookie(cookie)
			opts = append(opts, oauth2.SetAuthURLParam("nonce", value))
		}
	}

	resp.Redirect = conf.AuthCodeURL(state, opts...)
	return nil
}

// oauthConfig translates a provider variant into an x/oauth2 client config.
func oauthConfig(provider Provider, redirectURL string) (*oauth2.Config, error) {
	switch p := provider.(type) {
	case *OAuthProvider:
		if p.AuthorizationURL == "" {
			return nil, fmt.Errorf("provider %s has no authorization endpoint", p.ID)
		}
		return &oauth2.Config{
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
			RedirectURL:  redirectURL,
			Scopes:       p.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  p.AuthorizationURL,
				TokenURL: p.TokenURL,
			},
		}, nil
	case *OIDCProvider:
		authURL := p.AuthorizationURL
		tokenURL := p.TokenURL
		if authURL == "" && p.Issuer != "" {
			issuer := strings.TrimSuffix(p.Issuer, "/")
			authURL = issuer + "/authorize"
			tokenURL = issuer + "/token"
		}
		if authURL == "" {
			return nil, fmt.Errorf("provider %s has no issuer or authorization endpoint", p.ID)
		}
		scopes := p.Scopes
		if len(scopes) == 0 {
			scopes = []string{"openid", "profile", "email"}
		}
		return &oauth2.Config{
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
			RedirectURL:  redirectURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
			},
		}, nil
	}
	return nil, fmt.Errorf("not an oauth provider")
}

// signInToken runs the passwordless initiation: normalize the identifier,
// consult the sign-in policy, then persist the hashed token and dispatch the
// raw one. Persisting and sending run concurrently and both must succeed.
func (a *Auth) signInToken(ctx context.Context, req *Request, resp *Response, meta ProviderMeta, maxAge time.Duration, generate func() (string, error), send func(context.Context, VerificationParams) error, base string) error {
	if a.config.Adapter == nil {
		return NewError(ErrMissingAdapter, "token providers require an adapter")
	}
	if send == nil {
		return &Error{Kind: ErrSignIn, Provider: meta.ID, Message: "provider has no send callback"}
	}

	identifier, err := normalizeIdentifier(meta.Type, firstNonEmpty(req.Body["email"], req.Body["identifier"], req.Body["phone"]))
	if err != nil {
		return &Error{Kind: ErrSignIn, Provider: meta.ID, Err: err}
	}

	user, err := a.config.Adapter.GetUserByEmail(ctx, identifier)
	if err != nil {
		return &Error{Kind: ErrSignIn, Provider: meta.ID, Err: err}
	}
	if user == nil {
		// Placeholder for the policy hook; nothing is persisted until the
		// token is verified at callback.
		user = &User{Email: identifier}
	}

	if cb := a.config.Callbacks.SignIn; cb != nil {
		account := &Account{Provider: meta.ID, ProviderAccountID: identifier, Type: string(meta.Type)}
		ok, err := cb(ctx, SignInParams{User: user, Account: account, VerificationRequest: true})
		if err != nil {
			return &Error{Kind: ErrSignIn, Provider: meta.ID, Err: err}
		}
		if !ok {
			return &Error{Kind: ErrAccessDenied, Provider: meta.ID, Message: "sign-in policy rejected verification request"}
		}
	}

	token, err := generateToken(generate)
	if err != nil {
		return &Error{Kind: ErrSignIn, Provider: meta.ID, Err: err}
	}
	expires := time.Now().Add(maxAge)
	callbackURL := base + a.config.BasePath + "/callback/" + meta.ID +
		"?token=" + url.QueryEscape(token) +
		"&identifier=" + url.QueryEscape(identifier)

	vt := &VerificationToken{
		Identifier: identifier,
		Token:      HashVerificationToken(token, a.config.Secrets[0]),
		Expires:    expires,
	}
	params := VerificationParams{Identifier: identifier, Token: token, URL: callbackURL, Expires: expires}

	var wg sync.WaitGroup
	var createErr, sendErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		createErr = a.config.Adapter.CreateVerificationToken(ctx, vt)
	}()
	go func() {
		defer wg.Done()
		sendErr = send(ctx, params)
	}()
	wg.Wait()
	if createErr != nil {
		return &Error{Kind: ErrSignIn, Provider: meta.ID, Err: createErr}
	}
	if sendErr != nil {
		return &Error{Kind: ErrSignIn, Provider: meta.ID, Err: sendErr}
	}

	resp.Redirect = base + a.config.Pages.VerifyRequest +
		"?provider=" + url.QueryEscape(meta.ID) + "&type=" + url.QueryEscape(string(meta.Type))
	return nil
}

func generateToken(generate func() (string, error)) (string, error) {
	if generate != nil {
		return generate()
	}
	return randomToken()
}

// normalizeIdentifier canonicalizes the contact address. Malformed
// identifiers abort initiation before anything is sent or stored.
func normalizeIdentifier(t ProviderType, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("missing identifier")
	}
	switch t {
	case TypeEmail:
		local, domain, found := strings.Cut(raw, "@")
		if !found || local == "" || !strings.Contains(domain, ".") {
			return "", fmt.Errorf("malformed email address")
		}
		return local + "@" + strings.ToLower(domain), nil
	case TypeSMS:
		cleaned := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' || r == '+' {
				return r
			}
			return -1
		}, raw)
		if len(cleaned) < 10 {
			return "", fmt.Errorf("malformed phone number")
		}
		return cleaned, nil
	}
	return raw, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
