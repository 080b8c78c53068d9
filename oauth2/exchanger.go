// Package oauth2 implements the engine's provider-exchange collaborator on
// top of golang.org/x/oauth2: authorization-code redemption, userinfo
// fetches and OIDC ID-token claim extraction.
package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	xoauth2 "golang.org/x/oauth2"

	nextauth "github.com/nextauthjs/next-auth-sub011"
)

// Exchanger is the standard token/userinfo exchange. Assign it to
// Config.Exchanger.
type Exchanger struct {
	// Client overrides the HTTP client used for the exchange and the
	// userinfo fetch. Nil means http.DefaultClient; hosts set this for
	// proxies and timeouts.
	Client *http.Client
}

// New returns an Exchanger using the default HTTP client.
func New() *Exchanger {
	return &Exchanger{}
}

var _ nextauth.Exchanger = (*Exchanger)(nil)

// Exchange redeems the authorization code and resolves the user's identity,
// preferring ID-token claims for OIDC providers and falling back to the
// userinfo endpoint.
func (e *Exchanger) Exchange(ctx context.Context, provider nextauth.Provider, code, codeVerifier, nonce, redirectURI string) (*nextauth.Identity, error) {
	conf, userInfoURL, isOIDC, err := clientConfig(provider, redirectURI)
	if err != nil {
		return nil, err
	}
	if e.Client != nil {
		ctx = context.WithValue(ctx, xoauth2.HTTPClient, e.Client)
	}

	var opts []xoauth2.AuthCodeOption
	if codeVerifier != "" {
		opts = append(opts, xoauth2.SetAuthURLParam("code_verifier", codeVerifier))
	}
	token, err := conf.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}

	profile := map[string]any{}
	if isOIDC {
		claims, err := idTokenClaims(token, nonce)
		if err != nil {
			return nil, err
		}
		for k, v := range claims {
			profile[k] = v
		}
	}
	if userInfoURL != "" {
		info, err := e.fetchUserInfo(ctx, userInfoURL, token.AccessToken)
		if err != nil {
			return nil, err
		}
		for k, v := range info {
			profile[k] = v
		}
	}
	if len(profile) == 0 {
		return nil, fmt.Errorf("provider returned no identity")
	}

	identity := &nextauth.Identity{
		ProviderAccountID: stringClaim(profile, "sub", "id"),
		Name:              stringClaim(profile, "name", "login"),
		Email:             stringClaim(profile, "email"),
		Image:             stringClaim(profile, "picture", "avatar_url"),
		Profile:           profile,
	}
	if identity.ProviderAccountID == "" {
		return nil, fmt.Errorf("provider profile has no account id")
	}
	return identity, nil
}

func (e *Exchanger) fetchUserInfo(ctx context.Context, url, accessToken string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo fetch failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo fetch returned %d", res.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading userinfo: %w", err)
	}
	var info map[string]any
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("parsing userinfo: %w", err)
	}
	return info, nil
}

// idTokenClaims extracts claims from the ID token and enforces the nonce
// binding. The token arrived over TLS directly from the token endpoint, so
// the transport authenticates the issuer; signature verification against
// provider JWKS is left to hosts with stricter requirements.
func idTokenClaims(token *xoauth2.Token, nonce string) (jwt.MapClaims, error) {
	raw, _ := token.Extra("id_token").(string)
	if raw == "" {
		return nil, fmt.Errorf("token response has no id_token")
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("parsing id_token: %w", err)
	}
	if nonce != "" {
		got, _ := claims["nonce"].(string)
		if got != nonce {
			return nil, fmt.Errorf("id_token nonce mismatch")
		}
	}
	return claims, nil
}

func clientConfig(provider nextauth.Provider, redirectURI string) (conf *xoauth2.Config, userInfoURL string, isOIDC bool, err error) {
	switch p := provider.(type) {
	case *nextauth.OAuthProvider:
		if p.TokenURL == "" {
			return nil, "", false, fmt.Errorf("provider %s has no token endpoint", p.ID)
		}
		return &xoauth2.Config{
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
			RedirectURL:  redirectURI,
			Scopes:       p.Scopes,
			Endpoint:     xoauth2.Endpoint{AuthURL: p.AuthorizationURL, TokenURL: p.TokenURL},
		}, p.UserInfoURL, false, nil
	case *nextauth.OIDCProvider:
		tokenURL := p.TokenURL
		if tokenURL == "" && p.Issuer != "" {
			tokenURL = strings.TrimSuffix(p.Issuer, "/") + "/token"
		}
		if tokenURL == "" {
			return nil, "", false, fmt.Errorf("provider %s has no token endpoint", p.ID)
		}
		return &xoauth2.Config{
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
			RedirectURL:  redirectURI,
			Scopes:       p.Scopes,
			Endpoint:     xoauth2.Endpoint{AuthURL: p.AuthorizationURL, TokenURL: tokenURL},
		}, p.UserInfoURL, true, nil
	}
	return nil, "", false, fmt.Errorf("provider cannot be exchanged")
}

func stringClaim(profile map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := profile[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case json.Number:
			return v.String()
		}
	}
	return ""
}
