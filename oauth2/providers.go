package oauth2

import (
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	nextauth "github.com/nextauthjs/next-auth-sub011"
)

// Google returns a ready-made Google OIDC provider.
func Google(clientID, clientSecret string) *nextauth.OIDCProvider {
	return &nextauth.OIDCProvider{
		OAuthProvider: nextauth.OAuthProvider{
			ID:               "google",
			Name:             "Google",
			ClientID:         clientID,
			ClientSecret:     clientSecret,
			AuthorizationURL: google.Endpoint.AuthURL,
			TokenURL:         google.Endpoint.TokenURL,
			UserInfoURL:      "https://openidconnect.googleapis.com/v1/userinfo",
			Scopes:           []string{"openid", "profile", "email"},
			Checks:           []nextauth.Check{nextauth.CheckPKCE, nextauth.CheckState, nextauth.CheckNonce},
		},
		Issuer: "https://accounts.google.com",
	}
}

// GitHub returns a ready-made GitHub OAuth provider.
func GitHub(clientID, clientSecret string) *nextauth.OAuthProvider {
	return &nextauth.OAuthProvider{
		ID:               "github",
		Name:             "GitHub",
		ClientID:         clientID,
		ClientSecret:     clientSecret,
		AuthorizationURL: github.Endpoint.AuthURL,
		TokenURL:         github.Endpoint.TokenURL,
		UserInfoURL:      "https://api.github.com/user",
		Scopes:           []string{"read:user", "user:email"},
		Checks:           []nextauth.Check{nextauth.CheckState},
	}
}
