package nextauth

import "context"

// Identity is what the provider exchange yields: the provider-scoped account
// id plus whatever profile fields the provider exposed.
type Identity struct {
	ProviderAccountID string
	Name              string
	Email             string
	Image             string
	Profile           map[string]any
}

// Exchanger is the network collaborator that completes the provider side of
// the handshake: authorization code → token → userinfo (or ID-token claims
// for OIDC). The engine never talks to the provider directly. The oauth2
// subpackage provides the standard implementation.
type Exchanger interface {
	// Exchange redeems an authorization code. redirectURI must be the
	// callback URL the code was issued against. codeVerifier is "" when
	// the provider does not use PKCE; nonce is "" when no nonce check
	// applies and must otherwise match the ID token's nonce claim.
	Exchange(ctx context.Context, provider Provider, code, codeVerifier, nonce, redirectURI string) (*Identity, error)
}
