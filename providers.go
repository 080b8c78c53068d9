package nextauth

import (
	"context"
	"time"
)

// ProviderType discriminates the provider union.
type ProviderType string

const (
	TypeOAuth       ProviderType = "oauth"
	TypeOIDC        ProviderType = "oidc"
	TypeEmail       ProviderType = "email"
	TypeSMS         ProviderType = "sms"
	TypeCredentials ProviderType = "credentials"
	TypeWebAuthn    ProviderType = "webauthn"
)

// Check names a handshake artifact an OAuth/OIDC provider requires.
type Check string

const (
	CheckState Check = "state"
	CheckPKCE  Check = "pkce"
	CheckNonce Check = "nonce"
)

// ProviderMeta is the part of every provider the engine itself reads.
type ProviderMeta struct {
	ID     string
	Name   string
	Type   ProviderType
	Checks []Check
}

// Provider is a closed union over authentication capabilities. Concrete
// variants are OAuthProvider, OIDCProvider, EmailProvider, SMSProvider,
// CredentialsProvider and WebAuthnProvider; handlers type-switch on them.
type Provider interface {
	Meta() ProviderMeta
}

// OAuthProvider describes a plain OAuth 2.0 authorization-code provider.
// The endpoints are consumed by the external exchange collaborator; the
// engine reads only the metadata and checks.
type OAuthProvider struct {
	ID               string
	Name             string
	ClientID         string
	ClientSecret     string
	AuthorizationURL string
	TokenURL         string
	UserInfoURL      string
	Scopes           []string
	Checks           []Check // defaults to {state}
}

func (p *OAuthProvider) Meta() ProviderMeta {
	checks := p.Checks
	if len(checks) == 0 {
		checks = []Check{CheckState}
	}
	return ProviderMeta{ID: p.ID, Name: p.Name, Type: TypeOAuth, Checks: checks}
}

// OIDCProvider is an OpenID Connect provider. Endpoints may be left empty
// when the exchanger discovers them from the issuer.
type OIDCProvider struct {
	OAuthProvider
	Issuer string
}

func (p *OIDCProvider) Meta() ProviderMeta {
	checks := p.Checks
	if len(checks) == 0 {
		checks = []Check{CheckPKCE, CheckState, CheckNonce}
	}
	return ProviderMeta{ID: p.ID, Name: p.Name, Type: TypeOIDC, Checks: checks}
}

// VerificationParams is handed to a token provider's send callback. Token is
// the raw value; only its hash is ever persisted.
type VerificationParams struct {
	Identifier string
	Token      string
	URL        string
	Expires    time.Time
}

// EmailProvider implements passwordless magic-link sign-in. Delivery is the
// host's job via SendVerificationRequest.
type EmailProvider struct {
	ID     string
	Name   string
	From   string
	MaxAge time.Duration // token lifetime, default 24h

	SendVerificationRequest func(ctx context.Context, params VerificationParams) error

	// GenerateToken overrides the default random token, e.g. to send a
	// short numeric code instead of a link.
	GenerateToken func() (string, error)
}

func (p *EmailProvider) Meta() ProviderMeta {
	return ProviderMeta{ID: p.ID, Name: p.Name, Type: TypeEmail}
}

func (p *EmailProvider) tokenMaxAge() time.Duration {
	if p.MaxAge > 0 {
		return p.MaxAge
	}
	return 24 * time.Hour
}

// SMSProvider implements one-time-code sign-in over SMS. Identical protocol
// to EmailProvider with a much shorter token lifetime.
type SMSProvider struct {
	ID     string
	Name   string
	MaxAge time.Duration // token lifetime, default 5m

	SendVerificationRequest func(ctx context.Context, params VerificationParams) error
	GenerateToken           func() (string, error)
}

func (p *SMSProvider) Meta() ProviderMeta {
	return ProviderMeta{ID: p.ID, Name: p.Name, Type: TypeSMS}
}

func (p *SMSProvider) tokenMaxAge() time.Duration {
	if p.MaxAge > 0 {
		return p.MaxAge
	}
	return 5 * time.Minute
}

// CredentialsProvider authenticates with application-supplied credentials.
// Authorize returns the user, or nil/error to reject. The credentials form
// posts straight to the callback action; there is no initiation step.
type CredentialsProvider struct {
	ID   string
	Name string

	Authorize func(ctx context.Context, credentials map[string]string) (*User, error)
}

func (p *CredentialsProvider) Meta() ProviderMeta {
	return ProviderMeta{ID: p.ID, Name: p.Name, Type: TypeCredentials}
}

// WebAuthnProvider exposes ceremony options through a collaborator; the
// WebAuthn ceremony itself happens outside the engine.
type WebAuthnProvider struct {
	ID   string
	Name string

	Options func(ctx context.Context, r *Request) (any, error)
}

func (p *WebAuthnProvider) Meta() ProviderMeta {
	return ProviderMeta{ID: p.ID, Name: p.Name, Type: TypeWebAuthn}
}
