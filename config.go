package nextauth

import (
	"context"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"
)

// SessionStrategy selects how sessions are carried.
type SessionStrategy string

const (
	// StrategyJWT keeps the whole session in a signed cookie; no server
	// state.
	StrategyJWT SessionStrategy = "jwt"
	// StrategyDatabase stores sessions through the adapter; the cookie
	// carries only an opaque token.
	StrategyDatabase SessionStrategy = "database"
)

// SignInParams is handed to the SignIn authorization callback.
type SignInParams struct {
	User    *User
	Account *Account
	Profile map[string]any

	// VerificationRequest is true when the callback runs at email/SMS
	// sign-in initiation, before any token is sent.
	VerificationRequest bool

	Credentials map[string]string
}

// Callbacks are the host's policy hooks. All are optional.
type Callbacks struct {
	// SignIn decides whether the identified user may sign in. A false
	// return or an error denies access.
	SignIn func(ctx context.Context, params SignInParams) (bool, error)

	// Redirect computes the final destination after sign-in/sign-out.
	// The default restricts targets to the base URL's origin.
	Redirect func(ctx context.Context, url, baseURL string) (string, error)

	// JWT may enrich the token claims at session mint and refresh.
	JWT func(ctx context.Context, claims jwt.MapClaims, user *User, account *Account, profile map[string]any) (jwt.MapClaims, error)

	// Session shapes the object returned by the session action.
	Session func(ctx context.Context, session map[string]any, claims jwt.MapClaims, user *User) (map[string]any, error)
}

// Pages lets the host override where failures and prompts redirect to.
type Pages struct {
	SignIn        string
	SignOut       string
	Error         string
	VerifyRequest string
}

// Config wires the engine. It is supplied once and treated as read-only;
// the engine holds no other state between requests.
type Config struct {
	Providers []Provider
	Adapter   Adapter

	// Secrets is the rotation list, newest first. Encoding always uses
	// Secrets[0]; decoding tries each in order.
	Secrets []string

	// BaseURL is the canonical external origin (e.g. https://example.com).
	// When empty it is derived from the request host, which requires
	// TrustHost.
	BaseURL string

	// BasePath is where the action routes are mounted, default "/auth".
	BasePath string

	// CookiePrefix namespaces every engine cookie, default "auth".
	CookiePrefix string

	// TrustHost allows deriving the base URL from the Host header.
	TrustHost bool

	// SkipCSRFCheck disables double-submit validation. Intended only for
	// trusted host frameworks that run their own CSRF protection.
	SkipCSRFCheck bool

	// RawResponse makes error outcomes render as structured JSON instead
	// of error-page redirects. Intended only for trusted host
	// integrations that translate responses themselves.
	RawResponse bool

	SessionStrategy SessionStrategy // default jwt
	SessionMaxAge   time.Duration   // default 30 days
	// SessionUpdateAge is how close to expiry a session check gets before
	// the token is re-minted. Default 24h.
	SessionUpdateAge time.Duration

	Callbacks Callbacks
	Pages     Pages

	// Exchanger performs the provider-side token/userinfo exchange. The
	// oauth2 subpackage supplies the default; tests and trusted hosts may
	// substitute their own.
	Exchanger Exchanger

	Logger *slog.Logger
}

// EnsureDefaults fills zero values in place and returns the config.
func (c *Config) EnsureDefaults() *Config {
	if c.BasePath == "" {
		c.BasePath = "/auth"
	}
	if c.CookiePrefix == "" {
		c.CookiePrefix = "auth"
	}
	if c.SessionStrategy == "" {
		c.SessionStrategy = StrategyJWT
	}
	if c.SessionMaxAge <= 0 {
		c.SessionMaxAge = 30 * 24 * time.Hour
	}
	if c.SessionUpdateAge <= 0 {
		c.SessionUpdateAge = 24 * time.Hour
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Pages.SignIn == "" {
		c.Pages.SignIn = c.BasePath + "/signin"
	}
	if c.Pages.SignOut == "" {
		c.Pages.SignOut = c.BasePath + "/signout"
	}
	if c.Pages.Error == "" {
		c.Pages.Error = c.BasePath + "/error"
	}
	if c.Pages.VerifyRequest == "" {
		c.Pages.VerifyRequest = c.BasePath + "/verify-request"
	}
	return c
}

// Validate reports host misconfiguration. These errors are fatal at
// construction time, not per-request conditions.
func (c *Config) Validate() error {
	if len(c.Secrets) == 0 {
		return NewError(ErrMissingSecret, "at least one secret is required")
	}
	if c.Adapter == nil {
		if c.SessionStrategy == StrategyDatabase {
			return NewError(ErrMissingAdapter, "database session strategy requires an adapter")
		}
		for _, p := range c.Providers {
			switch p.Meta().Type {
			case TypeEmail, TypeSMS:
				return NewError(ErrMissingAdapter, "token providers require an adapter for verification tokens")
			}
		}
	}
	if c.BaseURL == "" && !c.TrustHost {
		return NewError(ErrUntrustedHost, "set BaseURL or TrustHost to derive the origin from requests")
	}
	return nil
}

// provider finds a configured provider by id.
func (c *Config) provider(id string) Provider {
	for _, p := range c.Providers {
		if p.Meta().ID == id {
			return p
		}
	}
	return nil
}

// envConfig is the environment surface for ConfigFromEnv.
type envConfig struct {
	Secrets      []string `env:"AUTH_SECRET,required" envSeparator:","`
	URL          string   `env:"AUTH_URL"`
	BasePath     string   `env:"AUTH_PATH"`
	CookiePrefix string   `env:"AUTH_COOKIE_PREFIX"`
	TrustHost    bool     `env:"AUTH_TRUST_HOST"`
}

// ConfigFromEnv builds a Config skeleton from the environment. Providers,
// adapter and callbacks are still wired in code; the environment carries the
// deployment-specific values (secrets newest-first, comma separated).
func ConfigFromEnv() (*Config, error) {
	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		return nil, WrapError(ErrMissingSecret, err)
	}
	cfg := &Config{
		Secrets:      ec.Secrets,
		BaseURL:      ec.URL,
		BasePath:     ec.BasePath,
		CookiePrefix: ec.CookiePrefix,
		TrustHost:    ec.TrustHost,
	}
	return cfg.EnsureDefaults(), nil
}
