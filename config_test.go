package nextauth

import (
	"testing"
	"time"
)

func TestEnsureDefaults(t *testing.T) {
	cfg := (&Config{}).EnsureDefaults()
	if cfg.BasePath != "/auth" || cfg.CookiePrefix != "auth" {
		t.Fatalf("paths: %q %q", cfg.BasePath, cfg.CookiePrefix)
	}
	if cfg.SessionStrategy != StrategyJWT {
		t.Fatalf("strategy: %q", cfg.SessionStrategy)
	}
	if cfg.SessionMaxAge != 30*24*time.Hour || cfg.SessionUpdateAge != 24*time.Hour {
		t.Fatalf("ages: %v %v", cfg.SessionMaxAge, cfg.SessionUpdateAge)
	}
	if cfg.Pages.Error != "/auth/error" || cfg.Pages.SignIn != "/auth/signin" {
		t.Fatalf("pages: %+v", cfg.Pages)
	}
	if cfg.Logger == nil {
		t.Fatal("no logger default")
	}

	// Host-supplied values survive.
	cfg = (&Config{BasePath: "/api/auth", CookiePrefix: "app"}).EnsureDefaults()
	if cfg.BasePath != "/api/auth" || cfg.Pages.Error != "/api/auth/error" {
		t.Fatalf("custom base path not honoured: %+v", cfg.Pages)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want ErrorKind
	}{
		{"no secret", Config{BaseURL: "http://x"}, ErrMissingSecret},
		{"no origin", Config{Secrets: []string{"s"}}, ErrUntrustedHost},
		{
			"db strategy without adapter",
			Config{Secrets: []string{"s"}, BaseURL: "http://x", SessionStrategy: StrategyDatabase},
			ErrMissingAdapter,
		},
		{
			"email provider without adapter",
			Config{Secrets: []string{"s"}, BaseURL: "http://x", Providers: []Provider{&EmailProvider{ID: "email"}}},
			ErrMissingAdapter,
		},
		{"trust host without base url", Config{Secrets: []string{"s"}, TrustHost: true}, ""},
		{"complete", Config{Secrets: []string{"s"}, BaseURL: "http://x"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.EnsureDefaults().Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !IsKind(err, tt.want) {
				t.Fatalf("want %s, got %v", tt.want, err)
			}
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("AUTH_SECRET", "new,old")
	t.Setenv("AUTH_URL", "https://app.example")
	t.Setenv("AUTH_PATH", "/api/auth")
	t.Setenv("AUTH_TRUST_HOST", "true")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if len(cfg.Secrets) != 2 || cfg.Secrets[0] != "new" {
		t.Fatalf("secrets: %v", cfg.Secrets)
	}
	if cfg.BaseURL != "https://app.example" || cfg.BasePath != "/api/auth" || !cfg.TrustHost {
		t.Fatalf("config: %+v", cfg)
	}
	if cfg.CookiePrefix != "auth" {
		t.Fatalf("defaults not applied: %q", cfg.CookiePrefix)
	}
}
