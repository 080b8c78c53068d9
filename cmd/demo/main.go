// Command demo runs a minimal host application around the handshake
// engine: GitHub OAuth plus a console-delivered email provider, backed by
// JSON-file stores.
package main

import (
	"log/slog"
	"net/http"
	"os"

	nextauth "github.com/nextauthjs/next-auth-sub011"
	authoauth2 "github.com/nextauthjs/next-auth-sub011/oauth2"
	"github.com/nextauthjs/next-auth-sub011/stores"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := nextauth.ConfigFromEnv()
	if err != nil {
		logger.Error("config", "err", err)
		os.Exit(1)
	}
	cfg.Adapter = stores.NewFSAdapter(envOr("AUTH_STORAGE", "./authdata"))
	cfg.Exchanger = authoauth2.New()
	cfg.Logger = logger
	cfg.Providers = []nextauth.Provider{
		authoauth2.GitHub(os.Getenv("GITHUB_CLIENT_ID"), os.Getenv("GITHUB_CLIENT_SECRET")),
		&nextauth.EmailProvider{
			ID:                      "email",
			Name:                    "Email",
			SendVerificationRequest: nextauth.ConsoleSender(logger),
		},
	}

	auth, err := nextauth.New(cfg)
	if err != nil {
		logger.Error("auth setup", "err", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.BasePath+"/", auth.Handler())
	mux.Handle("/me", auth.RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := auth.SessionFromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":"` + str(claims["email"]) + `"}`))
	}), true))

	addr := envOr("ADDR", ":8080")
	logger.Info("listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("server", "err", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
