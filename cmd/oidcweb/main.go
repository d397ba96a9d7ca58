// oidcweb is a server-rendered web app that logs users in with an OIDC
// provider, keeps their tokens in a server-side session and shows their
// profile claims.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/kgreely/oidcweb/config"
	"github.com/kgreely/oidcweb/oidc"
	"github.com/kgreely/oidcweb/server"
	"github.com/kgreely/oidcweb/session"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to the settings file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "oidcweb",
		Level: hclog.LevelFromString(cfg.LogLevel),
	})

	if err := run(cfg, logger); err != nil {
		logger.Error("exiting", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger hclog.Logger) error {
	opts := []oidc.Option{
		oidc.WithScopes(cfg.Auth.Scopes...),
		oidc.WithPostLogoutRedirectURL(cfg.PostLogoutURL()),
	}
	if cfg.Auth.ProviderCA != "" {
		opts = append(opts, oidc.WithProviderCA(cfg.Auth.ProviderCA))
	}
	oc, err := oidc.NewConfig(
		cfg.Auth.Issuer,
		cfg.Auth.ClientID,
		oidc.ClientSecret(cfg.Auth.ClientSecret),
		cfg.RedirectURL(),
		opts...,
	)
	if err != nil {
		return err
	}

	// fails fast when the issuer's discovery document is unreachable
	provider, err := oidc.NewProvider(oc)
	if err != nil {
		return err
	}
	defer provider.Done()

	store := session.NewMemoryStore()
	cookies, err := session.NewCookieCodec(
		cfg.Session.CookieName,
		[]byte(cfg.Session.Secret),
		cfg.Session.TTL,
		cfg.Session.Secure,
	)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, provider, store, cookies, logger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	logger.Info("listening", "addr", cfg.Server.Addr(), "public_url", cfg.Server.PublicURL, "env", cfg.Env)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}
