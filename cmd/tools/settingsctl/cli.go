package main

import (
	"context"
	"io"

	"github.com/noah-isme/storefront-checkout/internal/app"
	"github.com/noah-isme/storefront-checkout/internal/auth"
	"github.com/noah-isme/storefront-checkout/internal/cache"
	"github.com/noah-isme/storefront-checkout/internal/config"
	"github.com/noah-isme/storefront-checkout/internal/coupon"
	"github.com/noah-isme/storefront-checkout/internal/db"
	"github.com/noah-isme/storefront-checkout/internal/lock"
	"github.com/noah-isme/storefront-checkout/internal/obs"
	"github.com/noah-isme/storefront-checkout/internal/settings"
)

// backend is what the data commands operate on.
type backend struct {
	Settings *settings.Service
	Coupons  *coupon.Service
}

type cli struct {
	out io.Writer
	// open connects the backend. The returned func releases it.
	open    func(ctx context.Context) (*backend, func(), error)
	config  func() (*config.Config, error)
	migrate func(databaseURL string) error
	version func(databaseURL string) (uint, bool, error)
}

func defaultCLI(out io.Writer) *cli {
	return &cli{
		out:     out,
		open:    openBackend,
		config:  config.Load,
		migrate: db.Migrate,
		version: db.MigrationVersion,
	}
}

func openBackend(ctx context.Context) (*backend, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log := obs.Component(obs.NewLogger("console", cfg.LogLevel), "settingsctl")
	deps, err := app.Open(ctx, cfg, log, "settingsctl")
	if err != nil {
		return nil, nil, err
	}
	b := &backend{
		Settings: &settings.Service{
			Store:  settings.PGStore{DB: deps.DB},
			Cache:  cache.NewJSON(deps.Redis, "settings:", cfg.SettingsCacheTTL),
			Lock:   lock.Locker{R: deps.Redis},
			Events: deps.EventBus(),
			Log:    log,
		},
		Coupons: &coupon.Service{Store: coupon.PGStore{DB: deps.DB}},
	}
	return b, deps.Close, nil
}

func (c *cli) verifier() (*auth.Verifier, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	return auth.NewVerifier(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer, Audience: cfg.JWTAudience})
}
