package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/tyB-or/weibu-ipSearch/internal/config"
	"github.com/tyB-or/weibu-ipSearch/internal/geolite"
	"github.com/tyB-or/weibu-ipSearch/internal/results"
	"github.com/tyB-or/weibu-ipSearch/internal/settings"
	"github.com/tyB-or/weibu-ipSearch/internal/threatbook"
)

// Options are the command-line switches that change how the runtime is put
// together.
type Options struct {
	// UpdateGeoLite forces a database download even when one is not due.
	UpdateGeoLite bool
	// StoreBackend overrides store.backend from the settings file.
	StoreBackend string
}

// Runtime holds everything a session needs. Close releases it.
type Runtime struct {
	Config   config.Config
	Client   *threatbook.Client
	Settings *settings.Settings
	Resolver *geolite.Resolver
}

// Enricher returns the GeoLite resolver, or nil when no database is present.
func (r *Runtime) Enricher() results.Enricher {
	if r.Resolver == nil {
		return nil
	}
	return r.Resolver
}

func (r *Runtime) Close() error {
	var errs []error
	if r.Settings != nil {
		errs = append(errs, r.Settings.Close())
	}
	if r.Resolver != nil {
		errs = append(errs, r.Resolver.Close())
	}
	return errors.Join(errs...)
}

// Setup builds the runtime from the loaded configuration. The settings store
// and the GeoLite download run side by side; the resolver is opened after
// both are done.
func Setup(ctx context.Context, opts Options) (*Runtime, error) {
	cfg := config.GetConfig()

	client, err := threatbook.NewClient(threatbook.Options{
		Endpoint: cfg.API.Endpoint,
		Proxy:    cfg.API.Proxy,
		Timeout:  config.GetRequestTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create api client: %w", err)
	}

	backend := cfg.Store.Backend
	if opts.StoreBackend != "" {
		backend = opts.StoreBackend
	}

	var store settings.Store
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		store, err = settings.OpenStore(gctx, backend, cfg.Store.SQLitePath)
		if err != nil {
			return fmt.Errorf("failed to open settings store: %w", err)
		}
		return nil
	})
	if opts.UpdateGeoLite || config.GeoLiteUpdateDue(time.Now()) {
		g.Go(func() error {
			updateGeoLite(gctx, cfg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, err
	}

	rt := &Runtime{
		Config:   cfg,
		Client:   client,
		Settings: settings.New(store),
	}

	if err := rt.Settings.CheckAndResetDaily(ctx); err != nil {
		log.Warn("Failed to reset daily query count", "error", err)
	}

	resolver, err := geolite.Open(cfg.GeoLite.CountryDB, cfg.GeoLite.ASNDB, cfg.API.Language)
	if err != nil {
		log.Warn("GeoLite databases could not be opened", "error", err)
	}
	rt.Resolver = resolver

	return rt, nil
}

// updateGeoLite never fails the startup; a stale or missing database only
// disables the location fallback.
func updateGeoLite(ctx context.Context, cfg config.Config) {
	updater := &geolite.Updater{
		LicenseKey: cfg.GeoLite.LicenseKey,
		Dir:        filepath.Dir(cfg.GeoLite.CountryDB),
	}

	if err := updater.Update(ctx); err != nil {
		if errors.Is(err, geolite.ErrNoLicenseKey) {
			log.Warn("Skipping GeoLite update: no license key configured")
			return
		}
		log.Error("GeoLite update failed", "error", err)
		return
	}

	if err := config.MarkGeoLiteUpdated(time.Now()); err != nil {
		log.Warn("Failed to record GeoLite update time", "error", err)
	}
}
