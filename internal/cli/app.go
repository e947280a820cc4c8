// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/jeranaias/fcrouter/internal/cloud"
	"github.com/jeranaias/fcrouter/internal/config"
	"github.com/jeranaias/fcrouter/internal/local"
	"github.com/jeranaias/fcrouter/internal/ollama"
	"github.com/jeranaias/fcrouter/internal/router"
	"github.com/jeranaias/fcrouter/internal/storage"
	"github.com/jeranaias/fcrouter/internal/telemetry"
	"github.com/jeranaias/fcrouter/internal/tools"
)

// =============================================================================
// APPLICATION WIRING
// =============================================================================

// App holds the adapters and observers built from a Config. Commands share
// one App per process; it owns every resource it opens.
type App struct {
	Config *config.Config
	Logger *zap.Logger

	Catalog tools.Source
	Local   *local.Adapter
	Cloud   *cloud.Adapter

	Controller *router.Controller
	Stats      *telemetry.RouteStats
	Metrics    *telemetry.Metrics
	Registry   *prometheus.Registry
	Decisions  *storage.DecisionLog

	cloudConfigured bool
	closers         []io.Closer
}

// AppOptions selects the optional parts of an App.
type AppOptions struct {
	// Watch reloads a catalog file on change. Ignored without a catalog path.
	Watch bool
	// Metrics registers Prometheus collectors on a private registry.
	Metrics bool
	// DecisionLog records every routed request in SQLite when enabled in config.
	DecisionLog bool
}

// NewApp builds the catalog, both adapters and the controller. A missing
// cloud key is not an error: the cloud adapter then degrades every call.
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts AppOptions) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{Config: cfg, Logger: logger, Stats: telemetry.NewRouteStats()}

	source, closer, err := catalogSource(cfg.Catalog, opts.Watch, logger)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		app.closers = append(app.closers, closer)
	}
	app.Catalog = source

	app.Local = local.NewAdapter(app.buildEngine(),
		local.WithLogger(logger.Named("local")),
		local.WithMaxTokens(cfg.Local.MaxTokens),
		local.WithConfidenceThreshold(cfg.Routing.ConfidenceThreshold),
	)

	app.Cloud = cloud.NewAdapter(app.buildProvider(ctx),
		cloud.WithLogger(logger.Named("cloud")),
		cloud.WithRateLimit(cfg.Cloud.RateLimit, cfg.Cloud.Burst),
		cloud.WithRetryPolicy(app.retryPolicy()),
	)

	observers := []router.Option{
		router.WithLogger(logger.Named("router")),
		router.WithObserver(app.Stats),
	}

	if opts.Metrics {
		app.Registry = prometheus.NewRegistry()
		app.Metrics = telemetry.NewMetrics(app.Registry)
		observers = append(observers, router.WithObserver(app.Metrics))
	}

	if opts.DecisionLog && cfg.Storage.Enabled {
		path, err := cfg.DecisionDBPath()
		if err != nil {
			app.Close()
			return nil, err
		}
		dl, err := storage.Open(path,
			storage.WithLogger(logger.Named("decisions")),
			storage.WithMaxEntries(cfg.Storage.MaxEntries),
		)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("open decision log: %w", err)
		}
		app.Decisions = dl
		app.closers = append(app.closers, dl)
		observers = append(observers, router.WithObserver(dl))
	}

	app.Controller = router.NewController(app.Local, app.Cloud, observers...)
	return app, nil
}

// Close releases the watcher, decision log and provider clients.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// CloudConfigured reports whether the cloud provider has credentials.
func (a *App) CloudConfigured() bool {
	return a.cloudConfigured
}

// Route routes messages against the active catalog, applying threshold when
// it is non-nil.
func (a *App) Route(ctx context.Context, messages []router.Message, threshold *float64) router.Result {
	if threshold != nil {
		ctx = router.WithConfidenceThreshold(ctx, *threshold)
	}
	return a.Controller.Route(ctx, messages, a.Catalog.Catalog())
}

// EngineLabel names the on-device engine and model, e.g. "ollama/functiongemma".
func (a *App) EngineLabel() string {
	switch e := a.Local.Engine().(type) {
	case *local.OllamaEngine:
		return "ollama/" + e.Model()
	default:
		return a.Config.Local.Engine
	}
}

// catalogSource returns the tool source cfg describes: the built-in catalog,
// a catalog file, or a watched catalog file. The closer is nil unless a
// watcher was started.
func catalogSource(cfg config.CatalogConfig, watch bool, logger *zap.Logger) (tools.Source, io.Closer, error) {
	var (
		source tools.Source
		closer io.Closer
	)
	switch {
	case cfg.Path == "":
		source = tools.Builtin()
	case watch && cfg.Watch:
		w, err := tools.NewWatcher(cfg.Path, tools.WithLogger(logger.Named("catalog")))
		if err != nil {
			return nil, nil, fmt.Errorf("load catalog %s: %w", cfg.Path, err)
		}
		source, closer = w, w
	default:
		c, err := tools.LoadFile(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("load catalog %s: %w", cfg.Path, err)
		}
		source = c
	}

	if cfg.OnDeviceOnly {
		source = onDeviceSource{source}
	}
	return source, closer, nil
}

// onDeviceSource narrows another source to its on-device tools.
type onDeviceSource struct {
	tools.Source
}

func (s onDeviceSource) Catalog() *tools.Catalog {
	return s.Source.Catalog().OnDevice()
}

func (a *App) buildEngine() local.Engine {
	cfg := a.Config.Local
	if cfg.Engine == "bridge" {
		return local.NewBridgeEngine(cfg.BridgeURL, a.Config.LocalTimeout())
	}
	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:      cfg.OllamaURL,
		Timeout:      a.Config.LocalTimeout(),
		DefaultModel: cfg.OllamaModel,
	})
	return local.NewOllamaEngine(client, cfg.OllamaModel)
}

func (a *App) buildProvider(ctx context.Context) cloud.Provider {
	cfg := a.Config.Cloud
	key := a.Config.CloudKey()

	var (
		provider cloud.Provider
		err      error
	)
	switch cfg.Provider {
	case cloud.ProviderOpenAI:
		provider, err = cloud.NewOpenAIProvider(ctx, cloud.OpenAIConfig{
			APIKey:  key,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
			Timeout: a.Config.CloudTimeout(),
		})
	default:
		var gp *cloud.GeminiProvider
		gp, err = cloud.NewGeminiProvider(ctx, cloud.GeminiConfig{APIKey: key, Model: cfg.GeminiModel})
		if err == nil {
			a.closers = append(a.closers, gp)
			provider = gp
		}
	}

	if err != nil {
		level := a.Logger.Warn
		if errors.Is(err, cloud.ErrNotConfigured) {
			level = a.Logger.Info
		}
		level("CLOUD_UNAVAILABLE", zap.String("provider", cfg.Provider), zap.Error(err))
		return cloud.Unavailable(cfg.Provider, err)
	}

	a.cloudConfigured = true
	a.Logger.Debug("CLOUD_READY",
		zap.String("provider", cfg.Provider),
		zap.String("key", cloud.KeyFingerprint(key)),
	)
	return provider
}

func (a *App) retryPolicy() cloud.RetryPolicy {
	p := cloud.DefaultRetryPolicy()
	if n := a.Config.Cloud.MaxRetries; n > 0 {
		p.MaxAttempts = n
	}
	return p
}
