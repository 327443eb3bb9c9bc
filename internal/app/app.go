// Package app wires configuration, engines and stores into a workflow
// Service for the CLI and the server.
package app

import (
	"context"
	"fmt"
	"io"
	"io/fs"

	"github.com/spherical/snap2pdf/internal/assetcache"
	"github.com/spherical/snap2pdf/internal/audit"
	"github.com/spherical/snap2pdf/internal/capture"
	"github.com/spherical/snap2pdf/internal/config"
	"github.com/spherical/snap2pdf/internal/domain"
	"github.com/spherical/snap2pdf/internal/observability"
	"github.com/spherical/snap2pdf/internal/pdf"
	"github.com/spherical/snap2pdf/internal/workflow"
)

// Extraction engine names
const (
	EngineMuPDF  = "mupdf"
	EngineNative = "native"
)

// App holds the wired components.
type App struct {
	Config  *config.Config
	Logger  *observability.Logger
	Service *workflow.Service
	Audit   audit.Store

	closers []io.Closer
}

type options struct {
	logOutput io.Writer
	noColor   bool
	events    chan<- domain.WorkflowEvent
}

// Option configures New.
type Option func(*options)

// WithLogOutput sends logs to w instead of stderr.
func WithLogOutput(w io.Writer) Option {
	return func(o *options) { o.logOutput = w }
}

// WithNoColor disables colored console logs.
func WithNoColor(noColor bool) Option {
	return func(o *options) { o.noColor = noColor }
}

// WithEvents forwards workflow progress events to ch.
func WithEvents(ch chan<- domain.WorkflowEvent) Option {
	return func(o *options) { o.events = ch }
}

// New builds an App from cfg.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		Output:      o.logOutput,
		ServiceName: cfg.Observability.ServiceName,
		NoColor:     o.noColor,
	})

	text, err := NewTextEngine(cfg.Extract.Engine)
	if err != nil {
		return nil, err
	}

	store, err := audit.Open(ctx, cfg.Audit)
	if err != nil {
		return nil, domain.ConfigError("failed to open audit store", err)
	}

	mupdf := pdf.NewMuPDF()
	engines := workflow.Engines{
		Renderer: mupdf,
		Text:     text,
		Composer: pdf.NewComposer(),
		Pager:    pdf.NewImagePager(),
	}
	settings := workflow.Settings{
		Capture:    cfg.Capture,
		Render:     cfg.Render,
		Annotation: cfg.Annotation,
	}

	svcOpts := []workflow.Option{
		workflow.WithLogger(logger),
		workflow.WithRecorder(store),
	}
	if o.events != nil {
		svcOpts = append(svcOpts, workflow.WithEvents(o.events))
	}

	logger.Debug().
		Str("extract_engine", cfg.Extract.Engine).
		Str("audit", cfg.Audit.Driver).
		Float64("render_scale", cfg.Render.Scale).
		Msg("engines ready")

	return &App{
		Config:  cfg,
		Logger:  logger,
		Service: workflow.NewService(engines, settings, svcOpts...),
		Audit:   store,
		closers: []io.Closer{store},
	}, nil
}

// NewTextEngine returns the text extraction engine by name.
func NewTextEngine(name string) (domain.TextEngine, error) {
	switch name {
	case "", EngineMuPDF:
		return pdf.NewMuPDF().TextEngine(), nil
	case EngineNative:
		return pdf.NewNative(), nil
	default:
		return nil, domain.ConfigError(fmt.Sprintf("unknown extract engine %q", name), nil)
	}
}

// Camera returns the local capture device configured for ffmpeg.
func (a *App) Camera() domain.Camera {
	return capture.NewFFmpegCamera(capture.FFmpegOptions{
		Binary:      a.Config.Capture.FFmpegPath,
		InputFormat: a.Config.Capture.InputFormat,
		Device:      a.Config.Capture.Device,
	}, a.Logger)
}

// AssetCache opens the configured store, installs the assets of origin under
// the current cache name and drops older versions.
func (a *App) AssetCache(ctx context.Context, origin fs.FS) (*assetcache.Cache, error) {
	cfg := a.Config.Cache

	var store assetcache.Store
	switch cfg.Driver {
	case "redis":
		rs, err := assetcache.NewRedisStore(assetcache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return nil, domain.ConfigError("failed to connect to asset cache", err)
		}
		store = rs
	default:
		store = assetcache.NewMemoryStore()
	}
	a.closers = append(a.closers, store)

	cache := assetcache.New(cfg.Name, store, assetcache.NewFSOrigin(origin),
		assetcache.WithLogger(a.Logger.WithOperation("asset_cache")))
	if err := cache.Install(ctx); err != nil {
		return nil, err
	}
	if _, err := cache.Activate(ctx); err != nil {
		return nil, err
	}
	return cache, nil
}

// Close releases the stores.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
