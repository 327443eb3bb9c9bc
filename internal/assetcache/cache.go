package assetcache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/spherical/snap2pdf/internal/observability"
)

// DefaultName is the current cache version.
const DefaultName = "snap2pdf-cache-v1"

// shellPath is served when the origin cannot answer.
const shellPath = "/index.html"

// DefaultAssets are the pages installed into the cache.
var DefaultAssets = []string{
	"/",
	"/index.html",
	"/about.html",
	"/style.css",
	"/app.js",
	"/manifest.json",
}

// Origin is where uncached assets come from.
type Origin interface {
	Fetch(ctx context.Context, path string) (Asset, error)
}

// FSOrigin serves assets from a file system such as the embedded web UI.
type FSOrigin struct {
	fsys fs.FS
}

// NewFSOrigin wraps fsys.
func NewFSOrigin(fsys fs.FS) *FSOrigin {
	return &FSOrigin{fsys: fsys}
}

// Fetch reads path from the file system. "/" maps to index.html.
func (o *FSOrigin) Fetch(ctx context.Context, p string) (Asset, error) {
	if err := ctx.Err(); err != nil {
		return Asset{}, err
	}
	name := strings.TrimPrefix(path.Clean("/"+p), "/")
	if name == "" {
		name = "index.html"
	}
	data, err := fs.ReadFile(o.fsys, name)
	if err != nil {
		return Asset{}, err
	}
	ct := mime.TypeByExtension(path.Ext(name))
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return Asset{ContentType: ct, Data: data}, nil
}

// Cache is a named, versioned asset cache in front of an origin.
type Cache struct {
	name   string
	assets []string
	store  Store
	origin Origin
	logger *observability.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithAssets overrides the installed asset list.
func WithAssets(paths ...string) Option {
	return func(c *Cache) { c.assets = paths }
}

// WithLogger sets the logger.
func WithLogger(l *observability.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New creates a cache. An empty name selects DefaultName.
func New(name string, store Store, origin Origin, opts ...Option) *Cache {
	if name == "" {
		name = DefaultName
	}
	c := &Cache{
		name:   name,
		assets: DefaultAssets,
		store:  store,
		origin: origin,
		logger: observability.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the cache version in use.
func (c *Cache) Name() string { return c.name }

// Install fetches every listed asset from the origin into the store. Any
// failure fails the whole install.
func (c *Cache) Install(ctx context.Context) error {
	fetched := make(map[string]Asset, len(c.assets))
	for _, p := range c.assets {
		a, err := c.origin.Fetch(ctx, p)
		if err != nil {
			return fmt.Errorf("install %s: %w", p, err)
		}
		fetched[p] = a
	}
	for _, p := range c.assets {
		if err := c.store.Put(ctx, cacheKey(c.name, p), fetched[p]); err != nil {
			return fmt.Errorf("install %s: %w", p, err)
		}
	}
	c.logger.Info().Str("cache", c.name).Int("assets", len(c.assets)).Msg("asset cache installed")
	return nil
}

// Activate deletes every entry that belongs to another cache name and returns
// how many were removed.
func (c *Cache) Activate(ctx context.Context) (int, error) {
	keys, err := c.store.Keys(ctx)
	if err != nil {
		return 0, err
	}
	var stale []string
	for _, k := range keys {
		if cacheName(k) != c.name {
			stale = append(stale, k)
		}
	}
	if err := c.store.Delete(ctx, stale...); err != nil {
		return 0, err
	}
	if len(stale) > 0 {
		c.logger.Info().Str("cache", c.name).Int("removed", len(stale)).Msg("removed old cache entries")
	}
	return len(stale), nil
}

// Fetch serves path from the cache, then the origin, then the cached app
// shell.
func (c *Cache) Fetch(ctx context.Context, p string) (Asset, error) {
	a, err := c.store.Get(ctx, cacheKey(c.name, p))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, ErrMiss) {
		c.logger.Warn().Err(err).Str("path", p).Msg("asset cache read failed")
	}

	a, err = c.origin.Fetch(ctx, p)
	if err == nil {
		return a, nil
	}

	c.logger.Debug().Str("path", p).Str("origin_error", err.Error()).Msg("falling back to app shell")
	a, shellErr := c.store.Get(ctx, cacheKey(c.name, shellPath))
	if shellErr != nil {
		return Asset{}, ErrNotFound
	}
	return a, nil
}

// ServeHTTP serves GET and HEAD requests through Fetch.
func (c *Cache) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	a, err := c.Fetch(r.Context(), r.URL.Path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if a.ContentType != "" {
		w.Header().Set("Content-Type", a.ContentType)
	}
	w.Header().Set("Content-Length", fmt.Sprint(len(a.Data)))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		_, _ = w.Write(a.Data)
	}
}
