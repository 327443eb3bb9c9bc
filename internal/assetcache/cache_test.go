package assetcache

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func webFS() fstest.MapFS {
	return fstest.MapFS{
		"index.html":    {Data: []byte("<html>shell</html>")},
		"about.html":    {Data: []byte("<html>about</html>")},
		"style.css":     {Data: []byte("body{}")},
		"app.js":        {Data: []byte("console.log(1)")},
		"manifest.json": {Data: []byte(`{"name":"snap2pdf"}`)},
	}
}

// switchOrigin fails every fetch once offline is set.
type switchOrigin struct {
	inner   Origin
	offline bool
	calls   int
}

func (o *switchOrigin) Fetch(ctx context.Context, p string) (Asset, error) {
	o.calls++
	if o.offline {
		return Asset{}, errors.New("network unreachable")
	}
	return o.inner.Fetch(ctx, p)
}

func TestFSOrigin(t *testing.T) {
	o := NewFSOrigin(webFS())
	ctx := context.Background()

	root, err := o.Fetch(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, "<html>shell</html>", string(root.Data))
	assert.Contains(t, root.ContentType, "text/html")

	css, err := o.Fetch(ctx, "/style.css")
	require.NoError(t, err)
	assert.Contains(t, css.ContentType, "text/css")

	_, err = o.Fetch(ctx, "/../secret")
	assert.Error(t, err)
}

func TestCache_InstallAndFetch(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	origin := &switchOrigin{inner: NewFSOrigin(webFS())}
	c := New("", store, origin)
	assert.Equal(t, DefaultName, c.Name())

	require.NoError(t, c.Install(ctx))
	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, len(DefaultAssets))
	assert.Contains(t, keys, "snap2pdf-cache-v1:/app.js")

	origin.calls = 0
	origin.offline = true

	// hits never reach the origin
	a, err := c.Fetch(ctx, "/about.html")
	require.NoError(t, err)
	assert.Equal(t, "<html>about</html>", string(a.Data))
	assert.Zero(t, origin.calls)

	// an uncached path falls back to the app shell while offline
	a, err = c.Fetch(ctx, "/sessions/123")
	require.NoError(t, err)
	assert.Equal(t, "<html>shell</html>", string(a.Data))
	assert.Equal(t, 1, origin.calls)
}

func TestCache_FetchMissGoesToOrigin(t *testing.T) {
	ctx := context.Background()
	fsys := webFS()
	fsys["icons/icon-192.png"] = &fstest.MapFile{Data: []byte("\x89PNG\r\n\x1a\n")}
	c := New("", NewMemoryStore(), NewFSOrigin(fsys))

	a, err := c.Fetch(ctx, "/icons/icon-192.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", a.ContentType)
}

func TestCache_FetchNotFoundWithoutShell(t *testing.T) {
	c := New("", NewMemoryStore(), &switchOrigin{offline: true})
	_, err := c.Fetch(context.Background(), "/index.html")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCache_InstallFailsAsAWhole(t *testing.T) {
	fsys := webFS()
	delete(fsys, "app.js")
	store := NewMemoryStore()
	c := New("", store, NewFSOrigin(fsys))

	err := c.Install(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/app.js")

	keys, err := store.Keys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestCache_ActivateRemovesOldVersions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	origin := NewFSOrigin(webFS())

	old := New("snap2pdf-cache-v0", store, origin)
	require.NoError(t, old.Install(ctx))

	current := New("snap2pdf-cache-v1", store, origin, WithAssets("/", "/index.html"))
	require.NoError(t, current.Install(ctx))

	removed, err := current.Activate(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(DefaultAssets), removed)

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"snap2pdf-cache-v1:/", "snap2pdf-cache-v1:/index.html"}, keys)

	removed, err = current.Activate(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestCache_ServeHTTP(t *testing.T) {
	c := New("", NewMemoryStore(), NewFSOrigin(webFS()))
	require.NoError(t, c.Install(context.Background()))

	tests := []struct {
		name     string
		method   string
		path     string
		wantCode int
		wantBody string
	}{
		{"root", http.MethodGet, "/", http.StatusOK, "<html>shell</html>"},
		{"script", http.MethodGet, "/app.js", http.StatusOK, "console.log(1)"},
		{"head", http.MethodHead, "/style.css", http.StatusOK, ""},
		{"post rejected", http.MethodPost, "/", http.StatusMethodNotAllowed, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)

	data := []byte("abc")
	require.NoError(t, s.Put(ctx, "k", Asset{ContentType: "text/plain", Data: data}))
	data[0] = 'x'

	a, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(a.Data))

	require.NoError(t, s.Delete(ctx, "k", "missing"))
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
	assert.NoError(t, s.Close())
}
