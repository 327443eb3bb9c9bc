package app

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"codeberg.org/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/snap2pdf/internal/assetcache"
	"github.com/spherical/snap2pdf/internal/audit"
	"github.com/spherical/snap2pdf/internal/config"
	"github.com/spherical/snap2pdf/internal/domain"
	"github.com/spherical/snap2pdf/internal/pdf"
)

func TestNewTextEngine(t *testing.T) {
	e, err := NewTextEngine("")
	require.NoError(t, err)
	assert.NotNil(t, e)

	e, err = NewTextEngine(EngineNative)
	require.NoError(t, err)
	assert.IsType(t, &pdf.Native{}, e)

	_, err = NewTextEngine("tesseract")
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))
}

func TestExtract_Engines(t *testing.T) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetFont("Helvetica", "", 14)
	doc.AddPage()
	doc.Text(20, 30, "Alpha")
	doc.Text(20, 45, "Bravo")
	doc.AddPage()
	doc.Text(20, 30, "Charlie")
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))

	for _, engine := range []string{EngineMuPDF, EngineNative} {
		t.Run(engine, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Observability.LogLevel = "disabled"
			cfg.Extract.Engine = engine

			a, err := New(context.Background(), cfg)
			require.NoError(t, err)
			defer a.Close()

			res, err := a.Service.Extract(context.Background(), domain.Input{Name: "lines.pdf", Data: buf.Bytes()}, nil)
			require.NoError(t, err)
			assert.Equal(t, "Alpha Bravo\n\nCharlie", res.Text)
			require.Len(t, res.Pages, 2)
			assert.Equal(t, "Alpha Bravo", res.Pages[0].Text)
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	var logs bytes.Buffer
	cfg := config.DefaultConfig()
	cfg.Observability.LogLevel = "debug"
	cfg.Observability.LogFormat = "json"

	a, err := New(context.Background(), cfg, WithLogOutput(&logs))
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, audit.Nop{}, a.Audit)
	assert.NotNil(t, a.Service)
	assert.Equal(t, cfg.Render.Scale, a.Service.Settings().Render.Scale)
	assert.NotNil(t, a.Camera())
	assert.Contains(t, logs.String(), "engines ready")
}

func TestNew_RejectsUnknownEngine(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Extract.Engine = "ocr"
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNew_SQLiteAudit(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Audit.Driver = "sqlite"
	cfg.Audit.DSN = filepath.Join(t.TempDir(), "history.db")

	events := make(chan domain.WorkflowEvent, 16)
	a, err := New(context.Background(), cfg, WithEvents(events))
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Service.Merge(context.Background(), nil, nil)
	require.Error(t, err)

	recs, err := a.Audit.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.WorkflowMerge, recs[0].Workflow)
	assert.Equal(t, domain.ErrorTypeInsufficientInput, recs[0].ErrorType)
	assert.NotEmpty(t, events)
}

func TestApp_AssetCache(t *testing.T) {
	a, err := New(context.Background(), config.DefaultConfig())
	require.NoError(t, err)
	defer a.Close()

	fsys := fstest.MapFS{
		"index.html":    {Data: []byte("<html></html>")},
		"about.html":    {Data: []byte("<html>about</html>")},
		"style.css":     {Data: []byte("body{}")},
		"app.js":        {Data: []byte("")},
		"manifest.json": {Data: []byte("{}")},
	}
	cache, err := a.AssetCache(context.Background(), fsys)
	require.NoError(t, err)
	assert.Equal(t, assetcache.DefaultName, cache.Name())

	asset, err := cache.Fetch(context.Background(), "/about.html")
	require.NoError(t, err)
	assert.Equal(t, "<html>about</html>", string(asset.Data))
}
