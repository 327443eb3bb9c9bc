// Package snap2pdf is the library entry point to the capture, merge, split,
// extract and annotate workflows. Every call runs locally and returns its
// result in memory.
package snap2pdf

import (
	"context"

	"github.com/spherical/snap2pdf/internal/app"
	"github.com/spherical/snap2pdf/internal/capture"
	"github.com/spherical/snap2pdf/internal/config"
	"github.com/spherical/snap2pdf/internal/domain"
	"github.com/spherical/snap2pdf/internal/download"
	"github.com/spherical/snap2pdf/internal/pdf"
	"github.com/spherical/snap2pdf/internal/workflow"
)

// Re-export data types for the public API
type (
	Config        = config.Config
	Input         = domain.Input
	Output        = domain.Output
	ExtractResult = domain.ExtractResult
	PageText      = domain.PageText
	Event         = domain.WorkflowEvent
	EventType     = domain.EventType
	RunRecord     = domain.RunRecord
	EditSession   = workflow.EditSession
	Error         = domain.DomainError
	ErrorType     = domain.ErrorType
)

// Event type constants
const (
	EventStart          = domain.EventStart
	EventPageProcessing = domain.EventPageProcessing
	EventPageComplete   = domain.EventPageComplete
	EventError          = domain.EventError
	EventComplete       = domain.EventComplete
)

// Error type constants
const (
	ErrorTypeValidation          = domain.ErrorTypeValidation
	ErrorTypeBusy                = domain.ErrorTypeBusy
	ErrorTypePermissionDenied    = domain.ErrorTypePermissionDenied
	ErrorTypeDeviceUnavailable   = domain.ErrorTypeDeviceUnavailable
	ErrorTypeDeviceNotReady      = domain.ErrorTypeDeviceNotReady
	ErrorTypeInsufficientInput   = domain.ErrorTypeInsufficientInput
	ErrorTypeDocumentLoad        = domain.ErrorTypeDocumentLoad
	ErrorTypePageOutOfRange      = domain.ErrorTypePageOutOfRange
	ErrorTypeNoActiveEditSession = domain.ErrorTypeNoActiveEditSession
)

// eventBuffer is the capacity of the Events channel. Events beyond it are
// dropped, never waited on.
const eventBuffer = 100

// Client is the main entry point for the library.
type Client struct {
	app    *app.App
	events chan domain.WorkflowEvent
}

// NewClient creates a client from the defaults, ./.env and the environment
// overrides.
func NewClient(ctx context.Context) (*Client, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, domain.ConfigError("failed to load .env", err)
	}
	cfg, err := config.Load("")
	if err != nil {
		return nil, domain.ConfigError("invalid configuration", err)
	}
	return NewClientWithConfig(ctx, cfg)
}

// DefaultConfig returns the documented defaults, for NewClientWithConfig.
func DefaultConfig() *Config {
	return config.DefaultConfig()
}

// NewClientWithConfig creates a client with custom configuration.
func NewClientWithConfig(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, domain.ConfigError("config is required", nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, domain.ConfigError("invalid configuration", err)
	}

	events := make(chan domain.WorkflowEvent, eventBuffer)
	a, err := app.New(ctx, cfg, app.WithEvents(events))
	if err != nil {
		return nil, err
	}
	return &Client{app: a, events: events}, nil
}

// Events streams progress of every workflow run by this client.
func (c *Client) Events() <-chan Event {
	return c.events
}

// ReadFile loads a PDF from disk as an Input.
func ReadFile(path string) (Input, error) {
	return pdf.NewValidator().ReadInput(path)
}

// WriteFile stores out in dir under its download name and returns the path.
func WriteFile(ctx context.Context, dir string, out *Output) (string, error) {
	sink := download.NewDirSink(dir)
	if err := sink.Deliver(ctx, out); err != nil {
		return "", err
	}
	return sink.LastPath(), nil
}

// CaptureFrame turns one encoded JPEG or PNG frame into a single-page PDF
// sized to the frame's aspect ratio.
func (c *Client) CaptureFrame(ctx context.Context, frame []byte) (*Output, error) {
	raw, err := capture.DecodeFrame(frame)
	if err != nil {
		return nil, err
	}
	return c.app.Service.Capture().CaptureOnce(ctx, capture.NewFrameCamera(raw), nil)
}

// Merge concatenates two or more documents in the given order.
func (c *Client) Merge(ctx context.Context, inputs ...Input) (*Output, error) {
	return c.app.Service.Merge(ctx, inputs, nil)
}

// Split extracts the 1-based page into a new document.
func (c *Client) Split(ctx context.Context, input Input, page int) (*Output, error) {
	return c.app.Service.Split(ctx, input, domain.PageSelection(page), nil)
}

// Extract returns the text of every page in page order.
func (c *Client) Extract(ctx context.Context, input Input) (*ExtractResult, error) {
	return c.app.Service.Extract(ctx, input, nil)
}

// Edit opens an annotation session on page 1 of input. Close the session
// when done with it.
func (c *Client) Edit(ctx context.Context, input Input) (*EditSession, error) {
	return c.app.Service.OpenEditSession(ctx, input)
}

// SaveEdits stamps the session's overlay onto page 1 and returns the whole
// document.
func (c *Client) SaveEdits(ctx context.Context, sess *EditSession) (*Output, error) {
	return c.app.Service.SaveEditSession(ctx, sess, nil)
}

// History returns up to n recent runs, newest first. It is empty unless an
// audit driver is configured.
func (c *Client) History(ctx context.Context, n int) ([]RunRecord, error) {
	return c.app.Audit.Recent(ctx, n)
}

// IsType reports whether err carries an Error of type t.
func IsType(err error, t ErrorType) bool {
	return domain.IsType(err, t)
}

// Close releases the audit store.
func (c *Client) Close() error {
	return c.app.Close()
}
