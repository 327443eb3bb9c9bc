package domain

import (
	"context"
	"image"
)

// Camera grants access to a video device
type Camera interface {
	// Open requests access and starts streaming. Implementations return
	// PermissionDenied or DeviceUnavailable errors on failure.
	Open(ctx context.Context) (MediaStream, error)
}

// MediaStream is a live camera stream with a single owner
type MediaStream interface {
	// Frame snapshots the current video frame. A frame with Width 0 means
	// the device has not produced a picture yet.
	Frame(ctx context.Context) (RawImageFrame, error)

	// Stop releases the device
	Stop() error
}

// Renderer loads documents for rasterization
type Renderer interface {
	Open(ctx context.Context, data []byte) (RenderedDocument, error)
}

// RenderedDocument is an engine-owned handle on a loaded PDF
type RenderedDocument interface {
	NumPage() int

	// RenderPage rasterizes a 1-based page at scale times its native size
	RenderPage(ctx context.Context, page int, scale float64) (*image.RGBA, error)

	Close() error
}

// TextEngine loads documents for text extraction
type TextEngine interface {
	Open(ctx context.Context, data []byte) (TextDocument, error)
}

// TextDocument exposes ordered text fragments per page
type TextDocument interface {
	NumPage() int

	// Fragments returns the text of a 1-based page in the order the engine
	// reports it
	Fragments(ctx context.Context, page int) ([]string, error)

	Close() error
}

// Composer builds and mutates PDF byte streams
type Composer interface {
	PageCount(ctx context.Context, data []byte) (int, error)
	Merge(ctx context.Context, docs [][]byte) ([]byte, error)
	ExtractPage(ctx context.Context, data []byte, page int) ([]byte, error)

	// StampImage draws an opaque JPEG over the whole of a 1-based page at the
	// page's native size. Other pages are left untouched.
	StampImage(ctx context.Context, data []byte, page int, jpeg []byte) ([]byte, error)
}

// ImagePager turns a single image into a one-page PDF
type ImagePager interface {
	// ImagePage builds a page widthMM x heightMM filled by the JPEG image
	ImagePage(ctx context.Context, jpeg []byte, widthMM, heightMM float64) ([]byte, error)
}
