// Package capture provides camera sources and frame preparation for the
// capture workflow.
package capture

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder

	"github.com/spherical/snap2pdf/internal/domain"
)

// DecodeFrame inspects encoded image bytes and fills in the frame size. Empty
// input yields a zero-width frame, which the capture workflow reports as a
// device that is not ready yet.
func DecodeFrame(data []byte) (domain.RawImageFrame, error) {
	if len(data) == 0 {
		return domain.RawImageFrame{}, nil
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return domain.RawImageFrame{}, domain.ValidationError("frame is not a JPEG or PNG image", err)
	}
	if format != domain.FormatJPEG && format != domain.FormatPNG {
		return domain.RawImageFrame{}, domain.ValidationError("unsupported frame format "+format, nil)
	}
	return domain.RawImageFrame{
		Width:  cfg.Width,
		Height: cfg.Height,
		Format: format,
		Data:   data,
	}, nil
}

// FrameCamera serves a frame that was captured elsewhere, typically by the
// browser's getUserMedia and posted to the server.
type FrameCamera struct {
	frame domain.RawImageFrame
}

// NewFrameCamera wraps an already captured frame.
func NewFrameCamera(frame domain.RawImageFrame) *FrameCamera {
	return &FrameCamera{frame: frame}
}

// Open always succeeds; access was granted on the client.
func (c *FrameCamera) Open(ctx context.Context) (domain.MediaStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &frameStream{frame: c.frame}, nil
}

type frameStream struct {
	frame   domain.RawImageFrame
	stopped bool
}

func (s *frameStream) Frame(ctx context.Context) (domain.RawImageFrame, error) {
	if s.stopped {
		return domain.RawImageFrame{}, domain.DeviceUnavailable("stream stopped", nil)
	}
	return s.frame, ctx.Err()
}

func (s *frameStream) Stop() error {
	s.stopped = true
	return nil
}
