package workflow

import (
	"context"
	"sync"

	"github.com/spherical/snap2pdf/internal/capture"
	"github.com/spherical/snap2pdf/internal/domain"
	"github.com/spherical/snap2pdf/internal/download"
	"github.com/spherical/snap2pdf/internal/observability"
)

// CaptureState is a state of the capture state machine.
type CaptureState string

const (
	CaptureIdle       CaptureState = "idle"
	CaptureRequesting CaptureState = "requesting"
	CaptureStreaming  CaptureState = "streaming"
	CaptureCapturing  CaptureState = "capturing"
)

// CameraSession owns an open media stream until it is released.
type CameraSession struct {
	stream domain.MediaStream
	once   sync.Once
	err    error
}

// Frame snapshots the stream's current frame.
func (c *CameraSession) Frame(ctx context.Context) (domain.RawImageFrame, error) {
	return c.stream.Frame(ctx)
}

// Release stops the stream. Later calls are no-ops.
func (c *CameraSession) Release() error {
	c.once.Do(func() { c.err = c.stream.Stop() })
	return c.err
}

// CaptureWorkflow moves Idle -> Requesting -> Streaming -> Capturing -> Idle.
// At most one CameraSession is alive at a time.
type CaptureWorkflow struct {
	svc *Service

	mu      sync.Mutex
	state   CaptureState
	session *CameraSession
}

// State returns the current state.
func (w *CaptureWorkflow) State() CaptureState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Start requests camera access and begins streaming.
func (w *CaptureWorkflow) Start(ctx context.Context, cam domain.Camera) error {
	release, err := w.svc.guards[domain.WorkflowCapture].Enter()
	if err != nil {
		return err
	}
	defer release()
	return w.start(ctx, cam)
}

// Snap captures the current frame as a one-page PDF and delivers it to sink.
// A frame of width 0 fails with DeviceNotReady and leaves the stream running;
// any other outcome releases the stream.
func (w *CaptureWorkflow) Snap(ctx context.Context, sink download.Sink) (*domain.Output, error) {
	release, err := w.svc.guards[domain.WorkflowCapture].Enter()
	if err != nil {
		return nil, err
	}
	defer release()
	return w.snap(ctx, sink)
}

// CaptureOnce runs Start and Snap as one invocation, for cameras whose frame
// is already available such as a browser upload. The stream never outlives
// the call.
func (w *CaptureWorkflow) CaptureOnce(ctx context.Context, cam domain.Camera, sink download.Sink) (*domain.Output, error) {
	release, err := w.svc.guards[domain.WorkflowCapture].Enter()
	if err != nil {
		return nil, err
	}
	defer release()

	if err := w.start(ctx, cam); err != nil {
		return nil, err
	}
	out, err := w.snap(ctx, sink)
	if domain.IsType(err, domain.ErrorTypeDeviceNotReady) {
		w.Abort()
	}
	return out, err
}

// Abort releases any live stream and returns to Idle.
func (w *CaptureWorkflow) Abort() {
	w.mu.Lock()
	sess := w.session
	w.session = nil
	w.state = CaptureIdle
	w.mu.Unlock()

	if sess != nil {
		if err := sess.Release(); err != nil {
			w.svc.logger.Warn().Err(err).Msg("failed to stop camera")
		}
	}
}

func (w *CaptureWorkflow) start(ctx context.Context, cam domain.Camera) error {
	w.mu.Lock()
	if w.state != CaptureIdle {
		state := w.state
		w.mu.Unlock()
		return domain.ValidationError("camera already "+string(state), nil)
	}
	w.state = CaptureRequesting
	w.mu.Unlock()

	log := w.svc.logger.WithContext(ctx).WithWorkflow(domain.WorkflowCapture)
	stream, err := cam.Open(ctx)
	if err != nil {
		w.setState(CaptureIdle, nil)
		if domain.TypeOf(err) == "" {
			err = domain.DeviceUnavailable("camera not available", err)
		}
		log.Error().Err(err).Msg("camera request failed")
		w.svc.emit(domain.WorkflowCapture, domain.EventError, 0, err.Error())
		return err
	}

	w.setState(CaptureStreaming, &CameraSession{stream: stream})
	log.Info().Msg("camera streaming")
	return nil
}

func (w *CaptureWorkflow) snap(ctx context.Context, sink download.Sink) (*domain.Output, error) {
	return w.svc.runLocked(ctx, domain.WorkflowCapture, sink, func(ctx context.Context, log *observability.Logger) (*domain.Output, error) {
		w.mu.Lock()
		sess := w.session
		if w.state != CaptureStreaming || sess == nil {
			w.mu.Unlock()
			return nil, domain.DeviceNotReady("camera not started", nil)
		}
		w.mu.Unlock()

		frame, err := sess.Frame(ctx)
		if err == nil && frame.Width == 0 {
			// not warmed up yet; keep streaming
			return nil, domain.DeviceNotReady("camera has not produced a frame yet", nil)
		}

		w.setState(CaptureCapturing, sess)
		defer func() {
			if err := sess.Release(); err != nil {
				log.Warn().Err(err).Msg("failed to stop camera")
			}
			w.setState(CaptureIdle, nil)
		}()
		if err != nil {
			if domain.TypeOf(err) == "" {
				err = domain.DeviceUnavailable("failed to read frame", err)
			}
			return nil, err
		}

		return w.buildPage(ctx, log, frame)
	})
}

func (w *CaptureWorkflow) buildPage(ctx context.Context, log *observability.Logger, frame domain.RawImageFrame) (*domain.Output, error) {
	cfg := w.svc.settings.Capture
	if err := w.svc.validator.ValidateQuality(cfg.JPEGQuality); err != nil {
		return nil, err
	}
	prep := capture.Preparer{Quality: cfg.JPEGQuality, MaxWidth: cfg.MaxWidth}
	jpeg, width, height, err := prep.Prepare(frame)
	if err != nil {
		return nil, err
	}

	pageW := cfg.PageWidthMM
	pageH := float64(height) * pageW / float64(width)
	log.Debug().Int("width", width).Int("height", height).Float64("page_height_mm", pageH).Msg("building capture page")

	data, err := w.svc.engines.Pager.ImagePage(ctx, jpeg, pageW, pageH)
	if err != nil {
		return nil, err
	}
	return domain.NewPDFOutput(domain.CaptureFileName, data), nil
}

func (w *CaptureWorkflow) setState(state CaptureState, sess *CameraSession) {
	w.mu.Lock()
	w.state = state
	w.session = sess
	w.mu.Unlock()
}
