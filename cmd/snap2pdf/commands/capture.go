package commands

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical/snap2pdf/cmd/snap2pdf/ui"
	"github.com/spherical/snap2pdf/internal/capture"
	"github.com/spherical/snap2pdf/internal/config"
	"github.com/spherical/snap2pdf/internal/domain"
	"github.com/spherical/snap2pdf/internal/download"
	"github.com/spherical/snap2pdf/internal/workflow"
)

var (
	captureDevice string
	captureFrame  string
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Snap the camera's current frame into snap2pdf_capture.pdf",
	Long: `Opens the local camera through ffmpeg, waits for the first frame and saves
it as a one-page PDF whose width is the configured page width and whose
height keeps the frame's aspect ratio. With --frame an existing JPEG or PNG
is used instead of the camera.`,
	Args: cobra.NoArgs,
	RunE: runCapture,
}

func init() {
	captureCmd.Flags().StringVarP(&captureDevice, "device", "d", "", "capture device (overrides config)")
	captureCmd.Flags().StringVar(&captureFrame, "frame", "", "use this JPEG or PNG instead of the camera")
	rootCmd.AddCommand(captureCmd)
}

func runCapture(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd, func(cfg *config.Config) {
		if captureDevice != "" {
			cfg.Capture.Device = captureDevice
		}
	})
	if err != nil {
		return err
	}
	defer s.stop()

	w := s.app.Service.Capture()

	if captureFrame != "" {
		data, err := os.ReadFile(captureFrame)
		if err != nil {
			return domain.IOError("failed to read frame", err)
		}
		frame, err := capture.DecodeFrame(data)
		if err != nil {
			return err
		}
		return s.produce(s.spinner("Building page"), func(sink download.Sink) (*domain.Output, error) {
			return w.CaptureOnce(s.ctx, capture.NewFrameCamera(frame), sink)
		})
	}

	ui.Info("Requesting camera %s", s.app.Config.Capture.Device)
	if err := w.Start(s.ctx, s.app.Camera()); err != nil {
		return err
	}
	defer w.Abort()

	return s.produce(s.spinner("Waiting for the camera"), func(sink download.Sink) (*domain.Output, error) {
		return snapWhenReady(s.ctx, w, sink, s.app.Config.Capture.FrameTimeout)
	})
}

// snapWhenReady retries Snap while the camera is still warming up.
func snapWhenReady(ctx context.Context, w *workflow.CaptureWorkflow, sink download.Sink, timeout time.Duration) (*domain.Output, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		out, err := w.Snap(ctx, sink)
		if !domain.IsType(err, domain.ErrorTypeDeviceNotReady) || time.Now().After(deadline) {
			return out, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
