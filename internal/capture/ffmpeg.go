package capture

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/spherical/snap2pdf/internal/domain"
	"github.com/spherical/snap2pdf/internal/observability"
)

const maxFrameBytes = 32 << 20

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// FFmpegOptions configures the device ffmpeg reads from.
type FFmpegOptions struct {
	Binary      string
	InputFormat string
	Device      string
	// StartupProbe is how long Open waits for ffmpeg to fail before
	// treating the device as granted.
	StartupProbe time.Duration
}

// FFmpegCamera streams MJPEG frames from a local capture device through an
// ffmpeg child process.
type FFmpegCamera struct {
	opts   FFmpegOptions
	logger *observability.Logger
}

// NewFFmpegCamera creates a camera backed by the ffmpeg binary.
func NewFFmpegCamera(opts FFmpegOptions, logger *observability.Logger) *FFmpegCamera {
	if opts.Binary == "" {
		opts.Binary = "ffmpeg"
	}
	if opts.StartupProbe <= 0 {
		opts.StartupProbe = 750 * time.Millisecond
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &FFmpegCamera{opts: opts, logger: logger.WithOperation("ffmpeg_camera")}
}

// Args returns the ffmpeg command line used to open the device.
func (c *FFmpegCamera) Args() []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if c.opts.InputFormat == "avfoundation" {
		args = append(args, "-framerate", "30")
	}
	if c.opts.InputFormat != "" {
		args = append(args, "-f", c.opts.InputFormat)
	}
	return append(args,
		"-i", c.opts.Device,
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "2",
		"-",
	)
}

// Open starts ffmpeg and keeps the most recent frame in memory until Stop.
func (c *FFmpegCamera) Open(ctx context.Context) (domain.MediaStream, error) {
	bin, err := exec.LookPath(c.opts.Binary)
	if err != nil {
		return nil, domain.DeviceUnavailable("ffmpeg not found", err)
	}

	// the process outlives ctx; Stop ends it
	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, bin, c.Args()...)
	// grandchildren holding stdout open must not block Stop forever
	cmd.WaitDelay = time.Second
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, domain.DeviceUnavailable("failed to attach to ffmpeg", err)
	}
	s := &ffmpegStream{
		cancel:     cancel,
		done:       make(chan struct{}),
		firstFrame: make(chan struct{}),
		logger:     c.logger,
	}
	cmd.Stderr = &s.stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, domain.DeviceUnavailable("failed to start ffmpeg", err)
	}
	c.logger.Debug().Str("device", c.opts.Device).Str("format", c.opts.InputFormat).Msg("camera process started")

	go s.read(stdout)
	go func() {
		s.setExit(cmd.Wait())
		close(s.done)
	}()

	select {
	case <-s.firstFrame:
		return s, nil
	case <-s.done:
		cancel()
		return nil, s.exitError()
	case <-time.After(c.opts.StartupProbe):
		return s, nil
	case <-ctx.Done():
		_ = s.Stop()
		return nil, ctx.Err()
	}
}

type ffmpegStream struct {
	cancel     context.CancelFunc
	done       chan struct{}
	firstFrame chan struct{}
	logger     *observability.Logger

	mu      sync.Mutex
	latest  []byte
	exitErr error
	stderr  syncBuffer
	once    sync.Once
}

func (s *ffmpegStream) read(r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 256<<10), maxFrameBytes)
	sc.Split(splitJPEG)
	first := true
	for sc.Scan() {
		frame := append([]byte(nil), sc.Bytes()...)
		s.mu.Lock()
		s.latest = frame
		s.mu.Unlock()
		if first {
			close(s.firstFrame)
			first = false
		}
	}
	if err := sc.Err(); err != nil {
		s.logger.Warn().Err(err).Msg("camera frame reader stopped")
	}
}

// Frame returns the latest complete frame, or a zero-width frame if ffmpeg
// has not produced one yet.
func (s *ffmpegStream) Frame(ctx context.Context) (domain.RawImageFrame, error) {
	if err := ctx.Err(); err != nil {
		return domain.RawImageFrame{}, err
	}
	select {
	case <-s.done:
		return domain.RawImageFrame{}, s.exitError()
	default:
	}

	s.mu.Lock()
	data := s.latest
	s.mu.Unlock()
	return DecodeFrame(data)
}

func (s *ffmpegStream) Stop() error {
	s.once.Do(func() {
		s.cancel()
		<-s.done
		s.logger.Debug().Msg("camera process stopped")
	})
	return nil
}

func (s *ffmpegStream) setExit(err error) {
	s.mu.Lock()
	s.exitErr = err
	s.mu.Unlock()
}

func (s *ffmpegStream) exitError() error {
	s.mu.Lock()
	err := s.exitErr
	s.mu.Unlock()
	return classifyFailure(s.stderr.String(), err)
}

// classifyFailure maps ffmpeg's diagnostics onto the camera error taxonomy.
func classifyFailure(stderr string, err error) error {
	msg := strings.TrimSpace(stderr)
	if err == nil {
		err = errors.New("camera stream ended")
	}
	if msg != "" {
		err = fmt.Errorf("%w: %s", err, lastLine(msg))
	}
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "permission denied"),
		strings.Contains(lower, "operation not permitted"),
		strings.Contains(lower, "not authorized"):
		return domain.PermissionDenied("camera access denied", err)
	default:
		return domain.DeviceUnavailable("camera not available", err)
	}
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// splitJPEG is a bufio.SplitFunc yielding whole JPEG images from an MJPEG
// byte stream. Bytes before a start-of-image marker are dropped.
func splitJPEG(data []byte, atEOF bool) (int, []byte, error) {
	start := bytes.Index(data, jpegSOI)
	if start < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// keep a trailing 0xFF in case it begins a marker
		if n := len(data); n > 0 && data[n-1] == 0xFF {
			return n - 1, nil, nil
		}
		return len(data), nil, nil
	}
	end := bytes.Index(data[start+2:], jpegEOI)
	if end < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		return start, nil, nil
	}
	stop := start + 2 + end + 2
	return stop, data[start:stop], nil
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
