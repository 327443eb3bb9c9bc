package capture

import (
	"bufio"
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/snap2pdf/internal/domain"
)

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 100, A: 255})
		}
	}
	return img
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testImage(w, h), nil))
	return buf.Bytes()
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(w, h)))
	return buf.Bytes()
}

func TestDecodeFrame(t *testing.T) {
	frame, err := DecodeFrame(encodeJPEG(t, 32, 24))
	require.NoError(t, err)
	assert.Equal(t, 32, frame.Width)
	assert.Equal(t, 24, frame.Height)
	assert.Equal(t, domain.FormatJPEG, frame.Format)

	frame, err = DecodeFrame(encodePNG(t, 10, 20))
	require.NoError(t, err)
	assert.Equal(t, domain.FormatPNG, frame.Format)

	frame, err = DecodeFrame(nil)
	require.NoError(t, err)
	assert.Zero(t, frame.Width)

	_, err = DecodeFrame([]byte("GIF89a nope"))
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
}

func TestFrameCamera(t *testing.T) {
	frame, err := DecodeFrame(encodeJPEG(t, 8, 8))
	require.NoError(t, err)

	ctx := context.Background()
	stream, err := NewFrameCamera(frame).Open(ctx)
	require.NoError(t, err)

	got, err := stream.Frame(ctx)
	require.NoError(t, err)
	assert.Equal(t, frame, got)

	require.NoError(t, stream.Stop())
	_, err = stream.Frame(ctx)
	assert.True(t, domain.IsType(err, domain.ErrorTypeDeviceUnavailable))
}

func TestPreparer(t *testing.T) {
	jpg, err := DecodeFrame(encodeJPEG(t, 400, 300))
	require.NoError(t, err)

	t.Run("jpeg passes through", func(t *testing.T) {
		data, w, h, err := Preparer{Quality: 100}.Prepare(jpg)
		require.NoError(t, err)
		assert.Equal(t, jpg.Data, data)
		assert.Equal(t, 400, w)
		assert.Equal(t, 300, h)
	})

	t.Run("downscale keeps aspect ratio", func(t *testing.T) {
		data, w, h, err := Preparer{Quality: 90, MaxWidth: 200}.Prepare(jpg)
		require.NoError(t, err)
		assert.Equal(t, 200, w)
		assert.Equal(t, 150, h)
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, 200, cfg.Width)
	})

	t.Run("png becomes jpeg", func(t *testing.T) {
		pngFrame, err := DecodeFrame(encodePNG(t, 50, 40))
		require.NoError(t, err)
		data, w, h, err := Preparer{Quality: 100}.Prepare(pngFrame)
		require.NoError(t, err)
		assert.Equal(t, 50, w)
		assert.Equal(t, 40, h)
		_, format, err := image.DecodeConfig(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, "jpeg", format)
	})
}

func TestSplitJPEG(t *testing.T) {
	a := encodeJPEG(t, 4, 4)
	b := encodeJPEG(t, 6, 6)
	stream := append([]byte("noise"), a...)
	stream = append(stream, b...)
	stream = append(stream, 0xFF, 0xD8, 0x00) // truncated tail

	sc := bufio.NewScanner(bytes.NewReader(stream))
	sc.Split(splitJPEG)
	var frames [][]byte
	for sc.Scan() {
		frames = append(frames, append([]byte(nil), sc.Bytes()...))
	}
	require.NoError(t, sc.Err())
	require.Len(t, frames, 2)
	assert.Equal(t, a, frames[0])
	assert.Equal(t, b, frames[1])
}

func TestClassifyFailure(t *testing.T) {
	err := classifyFailure("[video4linux2] /dev/video0: Permission denied\n", nil)
	assert.True(t, domain.IsType(err, domain.ErrorTypePermissionDenied))

	err = classifyFailure("/dev/video9: No such file or directory", nil)
	assert.True(t, domain.IsType(err, domain.ErrorTypeDeviceUnavailable))
	assert.Contains(t, err.Error(), "No such file")
}

func TestFFmpegCamera_Args(t *testing.T) {
	cam := NewFFmpegCamera(FFmpegOptions{InputFormat: "v4l2", Device: "/dev/video2"}, nil)
	assert.Equal(t, []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "v4l2", "-i", "/dev/video2",
		"-f", "image2pipe", "-vcodec", "mjpeg", "-q:v", "2", "-",
	}, cam.Args())

	mac := NewFFmpegCamera(FFmpegOptions{InputFormat: "avfoundation", Device: "0"}, nil)
	assert.Contains(t, mac.Args(), "-framerate")
}

// fakeFFmpeg writes a shell script standing in for the ffmpeg binary.
func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script camera needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestFFmpegCamera_StreamsLatestFrame(t *testing.T) {
	framePath := filepath.Join(t.TempDir(), "frame.jpg")
	require.NoError(t, os.WriteFile(framePath, encodeJPEG(t, 64, 48), 0o600))
	bin := fakeFFmpeg(t, `cat "`+framePath+`"
exec sleep 30`)

	cam := NewFFmpegCamera(FFmpegOptions{Binary: bin, Device: "fake", StartupProbe: 2 * time.Second}, nil)
	ctx := context.Background()
	stream, err := cam.Open(ctx)
	require.NoError(t, err)

	frame, err := stream.Frame(ctx)
	require.NoError(t, err)
	assert.Equal(t, 64, frame.Width)
	assert.Equal(t, 48, frame.Height)

	start := time.Now()
	require.NoError(t, stream.Stop())
	assert.Less(t, time.Since(start), 5*time.Second)
	require.NoError(t, stream.Stop())
}

func TestFFmpegCamera_NotWarmedUp(t *testing.T) {
	bin := fakeFFmpeg(t, "exec sleep 30")
	cam := NewFFmpegCamera(FFmpegOptions{Binary: bin, StartupProbe: 50 * time.Millisecond}, nil)

	stream, err := cam.Open(context.Background())
	require.NoError(t, err)
	defer stream.Stop()

	frame, err := stream.Frame(context.Background())
	require.NoError(t, err)
	assert.Zero(t, frame.Width)
}

func TestFFmpegCamera_PermissionDenied(t *testing.T) {
	bin := fakeFFmpeg(t, `echo "/dev/video0: Permission denied" >&2
exit 1`)
	cam := NewFFmpegCamera(FFmpegOptions{Binary: bin, StartupProbe: 5 * time.Second}, nil)

	_, err := cam.Open(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypePermissionDenied))
}

func TestFFmpegCamera_MissingBinary(t *testing.T) {
	cam := NewFFmpegCamera(FFmpegOptions{Binary: filepath.Join(t.TempDir(), "no-ffmpeg")}, nil)
	_, err := cam.Open(context.Background())
	assert.True(t, domain.IsType(err, domain.ErrorTypeDeviceUnavailable))
}
