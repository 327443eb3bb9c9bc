// Package download delivers workflow outputs to their destination: a file in
// an output directory, an HTTP attachment, or memory.
package download

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/spherical/snap2pdf/internal/domain"
)

// Sink delivers one output per call. Calls are never deduplicated or queued.
type Sink interface {
	Deliver(ctx context.Context, out *domain.Output) error
}

// DirSink writes outputs into a directory.
type DirSink struct {
	Dir string

	mu   sync.Mutex
	last string
}

// NewDirSink creates a sink writing into dir.
func NewDirSink(dir string) *DirSink {
	return &DirSink{Dir: dir}
}

// Deliver writes to a temporary file next to the target and renames it into
// place, so a failed delivery never leaves a partial file behind.
func (s *DirSink) Deliver(ctx context.Context, out *domain.Output) (err error) {
	if err := checkOutput(out); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return domain.IOError("failed to create output directory", err)
	}

	tmp, err := os.CreateTemp(s.Dir, ".snap2pdf-*.tmp")
	if err != nil {
		return domain.IOError("failed to create temp file", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(out.Data); err != nil {
		return domain.IOError("failed to write output", err)
	}
	if err = tmp.Close(); err != nil {
		return domain.IOError("failed to flush output", err)
	}
	target := filepath.Join(s.Dir, out.Name)
	if err = os.Rename(tmp.Name(), target); err != nil {
		return domain.IOError(fmt.Sprintf("failed to move output to %s", target), err)
	}

	s.mu.Lock()
	s.last = target
	s.mu.Unlock()
	return nil
}

// LastPath returns the path of the most recent delivery.
func (s *DirSink) LastPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// ResponseSink streams the output as an HTTP attachment.
type ResponseSink struct {
	W http.ResponseWriter
}

// NewResponseSink wraps an HTTP response.
func NewResponseSink(w http.ResponseWriter) *ResponseSink {
	return &ResponseSink{W: w}
}

// Deliver writes attachment headers and the body.
func (s *ResponseSink) Deliver(ctx context.Context, out *domain.Output) error {
	if err := checkOutput(out); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	h := s.W.Header()
	h.Set("Content-Type", contentType(out))
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": out.Name}))
	h.Set("Content-Length", strconv.Itoa(len(out.Data)))
	h.Set("Cache-Control", "no-store")
	s.W.WriteHeader(http.StatusOK)
	if _, err := s.W.Write(out.Data); err != nil {
		return domain.IOError("failed to write response", err)
	}
	return nil
}

// MemorySink records deliveries.
type MemorySink struct {
	mu  sync.Mutex
	out []domain.Output
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Deliver(ctx context.Context, out *domain.Output) error {
	if err := checkOutput(out); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *out
	cp.Data = append([]byte(nil), out.Data...)
	s.out = append(s.out, cp)
	return nil
}

// Outputs returns every delivery so far, oldest first.
func (s *MemorySink) Outputs() []domain.Output {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Output(nil), s.out...)
}

// Last returns the latest delivery, or nil.
func (s *MemorySink) Last() *domain.Output {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.out) == 0 {
		return nil
	}
	cp := s.out[len(s.out)-1]
	return &cp
}

func checkOutput(out *domain.Output) error {
	if out == nil || out.Name == "" {
		return domain.ValidationError("output needs a file name", nil)
	}
	if filepath.Base(out.Name) != out.Name {
		return domain.ValidationError(fmt.Sprintf("output name %q must not contain a path", out.Name), nil)
	}
	return nil
}

func contentType(out *domain.Output) string {
	if out.ContentType != "" {
		return out.ContentType
	}
	return domain.ContentTypePDF
}
