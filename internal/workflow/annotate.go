package workflow

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/spherical/snap2pdf/internal/annotate"
	"github.com/spherical/snap2pdf/internal/domain"
	"github.com/spherical/snap2pdf/internal/download"
	"github.com/spherical/snap2pdf/internal/observability"
)

// AnnotateState is a state of the annotation state machine.
type AnnotateState string

const (
	AnnotateNoDocument AnnotateState = "no_document"
	AnnotateLoaded     AnnotateState = "loaded"
	AnnotateEditing    AnnotateState = "editing"
	AnnotateSaving     AnnotateState = "saving"
	AnnotateDone       AnnotateState = "done"
)

// EditSession holds one loaded document: its untouched original bytes and
// the editing surface built from a raster of page 1.
type EditSession struct {
	ID        string
	Name      string
	PageCount int

	mu          sync.Mutex
	state       AnnotateState
	original    []byte
	surface     *annotate.Surface
	style       annotate.Style
	placeholder string
	clock       func() time.Time
	lastUsed    atomic.Int64 // unix nanoseconds
}

// OpenEditSession renders page 1 of input at the configured scale and wraps
// the raster as an editing surface. A corrupt input yields DocumentLoad and
// no session.
func (s *Service) OpenEditSession(ctx context.Context, input domain.Input) (*EditSession, error) {
	release, err := s.guards[domain.WorkflowAnnotate].Enter()
	if err != nil {
		return nil, err
	}
	defer release()
	return s.openEditSession(ctx, input)
}

func (s *Service) openEditSession(ctx context.Context, input domain.Input) (*EditSession, error) {
	cfg := s.settings.Annotation
	log := s.logger.WithContext(ctx).WithWorkflow(domain.WorkflowAnnotate)

	style, err := annotate.NewStyle(cfg.Color, cfg.FontSize, cfg.FontFamily)
	if err != nil {
		return nil, err
	}

	sess, err := func() (*EditSession, error) {
		pages, err := s.loadInput(ctx, input)
		if err != nil {
			return nil, err
		}
		doc, err := s.engines.Renderer.Open(ctx, input.Data)
		if err != nil {
			return nil, domain.DocumentLoadError(input.Name, unwrapLoad(err))
		}
		defer doc.Close()

		raster, err := doc.RenderPage(ctx, 1, s.settings.Render.Scale)
		if err != nil {
			return nil, err
		}
		sess := &EditSession{
			ID:          uuid.NewString(),
			Name:        input.Name,
			PageCount:   pages,
			state:       AnnotateLoaded,
			original:    input.Data,
			surface:     annotate.NewSurface(raster),
			style:       style,
			placeholder: cfg.Placeholder,
			clock:       s.now,
		}
		sess.touch()
		return sess, nil
	}()
	if err != nil {
		log.Error().Err(err).Str("input", input.Name).Msg("failed to load document for editing")
		s.emit(domain.WorkflowAnnotate, domain.EventError, 0, err.Error())
		return nil, err
	}

	b := sess.surface.Bounds()
	log.Info().Str("session", sess.ID).Int("width", b.Dx()).Int("height", b.Dy()).Int("pages", sess.PageCount).Msg("document loaded for editing")
	return sess, nil
}

// SaveEditSession flattens the surface and stamps it over page 1 of the
// original document. Pages 2..N are untouched. Saving again re-flattens the
// current overlay.
func (s *Service) SaveEditSession(ctx context.Context, sess *EditSession, sink download.Sink) (*domain.Output, error) {
	release, err := s.guards[domain.WorkflowAnnotate].Enter()
	if err != nil {
		return nil, err
	}
	defer release()
	return s.saveEditSession(ctx, sess, sink)
}

func (s *Service) saveEditSession(ctx context.Context, sess *EditSession, sink download.Sink) (*domain.Output, error) {
	return s.runLocked(ctx, domain.WorkflowAnnotate, sink, func(ctx context.Context, log *observability.Logger) (*domain.Output, error) {
		if sess == nil {
			return nil, domain.NoActiveEditSession()
		}
		sess.mu.Lock()
		defer sess.mu.Unlock()
		if sess.surface == nil {
			return nil, domain.NoActiveEditSession()
		}

		prev := sess.state
		sess.state = AnnotateSaving
		sess.touch()

		out, err := s.flattenAndStamp(ctx, log, sess)
		if err != nil {
			sess.state = prev
			return nil, err
		}
		sess.state = AnnotateDone
		return out, nil
	})
}

// flattenAndStamp runs with sess.mu held.
func (s *Service) flattenAndStamp(ctx context.Context, log *observability.Logger, sess *EditSession) (*domain.Output, error) {
	quality := s.settings.Annotation.JPEGQuality
	if err := s.validator.ValidateQuality(quality); err != nil {
		return nil, err
	}
	jpeg, err := sess.surface.FlattenJPEG(quality)
	if err != nil {
		return nil, err
	}
	s.emit(domain.WorkflowAnnotate, domain.EventPageProcessing, 1, len(sess.surface.Objects()))

	data, err := s.engines.Composer.StampImage(ctx, sess.original, 1, jpeg)
	if err != nil {
		return nil, err
	}
	n, err := s.engines.Composer.PageCount(ctx, data)
	if err != nil {
		return nil, domain.ConversionError("edited document is unreadable", err)
	}
	if n != sess.PageCount {
		return nil, domain.ConversionError(fmt.Sprintf("edited document has %d pages, want %d", n, sess.PageCount), nil)
	}
	log.Debug().Str("session", sess.ID).Int("texts", len(sess.surface.Objects())).Msg("page 1 replaced")
	s.emit(domain.WorkflowAnnotate, domain.EventPageComplete, 1, nil)
	return domain.NewPDFOutput(domain.EditedFileName, data), nil
}

// State returns the session's state.
func (e *EditSession) State() AnnotateState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Size returns the surface size in pixels.
func (e *EditSession) Size() (width, height int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.surface == nil {
		return 0, 0
	}
	b := e.surface.Bounds()
	return b.Dx(), b.Dy()
}

// Style returns the style new text objects get.
func (e *EditSession) Style() annotate.Style {
	return e.style
}

// AddText inserts the placeholder text centred on (x, y).
func (e *EditSession) AddText(x, y float64) (annotate.TextObject, error) {
	var obj annotate.TextObject
	err := e.edit(func(s *annotate.Surface) error {
		var err error
		obj, err = s.Add(x, y, e.placeholder, e.style)
		return err
	})
	return obj, err
}

// MoveText repositions a text object.
func (e *EditSession) MoveText(id string, x, y float64) (annotate.TextObject, error) {
	var obj annotate.TextObject
	err := e.edit(func(s *annotate.Surface) error {
		var err error
		obj, err = s.Move(id, x, y)
		return err
	})
	return obj, err
}

// EditText replaces a text object's content.
func (e *EditSession) EditText(id, text string) (annotate.TextObject, error) {
	var obj annotate.TextObject
	err := e.edit(func(s *annotate.Surface) error {
		var err error
		obj, err = s.SetText(id, text)
		return err
	})
	return obj, err
}

// RemoveText deletes a text object.
func (e *EditSession) RemoveText(id string) error {
	return e.edit(func(s *annotate.Surface) error { return s.Remove(id) })
}

// Texts returns the overlay in insertion order.
func (e *EditSession) Texts() []annotate.TextObject {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.surface == nil {
		return nil
	}
	return e.surface.Objects()
}

// BackgroundJPEG encodes the untouched page raster for display.
func (e *EditSession) BackgroundJPEG(quality int) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.surface == nil {
		return nil, domain.NoActiveEditSession()
	}
	return annotate.NewSurface(e.surface.Background()).FlattenJPEG(quality)
}

// Close drops the surface and the original bytes.
func (e *EditSession) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.surface = nil
	e.original = nil
	e.state = AnnotateNoDocument
}

func (e *EditSession) idleSince() time.Time {
	return time.Unix(0, e.lastUsed.Load())
}

func (e *EditSession) touch() {
	e.lastUsed.Store(e.clock().UnixNano())
}

func (e *EditSession) edit(fn func(*annotate.Surface) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.surface == nil {
		return domain.NoActiveEditSession()
	}
	if err := fn(e.surface); err != nil {
		return err
	}
	e.state = AnnotateEditing
	e.touch()
	return nil
}

// AnnotateWorkflow holds at most one EditSession, for the CLI and library
// callers. Loading a new document replaces the current one.
type AnnotateWorkflow struct {
	svc *Service

	mu      sync.Mutex
	session *EditSession
}

// State returns NoDocument when nothing is loaded.
func (w *AnnotateWorkflow) State() AnnotateState {
	if sess := w.Session(); sess != nil {
		return sess.State()
	}
	return AnnotateNoDocument
}

// Session returns the current session or nil.
func (w *AnnotateWorkflow) Session() *EditSession {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.session
}

// Load opens input for editing. On failure the previous session, if any, is
// dropped and the workflow is left without a document.
func (w *AnnotateWorkflow) Load(ctx context.Context, input domain.Input) error {
	sess, err := w.svc.OpenEditSession(ctx, input)

	w.mu.Lock()
	old := w.session
	w.session = sess
	w.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return err
}

// AddText inserts the placeholder centred on (x, y).
func (w *AnnotateWorkflow) AddText(x, y float64) (annotate.TextObject, error) {
	sess := w.Session()
	if sess == nil {
		return annotate.TextObject{}, domain.NoActiveEditSession()
	}
	return sess.AddText(x, y)
}

// MoveText repositions a text object.
func (w *AnnotateWorkflow) MoveText(id string, x, y float64) (annotate.TextObject, error) {
	sess := w.Session()
	if sess == nil {
		return annotate.TextObject{}, domain.NoActiveEditSession()
	}
	return sess.MoveText(id, x, y)
}

// EditText replaces a text object's content.
func (w *AnnotateWorkflow) EditText(id, text string) (annotate.TextObject, error) {
	sess := w.Session()
	if sess == nil {
		return annotate.TextObject{}, domain.NoActiveEditSession()
	}
	return sess.EditText(id, text)
}

// RemoveText deletes a text object.
func (w *AnnotateWorkflow) RemoveText(id string) error {
	sess := w.Session()
	if sess == nil {
		return domain.NoActiveEditSession()
	}
	return sess.RemoveText(id)
}

// Texts returns the overlay, or nil with no document.
func (w *AnnotateWorkflow) Texts() []annotate.TextObject {
	if sess := w.Session(); sess != nil {
		return sess.Texts()
	}
	return nil
}

// Save exports the current session. Without one it fails with
// NoActiveEditSession and delivers nothing.
func (w *AnnotateWorkflow) Save(ctx context.Context, sink download.Sink) (*domain.Output, error) {
	return w.svc.SaveEditSession(ctx, w.Session(), sink)
}

// Close drops the current session.
func (w *AnnotateWorkflow) Close() {
	w.mu.Lock()
	sess := w.session
	w.session = nil
	w.mu.Unlock()
	if sess != nil {
		sess.Close()
	}
}
