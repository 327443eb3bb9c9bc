package workflow

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/spherical/snap2pdf/internal/domain"
)

// Fake documents are "%PDF-fake\n" followed by pages separated by form feeds;
// fragments inside a page are separated by "|".
const fakeHeader = "%PDF-fake\n"

func fakeDoc(pages ...string) []byte {
	return []byte(fakeHeader + strings.Join(pages, "\f"))
}

func parseFake(data []byte) ([]string, error) {
	s := string(data)
	if !strings.HasPrefix(s, fakeHeader) {
		return nil, errors.New("no fake header")
	}
	body := strings.TrimPrefix(s, fakeHeader)
	if body == "" {
		return nil, nil
	}
	return strings.Split(body, "\f"), nil
}

type fakeComposer struct {
	mu       sync.Mutex
	merges   int
	stamps   [][]byte
	mergeErr error
}

func (c *fakeComposer) PageCount(_ context.Context, data []byte) (int, error) {
	pages, err := parseFake(data)
	if err != nil {
		return 0, domain.DocumentLoadError("", err)
	}
	return len(pages), nil
}

func (c *fakeComposer) Merge(_ context.Context, docs [][]byte) ([]byte, error) {
	c.mu.Lock()
	c.merges++
	c.mu.Unlock()
	if c.mergeErr != nil {
		return nil, c.mergeErr
	}
	var all []string
	for _, d := range docs {
		pages, err := parseFake(d)
		if err != nil {
			return nil, err
		}
		all = append(all, pages...)
	}
	return fakeDoc(all...), nil
}

func (c *fakeComposer) ExtractPage(_ context.Context, data []byte, page int) ([]byte, error) {
	pages, err := parseFake(data)
	if err != nil {
		return nil, domain.DocumentLoadError("", err)
	}
	if err := domain.PageSelection(page).Validate(len(pages)); err != nil {
		return nil, err
	}
	return fakeDoc(pages[page-1]), nil
}

func (c *fakeComposer) StampImage(_ context.Context, data []byte, page int, jpeg []byte) ([]byte, error) {
	pages, err := parseFake(data)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.stamps = append(c.stamps, jpeg)
	c.mu.Unlock()
	pages[page-1] = fmt.Sprintf("[stamp %d bytes]", len(jpeg))
	return fakeDoc(pages...), nil
}

type fakeRenderer struct {
	opened int
	closed int
	scales []float64
}

func (r *fakeRenderer) Open(_ context.Context, data []byte) (domain.RenderedDocument, error) {
	pages, err := parseFake(data)
	if err != nil {
		return nil, domain.DocumentLoadError("", err)
	}
	r.opened++
	return &fakeRendered{r: r, pages: len(pages)}, nil
}

type fakeRendered struct {
	r     *fakeRenderer
	pages int
}

func (d *fakeRendered) NumPage() int { return d.pages }

func (d *fakeRendered) RenderPage(_ context.Context, page int, scale float64) (*image.RGBA, error) {
	if err := domain.PageSelection(page).Validate(d.pages); err != nil {
		return nil, err
	}
	d.r.scales = append(d.r.scales, scale)
	img := image.NewRGBA(image.Rect(0, 0, int(200*scale), int(280*scale)))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img, nil
}

func (d *fakeRendered) Close() error {
	d.r.closed++
	return nil
}

type fakeText struct{}

func (fakeText) Open(_ context.Context, data []byte) (domain.TextDocument, error) {
	pages, err := parseFake(data)
	if err != nil {
		return nil, domain.DocumentLoadError("", err)
	}
	return fakeTextDoc(pages), nil
}

type fakeTextDoc []string

func (d fakeTextDoc) NumPage() int { return len(d) }

func (d fakeTextDoc) Fragments(_ context.Context, page int) ([]string, error) {
	if d[page-1] == "" {
		return nil, nil
	}
	return strings.Split(d[page-1], "|"), nil
}

func (d fakeTextDoc) Close() error { return nil }

type fakePager struct {
	widthMM, heightMM float64
	err               error
}

func (p *fakePager) ImagePage(_ context.Context, jpeg []byte, w, h float64) ([]byte, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.widthMM, p.heightMM = w, h
	return fakeDoc(fmt.Sprintf("[image %d bytes]", len(jpeg))), nil
}

type fakeCamera struct {
	openErr error
	stream  *fakeStream
}

func (c *fakeCamera) Open(context.Context) (domain.MediaStream, error) {
	if c.openErr != nil {
		return nil, c.openErr
	}
	return c.stream, nil
}

type fakeStream struct {
	mu       sync.Mutex
	frames   []domain.RawImageFrame
	frameErr error
	stops    int
}

func (s *fakeStream) Frame(context.Context) (domain.RawImageFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frameErr != nil {
		return domain.RawImageFrame{}, s.frameErr
	}
	if len(s.frames) == 0 {
		return domain.RawImageFrame{}, nil
	}
	f := s.frames[0]
	if len(s.frames) > 1 {
		s.frames = s.frames[1:]
	}
	return f, nil
}

func (s *fakeStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	return nil
}

func (s *fakeStream) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

type fakeRecorder struct {
	mu   sync.Mutex
	recs []domain.RunRecord
	err  error
}

func (r *fakeRecorder) Record(_ context.Context, rec domain.RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
	return r.err
}

func (r *fakeRecorder) records() []domain.RunRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.RunRecord(nil), r.recs...)
}

// failingSink rejects every delivery.
type failingSink struct{}

func (failingSink) Deliver(context.Context, *domain.Output) error {
	return domain.IOError("disk full", nil)
}

// blockingSink holds Deliver until released.
type blockingSink struct {
	entered chan struct{}
	release chan struct{}
}

func newBlockingSink() *blockingSink {
	return &blockingSink{entered: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingSink) Deliver(ctx context.Context, _ *domain.Output) error {
	close(b.entered)
	<-b.release
	return nil
}

type fixture struct {
	svc      *Service
	composer *fakeComposer
	renderer *fakeRenderer
	pager    *fakePager
	recorder *fakeRecorder
	events   chan domain.WorkflowEvent
}

func newFixture(opts ...Option) *fixture {
	f := &fixture{
		composer: &fakeComposer{},
		renderer: &fakeRenderer{},
		pager:    &fakePager{},
		recorder: &fakeRecorder{},
		events:   make(chan domain.WorkflowEvent, 64),
	}
	opts = append([]Option{WithRecorder(f.recorder), WithEvents(f.events)}, opts...)
	f.svc = NewService(Engines{
		Renderer: f.renderer,
		Text:     fakeText{},
		Composer: f.composer,
		Pager:    f.pager,
	}, DefaultSettings(), opts...)
	return f
}

func (f *fixture) drain() []domain.WorkflowEvent {
	var out []domain.WorkflowEvent
	for {
		select {
		case e := <-f.events:
			out = append(out, e)
		default:
			return out
		}
	}
}
