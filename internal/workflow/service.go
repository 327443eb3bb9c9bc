// Package workflow implements the five user-triggered pipelines: capture,
// merge, split, extract and annotate. Each acquires input bytes, calls the
// PDF engines and hands exactly one output to a download sink.
package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/spherical/snap2pdf/internal/config"
	"github.com/spherical/snap2pdf/internal/domain"
	"github.com/spherical/snap2pdf/internal/download"
	"github.com/spherical/snap2pdf/internal/observability"
	"github.com/spherical/snap2pdf/internal/pdf"
)

// Engines are the external collaborators the workflows drive.
type Engines struct {
	Renderer domain.Renderer
	Text     domain.TextEngine
	Composer domain.Composer
	Pager    domain.ImagePager
}

// Settings are the typed options passed to the engines.
type Settings struct {
	Capture    config.CaptureConfig
	Render     config.RenderConfig
	Annotation config.AnnotationConfig
}

// DefaultSettings returns the documented defaults.
func DefaultSettings() Settings {
	cfg := config.DefaultConfig()
	return Settings{Capture: cfg.Capture, Render: cfg.Render, Annotation: cfg.Annotation}
}

// Recorder receives one record per finished run.
type Recorder interface {
	Record(ctx context.Context, rec domain.RunRecord) error
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *observability.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithEvents sets the channel progress events are sent to. Sends never block;
// events are dropped when the channel is full.
func WithEvents(ch chan<- domain.WorkflowEvent) Option {
	return func(s *Service) { s.events = ch }
}

// WithRecorder sets the run recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service runs workflows. It is safe for concurrent use; each workflow
// admits one invocation at a time.
type Service struct {
	engines   Engines
	settings  Settings
	validator *pdf.Validator
	logger    *observability.Logger
	events    chan<- domain.WorkflowEvent
	recorder  Recorder
	now       func() time.Time
	guards    map[domain.WorkflowName]*Guard

	capture  *CaptureWorkflow
	annotate *AnnotateWorkflow
}

// NewService wires the engines into a Service.
func NewService(engines Engines, settings Settings, opts ...Option) *Service {
	s := &Service{
		engines:   engines,
		settings:  settings,
		validator: pdf.NewValidator(),
		logger:    observability.Nop(),
		now:       time.Now,
		guards:    make(map[domain.WorkflowName]*Guard, len(domain.AllWorkflows)),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, name := range domain.AllWorkflows {
		s.guards[name] = NewGuard(name)
	}
	s.capture = &CaptureWorkflow{svc: s, state: CaptureIdle}
	s.annotate = &AnnotateWorkflow{svc: s}
	return s
}

// Capture returns the capture state machine.
func (s *Service) Capture() *CaptureWorkflow { return s.capture }

// Annotate returns the single-session annotation workflow.
func (s *Service) Annotate() *AnnotateWorkflow { return s.annotate }

// Settings returns the typed options in use.
func (s *Service) Settings() Settings { return s.settings }

// WorkflowStatus is a busy/idle snapshot of one workflow.
type WorkflowStatus struct {
	Workflow domain.WorkflowName `json:"workflow"`
	Busy     bool                `json:"busy"`
	State    string              `json:"state,omitempty"`
}

// Status reports every workflow in display order.
func (s *Service) Status() []WorkflowStatus {
	out := make([]WorkflowStatus, 0, len(domain.AllWorkflows))
	for _, name := range domain.AllWorkflows {
		st := WorkflowStatus{Workflow: name, Busy: s.guards[name].Busy()}
		switch name {
		case domain.WorkflowCapture:
			st.State = string(s.capture.State())
		case domain.WorkflowAnnotate:
			st.State = string(s.annotate.State())
		}
		out = append(out, st)
	}
	return out
}

// runFunc performs one invocation and returns its single output.
type runFunc func(ctx context.Context, log *observability.Logger) (*domain.Output, error)

// run executes fn under the workflow's guard and delivers its output to sink
// (if any). A failed run delivers nothing.
func (s *Service) run(ctx context.Context, name domain.WorkflowName, sink download.Sink, fn runFunc) (*domain.Output, error) {
	release, err := s.guards[name].Enter()
	if err != nil {
		return nil, err
	}
	defer release()
	return s.runLocked(ctx, name, sink, fn)
}

// runLocked is run for callers already holding the guard.
func (s *Service) runLocked(ctx context.Context, name domain.WorkflowName, sink download.Sink, fn runFunc) (*domain.Output, error) {
	started := s.now()
	log := s.logger.WithContext(ctx).WithWorkflow(name)
	s.emit(name, domain.EventStart, 0, nil)
	log.Debug().Msg("workflow started")

	out, err := fn(ctx, log)
	if err == nil && sink != nil {
		err = sink.Deliver(ctx, out)
	}

	elapsed := s.now().Sub(started)
	if err != nil {
		log.Error().Err(err).Dur("elapsed", elapsed).Msg("workflow failed")
		s.emit(name, domain.EventError, 0, err.Error())
		s.record(ctx, name, started, elapsed, nil, err)
		return nil, err
	}

	log.Info().Str("output", out.Name).Int("bytes", len(out.Data)).Dur("elapsed", elapsed).Msg("workflow complete")
	s.emit(name, domain.EventComplete, 0, out.Name)
	s.record(ctx, name, started, elapsed, out, nil)
	return out, nil
}

// emit sends an event without blocking.
func (s *Service) emit(name domain.WorkflowName, typ domain.EventType, page int, payload interface{}) {
	if s.events == nil {
		return
	}
	evt := domain.WorkflowEvent{Workflow: name, Type: typ, Page: page, Payload: payload, Timestamp: s.now()}
	select {
	case s.events <- evt:
	default:
		s.logger.Warn().Str("workflow", string(name)).Str("event", string(typ)).Msg("event channel full, dropping event")
	}
}

func (s *Service) record(ctx context.Context, name domain.WorkflowName, started time.Time, elapsed time.Duration, out *domain.Output, runErr error) {
	if s.recorder == nil {
		return
	}
	rec := domain.RunRecord{
		ID:        uuid.NewString(),
		Workflow:  name,
		Status:    domain.RunSucceeded,
		StartedAt: started,
		Duration:  elapsed,
	}
	if out != nil {
		rec.OutputName = out.Name
		rec.OutputBytes = len(out.Data)
	}
	if runErr != nil {
		rec.Status = domain.RunFailed
		rec.ErrorType = domain.TypeOf(runErr)
		rec.Message = runErr.Error()
	}
	// audit failures never fail a workflow; a cancelled request still gets its row
	if err := s.recorder.Record(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Warn().Err(err).Str("workflow", string(name)).Msg("failed to record run")
	}
}

// loadInput validates an input and returns its page count.
func (s *Service) loadInput(ctx context.Context, in domain.Input) (int, error) {
	if err := s.validator.ValidatePDFBytes(in.Name, in.Data); err != nil {
		return 0, err
	}
	n, err := s.engines.Composer.PageCount(ctx, in.Data)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, domain.DocumentLoadError(in.Name, unwrapLoad(err))
	}
	return n, nil
}

// unwrapLoad strips an engine's anonymous DocumentLoad wrapper so the
// re-wrapped error names the input once.
func unwrapLoad(err error) error {
	if de, ok := err.(*domain.DomainError); ok && de.Type == domain.ErrorTypeDocumentLoad && de.Err != nil {
		return de.Err
	}
	return err
}
