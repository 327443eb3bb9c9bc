package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spherical/snap2pdf/cmd/snap2pdf/ui"
	"github.com/spherical/snap2pdf/internal/domain"
	"github.com/spherical/snap2pdf/internal/download"
	"github.com/spherical/snap2pdf/internal/pdf"
)

// readInputs loads every path as a document input.
func readInputs(paths []string) ([]domain.Input, error) {
	v := pdf.NewValidator()
	inputs := make([]domain.Input, 0, len(paths))
	for _, p := range paths {
		in, err := v.ReadInput(p)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

// indicator shows progress while fn runs.
type indicator func(fn func() error) error

// produce runs fn with a directory sink under ind and reports where the file
// went once the indicator is gone.
func (s *session) produce(ind indicator, fn func(sink download.Sink) (*domain.Output, error)) error {
	sink := download.NewDirSink(s.app.Config.Output.Dir)
	var out *domain.Output
	err := ind(func() error {
		var err error
		out, err = fn(sink)
		return err
	})
	if err != nil {
		return err
	}
	path := sink.LastPath()
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	ui.Success("Saved %s (%s)", path, humanBytes(len(out.Data)))
	return nil
}

// spinner follows the workflow's page events in the spinner message.
func (s *session) spinner(message string) indicator {
	return func(fn func() error) error {
		sp := ui.NewSpinner(message)
		sp.Start()
		stop := s.follow(func(evt domain.WorkflowEvent) {
			if evt.Type == domain.EventPageProcessing && evt.Page > 0 {
				sp.UpdateMessage(fmt.Sprintf("%s (page %d)", message, evt.Page))
			}
		})
		err := fn()
		stop()
		sp.Stop()
		return err
	}
}

// progress shows a bar over the pages of one document. The page count comes
// with the first page event.
func (s *session) progress(description string) indicator {
	return func(fn func() error) error {
		bar := ui.NewProgressBar(-1, description)
		stop := s.follow(func(evt domain.WorkflowEvent) {
			if evt.Type != domain.EventPageProcessing {
				return
			}
			if total, ok := evt.Payload.(int); ok {
				bar.SetTotal(int64(total))
			}
			bar.Set(int64(evt.Page - 1))
		})
		err := fn()
		stop()
		if err == nil {
			bar.Finish()
		}
		return err
	}
}

// documents shows a bar per input, completed as the workflow moves on to the
// next one.
func (s *session) documents(inputs []domain.Input) indicator {
	return func(fn func() error) error {
		names := make([]string, len(inputs))
		for i, in := range inputs {
			names[i] = in.Name
		}
		bars := ui.NewDocumentBars(names)
		stop := s.follow(func(evt domain.WorkflowEvent) {
			if evt.Type == domain.EventPageProcessing {
				bars.Reach(evt.Page)
			}
		})
		err := fn()
		stop()
		bars.Finish(err == nil)
		return err
	}
}

// follow hands workflow events to handle until the returned stop is called.
func (s *session) follow(handle func(domain.WorkflowEvent)) (stop func()) {
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for {
			select {
			case <-done:
				return
			case evt := <-s.events:
				handle(evt)
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}

// describeError turns an error into one line for the terminal.
func describeError(err error) string {
	if errors.Is(err, context.Canceled) {
		return "interrupted"
	}
	var de *domain.DomainError
	if errors.As(err, &de) {
		switch de.Type {
		case domain.ErrorTypePermissionDenied:
			return "camera access denied: " + de.Error()
		case domain.ErrorTypeDeviceUnavailable:
			return "camera not available: " + de.Error()
		case domain.ErrorTypeBusy:
			return "please wait: " + de.Message
		}
		return de.Error()
	}
	return err.Error()
}

func humanBytes(n int) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := unit, 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGT"[exp])
}
