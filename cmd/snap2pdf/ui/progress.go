package ui

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/schollz/progressbar/v3"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// ProgressBar wraps a progressbar instance for counted work.
type ProgressBar struct {
	bar *progressbar.ProgressBar
}

// NewProgressBar creates a progress bar on stderr. A total of -1 starts it
// indeterminate until SetTotal.
func NewProgressBar(total int64, description string) *ProgressBar {
	bar := progressbar.NewOptions64(
		total,
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionSetWriter(stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(stderr, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
	return &ProgressBar{bar: bar}
}

// Set moves the bar to current.
func (p *ProgressBar) Set(current int64) {
	_ = p.bar.Set64(current)
}

// SetTotal changes the bar's maximum.
func (p *ProgressBar) SetTotal(total int64) {
	p.bar.ChangeMax64(total)
}

// Finish completes the bar.
func (p *ProgressBar) Finish() {
	_ = p.bar.Finish()
}

// Spinner wraps a spinner for work of unknown length.
type Spinner struct {
	spinner *spinner.Spinner
}

// NewSpinner creates a spinner with the given message.
func NewSpinner(message string) *Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	s.Writer = stderr
	return &Spinner{spinner: s}
}

// Start starts the animation.
func (s *Spinner) Start() {
	s.spinner.Start()
}

// Stop stops the animation and clears the line.
func (s *Spinner) Stop() {
	s.spinner.Stop()
}

// UpdateMessage replaces the spinner's message.
func (s *Spinner) UpdateMessage(message string) {
	s.spinner.Lock()
	s.spinner.Suffix = " " + message
	s.spinner.Unlock()
}

// DocumentBars shows one bar per document of a multi-document run.
type DocumentBars struct {
	progress *mpb.Progress
	bars     []*mpb.Bar
	next     int
}

// NewDocumentBars adds a bar for each name, in order.
func NewDocumentBars(names []string) *DocumentBars {
	p := mpb.New(mpb.WithWidth(40), mpb.WithOutput(stderr))
	bars := make([]*mpb.Bar, len(names))
	for i, name := range names {
		bars[i] = p.AddBar(1,
			mpb.PrependDecorators(decor.Name(name, decor.WCSyncSpaceR)),
			mpb.AppendDecorators(decor.OnComplete(decor.Name("loading"), "done")),
		)
	}
	return &DocumentBars{progress: p, bars: bars}
}

// Reach marks every document before the 1-based index n as done.
func (d *DocumentBars) Reach(n int) {
	for d.next < n-1 && d.next < len(d.bars) {
		d.bars[d.next].Increment()
		d.next++
	}
}

// Finish completes the remaining bars, or aborts them when ok is false.
func (d *DocumentBars) Finish(ok bool) {
	for ; d.next < len(d.bars); d.next++ {
		if ok {
			d.bars[d.next].Increment()
		} else {
			d.bars[d.next].Abort(false)
		}
	}
	// piped output never renders, and Wait can hang on it
	if isTerminal(stderr) {
		d.progress.Wait()
	} else {
		d.progress.Shutdown()
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
