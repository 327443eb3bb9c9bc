package domain

import (
	"fmt"
	"time"
)

// WorkflowName identifies one of the user-triggered pipelines.
type WorkflowName string

const (
	WorkflowCapture  WorkflowName = "capture"
	WorkflowMerge    WorkflowName = "merge"
	WorkflowSplit    WorkflowName = "split"
	WorkflowExtract  WorkflowName = "extract"
	WorkflowAnnotate WorkflowName = "annotate"
)

// AllWorkflows lists every workflow in display order.
var AllWorkflows = []WorkflowName{
	WorkflowCapture,
	WorkflowMerge,
	WorkflowSplit,
	WorkflowExtract,
	WorkflowAnnotate,
}

// Output file names
const (
	CaptureFileName = "snap2pdf_capture.pdf"
	MergedFileName  = "snap2pdf_merged.pdf"
	EditedFileName  = "snap2pdf_edited.pdf"

	ContentTypePDF  = "application/pdf"
	ContentTypeJPEG = "image/jpeg"
	ContentTypePNG  = "image/png"
)

// SplitFileName returns the download name for a single extracted page.
func SplitFileName(page int) string {
	return fmt.Sprintf("snap2pdf_page_%d.pdf", page)
}

// Image formats a RawImageFrame may carry
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
)

// RawImageFrame is a single still grabbed from a camera stream
type RawImageFrame struct {
	Width  int
	Height int
	Format string // FormatJPEG or FormatPNG
	Data   []byte
}

// Input is one user-supplied document
type Input struct {
	Name string
	Data []byte
}

// PageSelection is a 1-based page index chosen by the user
type PageSelection int

// Validate checks the selection against the document's real page count.
// Out-of-range values are rejected, never clamped.
func (p PageSelection) Validate(total int) error {
	if int(p) < 1 || int(p) > total {
		return PageOutOfRange(int(p), total)
	}
	return nil
}

// Output is the single product of a successful workflow run
type Output struct {
	Name        string
	Data        []byte
	ContentType string
}

// NewPDFOutput wraps PDF bytes for delivery.
func NewPDFOutput(name string, data []byte) *Output {
	return &Output{Name: name, Data: data, ContentType: ContentTypePDF}
}

// PageText is the joined text of one page
type PageText struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

// ExtractResult contains the text pulled from a document
type ExtractResult struct {
	Text  string     `json:"text"`
	Pages []PageText `json:"pages"`
}

// EventType represents the type of workflow event
type EventType string

const (
	EventStart          EventType = "start"
	EventPageProcessing EventType = "page_processing"
	EventPageComplete   EventType = "page_complete"
	EventError          EventType = "error"
	EventComplete       EventType = "complete"
)

// WorkflowEvent represents progress emitted while a workflow runs
type WorkflowEvent struct {
	Workflow  WorkflowName `json:"workflow"`
	Type      EventType    `json:"type"`
	Page      int          `json:"page,omitempty"`
	Payload   interface{}  `json:"payload,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// RunStatus is the terminal state of one workflow run
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunRecord describes a finished workflow run for diagnostics. It never
// carries document content.
type RunRecord struct {
	ID          string        `json:"id"`
	Workflow    WorkflowName  `json:"workflow"`
	Status      RunStatus     `json:"status"`
	ErrorType   ErrorType     `json:"error_type,omitempty"`
	Message     string        `json:"message,omitempty"`
	OutputName  string        `json:"output_name,omitempty"`
	OutputBytes int           `json:"output_bytes"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
}
