// Package handlers provides HTTP handlers for the snap2pdf API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/spherical/snap2pdf/internal/domain"
	"github.com/spherical/snap2pdf/internal/download"
	"github.com/spherical/snap2pdf/internal/observability"
	"github.com/spherical/snap2pdf/internal/workflow"
)

// multipartMemory is the part of an upload kept in memory before spilling to
// temp files.
const multipartMemory = 32 << 20

// statusFor maps a workflow error to an HTTP status.
func statusFor(err error) int {
	var tooBig *http.MaxBytesError
	switch {
	case errors.Is(err, workflow.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}

	switch domain.TypeOf(err) {
	case domain.ErrorTypeValidation, domain.ErrorTypeInsufficientInput, domain.ErrorTypePageOutOfRange:
		return http.StatusBadRequest
	case domain.ErrorTypePermissionDenied:
		return http.StatusForbidden
	case domain.ErrorTypeBusy, domain.ErrorTypeNoActiveEditSession:
		return http.StatusConflict
	case domain.ErrorTypeDocumentLoad:
		return http.StatusUnprocessableEntity
	case domain.ErrorTypeDeviceUnavailable, domain.ErrorTypeDeviceNotReady:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// messageFor returns the user-facing message of err, without the wrapped
// cause.
func messageFor(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return fmt.Sprintf("upload exceeds %d bytes", tooBig.Limit)
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, detail string) {
	resp := map[string]string{
		"error":   message,
		"message": message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	writeJSON(w, status, resp)
}

// fail logs err and writes it as JSON, unless the attachment already went
// out.
func fail(logger *observability.Logger, w http.ResponseWriter, r *http.Request, sink *attachment, err error) {
	status := statusFor(err)
	log := logger.WithContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	} else {
		log.Debug().Err(err).Str("path", r.URL.Path).Msg("request rejected")
	}
	if sink != nil && sink.sent {
		return
	}
	detail := ""
	if t := domain.TypeOf(err); t != "" {
		detail = string(t)
	}
	writeError(w, status, messageFor(err), detail)
}

// attachment streams a workflow output as the response body and remembers
// whether it did, so a late error does not write a second response.
type attachment struct {
	*download.ResponseSink
	sent bool
}

func newAttachment(w http.ResponseWriter) *attachment {
	return &attachment{ResponseSink: download.NewResponseSink(w)}
}

func (a *attachment) Deliver(ctx context.Context, out *domain.Output) error {
	a.sent = true
	return a.ResponseSink.Deliver(ctx, out)
}

// readUploads parses a multipart body of at most maxBytes and returns the
// files of field in form order.
func readUploads(w http.ResponseWriter, r *http.Request, field string, maxBytes int64) ([]domain.Input, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, err
		}
		return nil, domain.ValidationError("expected a multipart/form-data upload", err)
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[field]
	inputs := make([]domain.Input, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			return nil, domain.IOError(fmt.Sprintf("failed to read upload %s", fh.Filename), err)
		}
		inputs = append(inputs, domain.Input{Name: fh.Filename, Data: data})
	}
	return inputs, nil
}

// readUpload returns the single file of field.
func readUpload(w http.ResponseWriter, r *http.Request, field string, maxBytes int64) (domain.Input, error) {
	inputs, err := readUploads(w, r, field, maxBytes)
	if err != nil {
		return domain.Input{}, err
	}
	if len(inputs) != 1 {
		return domain.Input{}, domain.ValidationError(fmt.Sprintf("expected exactly one %q file, got %d", field, len(inputs)), nil)
	}
	return inputs[0], nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
