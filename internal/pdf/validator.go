package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spherical/snap2pdf/internal/domain"
)

// MaxInputBytes caps a single input document.
const MaxInputBytes = 256 << 20

// headerWindow is how far into the file the %PDF- marker may appear.
const headerWindow = 1024

var errNoHeader = errors.New("missing %PDF- header")

// Validator provides input validation for PDF files
type Validator struct{}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidatePDFPath validates that a file path is valid and points to a PDF
func (v *Validator) ValidatePDFPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return domain.ValidationError("file path cannot be empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ValidationError(fmt.Sprintf("file does not exist: %s", path), err)
		}
		return domain.ValidationError(fmt.Sprintf("cannot access file: %s", path), err)
	}

	if info.IsDir() {
		return domain.ValidationError(fmt.Sprintf("path is a directory, not a file: %s", path), nil)
	}

	if ext := strings.ToLower(filepath.Ext(path)); ext != ".pdf" {
		return domain.ValidationError(fmt.Sprintf("file is not a PDF (has extension %s)", ext), nil)
	}

	if info.Size() > MaxInputBytes {
		return domain.ValidationError(fmt.Sprintf("file is larger than %d MB: %s", MaxInputBytes>>20, path), nil)
	}

	return nil
}

// ValidatePDFBytes checks that data looks like a PDF before any engine sees it.
func (v *Validator) ValidatePDFBytes(name string, data []byte) error {
	if len(data) == 0 {
		return domain.DocumentLoadError(name, errors.New("empty file"))
	}
	window := data
	if len(window) > headerWindow {
		window = window[:headerWindow]
	}
	if !bytes.Contains(window, []byte("%PDF-")) {
		return domain.DocumentLoadError(name, errNoHeader)
	}
	return nil
}

// ValidateQuality validates image quality parameter
func (v *Validator) ValidateQuality(quality int) error {
	if quality < 1 || quality > 100 {
		return domain.ValidationError(fmt.Sprintf("quality must be between 1 and 100, got %d", quality), nil)
	}
	return nil
}

// ReadInput validates path and loads it as a named input.
func (v *Validator) ReadInput(path string) (domain.Input, error) {
	if err := v.ValidatePDFPath(path); err != nil {
		return domain.Input{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Input{}, domain.IOError(fmt.Sprintf("cannot read file: %s", path), err)
	}
	return domain.Input{Name: filepath.Base(path), Data: data}, nil
}
