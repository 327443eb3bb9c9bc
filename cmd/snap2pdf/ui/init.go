// Package ui provides terminal output helpers for the snap2pdf CLI.
package ui

import (
	"io"
	"os"

	"github.com/fatih/color"
)

var (
	stdout  io.Writer = os.Stdout
	stderr  io.Writer = os.Stderr
	verbose bool
)

// InitUI applies the color and verbosity flags.
func InitUI(noColor, verboseOutput bool) {
	verbose = verboseOutput
	if noColor {
		color.NoColor = true
	}
}

// SetOutput redirects normal and error output.
func SetOutput(out, errOut io.Writer) {
	stdout = out
	stderr = errOut
}

// Verbose reports whether --verbose was given.
func Verbose() bool {
	return verbose
}
