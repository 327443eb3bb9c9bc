package ui

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warnColor    = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.Bold)
)

// Success displays a success message.
func Success(format string, args ...interface{}) {
	fmt.Fprintf(stdout, "%s %s\n", successColor.Sprint("✓"), fmt.Sprintf(format, args...))
}

// Error displays an error message to stderr.
func Error(format string, args ...interface{}) {
	fmt.Fprintf(stderr, "%s %s\n", errorColor.Sprint("✗"), fmt.Sprintf(format, args...))
}

// Warning displays a warning message.
func Warning(format string, args ...interface{}) {
	fmt.Fprintf(stdout, "%s %s\n", warnColor.Sprint("⚠"), fmt.Sprintf(format, args...))
}

// Info displays an informational message.
func Info(format string, args ...interface{}) {
	fmt.Fprintf(stdout, "%s %s\n", infoColor.Sprint("ℹ"), fmt.Sprintf(format, args...))
}

// Message prints a plain line.
func Message(format string, args ...interface{}) {
	fmt.Fprintf(stdout, format, args...)
	fmt.Fprintln(stdout)
}

// Section displays a section header.
func Section(title string) {
	fmt.Fprintf(stdout, "\n%s\n%s\n\n", headerColor.Sprint(title), strings.Repeat("=", len(title)))
}

// Table displays rows under headers.
func Table(headers []string, rows [][]string) {
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(headers, "\t"))

	sep := make([]string, len(headers))
	for i := range sep {
		sep[i] = strings.Repeat("-", len(headers[i]))
	}
	fmt.Fprintln(w, strings.Join(sep, "\t"))

	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}
