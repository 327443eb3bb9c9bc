// Command snap2pdf captures camera snapshots as PDFs and merges, splits,
// extracts text from and annotates PDF documents.
package main

import (
	"os"

	"github.com/spherical/snap2pdf/cmd/snap2pdf/commands"
)

var version = "0.1.0"

func main() {
	commands.SetVersion(version)
	os.Exit(commands.Execute())
}
