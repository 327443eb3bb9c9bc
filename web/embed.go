// Package web embeds the browser UI served by snap2pdf-server.
package web

import "embed"

// Files holds the static assets at the root of the file system.
//
//go:embed index.html about.html style.css app.js manifest.json
var Files embed.FS
