package web

import "embed"

// FS holds the page templates rendered by the public routes.
//
//go:embed *.html
var FS embed.FS
