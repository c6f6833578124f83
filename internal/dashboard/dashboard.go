// Package dashboard embeds the HTML templates and styles of the operator
// dashboard.
package dashboard

import "embed"

//go:embed templates/*.html
var Templates embed.FS

//go:embed assets/style.css
var Assets embed.FS
