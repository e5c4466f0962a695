// Package templates holds the HTML fragments served to HTMX clients.
//
// Components are written as templ.ComponentFunc values so they render
// through the same templ pipeline as generated components.
package templates

import (
	"io"

	"github.com/a-h/templ"
)

// htmlWriter stops at the first write error.
type htmlWriter struct {
	w   io.Writer
	err error
}

// raw writes trusted markup.
func (h *htmlWriter) raw(s string) {
	if h.err != nil {
		return
	}
	_, h.err = io.WriteString(h.w, s)
}

// text writes escaped user content.
func (h *htmlWriter) text(s string) {
	h.raw(templ.EscapeString(s))
}
