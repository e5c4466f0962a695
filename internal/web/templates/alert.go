package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// ErrorAlert renders an error message with its suggested action and code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<div class="alert alert-error" role="alert"><p class="alert-message">`)
		h.text(message)
		h.raw(`</p>`)
		if action != "" {
			h.raw(`<p class="alert-action">`)
			h.text(action)
			h.raw(`</p>`)
		}
		h.raw(`<p class="alert-code">Code: `)
		h.text(code)
		h.raw(`</p></div>`)
		return h.err
	})
}
