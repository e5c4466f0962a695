package templates

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/JonMunkholm/tidycsv/internal/core"
	"github.com/a-h/templ"
)

// PreviewTable renders the head of a file with a kind badge per column.
func PreviewTable(p core.Preview) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<section class="preview" data-file="`)
		h.text(p.File)
		h.raw(`"><header class="preview-header"><h2>`)
		h.text(p.File)
		h.raw(`</h2><span class="preview-count">`)
		h.text(rowCount(p))
		h.raw(`</span></header>`)

		h.raw(`<table class="preview-table"><thead><tr>`)
		for i, col := range p.Columns {
			h.raw(`<th>`)
			h.text(col)
			h.raw(` <span class="kind kind-`)
			h.text(string(kindAt(p.Kinds, i)))
			h.raw(`">`)
			h.text(string(kindAt(p.Kinds, i)))
			h.raw(`</span></th>`)
		}
		h.raw(`</tr></thead><tbody>`)
		for _, row := range p.Rows {
			h.raw(`<tr>`)
			for _, v := range row {
				h.raw(`<td>`)
				h.text(v)
				h.raw(`</td>`)
			}
			h.raw(`</tr>`)
		}
		h.raw(`</tbody></table>`)

		if len(p.Profiles) > 0 {
			if err := ColumnProfiles(p.Profiles).Render(ctx, w); err != nil {
				return err
			}
		}
		h.raw(`</section>`)
		return h.err
	})
}

// ColumnProfiles renders per-column fill and sample statistics.
func ColumnProfiles(profiles []core.ColumnProfile) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<table class="profiles"><thead><tr><th>Column</th><th>Kind</th><th>Filled</th><th>Empty</th><th>Numeric</th><th>Distinct</th><th>Samples</th></tr></thead><tbody>`)
		for _, p := range profiles {
			h.raw(`<tr><td>`)
			h.text(p.Name)
			h.raw(`</td><td>`)
			h.text(string(p.Kind))
			for _, n := range []int{p.NonEmpty, p.Empty, p.Numeric, p.Distinct} {
				h.raw(`</td><td>`)
				h.text(strconv.Itoa(n))
			}
			h.raw(`</td><td>`)
			for i, s := range p.Samples {
				if i > 0 {
					h.raw(`, `)
				}
				h.raw(`<code>`)
				h.text(s)
				h.raw(`</code>`)
			}
			h.raw(`</td></tr>`)
		}
		h.raw(`</tbody></table>`)
		return h.err
	})
}

func rowCount(p core.Preview) string {
	if p.Truncated {
		return fmt.Sprintf("showing %d of %d rows", len(p.Rows), p.TotalRows)
	}
	return fmt.Sprintf("%d rows", p.TotalRows)
}

func kindAt(kinds []core.Kind, i int) core.Kind {
	if i < len(kinds) && kinds[i] != "" {
		return kinds[i]
	}
	return core.KindString
}
