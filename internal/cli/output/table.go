package output

import (
	"github.com/jedib0t/go-pretty/v6/table"
)

// Table renders rows under a header in the renderer's mode. JSON mode
// writes an array of objects keyed by header.
func (r *Renderer) Table(header []string, rows [][]string) error {
	if r.EffectiveMode() == ModeJSON {
		objs := make([]map[string]string, 0, len(rows))
		for _, row := range rows {
			obj := make(map[string]string, len(header))
			for i, col := range header {
				if i < len(row) {
					obj[col] = row[i]
				}
			}
			objs = append(objs, obj)
		}
		return r.JSON(objs)
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)

	h := make(table.Row, len(header))
	for i, col := range header {
		h[i] = col
	}
	t.AppendHeader(h)
	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, v := range row {
			tr[i] = v
		}
		t.AppendRow(tr)
	}

	switch r.EffectiveMode() {
	case ModeMarkdown:
		t.RenderMarkdown()
		r.Println()
	case ModeCSV:
		t.RenderCSV()
	default:
		t.Render()
	}
	return nil
}
