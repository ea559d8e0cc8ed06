// Package render draws a processed grid view as an indented tree for
// terminal previews.
package render

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
	"github.com/goccy/go-json"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"

	"github.com/vanderheijden86/treegrid/pkg/engine"
	"github.com/vanderheijden86/treegrid/pkg/model"
)

const (
	defaultWidth   = 80
	maxColumnWidth = 24
)

// Options configures a Renderer.
type Options struct {
	// LabelKey is the field shown in the tree column. Empty shows the row id.
	LabelKey string
	// Columns are the fields printed after the tree column.
	Columns []string
	// Width caps every line. Zero means 80 cells.
	Width int
	// Header prints a column header line.
	Header bool
	// Selected and Indeterminate add a check box per row when set.
	Selected      func(model.RowID) bool
	Indeterminate func(model.RowID) bool
	// Profile overrides the color profile detected from the writer.
	Profile colorprofile.Profile
}

type theme struct {
	tree      lipgloss.Style
	indicator lipgloss.Style
	label     lipgloss.Style
	dimmed    lipgloss.Style
	cell      lipgloss.Style
	header    lipgloss.Style
	footer    lipgloss.Style
}

// Renderer formats engine views. It is safe to reuse across views.
type Renderer struct {
	opts    Options
	profile colorprofile.Profile
	theme   theme
}

// New returns a renderer for output written to w.
func New(w io.Writer, opts Options) *Renderer {
	if opts.Width <= 0 {
		opts.Width = defaultWidth
	}
	profile := opts.Profile
	if profile == colorprofile.Unknown {
		profile = colorprofile.Detect(w, os.Environ())
	}
	r := &Renderer{opts: opts, profile: profile}

	lr := lipgloss.NewRenderer(w)
	lr.SetColorProfile(termenvProfile(profile))
	r.theme = r.newTheme(lr)
	return r
}

func termenvProfile(p colorprofile.Profile) termenv.Profile {
	switch p {
	case colorprofile.TrueColor:
		return termenv.TrueColor
	case colorprofile.ANSI256:
		return termenv.ANSI256
	case colorprofile.ANSI:
		return termenv.ANSI
	default:
		return termenv.Ascii
	}
}

// fg returns hex on 256-color terminals and up, and the ANSI fallback
// below that.
func (r *Renderer) fg(hex string, fallback int) lipgloss.TerminalColor {
	if r.profile < colorprofile.ANSI256 {
		return lipgloss.ANSIColor(fallback)
	}
	return lipgloss.Color(hex)
}

func (r *Renderer) newTheme(lr *lipgloss.Renderer) theme {
	if r.profile < colorprofile.ANSI {
		plain := lr.NewStyle()
		return theme{plain, plain, plain, plain, plain, plain, plain}
	}
	muted := r.fg("#6272A4", 8)
	return theme{
		tree:      lr.NewStyle().Foreground(muted),
		indicator: lr.NewStyle().Foreground(r.fg("#BD93F9", 5)),
		label:     lr.NewStyle().Foreground(r.fg("#F8F8F2", 7)),
		dimmed:    lr.NewStyle().Foreground(muted).Faint(true),
		cell:      lr.NewStyle().Foreground(r.fg("#8BE9FD", 6)),
		header:    lr.NewStyle().Foreground(r.fg("#BD93F9", 5)).Bold(true),
		footer:    lr.NewStyle().Foreground(muted),
	}
}

// Profile returns the color profile in use.
func (r *Renderer) Profile() colorprofile.Profile {
	return r.profile
}

type line struct {
	rec    *model.Record
	prefix string // branch characters
	marker string // check box and expand indicator
	label  string
}

// Render formats the visible rows of v, one line per row, followed by a
// page indicator when the view is paged.
func (r *Renderer) Render(v *engine.View) string {
	var sb strings.Builder
	if v == nil || len(v.Roots) == 0 {
		sb.WriteString(r.theme.footer.Render("No rows to display."))
		sb.WriteString("\n")
		return sb.String()
	}

	lines := r.layout(v.Roots)
	treeWidth := 0
	for _, l := range lines {
		treeWidth = max(treeWidth, runewidth.StringWidth(l.prefix+l.marker+l.label))
	}
	colWidths := r.columnWidths(lines)
	budget := r.opts.Width - 1
	for _, w := range colWidths {
		budget -= w + 1
	}
	treeWidth = min(treeWidth, max(budget, r.opts.Width/2))

	if r.opts.Header {
		cells := []string{runewidth.FillRight(cut("", treeWidth), treeWidth)}
		if r.opts.LabelKey != "" {
			cells[0] = runewidth.FillRight(cut(strings.ToUpper(r.opts.LabelKey), treeWidth), treeWidth)
		}
		for i, c := range r.opts.Columns {
			cells = append(cells, runewidth.FillRight(cut(strings.ToUpper(c), colWidths[i]), colWidths[i]))
		}
		sb.WriteString(r.theme.header.Render(r.clamp(strings.Join(cells, " "))))
		sb.WriteString("\n")
	}

	for _, l := range lines {
		sb.WriteString(r.renderLine(l, treeWidth, colWidths))
		sb.WriteString("\n")
	}

	if v.Page.TotalPages > 1 {
		indicator := fmt.Sprintf(" Page %d/%d (%d roots)", v.Page.Index+1, v.Page.TotalPages, v.Page.TotalRoots)
		sb.WriteString(r.theme.footer.Render(indicator))
		sb.WriteString("\n")
	}
	return sb.String()
}

// layout walks the paged forest the same way flattening does: children are
// visited only below expanded records.
func (r *Renderer) layout(roots []*model.Node) []line {
	var out []line
	var walk func(nodes []*model.Node, depth int, indent string)
	walk = func(nodes []*model.Node, depth int, indent string) {
		for i, n := range nodes {
			last := i == len(nodes)-1
			l := line{rec: n.Record, marker: r.marker(n), label: r.label(n.Record)}
			childIndent := indent
			if depth > 0 {
				if last {
					l.prefix = indent + "└── "
					childIndent = indent + "    "
				} else {
					l.prefix = indent + "├── "
					childIndent = indent + "│   "
				}
			}
			out = append(out, l)
			if n.Record.Expanded && len(n.Children) > 0 {
				walk(n.Children, depth+1, childIndent)
			}
		}
	}
	walk(roots, 0, "")
	return out
}

func (r *Renderer) marker(n *model.Node) string {
	var sb strings.Builder
	if r.opts.Selected != nil {
		switch {
		case r.opts.Selected(n.Record.RowID):
			sb.WriteString("[x] ")
		case r.opts.Indeterminate != nil && r.opts.Indeterminate(n.Record.RowID):
			sb.WriteString("[-] ")
		default:
			sb.WriteString("[ ] ")
		}
	}
	switch {
	case len(n.Children) == 0:
		sb.WriteString("• ")
	case n.Record.Expanded:
		sb.WriteString("▾ ")
	default:
		sb.WriteString("▸ ")
	}
	return sb.String()
}

func (r *Renderer) label(rec *model.Record) string {
	if r.opts.LabelKey == "" {
		return model.IDString(rec.RowID)
	}
	return FormatValue(rec.Data[r.opts.LabelKey])
}

func (r *Renderer) columnWidths(lines []line) []int {
	widths := make([]int, len(r.opts.Columns))
	for i, c := range r.opts.Columns {
		widths[i] = runewidth.StringWidth(c)
		for _, l := range lines {
			widths[i] = max(widths[i], runewidth.StringWidth(FormatValue(l.rec.Data[c])))
		}
		widths[i] = min(widths[i], maxColumnWidth)
	}
	return widths
}

func (r *Renderer) renderLine(l line, treeWidth int, colWidths []int) string {
	t := r.theme
	tree := cut(l.prefix+l.marker+l.label, treeWidth)
	pad := strings.Repeat(" ", max(0, treeWidth-runewidth.StringWidth(tree)))

	labelStyle := t.label
	if l.rec.IsFilteredOutParent {
		labelStyle = t.dimmed
	}
	var sb strings.Builder
	if tree == l.prefix+l.marker+l.label {
		sb.WriteString(t.tree.Render(l.prefix))
		sb.WriteString(t.indicator.Render(l.marker))
		sb.WriteString(labelStyle.Render(l.label))
	} else {
		sb.WriteString(labelStyle.Render(tree))
	}
	sb.WriteString(pad)

	used := treeWidth
	for i, c := range r.opts.Columns {
		if used+1+colWidths[i] > r.opts.Width-1 {
			break
		}
		cell := runewidth.FillRight(cut(FormatValue(l.rec.Data[c]), colWidths[i]), colWidths[i])
		sb.WriteString(" ")
		sb.WriteString(t.cell.Render(cell))
		used += 1 + colWidths[i]
	}
	return strings.TrimRight(sb.String(), " ")
}

func (r *Renderer) clamp(s string) string {
	return strings.TrimRight(cut(s, r.opts.Width-1), " ")
}

// cut truncates s to width cells, marking the cut with an ellipsis.
func cut(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

// FormatValue renders a cell value. Integral floats print without a
// fraction; collections print as compact JSON.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprint(x)
	case []any, map[string]any, model.Row, []model.Row:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	default:
		return fmt.Sprint(x)
	}
}
