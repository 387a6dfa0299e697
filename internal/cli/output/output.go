// Package output renders CLI results for terminals, markdown consumers and
// scripts.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// OutputMode selects how results are rendered.
type OutputMode string

const (
	// ModeAuto renders text on a TTY and markdown otherwise.
	ModeAuto     OutputMode = "auto"
	ModeText     OutputMode = "text"
	ModeMarkdown OutputMode = "markdown"
	ModeJSON     OutputMode = "json"
)

// Mode parses a configured output format. Unknown values are ModeAuto.
func Mode(s string) OutputMode {
	switch strings.ToLower(s) {
	case "text":
		return ModeText
	case "markdown", "md":
		return ModeMarkdown
	case "json":
		return ModeJSON
	default:
		return ModeAuto
	}
}

type styles struct {
	header  lipgloss.Style
	key     lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	err     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		header:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")),
		key:     r.NewStyle().Foreground(lipgloss.Color("#6B7280")),
		muted:   r.NewStyle().Foreground(lipgloss.Color("#6B7280")).Italic(true),
		success: r.NewStyle().Foreground(lipgloss.Color("#10B981")),
		warning: r.NewStyle().Foreground(lipgloss.Color("#F59E0B")),
		err:     r.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true),
	}
}

// Renderer writes formatted output.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	isTTY  bool
	mode   OutputMode
	styles styles
}

// NewRenderer creates a renderer, detecting whether out is a terminal.
func NewRenderer(out, errOut io.Writer, mode OutputMode) *Renderer {
	return NewRendererWithTTY(out, errOut, IsTerminal(out), mode)
}

// NewRendererWithTTY creates a renderer with an explicit TTY state.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode OutputMode) *Renderer {
	return &Renderer{
		out:    out,
		errOut: errOut,
		isTTY:  isTTY,
		mode:   mode,
		styles: newStyles(lipgloss.NewRenderer(out)),
	}
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w any) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // file descriptors fit in int
}

// Out is the result writer.
func (r *Renderer) Out() io.Writer { return r.out }

// ErrOut is the diagnostics writer.
func (r *Renderer) ErrOut() io.Writer { return r.errOut }

// IsTTY reports whether output goes to a terminal.
func (r *Renderer) IsTTY() bool { return r.isTTY }

// EffectiveMode resolves ModeAuto against the TTY state.
func (r *Renderer) EffectiveMode() OutputMode {
	if r.mode != ModeAuto && r.mode != "" {
		return r.mode
	}
	if r.isTTY {
		return ModeText
	}
	return ModeMarkdown
}

func (r *Renderer) style(s lipgloss.Style, text string) string {
	if !r.isTTY {
		return text
	}
	return s.Render(text)
}

// Header writes a section title.
func (r *Renderer) Header(title string) {
	if r.EffectiveMode() == ModeMarkdown {
		_, _ = fmt.Fprintf(r.out, "## %s\n\n", title)
		return
	}
	_, _ = fmt.Fprintln(r.out, r.style(r.styles.header, title))
}

// KeyValue writes an indented "key: value" line.
func (r *Renderer) KeyValue(key string, value any) {
	if r.EffectiveMode() == ModeMarkdown {
		_, _ = fmt.Fprintf(r.out, "- **%s:** %v\n", key, value)
		return
	}
	_, _ = fmt.Fprintf(r.out, "  %s %v\n", r.style(r.styles.key, key+":"), value)
}

// Println writes a plain line.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.out, a...)
}

// Muted writes a de-emphasized line.
func (r *Renderer) Muted(msg string) {
	_, _ = fmt.Fprintln(r.out, r.style(r.styles.muted, msg))
}

// Success writes a success line.
func (r *Renderer) Success(msg string) {
	_, _ = fmt.Fprintln(r.out, r.style(r.styles.success, "✓ "+msg))
}

// Warning writes a warning to the diagnostics writer.
func (r *Renderer) Warning(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.style(r.styles.warning, "warning: "+msg))
}

// Error writes an error to the diagnostics writer.
func (r *Renderer) Error(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.style(r.styles.err, "error: "+msg))
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
