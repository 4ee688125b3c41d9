// Package output renders command results for terminals and pipes.
package output

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Styles holds the lipgloss styles used by command output.
type Styles struct {
	Header  lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Muted   lipgloss.Style
}

// NewStyles builds the styles for one renderer.
func NewStyles(r *lipgloss.Renderer) *Styles {
	return &Styles{
		Header:  r.NewStyle().Bold(true),
		Success: r.NewStyle().Foreground(lipgloss.Color("2")),
		Error:   r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		Warning: r.NewStyle().Foreground(lipgloss.Color("3")),
		Muted:   r.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// Renderer writes styled output. Colour is only used when out is a
// terminal.
type Renderer struct {
	out    io.Writer
	err    io.Writer
	tty    bool
	Styles *Styles
}

// NewRenderer creates a renderer for out and errOut.
func NewRenderer(out, errOut io.Writer) *Renderer {
	tty := IsTerminal(out)
	profile := termenv.Ascii
	if tty {
		profile = termenv.EnvColorProfile()
	}
	lr := lipgloss.NewRenderer(out, termenv.WithProfile(profile))
	return &Renderer{out: out, err: errOut, tty: tty, Styles: NewStyles(lr)}
}

// IsTerminal reports whether w is a terminal file descriptor.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}

// Out returns the standard output writer.
func (r *Renderer) Out() io.Writer { return r.out }

// Err returns the diagnostics writer.
func (r *Renderer) Err() io.Writer { return r.err }

// TTY reports whether output goes to a terminal.
func (r *Renderer) TTY() bool { return r.tty }

// Table returns a table writer that renders to Out.
func (r *Renderer) Table() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	if r.tty {
		t.SetStyle(table.StyleLight)
	} else {
		t.SetStyle(table.StyleDefault)
	}
	return t
}

// Status styles a status word by its meaning.
func (r *Renderer) Status(status string) string {
	switch status {
	case "success", "completed", "unchanged":
		return r.Styles.Success.Render(status)
	case "failed", "error", "removed":
		return r.Styles.Error.Render(status)
	case "skipped", "cancelled", "new", "changed-config", "changed-content":
		return r.Styles.Warning.Render(status)
	default:
		return status
	}
}
