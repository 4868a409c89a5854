// Package fmt provides functions for formatting and printing CLI output.
package fmt

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/mwopitz/anylist-daemon/internal/rpc"
	"github.com/mwopitz/anylist-daemon/internal/todo"
)

// Printer pretty-prints CLI output. Styles only apply when the writer is a
// terminal.
type Printer struct {
	w         io.Writer
	title     lipgloss.Style
	checked   lipgloss.Style
	unchecked lipgloss.Style
	muted     lipgloss.Style
	warn      lipgloss.Style
}

// NewPrinter creates a printer that writes to w.
func NewPrinter(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:         w,
		title:     r.NewStyle().Bold(true),
		checked:   r.NewStyle().Foreground(lipgloss.Color("8")).Strikethrough(true),
		unchecked: r.NewStyle(),
		muted:     r.NewStyle().Foreground(lipgloss.Color("8")),
		warn:      r.NewStyle().Foreground(lipgloss.Color("3")),
	}
}

// PrintItems prints item names with a check box.
func (p *Printer) PrintItems(names []string, checked bool) error {
	box, style := "[ ]", p.unchecked
	if checked {
		box, style = "[✓]", p.checked
	}
	for _, name := range names {
		if _, err := fmt.Fprintf(p.w, "%s %s\n", box, style.Render(name)); err != nil {
			return err
		}
	}
	return nil
}

// PrintAllItems prints the unchecked items followed by the checked items.
func (p *Printer) PrintAllItems(unchecked, checked []string) error {
	if err := p.PrintItems(unchecked, false); err != nil {
		return err
	}
	return p.PrintItems(checked, true)
}

// PrintEntities prints one line per to-do list entity.
func (p *Printer) PrintEntities(states []*todo.State) error {
	for _, s := range states {
		count := p.muted.Render("no data")
		if s.State != nil {
			count = fmt.Sprintf("%d to do", *s.State)
		}
		line := fmt.Sprintf("%s %s %s", p.title.Render(s.Name), p.muted.Render("("+s.EntityID+")"), count)
		if !s.Available {
			line += " " + p.warn.Render("unavailable")
		}
		if _, err := fmt.Fprintln(p.w, line); err != nil {
			return err
		}
	}
	return nil
}

// PrintStatus prints the server status.
func (p *Printer) PrintStatus(st *rpc.Status) error {
	lines := []string{
		fmt.Sprintf("%s %s", p.title.Render("AnyList Daemon"), st.Version),
		fmt.Sprintf("pid:      %d", st.Process.PID),
		fmt.Sprintf("api:      %s", st.APIBaseURL),
	}
	switch {
	case st.ServerError != "":
		lines = append(lines, "server:   "+p.warn.Render(st.ServerError))
	case st.ServerAddr != "":
		lines = append(lines, "server:   "+st.ServerAddr)
	}
	if b := st.BinaryServer; b != nil {
		state := p.warn.Render("stopped")
		if b.Running {
			state = fmt.Sprintf("running (pid %d)", b.PID)
		}
		lines = append(lines, "binary:   "+state)
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(p.w, line); err != nil {
			return err
		}
	}
	return nil
}

// Strings converts a decoded JSON array to strings, skipping other values.
func Strings(v any) []string {
	values, _ := v.([]any)
	out := make([]string, 0, len(values))
	for _, value := range values {
		if s, ok := value.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
