// Package tui prints assistant replies and the banner in the chat REPL.
package tui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Printer writes replies to out, rendering markdown when out is a terminal.
type Printer struct {
	out    io.Writer
	render func(string) (string, error)
}

// NewPrinter returns a Printer for out. Markdown rendering is enabled when
// out is an *os.File attached to a terminal.
func NewPrinter(out io.Writer) *Printer {
	p := &Printer{out: out}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		width := 80
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 20 {
			width = w - 4
		}
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width))
		if err == nil {
			p.render = r.Render
		}
	}
	return p
}

// Reply prints an assistant reply. Rendering errors fall back to the raw
// text.
func (p *Printer) Reply(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if p.render != nil {
		if out, err := p.render(text); err == nil {
			fmt.Fprint(p.out, out)
			return
		}
	}
	fmt.Fprintf(p.out, "%s\n\n", text)
}

// Notice prints a dimmed status line.
func (p *Printer) Notice(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if p.render != nil {
		msg = termenv.String(msg).Faint().String()
	}
	fmt.Fprintln(p.out, msg)
}

// Banner prints the program banner in the terminal's color profile.
func (p *Printer) Banner(workflow string) {
	profile := termenv.Ascii
	if p.render != nil {
		profile = termenv.ColorProfile()
	}
	lines := []struct {
		text  string
		color string
	}{
		{"     _                  __ _", "#38bdf8"},
		{" ___| |__   ___  _ __  / _| | _____      __", "#60a5fa"},
		{"/ __| '_ \\ / _ \\| '_ \\| |_| |/ _ \\ \\ /\\ / /", "#818cf8"},
		{"\\__ \\ | | | (_) | |_) |  _| | (_) \\ V  V /", "#a78bfa"},
		{"|___/_| |_|\\___/| .__/|_| |_|\\___/ \\_/\\_/", "#c084fc"},
		{"                |_|", "#e879f9"},
	}
	fmt.Fprintln(p.out)
	for _, l := range lines {
		fmt.Fprintln(p.out, termenv.String(l.text).Foreground(profile.Color(l.color)))
	}
	fmt.Fprintf(p.out, "\nworkflow: %s  (type \"help\" for commands)\n\n", workflow)
}

// Prompt prints the input prompt.
func (p *Printer) Prompt() {
	fmt.Fprint(p.out, "> ")
}
