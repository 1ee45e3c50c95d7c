package diag

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Reporter renders Diagnostics as Rust-style terminal output: a bold
// header line naming the kind, a location line, and (when source text is
// available) a context line with a caret under the offending span.
type Reporter struct {
	filename string
	lines    []string
}

func NewReporter(filename, source string) *Reporter {
	return &Reporter{filename: filename, lines: strings.Split(source, "\n")}
}

func (r *Reporter) Format(d Diagnostic) string {
	bold := color.New(color.Bold).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()

	level := "error"
	levelColor := color.New(color.FgRed, color.Bold).SprintFunc()
	if d.Warning {
		level = "warning"
		levelColor = color.New(color.FgYellow, color.Bold).SprintFunc()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", levelColor(level), bold(d.Message()))
	fmt.Fprintf(&b, "  %s %s\n", faint("-->"), d.Pos.String())

	line := d.Pos.Line - 1
	if line >= 0 && line < len(r.lines) {
		fmt.Fprintf(&b, "%s %s\n", faint(fmt.Sprintf("%4d |", d.Pos.Line)), r.lines[line])
		marker := strings.Repeat(" ", max(0, d.Pos.Column-1)) + "^"
		fmt.Fprintf(&b, "     %s %s\n", faint("|"), marker)
	}
	return b.String()
}

// Report writes every diagnostic in b to w, errors before warnings, in the
// order Kanso's CLI prints its own diagnostic list.
func (r *Reporter) Report(w io.Writer, b *Bus) {
	for _, d := range b.Errors() {
		fmt.Fprint(w, r.Format(d))
	}
	for _, d := range b.Warnings() {
		fmt.Fprint(w, r.Format(d))
	}
}
