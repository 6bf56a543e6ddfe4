package report

// terminal.go: the message dump printed at the end of a validation.
//
// Layout:
//   header centered to Width
//   ------ Messages: ------   one "LABEL: text" line per diagnostic
//   ------ Summary: -------   summary lines
//
// Styling is applied only to the severity label and the summary lines, so a
// plain Terminal prints exactly the same characters minus escape codes.

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"cocovalidate/internal/diag"
)

// Width is the column count headers and rules are centered in.
const Width = 100

var (
	colorCritical = lipgloss.Color("#C0392B")
	colorError    = lipgloss.Color("#E74C3C")
	colorWarning  = lipgloss.Color("#F4D03F")
	colorNote     = lipgloss.Color("#20B9B4")
	colorSuccess  = lipgloss.Color("#2CD7C7")
	colorMuted    = lipgloss.Color("#2C4A54")
)

// severityStyles color the label of each diagnostic line.
var severityStyles = map[diag.Severity]lipgloss.Style{
	diag.SeverityCritical: lipgloss.NewStyle().Bold(true).Foreground(colorCritical),
	diag.SeverityError:    lipgloss.NewStyle().Bold(true).Foreground(colorError),
	diag.SeverityWarning:  lipgloss.NewStyle().Foreground(colorWarning),
	diag.SeverityNote:     lipgloss.NewStyle().Foreground(colorNote),
}

var (
	ruleStyle    = lipgloss.NewStyle().Foreground(colorMuted)
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(colorSuccess)
	failureStyle = lipgloss.NewStyle().Bold(true).Foreground(colorError)
)

// Terminal writes the user-facing dump.
type Terminal struct {
	out    io.Writer
	styled bool
}

// NewTerminal returns a Terminal writing to out. styled enables colors and
// should only be set when out is a terminal.
func NewTerminal(out io.Writer, styled bool) *Terminal {
	return &Terminal{out: out, styled: styled}
}

func (t *Terminal) render(s lipgloss.Style, text string) string {
	if !t.styled {
		return text
	}
	return s.Render(text)
}

// Header prints the program banner.
func (t *Terminal) Header(version string) {
	fmt.Fprintln(t.out, Center(fmt.Sprintf("cocovalidate (v%s) - dataset validation utility", version), Width, ' '))
}

// Println prints one plain line.
func (t *Terminal) Println(line string) {
	fmt.Fprintln(t.out, line)
}

// Messages prints the diagnostics block.
func (t *Terminal) Messages(list diag.List) {
	t.rule("Messages:")
	for _, d := range list {
		label := d.Severity.Label()
		if s, ok := severityStyles[d.Severity]; ok {
			label = t.render(s, label)
		}
		fmt.Fprintf(t.out, "%s: %s\n", label, d.Text)
	}
}

// SummaryRule prints the rule that opens the summary block.
func (t *Terminal) SummaryRule() {
	t.rule("Summary:")
}

// Success prints a line in the success style.
func (t *Terminal) Success(line string) {
	fmt.Fprintln(t.out, t.render(successStyle, line))
}

// Failure prints a line in the failure style.
func (t *Terminal) Failure(line string) {
	fmt.Fprintln(t.out, t.render(failureStyle, line))
}

func (t *Terminal) rule(title string) {
	fmt.Fprintln(t.out)
	fmt.Fprintln(t.out, t.render(ruleStyle, Center(" "+title+" ", Width, '-')))
}

// Center pads s with fill on both sides to width runes. An odd amount of
// padding puts the extra rune on the right. s is returned unchanged when it
// is already at least width runes long.
func Center(s string, width int, fill rune) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	pad := width - n
	left := pad / 2
	f := string(fill)
	return strings.Repeat(f, left) + s + strings.Repeat(f, pad-left)
}
