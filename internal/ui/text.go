// Package ui holds the terminal presentation helpers shared by the CLI
// commands: colored status text, spinners and password prompts.
package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

// Formatter applies semantic formatting to text.
type Formatter struct {
	color  *color.Color
	prefix string
	suffix string
}

// Sprint formats the arguments and returns the resulting string.
func (f Formatter) Sprint(a ...any) string {
	text := fmt.Sprint(a...)
	if noColor() {
		return f.prefix + text + f.suffix
	}
	return f.color.Sprint(text)
}

// Sprintf formats according to a format specifier.
func (f Formatter) Sprintf(format string, a ...any) string {
	return f.Sprint(fmt.Sprintf(format, a...))
}

func noColor() bool {
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return true
	}
	return color.NoColor
}

var (
	// Path formats file paths and fragment locations.
	Path = Formatter{color.New(color.FgYellow), "", ""}

	// Success formats success markers.
	Success = Formatter{color.New(color.FgGreen), "", ""}

	// Error formats failure markers.
	Error = Formatter{color.New(color.FgRed), "", ""}

	// Warning formats warnings. Yellow with color, unchanged without.
	Warning = Formatter{color.New(color.FgYellow), "", ""}

	// Highlight formats target names and namespaces.
	Highlight = Formatter{color.New(color.FgCyan), "'", "'"}

	// Muted formats secondary detail such as failure reasons.
	Muted = Formatter{color.New(color.FgHiBlack), "(", ")"}
)

// Status lines
func OK(msg string) string   { return Success.Sprint("✓") + " " + msg }
func Fail(msg string) string { return Error.Sprint("✗") + " " + msg }
func Warn(msg string) string { return Warning.Sprint("⚠") + " " + msg }
