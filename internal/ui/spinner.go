package ui

import (
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"golang.org/x/term"
)

// Spinner shows progress during slow steps such as key derivation. It is
// inert when the writer is not a terminal.
type Spinner struct {
	s *spinner.Spinner
}

// StartSpinner starts a spinner with message on w.
func StartSpinner(w io.Writer, message string) *Spinner {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return &Spinner{}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " " + message
	_ = s.Color("cyan")
	s.Start()
	return &Spinner{s: s}
}

// Stop stops the spinner and prints final, if non-empty, in its place.
func (sp *Spinner) Stop(final string) {
	if sp.s == nil {
		return
	}
	if final != "" {
		sp.s.FinalMSG = final + "\n"
	}
	sp.s.Stop()
}

// Active reports whether the spinner is drawing.
func (sp *Spinner) Active() bool {
	return sp.s != nil
}
