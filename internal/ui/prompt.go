package ui

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/forest6511/credvault/internal/config"
)

// PasswordPrompter returns a config.Prompter that reads a password from in
// without echo, writing the label to out. When in is not a terminal it
// reports config.ErrNoPassword so callers fall through to other sources.
func PasswordPrompter(in *os.File, out io.Writer) config.Prompter {
	return func(label string) (string, error) {
		fd := int(in.Fd())
		if !term.IsTerminal(fd) {
			return "", config.ErrNoPassword
		}
		fmt.Fprint(out, label)
		pw, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(pw), nil
	}
}
