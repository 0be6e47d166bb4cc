// Command credvault encrypts credential files into portable envelopes and
// manages fragmented backups of them.
package main

import (
	"fmt"
	"os"

	"github.com/forest6511/credvault/internal/ui"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.Fail(err.Error()))
		os.Exit(1)
	}
}
