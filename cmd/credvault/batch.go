package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/forest6511/credvault/internal/cli"
	"github.com/forest6511/credvault/internal/history"
	"github.com/forest6511/credvault/internal/ui"
	"github.com/forest6511/credvault/pkg/batch"
)

var (
	batchBase string
	batchOnly []string
)

func init() {
	rootCmd.AddCommand(encryptAllCmd)
	rootCmd.AddCommand(decryptAllCmd)
	rootCmd.AddCommand(statusCmd)

	for _, c := range []*cobra.Command{encryptAllCmd, decryptAllCmd, statusCmd} {
		c.Flags().StringVar(&batchBase, "base", ".", "Base directory the target paths are relative to")
		c.Flags().StringSliceVar(&batchOnly, "only", nil, "Limit to targets whose name matches (glob, repeatable)")
	}
}

var encryptAllCmd = &cobra.Command{
	Use:   "encrypt-all",
	Short: "Encrypt every configured target",
	Long: `Encrypt the plaintext credential file of every configured target.
Targets whose source is missing are reported as not_found; the remaining
targets are still processed. Exits non-zero unless every target succeeded.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := resolveEncryptPassword(cmd)
		if err != nil {
			return err
		}
		b, err := selectedBatch()
		if err != nil {
			return err
		}
		return finishBatch(cmd, history.OpEncryptAll, b.EncryptAll(batchBase, password))
	},
}

var decryptAllCmd = &cobra.Command{
	Use:   "decrypt-all",
	Short: "Decrypt every configured target",
	Long: `Decrypt the envelope of every configured target back into its
plaintext location. Missing envelopes are reported as not_found.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := resolvePassword(cmd)
		if err != nil {
			return err
		}
		b, err := selectedBatch()
		if err != nil {
			return err
		}
		return finishBatch(cmd, history.OpDecryptAll, b.DecryptAll(batchBase, password))
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which target files exist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := selectedBatch()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, st := range b.Status(batchBase) {
			fmt.Fprintf(out, "%s\n", ui.Highlight.Sprint(st.Target))
			fmt.Fprintf(out, "  plaintext  %s %s\n", presence(st.PlaintextExists), st.PlaintextPath)
			fmt.Fprintf(out, "  encrypted  %s %s\n", presence(st.EncryptedExists), st.EncryptedPath)
		}
		return nil
	},
}

// selectedBatch builds a batch over the configured targets filtered by --only.
func selectedBatch() (*batch.Batch, error) {
	targets, err := cli.SelectTargets(batchOnly, batch.New(v, cfg.Targets).Targets())
	if err != nil {
		return nil, err
	}
	return batch.New(v, targets), nil
}

func presence(ok bool) string {
	if ok {
		return ui.Success.Sprint("✓")
	}
	return ui.Error.Sprint("✗")
}

func finishBatch(cmd *cobra.Command, op string, report *batch.Report) error {
	for _, r := range report.Results {
		recordHistory(cmd.Context(), &history.Event{
			Operation: op,
			Target:    r.Target,
			Input:     r.Path,
			Success:   r.Success,
			Reason:    r.Reason,
		})
	}

	printReport(cmd.OutOrStdout(), report)
	if !report.OK() {
		return fmt.Errorf("%s targets succeeded", report)
	}
	return nil
}

func printReport(w io.Writer, report *batch.Report) {
	for _, r := range report.Results {
		name := ui.Highlight.Sprint(r.Target)
		if r.Success {
			fmt.Fprintln(w, ui.OK(name+" "+r.Path))
		} else {
			fmt.Fprintln(w, ui.Fail(name+" "+r.Path+" "+ui.Muted.Sprint(r.Reason)))
		}
	}
	fmt.Fprintf(w, "%s targets succeeded\n", report)
}
