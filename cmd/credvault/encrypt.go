package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forest6511/credvault/internal/history"
	"github.com/forest6511/credvault/internal/ui"
	"github.com/forest6511/credvault/pkg/batch"
	"github.com/forest6511/credvault/pkg/security"
)

// errOperationFailed is returned after a swallowing vault call reported
// false. The cause has already been logged.
var errOperationFailed = errors.New("operation failed (see log above)")

func init() {
	rootCmd.AddCommand(encryptCmd)
	rootCmd.AddCommand(decryptCmd)
	rootCmd.AddCommand(checkCmd)
}

var encryptCmd = &cobra.Command{
	Use:   "encrypt <input> <output>",
	Short: "Encrypt a JSON credential file into an envelope",
	Long: `Encrypt a JSON credential file into an envelope file.

The password is read from CREDVAULT_PASSWORD (CREDVAULT_WALLET_PASSWORD for
--namespace wallet), or prompted for on a terminal.

Examples:
  credvault encrypt serviceAccountKey.json serviceAccountKey.enc.json
  credvault encrypt --namespace wallet wallet.json wallet.enc.json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := resolveEncryptPassword(cmd)
		if err != nil {
			return err
		}

		sp := ui.StartSpinner(cmd.ErrOrStderr(), "Encrypting...")
		ok := v.EncryptFile(args[0], args[1], password)
		sp.Stop("")

		recordHistory(cmd.Context(), &history.Event{
			Operation: history.OpEncrypt,
			Input:     args[0],
			Output:    args[1],
			Success:   ok,
			Reason:    failedReason(ok),
		})
		if !ok {
			return errOperationFailed
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.OK("Encrypted "+ui.Path.Sprint(args[0])+" -> "+ui.Path.Sprint(args[1])))
		return nil
	},
}

var decryptCmd = &cobra.Command{
	Use:   "decrypt <input> <output>",
	Short: "Decrypt an envelope back into a JSON credential file",
	Long: `Decrypt an envelope file and write the credential document as
indented JSON.

Examples:
  credvault decrypt serviceAccountKey.enc.json serviceAccountKey.json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := resolvePassword(cmd)
		if err != nil {
			return err
		}

		sp := ui.StartSpinner(cmd.ErrOrStderr(), "Decrypting...")
		ok := v.DecryptFile(args[0], args[1], password)
		sp.Stop("")

		recordHistory(cmd.Context(), &history.Event{
			Operation: history.OpDecrypt,
			Input:     args[0],
			Output:    args[1],
			Success:   ok,
			Reason:    failedReason(ok),
		})
		if !ok {
			return errOperationFailed
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.OK("Decrypted "+ui.Path.Sprint(args[0])+" -> "+ui.Path.Sprint(args[1])))
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <envelope>",
	Short: "Verify an envelope decrypts, without writing plaintext",
	Long: `Decrypt an envelope in memory and list the top-level keys of the
credential document. Values are never printed. Useful as a CI step to
confirm the committed envelope matches the build password.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := resolvePassword(cmd)
		if err != nil {
			return err
		}

		doc, err := v.GetDecryptedCredentials(args[0], password)
		recordHistory(cmd.Context(), &history.Event{
			Operation: history.OpCheck,
			Input:     args[0],
			Success:   err == nil,
			Reason:    batch.ReasonOf(err),
		})
		if err != nil {
			return fmt.Errorf("check failed: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, ui.OK(fmt.Sprintf("%s decrypts (%d keys)", ui.Path.Sprint(args[0]), len(doc))))
		for _, key := range doc.Keys() {
			if security.IsSensitiveKey(key) {
				fmt.Fprintf(out, "  %s %s\n", key, ui.Muted.Sprint("sensitive"))
			} else {
				fmt.Fprintf(out, "  %s\n", key)
			}
		}
		return nil
	},
}

func failedReason(ok bool) string {
	if ok {
		return ""
	}
	return batch.ReasonFailed
}
