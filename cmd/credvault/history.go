package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/forest6511/credvault/internal/history"
	"github.com/forest6511/credvault/internal/ui"
)

var (
	historyOp    string
	historyLimit int
	historySince string

	pruneOlderThan string
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyPruneCmd)

	historyCmd.Flags().StringVar(&historyOp, "op", "", "Filter by operation (e.g. encrypt, decrypt_all, fragment.create)")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", history.DefaultListLimit, "Maximum number of events to show")
	historyCmd.Flags().StringVar(&historySince, "since", "", "Only show events newer than this age (e.g. 24h, 7d)")

	historyPruneCmd.Flags().StringVar(&pruneOlderThan, "older-than", "90d", "Delete events older than this age (e.g. 30d, 12h)")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded vault operations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := history.Filter{Operation: historyOp, Limit: historyLimit}
		if historySince != "" {
			age, err := parseAge(historySince)
			if err != nil {
				return err
			}
			filter.Since = time.Now().Add(-age)
		}

		store, err := history.Open(cmd.Context(), cfg.HistoryPath)
		if err != nil {
			return err
		}
		defer store.Close()

		events, err := store.List(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No history recorded.")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tOPERATION\tSOURCE\tTARGET\tINPUT\tRESULT")
		for _, e := range events {
			result := ui.Success.Sprint("ok")
			if !e.Success {
				result = ui.Error.Sprint(e.Reason)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Operation, e.Source,
				dash(e.Target), dash(e.Input), result)
		}
		return tw.Flush()
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old history events",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		age, err := parseAge(pruneOlderThan)
		if err != nil {
			return err
		}

		store, err := history.Open(cmd.Context(), cfg.HistoryPath)
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := store.Prune(cmd.Context(), time.Now().Add(-age))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.OK(fmt.Sprintf("Deleted %d events", n)))
		return nil
	},
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// parseAge parses a Go duration or a whole number of days ("7d").
func parseAge(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid age %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid age %q", s)
	}
	return d, nil
}
