package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	sdk "blackroad.io/operator/client"
	"blackroad.io/operator/models"
)

var ledgerQuery sdk.LedgerQuery

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the witnessing ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ledger entries in chain order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		entries, err := c.ListLedger(cmd.Context(), ledgerQuery)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), entries, func(w io.Writer) {
			printHeader(w, fmt.Sprintf("Ledger entries (%d)", len(entries)))
			for _, e := range entries {
				fmt.Fprintf(w, "  %6d  %s  %-24s ", e.Seq, e.TaskID, e.Step)
				statusColor(e.Status).Fprintf(w, "%-18s", e.Status)
				dimColor.Fprintf(w, " %s\n", shortHash(e.EntryHash))
			}
		})
	},
}

var ledgerVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the ledger hash chain",
	Long: `Walk the whole hash chain on the server and report the first broken link.

Exits non-zero when the chain does not verify.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		report, verifyErr := c.VerifyLedger(cmd.Context())
		if report == nil {
			return verifyErr
		}
		if err := emit(cmd.OutOrStdout(), report, func(w io.Writer) { printVerification(w, report) }); err != nil {
			return err
		}
		return verifyErr
	},
}

func init() {
	f := ledgerListCmd.Flags()
	f.StringVar(&ledgerQuery.TaskID, "task", "", "Only entries for this task")
	f.Int64Var(&ledgerQuery.After, "after", 0, "Start after this sequence number")
	f.IntVar(&ledgerQuery.Limit, "limit", 0, "Maximum entries (server default when 0)")

	ledgerCmd.AddCommand(ledgerListCmd, ledgerVerifyCmd)
	rootCmd.AddCommand(ledgerCmd)
}

func printVerification(w io.Writer, r *models.LedgerVerification) {
	if r.Valid {
		printOK(w, "ledger verified: %d entries", r.Checked)
		if r.HeadHash != "" {
			fmt.Fprintf(w, "  Head: %s\n", r.HeadHash)
		}
		return
	}
	printFail(w, "ledger broken at seq %d after checking %d entries", r.BrokenAt, r.Checked)
	fmt.Fprintf(w, "  Reason: %s\n", r.Reason)
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
