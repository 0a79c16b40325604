package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/kozaktomas/attendance-kiosk/internal/config"
	"github.com/kozaktomas/attendance-kiosk/internal/records"
	"github.com/spf13/cobra"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger <session-id>",
	Short: "Show the marks kept in the local ledger",
	Long: `Lists the attendance marks this kiosk copied into its local PostgreSQL
ledger for a session. Requires LEDGER_DATABASE_URL.`,
	Args: cobra.ExactArgs(1),
	RunE: runLedger,
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
}

func runLedger(cmd *cobra.Command, args []string) error {
	sessionID := args[0]
	cfg := config.Load()
	ctx := context.Background()

	ledger, closeLedger, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLedger()

	count, err := ledger.CountMarks(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to count marks: %w", err)
	}
	if count == 0 {
		fmt.Printf("No marks recorded for session %s.\n", sessionID)
		return nil
	}

	marks, err := ledger.ListMarks(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to list marks: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROLL NO\tNAME\tFIRST MARKED\tLAST MARKED\tMARKS\tCONFIDENCE")
	fmt.Fprintln(w, "-------\t----\t------------\t-----------\t-----\t----------")
	for _, m := range marks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			m.StudentID, m.StudentName, m.FirstMarked.Format("15:04:05"), m.LastMarked.Format("15:04:05"),
			m.Marks, records.FormatConfidence(m.Confidence))
	}
	w.Flush()

	fmt.Printf("\nTotal: %d students\n", count)
	return nil
}
