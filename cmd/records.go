package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/config"
	"github.com/kozaktomas/attendance-kiosk/internal/records"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Preview and export attendance records",
}

var recordsPreviewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show attendance records for a date range",
	Long: `Retrieves the attendance records for the range and filters them by
department, semester and student name.

Example:
  attendance-kiosk records preview --range week --dept CSE --name rao`,
	RunE: runRecordsPreview,
}

var recordsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Download attendance records as CSV",
	Long: `Downloads the CSV export from the attendance service.

Example:
  attendance-kiosk records export --range month --dept CSE -o cse_march.csv`,
	RunE: runRecordsExport,
}

func init() {
	rootCmd.AddCommand(recordsCmd)
	recordsCmd.AddCommand(recordsPreviewCmd)
	recordsCmd.AddCommand(recordsExportCmd)

	for _, c := range []*cobra.Command{recordsPreviewCmd, recordsExportCmd} {
		c.Flags().String("range", "", "Date range: today, week, month or year (default today)")
		c.Flags().String("dept", "", "Filter by department")
		c.Flags().String("sem", "", "Filter by semester")
		c.Flags().String("name", "", "Filter by student name")
	}
	recordsExportCmd.Flags().StringP("output", "o", "", "Output file (default attendance_<range>_<date>.csv)")
}

func filterFromFlags(cmd *cobra.Command) (records.Filter, error) {
	rng, err := records.ParseRange(mustGetString(cmd, "range"))
	if err != nil {
		return records.Filter{}, err
	}
	return records.Filter{
		Dept:  mustGetString(cmd, "dept"),
		Sem:   mustGetString(cmd, "sem"),
		Name:  mustGetString(cmd, "name"),
		Range: rng,
	}, nil
}

func runRecordsPreview(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	filter, err := filterFromFlags(cmd)
	if err != nil {
		return err
	}
	client, loc, err := newAttendanceClient(cfg)
	if err != nil {
		return err
	}

	recs, err := client.PreviewRecords(context.Background(), filter.Range)
	if err != nil {
		return fmt.Errorf("failed to get records: %w", err)
	}
	matched := filter.Apply(recs)

	if len(matched) == 0 {
		fmt.Println("No records found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tIN TIME\tDEPT/SEM\tSUBJECT\tROLL NO\tNAME\tCONFIDENCE")
	fmt.Fprintln(w, "----\t-------\t--------\t-------\t-------\t----\t----------")
	for _, r := range matched {
		inTime := ""
		if !r.InTime.IsZero() {
			inTime = r.InTime.In(loc).Format("15:04:05")
		}
		fmt.Fprintf(w, "%s\t%s\t%s/%s\t%s\t%s\t%s\t%s\n",
			r.Date, inTime, r.Dept, r.Sem, r.Subject, r.StudentID, r.StudentName, records.FormatConfidence(r.Confidence))
	}
	w.Flush()

	fmt.Printf("\nTotal: %d of %d records (%s)\n", len(matched), len(recs), filter.Range)
	return nil
}

func runRecordsExport(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	filter, err := filterFromFlags(cmd)
	if err != nil {
		return err
	}
	output := mustGetString(cmd, "output")
	if output == "" {
		output = fmt.Sprintf("attendance_%s_%s.csv", filter.Range, time.Now().Format("20060102"))
	}

	client, _, err := newAttendanceClient(cfg)
	if err != nil {
		return err
	}

	body, size, err := client.OpenExport(context.Background(), filter)
	if err != nil {
		return fmt.Errorf("failed to export records: %w", err)
	}
	defer body.Close()

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", output, err)
	}
	defer f.Close()

	if size <= 0 {
		size = -1
	}
	bar := progressbar.DefaultBytes(size, "Exporting")
	if _, err := io.Copy(io.MultiWriter(f, bar), body); err != nil {
		return fmt.Errorf("failed to download export: %w", err)
	}
	_ = bar.Finish()

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to reread %s: %w", output, err)
	}
	rows, err := records.CountRows(f)
	if err != nil {
		return fmt.Errorf("export is not a valid attendance CSV: %w", err)
	}

	fmt.Printf("Exported %d records to %s\n", rows, output)
	return nil
}
