package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/config"
	"github.com/kozaktomas/attendance-kiosk/internal/engine"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List and create attendance sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List live and expired sessions",
	Long: `Retrieves the session list from the attendance service and shows it split
into live or upcoming sessions and expired ones. The status is recomputed
from the start time and duration.`,
	RunE: runSessionsList,
}

var sessionsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new attendance session",
	Long: `Create a new attendance session.

Example:
  attendance-kiosk sessions create --dept CSE --sem 3 --subject CS201 \
    --course "Data Structures" --start "2026-03-02 09:00" --duration 50`,
	RunE: runSessionsCreate,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsCreateCmd)

	sessionsListCmd.Flags().Bool("all", false, "Include expired sessions")

	sessionsCreateCmd.Flags().String("dept", "", "Department")
	sessionsCreateCmd.Flags().String("sem", "", "Semester")
	sessionsCreateCmd.Flags().String("subject", "", "Subject code")
	sessionsCreateCmd.Flags().String("course", "", "Course name")
	sessionsCreateCmd.Flags().String("start", "", "Start time as YYYY-MM-DD HH:MM (default now)")
	sessionsCreateCmd.Flags().Int("duration", 60, "Duration in minutes")
}

func printSessions(w *tabwriter.Writer, sessions []engine.Session, now time.Time, loc *time.Location) {
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s/%s\t%s\t%s\t%s\n",
			s.ID, s.Subject, s.CourseName, s.Dept, s.Sem,
			s.StartTime.In(loc).Format("2006-01-02 15:04"), formatDuration(s.Duration), s.StatusAt(now))
	}
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	showAll := mustGetBool(cmd, "all")

	client, loc, err := newAttendanceClient(cfg)
	if err != nil {
		return err
	}

	sessions, err := client.ListSessions(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	now := time.Now()
	active, expired := engine.PartitionSessions(sessions, now)
	if len(active) == 0 && (!showAll || len(expired) == 0) {
		fmt.Println("No sessions found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSUBJECT\tCOURSE\tDEPT/SEM\tSTART\tDURATION\tSTATUS")
	fmt.Fprintln(w, "--\t-------\t------\t--------\t-----\t--------\t------")
	printSessions(w, active, now, loc)
	if showAll {
		printSessions(w, expired, now, loc)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d active, %d expired\n", len(active), len(expired))
	return nil
}

func runSessionsCreate(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	client, loc, err := newAttendanceClient(cfg)
	if err != nil {
		return err
	}

	start := time.Now().In(loc).Truncate(time.Minute)
	if s := mustGetString(cmd, "start"); s != "" {
		start, err = time.ParseInLocation("2006-01-02 15:04", s, loc)
		if err != nil {
			return fmt.Errorf("invalid --start %q: %w", s, err)
		}
	}

	req := engine.NewSession{
		Dept:            mustGetString(cmd, "dept"),
		Sem:             mustGetString(cmd, "sem"),
		Subject:         mustGetString(cmd, "subject"),
		CourseName:      mustGetString(cmd, "course"),
		StartTime:       start,
		DurationMinutes: mustGetInt(cmd, "duration"),
	}

	session, err := client.CreateSession(context.Background(), req)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	fmt.Printf("Created session: %s (%s)\n", session.Subject, session.CourseName)
	fmt.Printf("ID: %s\n", session.ID)
	fmt.Printf("Runs: %s - %s\n", session.StartTime.In(loc).Format("2006-01-02 15:04"), session.EndTime().In(loc).Format("15:04"))

	return nil
}
