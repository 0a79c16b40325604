package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/config"
	"github.com/kozaktomas/attendance-kiosk/internal/engine"
	"github.com/kozaktomas/attendance-kiosk/internal/records"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var captureCmd = &cobra.Command{
	Use:   "capture <session-id>",
	Short: "Capture attendance for a live session",
	Long: `Join a live session and capture attendance from the camera.

In manual mode every Enter takes a snapshot; a recognized student is shown
for confirmation before attendance is recorded. In continuous mode snapshots
are taken on a fixed interval and every recognized student is added to the
present list until Ctrl+C or --for elapses.

Example:
  attendance-kiosk capture 42
  attendance-kiosk capture 42 --mode continuous --for 45m --csv present.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().String("mode", "", "Capture mode: manual or continuous (default from CAPTURE_MODE)")
	captureCmd.Flags().Duration("for", 0, "Stop continuous capture after this long (default: until Ctrl+C)")
	captureCmd.Flags().String("csv", "", "Write the present list to this CSV file when capture stops")
}

func runCapture(cmd *cobra.Command, args []string) error {
	sessionID := args[0]
	cfg := config.Load()

	modeName := mustGetString(cmd, "mode")
	if modeName == "" {
		modeName = cfg.Capture.Mode
	}
	mode, err := engine.ParseMode(modeName)
	if err != nil {
		return err
	}
	duration := mustGetDuration(cmd, "for")
	csvPath := mustGetString(cmd, "csv")

	client, loc, err := newAttendanceClient(cfg)
	if err != nil {
		return err
	}
	source, err := newCaptureSource(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recorder, closeRecorder, err := newRecorder(ctx, cfg, client)
	if err != nil {
		return err
	}
	defer closeRecorder()

	controller := newController(cfg, mode, source, client, recorder)
	if err := controller.Browser().Refresh(ctx); err != nil {
		return fmt.Errorf("failed to load sessions: %w", err)
	}

	// Subscribe before joining so the first cycles are not missed.
	events := controller.Events().AddListener()
	defer controller.Events().RemoveListener(events)

	if err := controller.JoinByID(ctx, sessionID); err != nil {
		return fmt.Errorf("cannot join session %s: %w", sessionID, err)
	}
	st := controller.Snapshot()
	fmt.Printf("Joined %s (%s) in %s mode\n", st.Session.Subject, st.Session.CourseName, mode)

	if mode == engine.ModeContinuous {
		runContinuousCapture(ctx, controller, events, duration)
	} else {
		runManualCapture(ctx, controller, os.Stdin, os.Stdout)
	}

	// Stop with a fresh context: the interrupt must not cancel the final recording.
	summary, stopErr := controller.Stop(context.Background())
	// The snapshot keeps the per-student recording state until the next join.
	present := controller.Snapshot().Present
	controller.Close(context.Background())

	printSummary(summary, present)

	if csvPath != "" {
		if err := writePresentCSV(csvPath, summary, loc); err != nil {
			return err
		}
		fmt.Printf("Present list written to %s\n", csvPath)
	}

	if stopErr != nil && !errors.Is(stopErr, engine.ErrNotJoined) {
		return fmt.Errorf("capture stopped with errors: %w", stopErr)
	}
	return nil
}

// runManualCapture drives capture from operator input: Enter takes a
// snapshot, y/n answers a pending confirmation, q stops.
func runManualCapture(ctx context.Context, controller *engine.Controller, in io.Reader, out io.Writer) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
	}()

	readLine := func() (string, bool) {
		select {
		case <-ctx.Done():
			return "", false
		case line, ok := <-lines:
			return line, ok
		}
	}

	for {
		fmt.Fprint(out, "[Enter] capture, [q] stop: ")
		line, ok := readLine()
		if !ok || strings.EqualFold(line, "q") {
			return
		}

		if _, err := controller.TriggerCapture(ctx); err != nil {
			fmt.Fprintf(out, "%s (%v)\n", controller.Snapshot().Status, err)
			continue
		}

		st := controller.Snapshot()
		if st.Pending == nil {
			fmt.Fprintln(out, st.Status)
			continue
		}

		p := st.Pending
		fmt.Fprintf(out, "%s: %s (%s) %s. Confirm? [y/N]: ",
			st.Status, p.StudentName, p.StudentID, records.FormatConfidence(p.Confidence))
		answer, ok := readLine()
		if !ok {
			return
		}
		if strings.EqualFold(answer, "y") || strings.EqualFold(answer, "yes") {
			if err := controller.Confirm(ctx); err != nil {
				fmt.Fprintf(out, "%s\n", err)
				continue
			}
		} else if err := controller.Dismiss(); err != nil {
			fmt.Fprintf(out, "%s\n", err)
			continue
		}
		fmt.Fprintln(out, controller.Snapshot().Status)
	}
}

// runContinuousCapture shows the capture status until ctx is cancelled or
// duration elapses. Newly present students and recording failures are printed.
func runContinuousCapture(ctx context.Context, controller *engine.Controller, events chan engine.Event, duration time.Duration) {
	total := int64(-1)
	if duration > 0 {
		total = int64(duration / time.Second)
	}
	bar := progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(engine.MsgLookAtCamera),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(duration > 0),
		progressbar.OptionFullWidth(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	defer bar.Finish()

	var deadline <-chan time.Time
	if duration > 0 {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		deadline = timer.C
	}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case <-ticker.C:
			_ = bar.Add(1)
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Type {
			case engine.EventStatus:
				bar.Describe(ev.Message)
			case engine.EventPresent:
				entries, _ := ev.Data.([]engine.PresentEntry)
				for _, e := range entries {
					if e.FirstSeen.Equal(e.LastSeen) {
						_ = bar.Clear()
						fmt.Printf("Present: %s (%s) %s\n", e.StudentName, e.StudentID, records.FormatConfidence(e.Confidence))
					}
				}
			case engine.EventRecordError:
				_ = bar.Clear()
				fmt.Printf("%s: %s\n", engine.MsgAttendanceFailed, ev.Message)
			}
		}
	}
}

func printSummary(summary engine.StopSummary, present []engine.PresentStatus) {
	if len(present) == 0 {
		fmt.Println("\nNo students recognized.")
		return
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROLL NO\tNAME\tFIRST SEEN\tCONFIDENCE\tRECORDED")
	fmt.Fprintln(w, "-------\t----\t----------\t----------\t--------")
	for _, e := range present {
		recorded := "no"
		switch {
		case e.Recorded:
			recorded = "yes"
		case e.RecordError != "":
			recorded = "failed: " + e.RecordError
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.StudentID, e.StudentName, e.FirstSeen.Format("15:04:05"), records.FormatConfidence(e.Confidence), recorded)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d present, %d recorded\n", len(present), summary.Recorded)
}

func writePresentCSV(path string, summary engine.StopSummary, loc *time.Location) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := records.WriteCSV(f, records.FromPresent(summary.Session, summary.Present, loc)); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
