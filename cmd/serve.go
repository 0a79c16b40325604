package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/config"
	"github.com/kozaktomas/attendance-kiosk/internal/database"
	"github.com/kozaktomas/attendance-kiosk/internal/engine"
	"github.com/kozaktomas/attendance-kiosk/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the kiosk web server",
	Long: `Start the kiosk web server.
The web server provides the browser-based capture screen: the live session
list, the camera capture controls and the present list, with state pushed
to the browser over server-sent events.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (default from WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from WEB_HOST)")
	serveCmd.Flags().String("mode", "", "Capture mode: manual or continuous (default from CAPTURE_MODE)")
}

// applyServeFlags lets flags override the environment.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
	if mode := mustGetString(cmd, "mode"); mode != "" {
		cfg.Capture.Mode = mode
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	applyServeFlags(cmd, cfg)

	mode, err := engine.ParseMode(cfg.Capture.Mode)
	if err != nil {
		return err
	}
	client, loc, err := newAttendanceClient(cfg)
	if err != nil {
		return err
	}
	source, err := newCaptureSource(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recorder, closeRecorder, err := newRecorder(ctx, cfg, client)
	if err != nil {
		return err
	}
	defer closeRecorder()

	// The ledger page works in api mode too when a database is configured.
	if cfg.Database.URL != "" && !database.IsLedgerAvailable() {
		if _, closeLedger, err := openLedger(ctx, cfg); err != nil {
			fmt.Printf("Warning: local ledger unavailable: %v\n", err)
		} else {
			defer closeLedger()
		}
	}

	controller := newController(cfg, mode, source, client, recorder)
	if err := controller.StartBrowsing(ctx); err != nil {
		return fmt.Errorf("failed to start session polling: %w", err)
	}

	server := web.NewServer(cfg, controller, client, loc)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		controller.Close(shutdownCtx)
		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Attendance Kiosk on http://%s:%d (%s mode)\n", cfg.Web.Host, cfg.Web.Port, mode)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
