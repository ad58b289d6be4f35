// Package cli implements deskctl, the operator command line for the kiosk's
// backend and camera.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"facedesk/internal/backend"
	"facedesk/internal/config"
)

var (
	backendURL string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "deskctl",
	Short: "Operate a FaceDesk attendance kiosk from the terminal",
	Long: `deskctl talks to the same attendance backend as the kiosk. It can check
backend health, list the roster and records, export records as CSV, enroll a
new person from three photos and grab a still from the kiosk camera.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "Backend base URL (defaults to BACKEND_URL)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log backend requests to stderr")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

func logger() *slog.Logger {
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// newClient builds a backend client from the environment and the --backend flag.
func newClient() (*backend.Client, config.App) {
	cfg := config.Load()
	url := cfg.BackendURL
	if backendURL != "" {
		url = backendURL
	}
	return backend.New(url, cfg.BackendTimeout, logger()), cfg
}
