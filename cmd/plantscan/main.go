// Command plantscan submits plant photos for diagnosis and browses past scans.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/bryanwahyu/plantscan/internal/app"
	"github.com/bryanwahyu/plantscan/internal/config"
	"github.com/bryanwahyu/plantscan/internal/domain/scans"
	"github.com/bryanwahyu/plantscan/internal/logger"
	"github.com/bryanwahyu/plantscan/internal/middleware"
)

var (
	configPath string
	identity   string
	jsonOutput bool
)

func main() {
	// stdout is for command output
	logger.Logger.SetOutput(os.Stderr)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "plantscan",
	Short:        "Plant disease scans from camera or file",
	SilenceUsage: true,
}

// newApp reads the config and builds the app. The caller must defer a.Close().
func newApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	a, err := app.New(ctx, cfg, logger.Logger)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// requireIdentity validates --identity (or PLANTSCAN_IDENTITY).
func requireIdentity() (scans.Identity, error) {
	if identity == "" {
		identity = os.Getenv("PLANTSCAN_IDENTITY")
	}
	if err := middleware.ValidateIdentity(identity); err != nil {
		return "", fmt.Errorf("--identity: %w", err)
	}
	return scans.Identity(identity), nil
}

// signalContext is cancelled on Ctrl-C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// wantJSON is true with --json or when stdout is not a terminal.
func wantJSON() bool {
	return jsonOutput || !term.IsTerminal(int(os.Stdout.Fd()))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func cliLog() logrus.FieldLogger { return logger.Logger }

func init() {
	defaultConfig := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultConfig = v
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfig, "Path to config file (.yaml or .toml)")
	rootCmd.PersistentFlags().StringVarP(&identity, "identity", "i", "", "Identity that owns the scans (or PLANTSCAN_IDENTITY)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print JSON even on a terminal")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(failuresCmd)
	rootCmd.AddCommand(migrateCmd)
}
