// Package cli defines Cobra command definitions for the provet CLI.
// This file contains the root command, version flag, and help output.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/provet-dev/provet/internal/api"
	"github.com/provet-dev/provet/internal/config"
	"github.com/provet-dev/provet/internal/history"
	"github.com/provet-dev/provet/internal/log"
	"github.com/provet-dev/provet/internal/session"
	"github.com/provet-dev/provet/internal/tui"
	"github.com/provet-dev/provet/internal/tui/app"
)

var (
	backendURL string
	version    = "dev" // set via ldflags at build time
)

var rootCmd = &cobra.Command{
	Use:   "provet",
	Short: "Procurement document analysis client",
	Long: `Provet uploads procurement documents to an analysis backend,
streams the multi-agent review live, and lets you chat about the
findings or turn them into a presentation deck.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// When no subcommand is provided, launch the TUI if on a TTY.
		if !tui.IsTTY() {
			return cmd.Help()
		}
		return launchTUI(args)
	},
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// launchTUI builds the full session stack and starts the TUI. Initial
// document paths pre-fill the upload screen.
func launchTUI(paths []string) error {
	workingDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	cfg, err := loadConfig(workingDir)
	if err != nil {
		return err
	}

	machine, cleanup, err := buildMachine(cfg, workingDir)
	if err != nil {
		return err
	}
	defer cleanup()

	tuiApp := app.New(cfg, machine, workingDir, paths)
	return tui.Run(tuiApp)
}

// loadConfig reads the config, applying the --backend override.
func loadConfig(workingDir string) (*config.Config, error) {
	cfg, err := config.ReadOrDefault(workingDir)
	if err != nil {
		return nil, err
	}
	if backendURL != "" {
		cfg.Backend.URL = backendURL
	}
	return cfg, nil
}

// buildMachine wires the transport, event log, and history recorder into
// a session machine. The returned cleanup resets the session, closing any
// open stream, and then closes the history store.
func buildMachine(cfg *config.Config, workingDir string) (*session.Machine, func(), error) {
	client := api.NewClient(cfg.Backend.URL, cfg.APITimeouts())

	opts := []session.Option{}
	if logger, err := log.NewLogger(workingDir); err == nil {
		opts = append(opts, session.WithEventLog(logger))
	}

	var store *history.Store
	if path := cfg.HistoryPath(workingDir); path != "" {
		s, err := history.NewStore(path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening history store: %w", err)
		}
		store = s
		opts = append(opts, session.WithRecorder(store))
	}

	machine := session.NewMachine(session.WrapClient(client), opts...)
	cleanup := func() {
		machine.Reset()
		if store != nil {
			_ = store.Close()
		}
	}
	return machine, cleanup, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "Backend URL (overrides config)")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(demoCmd)
}
