// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for fedkit.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"fedkit/internal/config"
	"fedkit/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables debug-level output
	verbose bool

	// cfg is the loaded global configuration, available to all subcommands
	// after initRootConfig runs.
	cfg = config.DefaultConfig()

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "fedkit",
		Short: "A micro-frontend federation dev tool",
		Long: TitleStyle.Render("fedkit") + SubtitleStyle.Render(" - a micro-frontend federation dev tool") + `

fedkit wires locally developed micro-frontends together: remotes serve
their built modules with a remote entry manifest, and hosts fetch,
verify, and cache those modules with retries and shared dependency
negotiation.

Apps are described in 'fedfile.cue' files using CUE format.

` + SubtitleStyle.Render("Quick Start:") + `
  1. Create a fedfile in each app directory: fedkit init
  2. Start each remote: fedkit serve
  3. Resolve modules from the host: fedkit load cart/Cart

` + SubtitleStyle.Render("Examples:") + `
  fedkit init --role remote    Scaffold a remote's fedfile
  fedkit validate              Check the fedfile in the current directory
  fedkit serve --watch         Serve with rebuild on change
  fedkit remotes               Show remote health and shared versions
  fedkit inspect <url>         Print a remote's manifest`,
	}
)

func init() {
	cobra.OnInitialize(initRootConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(remotesCmd)
	rootCmd.AddCommand(configCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Pass version via fang.WithVersion() since fang overrides rootCmd.Version
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// initRootConfig loads the global configuration.
func initRootConfig() {
	loaded, _, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, verbose))
		return
	}
	cfg = loaded

	if !verbose {
		verbose = cfg.UI.Verbose
	}
}

// newLogger builds a logger honoring the verbose flag.
func newLogger(prefix string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: prefix})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
