// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fedkit/internal/devserver"
	"fedkit/internal/issue"
	"fedkit/pkg/fedfile"
)

var (
	servePort  int
	serveWatch bool

	serveCmd = &cobra.Command{
		Use:   "serve [path]",
		Short: "Serve a remote's modules and manifest",
		Long: `Run the dev server for the fedfile in the given directory (default ".").

The build script (if any) runs first, then the manifest is generated and
served at /remote-entry.json with chunks under /modules/. With --watch,
source changes trigger a rebuild and manifest refresh.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runServe,
	}
)

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides the fedfile)")
	serveCmd.Flags().BoolVarP(&serveWatch, "watch", "w", false, "rebuild on source changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	path := "."
	if len(args) == 1 {
		path = args[0]
	}

	ff, err := fedfile.Parse(path)
	if err != nil {
		printIssue(issue.FedfileParseErrorId)
		return &ExitError{Code: 1, Err: err}
	}

	logger := newLogger("serve")

	runner, err := devserver.NewBuildRunner(ff)
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runner != nil {
		logger.Info("running build script")
		if err := runner.Run(ctx); err != nil {
			printIssue(issue.BuildFailedId)
			var be *devserver.BuildError
			if errors.As(err, &be) {
				return &ExitError{Code: be.ExitCode, Err: err}
			}
			return &ExitError{Code: 1, Err: err}
		}
	}

	port := servePort
	if port == 0 && ff.Serve.Port == 0 {
		port = cfg.Serve.Port
	}
	srv, err := devserver.New(ff, devserver.Options{Port: port, Logger: logger})
	if err != nil {
		printIssue(issue.PortInUseId)
		return &ExitError{Code: 1, Err: err}
	}

	if err := srv.Start(); err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	fmt.Println(SuccessStyle.Render("Serving ") + RefStyle.Render(string(ff.Name)) + " at " + RefStyle.Render(srv.URL()))

	if serveWatch || ff.Serve.Watch {
		go func() {
			if err := srv.Watch(ctx, runner); err != nil {
				logger.Error("watch loop stopped", "err", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")
	return srv.Stop()
}
