// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fedkit/internal/issue"
	"fedkit/internal/loader"
	"fedkit/internal/registry"
	"fedkit/internal/remote"
	"fedkit/internal/share"
	"fedkit/pkg/fedfile"
)

var (
	loadOutput string

	loadCmd = &cobra.Command{
		Use:   "load <remote/Module>",
		Short: "Fetch an exposed module from a declared remote",
		Long: `Resolve a module reference like "cart/Checkout" against the remotes declared
in the current fedfile. The chunk is fetched with retries, verified against
the digest in the remote's manifest, and written to stdout or --output.`,
		Args: cobra.ExactArgs(1),
		RunE: runLoad,
	}
)

func init() {
	loadCmd.Flags().StringVarP(&loadOutput, "output", "o", "", "write the chunk to a file instead of stdout")
}

func runLoad(cmd *cobra.Command, args []string) error {
	ff, err := fedfile.Parse(".")
	if err != nil {
		printIssue(issue.FedfileParseErrorId)
		return &ExitError{Code: 1, Err: err}
	}

	logger := newLogger("load")

	reg, err := registry.New(ff, registry.Options{
		Logger: logger,
		Loader: loader.Options{
			MaxRetries:    cfg.Loader.Retries(),
			BaseDelay:     cfg.Loader.BaseDelay(),
			SlowThreshold: cfg.Loader.SlowThreshold(),
			OnSlow: func(module string) {
				fmt.Fprintln(os.Stderr, WarningStyle.Render(
					fmt.Sprintf("Loading %s is taking longer than expected...", module)))
			},
		},
	})
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	ctx := cmd.Context()
	if err := reg.Sync(ctx); err != nil {
		printLoadIssue(err)
		return &ExitError{Code: 1, Err: err}
	}

	data, err := reg.Resolve(ctx, args[0])
	if err != nil {
		printLoadIssue(err)
		return &ExitError{Code: 1, Err: err}
	}

	if loadOutput == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(loadOutput, data, 0o644); err != nil {
		return err
	}
	fmt.Println(SuccessStyle.Render("Wrote ") + RefStyle.Render(loadOutput) +
		fmt.Sprintf(" (%d bytes)", len(data)))
	return nil
}

// printLoadIssue maps a sync or resolve failure to its catalog entry.
func printLoadIssue(err error) {
	switch {
	case errors.Is(err, registry.ErrRemoteCycle):
		printIssue(issue.RemoteCycleId)
	case errors.Is(err, share.ErrVersionConflict):
		printIssue(issue.SharedVersionConflictId)
	case errors.Is(err, registry.ErrModuleNotExposed), errors.Is(err, registry.ErrUnknownRemote):
		printIssue(issue.ModuleNotExposedId)
	case errors.Is(err, remote.ErrDigestMismatch):
		printIssue(issue.ChunkDigestMismatchId)
	case errors.Is(err, remote.ErrRemoteUnavailable), errors.Is(err, loader.ErrLoadFailed):
		printIssue(issue.RemoteUnreachableId)
	}
}
