// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"fedkit/internal/issue"
	"fedkit/internal/registry"
	"fedkit/pkg/fedfile"
)

var (
	remotesShared bool

	remotesCmd = &cobra.Command{
		Use:   "remotes",
		Short: "List declared remotes and their status",
		Long: `Sync every remote declared in the current fedfile and report its health,
exposed modules, and (with --shared) the negotiated shared dependency
versions.`,
		Args: cobra.NoArgs,
		RunE: runRemotes,
	}
)

func init() {
	remotesCmd.Flags().BoolVar(&remotesShared, "shared", false, "show negotiated shared dependencies")
}

func runRemotes(cmd *cobra.Command, args []string) error {
	ff, err := fedfile.Parse(".")
	if err != nil {
		printIssue(issue.FedfileParseErrorId)
		return &ExitError{Code: 1, Err: err}
	}

	reg, err := registry.New(ff, registry.Options{Logger: newLogger("remotes")})
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	ctx := cmd.Context()
	if err := reg.Sync(ctx); err != nil {
		printLoadIssue(err)
		return &ExitError{Code: 1, Err: err}
	}

	for _, name := range reg.Remotes() {
		status := ErrorStyle.Render("down")
		if up, err := reg.Healthy(ctx, name); err == nil && up {
			status = SuccessStyle.Render("up")
		}
		fmt.Printf("%s  %s\n", RefStyle.Render(string(name)), status)
		if m := reg.Manifest(name); m != nil {
			for _, exp := range m.Exposes {
				fmt.Printf("    %s  %s\n", exp.Name, exp.Digest)
			}
		}
	}

	if remotesShared {
		fmt.Println(SubtitleStyle.Render("Shared:"))
		for _, res := range reg.Resolutions() {
			line := fmt.Sprintf("  %s  %s  (from %s)",
				RefStyle.Render(res.Dep), res.Version, res.Source)
			if len(res.Unsatisfied) > 0 {
				line += "  " + WarningStyle.Render(
					fmt.Sprintf("unsatisfied for %v", res.Unsatisfied))
			}
			fmt.Println(line)
		}
	}
	return nil
}
