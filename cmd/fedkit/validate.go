// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fedkit/internal/issue"
	"fedkit/pkg/fedfile"
)

var validateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Validate a fedfile",
	Long: `Parse and validate a fedfile against its schema and structural rules.

With no argument, the current directory's fedfile.cue is checked.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func runValidate(_ *cobra.Command, args []string) error {
	path := "."
	if len(args) == 1 {
		path = args[0]
	}

	ff, err := fedfile.Parse(path)
	if err != nil {
		if os.IsNotExist(errors.Unwrap(err)) || os.IsNotExist(err) {
			printIssue(issue.FedfileNotFoundId)
		} else {
			printIssue(issue.FedfileParseErrorId)
		}
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))
		return &ExitError{Code: 1, Err: err}
	}

	fmt.Println(SuccessStyle.Render("✓ ") + RefStyle.Render(ff.FilePath) + " is valid")
	fmt.Printf("  name: %s\n  role: %s\n  exposes: %d\n  remotes: %d\n  shared: %d\n",
		ff.Name, ff.Role, len(ff.Exposes), len(ff.Remotes), len(ff.Shared))
	return nil
}

// printIssue renders a catalog entry to stderr, falling back to nothing if
// rendering fails (the raw error is printed either way).
func printIssue(id issue.Id) {
	iss := issue.Get(id)
	if iss == nil {
		return
	}
	if out, err := iss.Render("dark"); err == nil {
		fmt.Fprintln(os.Stderr, out)
	}
}
