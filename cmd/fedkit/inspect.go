// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"fedkit/internal/issue"
	"fedkit/internal/remote"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <url>",
	Short: "Print a remote's manifest",
	Long: `Fetch the remote entry manifest from the given base URL and print its
exposed modules, declared remotes, and shared dependencies.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	client, err := remote.NewClient(args[0])
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	m, err := client.Manifest(cmd.Context())
	if err != nil {
		printIssue(issue.RemoteUnreachableId)
		return &ExitError{Code: 1, Err: err}
	}

	fmt.Println(TitleStyle.Render(string(m.Name)) + SubtitleStyle.Render("  (schema "+m.Schema+")"))

	if len(m.Exposes) > 0 {
		fmt.Println(SubtitleStyle.Render("Exposes:"))
		for _, exp := range m.Exposes {
			fmt.Printf("  %s  %s  %d bytes  %s\n",
				RefStyle.Render(string(exp.Name)), exp.Path, exp.Size, exp.Digest)
		}
	}
	if len(m.Remotes) > 0 {
		fmt.Println(SubtitleStyle.Render("Remotes:"))
		for _, ref := range m.Remotes {
			fmt.Printf("  %s  %s\n", RefStyle.Render(string(ref.Name)), ref.URL)
		}
	}
	if len(m.Shared) > 0 {
		fmt.Println(SubtitleStyle.Render("Shared:"))
		for _, dep := range m.Shared {
			line := fmt.Sprintf("  %s  requires %s", RefStyle.Render(dep.Name), dep.Requirement)
			if dep.Version != "" {
				line += "  offers " + dep.Version
			}
			if dep.Singleton {
				line += "  [singleton]"
			}
			fmt.Println(line)
		}
	}
	return nil
}
