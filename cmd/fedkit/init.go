// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"fedkit/pkg/fedfile"
)

var (
	initRole string
	initName string

	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Scaffold a fedfile in the current directory",
		Long: `Create a fedfile.cue in the current directory.

The app name defaults to the directory name; the role defaults to
"remote". Existing fedfiles are never overwritten.`,
		RunE: runInit,
	}
)

func init() {
	initCmd.Flags().StringVar(&initRole, "role", "remote", "app role: host, remote, or hybrid")
	initCmd.Flags().StringVar(&initName, "name", "", "app name (defaults to the directory name)")
}

func runInit(_ *cobra.Command, _ []string) error {
	path := fedfile.DefaultFileName
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists, refusing to overwrite", path)
	}

	name := initName
	if name == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("determine working directory: %w", err)
		}
		name = filepath.Base(wd)
	}

	ff := &fedfile.Fedfile{
		Name: fedfile.AppName(name),
		Role: fedfile.Role(initRole),
	}
	switch ff.Role {
	case fedfile.RoleRemote, fedfile.RoleHybrid:
		ff.Exposes = []fedfile.Expose{{Name: "App", Path: "app.js"}}
	case fedfile.RoleHost:
		// no exposes
	default:
		return fmt.Errorf("invalid role %q (valid: host, remote, hybrid)", initRole)
	}

	if errs := ff.Validate(); len(errs) > 0 {
		return fmt.Errorf("scaffold would be invalid: %w", errs)
	}

	if err := os.WriteFile(path, []byte(fedfile.GenerateCUE(ff)), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	fmt.Println(SuccessStyle.Render("Created ") + RefStyle.Render(path) + SubtitleStyle.Render(" (role: "+string(ff.Role)+")"))
	return nil
}
