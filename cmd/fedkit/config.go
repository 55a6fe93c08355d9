// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"fedkit/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage fedkit configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		loaded, path, err := config.Load()
		if err != nil {
			return &ExitError{Code: 1, Err: err}
		}
		if path != "" {
			fmt.Println(SubtitleStyle.Render("# loaded from " + path))
		} else {
			fmt.Println(SubtitleStyle.Render("# defaults (no config file)"))
		}
		fmt.Print(config.GenerateCUE(loaded))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Save(config.DefaultConfig()); err != nil {
			return &ExitError{Code: 1, Err: err}
		}
		dir, err := config.ConfigDir()
		if err != nil {
			return &ExitError{Code: 1, Err: err}
		}
		path := filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt)
		fmt.Println(SuccessStyle.Render("Wrote ") + RefStyle.Render(path))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
