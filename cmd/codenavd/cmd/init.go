package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codenav/codenavd/configs"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create project configuration file",
		Long: `Create the version-controlled project configuration file, .codenavd.yaml,
in the given directory (default: current directory).

This file contains workspace-specific settings like:
  - indexed path include/exclude patterns
  - vector search opt-in and dimension
  - cache TTLs`,
		Args: cobra.MaximumNArgs(1),
		Example: `  # Create project config in the current directory
  codenavd init

  # Overwrite an existing project config
  codenavd init --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runInit(cmd, path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")

	return cmd
}

func runInit(cmd *cobra.Command, path string, force bool) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	configPath := filepath.Join(absPath, ".codenavd.yaml")
	if fileExists(configPath) && !force {
		return fmt.Errorf("project config already exists at %s (use --force to overwrite)", configPath)
	}

	if err := os.WriteFile(configPath, []byte(configs.ProjectConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write project config: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", configPath)
	return nil
}
