package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mxembed/pkg/config"
)

// configCommand creates the config command.
func (c *CLI) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect mxembed.toml",
	}

	cmd.AddCommand(c.configInitCommand())
	cmd.AddCommand(c.configShowCommand())

	return cmd
}

// configInitCommand creates the "config init" subcommand.
func (c *CLI) configInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a default mxembed.toml",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			path, err := writeDefaultConfig(dir, force)
			if err != nil {
				return err
			}
			printSuccess("Created %s", path)
			printNextStep("Render a site", "mxembed render <site-dir>")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}

// writeDefaultConfig writes config.Default() to dir and returns the path.
func writeDefaultConfig(dir string, force bool) (string, error) {
	path := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	var buf bytes.Buffer
	if err := config.Default().Encode(&buf); err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// configShowCommand creates the "config show" subcommand.
func (c *CLI) configShowCommand() *cobra.Command {
	var flags siteFlags

	cmd := &cobra.Command{
		Use:   "show [site-dir]",
		Short: "Print the effective configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			cfg, path, err := flags.load(cmd, dir)
			if err != nil {
				return err
			}

			source := "built-in defaults"
			if path != "" {
				source = path
			}
			fmt.Println(StyleTitle.Render("Configuration"))
			printKeyValue("source", source)
			printKeyValue("viewer_js", cfg.ViewerJS)
			printKeyValue("extension", cfg.Extension)
			printKeyValue("include", strings.Join(cfg.Include, ", "))
			if len(cfg.Exclude) > 0 {
				printKeyValue("exclude", strings.Join(cfg.Exclude, ", "))
			}
			if cfg.Vendor.Enabled {
				printKeyValue("vendor", cfg.Vendor.Path)
			}
			return nil
		},
	}

	flags.bind(cmd, false)
	return cmd
}
