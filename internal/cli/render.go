package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mxembed/pkg/config"
	"github.com/matzehuels/mxembed/pkg/pipeline"
)

// renderCommand creates the render command.
func (c *CLI) renderCommand() *cobra.Command {
	var flags siteFlags

	cmd := &cobra.Command{
		Use:   "render [site-dir]",
		Short: "Replace drawio images in a built site with viewer widgets",
		Long: `Replace drawio images in a built site with viewer widgets.

Every page matching the include globs is parsed, each <img> whose src ends
in the diagram extension becomes a diagrams.net viewer, and the viewer
script is appended to the page body. Pages without diagrams are left
byte-for-byte unchanged.

Pages are rewritten in place unless --output is given, in which case the
whole site is mirrored into that directory.`,
		Example: `  mxembed render site
  mxembed render site -o public --check-missing
  mxembed render site --vendor --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := flags.load(cmd, args[0])
			if err != nil {
				return err
			}
			opts := flags.pipelineOptions(cfg, args[0])
			_, err = c.runRender(cmd.Context(), &opts, cfg, flags.noCache)
			return err
		},
	}

	flags.bind(cmd, true)
	return cmd
}

// runRender processes the site once. When vendoring is enabled the viewer
// script is downloaded first and opts.ViewerPath is set to it.
func (c *CLI) runRender(ctx context.Context, opts *pipeline.Options, cfg config.File, noCache bool) (*pipeline.Result, error) {
	if cfg.Vendor.Enabled {
		if opts.DryRun {
			printInfo("Dry run: viewer script not vendored")
		} else {
			path, err := c.vendorViewer(ctx, cfg, siteOutput(opts), noCache, false)
			if err != nil {
				return nil, err
			}
			opts.ViewerPath = path
		}
	}

	prog := newProgress(c.Logger)
	spinner := newSpinner(ctx, "Processing pages...")
	spinner.Start()

	result, err := c.newRunner().Execute(ctx, *opts)
	if err != nil {
		spinner.StopWithError("Render failed")
		return nil, fmt.Errorf("render: %w", err)
	}
	spinner.Stop()
	prog.done(fmt.Sprintf("Processed %d pages", result.Stats.Pages))

	printResult(result, opts.DryRun)
	return result, nil
}

// vendorViewer downloads the viewer script into siteDir and returns its path.
func (c *CLI) vendorViewer(ctx context.Context, cfg config.File, siteDir string, noCache, refresh bool) (string, error) {
	fetcher, err := c.newFetcher(noCache)
	if err != nil {
		return "", fmt.Errorf("initialize cache: %w", err)
	}
	if cfg.Vendor.TTL > 0 {
		fetcher.TTL = time.Duration(cfg.Vendor.TTL)
	}

	spinner := newSpinner(ctx, "Fetching viewer script...")
	spinner.Start()
	path, err := fetcher.Vendor(ctx, cfg.ViewerJS, siteDir, cfg.Vendor.Path, refresh)
	if err != nil {
		spinner.StopWithError("Could not vendor viewer script")
		return "", fmt.Errorf("vendor %s: %w", cfg.ViewerJS, err)
	}
	spinner.Stop()
	printSuccess("Vendored viewer script")
	printFile(path)
	return path, nil
}

// siteOutput returns the directory pages are written to.
func siteOutput(opts *pipeline.Options) string {
	if opts.Output != "" {
		return opts.Output
	}
	return opts.Root
}
