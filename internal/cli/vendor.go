package cli

import (
	"github.com/spf13/cobra"
)

// vendorCommand creates the vendor command.
func (c *CLI) vendorCommand() *cobra.Command {
	var (
		flags   siteFlags
		path    string
		refresh bool
	)

	cmd := &cobra.Command{
		Use:   "vendor [site-dir]",
		Short: "Download the viewer script into a site",
		Long: `Download the viewer script into a site.

The script is fetched from --viewer-js (or viewer_js in mxembed.toml) and
written to --path inside the site. Downloads are cached; use --refresh to
fetch a fresh copy.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := flags.load(cmd, args[0])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("path") {
				cfg.Vendor.Path = path
			}
			if _, err := c.vendorViewer(cmd.Context(), cfg, args[0], flags.noCache, refresh); err != nil {
				return err
			}
			printNextStep("Use it when rendering", "mxembed render --vendor "+args[0])
			return nil
		},
	}

	flags.bind(cmd, false)
	cmd.Flags().StringVar(&path, "path", "", "destination inside the site (default assets/javascripts/viewer-static.min.js)")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the cache")
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "do not cache the downloaded script")
	return cmd
}
