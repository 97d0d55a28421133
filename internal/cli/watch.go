package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/mxembed/pkg/pipeline"
)

// watchCommand creates the watch command.
func (c *CLI) watchCommand() *cobra.Command {
	var flags siteFlags

	cmd := &cobra.Command{
		Use:   "watch [site-dir]",
		Short: "Render a site, then re-render pages as they change",
		Long: `Render a site, then re-render pages as they change.

Use this next to a static site generator's own watch mode: whenever it
writes a page, mxembed rewrites the diagrams in it. Stop with Ctrl+C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, _, err := flags.load(cmd, args[0])
			if err != nil {
				return err
			}
			opts := flags.pipelineOptions(cfg, args[0])
			if _, err := c.runRender(ctx, &opts, cfg, flags.noCache); err != nil {
				return err
			}

			printNewline()
			printInfo("Watching %s for changes (Ctrl+C to stop)", StyleHighlight.Render(args[0]))
			return c.newRunner().Watch(ctx, opts, printPage)
		},
	}

	flags.bind(cmd, true)
	return cmd
}

// printPage reports one page processed in watch mode.
func printPage(p pipeline.PageResult) {
	switch {
	case p.Err != nil:
		printError("%s: %v", p.Path, p.Err)
	case p.Changed():
		printSuccess("%s %s", p.Path, StyleDim.Render(plural(len(p.Diagrams), "diagram")))
	}
	for _, src := range p.Missing {
		printWarning("%s: diagram %s not found", p.Path, src)
	}
}
