package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/mxembed/pkg/server"
)

const defaultAddr = "127.0.0.1:8000"

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		flags siteFlags
		addr  string
	)

	cmd := &cobra.Command{
		Use:   "serve [site-dir]",
		Short: "Preview a site with diagrams rewritten on the fly",
		Long: `Preview a site with diagrams rewritten on the fly.

Pages are rewritten as they are served; nothing on disk is modified.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := flags.load(cmd, args[0])
			if err != nil {
				return err
			}
			srv, err := server.New(server.Options{
				Root:   args[0],
				Drawio: cfg.DrawioConfig(),
				Logger: c.Logger,
			})
			if err != nil {
				return err
			}
			defer srv.Close()

			printInfo("Serving %s at %s", StyleHighlight.Render(args[0]), StyleLink.Render("http://"+addr))
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}

	flags.bind(cmd, false)
	cmd.Flags().StringVar(&addr, "addr", defaultAddr, "address to listen on")
	return cmd
}
