// Package cli implements the mxembed command-line interface.
//
// # Commands
//
//   - render: rewrite diagram images in a built site
//   - watch: render, then re-render pages as they change
//   - serve: preview a site with diagrams rewritten on the fly
//   - vendor: download the viewer script into a site
//   - cache: manage the viewer download cache
//   - config: create or inspect mxembed.toml
//
// All commands support --verbose (-v) for debug-level logging.
package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/mxembed/pkg/buildinfo"
	"github.com/matzehuels/mxembed/pkg/cache"
	"github.com/matzehuels/mxembed/pkg/pipeline"
	"github.com/matzehuels/mxembed/pkg/viewer"
)

const appName = "mxembed"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "mxembed turns drawio diagram images into interactive viewers",
		Long: `mxembed post-processes a built documentation site: every <img> whose
src ends in .drawio is replaced by a diagrams.net viewer widget, and the
viewer script is added to the page once.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.watchCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.vendorCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

func (c *CLI) newRunner() *pipeline.Runner {
	return pipeline.NewRunner(c.Logger)
}

func (c *CLI) newFetcher(noCache bool) (*viewer.Fetcher, error) {
	cc, err := newCache(noCache)
	if err != nil {
		return nil, err
	}
	return viewer.NewFetcher(cc, c.Logger), nil
}

func newCache(noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// cacheDir returns the cache directory using XDG standard (~/.cache/mxembed/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
