package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mxembed/pkg/config"
	"github.com/matzehuels/mxembed/pkg/pipeline"
)

// siteFlags are the flags shared by commands that process a site. A flag
// only overrides mxembed.toml when it is set on the command line.
type siteFlags struct {
	config       string
	output       string
	jobs         int
	viewerJS     string
	extension    string
	include      []string
	exclude      []string
	checkMissing bool
	dryRun       bool
	vendor       bool
	noCache      bool
}

// bind registers the flags on cmd. Output-related flags are skipped when
// rewrite is false.
func (f *siteFlags) bind(cmd *cobra.Command, rewrite bool) {
	cmd.Flags().StringVarP(&f.config, "config", "c", "", "config file (default: mxembed.toml in the site or a parent)")
	cmd.Flags().StringVar(&f.viewerJS, "viewer-js", "", "viewer script URL")
	cmd.Flags().StringVar(&f.extension, "extension", "", "diagram file extension (default .drawio)")
	if !rewrite {
		return
	}
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "write pages to this directory instead of rewriting in place")
	cmd.Flags().IntVarP(&f.jobs, "jobs", "j", 0, "pages processed in parallel (default: number of CPUs)")
	cmd.Flags().StringSliceVar(&f.include, "include", nil, "page globs (default *.html)")
	cmd.Flags().StringSliceVar(&f.exclude, "exclude", nil, "globs of pages to leave alone")
	cmd.Flags().BoolVar(&f.checkMissing, "check-missing", false, "warn about diagram files that do not exist")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "report changes without writing")
	cmd.Flags().BoolVar(&f.vendor, "vendor", false, "serve the viewer script from the site")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "do not cache the downloaded viewer script")
}

// load reads the configuration for root and applies command-line overrides.
// It returns the config path, or "" when defaults are used.
func (f *siteFlags) load(cmd *cobra.Command, root string) (config.File, string, error) {
	path := f.config
	if path == "" {
		found, err := config.Find(root)
		if err != nil {
			return config.File{}, "", err
		}
		path = found
	}

	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return config.File{}, "", err
		}
	}

	changed := cmd.Flags().Changed
	if changed("viewer-js") {
		cfg.ViewerJS = f.viewerJS
	}
	if changed("extension") {
		cfg.Extension = f.extension
	}
	if changed("jobs") {
		cfg.Jobs = f.jobs
	}
	if changed("include") {
		cfg.Include = f.include
	}
	if changed("exclude") {
		cfg.Exclude = f.exclude
	}
	if changed("check-missing") {
		cfg.CheckMissing = f.checkMissing
	}
	if changed("vendor") {
		cfg.Vendor.Enabled = f.vendor
	}

	if err := cfg.Validate(); err != nil {
		return config.File{}, "", fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, path, nil
}

// pipelineOptions builds the run options for root from cfg and the flags.
func (f *siteFlags) pipelineOptions(cfg config.File, root string) pipeline.Options {
	return pipeline.Options{
		Root:         root,
		Output:       f.output,
		Jobs:         cfg.Jobs,
		Include:      cfg.Include,
		Exclude:      cfg.Exclude,
		CheckMissing: cfg.CheckMissing,
		DryRun:       f.dryRun,
		Drawio:       cfg.DrawioConfig(),
	}
}
