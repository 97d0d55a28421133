// Package pipeline applies the diagram rewriter to a built documentation site.
//
// A site is a directory of rendered pages plus their assets. The pipeline
// walks it, rewrites every page selected by the include and exclude globs,
// and writes the results either in place or into a mirrored output tree.
// CLI, watch mode and the preview server all go through a [Runner] so pages
// are treated the same way everywhere.
//
// # Usage
//
//	runner := pipeline.NewRunner(logger)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    Root:   "site",
//	    Output: "public",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Stats.Changed, "pages changed")
//
// Pages fail independently: a page that cannot be read or written is logged,
// counted in [Stats.Failed] and left as it was. Only invalid options and
// context cancellation abort a run.
package pipeline

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/mxembed/pkg/drawio"
)

// DefaultInclude selects the pages to rewrite when Options.Include is empty.
var DefaultInclude = []string{"*.html"}

// Options contains all configuration for a pipeline run.
type Options struct {
	// Root is the built site directory. Required.
	Root string

	// Output is the directory rewritten pages are written to. Empty means
	// rewrite in place. Files that are not pages are copied unchanged when
	// Output differs from Root.
	Output string

	// Jobs bounds the number of pages processed concurrently.
	Jobs int

	// Include and Exclude are slash-separated globs matched against both the
	// page path relative to Root and its base name.
	Include []string
	Exclude []string

	CheckMissing bool // warn about diagram files that do not exist
	DryRun       bool // report changes without writing

	Drawio drawio.Config

	// ViewerPath is the absolute path of a vendored viewer script inside
	// Output. When set, each page references it by a page-relative URL
	// instead of Drawio.ViewerJS.
	ViewerPath string

	Logger *log.Logger

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// Result contains the outcome of a pipeline run.
type Result struct {
	// Pages holds one entry per selected page, in walk order.
	Pages []PageResult

	Stats Stats
}

// PageResult describes one processed page.
type PageResult struct {
	Path           string           // slash path relative to Root
	Diagrams       []drawio.Diagram // replaced references
	Missing        []string         // diagram srcs that do not resolve to a file
	ScriptInjected bool
	Duration       time.Duration
	Err            error // non-nil when the page was skipped
}

// Changed reports whether the page was rewritten.
func (p PageResult) Changed() bool { return p.Err == nil && len(p.Diagrams) > 0 }

// Stats contains run statistics.
type Stats struct {
	Pages    int
	Changed  int
	Diagrams int
	Missing  int
	Failed   int
	Copied   int // non-page files mirrored into Output
	Duration time.Duration
}

func (s *Stats) add(p PageResult) {
	s.Pages++
	if p.Err != nil {
		s.Failed++
		return
	}
	if p.Changed() {
		s.Changed++
	}
	s.Diagrams += len(p.Diagrams)
	s.Missing += len(p.Missing)
}

// ValidateAndSetDefaults checks required fields and applies defaults.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Root == "" {
		return fmt.Errorf("root is required")
	}

	root, err := filepath.Abs(o.Root)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root %s is not a directory", o.Root)
	}
	o.Root = root

	if o.Output == "" {
		o.Output = root
	}
	if o.Output, err = filepath.Abs(o.Output); err != nil {
		return fmt.Errorf("resolve output: %w", err)
	}
	if o.Output != o.Root && within(o.Output, o.Root) {
		return fmt.Errorf("root %s is inside output %s", o.Root, o.Output)
	}

	if o.ViewerPath != "" {
		if o.ViewerPath, err = filepath.Abs(o.ViewerPath); err != nil {
			return fmt.Errorf("resolve viewer path: %w", err)
		}
	}

	if o.Jobs <= 0 {
		o.Jobs = runtime.NumCPU()
	}
	if len(o.Include) == 0 {
		o.Include = DefaultInclude
	}
	for _, pattern := range append(append([]string{}, o.Include...), o.Exclude...) {
		if _, err := path.Match(pattern, ""); err != nil {
			return fmt.Errorf("invalid glob %q: %w", pattern, err)
		}
	}

	o.Drawio = o.Drawio.WithDefaults()
	if err := o.Drawio.Validate(); err != nil {
		return err
	}

	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	o.validated = true
	return nil
}

// InPlace reports whether pages are rewritten inside Root.
func (o *Options) InPlace() bool { return o.Output == "" || o.Output == o.Root }

// Selected reports whether the slash path rel (relative to Root) is a page.
func (o *Options) Selected(rel string) bool {
	include := o.Include
	if len(include) == 0 {
		include = DefaultInclude
	}
	return matchAny(include, rel) && !matchAny(o.Exclude, rel)
}

func matchAny(patterns []string, rel string) bool {
	base := path.Base(rel)
	for _, p := range patterns {
		if ok, _ := path.Match(p, rel); ok {
			return true
		}
		if ok, _ := path.Match(p, base); ok {
			return true
		}
	}
	return false
}

// within reports whether p is dir or lies below it.
func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !filepath.IsAbs(rel) && !startsWithParent(rel))
}

func startsWithParent(rel string) bool {
	return len(rel) >= 3 && rel[:2] == ".." && os.IsPathSeparator(rel[2])
}
