package pipeline

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/mxembed/pkg/drawio"
	"github.com/matzehuels/mxembed/pkg/observability"
)

// Runner encapsulates pipeline execution.
//
// The Runner is stateless except for the logger - it doesn't store results.
// Multiple goroutines can safely use the same Runner with different options.
type Runner struct {
	Logger *log.Logger
}

// NewRunner creates a runner. If logger is nil, log.Default() is used.
func NewRunner(logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Logger: logger}
}

// site is the file list of one run.
type site struct {
	pages []string // slash paths relative to Root
	other []string
}

// Execute rewrites every selected page under opts.Root.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	start := time.Now()

	rw, err := r.rewriter(opts)
	if err != nil {
		return nil, err
	}

	s, err := scan(opts)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", opts.Root, err)
	}
	observability.Pipeline().OnRunStart(ctx, opts.Root, len(s.pages))
	opts.Logger.Debug("scanned site", "root", opts.Root, "pages", len(s.pages), "files", len(s.other))

	result := &Result{Pages: make([]PageResult, len(s.pages))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Jobs)
	for i, rel := range s.pages {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pr, err := r.ProcessPage(gctx, rw, opts, rel)
			if err != nil {
				opts.Logger.Warn("skipping page", "page", rel, "err", err)
			}
			result.Pages[i] = pr
			return nil
		})
	}
	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err == nil && !opts.InPlace() && !opts.DryRun {
		result.Stats.Copied, err = copyFiles(ctx, opts, s.other)
	}

	for _, p := range result.Pages {
		result.Stats.add(p)
	}
	result.Stats.Duration = time.Since(start)
	observability.Pipeline().OnRunComplete(ctx, opts.Root, result.Stats.Changed, result.Stats.Duration, err)
	if err != nil {
		return result, err
	}

	opts.Logger.Info("processed site",
		"pages", result.Stats.Pages,
		"changed", result.Stats.Changed,
		"diagrams", result.Stats.Diagrams,
		"duration", result.Stats.Duration)
	return result, nil
}

// ProcessPage rewrites the page at rel (a slash path relative to opts.Root)
// and writes it below opts.Output. The returned error is also recorded in
// the PageResult.
func (r *Runner) ProcessPage(ctx context.Context, rw *drawio.Rewriter, opts Options, rel string) (pr PageResult, err error) {
	start := time.Now()
	pr.Path = rel
	defer func() {
		pr.Duration = time.Since(start)
		pr.Err = err
		observability.Pipeline().OnPageComplete(ctx, rel, len(pr.Diagrams), pr.Duration, err)
	}()

	src := filepath.Join(opts.Root, filepath.FromSlash(rel))
	dst := filepath.Join(opts.Output, filepath.FromSlash(rel))

	info, err := os.Stat(src)
	if err != nil {
		return pr, err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return pr, err
	}

	pageDir := filepath.Dir(dst)
	if opts.ViewerPath != "" {
		viewer, err := filepath.Rel(pageDir, opts.ViewerPath)
		if err != nil {
			return pr, fmt.Errorf("viewer path: %w", err)
		}
		rw = rw.WithViewerJS(filepath.ToSlash(viewer))
	}

	res := rw.Rewrite(string(data), pageDir)
	pr.Diagrams = res.Diagrams
	pr.ScriptInjected = res.ScriptInjected

	// Diagrams are resolved in the source tree. The output mirrors it, but
	// assets are only copied once every page is done.
	if opts.CheckMissing {
		for _, d := range res.Diagrams {
			target, ok := localTarget(d.Src, filepath.Dir(src), opts.Root)
			if !ok {
				continue
			}
			if _, err := os.Stat(target); err != nil {
				opts.Logger.Warn("diagram file not found", "page", rel, "src", d.Src)
				pr.Missing = append(pr.Missing, d.Src)
			}
		}
	}

	if len(res.Diagrams) > 0 {
		opts.Logger.Debug("rewrote page", "page", rel, "diagrams", len(res.Diagrams))
	}

	if opts.DryRun || (!res.Changed() && opts.InPlace()) {
		return pr, nil
	}
	if err := writeFile(dst, []byte(res.HTML), info.Mode().Perm()); err != nil {
		return pr, err
	}
	return pr, nil
}

// rewriter builds the page rewriter for opts.
func (r *Runner) rewriter(opts Options) (*drawio.Rewriter, error) {
	return drawio.New(opts.Drawio, drawio.WithLogger(opts.Logger))
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

// localTarget resolves a diagram src to a file path. Root-relative srcs
// resolve against siteRoot. Absolute and protocol-relative URLs are not
// local.
func localTarget(src, pageDir, siteRoot string) (string, bool) {
	u, err := url.Parse(src)
	if err != nil || u.Scheme != "" || u.Host != "" || u.Opaque != "" || u.Path == "" {
		return "", false
	}
	if strings.HasPrefix(u.Path, "/") {
		return filepath.Join(siteRoot, filepath.FromSlash(path.Clean(u.Path))), true
	}
	return filepath.Join(pageDir, filepath.FromSlash(u.Path)), true
}

// scan lists the files under opts.Root. The output tree is skipped when it
// lies inside Root.
func scan(opts Options) (site, error) {
	var s site
	err := filepath.WalkDir(opts.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != opts.Root && !opts.InPlace() && p == opts.Output {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(opts.Root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if opts.Selected(rel) {
			s.pages = append(s.pages, rel)
		} else {
			s.other = append(s.other, rel)
		}
		return nil
	})
	return s, err
}

// copyFiles mirrors non-page files into opts.Output.
func copyFiles(ctx context.Context, opts Options, files []string) (int, error) {
	n := 0
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		src := filepath.Join(opts.Root, filepath.FromSlash(rel))
		dst := filepath.Join(opts.Output, filepath.FromSlash(rel))
		if err := copyFile(src, dst); err != nil {
			opts.Logger.Warn("failed to copy file", "file", rel, "err", err)
			continue
		}
		n++
	}
	return n, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// writeFile writes data through a temporary file so readers never see a
// partially written page.
func writeFile(dst string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".mxembed-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
