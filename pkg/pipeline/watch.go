package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/matzehuels/mxembed/pkg/drawio"
)

// DefaultDebounce is how long a Watcher waits for writes to settle before
// processing changed pages.
const DefaultDebounce = 200 * time.Millisecond

// Watcher re-processes pages as they are written under Root.
type Watcher struct {
	// Debounce overrides DefaultDebounce when positive.
	Debounce time.Duration

	runner *Runner
	opts   Options
	rw     *drawio.Rewriter
	fsw    *fsnotify.Watcher
}

// NewWatcher validates opts and starts watching every directory under
// opts.Root. Events are only delivered once Run is called.
func (r *Runner) NewWatcher(opts Options) (*Watcher, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	rw, err := r.rewriter(opts)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{runner: r, opts: opts, rw: rw, fsw: fsw}
	if err := w.addTree(opts.Root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Watch processes changed pages until ctx is cancelled, calling onPage for
// each of them.
func (r *Runner) Watch(ctx context.Context, opts Options, onPage func(PageResult)) error {
	w, err := r.NewWatcher(opts)
	if err != nil {
		return err
	}
	defer w.Close()
	return w.Run(ctx, onPage)
}

// Close stops watching.
func (w *Watcher) Close() error { return w.fsw.Close() }

// Run delivers events until ctx is cancelled or the watcher is closed.
// onPage may be nil.
func (w *Watcher) Run(ctx context.Context, onPage func(PageResult)) error {
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	pending := make(map[string]struct{})
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if rel, ok := w.handle(ev); ok {
				pending[rel] = struct{}{}
				timer.Reset(debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.opts.Logger.Warn("watch error", "err", err)

		case <-timer.C:
			pages := make([]string, 0, len(pending))
			for rel := range pending {
				pages = append(pages, rel)
			}
			clear(pending)
			slices.Sort(pages)

			for _, rel := range pages {
				pr, err := w.runner.ProcessPage(ctx, w.rw, w.opts, rel)
				if err != nil {
					w.opts.Logger.Warn("skipping page", "page", rel, "err", err)
				}
				if onPage != nil {
					onPage(pr)
				}
			}
		}
	}
}

// handle returns the page an event refers to, if any. New directories are
// added to the watch list.
func (w *Watcher) handle(ev fsnotify.Event) (string, bool) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return "", false
	}
	if hidden(filepath.Base(ev.Name)) {
		return "", false
	}
	if !w.opts.InPlace() && within(w.opts.Output, ev.Name) {
		return "", false
	}

	if ev.Has(fsnotify.Create) {
		if isDir(ev.Name) {
			if err := w.addTree(ev.Name); err != nil {
				w.opts.Logger.Warn("failed to watch directory", "dir", ev.Name, "err", err)
			}
			return "", false
		}
	}

	rel, err := filepath.Rel(w.opts.Root, ev.Name)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if !w.opts.Selected(rel) {
		return "", false
	}
	return rel, true
}

// addTree watches dir and all directories below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.opts.Root && !w.opts.InPlace() && p == w.opts.Output {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
}

func hidden(name string) bool { return strings.HasPrefix(name, ".") }

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
