package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/mxembed/pkg/observability"
)

const diagramPage = `<!DOCTYPE html><html><head><title>t</title></head><body><p>intro</p><img src="%s" alt="diagram"></body></html>`

func page(src string) string { return strings.Replace(diagramPage, "%s", src, 1) }

// writeSite creates files (slash path -> contents) under a new temp dir.
func writeSite(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func readFile(t *testing.T, p string) string {
	t.Helper()
	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestValidateAndSetDefaults(t *testing.T) {
	root := t.TempDir()

	opts := Options{Root: root}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("ValidateAndSetDefaults: %v", err)
	}
	if opts.Output != opts.Root {
		t.Errorf("Output = %q, want Root %q", opts.Output, opts.Root)
	}
	if opts.Jobs <= 0 {
		t.Errorf("Jobs = %d, want > 0", opts.Jobs)
	}
	if diff := cmp.Diff(DefaultInclude, opts.Include); diff != "" {
		t.Errorf("Include mismatch (-want +got):\n%s", diff)
	}
	if opts.Drawio.Extension != ".drawio" {
		t.Errorf("Drawio.Extension = %q", opts.Drawio.Extension)
	}
	if opts.Logger == nil {
		t.Error("Logger not set")
	}
	if !opts.InPlace() {
		t.Error("InPlace() = false for default output")
	}
}

func TestValidateAndSetDefaultsErrors(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "index.html")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		opts Options
	}{
		{"no root", Options{}},
		{"missing root", Options{Root: filepath.Join(root, "missing")}},
		{"root is file", Options{Root: file}},
		{"root inside output", Options{Root: root, Output: filepath.Dir(root)}},
		{"bad glob", Options{Root: root, Include: []string{"[a-"}}},
		{"bad extension", Options{Root: root}},
	}
	tests[5].opts.Drawio.Extension = "drawio"

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.opts.ValidateAndSetDefaults(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSelected(t *testing.T) {
	opts := Options{
		Include: []string{"*.html", "*.htm"},
		Exclude: []string{"404.html", "drafts/*"},
	}
	tests := []struct {
		rel  string
		want bool
	}{
		{"index.html", true},
		{"guide/setup/index.html", true},
		{"legacy.htm", true},
		{"404.html", false},
		{"errors/404.html", false},
		{"drafts/wip.html", false},
		{"assets/app.js", false},
		{"diagrams/a.drawio", false},
	}
	for _, tt := range tests {
		if got := opts.Selected(tt.rel); got != tt.want {
			t.Errorf("Selected(%q) = %v, want %v", tt.rel, got, tt.want)
		}
	}
}

func TestLocalTarget(t *testing.T) {
	pageDir := filepath.FromSlash("/site/guide")
	siteRoot := filepath.FromSlash("/site")

	tests := []struct {
		src    string
		want   string
		wantOK bool
	}{
		{"a.drawio", "/site/guide/a.drawio", true},
		{"../diagrams/a.drawio", "/site/diagrams/a.drawio", true},
		{"/diagrams/a.drawio", "/site/diagrams/a.drawio", true},
		{"a%20b.drawio?raw=1#x", "/site/guide/a b.drawio", true},
		{"https://example.com/a.drawio", "", false},
		{"//cdn.example.com/a.drawio", "", false},
		{"data:text/plain,a.drawio", "", false},
	}
	for _, tt := range tests {
		got, ok := localTarget(tt.src, pageDir, siteRoot)
		if ok != tt.wantOK || (ok && got != filepath.FromSlash(tt.want)) {
			t.Errorf("localTarget(%q) = %q, %v; want %q, %v", tt.src, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestExecuteInPlace(t *testing.T) {
	about := `<html><body><img src="photo.png"></body></html>`
	root := writeSite(t, map[string]string{
		"index.html":       page("diagrams/a.drawio"),
		"about/index.html": about,
		"style.css":        "body{}",
	})

	result, err := NewRunner(nil).Execute(context.Background(), Options{Root: root})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	want := Stats{Pages: 2, Changed: 1, Diagrams: 1}
	got := result.Stats
	got.Duration = 0
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Stats mismatch (-want +got):\n%s", diff)
	}

	index := readFile(t, filepath.Join(root, "index.html"))
	if !strings.Contains(index, `class="mxgraph"`) {
		t.Errorf("index.html not rewritten:\n%s", index)
	}
	if strings.Contains(index, "<img") {
		t.Errorf("index.html still contains the image:\n%s", index)
	}
	if got := readFile(t, filepath.Join(root, "about", "index.html")); got != about {
		t.Errorf("about/index.html changed:\n%s", got)
	}
}

func TestExecuteOutputMirror(t *testing.T) {
	src := page("a.drawio")
	root := writeSite(t, map[string]string{
		"index.html":        src,
		"plain.html":        "<p>nothing</p>",
		"assets/style.css":  "body{}",
		"diagrams/a.drawio": "<mxfile/>",
	})
	out := filepath.Join(t.TempDir(), "public")

	result, err := NewRunner(nil).Execute(context.Background(), Options{Root: root, Output: out, Jobs: 2})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Stats.Copied != 2 {
		t.Errorf("Copied = %d, want 2", result.Stats.Copied)
	}
	if got := readFile(t, filepath.Join(root, "index.html")); got != src {
		t.Error("source page modified")
	}
	if got := readFile(t, filepath.Join(out, "index.html")); !strings.Contains(got, "data-mxgraph") {
		t.Errorf("output page not rewritten:\n%s", got)
	}
	if got := readFile(t, filepath.Join(out, "plain.html")); got != "<p>nothing</p>" {
		t.Errorf("plain.html = %q", got)
	}
	if got := readFile(t, filepath.Join(out, "assets", "style.css")); got != "body{}" {
		t.Errorf("style.css = %q", got)
	}
}

func TestExecuteSkipsOutputInsideRoot(t *testing.T) {
	root := writeSite(t, map[string]string{
		"index.html":        page("a.drawio"),
		"public/stale.html": page("b.drawio"),
	})

	result, err := NewRunner(nil).Execute(context.Background(), Options{Root: root, Output: filepath.Join(root, "public")})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for _, p := range result.Pages {
		if strings.HasPrefix(p.Path, "public/") {
			t.Errorf("output tree was processed: %s", p.Path)
		}
	}
	if result.Stats.Pages != 1 {
		t.Errorf("Pages = %d, want 1", result.Stats.Pages)
	}
}

func TestExecuteDryRun(t *testing.T) {
	src := page("a.drawio")
	root := writeSite(t, map[string]string{"index.html": src})

	result, err := NewRunner(nil).Execute(context.Background(), Options{Root: root, DryRun: true})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Stats.Changed != 1 {
		t.Errorf("Changed = %d, want 1", result.Stats.Changed)
	}
	if got := readFile(t, filepath.Join(root, "index.html")); got != src {
		t.Error("dry run wrote the page")
	}
}

func TestExecuteCheckMissing(t *testing.T) {
	doc := `<html><body>` +
		`<img src="a.drawio">` +
		`<img src="b.drawio">` +
		`<img src="/shared/c.drawio">` +
		`<img src="https://example.com/d.drawio">` +
		`</body></html>`
	root := writeSite(t, map[string]string{
		"guide/index.html":   doc,
		"guide/a.drawio":     "<mxfile/>",
		"shared/c.drawio":    "<mxfile/>",
		"guide/unrelated.js": "",
	})

	result, err := NewRunner(nil).Execute(context.Background(), Options{Root: root, CheckMissing: true})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.Pages) != 1 {
		t.Fatalf("Pages = %d, want 1", len(result.Pages))
	}
	if diff := cmp.Diff([]string{"b.drawio"}, result.Pages[0].Missing); diff != "" {
		t.Errorf("Missing mismatch (-want +got):\n%s", diff)
	}
	if result.Stats.Missing != 1 || result.Stats.Diagrams != 4 {
		t.Errorf("Stats = %+v", result.Stats)
	}
}

func TestExecuteCheckMissingMirror(t *testing.T) {
	root := writeSite(t, map[string]string{
		"guide/index.html": `<html><body><img src="a.drawio"><img src="/b.drawio"><img src="c.drawio"></body></html>`,
		"guide/a.drawio":   "<mxfile/>",
		"b.drawio":         "<mxfile/>",
	})

	for _, dryRun := range []bool{false, true} {
		out := filepath.Join(t.TempDir(), "site")
		result, err := NewRunner(nil).Execute(context.Background(), Options{
			Root:         root,
			Output:       out,
			CheckMissing: true,
			DryRun:       dryRun,
		})
		if err != nil {
			t.Fatalf("Execute(dryRun=%v): %v", dryRun, err)
		}
		if len(result.Pages) != 1 {
			t.Fatalf("Pages = %d, want 1", len(result.Pages))
		}
		if diff := cmp.Diff([]string{"c.drawio"}, result.Pages[0].Missing); diff != "" {
			t.Errorf("dryRun=%v: Missing mismatch (-want +got):\n%s", dryRun, diff)
		}
		if result.Stats.Missing != 1 {
			t.Errorf("dryRun=%v: Stats.Missing = %d, want 1", dryRun, result.Stats.Missing)
		}
	}
}

func TestExecuteViewerPath(t *testing.T) {
	root := writeSite(t, map[string]string{
		"index.html":            page("a.drawio"),
		"docs/guide/index.html": page("a.drawio"),
		"assets/viewer.min.js":  "",
	})

	_, err := NewRunner(nil).Execute(context.Background(), Options{
		Root:       root,
		ViewerPath: filepath.Join(root, "assets", "viewer.min.js"),
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	tests := map[string]string{
		"index.html":            `<script src="assets/viewer.min.js">`,
		"docs/guide/index.html": `<script src="../../assets/viewer.min.js">`,
	}
	for rel, want := range tests {
		got := readFile(t, filepath.Join(root, filepath.FromSlash(rel)))
		if !strings.Contains(got, want) {
			t.Errorf("%s: missing %s in\n%s", rel, want, got)
		}
	}
}

func TestExecuteCancelled(t *testing.T) {
	root := writeSite(t, map[string]string{"index.html": page("a.drawio")})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(nil).Execute(ctx, Options{Root: root})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
}

type recordingHooks struct {
	observability.NoopPipelineHooks
	mu       sync.Mutex
	pages    []string
	diagrams int
	changed  int
}

func (h *recordingHooks) OnPageComplete(_ context.Context, page string, diagrams int, _ time.Duration, _ error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pages = append(h.pages, page)
	h.diagrams += diagrams
}

func (h *recordingHooks) OnRunComplete(_ context.Context, _ string, changed int, _ time.Duration, _ error) {
	h.changed = changed
}

func TestExecuteReportsHooks(t *testing.T) {
	hooks := &recordingHooks{}
	observability.SetPipelineHooks(hooks)
	t.Cleanup(observability.Reset)

	root := writeSite(t, map[string]string{
		"a.html": page("a.drawio"),
		"b.html": "<p>b</p>",
	})
	if _, err := NewRunner(nil).Execute(context.Background(), Options{Root: root}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(hooks.pages) != 2 || hooks.diagrams != 1 || hooks.changed != 1 {
		t.Errorf("hooks saw pages=%v diagrams=%d changed=%d", hooks.pages, hooks.diagrams, hooks.changed)
	}
}

func TestWatch(t *testing.T) {
	root := writeSite(t, map[string]string{"index.html": "<p>empty</p>"})

	w, err := NewRunner(nil).NewWatcher(Options{Root: root})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()
	w.Debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan PageResult, 16)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, func(pr PageResult) { results <- pr }) }()

	if err := os.MkdirAll(filepath.Join(root, "guide"), 0o755); err != nil {
		t.Fatal(err)
	}
	// Give the watcher a moment to pick up the new directory.
	time.Sleep(100 * time.Millisecond)
	target := filepath.Join(root, "guide", "index.html")
	if err := os.WriteFile(target, []byte(page("a.drawio")), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case pr := <-results:
			if pr.Path != "guide/index.html" || !pr.Changed() {
				continue
			}
			if got := readFile(t, target); !strings.Contains(got, "data-mxgraph") {
				t.Errorf("page not rewritten:\n%s", got)
			}
			cancel()
			if err := <-done; err != nil {
				t.Errorf("Run() = %v", err)
			}
			return
		case <-deadline:
			t.Fatal("timed out waiting for page")
		}
	}
}
