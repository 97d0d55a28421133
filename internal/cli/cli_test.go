package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mxembed/pkg/config"
	"github.com/matzehuels/mxembed/pkg/errors"
)

const testPage = `<!DOCTYPE html><html><head></head><body><img src="arch.drawio"></body></html>`

func writeTestSite(t *testing.T, extra map[string]string) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{"index.html": testPage}
	for k, v := range extra {
		files[k] = v
	}
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

func execute(t *testing.T, args ...string) error {
	t.Helper()
	cmd := New(io.Discard, LogInfo).RootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	return cmd.ExecuteContext(context.Background())
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()
	want := []string{"render", "watch", "serve", "vendor", "cache", "config", "completion"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestRenderCommand(t *testing.T) {
	root := writeTestSite(t, map[string]string{mxembedConfig: "check_missing = true\n"})

	if err := execute(t, "render", root); err != nil {
		t.Fatalf("render: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(root, "index.html"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `class="mxgraph"`) {
		t.Errorf("page not rewritten:\n%s", data)
	}
}

func TestRenderCommandOutputAndDryRun(t *testing.T) {
	root := writeTestSite(t, nil)
	out := filepath.Join(t.TempDir(), "public")

	if err := execute(t, "render", root, "--dry-run", "-o", out); err != nil {
		t.Fatalf("render: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "index.html")); !os.IsNotExist(err) {
		t.Errorf("dry run wrote output: %v", err)
	}
	if data, _ := os.ReadFile(filepath.Join(root, "index.html")); string(data) != testPage {
		t.Error("dry run modified the site")
	}
}

func TestRenderCommandRejectsBadConfig(t *testing.T) {
	root := writeTestSite(t, map[string]string{mxembedConfig: "extension = \"drawio\"\n"})
	if err := execute(t, "render", root); err == nil {
		t.Error("expected configuration error")
	}
}

const mxembedConfig = config.FileName

func TestSiteFlagsOverrideConfig(t *testing.T) {
	root := writeTestSite(t, map[string]string{
		mxembedConfig: "extension = \".dio\"\ncheck_missing = true\njobs = 3\n",
	})

	var flags siteFlags
	cmd := &cobra.Command{Use: "test"}
	flags.bind(cmd, true)
	if err := cmd.ParseFlags([]string{"--extension", ".drawio", "--exclude", "404.html"}); err != nil {
		t.Fatal(err)
	}

	cfg, path, err := flags.load(cmd, root)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if path != filepath.Join(root, mxembedConfig) {
		t.Errorf("path = %q", path)
	}
	if cfg.Extension != ".drawio" {
		t.Errorf("Extension = %q, want flag value", cfg.Extension)
	}
	if !cfg.CheckMissing || cfg.Jobs != 3 {
		t.Errorf("file values lost: %+v", cfg)
	}
	if len(cfg.Exclude) != 1 || cfg.Exclude[0] != "404.html" {
		t.Errorf("Exclude = %v", cfg.Exclude)
	}

	opts := flags.pipelineOptions(cfg, root)
	if opts.Drawio.Extension != ".drawio" || opts.Jobs != 3 || !opts.CheckMissing {
		t.Errorf("pipelineOptions = %+v", opts)
	}
}

func TestConfigInit(t *testing.T) {
	dir := t.TempDir()

	if err := execute(t, "config", "init", dir); err != nil {
		t.Fatalf("config init: %v", err)
	}
	f, err := config.Load(filepath.Join(dir, mxembedConfig))
	if err != nil {
		t.Fatalf("generated config does not load: %v", err)
	}
	if f.Extension != ".drawio" {
		t.Errorf("Extension = %q", f.Extension)
	}

	if err := execute(t, "config", "init", dir); err == nil {
		t.Error("config init should refuse to overwrite")
	}
	if err := execute(t, "config", "init", dir, "--force"); err != nil {
		t.Errorf("config init --force: %v", err)
	}
}

func TestClearCache(t *testing.T) {
	dir := t.TempDir()
	for _, rel := range []string{"ab/one.json", "ab/two.json", "cd/three.json"} {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	n, err := clearCache(dir)
	if err != nil {
		t.Fatalf("clearCache: %v", err)
	}
	if n != 3 {
		t.Errorf("clearCache() = %d, want 3", n)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("cache dir not empty: %v", entries)
	}

	if n, err := clearCache(filepath.Join(dir, "missing")); err != nil || n != 0 {
		t.Errorf("clearCache(missing) = %d, %v", n, err)
	}
}

func TestErrorMessage(t *testing.T) {
	network := errors.Wrap(errors.ErrCodeNetwork, io.ErrUnexpectedEOF, "fetch %s", "https://viewer.example")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"plain", io.EOF, "EOF"},
		{"structured", errors.New(errors.ErrCodeInvalidConfig, "bad extension"), "bad extension"},
		{"structured with cause", network, "fetch https://viewer.example: unexpected EOF"},
		{"wrapped", fmt.Errorf("vendor: %w", network), "vendor: fetch https://viewer.example: unexpected EOF"},
		{
			"nested",
			errors.Wrap(errors.ErrCodeInternal, errors.New(errors.ErrCodeInvalidPath, "bad path"), "write"),
			"write: bad path",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorMessage(tt.err); got != tt.want {
				t.Errorf("errorMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReportErrorFromCommand(t *testing.T) {
	root := writeTestSite(t, map[string]string{mxembedConfig: "extension = \"drawio\"\n"})
	err := execute(t, "render", root)
	if err == nil {
		t.Fatal("expected configuration error")
	}

	var buf bytes.Buffer
	ReportError(&buf, err)
	out := buf.String()
	if strings.Contains(out, string(errors.ErrCodeInvalidConfig)) {
		t.Errorf("error code leaked into output: %q", out)
	}
	if !strings.Contains(out, "must start with a dot") || !strings.HasSuffix(out, "\n") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestPlural(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0 pages"},
		{1, "1 page"},
		{12, "12 pages"},
	}
	for _, tt := range tests {
		if got := plural(tt.n, "page"); got != tt.want {
			t.Errorf("plural(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
