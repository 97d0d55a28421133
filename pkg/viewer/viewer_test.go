package viewer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/matzehuels/mxembed/pkg/cache"
	"github.com/matzehuels/mxembed/pkg/errors"
)

const script = "window.GraphViewer={};"

// newTestFetcher returns a Fetcher that retries without sleeping.
func newTestFetcher(t *testing.T, c cache.Cache) *Fetcher {
	t.Helper()
	f := NewFetcher(c, nil)
	f.retry = func(ctx context.Context, fn func() error) error {
		var err error
		for range 3 {
			if err = fn(); err == nil || !cache.IsRetryable(err) {
				return err
			}
		}
		return err
	}
	return f
}

func newFileCache(t *testing.T) cache.Cache {
	t.Helper()
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestFetchCaches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "mxembed/") {
			t.Errorf("User-Agent = %q", ua)
		}
		w.Write([]byte(script))
	}))
	defer srv.Close()

	f := newTestFetcher(t, newFileCache(t))
	ctx := context.Background()
	url := srv.URL + "/js/viewer-static.min.js"

	data, cached, err := f.Fetch(ctx, url, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if cached || string(data) != script {
		t.Errorf("first Fetch = %q, cached=%v", data, cached)
	}

	data, cached, err = f.Fetch(ctx, url, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !cached || string(data) != script {
		t.Errorf("second Fetch = %q, cached=%v", data, cached)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hits = %d, want 1", got)
	}

	if _, cached, err = f.Fetch(ctx, url, true); err != nil || cached {
		t.Errorf("refresh Fetch cached=%v err=%v", cached, err)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("server hits after refresh = %d, want 2", got)
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(script))
	}))
	defer srv.Close()

	data, _, err := newTestFetcher(t, nil).Fetch(context.Background(), srv.URL+"/viewer.js", false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != script {
		t.Errorf("Fetch = %q", data)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("server hits = %d, want 3", got)
	}
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   errors.Code
		hits   int32
	}{
		{"not found", http.StatusNotFound, errors.ErrCodeFileNotFound, 1},
		{"forbidden", http.StatusForbidden, errors.ErrCodeNetwork, 1},
		{"server error", http.StatusInternalServerError, errors.ErrCodeNetwork, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, _, err := newTestFetcher(t, nil).Fetch(context.Background(), srv.URL+"/viewer.js", false)
			if got := errors.GetCode(err); got != tt.code {
				t.Errorf("code = %v, want %v (err: %v)", got, tt.code, err)
			}
			if got := hits.Load(); got != tt.hits {
				t.Errorf("server hits = %d, want %d", got, tt.hits)
			}
		})
	}
}

func TestFetchRejectsInvalidURL(t *testing.T) {
	for _, u := range []string{"", "../viewer.js", "file:///etc/passwd"} {
		if _, _, err := newTestFetcher(t, nil).Fetch(context.Background(), u, false); !errors.Is(err, errors.ErrCodeInvalidURL) {
			t.Errorf("Fetch(%q) error = %v, want INVALID_URL", u, err)
		}
	}
}

func TestVendor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(script))
	}))
	defer srv.Close()

	root := t.TempDir()
	f := newTestFetcher(t, nil)

	dst, err := f.Vendor(context.Background(), srv.URL+"/viewer.js", root, "assets/js/viewer.min.js", false)
	if err != nil {
		t.Fatalf("Vendor: %v", err)
	}
	if want := filepath.Join(root, "assets", "js", "viewer.min.js"); dst != want {
		t.Errorf("Vendor() = %q, want %q", dst, want)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != script {
		t.Errorf("vendored script = %q", data)
	}

	if _, err := f.Vendor(context.Background(), srv.URL+"/viewer.js", root, "../outside.js", false); !errors.Is(err, errors.ErrCodeInvalidPath) {
		t.Errorf("Vendor outside root error = %v, want INVALID_PATH", err)
	}
}
