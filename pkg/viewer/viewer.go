// Package viewer downloads the diagrams.net viewer script so a site can
// serve it itself instead of loading it from the public CDN.
//
// Downloads go through a [cache.Cache]; the script is fetched once and
// reused until the cache entry expires.
package viewer

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/mxembed/pkg/buildinfo"
	"github.com/matzehuels/mxembed/pkg/cache"
	"github.com/matzehuels/mxembed/pkg/errors"
	"github.com/matzehuels/mxembed/pkg/observability"
)

const (
	httpTimeout = 30 * time.Second

	// maxScriptSize bounds a downloaded script. The static viewer is a few
	// megabytes.
	maxScriptSize = 32 << 20
)

// Fetcher downloads viewer scripts with caching and retries.
type Fetcher struct {
	// TTL is how long a downloaded script is cached.
	TTL time.Duration

	http   *http.Client
	cache  cache.Cache
	logger *log.Logger
	retry  func(context.Context, func() error) error
}

// NewFetcher creates a Fetcher. A nil cache disables caching and a nil
// logger discards output.
func NewFetcher(c cache.Cache, logger *log.Logger) *Fetcher {
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Fetcher{
		TTL:    cache.TTLViewer,
		http:   &http.Client{Timeout: httpTimeout},
		cache:  c,
		logger: logger,
		retry:  cache.RetryWithBackoff,
	}
}

// Fetch returns the script served at rawURL and whether it came from the
// cache. If refresh is true, the cache is bypassed and the result replaces
// any cached copy.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, refresh bool) ([]byte, bool, error) {
	if err := errors.ValidateURL(rawURL); err != nil {
		return nil, false, err
	}
	key := cache.ViewerKey(rawURL)

	if !refresh {
		data, hit, err := f.cache.Get(ctx, key)
		if err != nil {
			f.logger.Warn("cache read failed", "err", err)
		}
		if hit {
			observability.Cache().OnCacheHit(ctx, "viewer")
			f.logger.Debug("viewer script from cache", "url", rawURL, "bytes", len(data))
			return data, true, nil
		}
		observability.Cache().OnCacheMiss(ctx, "viewer")
	}

	var data []byte
	err := f.retry(ctx, func() error {
		var err error
		data, err = f.get(ctx, rawURL)
		return err
	})
	if err != nil {
		return nil, false, err
	}

	if err := f.cache.Set(ctx, key, data, f.TTL); err != nil {
		f.logger.Warn("cache write failed", "err", err)
	} else {
		observability.Cache().OnCacheSet(ctx, "viewer", len(data))
	}
	f.logger.Debug("downloaded viewer script", "url", rawURL, "bytes", len(data))
	return data, false, nil
}

// Vendor fetches the script at rawURL and writes it to relPath inside
// siteRoot. It returns the absolute path of the written file.
func (f *Fetcher) Vendor(ctx context.Context, rawURL, siteRoot, relPath string, refresh bool) (string, error) {
	if err := errors.ValidatePath(relPath); err != nil {
		return "", err
	}
	data, _, err := f.Fetch(ctx, rawURL, refresh)
	if err != nil {
		return "", err
	}

	root, err := filepath.Abs(siteRoot)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve %s", siteRoot)
	}
	dst := filepath.Join(root, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "create %s", filepath.Dir(dst))
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "write %s", dst)
	}
	return dst, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	u, _ := url.Parse(rawURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidURL, err, "build request")
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent())

	start := time.Now()
	observability.HTTP().OnRequest(ctx, req.Method, u.Host, u.Path)
	resp, err := f.http.Do(req)
	if err != nil {
		observability.HTTP().OnError(ctx, req.Method, u.Host, u.Path, err)
		if ctx.Err() != nil || stderrors.Is(err, context.DeadlineExceeded) {
			return nil, errors.Wrap(errors.ErrCodeTimeout, err, "fetch %s", rawURL)
		}
		return nil, cache.Retryable(errors.Wrap(errors.ErrCodeNetwork, err, "fetch %s", rawURL))
	}
	defer resp.Body.Close()
	observability.HTTP().OnResponse(ctx, req.Method, u.Host, u.Path, resp.StatusCode, time.Since(start))

	if err := checkStatus(rawURL, resp.StatusCode); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxScriptSize+1))
	if err != nil {
		return nil, cache.Retryable(errors.Wrap(errors.ErrCodeNetwork, err, "read %s", rawURL))
	}
	if len(data) > maxScriptSize {
		return nil, errors.New(errors.ErrCodeInvalidInput, "%s is larger than %d bytes", rawURL, maxScriptSize)
	}
	return data, nil
}

func checkStatus(rawURL string, code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return errors.New(errors.ErrCodeFileNotFound, "%s: not found", rawURL)
	case code >= 500:
		return cache.Retryable(errors.New(errors.ErrCodeNetwork, "%s: status %d", rawURL, code))
	default:
		return errors.New(errors.ErrCodeNetwork, "%s: status %d", rawURL, code)
	}
}
