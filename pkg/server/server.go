// Package server serves a built site for local preview, rewriting diagram
// images in pages as they are requested.
//
// Pages on disk are never modified. Everything that is not a page is
// served as is.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/mxembed/pkg/drawio"
)

const shutdownTimeout = 5 * time.Second

// Options configures a Server.
type Options struct {
	Root   string // site directory. Required.
	Drawio drawio.Config
	Logger *log.Logger
}

// Server is a preview server for one site directory.
type Server struct {
	dir    string
	root   *os.Root
	rw     *drawio.Rewriter
	logger *log.Logger
}

// New opens opts.Root for serving. Call Close when done.
func New(opts Options) (*Server, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("root is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	dir, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, err
	}
	rw, err := drawio.New(opts.Drawio, drawio.WithLogger(opts.Logger))
	if err != nil {
		return nil, err
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open site: %w", err)
	}
	return &Server{dir: dir, root: root, rw: rw, logger: opts.Logger}, nil
}

// Close releases the site directory.
func (s *Server) Close() error { return s.root.Close() }

// Handler returns the HTTP handler for the site.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, "ok\n")
	})
	r.Get("/*", s.serveFile)
	return r
}

// ListenAndServe serves the site on addr until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is like ListenAndServe but accepts connections on ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.logger.Info("serving site", "root", s.dir, "addr", "http://"+ln.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if name == "" {
		name = "."
	}

	f, info, err := s.open(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	if info.IsDir() {
		if !strings.HasSuffix(r.URL.Path, "/") {
			http.Redirect(w, r, path.Clean("/"+name)+"/", http.StatusMovedPermanently)
			return
		}
		name = path.Join(name, "index.html")
		if f, info, err = s.open(name); err != nil {
			http.NotFound(w, r)
			return
		}
		defer f.Close()
		if info.IsDir() {
			http.NotFound(w, r)
			return
		}
	}

	if !isPage(name) {
		http.ServeContent(w, r, name, info.ModTime(), f)
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		s.logger.Error("failed to read page", "page", name, "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pageDir := filepath.Join(s.dir, filepath.FromSlash(path.Dir(name)))
	res := s.rw.Rewrite(string(data), pageDir)
	if res.Changed() {
		s.logger.Debug("rewrote page", "page", name, "diagrams", len(res.Diagrams))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeContent(w, r, name, info.ModTime(), strings.NewReader(res.HTML))
}

// open opens name inside the site root. Names that escape the root,
// including through symlinks, fail.
func (s *Server) open(name string) (*os.File, os.FileInfo, error) {
	f, err := s.root.Open(name)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, info, nil
}

func isPage(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ".html" || ext == ".htm"
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"id", middleware.GetReqID(r.Context()))
		}()
		next.ServeHTTP(ww, r)
	})
}
