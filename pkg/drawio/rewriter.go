package drawio

import (
	"regexp"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Diagram is one image reference that was replaced by a viewer widget.
type Diagram struct {
	Src string // src attribute, verbatim
	Alt string // alt attribute, empty when absent; not emitted
}

// Result describes the outcome of rewriting one page.
type Result struct {
	// HTML is the rewritten page, or the input itself when nothing matched.
	HTML string

	// Diagrams lists the replaced references in document order.
	Diagrams []Diagram

	// ScriptInjected reports whether the viewer script was appended to body.
	ScriptInjected bool
}

// Changed reports whether any diagram was replaced.
func (r Result) Changed() bool { return len(r.Diagrams) > 0 }

// Rewriter replaces diagram images with viewer widgets.
type Rewriter struct {
	viewerJS string
	needle   string         // lowercased extension for the fast path
	pattern  *regexp.Regexp // anchored, case-insensitive suffix match
	logger   Logger
}

// New creates a Rewriter. Empty fields of cfg take their default values.
func New(cfg Config, opts ...Option) (*Rewriter, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Rewriter{
		viewerJS: cfg.ViewerJS,
		needle:   strings.ToLower(cfg.Extension),
		pattern:  regexp.MustCompile(`(?i)` + regexp.QuoteMeta(cfg.Extension) + `$`),
		logger:   nopLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ViewerJS returns the script URL injected into rewritten pages.
func (r *Rewriter) ViewerJS() string { return r.viewerJS }

// WithViewerJS returns a copy of r that injects url instead of its own
// viewer script.
func (r *Rewriter) WithViewerJS(url string) *Rewriter {
	cp := *r
	cp.viewerJS = url
	return &cp
}

// Matches reports whether src names a diagram file.
func (r *Rewriter) Matches(src string) bool {
	return src != "" && r.pattern.MatchString(src)
}

// Render rewrites document and returns the resulting HTML. pageOutputDir is
// the directory the page will be written to; it is only used in diagnostics.
func (r *Rewriter) Render(document, pageOutputDir string) string {
	return r.Rewrite(document, pageOutputDir).HTML
}

// Rewrite rewrites document and reports which diagrams were replaced.
//
// It never fails: a page that cannot be processed is returned unchanged and
// the problem is reported to the logger.
func (r *Rewriter) Rewrite(document, pageOutputDir string) Result {
	unchanged := Result{HTML: document}

	if !strings.Contains(strings.ToLower(document), r.needle) {
		return unchanged
	}

	roots, fragment, err := parse(document)
	if err != nil {
		r.logger.Warn("failed to parse page", "dir", pageOutputDir, "err", err)
		return unchanged
	}

	var images []*html.Node
	for _, n := range roots {
		images = r.collect(n, images)
	}
	if len(images) == 0 {
		return unchanged
	}

	t := &transform{
		replace: make(map[*html.Node][]*html.Node, len(images)),
	}
	for _, img := range images {
		src, alt := attr(img, "src"), attr(img, "alt")
		nodes, err := parseFragment(src)
		if err != nil {
			r.logger.Warn("skipping diagram", "src", src, "dir", pageOutputDir, "err", err)
			continue
		}
		t.replace[img] = nodes
		t.diagrams = append(t.diagrams, Diagram{Src: src, Alt: alt})
	}
	if len(t.diagrams) == 0 {
		return unchanged
	}

	out := make([]*html.Node, 0, len(roots))
	for _, n := range roots {
		out = append(out, t.apply(n)...)
	}

	res := Result{Diagrams: t.diagrams}
	if t.body != nil {
		t.body.AppendChild(scriptNode(r.viewerJS))
		res.ScriptInjected = true
	} else {
		r.logger.Warn("page has no body element, viewer script not injected",
			"dir", pageOutputDir, "fragment", fragment)
	}

	rendered, err := render(out)
	if err != nil {
		r.logger.Warn("failed to render page", "dir", pageOutputDir, "err", err)
		return unchanged
	}
	res.HTML = rendered

	r.logger.Debug("replaced diagrams", "count", len(res.Diagrams), "dir", pageOutputDir)
	return res
}

// collect appends the diagram images under n to dst in document order.
func (r *Rewriter) collect(n *html.Node, dst []*html.Node) []*html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Img && n.Namespace == "" {
		if r.Matches(attr(n, "src")) {
			dst = append(dst, n)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		dst = r.collect(c, dst)
	}
	return dst
}

// attr returns the value of the first attribute named key, or "".
func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

var defaultRewriter = sync.OnceValue(func() *Rewriter {
	r, err := New(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return r
})

// Render rewrites document with DefaultConfig and no logging.
func Render(document, pageOutputDir string) string {
	return defaultRewriter().Render(document, pageOutputDir)
}
