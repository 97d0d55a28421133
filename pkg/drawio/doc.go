// Package drawio rewrites draw.io diagram images in rendered HTML pages into
// interactive viewer widgets.
//
// Documentation generators render a Markdown image such as
// ![Architecture](diagrams/arch.drawio) as a plain <img> tag, which a browser
// cannot display. [Rewriter] finds every such image and replaces it with the
// markup expected by the diagrams.net viewer library:
//
//	<div class="mxgraph" style="max-width:100%;border:1px solid transparent;"
//	     data-mxgraph="{&#34;highlight&#34;:&#34;#0000ff&#34;, ...}"></div>
//
// and appends a single <script> tag loading the viewer to the page body.
//
// # Usage
//
//	rw, err := drawio.New(drawio.DefaultConfig(), drawio.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	out := rw.Render(page, filepath.Dir(outputPath))
//
// [Rewriter.Rewrite] performs the same transformation and additionally
// reports the diagrams it replaced, which callers use for statistics and
// for checking that the referenced files exist.
//
// # Guarantees
//
// Pages that do not reference any diagram are returned byte for byte, with
// or without parsing. The data-mxgraph payload always carries the image's
// src attribute verbatim as its url. A Rewriter holds no per-page state and
// is safe for concurrent use.
//
// # Fragments
//
// Input that does not look like a full document (no doctype, html, head or
// body tag) is treated as a body fragment and keeps its shape on output.
// Fragments have no body to append to, so diagrams are replaced but the
// viewer script is not injected and a warning is logged.
package drawio
