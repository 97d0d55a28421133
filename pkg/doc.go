// Package pkg holds the libraries behind mxembed.
//
// [drawio] is the core: it turns a rendered HTML page into the same page with
// every drawio image replaced by an interactive diagrams.net viewer. The
// remaining packages put it to work on whole sites:
//
//   - [pipeline] walks a built site and rewrites its pages in parallel,
//     once or continuously in watch mode
//   - [server] serves a site for preview, rewriting pages per request
//   - [viewer] downloads the viewer script so a site can host it
//   - [config] loads mxembed.toml
//   - [cache], [errors] and [observability] are shared infrastructure
//
// Rewriting a single page needs nothing but [drawio]:
//
//	html := drawio.Render(page, "site/guide")
package pkg
