package drawio

import (
	"regexp"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// documentMarker matches the tags whose presence makes input a full document
// rather than a body fragment. The name must end at a boundary so that
// <header> or <body-x> stay fragment content.
var documentMarker = regexp.MustCompile(`(?i)<(!doctype|html|head|body)[\s>/]`)

func isDocument(document string) bool {
	return documentMarker.MatchString(document)
}

// parse returns the top-level nodes of document and whether it was parsed as
// a fragment. The parser is lenient; errors only come from the reader.
func parse(document string) ([]*html.Node, bool, error) {
	if isDocument(document) {
		doc, err := html.Parse(strings.NewReader(document))
		if err != nil {
			return nil, false, err
		}
		return []*html.Node{doc}, false, nil
	}
	nodes, err := html.ParseFragment(strings.NewReader(document), fragmentContext)
	if err != nil {
		return nil, true, err
	}
	return nodes, true, nil
}

func render(nodes []*html.Node) (string, error) {
	var b strings.Builder
	for _, n := range nodes {
		if err := html.Render(&b, n); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

// transform copies a parsed tree, substituting replacement nodes for the
// images in replace. The source tree is left untouched.
type transform struct {
	replace  map[*html.Node][]*html.Node
	diagrams []Diagram
	body     *html.Node // first body element of the copy
}

// apply returns the nodes that stand for n in the new tree.
func (t *transform) apply(n *html.Node) []*html.Node {
	if nodes, ok := t.replace[n]; ok {
		return nodes
	}
	cp := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      slices.Clone(n.Attr),
	}
	if t.body == nil && cp.Type == html.ElementNode && cp.DataAtom == atom.Body {
		t.body = cp
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		for _, out := range t.apply(c) {
			cp.AppendChild(out)
		}
	}
	return []*html.Node{cp}
}
