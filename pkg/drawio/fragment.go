package drawio

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// fragmentTemplate is the replacement markup for one diagram. The style and
// class are what the viewer library looks for; only data-mxgraph varies.
const fragmentTemplate = `<div class="mxgraph" style="max-width:100%%;border:1px solid transparent;" data-mxgraph="%s"></div>`

// Fragment returns the widget markup that replaces an image whose src is src.
//
// The JSON payload is escaped for use inside a double-quoted attribute, so
// any quotes, angle brackets or ampersands in src survive the round trip.
func Fragment(src string) (string, error) {
	payload, err := encodeConfig(NewRenderingConfig(src))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(fragmentTemplate, html.EscapeString(payload)), nil
}

// encodeConfig marshals cfg without Go's HTML-safe escaping. Attribute
// escaping is applied separately and is the only escaping layer, so the
// payload decodes to the same characters the page author wrote.
func encodeConfig(cfg RenderingConfig) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(cfg); err != nil {
		return "", fmt.Errorf("encode rendering config: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// fragmentContext is the element in which replacement fragments are parsed.
var fragmentContext = &html.Node{
	Type:     html.ElementNode,
	Data:     "body",
	DataAtom: atom.Body,
}

// parseFragment builds the replacement nodes for the diagram at src.
func parseFragment(src string) ([]*html.Node, error) {
	markup, err := Fragment(src)
	if err != nil {
		return nil, err
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), fragmentContext)
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}
	return nodes, nil
}

// scriptNode returns a <script src="url"></script> element.
func scriptNode(url string) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     "script",
		DataAtom: atom.Script,
		Attr:     []html.Attribute{{Key: "src", Val: url}},
	}
}
