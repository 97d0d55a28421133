package drawio

import "github.com/matzehuels/mxembed/pkg/errors"

const (
	// DefaultViewerJS is the diagrams.net viewer script injected into pages.
	DefaultViewerJS = "https://viewer.diagrams.net/js/viewer-static.min.js"

	// DefaultExtension is the file suffix identifying diagram sources.
	DefaultExtension = ".drawio"
)

// Values of the viewer configuration that are identical for every diagram.
const (
	highlightColor = "#0000ff"
	toolbarItems   = "zoom layers tags lightbox tab"
	editTarget     = "_blank"
)

// Config controls how diagrams are detected and which viewer is loaded.
type Config struct {
	// ViewerJS is the src of the injected viewer <script>. It may be an
	// absolute URL or a path relative to the page.
	ViewerJS string `json:"viewer_js" toml:"viewer_js"`

	// Extension is the diagram file suffix, matched case-insensitively
	// against the end of an image's src. It must start with a dot.
	Extension string `json:"extension" toml:"extension"`
}

// DefaultConfig returns the configuration used when nothing is specified.
func DefaultConfig() Config {
	return Config{
		ViewerJS:  DefaultViewerJS,
		Extension: DefaultExtension,
	}
}

// WithDefaults returns a copy of c with empty fields filled from DefaultConfig.
func (c Config) WithDefaults() Config {
	if c.ViewerJS == "" {
		c.ViewerJS = DefaultViewerJS
	}
	if c.Extension == "" {
		c.Extension = DefaultExtension
	}
	return c
}

// Validate reports whether c can be used to build a Rewriter.
func (c Config) Validate() error {
	if err := errors.ValidateViewerURL(c.ViewerJS); err != nil {
		return err
	}
	return errors.ValidateExtension(c.Extension)
}

// RenderingConfig is the per-diagram payload read by the viewer library from
// the data-mxgraph attribute. Field order is significant: it is the key order
// of the encoded JSON object.
type RenderingConfig struct {
	Highlight string `json:"highlight"`
	Nav       bool   `json:"nav"`
	Resize    bool   `json:"resize"`
	Toolbar   string `json:"toolbar"`
	Edit      string `json:"edit"`
	URL       string `json:"url"`
}

// NewRenderingConfig returns the viewer configuration for the diagram at url.
// url is stored as given.
func NewRenderingConfig(url string) RenderingConfig {
	return RenderingConfig{
		Highlight: highlightColor,
		Nav:       true,
		Resize:    true,
		Toolbar:   toolbarItems,
		Edit:      editTarget,
		URL:       url,
	}
}
