// Package config loads mxembed.toml, the per-site configuration file.
//
// A configuration file is optional. Keys that are absent keep the values of
// [Default], and command-line flags override whatever the file sets:
//
//	viewer_js = "https://viewer.diagrams.net/js/viewer-static.min.js"
//	extension = ".drawio"
//	jobs = 8
//	include = ["*.html"]
//	exclude = ["404.html"]
//	check_missing = true
//
//	[vendor]
//	enabled = false
//	path = "assets/javascripts/viewer-static.min.js"
//	ttl = "168h"
package config

import (
	"bytes"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/mxembed/pkg/drawio"
	"github.com/matzehuels/mxembed/pkg/errors"
)

// FileName is the configuration file looked up by [Find].
const FileName = "mxembed.toml"

// DefaultVendorPath is where a vendored viewer script is written, relative
// to the site root.
const DefaultVendorPath = "assets/javascripts/viewer-static.min.js"

// DefaultVendorTTL is how long a downloaded viewer script stays cached.
const DefaultVendorTTL = 7 * 24 * time.Hour

// File is the decoded contents of mxembed.toml.
type File struct {
	ViewerJS     string   `toml:"viewer_js"`
	Extension    string   `toml:"extension"`
	Jobs         int      `toml:"jobs,omitempty"`
	Include      []string `toml:"include"`
	Exclude      []string `toml:"exclude"`
	CheckMissing bool     `toml:"check_missing"`
	Vendor       Vendor   `toml:"vendor"`
}

// Vendor controls serving the viewer script from the site itself instead of
// the public CDN.
type Vendor struct {
	Enabled bool     `toml:"enabled"`
	Path    string   `toml:"path"`
	TTL     Duration `toml:"ttl"`
}

// Duration is a time.Duration written as a Go duration string ("168h").
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Default returns the configuration used when no file is present.
func Default() File {
	return File{
		ViewerJS:  drawio.DefaultViewerJS,
		Extension: drawio.DefaultExtension,
		Include:   []string{"*.html"},
		Exclude:   []string{},
		Vendor: Vendor{
			Path: DefaultVendorPath,
			TTL:  Duration(DefaultVendorTTL),
		},
	}
}

// Load reads and validates the file at p. Keys missing from the file keep
// their default values; unknown keys are rejected.
func Load(p string) (File, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return File{}, errors.Wrap(errors.ErrCodeFileNotFound, err, "config file %s not found", p)
		}
		return File{}, errors.Wrap(errors.ErrCodeInternal, err, "read config %s", p)
	}
	return Parse(data, p)
}

// Parse decodes configuration from data. name is only used in errors.
func Parse(data []byte, name string) (File, error) {
	f := Default()
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return File{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", name)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return File{}, errors.New(errors.ErrCodeInvalidConfig, "%s: unknown keys: %s", name, strings.Join(keys, ", "))
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// Find walks up from dir looking for [FileName] and returns its path.
// It returns "" when no file exists in dir or any of its parents.
func Find(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		p := filepath.Join(dir, FileName)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// Validate checks every field of f.
func (f File) Validate() error {
	if err := f.DrawioConfig().Validate(); err != nil {
		return err
	}
	if f.Jobs < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "jobs must not be negative, got %d", f.Jobs)
	}
	for _, pattern := range append(append([]string{}, f.Include...), f.Exclude...) {
		if _, err := path.Match(pattern, ""); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "invalid glob %q", pattern)
		}
	}
	if f.Vendor.Enabled {
		if err := errors.ValidatePath(f.Vendor.Path); err != nil {
			return err
		}
	}
	if f.Vendor.TTL < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "vendor ttl must not be negative")
	}
	return nil
}

// DrawioConfig returns the rewriter settings of f.
func (f File) DrawioConfig() drawio.Config {
	return drawio.Config{ViewerJS: f.ViewerJS, Extension: f.Extension}
}

// Encode writes f as TOML.
func (f File) Encode(w io.Writer) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(f); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}
