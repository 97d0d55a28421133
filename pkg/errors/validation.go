package errors

import (
	"net/url"
	"strings"
	"unicode"
)

// ValidateViewerURL validates the src of the injected viewer script.
//
// Both absolute URLs and page-relative paths are accepted, since a vendored
// viewer is referenced relative to each page. The rules are:
//   - Not empty
//   - No whitespace or control characters
//   - Absolute URLs must use the http or https scheme
func ValidateViewerURL(raw string) error {
	if raw == "" {
		return New(ErrCodeInvalidURL, "viewer URL cannot be empty")
	}

	for _, r := range raw {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidURL, "viewer URL contains whitespace or control characters")
		}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Wrap(ErrCodeInvalidURL, err, "invalid viewer URL %q", raw)
	}
	if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" {
		return New(ErrCodeInvalidURL, "viewer URL must use http or https scheme, got %q", u.Scheme)
	}

	return nil
}

// ValidateURL validates an absolute URL that will be fetched.
// It ensures the URL has a safe scheme (http or https) and a host.
func ValidateURL(raw string) error {
	if raw == "" {
		return New(ErrCodeInvalidURL, "URL cannot be empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Wrap(ErrCodeInvalidURL, err, "invalid URL %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return New(ErrCodeInvalidURL, "URL must use http or https scheme")
	}
	if u.Host == "" {
		return New(ErrCodeInvalidURL, "URL must have a host")
	}

	return nil
}

// ValidateExtension validates a diagram file extension such as ".drawio".
func ValidateExtension(ext string) error {
	if ext == "" {
		return New(ErrCodeInvalidConfig, "extension cannot be empty")
	}

	if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
		return New(ErrCodeInvalidConfig, "extension %q must start with a dot followed by a name", ext)
	}

	if strings.ContainsAny(ext[1:], "./\\") {
		return New(ErrCodeInvalidConfig, "extension %q must be a single suffix", ext)
	}

	for _, r := range ext {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidConfig, "extension %q contains whitespace or control characters", ext)
		}
	}

	return nil
}

// ValidatePath validates a file path inside a site directory.
// It prevents path traversal and ensures reasonable path length.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}
