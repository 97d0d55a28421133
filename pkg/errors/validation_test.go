package errors

import (
	"testing"
)

func TestValidateViewerURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"default viewer", "https://viewer.diagrams.net/js/viewer-static.min.js", false},
		{"http", "http://localhost:8080/viewer.js", false},
		{"protocol relative", "//cdn.example.com/viewer.js", false},
		{"page relative", "../assets/viewer-static.min.js", false},
		{"root relative", "/assets/viewer.js", false},

		{"empty", "", true},
		{"javascript scheme", "javascript:alert(1)", true},
		{"data scheme", "data:text/javascript,alert(1)", true},
		{"file scheme", "file:///etc/passwd", true},
		{"space", "viewer static.js", true},
		{"newline", "viewer\n.js", true},
		{"null byte", "viewer\x00.js", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateViewerURL(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateViewerURL(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && GetCode(err) != ErrCodeInvalidURL {
				t.Errorf("ValidateViewerURL(%q) code = %v, want %v", tt.input, GetCode(err), ErrCodeInvalidURL)
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"https", "https://viewer.diagrams.net/js/viewer-static.min.js", false},
		{"http", "http://127.0.0.1:9000/viewer.js", false},

		{"empty", "", true},
		{"relative", "../viewer.js", true},
		{"no host", "https:///viewer.js", true},
		{"ftp", "ftp://example.com/viewer.js", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateExtension(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"drawio", ".drawio", false},
		{"dio", ".dio", false},
		{"upper case", ".DRAWIO", false},

		{"empty", "", true},
		{"dot only", ".", true},
		{"no dot", "drawio", true},
		{"double suffix", ".drawio.svg", true},
		{"slash", "./drawio", true},
		{"space", ".draw io", true},
		{"tab", ".drawio\t", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateExtension(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateExtension(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "viewer.js", false},
		{"nested", "assets/javascripts/viewer-static.min.js", false},
		{"dotfile", ".well-known/viewer.js", false},

		{"empty", "", true},
		{"too long", string(make([]byte, 600)), true},
		{"absolute", "/etc/passwd", true},
		{"traversal", "assets/../../secret", true},
		{"backslash", "assets\\viewer.js", true},
		{"null byte", "viewer\x00.js", true},
		{"control char", "viewer\x01.js", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
