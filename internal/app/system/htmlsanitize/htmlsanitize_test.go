package htmlsanitize_test

import (
	"testing"

	"github.com/dalemusser/stratachat/internal/app/system/htmlsanitize"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"empty", "", ""},
		{"plain", "Hello, World!", "Hello, World!"},
		{"ampersand survives", "Tom & Jerry", "Tom & Jerry"},
		{"tags stripped", "<b>hi</b> there", "hi there"},
		{"script removed", "<script>alert('x')</script>", ""},
		{"only whitespace", "   \n\t", ""},
		{"tag-only is empty", "<p></p>", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := htmlsanitize.PlainText(tt.in); got != tt.want {
				t.Errorf("PlainText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitize_KeepsFormatting(t *testing.T) {
	in := "<p><strong>Bold</strong> and <em>italic</em></p>"
	if got := htmlsanitize.Sanitize(in); got != in {
		t.Errorf("Sanitize(%q) = %q", in, got)
	}
}

func TestSanitize_RemovesScriptAndHandlers(t *testing.T) {
	got := htmlsanitize.Sanitize(`<p onclick="x()">Hi</p><script>alert(1)</script>`)
	if got != "<p>Hi</p>" {
		t.Errorf("Sanitize = %q, want %q", got, "<p>Hi</p>")
	}
}
