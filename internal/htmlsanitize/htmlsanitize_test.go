package htmlsanitize_test

import (
	"strings"
	"testing"

	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/htmlsanitize"
)

func TestSanitizeKeepsSafeMarkup(t *testing.T) {
	in := "<p><strong>Bold</strong> and <em>italic</em></p>"
	if got := htmlsanitize.Sanitize(in); got != in {
		t.Fatalf("expected safe HTML preserved, got %q", got)
	}
}

func TestSanitizeRemovesScript(t *testing.T) {
	got := htmlsanitize.Sanitize("<p>Hello</p><script>alert('xss')</script>")
	if got != "<p>Hello</p>" {
		t.Fatalf("expected script removed, got %q", got)
	}
	got = htmlsanitize.Sanitize(`<a href="javascript:alert(1)">x</a>`)
	if strings.Contains(got, "javascript:") {
		t.Fatalf("expected javascript: href removed, got %q", got)
	}
}

func TestPlainText(t *testing.T) {
	if got := htmlsanitize.PlainText("  <b>Platform</b> team "); got != "Platform team" {
		t.Fatalf("unexpected plain text %q", got)
	}
	if got := htmlsanitize.PlainText("<script>x</script>"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	if got := htmlsanitize.PlainText(""); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
