package security

import (
	"strings"
	"testing"
)

// TestSanitize_AllowedTags は許可タグが正しく通過することを検証する。
func TestSanitize_AllowedTags(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name         string
		input        string
		wantContains []string
	}{
		{"見出し", "<h2>Servicios</h2>", []string{"<h2>Servicios</h2>"}},
		{"段落", "<p>Hola mundo</p>", []string{"<p>Hola mundo</p>"}},
		{"リスト", "<ul><li>uno</li><li>dos</li></ul>", []string{"<ul>", "<li>uno</li>", "</ul>"}},
		{"コードブロック", "<pre><code>go run .</code></pre>", []string{"<pre><code>go run .</code></pre>"}},
		{"強調と取り消し線", "<strong>a</strong><em>b</em><del>c</del>", []string{"<strong>a</strong>", "<em>b</em>", "<del>c</del>"}},
		{"表", "<table><thead><tr><th>Plan</th></tr></thead><tbody><tr><td>Starter</td></tr></tbody></table>", []string{"<table>", "<th>Plan</th>", "<td>Starter</td>"}},
		{"画像", `<img src="https://cdn.example.com/a.png" alt="logo">`, []string{`src="https://cdn.example.com/a.png"`, `alt="logo"`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("Sanitize(%q) = %q, want to contain %q", tt.input, got, want)
				}
			}
		})
	}
}

// TestSanitize_ForbiddenContent は危険なタグと属性が除去されることを検証する。
func TestSanitize_ForbiddenContent(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name       string
		input      string
		wantAbsent []string
	}{
		{"script", `<p>ok</p><script>alert(1)</script>`, []string{"<script", "alert(1)"}},
		{"iframe", `<iframe src="https://evil.example"></iframe>`, []string{"<iframe"}},
		{"style", `<style>body{display:none}</style>`, []string{"<style"}},
		{"onイベント属性", `<p onclick="alert(1)">x</p>`, []string{"onclick"}},
		{"javascriptスキーム", `<a href="javascript:alert(1)">x</a>`, []string{"javascript:"}},
		{"imgのonerror", `<img src="https://a.example/x.png" onerror="alert(1)">`, []string{"onerror"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, bad := range tt.wantAbsent {
				if strings.Contains(got, bad) {
					t.Errorf("Sanitize(%q) = %q, must not contain %q", tt.input, got, bad)
				}
			}
		})
	}
}

// TestSanitize_Links は外部リンクと内部リンクの扱いを検証する。
func TestSanitize_Links(t *testing.T) {
	sanitizer := NewContentSanitizer()

	external := sanitizer.Sanitize(`<a href="https://calendly.com/korvad">Reserva</a>`)
	for _, want := range []string{`href="https://calendly.com/korvad"`, `target="_blank"`, "noopener", "noreferrer"} {
		if !strings.Contains(external, want) {
			t.Errorf("external link %q missing %q", external, want)
		}
	}

	internal := sanitizer.Sanitize(`<a href="/precios">Precios</a>`)
	if !strings.Contains(internal, `href="/precios"`) {
		t.Errorf("relative link dropped: %q", internal)
	}
	if strings.Contains(internal, "_blank") {
		t.Errorf("relative link must open in the same tab: %q", internal)
	}
}

func TestSanitize_EmptyInput(t *testing.T) {
	if got := NewContentSanitizer().Sanitize(""); got != "" {
		t.Errorf("Sanitize(\"\") = %q, want empty", got)
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	sanitizer := NewContentSanitizer()
	input := `<p>Hola <a href="https://example.com">enlace</a></p><script>x</script>`

	first := sanitizer.Sanitize(input)
	second := sanitizer.Sanitize(first)
	if first != second {
		t.Errorf("not idempotent:\nfirst:  %q\nsecond: %q", first, second)
	}
}
