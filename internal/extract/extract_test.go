package extract

import (
	"strings"
	"testing"
)

const articleHTML = `<!DOCTYPE html>
<html lang="en">
<head><title>The Water Cycle</title></head>
<body>
<nav><a href="/">Home</a><a href="/about">About</a></nav>
<article>
<h1>The Water Cycle</h1>
<p>Water evaporates from oceans, lakes, and rivers when heated by the sun.
The vapor rises into the atmosphere where it cools and condenses into clouds.
Eventually the droplets grow heavy enough to fall back as precipitation.</p>
<p>Some of that water soaks into the ground and replenishes aquifers, while
the rest runs off into streams and returns to the sea, closing the loop.</p>
</article>
<footer>Copyright 2024</footer>
<script>trackPageView();</script>
</body>
</html>`

func TestFromHTML(t *testing.T) {
	got := FromHTML(articleHTML, "https://example.com/water-cycle")

	if !strings.Contains(got.Text, "evaporates from oceans") {
		t.Errorf("FromHTML() text missing article body:\n%s", got.Text)
	}
	if got.Title != "The Water Cycle" {
		t.Errorf("FromHTML() title = %q", got.Title)
	}
	if strings.Contains(got.Text, "trackPageView") {
		t.Error("FromHTML() leaked script content")
	}
}

func TestStripTags(t *testing.T) {
	got := StripTags(`<html><head><style>p{color:red}</style></head><body><p>hello</p><script>x()</script><div>world</div></body></html>`)

	if !strings.Contains(got, "hello") || !strings.Contains(got, "world") {
		t.Errorf("StripTags() = %q", got)
	}
	if strings.Contains(got, "x()") || strings.Contains(got, "color") {
		t.Errorf("StripTags() leaked script/style: %q", got)
	}
}

func TestStripTagsMalformed(t *testing.T) {
	if got := StripTags("<p>unclosed <b>tags"); !strings.Contains(got, "unclosed") {
		t.Errorf("StripTags() = %q", got)
	}
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"english", "The quick brown fox jumps over the lazy dog near the quiet river bank every single morning.", "en"},
		{"spanish", "El rápido zorro marrón salta sobre el perro perezoso cerca del río tranquilo cada mañana.", "es"},
		{"too short", "hi", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectLanguage(tt.text); got != tt.want {
				t.Errorf("DetectLanguage() = %q, want %q", got, tt.want)
			}
		})
	}
}
