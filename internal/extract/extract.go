// Package extract turns raw HTML into clean, chunked, deduplicated text
// ready for generation: readability-based content extraction with a DOM
// text fallback, language detection, token-aware splitting, and exact
// plus near-duplicate removal.
package extract

import (
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// ChunkMetadata carries provenance for a chunk.
type ChunkMetadata struct {
	SourceURL string `json:"source_url"`
	Language  string `json:"language"`
	Title     string `json:"title"`
}

// Chunk is one splitter output with its token count and position.
type Chunk struct {
	Content    string        `json:"content"`
	TokenCount int           `json:"token_count"`
	ChunkIndex int           `json:"chunk_index"`
	Metadata   ChunkMetadata `json:"metadata"`
}

// Document is one refined page: full extracted text plus its chunks.
type Document struct {
	URL      string  `json:"url"`
	Title    string  `json:"title"`
	Language string  `json:"language"`
	Content  string  `json:"content"`
	Chunks   []Chunk `json:"chunks"`
}

// Content holds what readability pulled out of a page.
type Content struct {
	Text     string
	Title    string
	Language string
}

// FromHTML extracts the main content of a page. When readability finds
// nothing usable the Text field is empty; callers should fall back to
// StripTags.
func FromHTML(rawHTML, pageURL string) Content {
	u, err := url.Parse(pageURL)
	if err != nil {
		u = &url.URL{}
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), u)
	if err != nil {
		return Content{}
	}
	return Content{
		Text:     strings.TrimSpace(article.TextContent),
		Title:    article.Title,
		Language: article.Language,
	}
}

// StripTags walks the DOM and collects visible text, one node per line.
// It is the fallback for pages readability cannot make sense of.
func StripTags(rawHTML string) string {
	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}

	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "head", "template":
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				parts = append(parts, text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return strings.Join(parts, "\n")
}
