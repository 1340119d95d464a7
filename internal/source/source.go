// Package source turns raw collaborator input (plain text or scraped HTML)
// into description strings the engine can score.
package source

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
)

// ReadDescription reads a description from path. Files ending in .html or
// .htm are reduced to their visible text; anything else is taken verbatim.
// A path of "-" reads standard input as plain text.
func ReadDescription(path string) (string, error) {
	if path == "-" {
		return Read(os.Stdin, false)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open description: %w", err)
	}
	defer f.Close()

	return Read(f, IsHTML(path))
}

// IsHTML reports whether path names an HTML file.
func IsHTML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return true
	}
	return false
}

// Read returns the description text in r, stripping markup when isHTML.
func Read(r io.Reader, isHTML bool) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read description: %w", err)
	}
	if isHTML {
		return StripHTML(string(data)), nil
	}
	return strings.TrimSpace(string(data)), nil
}

// StripHTML extracts the text nodes of an HTML fragment, dropping script and
// style bodies, and collapses runs of whitespace to single spaces.
func StripHTML(s string) string {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		// Fallback to string if parsing fails
		return strings.TrimSpace(s)
	}

	var parts []string
	var extractText func(*html.Node)
	extractText = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			parts = append(parts, n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extractText(c)
		}
	}
	extractText(doc)

	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
