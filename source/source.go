// Package source reads the text to summarize from files, standard input
// and feeds.
package source

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Stdin is the path File reads standard input for.
const Stdin = "-"

// File returns the contents of path, or of standard input for "-".
func File(path string) (string, error) {
	if path == Stdin {
		return Read(os.Stdin)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read returns everything r yields as text.
func Read(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(data), nil
}

const blockElements = "p, div, li, h1, h2, h3, h4, h5, h6, blockquote, pre, tr, section, article"

// HTMLToText strips markup from an HTML fragment. Block elements end with a
// blank line and <br> becomes a line break. Plain text passes through.
func HTMLToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("create document from reader: %w", err)
	}

	doc.Find("script, style").Remove()
	doc.Find("br").Each(func(_ int, br *goquery.Selection) {
		br.ReplaceWithHtml("\n")
	})
	doc.Find(blockElements).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n\n")
	})

	return tidy(doc.Text()), nil
}

// tidy trims every line and keeps at most one blank line in a row.
func tidy(text string) string {
	var b strings.Builder
	blank := false
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			blank = b.Len() > 0
			continue
		}
		if blank {
			b.WriteString("\n\n")
		} else if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(line)
		blank = false
	}
	return b.String()
}
