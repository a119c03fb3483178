package indexer

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// skipped elements never contribute visible text
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
}

// ExtractText returns the visible text of a page with whitespace collapsed
func ExtractText(page *Page) (string, error) {
	switch {
	case page.ContentType == "application/pdf" || bytes.HasPrefix(page.Body, []byte("%PDF-")):
		return PDFToText(page.Body)
	case page.ContentType == "text/plain" || page.ContentType == "text/markdown":
		return collapse(string(page.Body)), nil
	default:
		return HTMLToText(page.Body)
	}
}

// HTMLToText drops script, style and noscript content and joins the
// remaining text nodes with single spaces.
func HTMLToText(body []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipped[n.DataAtom] {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return collapse(sb.String()), nil
}

// PDFToText extracts the plain text layer of a PDF document
func PDFToText(body []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	text, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	raw, err := io.ReadAll(text)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return collapse(string(raw)), nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
