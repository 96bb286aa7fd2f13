// Package extract converts stored upload files into plain text by their
// declared file-type tag.
package extract

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// ErrExtraction marks any failure to turn a stored file into usable text:
// an undecodable source, an unsupported type tag, or an empty result.
var ErrExtraction = errors.New("extraction failed")

// plainTextTypes are read verbatim as UTF-8.
var plainTextTypes = map[string]bool{
	"md":   true,
	"txt":  true,
	"csv":  true,
	"json": true,
	"yaml": true,
	"yml":  true,
	"log":  true,
	"rst":  true,
	"xml":  true,
}

// Extract reads the file at path and returns its plain-text content
// according to the declared file type. The result is never empty: a file
// with no extractable text is an extraction failure, not a silent skip.
func Extract(path string, fileType string) (string, error) {
	var (
		text string
		err  error
	)
	switch {
	case fileType == "pdf":
		text, err = extractPDF(path)
	case fileType == "html" || fileType == "htm":
		text, err = extractHTML(path)
	case plainTextTypes[fileType]:
		text, err = extractPlainText(path)
	default:
		return "", fmt.Errorf("%w: unsupported file type %q", ErrExtraction, fileType)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: no text extracted from %s file", ErrExtraction, fileType)
	}
	return text, nil
}

// extractPDF pulls text page by page, skipping pages with no extractable
// text, and joins the rest with blank lines.
func extractPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: open pdf: %v", ErrExtraction, err)
	}
	defer f.Close()

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page does not fail the document.
			continue
		}
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			pages = append(pages, trimmed)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

// extractHTML strips non-content elements and returns the visible text,
// one text node per line.
func extractHTML(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: read html: %v", ErrExtraction, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(raw)))
	if err != nil {
		return "", fmt.Errorf("%w: parse html: %v", ErrExtraction, err)
	}
	doc.Find("script,style,nav,footer,header").Remove()

	var b strings.Builder
	for _, node := range doc.Selection.Nodes {
		collectText(node, &b)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func collectText(node *html.Node, b *strings.Builder) {
	if node.Type == html.TextNode {
		if text := strings.TrimSpace(node.Data); text != "" {
			b.WriteString(text)
			b.WriteByte('\n')
		}
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, b)
	}
}

func extractPlainText(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: read file: %v", ErrExtraction, err)
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: file is not valid UTF-8", ErrExtraction)
	}
	return string(raw), nil
}
