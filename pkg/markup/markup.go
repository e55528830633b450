// Package markup turns stored document bodies into plain text.
package markup

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/agentstation/librarian/pkg/library"
)

// skipped elements contribute no text.
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
}

var headings = map[atom.Atom]bool{
	atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.H5: true, atom.H6: true,
}

// StripHTML returns the visible text of an HTML fragment with entities
// decoded and whitespace collapsed to single spaces.
func StripHTML(src string) string {
	root, err := parse(src)
	if err != nil {
		return collapse(src)
	}
	var sb strings.Builder
	appendText(&sb, root)
	return collapse(sb.String())
}

// MarkdownToHTML renders markdown with the default goldmark settings.
func MarkdownToHTML(src string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Text returns the plain text of a document body. Markdown is rendered to
// HTML first so markup characters do not count as text.
func Text(c library.Content) string {
	return StripHTML(toHTML(c))
}

// Headings returns up to limit non-empty heading texts in document order.
// limit <= 0 means no limit.
func Headings(c library.Content, limit int) []string {
	root, err := parse(toHTML(c))
	if err != nil {
		return nil
	}
	var out []string
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && headings[n.DataAtom] {
			var sb strings.Builder
			appendText(&sb, n)
			if text := collapse(sb.String()); text != "" {
				out = append(out, text)
				if limit > 0 && len(out) >= limit {
					return false
				}
			}
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	walk(root)
	return out
}

func toHTML(c library.Content) string {
	if c.Format != library.FormatMarkdown {
		return c.Text
	}
	rendered, err := MarkdownToHTML(c.Text)
	if err != nil {
		return c.Text
	}
	return rendered
}

func parse(src string) (*html.Node, error) {
	return html.Parse(strings.NewReader(src))
}

func appendText(sb *strings.Builder, n *html.Node) {
	if n.Type == html.ElementNode && skipped[n.DataAtom] {
		return
	}
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		sb.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		appendText(sb, c)
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
