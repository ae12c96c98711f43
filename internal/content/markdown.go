package content

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	htmlmd "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// tableConverter handles element kinds the custom transformation table
// doesn't cover (tables, definition lists) by delegating to the
// general-purpose HTML-to-Markdown engine, scoped to just that subtree.
var tableConverter = htmlmd.NewConverter("", true, nil)

// ToMarkdown walks the cleaned main-content subtree and renders it per the
// element-transformation table of spec.md §4.3.
func ToMarkdown(main *goquery.Selection) string {
	var sb strings.Builder
	for _, n := range main.Nodes {
		renderNode(&sb, n)
	}
	return normalizeWhitespace(sb.String())
}

func renderNode(sb *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
	case html.ElementNode:
		renderElement(sb, n)
	default:
		renderChildren(sb, n)
	}
}

func renderChildren(sb *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderNode(sb, c)
	}
}

func renderElement(sb *strings.Builder, n *html.Node) {
	switch n.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		level := int(n.DataAtom - atom.H1 + 1)
		sb.WriteString("\n\n" + strings.Repeat("#", level) + " " + strings.TrimSpace(textContent(n)) + "\n\n")
	case atom.P:
		sb.WriteString("\n\n" + strings.TrimSpace(textContent(n)) + "\n\n")
	case atom.Pre:
		lang := codeLanguage(n)
		sb.WriteString("\n\n```" + lang + "\n" + strings.Trim(textContent(n), "\n") + "\n```\n\n")
	case atom.Code:
		if isBlockCode(n) {
			lang := codeLanguage(n)
			sb.WriteString("\n\n```" + lang + "\n" + strings.Trim(textContent(n), "\n") + "\n```\n\n")
		} else {
			sb.WriteString("`" + textContent(n) + "`")
		}
	case atom.A:
		text := strings.TrimSpace(textContent(n))
		if text != "" {
			sb.WriteString("[" + text + "]")
		}
	case atom.Img:
		alt := attr(n, "alt")
		sb.WriteString("[IMAGE: " + alt + "]")
	case atom.Ul:
		sb.WriteString("\n\n")
		renderList(sb, n, false)
		sb.WriteString("\n")
	case atom.Ol:
		sb.WriteString("\n\n")
		renderList(sb, n, true)
		sb.WriteString("\n")
	case atom.Blockquote:
		lines := strings.Split(strings.TrimSpace(textContent(n)), "\n")
		sb.WriteString("\n\n")
		for _, l := range lines {
			sb.WriteString("> " + strings.TrimSpace(l) + "\n")
		}
		sb.WriteString("\n")
	case atom.Hr:
		sb.WriteString("\n\n----\n\n")
	case atom.Table, atom.Dl:
		if md, err := convertSubtree(n); err == nil {
			sb.WriteString("\n\n" + strings.TrimSpace(md) + "\n\n")
		} else {
			renderChildren(sb, n)
		}
	case atom.Br:
		sb.WriteString("\n")
	case atom.Script, atom.Style, atom.Noscript, atom.Iframe, atom.Form, atom.Link, atom.Meta:
		// already stripped by Clean, but skip defensively if encountered.
	default:
		if isBlockElement(n) {
			sb.WriteString("\n\n")
			renderChildren(sb, n)
			sb.WriteString("\n\n")
		} else {
			renderChildren(sb, n)
		}
	}
}

func renderList(sb *strings.Builder, list *html.Node, ordered bool) {
	i := 1
	for li := list.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.DataAtom != atom.Li {
			continue
		}
		text := strings.TrimSpace(textContent(li))
		if ordered {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i, text))
		} else {
			sb.WriteString("- " + text + "\n")
		}
		i++
	}
}

// convertSubtree renders just n (and its descendants) back to HTML and
// hands it to the general-purpose converter, used for element kinds (table,
// dl) the custom table above deliberately doesn't special-case.
func convertSubtree(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", err
	}
	return tableConverter.ConvertString(buf.String())
}

func isBlockCode(n *html.Node) bool {
	return n.Parent != nil && n.Parent.DataAtom == atom.Pre
}

func codeLanguage(n *html.Node) string {
	class := attr(n, "class")
	if class == "" {
		class = attr(n, "data-lang")
	}
	for _, field := range strings.Fields(class) {
		if strings.HasPrefix(field, "language-") {
			return strings.TrimPrefix(field, "language-")
		}
		if strings.HasPrefix(field, "lang-") {
			return strings.TrimPrefix(field, "lang-")
		}
	}
	return attr(n, "data-lang")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			return
		}
		if node.Type == html.ElementNode && node.DataAtom == atom.Br {
			sb.WriteString("\n")
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if node.Type == html.ElementNode && isBlockElement(node) {
			sb.WriteString("\n")
		}
	}
	walk(n)
	return sb.String()
}

func isBlockElement(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Div, atom.Section, atom.Article, atom.Main, atom.Table, atom.Tr, atom.Td, atom.Th,
		atom.Dl, atom.Dt, atom.Dd, atom.Figure, atom.Figcaption:
		return true
	default:
		return false
	}
}

var (
	multiSpace   = regexp.MustCompile(`[ \t]+`)
	multiNewline = regexp.MustCompile(`\n{3,}`)
)

// normalizeWhitespace collapses runs of spaces, caps consecutive blank
// lines at one, and right-trims each line.
func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		l = multiSpace.ReplaceAllString(l, " ")
		lines[i] = strings.TrimRight(l, " \t")
	}
	joined := strings.Join(lines, "\n")
	joined = multiNewline.ReplaceAllString(joined, "\n\n")
	return strings.TrimSpace(joined)
}
