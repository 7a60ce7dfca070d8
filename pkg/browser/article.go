package browser

import (
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/html"
)

// mainContentMinLength is how much text a candidate container needs before
// MainText prefers it over the whole body.
const mainContentMinLength = 200

// LeadText returns the text of the first maxParagraphs <p> elements inside
// #mw-content-text, each followed by a blank line. Pages without that
// container yield the text of the whole body.
func LeadText(rawHTML string, maxParagraphs int) (string, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", errors.Wrap(err, "failed to parse HTML")
	}

	article := findFirst(doc, byID("mw-content-text"))
	if article == nil {
		return bodyText(doc), nil
	}

	var b strings.Builder
	count := 0
	walk(article, func(n *html.Node) bool {
		if count >= maxParagraphs {
			return false
		}
		if isElement(n, "p") {
			b.WriteString(innerText(n))
			b.WriteString("\n\n")
			count++
			return false
		}
		return true
	})
	return b.String(), nil
}

// MainText returns the text of the page's main content container. Candidates
// are tried in order (article, [role="main"], .article-content, .content,
// main, #content) and the first with more than 200 characters wins; otherwise
// the whole body is used.
func MainText(rawHTML string) (string, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", errors.Wrap(err, "failed to parse HTML")
	}

	candidates := []func(*html.Node) bool{
		byTag("article"),
		byAttr("role", "main"),
		byClass("article-content"),
		byClass("content"),
		byTag("main"),
		byID("content"),
	}
	for _, match := range candidates {
		if n := findFirst(doc, match); n != nil {
			if text := innerText(n); len(text) > mainContentMinLength {
				return text, nil
			}
		}
	}
	return bodyText(doc), nil
}

func bodyText(doc *html.Node) string {
	if body := findFirst(doc, byTag("body")); body != nil {
		return innerText(body)
	}
	return innerText(doc)
}

// walk visits n's descendants in document order. visit returns false to skip
// a node's children.
func walk(n *html.Node, visit func(*html.Node) bool) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if visit(c) {
			walk(c, visit)
		}
	}
}

func findFirst(root *html.Node, match func(*html.Node) bool) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if match(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

func isElement(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && strings.EqualFold(n.Data, tag)
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

func byTag(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool { return isElement(n, tag) }
}

func byID(id string) func(*html.Node) bool {
	return byAttr("id", id)
}

func byAttr(key, val string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		v, ok := attr(n, key)
		return ok && v == val
	}
}

func byClass(class string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		v, ok := attr(n, "class")
		if !ok {
			return false
		}
		for _, c := range strings.Fields(v) {
			if c == class {
				return true
			}
		}
		return false
	}
}

// innerText approximates the rendered text of n: hidden elements are dropped,
// whitespace inside text runs is collapsed and block elements end a line.
func innerText(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			writeCollapsed(&b, n.Data)
			return
		case html.CommentNode:
			return
		case html.ElementNode:
			tag := strings.ToLower(n.Data)
			if isHiddenElement(tag) {
				return
			}
			if tag == "br" {
				b.WriteString("\n")
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
		if n.Type == html.ElementNode && isBlockElement(strings.ToLower(n.Data)) {
			b.WriteString("\n")
		}
	}
	collect(n)
	return tidyLines(b.String())
}

func writeCollapsed(b *strings.Builder, s string) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		if s != "" {
			b.WriteString(" ")
		}
		return
	}
	if s[0] == ' ' || s[0] == '\n' || s[0] == '\t' {
		b.WriteString(" ")
	}
	b.WriteString(strings.Join(fields, " "))
	if last := s[len(s)-1]; last == ' ' || last == '\n' || last == '\t' {
		b.WriteString(" ")
	}
}

// tidyLines trims every line and drops empty ones.
func tidyLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

func isHiddenElement(tag string) bool {
	switch tag {
	case "script", "style", "noscript", "iframe", "embed", "object", "svg", "template", "head":
		return true
	}
	return false
}

func isBlockElement(tag string) bool {
	switch tag {
	case "div", "p", "section", "article", "header", "footer", "nav", "main", "aside",
		"h1", "h2", "h3", "h4", "h5", "h6", "ul", "ol", "li", "table", "tr",
		"form", "fieldset", "blockquote", "pre", "figure", "figcaption", "dl", "dt", "dd":
		return true
	}
	return false
}
