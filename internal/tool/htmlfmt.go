package tool

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

var rawTextElements = map[string]bool{
	"script": true, "style": true, "pre": true, "textarea": true,
}

// BeautifyHTML parses code and re-renders it one element per line. Input
// without <html> or a doctype is treated as a body fragment.
func BeautifyHTML(code, unit string) (string, error) {
	lower := strings.ToLower(code)
	var nodes []*html.Node
	if strings.Contains(lower, "<html") || strings.Contains(lower, "<!doctype") {
		doc, err := html.Parse(strings.NewReader(code))
		if err != nil {
			return "", fmt.Errorf("parse html: %w", err)
		}
		for c := doc.FirstChild; c != nil; c = c.NextSibling {
			nodes = append(nodes, c)
		}
	} else {
		body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
		frag, err := html.ParseFragment(strings.NewReader(code), body)
		if err != nil {
			return "", fmt.Errorf("parse html: %w", err)
		}
		nodes = frag
	}

	var lines []string
	for _, n := range nodes {
		writeHTMLNode(&lines, n, 0, unit)
	}
	return strings.Join(lines, "\n"), nil
}

func writeHTMLNode(lines *[]string, n *html.Node, depth int, unit string) {
	indent := strings.Repeat(unit, depth)
	switch n.Type {
	case html.DoctypeNode:
		*lines = append(*lines, indent+"<!DOCTYPE "+n.Data+">")
	case html.CommentNode:
		*lines = append(*lines, indent+"<!--"+n.Data+"-->")
	case html.TextNode:
		if text := collapseSpace(n.Data); text != "" {
			*lines = append(*lines, indent+html.EscapeString(text))
		}
	case html.ElementNode:
		open := openTag(n)
		if voidElements[n.Data] {
			*lines = append(*lines, indent+open)
			return
		}
		closeTag := "</" + n.Data + ">"
		if rawTextElements[n.Data] {
			*lines = append(*lines, indent+open+rawText(n)+closeTag)
			return
		}
		if inline, ok := inlineText(n); ok {
			*lines = append(*lines, indent+open+inline+closeTag)
			return
		}
		*lines = append(*lines, indent+open)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			writeHTMLNode(lines, c, depth+1, unit)
		}
		*lines = append(*lines, indent+closeTag)
	}
}

func openTag(n *html.Node) string {
	var b strings.Builder
	b.WriteString("<" + n.Data)
	for _, a := range n.Attr {
		b.WriteString(" ")
		if a.Namespace != "" {
			b.WriteString(a.Namespace + ":")
		}
		b.WriteString(a.Key)
		if a.Val != "" {
			b.WriteString(`="` + html.EscapeString(a.Val) + `"`)
		}
	}
	b.WriteString(">")
	return b.String()
}

// inlineText reports whether n holds only a short text child.
func inlineText(n *html.Node) (string, bool) {
	if n.FirstChild == nil {
		return "", true
	}
	if n.FirstChild != n.LastChild || n.FirstChild.Type != html.TextNode {
		return "", false
	}
	text := collapseSpace(n.FirstChild.Data)
	if len(text) > 80 {
		return "", false
	}
	return html.EscapeString(text), true
}

func rawText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
