package analysis

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const maxHeadings = 40

// extractor accumulates page facts during a single tree walk.
type extractor struct {
	base *url.URL
	snap *Snapshot
	text strings.Builder
}

// ExtractSnapshot parses an HTML document and fills the content fields of a
// Snapshot. maxText caps the stored text excerpt in runes; the word count
// always covers the whole page.
func ExtractSnapshot(r io.Reader, base *url.URL, maxText int) (*Snapshot, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	e := &extractor{base: base, snap: &Snapshot{}}
	if base != nil {
		e.snap.FinalURL = base.String()
	}
	e.walk(doc)

	full := strings.Join(strings.Fields(e.text.String()), " ")
	e.snap.WordCount = len(strings.Fields(full))
	e.snap.Text, e.snap.Truncated = truncateRunes(full, maxText)
	return e.snap, nil
}

func (e *extractor) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Svg, atom.Iframe:
			return
		case atom.Html:
			e.snap.Language = attr(n, "lang")
		case atom.Title:
			if e.snap.Title == "" {
				e.snap.Title = collapse(textOf(n))
			}
			return
		case atom.Meta:
			e.meta(n)
		case atom.H1, atom.H2, atom.H3:
			if t := collapse(textOf(n)); t != "" && len(e.snap.Headings) < maxHeadings {
				e.snap.Headings = append(e.snap.Headings, Heading{Level: int(n.Data[1] - '0'), Text: t})
			}
		case atom.A:
			e.link(attr(n, "href"))
		case atom.Img:
			e.snap.Images++
			if !hasAttr(n, "alt") {
				e.snap.ImagesMissingAlt++
			}
		case atom.Br, atom.P, atom.Div, atom.Li, atom.Tr, atom.Section, atom.Article:
			e.text.WriteByte(' ')
		}
	}
	if n.Type == html.TextNode {
		e.text.WriteString(n.Data)
		e.text.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		e.walk(c)
	}
}

func (e *extractor) meta(n *html.Node) {
	name := strings.ToLower(attr(n, "name"))
	prop := strings.ToLower(attr(n, "property"))
	content := collapse(attr(n, "content"))
	switch {
	case name == "description":
		e.snap.Description = content
	case prop == "og:description" && e.snap.Description == "":
		e.snap.Description = content
	case prop == "og:title" && e.snap.Title == "":
		e.snap.Title = content
	}
}

func (e *extractor) link(href string) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return
	}
	e.snap.Links++
	u, err := url.Parse(href)
	if err != nil || e.base == nil {
		return
	}
	abs := e.base.ResolveReference(u)
	if (abs.Scheme == "http" || abs.Scheme == "https") && !strings.EqualFold(abs.Hostname(), e.base.Hostname()) {
		e.snap.ExternalLinks++
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, limit int) (string, bool) {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:limit])) + "…", true
}
