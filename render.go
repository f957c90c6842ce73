package nw

import (
	"bytes"
	"log"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Layout is a layout variant of rendered widgets.
type Layout string

// Layout constants
const (
	LayoutCompact Layout = "gn-compact" // thumbnail before body
	LayoutList    Layout = "gn-list"    // thumbnail after body
	LayoutCards   Layout = "gn-cards"   // 2-column cards (on desktop)
)

const (
	noItemsText = "No news items found."
)

// RenderOptions is options for rendering items.
type RenderOptions struct {
	Layout       Layout
	OpenInNewTab bool
	FaviconSize  int
}

// ParseLayout parses given string into a layout.
//
// Both `compact` and `gn-compact` forms are accepted; unknown values fall back to `LayoutCompact`.
func ParseLayout(s string) Layout {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "gn-") {
	case "list":
		return LayoutList
	case "cards":
		return LayoutCards
	default:
		return LayoutCompact
	}
}

// Render renders given items as an HTML fragment.
func Render(items []EnrichedItem, opts RenderOptions) string {
	rendered, err := SerializeHTML(BuildNodes(items, opts))
	if err != nil {
		log.Printf("failed to render items: %s", err)
		return ""
	}
	return rendered
}

// SerializeHTML serializes given node tree.
func SerializeHTML(node *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, node); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// BuildNodes builds a node tree of given items.
//
// If there is no item, a single placeholder paragraph is built instead.
func BuildNodes(items []EnrichedItem, opts RenderOptions) *html.Node {
	if len(items) == 0 {
		return element(atom.P, nil, textNode(noItemsText))
	}

	layout := ParseLayout(string(opts.Layout))

	root := element(atom.Div, []html.Attribute{
		{Key: "class", Val: "news-widget " + string(layout)},
	})
	for _, item := range items {
		root.AppendChild(articleNode(item, layout, opts))
		root.AppendChild(element(atom.Hr, []html.Attribute{
			{Key: "class", Val: "nw-divider"},
		}))
	}

	return root
}

// build an `<article>` node of given item
func articleNode(item EnrichedItem, layout Layout, opts RenderOptions) *html.Node {
	article := element(atom.Article, []html.Attribute{
		{Key: "class", Val: "nw-item"},
	})

	var thumb *html.Node
	if isHTTPURL(item.ImageURL) {
		thumb = element(atom.A, linkAttrs("nw-thumb", item.Link, opts.OpenInNewTab),
			element(atom.Img, []html.Attribute{
				{Key: "loading", Val: "lazy"},
				{Key: "decoding", Val: "async"},
				{Key: "src", Val: item.ImageURL},
				{Key: "alt", Val: ""},
			}),
		)
	}

	if thumb != nil && layout != LayoutList {
		article.AppendChild(thumb)
	}

	body := element(atom.Div, []html.Attribute{
		{Key: "class", Val: "nw-body"},
	})

	// title
	body.AppendChild(element(atom.H3, []html.Attribute{
		{Key: "class", Val: "nw-title"},
	},
		element(atom.A, linkAttrs("", item.Link, opts.OpenInNewTab), textNode(item.Title)),
	))

	// source line
	source := element(atom.Div, []html.Attribute{
		{Key: "class", Val: "nw-source"},
	})
	if favicon := FaviconURL(item.Domain, opts.FaviconSize); favicon != "" {
		source.AppendChild(element(atom.Img, []html.Attribute{
			{Key: "class", Val: "nw-favicon"},
			{Key: "src", Val: favicon},
			{Key: "alt", Val: ""},
		}))
	}
	source.AppendChild(textNode(sourceLine(item)))
	body.AppendChild(source)

	// excerpt
	if item.Dek != "" {
		body.AppendChild(element(atom.P, []html.Attribute{
			{Key: "class", Val: "nw-excerpt"},
		}, textNode(item.Dek)))
	}

	// time
	if item.TimeAgo != "" {
		body.AppendChild(element(atom.Div, []html.Attribute{
			{Key: "class", Val: "nw-meta"},
		},
			element(atom.Span, []html.Attribute{
				{Key: "class", Val: "nw-time"},
			}, textNode(item.TimeAgo)),
		))
	}

	article.AppendChild(body)

	if thumb != nil && layout == LayoutList {
		article.AppendChild(thumb)
	}

	return article
}

// source label of given item, or its domain if there is no label
func sourceLine(item EnrichedItem) string {
	if item.SourceLabel != "" {
		return item.SourceLabel
	}
	return item.Domain
}

// attributes of a link
//
// non-http(s) urls are not linked.
func linkAttrs(class, link string, newTab bool) (attrs []html.Attribute) {
	if class != "" {
		attrs = append(attrs, html.Attribute{Key: "class", Val: class})
	}
	if isHTTPURL(link) {
		attrs = append(attrs, html.Attribute{Key: "href", Val: link})
	}
	if newTab {
		attrs = append(attrs,
			html.Attribute{Key: "target", Val: "_blank"},
			html.Attribute{Key: "rel", Val: "noopener nofollow"},
		)
	}
	return attrs
}

// create an element node with given attributes and children
func element(a atom.Atom, attrs []html.Attribute, children ...*html.Node) *html.Node {
	node := &html.Node{
		Type:     html.ElementNode,
		DataAtom: a,
		Data:     a.String(),
		Attr:     attrs,
	}
	for _, child := range children {
		node.AppendChild(child)
	}
	return node
}

// create a text node
func textNode(text string) *html.Node {
	return &html.Node{
		Type: html.TextNode,
		Data: text,
	}
}
