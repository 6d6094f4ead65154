package richtext

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLConverter parses HTML fragments with golang.org/x/net/html.
type HTMLConverter struct{}

var _ Converter = (*HTMLConverter)(nil)

// NewHTMLConverter creates a new HTML to rich-text converter.
func NewHTMLConverter() *HTMLConverter {
	return &HTMLConverter{}
}

// Convert parses raw as an HTML body fragment.
func (c *HTMLConverter) Convert(raw string) (*Document, error) {
	return ParseHTML(raw)
}

// ParseHTML converts an HTML fragment into a rich-text document.
func ParseHTML(raw string) (*Document, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(raw), body)
	if err != nil {
		return nil, fmt.Errorf("ParseHTML: parse fragment: %w", err)
	}

	b := &builder{}
	return &Node{Type: TypeDoc, Content: b.blocks(nodes)}, nil
}

type builder struct{}

// blocks converts a sibling list in block context. Runs of inline content
// between block elements are wrapped in paragraphs.
func (b *builder) blocks(nodes []*html.Node) []*Node {
	var out []*Node
	var pending []*html.Node

	flush := func() {
		if len(pending) == 0 {
			return
		}
		inline := trimInline(b.inlines(pending, nil))
		pending = nil
		if len(inline) > 0 {
			out = append(out, &Node{Type: TypeParagraph, Content: inline})
		}
	}

	for _, n := range nodes {
		if skipped(n) {
			continue
		}
		if !isBlockElement(n) {
			pending = append(pending, n)
			continue
		}
		flush()
		out = append(out, b.block(n)...)
	}
	flush()
	return out
}

func (b *builder) block(n *html.Node) []*Node {
	switch n.DataAtom {
	case atom.P:
		return []*Node{{Type: TypeParagraph, Content: trimInline(b.inlines(children(n), nil))}}
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		level, _ := strconv.Atoi(n.Data[1:])
		return []*Node{{
			Type:    TypeHeading,
			Attrs:   map[string]any{"level": level},
			Content: trimInline(b.inlines(children(n), nil)),
		}}
	case atom.Ul:
		return []*Node{{Type: TypeBulletList, Content: b.listItems(n)}}
	case atom.Ol:
		list := &Node{Type: TypeOrderedList, Content: b.listItems(n)}
		start := 1
		if v, ok := attr(n, "start"); ok {
			if s, err := strconv.Atoi(v); err == nil {
				start = s
			}
		}
		list.Attrs = map[string]any{"start": start}
		return []*Node{list}
	case atom.Li:
		return []*Node{b.listItem(n)}
	case atom.Blockquote:
		return []*Node{{Type: TypeBlockquote, Content: b.blocks(children(n))}}
	case atom.Pre:
		code := &Node{Type: TypeCodeBlock}
		if text := textContent(n); text != "" {
			code.Content = []*Node{{Type: TypeText, Text: text}}
		}
		return []*Node{code}
	case atom.Hr:
		return []*Node{{Type: TypeHorizontalRule}}
	}
	// div, section, article, table cells... keep their content, drop the wrapper
	return b.blocks(children(n))
}

func (b *builder) listItems(list *html.Node) []*Node {
	var items []*Node
	for _, c := range children(list) {
		if skipped(c) {
			continue
		}
		if c.Type == html.ElementNode && c.DataAtom == atom.Li {
			items = append(items, b.listItem(c))
			continue
		}
		// stray content inside a list becomes its own item
		if content := b.blocks([]*html.Node{c}); len(content) > 0 {
			items = append(items, &Node{Type: TypeListItem, Content: content})
		}
	}
	return items
}

func (b *builder) listItem(li *html.Node) *Node {
	content := b.blocks(children(li))
	if len(content) == 0 {
		content = []*Node{{Type: TypeParagraph}}
	}
	return &Node{Type: TypeListItem, Content: content}
}

// inlines converts nodes in inline context, accumulating marks from
// enclosing formatting elements.
func (b *builder) inlines(nodes []*html.Node, marks []Mark) []*Node {
	var out []*Node
	for _, n := range nodes {
		if skipped(n) {
			continue
		}
		switch n.Type {
		case html.TextNode:
			text := collapseSpace(n.Data)
			if text == "" {
				continue
			}
			out = append(out, &Node{Type: TypeText, Text: text, Marks: copyMarks(marks)})
			continue
		case html.ElementNode:
		default:
			continue
		}

		switch n.DataAtom {
		case atom.Br:
			out = append(out, &Node{Type: TypeHardBreak})
		case atom.Img:
			out = append(out, image(n))
		default:
			out = append(out, b.inlines(children(n), withMark(marks, n))...)
		}
	}
	return out
}

func withMark(marks []Mark, n *html.Node) []Mark {
	var m *Mark
	switch n.DataAtom {
	case atom.Strong, atom.B:
		m = &Mark{Type: MarkBold}
	case atom.Em, atom.I:
		m = &Mark{Type: MarkItalic}
	case atom.U:
		m = &Mark{Type: MarkUnderline}
	case atom.S, atom.Strike, atom.Del:
		m = &Mark{Type: MarkStrike}
	case atom.Code:
		m = &Mark{Type: MarkCode}
	case atom.Sub:
		m = &Mark{Type: MarkSubscript}
	case atom.Sup:
		m = &Mark{Type: MarkSuperscript}
	case atom.A:
		href, ok := attr(n, "href")
		if !ok {
			return marks
		}
		attrs := map[string]any{"href": href}
		if target, ok := attr(n, "target"); ok {
			attrs["target"] = target
		}
		m = &Mark{Type: MarkLink, Attrs: attrs}
	}
	if m == nil {
		return marks
	}
	for _, existing := range marks {
		if existing.Type == m.Type {
			return marks
		}
	}
	next := make([]Mark, 0, len(marks)+1)
	next = append(next, marks...)
	return append(next, *m)
}

func image(n *html.Node) *Node {
	attrs := map[string]any{}
	for _, key := range []string{"src", "alt", "title"} {
		if v, ok := attr(n, key); ok {
			attrs[key] = v
		}
	}
	return &Node{Type: TypeImage, Attrs: attrs}
}

// trimInline strips whitespace at the edges of a block's inline run and
// drops text nodes left empty.
func trimInline(nodes []*Node) []*Node {
	for len(nodes) > 0 && nodes[0].Type == TypeText {
		nodes[0].Text = strings.TrimLeft(nodes[0].Text, " ")
		if nodes[0].Text != "" {
			break
		}
		nodes = nodes[1:]
	}
	for len(nodes) > 0 && nodes[len(nodes)-1].Type == TypeText {
		last := nodes[len(nodes)-1]
		last.Text = strings.TrimRight(last.Text, " ")
		if last.Text != "" {
			break
		}
		nodes = nodes[:len(nodes)-1]
	}
	if len(nodes) == 0 {
		return nil
	}
	return nodes
}

func isBlockElement(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.P, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Ul, atom.Ol, atom.Li, atom.Blockquote, atom.Pre, atom.Hr,
		atom.Div, atom.Section, atom.Article, atom.Header, atom.Footer,
		atom.Main, atom.Aside, atom.Nav, atom.Figure, atom.Table,
		atom.Thead, atom.Tbody, atom.Tr, atom.Td, atom.Th:
		return true
	}
	return false
}

func skipped(n *html.Node) bool {
	switch n.Type {
	case html.CommentNode, html.DoctypeNode:
		return true
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Head:
			return true
		}
	}
	return false
}

func children(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Trim(sb.String(), "\n")
}

func collapseSpace(s string) string {
	if strings.TrimSpace(s) == "" {
		if s == "" {
			return ""
		}
		return " "
	}
	var sb strings.Builder
	space := false
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r', '\f':
			if !space {
				sb.WriteByte(' ')
			}
			space = true
		default:
			sb.WriteRune(r)
			space = false
		}
	}
	return sb.String()
}

func copyMarks(marks []Mark) []Mark {
	if len(marks) == 0 {
		return nil
	}
	out := make([]Mark, len(marks))
	copy(out, marks)
	return out
}
