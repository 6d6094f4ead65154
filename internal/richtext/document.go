// Package richtext converts HTML fragments into the structured rich-text
// tree the content repository stores: a "doc" node whose content is a list
// of block nodes (paragraph, heading, lists, ...) holding text leaves with marks.
package richtext

import "strings"

// Node types.
const (
	TypeDoc            = "doc"
	TypeParagraph      = "paragraph"
	TypeHeading        = "heading"
	TypeBulletList     = "bulletList"
	TypeOrderedList    = "orderedList"
	TypeListItem       = "listItem"
	TypeBlockquote     = "blockquote"
	TypeCodeBlock      = "codeBlock"
	TypeHorizontalRule = "horizontalRule"
	TypeHardBreak      = "hardBreak"
	TypeImage          = "image"
	TypeText           = "text"
)

// Mark types.
const (
	MarkBold        = "bold"
	MarkItalic      = "italic"
	MarkUnderline   = "underline"
	MarkStrike      = "strike"
	MarkCode        = "code"
	MarkLink        = "link"
	MarkSubscript   = "subscript"
	MarkSuperscript = "superscript"
)

// Node is one element of the rich-text tree.
type Node struct {
	Type    string         `json:"type"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []*Node        `json:"content,omitempty"`
	Text    string         `json:"text,omitempty"`
	Marks   []Mark         `json:"marks,omitempty"`
}

// Mark is inline formatting applied to a text node.
type Mark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// Document is the root node of a converted field value.
type Document = Node

// Converter turns a raw column value into a rich-text document.
type Converter interface {
	Convert(raw string) (*Document, error)
}

// PlainText flattens a document to text, one line per block.
func PlainText(doc *Node) string {
	if doc == nil {
		return ""
	}
	var lines []string
	var walk func(n *Node)
	walk = func(n *Node) {
		switch n.Type {
		case TypeText:
			if len(lines) == 0 {
				lines = append(lines, "")
			}
			lines[len(lines)-1] += n.Text
			return
		case TypeHardBreak:
			lines = append(lines, "")
			return
		}
		if isBlock(n.Type) && n.Type != TypeDoc {
			lines = append(lines, "")
		}
		for _, c := range n.Content {
			walk(c)
		}
	}
	walk(doc)

	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

func isBlock(t string) bool {
	switch t {
	case TypeDoc, TypeParagraph, TypeHeading, TypeBulletList, TypeOrderedList,
		TypeListItem, TypeBlockquote, TypeCodeBlock, TypeHorizontalRule:
		return true
	}
	return false
}
