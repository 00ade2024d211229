package jack

import (
	"fmt"
	"strings"
)

// ----------------------------------------------------------------------------
// Parse tree serialisation

// XmlSerializer renders a parse tree (a 'Node' produced by the Parser) into the indented,
// XML-like external form of the nand2tetris reference tools: element names equal to grammar
// non-terminal labels for interior nodes, or the token's Kind for leaves, one element per
// line, two-space indentation per depth.
//
// This is deliberately NOT built on 'encoding/xml': the reference tool's output embeds
// raw '<', '>' and '&' lexemes as their entity escapes but otherwise does not nest
// attributes or namespaces, and keyword/symbol/identifier elements are never
// self-closing even when empty. A generic marshaller fighting that exact shape needs more
// struct-tag machinery than a 40-line tree walk.
type XmlSerializer struct {
	indent string // unit of indentation repeated once per tree depth, e.g. "  "
}

// Initializes and returns to the caller a brand new 'XmlSerializer' struct, rendering
// with two-space indentation (matching the reference tool's own output).
func NewXmlSerializer() XmlSerializer {
	return XmlSerializer{indent: "  "}
}

// Serialize walks 'root' and returns its indented XML rendering as a slice of lines, one
// element (open tag, lexeme, or close tag) per line.
func (xs *XmlSerializer) Serialize(root *Node) []string {
	lines := []string{}
	xs.write(root, 0, &lines)
	return lines
}

func (xs *XmlSerializer) write(n *Node, depth int, lines *[]string) {
	prefix := strings.Repeat(xs.indent, depth)

	if n.IsLeaf() {
		tag := n.Token.Kind.String()
		*lines = append(*lines, fmt.Sprintf("%s<%s> %s </%s>", prefix, tag, escape(n.Token.Lexeme), tag))
		return
	}

	*lines = append(*lines, fmt.Sprintf("%s<%s>", prefix, n.Label))
	for _, child := range n.Children {
		xs.write(child, depth+1, lines)
	}
	*lines = append(*lines, fmt.Sprintf("%s</%s>", prefix, n.Label))
}

// escape replaces the three characters that would otherwise be misread as markup by an
// XML consumer. Jack source can legally contain all three as string-constant or symbol
// lexemes (e.g. the '<', '>' and '&' operators themselves).
func escape(lexeme string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(lexeme)
}
