package jack

// ----------------------------------------------------------------------------
// Parse tree

// Node is a single node of the Jack parse tree. An interior node carries a Label (the
// grammar non-terminal it represents, e.g. "class", "expression", "letStmt") and its
// ordered Children; a leaf node instead carries the consumed Token and no children.
//
// Order matters: Children preserves exactly the order tokens/sub-rules were consumed in,
// so the tree can be walked back into the original (whitespace-normalised) source order.
type Node struct {
	Label    string
	Token    *Token
	Children []*Node
}

// IsLeaf reports whether this node is a terminal (a consumed Token) rather than a
// labelled interior node produced by a grammar rule.
func (n *Node) IsLeaf() bool { return n.Token != nil }

func leaf(tok Token) *Node {
	t := tok
	return &Node{Token: &t}
}
