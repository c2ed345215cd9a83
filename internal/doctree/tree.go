// Package doctree holds the canonical, ordered document tree an invoice is
// assembled into before it is serialized.
//
// A tree is made of two node kinds: leaves (a tag with text and optional
// attributes) and elements (a tag with attributes and ordered children).
// Nodes are immutable once built. Repeated tags are kept in insertion order,
// so a query for "cac:TaxTotal/cac:TaxSubtotal" returns every subtotal in the
// order it was added.
package doctree

import (
	"strings"
)

// Kind distinguishes the node variants.
type Kind int

const (
	KindLeaf Kind = iota
	KindElement
)

// Attr is a single XML attribute. Attribute order is preserved.
type Attr struct {
	Key   string
	Value string
}

// A is shorthand for building an Attr.
func A(key, value string) Attr {
	return Attr{Key: key, Value: value}
}

// Node is one leaf or element of the tree.
type Node struct {
	kind     Kind
	tag      string
	text     string
	attrs    []Attr
	children []*Node
}

// Leaf creates a scalar node.
func Leaf(tag, text string, attrs ...Attr) *Node {
	return &Node{
		kind:  KindLeaf,
		tag:   tag,
		text:  text,
		attrs: append([]Attr(nil), attrs...),
	}
}

// Element creates a node with ordered children. Nil children are skipped so
// optional parts can be passed inline.
func Element(tag string, attrs []Attr, children ...*Node) *Node {
	n := &Node{
		kind:  KindElement,
		tag:   tag,
		attrs: append([]Attr(nil), attrs...),
	}
	for _, c := range children {
		if c != nil {
			n.children = append(n.children, c)
		}
	}
	return n
}

// Group creates an element without attributes.
func Group(tag string, children ...*Node) *Node {
	return Element(tag, nil, children...)
}

// Optional returns a leaf only when text is non-empty.
func Optional(tag, text string, attrs ...Attr) *Node {
	if text == "" {
		return nil
	}
	return Leaf(tag, text, attrs...)
}

func (n *Node) Kind() Kind   { return n.kind }
func (n *Node) Tag() string  { return n.tag }
func (n *Node) Text() string { return n.text }

// Attrs returns a copy of the node's attributes.
func (n *Node) Attrs() []Attr {
	return append([]Attr(nil), n.attrs...)
}

// Attr returns the value of key and whether it was present.
func (n *Node) Attr(key string) (string, bool) {
	for _, a := range n.attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// Children returns a copy of the child list. Leaves have none.
func (n *Node) Children() []*Node {
	return append([]*Node(nil), n.children...)
}

// Query returns every node reached by following the slash-delimited tag path
// from n's children, in document order. An empty or unmatched path yields an
// empty, non-nil slice.
func (n *Node) Query(path string) []*Node {
	out := []*Node{}
	if n == nil {
		return out
	}
	steps := splitPath(path)
	if len(steps) == 0 {
		return out
	}

	current := []*Node{n}
	for _, step := range steps {
		var next []*Node
		for _, node := range current {
			for _, c := range node.children {
				if c.tag == step {
					next = append(next, c)
				}
			}
		}
		if len(next) == 0 {
			return out
		}
		current = next
	}
	return append(out, current...)
}

// First returns the first match of path, or nil.
func (n *Node) First(path string) *Node {
	if m := n.Query(path); len(m) > 0 {
		return m[0]
	}
	return nil
}

// Value returns the text of the first match of path.
func (n *Node) Value(path string) string {
	if m := n.First(path); m != nil {
		return m.text
	}
	return ""
}

func splitPath(path string) []string {
	var steps []string
	for _, s := range strings.Split(path, "/") {
		if s = strings.TrimSpace(s); s != "" {
			steps = append(steps, s)
		}
	}
	return steps
}
