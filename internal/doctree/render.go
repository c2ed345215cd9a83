package doctree

import (
	"github.com/beevik/etree"
)

// Render converts the tree rooted at n into a detached etree element.
func Render(n *Node) *etree.Element {
	el := etree.NewElement(n.tag)
	for _, a := range n.attrs {
		el.CreateAttr(a.Key, a.Value)
	}
	if n.kind == KindLeaf {
		el.SetText(n.text)
		return el
	}
	for _, c := range n.children {
		el.AddChild(Render(c))
	}
	return el
}

// Document wraps the rendered tree in a document with an XML declaration.
func Document(n *Node) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	doc.SetRoot(Render(n))
	return doc
}

// Marshal serializes the tree compactly (no indentation), which is the form
// that gets hashed and signed.
func Marshal(n *Node) ([]byte, error) {
	return Document(n).WriteToBytes()
}
