package engine

import "errors"

// Node is a materialized value. Object keys keep document order.
type Node struct {
	Kind     Kind // KindBeginObject, KindBeginArray or a scalar kind
	Scalar   Token
	Keys     []string
	Children []*Node
}

// TreeWriter is a TokenWriter that assembles written tokens into a Node tree.
// Writers for formats that need the whole document before rendering build on
// it.
type TreeWriter struct {
	root    *Node
	stack   []*Node
	pending string
	hasKey  bool
}

var errMisplaced = errors.New("engine: token does not fit the document structure")

func (t *TreeWriter) WriteToken(tok Token) error {
	var n *Node
	switch tok.Kind {
	case KindKey:
		if len(t.stack) == 0 || t.stack[len(t.stack)-1].Kind != KindBeginObject || t.hasKey {
			return errMisplaced
		}
		t.pending, t.hasKey = tok.String, true
		return nil
	case KindEndObject, KindEndArray:
		want := KindBeginObject
		if tok.Kind == KindEndArray {
			want = KindBeginArray
		}
		if len(t.stack) == 0 || t.stack[len(t.stack)-1].Kind != want || t.hasKey {
			return errMisplaced
		}
		t.stack = t.stack[:len(t.stack)-1]
		return nil
	case KindBeginObject, KindBeginArray:
		n = &Node{Kind: tok.Kind}
	default:
		n = &Node{Kind: tok.Kind, Scalar: tok}
	}
	if err := t.attach(n); err != nil {
		return err
	}
	if n.Kind == KindBeginObject || n.Kind == KindBeginArray {
		t.stack = append(t.stack, n)
	}
	return nil
}

func (t *TreeWriter) attach(n *Node) error {
	if len(t.stack) == 0 {
		if t.root != nil {
			return errMisplaced
		}
		t.root = n
		return nil
	}
	top := t.stack[len(t.stack)-1]
	if top.Kind == KindBeginObject {
		if !t.hasKey {
			return errMisplaced
		}
		top.Keys = append(top.Keys, t.pending)
		t.hasKey = false
	}
	top.Children = append(top.Children, n)
	return nil
}

// Root returns the finished tree. It fails when the document is empty or
// still has open containers.
func (t *TreeWriter) Root() (*Node, error) {
	if t.root == nil || len(t.stack) > 0 {
		return nil, errors.New("engine: incomplete document")
	}
	return t.root, nil
}
