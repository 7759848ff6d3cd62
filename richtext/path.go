package richtext

import (
	"errors"
	"fmt"

	"golang.org/x/net/html"
)

// NodePath is the sequence of child indices from the document root to a node.
// An empty path designates the root itself.
type NodePath []int

// Clone returns an independent copy of p.
func (p NodePath) Clone() NodePath {
	if p == nil {
		return nil
	}
	out := make(NodePath, len(p))
	copy(out, p)
	return out
}

// GetNode follows path from root.
func GetNode(root *html.Node, path NodePath) (*html.Node, error) {
	current := root
	for i, index := range path {
		child := childAt(current, index)
		if child == nil {
			return nil, fmt.Errorf("node not found at path %v (failed at index %d, step %d)", path, index, i)
		}
		current = child
	}
	return current, nil
}

// GetPath returns the path from root to target.
func GetPath(root, target *html.Node) (NodePath, error) {
	var path NodePath
	for current := target; current != root; {
		parent := current.Parent
		if parent == nil {
			return nil, errors.New("target node is not a descendant of root")
		}
		index := childIndex(parent, current)
		if index == -1 {
			return nil, errors.New("integrity error: child not found in parent's list")
		}
		path = append(NodePath{index}, path...)
		current = parent
	}
	return path, nil
}

// childAt returns the index-th child of parent, or nil.
func childAt(parent *html.Node, index int) *html.Node {
	if index < 0 {
		return nil
	}
	count := 0
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if count == index {
			return c
		}
		count++
	}
	return nil
}

// childIndex returns the index of child within parent, or -1.
// A nil child designates the end of the child list.
func childIndex(parent, child *html.Node) int {
	count := 0
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if c == child {
			return count
		}
		count++
	}
	if child == nil {
		return count
	}
	return -1
}

func childCount(parent *html.Node) int {
	n := 0
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		n++
	}
	return n
}

// compareKeys orders boundary keys in document order. A key that is a strict
// prefix of another sorts first.
func compareKeys(a, b []int) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}
