// CLAUDE:SUMMARY Editable rich-text buffer over x/net/html nodes: hydrate, serialize, live selection, range deletion and ordered node splicing.
// Package richtext implements the editable document behind the post and notice
// editors: a node tree rooted at a synthetic container, a live selection
// addressed by node paths, and explicit mutation operations (splice, delete,
// format) recorded in an operation log.
package richtext

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrInvalidPosition is returned when a position does not designate a boundary
// inside the document.
var ErrInvalidPosition = errors.New("richtext: invalid position")

// Document is a mutable rich-text buffer. It is not safe for concurrent use;
// the editor serialises access.
type Document struct {
	root *html.Node
	sel  Selection
	ops  []Operation
}

func newRoot() *html.Node {
	return &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
}

// New returns an empty document with the caret at its start.
func New() *Document {
	return &Document{root: newRoot(), sel: Caret(Position{})}
}

// Parse hydrates a document from persisted markup. The caret is placed at the
// end of the content.
func Parse(markup string) (*Document, error) {
	nodes, err := html.ParseFragment(strings.NewReader(markup), newRoot())
	if err != nil {
		return nil, fmt.Errorf("richtext: parse: %w", err)
	}
	d := New()
	for _, n := range nodes {
		d.root.AppendChild(n)
	}
	d.sel = Caret(d.End())
	d.record(Operation{Type: OpHydrate, NodeData: markup})
	return d, nil
}

// Root exposes the container node. Callers must not detach it.
func (d *Document) Root() *html.Node { return d.root }

// Serialize renders the document content as markup.
func (d *Document) Serialize() (string, error) {
	var buf bytes.Buffer
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", fmt.Errorf("richtext: render: %w", err)
		}
	}
	return buf.String(), nil
}

// Node returns the node at path.
func (d *Document) Node(path NodePath) (*html.Node, error) {
	return GetNode(d.root, path)
}

// End returns the boundary after the last top-level node.
func (d *Document) End() Position {
	return Position{Offset: childCount(d.root)}
}

// Valid reports whether p designates a boundary inside the document.
func (d *Document) Valid(p Position) bool {
	n, err := d.Node(p.Path)
	if err != nil || p.Offset < 0 {
		return false
	}
	switch n.Type {
	case html.TextNode:
		return p.Offset <= utf8.RuneCountInString(n.Data)
	case html.ElementNode:
		return p.Offset <= childCount(n)
	}
	return false
}

// Selection returns a copy of the live selection.
func (d *Document) Selection() Selection { return d.sel.Clone() }

// SetSelection moves the live selection. Both ends must be valid.
func (d *Document) SetSelection(s Selection) error {
	if !d.Valid(s.Start) || !d.Valid(s.End) {
		return fmt.Errorf("%w: %v", ErrInvalidPosition, s)
	}
	d.sel = s.Clone()
	return nil
}

// boundary is a resolved insertion point: before is nil at the end of parent.
type boundary struct {
	parent *html.Node
	before *html.Node
}

// resolve turns p into a boundary between nodes, splitting a text node when p
// falls strictly inside it and split is set.
func (d *Document) resolve(p Position, split bool) (boundary, error) {
	if !d.Valid(p) {
		return boundary{}, fmt.Errorf("%w: %v", ErrInvalidPosition, p)
	}
	n, _ := d.Node(p.Path)
	if n.Type == html.ElementNode {
		return boundary{parent: n, before: childAt(n, p.Offset)}, nil
	}
	runes := []rune(n.Data)
	switch {
	case p.Offset == 0:
		return boundary{parent: n.Parent, before: n}, nil
	case p.Offset == len(runes):
		return boundary{parent: n.Parent, before: n.NextSibling}, nil
	case !split:
		return boundary{}, fmt.Errorf("%w: inside text at %v", ErrInvalidPosition, p)
	}
	n.Data = string(runes[:p.Offset])
	tail := &html.Node{Type: html.TextNode, Data: string(runes[p.Offset:])}
	n.Parent.InsertBefore(tail, n.NextSibling)
	return boundary{parent: n.Parent, before: tail}, nil
}

// position converts a boundary back into a Position.
func (d *Document) position(b boundary) (Position, error) {
	path, err := GetPath(d.root, b.parent)
	if err != nil {
		return Position{}, err
	}
	idx := childIndex(b.parent, b.before)
	if idx < 0 {
		return Position{}, fmt.Errorf("%w: detached boundary", ErrInvalidPosition)
	}
	return Position{Path: path, Offset: idx}, nil
}

func (d *Document) boundaryKey(b boundary) ([]int, error) {
	p, err := d.position(b)
	if err != nil {
		return nil, err
	}
	return p.key(), nil
}

// splitRange resolves both ends of s into boundaries, end first so that a
// split at the start cannot invalidate the end offset.
func (d *Document) splitRange(s Selection) (start, end boundary, err error) {
	s = s.ordered()
	if !d.Valid(s.Start) || !d.Valid(s.End) {
		return boundary{}, boundary{}, fmt.Errorf("%w: %v", ErrInvalidPosition, s)
	}
	if end, err = d.resolve(s.End, true); err != nil {
		return
	}
	start, err = d.resolve(s.Start, true)
	return
}

// contained lists, in document order, the topmost nodes lying entirely between
// start and end.
func (d *Document) contained(start, end boundary) ([]*html.Node, error) {
	sKey, err := d.boundaryKey(start)
	if err != nil {
		return nil, err
	}
	eKey, err := d.boundaryKey(end)
	if err != nil {
		return nil, err
	}
	var out []*html.Node
	var walk func(n *html.Node, path []int)
	walk = func(n *html.Node, path []int) {
		i := 0
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			from := append(append([]int(nil), path...), i)
			to := append(append([]int(nil), path...), i+1)
			switch {
			case compareKeys(sKey, from) <= 0 && compareKeys(to, eKey) <= 0:
				out = append(out, c)
			case compareKeys(to, sKey) > 0 && compareKeys(from, eKey) < 0:
				walk(c, from)
			}
			i++
		}
	}
	walk(d.root, nil)
	return out, nil
}

// DeleteRange removes the content of s and returns the collapsed position
// where the range started. A collapsed selection is returned unchanged.
func (d *Document) DeleteRange(s Selection) (Position, error) {
	if s.Collapsed() {
		if !d.Valid(s.Start) {
			return Position{}, fmt.Errorf("%w: %v", ErrInvalidPosition, s.Start)
		}
		return s.Start.Clone(), nil
	}
	start, end, err := d.splitRange(s)
	if err != nil {
		return Position{}, err
	}
	nodes, err := d.contained(start, end)
	if err != nil {
		return Position{}, err
	}
	// Removed nodes all follow the start boundary, so its index survives.
	pos, err := d.position(start)
	if err != nil {
		return Position{}, err
	}
	for _, n := range nodes {
		n.Parent.RemoveChild(n)
	}
	d.record(Operation{Type: OpDeleteRange, Path: pos.Path.Clone(), Position: pos.Offset})
	d.sel = Caret(pos)
	return pos.Clone(), nil
}

// InsertNodesAt replaces the content of s with nodes, in order, and returns the
// boundary immediately after the last inserted node. Block nodes landing inside
// a paragraph or inline element split it so they sit between the two halves.
// The live selection is not moved; callers decide where the caret goes.
func (d *Document) InsertNodesAt(s Selection, nodes ...*html.Node) (Position, error) {
	for _, n := range nodes {
		if n == nil || n.Parent != nil || n.PrevSibling != nil || n.NextSibling != nil {
			return Position{}, errors.New("richtext: insert of attached or nil node")
		}
	}
	prev := d.sel
	pos, err := d.DeleteRange(s)
	if err != nil {
		return Position{}, err
	}
	d.sel = prev
	b, err := d.resolve(pos, true)
	if err != nil {
		return Position{}, err
	}
	var data bytes.Buffer
	for _, n := range nodes {
		b.parent.InsertBefore(n, b.before)
		_ = html.Render(&data, n)
	}
	if len(nodes) > 0 {
		liftRun(d.root, nodes, false)
		last := nodes[len(nodes)-1]
		b = boundary{parent: last.Parent, before: last.NextSibling}
	}
	after, err := d.position(b)
	if err != nil {
		return Position{}, err
	}
	at, _ := d.position(boundary{parent: b.parent, before: firstOr(nodes, b.before)})
	d.record(Operation{Type: OpInsertNode, Path: at.Path.Clone(), Position: at.Offset, NodeData: data.String()})
	// A caret that pointed into the old tree may now be stale.
	if !d.Valid(d.sel.Start) || !d.Valid(d.sel.End) {
		d.sel = Caret(after)
	}
	return after, nil
}

func firstOr(nodes []*html.Node, fallback *html.Node) *html.Node {
	if len(nodes) > 0 {
		return nodes[0]
	}
	return fallback
}

// PlainText returns the concatenated text content of the document.
func (d *Document) PlainText() string {
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
	walk(d.root)
	return sb.String()
}

// IsEmpty reports whether the document has blank text and no asset embeds.
func (d *Document) IsEmpty() bool {
	return strings.TrimSpace(d.PlainText()) == "" && len(d.Assets()) == 0
}
