// CLAUDE:SUMMARY Explicit formatting commands (marks, color, size, font, alignment, list, plain-text insert) applied to the live selection.
package richtext

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	// ErrUnknownCommand is returned for a command outside the toolbar set.
	ErrUnknownCommand = errors.New("richtext: unknown command")
	// ErrInvalidValue is returned when a command's value is missing or malformed.
	ErrInvalidValue = errors.New("richtext: invalid command value")
)

// Command is a formatting command name as issued by the editor toolbar.
type Command string

const (
	CmdBold          Command = "bold"
	CmdItalic        Command = "italic"
	CmdUnderline     Command = "underline"
	CmdStrikeThrough Command = "strikeThrough"
	CmdUnorderedList Command = "insertUnorderedList"
	CmdForeColor     Command = "foreColor"
	CmdFontSize      Command = "fontSize"
	CmdFontName      Command = "fontName"
	CmdRemoveFormat  Command = "removeFormat"
	CmdJustifyLeft   Command = "justifyLeft"
	CmdJustifyCenter Command = "justifyCenter"
	CmdJustifyRight  Command = "justifyRight"
	CmdInsertText    Command = "insertText"
)

// inheritColor is the color picker's "default" entry.
const inheritColor = "inherit"

var markTags = map[Command]atom.Atom{
	CmdBold:          atom.B,
	CmdItalic:        atom.I,
	CmdUnderline:     atom.U,
	CmdStrikeThrough: atom.Strike,
}

var alignments = map[Command]string{
	CmdJustifyLeft:   "left",
	CmdJustifyCenter: "center",
	CmdJustifyRight:  "right",
}

// formatTags are the inline elements removeFormat unwraps.
var formatTags = map[atom.Atom]bool{
	atom.B: true, atom.Strong: true, atom.I: true, atom.Em: true,
	atom.U: true, atom.S: true, atom.Strike: true, atom.Font: true, atom.Span: true,
}

// ParseCommand validates a toolbar command name.
func ParseCommand(name string) (Command, error) {
	c := Command(name)
	if _, ok := markTags[c]; ok {
		return c, nil
	}
	if _, ok := alignments[c]; ok {
		return c, nil
	}
	switch c {
	case CmdUnorderedList, CmdForeColor, CmdFontSize, CmdFontName, CmdRemoveFormat, CmdInsertText:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCommand, name)
}

// ApplyFormatting applies cmd to the live selection. Inline commands on a
// collapsed selection change nothing. After wrapping, the selection spans the
// wrapped content.
func (d *Document) ApplyFormatting(cmd Command, value string) error {
	if _, err := ParseCommand(string(cmd)); err != nil {
		return err
	}
	if tag, ok := markTags[cmd]; ok {
		return d.wrapInline(cmd, value, func() *html.Node { return element(tag) })
	}
	if align, ok := alignments[cmd]; ok {
		return d.align(cmd, align)
	}
	switch cmd {
	case CmdForeColor:
		v := strings.TrimSpace(value)
		if v == "" {
			return fmt.Errorf("%w: foreColor needs a color", ErrInvalidValue)
		}
		if v == inheritColor {
			return d.removeFormat(cmd, v)
		}
		return d.wrapInline(cmd, v, func() *html.Node { return element(atom.Font, "color", v) })
	case CmdFontSize:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 1 || n > 7 {
			return fmt.Errorf("%w: fontSize %q not in 1-7", ErrInvalidValue, value)
		}
		size := strconv.Itoa(n)
		return d.wrapInline(cmd, size, func() *html.Node { return element(atom.Font, "size", size) })
	case CmdFontName:
		v := strings.TrimSpace(value)
		if v == "" {
			return fmt.Errorf("%w: fontName needs a family", ErrInvalidValue)
		}
		return d.wrapInline(cmd, v, func() *html.Node { return element(atom.Font, "face", v) })
	case CmdRemoveFormat:
		return d.removeFormat(cmd, value)
	case CmdUnorderedList:
		return d.list()
	case CmdInsertText:
		return d.InsertText(value)
	}
	return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
}

// InsertText replaces the selection with plain text and leaves the caret
// after it. Pasted content goes through here so markup is never interpreted.
func (d *Document) InsertText(text string) error {
	if text == "" {
		return nil
	}
	pos, err := d.InsertNodesAt(d.sel, &html.Node{Type: html.TextNode, Data: text})
	if err != nil {
		return err
	}
	d.ops[len(d.ops)-1].Type = OpInsertText
	d.ops[len(d.ops)-1].NodeData = text
	d.sel = Caret(pos)
	return nil
}

func element(a atom.Atom, kv ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, Data: a.String(), DataAtom: a}
	for i := 0; i+1 < len(kv); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: kv[i], Val: kv[i+1]})
	}
	return n
}

// groups splits nodes into runs of adjacent siblings.
func groups(nodes []*html.Node) [][]*html.Node {
	var out [][]*html.Node
	for _, n := range nodes {
		if last := len(out) - 1; last >= 0 {
			run := out[last]
			if run[len(run)-1].NextSibling == n {
				out[last] = append(run, n)
				continue
			}
		}
		out = append(out, []*html.Node{n})
	}
	return out
}

// wrap moves run into a fresh wrapper inserted where the run started.
func wrap(run []*html.Node, wrapper *html.Node) {
	parent := run[0].Parent
	parent.InsertBefore(wrapper, run[0])
	for _, n := range run {
		parent.RemoveChild(n)
		wrapper.AppendChild(n)
	}
}

// wrapRange wraps every run of fully selected nodes and reselects the result.
func (d *Document) wrapRange(cmd Command, value string, mk func() *html.Node) error {
	start, end, err := d.splitRange(d.sel)
	if err != nil {
		return err
	}
	nodes, err := d.contained(start, end)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return nil
	}
	var first, last *html.Node
	for _, run := range groups(nodes) {
		w := mk()
		wrap(run, w)
		if first == nil {
			first = w
		}
		last = w
	}
	return d.reselect(first, last, cmd, value)
}

func (d *Document) wrapInline(cmd Command, value string, mk func() *html.Node) error {
	if d.sel.Collapsed() {
		return nil
	}
	return d.wrapRange(cmd, value, mk)
}

// removeFormat unwraps inline format elements lying inside the selection.
// Format elements that only partially overlap the selection are kept.
func (d *Document) removeFormat(cmd Command, value string) error {
	if d.sel.Collapsed() {
		return nil
	}
	start, end, err := d.splitRange(d.sel)
	if err != nil {
		return err
	}
	nodes, err := d.contained(start, end)
	if err != nil {
		return err
	}
	from, err := d.position(start)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		unwrapFormats(n)
	}
	to, err := d.position(end)
	if err != nil {
		return err
	}
	d.sel = Selection{Start: from, End: to}
	d.record(Operation{Type: OpFormat, Path: from.Path.Clone(), Position: from.Offset, Command: cmd, Value: value})
	return nil
}

// unwrapFormats replaces every format element in the subtree of n, n included,
// with its children.
func unwrapFormats(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		unwrapFormats(c)
		c = next
	}
	if n.Type != html.ElementNode || !formatTags[n.DataAtom] || n.Parent == nil {
		return
	}
	parent := n.Parent
	for c := n.FirstChild; c != nil; c = n.FirstChild {
		n.RemoveChild(c)
		parent.InsertBefore(c, n)
	}
	parent.RemoveChild(n)
}

// align sets text alignment on the selected blocks. A caret aligns the
// top-level block that contains it.
func (d *Document) align(cmd Command, value string) error {
	style := "text-align: " + value + ";"
	if !d.sel.Collapsed() {
		return d.alignRange(cmd, value, style)
	}
	at := d.sel.Anchor()
	if !d.Valid(at) {
		return fmt.Errorf("%w: %v", ErrInvalidPosition, at)
	}
	var block *html.Node
	if len(at.Path) > 0 {
		block = childAt(d.root, at.Path[0])
	} else {
		// Caret between top-level nodes: align the node before it.
		block = childAt(d.root, at.Offset-1)
	}
	if block == nil {
		return nil
	}
	idx := childIndex(d.root, block)
	if block.Type == html.ElementNode && (block.DataAtom == atom.Div || block.DataAtom == atom.P) {
		setStyle(block, "text-align", value)
	} else {
		wrap([]*html.Node{block}, element(atom.Div, "style", style))
		d.sel = Selection{Start: nest(d.sel.Start, idx), End: nest(d.sel.End, idx)}
	}
	d.record(Operation{Type: OpFormat, Path: NodePath{idx}, Command: cmd, Value: value})
	return nil
}

// alignRange aligns each selected run. A run inside a paragraph aligns that
// paragraph; any other run is wrapped in an aligned div.
func (d *Document) alignRange(cmd Command, value, style string) error {
	start, end, err := d.splitRange(d.sel)
	if err != nil {
		return err
	}
	nodes, err := d.contained(start, end)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return nil
	}
	var first, last *html.Node
	for _, run := range groups(nodes) {
		from, to := run[0], run[len(run)-1]
		if blk := textBlockOf(d.root, run[0]); blk != nil {
			setStyle(blk, "text-align", value)
		} else {
			w := element(atom.Div, "style", style)
			wrap(run, w)
			liftRun(d.root, []*html.Node{w}, true)
			from, to = w, w
		}
		if first == nil {
			first = from
		}
		last = to
	}
	return d.reselect(first, last, cmd, value)
}

// reselect spans the selection from first to last, both included, and logs
// the format operation.
func (d *Document) reselect(first, last *html.Node, cmd Command, value string) error {
	from, err := d.position(boundary{parent: first.Parent, before: first})
	if err != nil {
		return err
	}
	to, err := d.position(boundary{parent: last.Parent, before: last.NextSibling})
	if err != nil {
		return err
	}
	d.sel = Selection{Start: from, End: to}
	d.record(Operation{Type: OpFormat, Path: from.Path.Clone(), Position: from.Offset, Command: cmd, Value: value})
	return nil
}

// nest rewrites p after the top-level node at idx moved into a new wrapper.
func nest(p Position, idx int) Position {
	if len(p.Path) == 0 || p.Path[0] != idx {
		return p
	}
	path := append(NodePath{idx, 0}, p.Path[1:]...)
	return Position{Path: path, Offset: p.Offset}
}

// setStyle sets one CSS property in n's style attribute, replacing any
// previous value of the same property.
func setStyle(n *html.Node, prop, value string) {
	for i, a := range n.Attr {
		if a.Key != "style" {
			continue
		}
		var kept []string
		for _, decl := range strings.Split(a.Val, ";") {
			decl = strings.TrimSpace(decl)
			if decl == "" {
				continue
			}
			if name, _, _ := strings.Cut(decl, ":"); strings.TrimSpace(name) == prop {
				continue
			}
			kept = append(kept, decl+";")
		}
		kept = append(kept, prop+": "+value+";")
		n.Attr[i].Val = strings.Join(kept, " ")
		return
	}
	n.Attr = append(n.Attr, html.Attribute{Key: "style", Val: prop + ": " + value + ";"})
}

// list turns the selection into a bulleted list item. A caret opens an empty
// item and moves into it.
func (d *Document) list() error {
	if !d.sel.Collapsed() {
		return d.listRange()
	}
	ul := element(atom.Ul)
	li := element(atom.Li)
	li.AppendChild(element(atom.Br))
	ul.AppendChild(li)
	if _, err := d.InsertNodesAt(d.sel, ul); err != nil {
		return err
	}
	d.ops[len(d.ops)-1].Type = OpFormat
	d.ops[len(d.ops)-1].Command = CmdUnorderedList
	path, err := GetPath(d.root, li)
	if err != nil {
		return err
	}
	d.sel = Caret(Position{Path: path, Offset: 0})
	return nil
}

// listRange makes every selected run a list item, lifted out of paragraphs,
// and gathers adjacent items into one ul.
func (d *Document) listRange() error {
	start, end, err := d.splitRange(d.sel)
	if err != nil {
		return err
	}
	nodes, err := d.contained(start, end)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return nil
	}
	var items []*html.Node
	for _, run := range groups(nodes) {
		li := element(atom.Li)
		wrap(run, li)
		liftRun(d.root, []*html.Node{li}, true)
		items = append(items, li)
	}
	var first, last *html.Node
	for _, run := range groups(items) {
		ul := element(atom.Ul)
		wrap(run, ul)
		if first == nil {
			first = ul
		}
		last = ul
	}
	return d.reselect(first, last, CmdUnorderedList, "")
}
