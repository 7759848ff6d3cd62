package richtext

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// blockTags are the elements whose start tag closes an open <p> when markup is
// parsed again.
var blockTags = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Center: true, atom.Details: true, atom.Dialog: true, atom.Dir: true,
	atom.Div: true, atom.Dl: true, atom.Dd: true, atom.Dt: true,
	atom.Fieldset: true, atom.Figcaption: true, atom.Figure: true, atom.Footer: true,
	atom.Form: true, atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.H5: true, atom.H6: true, atom.Header: true,
	atom.Hgroup: true, atom.Hr: true, atom.Li: true, atom.Main: true,
	atom.Menu: true, atom.Nav: true, atom.Ol: true, atom.P: true,
	atom.Pre: true, atom.Section: true, atom.Summary: true, atom.Table: true,
	atom.Ul: true,
}

// inlineTags hold phrasing content only.
var inlineTags = map[atom.Atom]bool{
	atom.A: true, atom.Abbr: true, atom.B: true, atom.Big: true,
	atom.Cite: true, atom.Code: true, atom.Em: true, atom.Font: true,
	atom.I: true, atom.Label: true, atom.Mark: true, atom.Q: true,
	atom.S: true, atom.Small: true, atom.Span: true, atom.Strike: true,
	atom.Strong: true, atom.Sub: true, atom.Sup: true, atom.U: true,
}

// textBlocks are blocks limited to phrasing content.
var textBlocks = map[atom.Atom]bool{
	atom.P: true, atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.H5: true, atom.H6: true, atom.Pre: true,
}

func isElement(n *html.Node, tags map[atom.Atom]bool) bool {
	return n != nil && n.Type == html.ElementNode && tags[n.DataAtom]
}

// anyNode reports whether pred holds for a node of run or their descendants.
func anyNode(run []*html.Node, pred func(*html.Node) bool) bool {
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if pred(n) {
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	for _, n := range run {
		if walk(n) {
			return true
		}
	}
	return false
}

// needsLift reports whether run, placed inside anc, would come back in a
// different shape after serialize and parse.
func needsLift(anc *html.Node, run []*html.Node) bool {
	if anc.Type != html.ElementNode {
		return false
	}
	if anc.DataAtom == atom.A && anyNode(run, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == atom.A
	}) {
		return true
	}
	if !inlineTags[anc.DataAtom] && !textBlocks[anc.DataAtom] {
		return false
	}
	return anyNode(run, func(n *html.Node) bool { return isElement(n, blockTags) })
}

func shallowClone(n *html.Node) *html.Node {
	return &html.Node{
		Type:      n.Type,
		Data:      n.Data,
		DataAtom:  n.DataAtom,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
}

// liftRun moves the adjacent siblings of run out of every ancestor below root
// that cannot hold them, splitting each such ancestor in two around the run.
// Halves left empty are dropped. With carry set, an inline ancestor the run
// leaves is recreated inside each run node so its content keeps the
// formatting.
func liftRun(root *html.Node, run []*html.Node, carry bool) {
	if len(run) == 0 {
		return
	}
	for {
		p := run[0].Parent
		if p == nil || p == root || p.Parent == nil || !needsLift(p, run) {
			return
		}
		gp := p.Parent
		var tail *html.Node
		if last := run[len(run)-1]; last.NextSibling != nil {
			tail = shallowClone(p)
			for c := last.NextSibling; c != nil; {
				next := c.NextSibling
				p.RemoveChild(c)
				tail.AppendChild(c)
				c = next
			}
		}
		at := p.NextSibling
		for _, n := range run {
			p.RemoveChild(n)
			gp.InsertBefore(n, at)
			if carry && inlineTags[p.DataAtom] && n.FirstChild != nil {
				keep := shallowClone(p)
				for c := n.FirstChild; c != nil; c = n.FirstChild {
					n.RemoveChild(c)
					keep.AppendChild(c)
				}
				n.AppendChild(keep)
			}
		}
		if tail != nil {
			gp.InsertBefore(tail, at)
		}
		if p.FirstChild == nil {
			gp.RemoveChild(p)
		}
	}
}

// textBlockOf returns the nearest text block holding n through inline
// elements only, or nil.
func textBlockOf(root, n *html.Node) *html.Node {
	for p := n.Parent; p != nil && p != root; p = p.Parent {
		switch {
		case isElement(p, textBlocks):
			return p
		case isElement(p, inlineTags):
			continue
		}
		return nil
	}
	return nil
}
