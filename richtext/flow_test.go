package richtext

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// reparse serializes d, parses the result and serializes it again. Both
// renderings must agree.
func reparse(t *testing.T, d *Document) string {
	t.Helper()
	first := mustSerialize(t, d)
	second := mustSerialize(t, mustParse(t, first))
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("markup drifts after reload (-saved +reloaded):\n%s", diff)
	}
	return first
}

func TestInsertNodesAt_CardSplitsParagraph(t *testing.T) {
	// WHAT: a card inserted mid-paragraph splits the paragraph around it.
	// WHY: a block inside <p> is rebuilt by the parser into extra anchors.
	d := mustParse(t, "<p>Hello world</p>")
	card := LinkCard("https://example.com/article", Card{Title: "Example", Image: "https://cdn/og.png"})
	after, err := d.InsertNodesAt(Caret(Position{Path: NodePath{0, 0}, Offset: 5}), card)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Position{Offset: 2}, after); diff != "" {
		t.Errorf("caret after card (-want +got):\n%s", diff)
	}
	got := reparse(t, d)
	if !strings.HasPrefix(got, "<p>Hello</p><a ") || !strings.HasSuffix(got, "</a><p> world</p>") {
		t.Errorf("markup = %s", got)
	}
	var cards int
	for _, a := range mustParse(t, got).Assets() {
		if a.Kind == AssetLinkPreview {
			cards++
		}
	}
	if cards != 1 {
		t.Errorf("link previews after reload = %d, want 1", cards)
	}
}

func TestInsertNodesAt_CardAtParagraphEdge(t *testing.T) {
	// WHAT: at the end of a paragraph no empty tail paragraph is left behind.
	d := mustParse(t, "<p>Hello</p>")
	card := LinkCard("https://x.test", Card{Title: "X", Image: "https://x.test/i.png"})
	if _, err := d.InsertNodesAt(Caret(Position{Path: NodePath{0, 0}, Offset: 5}), card); err != nil {
		t.Fatal(err)
	}
	got := reparse(t, d)
	if !strings.HasPrefix(got, "<p>Hello</p><a ") || !strings.HasSuffix(got, "</a>") {
		t.Errorf("markup = %s", got)
	}
}

func TestInsertNodesAt_LinkInsideLink(t *testing.T) {
	// WHAT: a link inserted inside a link splits the outer one.
	// WHY: nested anchors are pulled apart by the parser on reload.
	d := mustParse(t, `<p><a href="https://a.test">ab</a></p>`)
	if _, err := d.InsertNodesAt(Caret(Position{Path: NodePath{0, 0, 0}, Offset: 1}), PlainLink("https://b.test", "")); err != nil {
		t.Fatal(err)
	}
	got := reparse(t, d)
	want := []AssetReference{
		{URL: "https://a.test", Kind: AssetLink},
		{URL: "https://b.test", Kind: AssetLink},
		{URL: "https://a.test", Kind: AssetLink},
	}
	if diff := cmp.Diff(want, mustParse(t, got).Assets()); diff != "" {
		t.Errorf("links after reload (-want +got):\n%s\n%s", diff, got)
	}
}

func TestAlign_RangeInParagraph(t *testing.T) {
	// WHAT: aligning part of a paragraph aligns the paragraph itself.
	d := mustParse(t, "<p>Hello world</p>")
	selectText(t, d, NodePath{0, 0}, 2, 5)
	if err := d.ApplyFormatting(CmdJustifyCenter, ""); err != nil {
		t.Fatal(err)
	}
	if got := reparse(t, d); got != `<p style="text-align: center;">Hello world</p>` {
		t.Errorf("markup = %s", got)
	}
}

func TestAlign_RangeInsideBold(t *testing.T) {
	// WHAT: a run outside any paragraph gets an aligned div that keeps the
	// bold around its text.
	d := mustParse(t, "<b>abc</b>")
	selectText(t, d, NodePath{0, 0}, 0, 3)
	if err := d.ApplyFormatting(CmdJustifyRight, ""); err != nil {
		t.Fatal(err)
	}
	if got := reparse(t, d); got != `<div style="text-align: right;"><b>abc</b></div>` {
		t.Errorf("markup = %s", got)
	}
}

func TestList_CaretInParagraph(t *testing.T) {
	d := mustParse(t, "<p>Hello world</p>")
	if err := d.SetSelection(Caret(Position{Path: NodePath{0, 0}, Offset: 5})); err != nil {
		t.Fatal(err)
	}
	if err := d.ApplyFormatting(CmdUnorderedList, ""); err != nil {
		t.Fatal(err)
	}
	if got := reparse(t, d); got != "<p>Hello</p><ul><li><br/></li></ul><p> world</p>" {
		t.Errorf("markup = %s", got)
	}
	if diff := cmp.Diff(Caret(Position{Path: NodePath{1, 0}, Offset: 0}), d.Selection()); diff != "" {
		t.Errorf("caret (-want +got):\n%s", diff)
	}
}

func TestList_RangeAcrossParagraphs(t *testing.T) {
	// WHAT: each selected run becomes an item and adjacent items share one list.
	d := mustParse(t, "<p>ab</p><p>cd</p>")
	err := d.SetSelection(Selection{
		Start: Position{Path: NodePath{0, 0}, Offset: 1},
		End:   Position{Path: NodePath{1, 0}, Offset: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := d.ApplyFormatting(CmdUnorderedList, ""); err != nil {
		t.Fatal(err)
	}
	if got := reparse(t, d); got != "<p>a</p><ul><li>b</li><li>c</li></ul><p>d</p>" {
		t.Errorf("markup = %s", got)
	}
}

func TestList_RangeKeepsInlineFormat(t *testing.T) {
	d := mustParse(t, "<p><b>abc</b></p>")
	selectText(t, d, NodePath{0, 0, 0}, 0, 3)
	if err := d.ApplyFormatting(CmdUnorderedList, ""); err != nil {
		t.Fatal(err)
	}
	if got := reparse(t, d); got != "<ul><li><b>abc</b></li></ul>" {
		t.Errorf("markup = %s", got)
	}
}
