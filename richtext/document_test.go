package richtext

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustParse(t *testing.T, markup string) *Document {
	t.Helper()
	d, err := Parse(markup)
	if err != nil {
		t.Fatalf("Parse(%q): %v", markup, err)
	}
	return d
}

func mustSerialize(t *testing.T, d *Document) string {
	t.Helper()
	s, err := d.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	return s
}

func TestParse_CaretAtEnd(t *testing.T) {
	d := mustParse(t, "<b>a</b>b")
	if diff := cmp.Diff(Caret(Position{Offset: 2}), d.Selection()); diff != "" {
		t.Errorf("selection (-want +got):\n%s", diff)
	}
	if ops := d.Ops(); len(ops) != 1 || ops[0].Type != OpHydrate {
		t.Errorf("ops = %+v, want one HYDRATE", ops)
	}
}

func TestGetPathGetNode(t *testing.T) {
	d := mustParse(t, "<p>x<b>y</b></p>")
	n, err := d.Node(NodePath{0, 1, 0})
	if err != nil {
		t.Fatal(err)
	}
	if n.Data != "y" {
		t.Fatalf("node data = %q, want y", n.Data)
	}
	path, err := GetPath(d.Root(), n)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(NodePath{0, 1, 0}, path); diff != "" {
		t.Errorf("path (-want +got):\n%s", diff)
	}
	if _, err := d.Node(NodePath{3}); err == nil {
		t.Error("expected error for missing child")
	}
}

func TestValid(t *testing.T) {
	d := mustParse(t, "Hello<br>")
	cases := []struct {
		pos  Position
		want bool
	}{
		{Position{Offset: 0}, true},
		{Position{Offset: 2}, true},
		{Position{Offset: 3}, false},
		{Position{Path: NodePath{0}, Offset: 5}, true},
		{Position{Path: NodePath{0}, Offset: 6}, false},
		{Position{Path: NodePath{0}, Offset: -1}, false},
		{Position{Path: NodePath{4}, Offset: 0}, false},
	}
	for _, c := range cases {
		if got := d.Valid(c.pos); got != c.want {
			t.Errorf("Valid(%+v) = %v, want %v", c.pos, got, c.want)
		}
	}
}

func TestSetSelection_RejectsInvalid(t *testing.T) {
	d := mustParse(t, "Hi")
	before := d.Selection()
	err := d.SetSelection(Caret(Position{Path: NodePath{0}, Offset: 9}))
	if !errors.Is(err, ErrInvalidPosition) {
		t.Fatalf("err = %v, want ErrInvalidPosition", err)
	}
	if diff := cmp.Diff(before, d.Selection()); diff != "" {
		t.Errorf("selection changed (-want +got):\n%s", diff)
	}
}

func TestInsertNodesAt_ImageAfterHello(t *testing.T) {
	// WHAT: image + line break inserted at the end of "Hello".
	// WHY: the embed must sit immediately after the caret text, followed by a break.
	d := mustParse(t, "Hello")
	caret := Caret(Position{Path: NodePath{0}, Offset: 5})
	pos, err := d.InsertNodesAt(caret, ImageEmbed("https://cdn.example/x.png"), LineBreak())
	if err != nil {
		t.Fatal(err)
	}
	want := `Hello<img src="https://cdn.example/x.png" style="` + imageStyle + `" class="editor-image"/><br/>`
	if got := mustSerialize(t, d); got != want {
		t.Errorf("markup = %q\nwant      %q", got, want)
	}
	if diff := cmp.Diff(Position{Offset: 3}, pos); diff != "" {
		t.Errorf("position after insert (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"https://cdn.example/x.png"}, d.ImageURLs()); diff != "" {
		t.Errorf("image urls (-want +got):\n%s", diff)
	}
}

func TestInsertNodesAt_SplitsText(t *testing.T) {
	d := mustParse(t, "Hello world")
	pos, err := d.InsertNodesAt(Caret(Position{Path: NodePath{0}, Offset: 5}), LineBreak())
	if err != nil {
		t.Fatal(err)
	}
	if got := mustSerialize(t, d); got != "Hello<br/> world" {
		t.Errorf("markup = %q", got)
	}
	if diff := cmp.Diff(Position{Offset: 2}, pos); diff != "" {
		t.Errorf("position (-want +got):\n%s", diff)
	}
}

func TestInsertNodesAt_MultiByteOffset(t *testing.T) {
	d := mustParse(t, "여주마켓")
	if _, err := d.InsertNodesAt(Caret(Position{Path: NodePath{0}, Offset: 2}), LineBreak()); err != nil {
		t.Fatal(err)
	}
	if got := mustSerialize(t, d); got != "여주<br/>마켓" {
		t.Errorf("markup = %q", got)
	}
}

func TestInsertNodesAt_ReplacesRange(t *testing.T) {
	d := mustParse(t, "Hello world")
	sel := Selection{
		Start: Position{Path: NodePath{0}, Offset: 6},
		End:   Position{Path: NodePath{0}, Offset: 11},
	}
	if _, err := d.InsertNodesAt(sel, PlainLink("https://example.com", "")); err != nil {
		t.Fatal(err)
	}
	got := mustSerialize(t, d)
	if !strings.HasPrefix(got, "Hello <a href=\"https://example.com\"") {
		t.Errorf("markup = %q", got)
	}
	if strings.Contains(got, "world") {
		t.Errorf("selected text survived: %q", got)
	}
}

func TestInsertNodesAt_RejectsAttachedNode(t *testing.T) {
	d := mustParse(t, "<b>x</b>")
	n, _ := d.Node(NodePath{0})
	if _, err := d.InsertNodesAt(Caret(d.End()), n); err == nil {
		t.Fatal("expected error inserting an attached node")
	}
}

func TestDeleteRange_AcrossElements(t *testing.T) {
	d := mustParse(t, "<b>abc</b>def")
	sel := Selection{
		Start: Position{Path: NodePath{0, 0}, Offset: 1},
		End:   Position{Path: NodePath{1}, Offset: 2},
	}
	pos, err := d.DeleteRange(sel)
	if err != nil {
		t.Fatal(err)
	}
	if got := mustSerialize(t, d); got != "<b>a</b>f" {
		t.Errorf("markup = %q, want <b>a</b>f", got)
	}
	if diff := cmp.Diff(Position{Path: NodePath{0}, Offset: 1}, pos); diff != "" {
		t.Errorf("position (-want +got):\n%s", diff)
	}
}

func TestDeleteRange_Backwards(t *testing.T) {
	d := mustParse(t, "abcdef")
	sel := Selection{
		Start: Position{Path: NodePath{0}, Offset: 4},
		End:   Position{Path: NodePath{0}, Offset: 1},
	}
	if _, err := d.DeleteRange(sel); err != nil {
		t.Fatal(err)
	}
	if got := mustSerialize(t, d); got != "aef" {
		t.Errorf("markup = %q, want aef", got)
	}
}

func TestSerialize_RoundTrip(t *testing.T) {
	// WHAT: serialize(hydrate(serialize(doc))) == serialize(doc).
	// WHY: stored content must re-open in the edit flow without drift.
	d := New()
	if err := d.InsertText(`Intro "quoted" & <tags>`); err != nil {
		t.Fatal(err)
	}
	end := Caret(d.End())
	if _, err := d.InsertNodesAt(end, ImageEmbed("https://cdn.example/a.png"), LineBreak()); err != nil {
		t.Fatal(err)
	}
	card := LinkCard("https://example.com/article", Card{
		Title:       "Example Article",
		Description: strings.Repeat("설명", 70),
		Image:       "https://cdn/thumb.jpg",
	})
	if _, err := d.InsertNodesAt(Caret(d.End()), card); err != nil {
		t.Fatal(err)
	}
	first := mustSerialize(t, d)
	second := mustSerialize(t, mustParse(t, first))
	if first != second {
		t.Errorf("round trip drift:\nfirst  %q\nsecond %q", first, second)
	}
}

func TestIsEmpty(t *testing.T) {
	cases := []struct {
		markup string
		want   bool
	}{
		{"", true},
		{"   \n ", true},
		{"<br>", true},
		{"<p> </p><div><br></div>", true},
		{"x", false},
		{`<img src="https://cdn/x.png">`, false},
		{`<a href="https://example.com"></a>`, false},
	}
	for _, c := range cases {
		if got := mustParse(t, c.markup).IsEmpty(); got != c.want {
			t.Errorf("IsEmpty(%q) = %v, want %v", c.markup, got, c.want)
		}
	}
	if !New().IsEmpty() {
		t.Error("new document should be empty")
	}
}

func TestPlainText(t *testing.T) {
	d := mustParse(t, "<p>a<b>b</b></p>c")
	if got := d.PlainText(); got != "abc" {
		t.Errorf("PlainText = %q, want abc", got)
	}
}
