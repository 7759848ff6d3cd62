package richtext

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func selectText(t *testing.T, d *Document, path NodePath, from, to int) {
	t.Helper()
	err := d.SetSelection(Selection{
		Start: Position{Path: path, Offset: from},
		End:   Position{Path: path, Offset: to},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestApplyFormatting_Marks(t *testing.T) {
	cases := []struct {
		cmd  Command
		want string
	}{
		{CmdBold, "<b>Hello</b> world"},
		{CmdItalic, "<i>Hello</i> world"},
		{CmdUnderline, "<u>Hello</u> world"},
		{CmdStrikeThrough, "<strike>Hello</strike> world"},
	}
	for _, c := range cases {
		d := mustParse(t, "Hello world")
		selectText(t, d, NodePath{0}, 0, 5)
		if err := d.ApplyFormatting(c.cmd, ""); err != nil {
			t.Fatalf("%s: %v", c.cmd, err)
		}
		if got := mustSerialize(t, d); got != c.want {
			t.Errorf("%s: markup = %q, want %q", c.cmd, got, c.want)
		}
		want := Selection{Start: Position{Offset: 0}, End: Position{Offset: 1}}
		if diff := cmp.Diff(want, d.Selection()); diff != "" {
			t.Errorf("%s: selection (-want +got):\n%s", c.cmd, diff)
		}
	}
}

func TestApplyFormatting_CollapsedIsNoop(t *testing.T) {
	d := mustParse(t, "Hello")
	if err := d.ApplyFormatting(CmdBold, ""); err != nil {
		t.Fatal(err)
	}
	if got := mustSerialize(t, d); got != "Hello" {
		t.Errorf("markup = %q", got)
	}
}

func TestApplyFormatting_ValueCommands(t *testing.T) {
	cases := []struct {
		cmd   Command
		value string
		want  string
	}{
		{CmdForeColor, "#ef4444", `<font color="#ef4444">ab</font>`},
		{CmdFontSize, "5", `<font size="5">ab</font>`},
		{CmdFontName, "Nanum Gothic", `<font face="Nanum Gothic">ab</font>`},
	}
	for _, c := range cases {
		d := mustParse(t, "ab")
		selectText(t, d, NodePath{0}, 0, 2)
		if err := d.ApplyFormatting(c.cmd, c.value); err != nil {
			t.Fatalf("%s: %v", c.cmd, err)
		}
		if got := mustSerialize(t, d); got != c.want {
			t.Errorf("%s: markup = %q, want %q", c.cmd, got, c.want)
		}
	}
}

func TestApplyFormatting_Errors(t *testing.T) {
	d := mustParse(t, "ab")
	selectText(t, d, NodePath{0}, 0, 2)
	if err := d.ApplyFormatting("blink", ""); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("unknown command err = %v", err)
	}
	for _, v := range []string{"0", "8", "big", ""} {
		if err := d.ApplyFormatting(CmdFontSize, v); !errors.Is(err, ErrInvalidValue) {
			t.Errorf("fontSize %q err = %v, want ErrInvalidValue", v, err)
		}
	}
	if err := d.ApplyFormatting(CmdForeColor, " "); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("empty color err = %v", err)
	}
	if got := mustSerialize(t, d); got != "ab" {
		t.Errorf("failed commands mutated the document: %q", got)
	}
}

func TestApplyFormatting_InheritColorRemovesFormat(t *testing.T) {
	// WHAT: the "default" color entry strips formatting instead of setting a color.
	d := mustParse(t, `<b><font color="#ef4444">Hi</font></b>!`)
	if err := d.SetSelection(Selection{Start: Position{Offset: 0}, End: Position{Offset: 1}}); err != nil {
		t.Fatal(err)
	}
	if err := d.ApplyFormatting(CmdForeColor, "inherit"); err != nil {
		t.Fatal(err)
	}
	if got := mustSerialize(t, d); got != "Hi!" {
		t.Errorf("markup = %q, want Hi!", got)
	}
}

func TestApplyFormatting_Justify(t *testing.T) {
	d := mustParse(t, "Hello")
	if err := d.SetSelection(Caret(Position{Path: NodePath{0}, Offset: 2})); err != nil {
		t.Fatal(err)
	}
	if err := d.ApplyFormatting(CmdJustifyCenter, ""); err != nil {
		t.Fatal(err)
	}
	if got := mustSerialize(t, d); got != `<div style="text-align: center;">Hello</div>` {
		t.Errorf("markup = %q", got)
	}
	// The caret follows the text into the wrapper.
	if diff := cmp.Diff(Caret(Position{Path: NodePath{0, 0}, Offset: 2}), d.Selection()); diff != "" {
		t.Errorf("selection (-want +got):\n%s", diff)
	}
	if err := d.ApplyFormatting(CmdJustifyRight, ""); err != nil {
		t.Fatal(err)
	}
	if got := mustSerialize(t, d); got != `<div style="text-align: right;">Hello</div>` {
		t.Errorf("markup = %q", got)
	}
}

func TestApplyFormatting_UnorderedList(t *testing.T) {
	d := mustParse(t, "item")
	selectText(t, d, NodePath{0}, 0, 4)
	if err := d.ApplyFormatting(CmdUnorderedList, ""); err != nil {
		t.Fatal(err)
	}
	if got := mustSerialize(t, d); got != "<ul><li>item</li></ul>" {
		t.Errorf("markup = %q", got)
	}

	empty := New()
	if err := empty.ApplyFormatting(CmdUnorderedList, ""); err != nil {
		t.Fatal(err)
	}
	if got := mustSerialize(t, empty); got != "<ul><li><br/></li></ul>" {
		t.Errorf("markup = %q", got)
	}
	if diff := cmp.Diff(Caret(Position{Path: NodePath{0, 0}}), empty.Selection()); diff != "" {
		t.Errorf("selection (-want +got):\n%s", diff)
	}
}

func TestInsertText_Escapes(t *testing.T) {
	// WHAT: pasted text is inserted verbatim, never interpreted as markup.
	d := New()
	if err := d.ApplyFormatting(CmdInsertText, "<b>x</b>"); err != nil {
		t.Fatal(err)
	}
	if got := mustSerialize(t, d); got != "&lt;b&gt;x&lt;/b&gt;" {
		t.Errorf("markup = %q", got)
	}
	if diff := cmp.Diff(Caret(Position{Offset: 1}), d.Selection()); diff != "" {
		t.Errorf("selection (-want +got):\n%s", diff)
	}
	ops := d.Ops()
	if last := ops[len(ops)-1]; last.Type != OpInsertText || last.NodeData != "<b>x</b>" {
		t.Errorf("last op = %+v", last)
	}
}

func TestParseCommand(t *testing.T) {
	if _, err := ParseCommand("justifyCenter"); err != nil {
		t.Errorf("justifyCenter: %v", err)
	}
	if _, err := ParseCommand("formatBlock"); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("formatBlock err = %v", err)
	}
}
