package link

import (
	"errors"
	"reflect"
	"testing"

	"esocc/asm"
	"esocc/assemble"
	"esocc/obj"
	"esocc/report"
	"esocc/target"

	"github.com/kr/pretty"
)

const videoSrc = `
.global draw_line
.text
draw_line:
	SET A, [J+2]
loop:
	IFE A, 0
	BRA done
	SET [video_ram], A
	SUB A, 1
	BRA loop
done:
	SET PC, POP
.data
video_ram:
.dw 0x8000
`

const appSrc = `
.global main
.extern draw_line
.text
main:
	SET PUSH, 4
	JSR draw_line
	ADD SP, 1
	SET PC, POP
`

func assembleText(t *testing.T, name, src string) *obj.Object {
	t.Helper()

	tgt := target.Default()

	s, err := asm.Parse(name, src, tgt)
	if err != nil {
		t.Fatalf("Parse(%s) failed: %v", name, err)
	}

	o, err := assemble.Assemble(name, s, tgt)
	if err != nil {
		t.Fatalf("Assemble(%s) failed: %v", name, err)
	}

	return o
}

func TestUndefinedSymbol(t *testing.T) {
	app := assembleText(t, "app", appSrc)

	for _, mode := range []Mode{Relocatable, Flat} {
		_, err := Link([]*obj.Object{app}, Options{Mode: mode})

		var le *report.LinkError
		if !errors.As(err, &le) {
			t.Fatalf("Link(mode %d) error = %v; want a link error", mode, err)
		}

		if le.Kind != report.LinkUndefined || le.Symbol != "draw_line" {
			t.Errorf("Link(mode %d) error = %v; want undefined draw_line", mode, le)
		}

		if !reflect.DeepEqual(le.Modules, []string{"app"}) {
			t.Errorf("undefined symbol modules = %v; want [app]", le.Modules)
		}
	}
}

func TestDuplicateSymbol(t *testing.T) {
	a := assembleText(t, "a", ".global f\nf: SET PC, POP")
	b := assembleText(t, "b", ".global f\nf: SET A, 1\nSET PC, POP")

	_, err := Link([]*obj.Object{a, b}, Options{})

	var le *report.LinkError
	if !errors.As(err, &le) {
		t.Fatalf("Link error = %v; want a link error", err)
	}

	if le.Kind != report.LinkDuplicate || le.Symbol != "f" {
		t.Errorf("Link error = %v; want duplicate f", le)
	}

	if !reflect.DeepEqual(le.Modules, []string{"a", "b"}) {
		t.Errorf("duplicate symbol modules = %v; want [a b]", le.Modules)
	}
}

func TestRoundTrip(t *testing.T) {
	o := assembleText(t, "video", videoSrc)

	for _, base := range []int64{0, 0x200} {
		want, err := o.Resolve(base)
		if err != nil {
			t.Fatalf("Resolve(%#x) failed: %v", base, err)
		}

		res, err := Link([]*obj.Object{o}, Options{Mode: Flat, Base: base})
		if err != nil {
			t.Fatalf("Link(base %#x) failed: %v", base, err)
		}

		if diff := pretty.Diff(res.Image, want); len(diff) > 0 {
			t.Errorf("linked image at %#x differs from resolved image:\n%v", base, diff)
		}
	}
}

func TestCallResolution(t *testing.T) {
	video := assembleText(t, "video", videoSrc)
	app := assembleText(t, "app", appSrc)

	// app comes first so the call references a symbol collected later.
	res, err := Link([]*obj.Object{app, video}, Options{Mode: Flat})
	if err != nil {
		t.Fatalf("Link failed: %v", err)
	}

	sym, ok := res.Object.Lookup("draw_line")
	if !ok {
		t.Fatalf("merged object has no draw_line")
	}

	appText := int64(len(app.Section(obj.SecText).Units))
	if sym.Offset != appText {
		t.Errorf("draw_line offset = %d; want %d", sym.Offset, appText)
	}

	// SET PUSH, 4 is one word; JSR's next word follows it.
	if got := res.Image[2]; int64(got) != appText {
		t.Errorf("JSR target = %#x; want %#x", got, appText)
	}
}

func TestRelocatableOutput(t *testing.T) {
	video := assembleText(t, "video", videoSrc)
	app := assembleText(t, "app", appSrc)

	res, err := Link([]*obj.Object{app, video}, Options{Mode: Relocatable, Name: "prog"})
	if err != nil {
		t.Fatalf("Link failed: %v", err)
	}

	if res.Image != nil {
		t.Errorf("relocatable link produced an image")
	}

	o := res.Object
	if o.Name != "prog" {
		t.Errorf("Name = %q; want prog", o.Name)
	}

	for _, sym := range o.Symbols {
		if sym.Linkage == obj.LinkImported {
			t.Errorf("merged object imports %s", sym.Name)
		}
	}

	for _, r := range o.Relocs {
		if r.Kind != obj.RelocAbs {
			t.Errorf("relative relocation to %s survived the link", r.Symbol)
		}
	}

	// Linking the merged object alone must give the same image as linking
	// the inputs directly.
	flat, err := Link([]*obj.Object{app, video}, Options{Mode: Flat, Base: 0x40})
	if err != nil {
		t.Fatalf("Link failed: %v", err)
	}

	again, err := Link([]*obj.Object{o}, Options{Mode: Flat, Base: 0x40})
	if err != nil {
		t.Fatalf("Link of the merged object failed: %v", err)
	}

	if diff := pretty.Diff(again.Image, flat.Image); len(diff) > 0 {
		t.Errorf("relinked image differs:\n%v", diff)
	}
}

func TestUnreferencedImport(t *testing.T) {
	lib := assembleText(t, "lib", ".global f\n.extern missing\nf: SET PC, POP")

	for _, mode := range []Mode{Relocatable, Flat} {
		_, err := Link([]*obj.Object{lib}, Options{Mode: mode})

		var le *report.LinkError
		if !errors.As(err, &le) {
			t.Fatalf("Link(mode %d) error = %v; want a link error", mode, err)
		}

		want := &report.LinkError{Kind: report.LinkUndefined, Symbol: "missing", Modules: []string{"lib"}}
		if diff := pretty.Diff(le, want); len(diff) > 0 {
			t.Errorf("Link(mode %d) error differs:\n%v", mode, diff)
		}
	}

	def := assembleText(t, "def", ".global missing\nmissing: SET PC, POP")
	if _, err := Link([]*obj.Object{lib, def}, Options{Mode: Flat}); err != nil {
		t.Errorf("Link with the import defined failed: %v", err)
	}
}

func TestLocalCollision(t *testing.T) {
	a := assembleText(t, "a", ".global f\nf: SET A, [val]\nSET PC, POP\n.data\nval: .dw 1")
	b := assembleText(t, "b", ".global g\ng: SET A, [val]\nSET PC, POP\n.data\nval: .dw 2")

	res, err := Link([]*obj.Object{a, b}, Options{Mode: Flat})
	if err != nil {
		t.Fatalf("Link failed: %v", err)
	}

	// Text: f (3 words), g (3 words); data: a.val, b.val.
	want := []uint32{0x7801, 6, 0x6381, 0x7801, 7, 0x6381, 1, 2}
	if diff := pretty.Diff(res.Image, want); len(diff) > 0 {
		t.Errorf("image differs:\n%v", diff)
	}

	if _, ok := res.Object.Lookup("val$b"); !ok {
		t.Errorf("colliding local of b was not renamed")
	}
}

func TestFlatten(t *testing.T) {
	got := Flatten([]uint32{0x1234, 0xabcd}, 16, true)
	want := []byte{0x12, 0x34, 0xab, 0xcd}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("Flatten = % x; want % x", got, want)
	}
}
