package assemble

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"esocc/asm"
	"esocc/ast"
	"esocc/codegen"
	"esocc/lower"
	"esocc/obj"
	"esocc/regalloc"
	"esocc/report"
	"esocc/samples"
	"esocc/target"
)

func assembleText(t *testing.T, src string) *obj.Object {
	t.Helper()

	tgt := target.Default()
	s, err := asm.Parse("test.s", src, tgt)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}

	o, err := Assemble("test", s, tgt)
	if err != nil {
		t.Fatalf("Assemble() failed: %v", err)
	}

	return o
}

func TestEncoding(t *testing.T) {
	tests := []struct {
		src  string
		want []uint32
	}{
		{"SET A, 1", []uint32{0x8801}},
		{"SET A, -1", []uint32{0x8001}},
		{"SET A, 30", []uint32{0xfc01}},
		{"SET A, 31", []uint32{0x7c01, 0x1f}},
		{"SET A, 0x30", []uint32{0x7c01, 0x30}},
		{"SET PUSH, J", []uint32{0x1f01}},
		{"SET PC, POP", []uint32{0x6381}},
		{"SET B, PEEK", []uint32{0x6421}},
		{"SET A, PICK 3", []uint32{0x6801, 3}},
		{"SET [J-2], B", []uint32{0x06e1, 0xfffe}},
		{"SET [A+1], [B+2]", []uint32{0x4601, 2, 1}},
		{"IFE A, [0x8000]", []uint32{0x7812, 0x8000}},
		{"ADD SP, 2", []uint32{0x8f62}},
		{"SUB PC, 1", []uint32{0x8b83}},
		{"JSR 0x1234", []uint32{0x7c20, 0x1234}},
		{".dw 1, -2, 'A'\n.fill 2, 7", []uint32{1, 0xfffe, 'A', 7, 7}},
		{".dw 1\n.align 4", []uint32{1, 0, 0, 0}},
	}

	for _, test := range tests {
		o := assembleText(t, test.src)
		got := append(o.Section(obj.SecText).Units, o.Section(obj.SecData).Units...)

		if !reflect.DeepEqual(got, test.want) {
			t.Errorf("%q encodes as %04x; want %04x", test.src, got, test.want)
		}

		if len(o.Relocs) != 0 {
			t.Errorf("%q has relocations %v", test.src, o.Relocs)
		}
	}
}

func TestBackwardBranch(t *testing.T) {
	o := assembleText(t, "loop:\n    ADD A, 1\n    IFN A, 10\n    BRA loop")

	want := []uint32{0x8802, 0xac13, 0x9383}
	if got := o.Section(obj.SecText).Units; !reflect.DeepEqual(got, want) {
		t.Errorf("loop encodes as %04x; want %04x", got, want)
	}

	if len(o.Relocs) != 0 {
		t.Errorf("backward branch has relocations %v", o.Relocs)
	}
}

func TestForwardBranch(t *testing.T) {
	o := assembleText(t, "    BRA done\n    SET A, 1\ndone:\n    SUB PC, 1")

	want := []*obj.Reloc{{Section: obj.SecText, Offset: 1, Symbol: "done", Kind: obj.RelocRel, Addend: -1}}
	if !reflect.DeepEqual(o.Relocs, want) {
		t.Errorf("relocations = %v; want %v", o.Relocs, want)
	}

	image, err := o.Resolve(0)
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}

	if want := []uint32{0x7f82, 1, 0x8801, 0x8b83}; !reflect.DeepEqual(image, want) {
		t.Errorf("image = %04x; want %04x", image, want)
	}
}

func TestSymbols(t *testing.T) {
	o := assembleText(t, `
.global start
.extern helper
.text
start:
    JSR helper
    SET A, [value]
    JSR other
.data
value: .dw start+1
`)

	tests := []struct {
		name    string
		linkage obj.Linkage
	}{
		{"start", obj.LinkExported},
		{"value", obj.LinkLocal},
		{"helper", obj.LinkImported},
		{"other", obj.LinkImported},
	}

	for _, test := range tests {
		sym, ok := o.Lookup(test.name)
		if !ok || sym.Linkage != test.linkage {
			t.Errorf("symbol %s = %+v; want %s", test.name, sym, test.linkage)
		}
	}

	want := []*obj.Reloc{
		{Section: obj.SecText, Offset: 1, Symbol: "helper", Kind: obj.RelocAbs},
		{Section: obj.SecText, Offset: 3, Symbol: "value", Kind: obj.RelocAbs},
		{Section: obj.SecText, Offset: 5, Symbol: "other", Kind: obj.RelocAbs},
		{Section: obj.SecData, Offset: 0, Symbol: "start", Kind: obj.RelocAbs, Addend: 1},
	}

	if !reflect.DeepEqual(o.Relocs, want) {
		t.Errorf("relocations = %v; want %v", o.Relocs, want)
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		src  string
		line int
	}{
		{"a:\na:", 2},
		{".global missing", 1},
		{"x: SET A, 1\n.extern x", 2},
		{"SET A, PUSH", 1},
		{"SET POP, A", 1},
		{".data\nSET A, 1", 2},
		{"SET A, 0x12345", 1},
		{".dw 0x10000", 1},
	}

	tgt := target.Default()
	for _, test := range tests {
		s, err := asm.Parse("bad.s", test.src, tgt)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", test.src, err)
		}

		_, err = Assemble("bad.s", s, tgt)

		var se *report.SyntaxError
		if !errors.As(err, &se) {
			t.Errorf("Assemble(%q) = %v; want syntax error", test.src, err)
			continue
		}

		if se.Line != test.line {
			t.Errorf("Assemble(%q) error on line %d; want %d", test.src, se.Line, test.line)
		}
	}
}

func TestDrawLineRelocations(t *testing.T) {
	tgt := target.Default()
	lib, app := samples.DiagSplit()

	objects := make(map[string]*obj.Object)
	for _, tu := range []*ast.TranslationUnit{lib, app} {
		m, err := lower.Lower(tu)
		if err != nil {
			t.Fatalf("Lower(%s) failed: %v", tu.Name, err)
		}

		bodies := make([]asm.Stream, len(m.Funcs))
		for i, f := range m.Funcs {
			if f.IsDeclaration() {
				continue
			}

			res, err := regalloc.Allocate(f, regalloc.ConfigFor(tgt))
			if err != nil {
				t.Fatalf("Allocate(%s) failed: %v", f.Name, err)
			}

			if bodies[i], err = codegen.Function(res, tgt); err != nil {
				t.Fatalf("Function(%s) failed: %v", f.Name, err)
			}
		}

		o, err := Assemble(tu.Name, codegen.Module(m, bodies), tgt)
		if err != nil {
			t.Fatalf("Assemble(%s) failed: %v", tu.Name, err)
		}

		objects[tu.Name] = o
	}

	for _, r := range objects["video"].Relocs {
		if strings.HasPrefix(r.Symbol, "draw_line.while.head") {
			t.Errorf("backward branch to %s has a relocation", r.Symbol)
		}
	}

	if sym, ok := objects["video"].Lookup("draw_line"); !ok || sym.Linkage != obj.LinkExported {
		t.Errorf("video does not export draw_line: %+v", sym)
	}

	calls := 0
	for _, r := range objects["app"].Relocs {
		if r.Symbol == "draw_line" && r.Kind == obj.RelocAbs {
			calls++
		}
	}

	if calls != 1 {
		t.Errorf("app has %d relocations for draw_line; want 1", calls)
	}

	if sym, ok := objects["app"].Lookup("draw_line"); !ok || sym.Linkage != obj.LinkImported {
		t.Errorf("app does not import draw_line: %+v", sym)
	}
}

func TestRegisterNamedSymbols(t *testing.T) {
	o := assembleText(t, `
.global $x
.text
$x:
    SET A, [$x]
    SET PC, POP
`)

	// [$x] is a memory reference to the symbol, not [X] (0x2c01).
	wantUnits := []uint32{0x7801, 0, 0x6381}
	if got := o.Section(obj.SecText).Units; !reflect.DeepEqual(got, wantUnits) {
		t.Errorf("text = %04x; want %04x", got, wantUnits)
	}

	wantRelocs := []*obj.Reloc{{Section: obj.SecText, Offset: 1, Symbol: "x", Kind: obj.RelocAbs}}
	if !reflect.DeepEqual(o.Relocs, wantRelocs) {
		t.Errorf("relocations = %v; want %v", o.Relocs, wantRelocs)
	}

	if sym, ok := o.Lookup("x"); !ok || sym.Linkage != obj.LinkExported {
		t.Errorf("symbol x = %+v; want %s", sym, obj.LinkExported)
	}

	_, err := asm.Parse("bad.s", ".text\nx:\n    SET A, [x]", target.Default())

	var se *report.SyntaxError
	if !errors.As(err, &se) || se.Line != 2 {
		t.Errorf("Parse of label x = %v; want syntax error on line 2", err)
	}
}
