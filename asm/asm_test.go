package asm

import (
	"errors"
	"reflect"
	"testing"

	"esocc/report"
	"esocc/target"
)

func TestOperandString(t *testing.T) {
	tests := []struct {
		opd  Operand
		want string
	}{
		{Reg("A"), "A"},
		{Mem("J", -2), "[J-2]"},
		{Mem("I", 0), "[I]"},
		{Lit(-1), "-1"},
		{Lit(0x8000), "0x8000"},
		{MemLit(0x8000), "[0x8000]"},
		{Sym("draw_line", 0), "draw_line"},
		{MemSym("video_ram", 1), "[video_ram+1]"},
		{Sym("x", 0), "$x"},
		{MemSym("a", 1), "[$a+1]"},
		{Sym("pop", 0), "$pop"},
		{Sym("$t", 0), "$$t"},
		{Pick(3), "PICK 3"},
		{Push, "PUSH"},
		{Pop, "POP"},
		{PC, "PC"},
	}

	for _, test := range tests {
		if got := test.opd.String(); got != test.want {
			t.Errorf("String() = %q; want %q", got, test.want)
		}
	}
}

func TestInstrString(t *testing.T) {
	tests := []struct {
		in   *Instr
		want string
	}{
		{Op("SET", Reg("A"), Mem("J", 2)), "    SET A, [J+2]"},
		{Special("JSR", Sym("main", 0)), "    JSR main"},
		{Label("main"), "main:"},
		{Directive(DirWord, Lit(1), Sym("ch", 0)), ".dw 1, ch"},
		{Op("ADD", SP, Lit(4)).WithComment("args"), "    ADD SP, 4                ; args"},
	}

	for _, test := range tests {
		if got := test.in.String(); got != test.want {
			t.Errorf("String() = %q; want %q", got, test.want)
		}
	}
}

func TestParseOperands(t *testing.T) {
	tgt := target.Default()

	tests := []struct {
		src  string
		want Operand
	}{
		{"a", Reg("A")},
		{"[J+2]", Mem("J", 2)},
		{"[2+J]", Mem("J", 2)},
		{"[j - 3]", Mem("J", -3)},
		{"[0x8000]", MemLit(0x8000)},
		{"[video_ram]", MemSym("video_ram", 0)},
		{"[buf+2]", MemSym("buf", 2)},
		{"[SP]", Peek},
		{"[SP+2]", Pick(2)},
		{"[--SP]", Push},
		{"[SP++]", Pop},
		{"pick 1", Pick(1)},
		{"-1", Lit(-1)},
		{"0b101", Lit(5)},
		{"'H'", Lit('H')},
		{"main", Sym("main", 0)},
		{"table-1", Sym("table", -1)},
		{"ex", EX},
	}

	for _, test := range tests {
		s, err := Parse("test.s", "    SET PUSH, "+test.src, tgt)
		if err != nil {
			t.Errorf("Parse(%q) failed: %s", test.src, err)
			continue
		}

		if len(s) != 1 {
			t.Errorf("Parse(%q) gave %d entries; want 1", test.src, len(s))
			continue
		}

		if got := s[0].A; got != test.want {
			t.Errorf("Parse(%q) = %+v; want %+v", test.src, got, test.want)
		}
	}
}

func TestParseDirectives(t *testing.T) {
	src := `
.data
msg: .dw "Hi", 0 ; greeting
buf:
    .fill 3, 7
.align 4
.global msg, buf
`

	s, err := Parse("test.s", src, target.Default())
	if err != nil {
		t.Fatalf("Parse() failed: %s", err)
	}

	if len(s) != 7 {
		t.Fatalf("Parse() gave %d entries; want 7:\n%s", len(s), s)
	}

	dw := s[2]
	want := []Operand{Lit('H'), Lit('i'), Lit(0)}
	if dw.Mnemonic != DirWord || !reflect.DeepEqual(dw.Args, want) {
		t.Errorf(".dw args = %v; want %v", dw.Args, want)
	}

	if dw.Comment != "greeting" {
		t.Errorf(".dw comment = %q; want greeting", dw.Comment)
	}

	if fill := s[4]; fill.Args[0].Value != 3 || fill.Args[1].Value != 7 {
		t.Errorf(".fill args = %v; want 3, 7", fill.Args)
	}

	if glob := s[6]; len(glob.Args) != 2 || glob.Args[1].Sym != "buf" {
		t.Errorf(".global args = %v; want msg, buf", glob.Args)
	}
}

func TestRoundTrip(t *testing.T) {
	s := Stream{
		Directive(DirGlobal, Sym("main", 0)),
		Directive(DirExtern, Sym("draw_line", 0)),
		Directive(DirText),
		Label("main"),
		Op("SET", Push, Reg("J")),
		Op("SET", Reg("J"), SP),
		Op("SUB", SP, Lit(5)),
		Op("SET", Mem("J", -5), Lit('H')),
		Op("SET", Push, Lit(3)),
		Special("JSR", Sym("draw_line", 0)),
		Op("ADD", SP, Lit(1)).WithComment("pop args"),
		Label("main.while.head1").WithComment("loop"),
		Op("IFE", Reg("A"), MemSym("ch", 4)),
		Special("BRA", Sym("main.while.head1", 0)),
		Op("SET", Reg("A"), Pick(1)),
		Op("SET", Reg("SP"), Reg("J")),
		Op("SET", Reg("J"), Pop),
		Op("SET", PC, Pop),
		Directive(DirData),
		Label("ch"),
		Directive(DirFill, Lit(5), Lit(0)),
		Directive(DirWord, Lit(0x8000), Sym("ch", 2), Lit(-1)),
	}

	// SP is not a general register so use the special operand.
	s[15].B = SP

	parsed, err := Parse("round.s", s.String(), target.Default())
	if err != nil {
		t.Fatalf("Parse() failed: %s\n%s", err, s)
	}

	for _, in := range parsed {
		in.Line = 0
	}

	if !reflect.DeepEqual(parsed, s) {
		t.Errorf("round trip mismatch:\ngot:\n%s\nwant:\n%s", parsed, s)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		src  string
		line int
	}{
		{"SET A, 1\nSET B, 2\nFOO A, B", 3},
		{"SET A", 1},
		{"\nJSR a, b", 2},
		{".bogus 1", 1},
		{"SET A, [B+C]", 1},
		{"SET A, [B", 1},
		{"SET A, 0xZZ", 1},
		{"\n\n.align 0", 3},
		{"1bad: SET A, 1", 1},
		{".data\nx: .dw 1", 2},
		{".global b", 1},
		{".extern main, pc", 1},
	}

	for _, test := range tests {
		_, err := Parse("bad.s", test.src, target.Default())

		var se *report.SyntaxError
		if !errors.As(err, &se) {
			t.Errorf("Parse(%q) = %v; want syntax error", test.src, err)
			continue
		}

		if se.Line != test.line || se.File != "bad.s" {
			t.Errorf("Parse(%q) error at %s:%d; want bad.s:%d", test.src, se.File, se.Line, test.line)
		}
	}
}

func TestRegisterNamedSymbols(t *testing.T) {
	tgt := target.Default()

	tests := []struct {
		src  string
		want *Instr
	}{
		{"SET A, [$x]", Op("SET", Reg("A"), MemSym("x", 0))},
		{"SET [$y+1], x", Op("SET", MemSym("y", 1), Reg("X"))},
		{"SET PUSH, $i", Op("SET", Push, Sym("i", 0))},
		{"SET A, [$$t]", Op("SET", Reg("A"), MemSym("$t", 0))},
		{"$x:", Label("x")},
		{".extern $a, $sp", Directive(DirExtern, Sym("a", 0), Sym("sp", 0))},
	}

	for _, test := range tests {
		s, err := Parse("sym.s", test.src, tgt)
		if err != nil {
			t.Errorf("Parse(%q) failed: %s", test.src, err)
			continue
		}

		got := s[len(s)-1]
		got.Line = 0

		if !reflect.DeepEqual(got, test.want) {
			t.Errorf("Parse(%q) = %s; want %s", test.src, got, test.want)
		}
	}

	s := Stream{
		Directive(DirGlobal, Sym("x", 0)),
		Directive(DirText),
		Label("x"),
		Op("SET", Reg("X"), MemSym("x", 1)),
		Op("SET", MemSym("c", 0), Reg("C")),
		Directive(DirWord, Sym("x", 0), Sym("$j", 0)),
	}

	text := s.Text(tgt)
	parsed, err := Parse("round.s", text, tgt)
	if err != nil {
		t.Fatalf("Parse() failed: %s\n%s", err, text)
	}

	for _, in := range parsed {
		in.Line = 0
	}

	if !reflect.DeepEqual(parsed, s) {
		t.Errorf("round trip mismatch:\ngot:\n%s\nwant:\n%s", parsed, text)
	}
}
