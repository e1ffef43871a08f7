package peephole

import (
	"testing"

	"esocc/asm"
	"esocc/ast"
	"esocc/codegen"
	"esocc/lower"
	"esocc/regalloc"
	"esocc/samples"
	"esocc/target"
)

func parse(t *testing.T, src string) asm.Stream {
	t.Helper()

	s, err := asm.Parse("test.s", src, target.Default())
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", src, err)
	}

	return s
}

func TestRules(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"store then load", "SET [J-1], A\nSET A, [J-1]", "SET [J-1], A"},
		{"load through the overwritten register", "SET A, [A]\nSET [A], A", "SET A, [A]\nSET [A], A"},
		{"overwritten move", "SET A, 1\nSET A, B", "SET A, B"},
		{"overwrite reads the register", "SET A, 1\nSET A, [A+1]", "SET A, 1\nSET A, [A+1]"},
		{"move from the stack", "SET A, POP\nSET A, 2", "SET A, POP\nSET A, 2"},
		{"identities", "ADD A, 0\nMUL B, 1\nBOR C, 0\nAND X, 0xffff\nSUB SP, 0", ""},
		{"not identities", "ADD A, 1\nMUL B, 0\nAND X, 0xff", "ADD A, 1\nMUL B, 0\nAND X, 0xff"},
		{"self move", "SET X, X\nSET [J-2], [J-2]", ""},
		{"push then pop", "SET PUSH, A\nSET A, POP", ""},
		{"guarded identity", "IFE A, B\nADD A, 0", "IFE A, B\nADD A, 0"},
		{"guarded window", "IFE A, B\nSET C, 1\nSET C, 2", "IFE A, B\nSET C, 1\nSET C, 2"},
		{"across a label", "SET A, B\nl:\nSET B, A", "SET A, B\nl:\nSET B, A"},
		{"across a branch", "SET A, 1\nBRA l\nSET A, 2\nl:", "SET A, 1\nBRA l\nSET A, 2\nl:"},
		{"cascade", "SET A, 1\nADD B, 0\nSET A, 2", "SET A, 2"},
	}

	for _, test := range tests {
		got := Optimize(parse(t, test.in), target.Default()).String()
		want := parse(t, test.want).String()

		if got != want {
			t.Errorf("%s: Optimize() =\n%s\nwant\n%s", test.name, got, want)
		}
	}
}

func TestInputUnchanged(t *testing.T) {
	s := parse(t, "SET A, 1\nSET A, 2")
	before := s.String()

	Optimize(s, target.Default())

	if s.String() != before {
		t.Errorf("Optimize() modified its input:\n%s", s)
	}
}

func TestIdempotence(t *testing.T) {
	tgt := target.Default()
	lib, app := samples.DiagSplit()

	for _, unit := range []*ast.TranslationUnit{samples.Diag(), samples.Features(), lib, app} {
		m, err := lower.Lower(unit)
		if err != nil {
			t.Fatalf("Lower(%s) failed: %v", unit.Name, err)
		}

		for _, f := range m.Funcs {
			if f.IsDeclaration() {
				continue
			}

			res, err := regalloc.Allocate(f, regalloc.ConfigFor(tgt))
			if err != nil {
				t.Fatalf("Allocate(%s) failed: %v", f.Name, err)
			}

			s, err := codegen.Function(res, tgt)
			if err != nil {
				t.Fatalf("Function(%s) failed: %v", f.Name, err)
			}

			once := Optimize(s, tgt)
			twice := Optimize(once, tgt)

			if once.String() != twice.String() {
				t.Errorf("%s: second run changed the stream:\n%s\nthen\n%s", f.Name, once, twice)
			}

			if len(once) > len(s) {
				t.Errorf("%s: optimization grew the stream", f.Name)
			}
		}
	}
}
