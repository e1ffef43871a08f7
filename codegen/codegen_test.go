package codegen

import (
	"errors"
	"strings"
	"testing"

	"esocc/asm"
	"esocc/ast"
	"esocc/ir"
	"esocc/lower"
	"esocc/regalloc"
	"esocc/report"
	"esocc/samples"
	"esocc/target"
)

// generate lowers, allocates, and generates every function of a unit.  The
// returned bodies are indexed like the module's functions.
func generate(t *testing.T, unit *ast.TranslationUnit, tgt *target.Target) (*ir.Module, []asm.Stream) {
	t.Helper()

	m, err := lower.Lower(unit)
	if err != nil {
		t.Fatalf("Lower(%s) failed: %v", unit.Name, err)
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

		if bodies[i], err = Function(res, tgt); err != nil {
			t.Fatalf("Function(%s) failed: %v", f.Name, err)
		}
	}

	return m, bodies
}

func bodyOf(t *testing.T, m *ir.Module, bodies []asm.Stream, name string) asm.Stream {
	t.Helper()

	for i, f := range m.Funcs {
		if f.Name == name {
			return bodies[i]
		}
	}

	t.Fatalf("no function named %s", name)
	return nil
}

// threeRegisterTarget is the default target restricted to three allocatable
// registers.
func threeRegisterTarget() *target.Target {
	tgt := target.Default()
	tgt.Registers.Allocatable = []string{"A", "B", "C"}
	return tgt
}

func TestPrologueEpilogue(t *testing.T) {
	for _, tgt := range []*target.Target{target.Default(), threeRegisterTarget()} {
		m, bodies := generate(t, samples.Features(), tgt)

		for i, f := range m.Funcs {
			s := bodies[i]
			if f.IsDeclaration() {
				continue
			}

			if s[0].Kind != asm.KindLabel || s[0].Label != f.Name {
				t.Errorf("%s: stream starts with %s; want the function label", f.Name, s[0])
			}

			if !s[1].IsOp("SET") || s[1].B != asm.Push || s[1].A != asm.Reg("J") {
				t.Errorf("%s: first instruction = %s; want SET PUSH, J", f.Name, s[1])
			}

			if !s[2].IsOp("SET") || s[2].B != asm.Reg("J") || s[2].A != asm.SP {
				t.Errorf("%s: second instruction = %s; want SET J, SP", f.Name, s[2])
			}

			// the callee-saved registers pushed by the prologue
			k := 3
			if s[k].IsOp("SUB") && s[k].B == asm.SP {
				k++
			}

			var saved []string
			for ; s[k].IsOp("SET") && s[k].B == asm.Push && s[k].A.Kind == asm.OpdReg; k++ {
				if !tgt.IsCalleeSaved(s[k].A.Reg) {
					t.Errorf("%s: prologue saves caller-saved register %s", f.Name, s[k].A.Reg)
				}

				saved = append(saved, s[k].A.Reg)
			}

			returns := 0
			for j, in := range s {
				if !in.IsOp("SET") || in.B != asm.SP || in.A != asm.Reg("J") {
					continue
				}

				returns++
				if j+2 >= len(s) || s[j+1].String() != "    SET J, POP" || s[j+2].String() != "    SET PC, POP" {
					t.Errorf("%s: incomplete epilogue at %d", f.Name, j)
				}

				for n, r := range saved {
					pop := s[j-1-n]
					if !pop.IsOp("SET") || pop.B != asm.Reg(r) || pop.A != asm.Pop {
						t.Errorf("%s: epilogue restores %s; want SET %s, POP", f.Name, pop, r)
					}
				}
			}

			if returns == 0 {
				t.Errorf("%s: no epilogue", f.Name)
			}

			last := s[len(s)-1]
			if !last.IsOp("BRA") && last.String() != "    SET PC, POP" {
				t.Errorf("%s: control falls off the end after %s", f.Name, last)
			}
		}
	}
}

func TestDrawLineBackwardBranch(t *testing.T) {
	for _, tgt := range []*target.Target{target.Default(), threeRegisterTarget()} {
		m, bodies := generate(t, samples.Diag(), tgt)
		s := bodyOf(t, m, bodies, "draw_line")

		defined := make(map[string]bool)
		backward := 0
		for _, in := range s {
			switch {
			case in.Kind == asm.KindLabel:
				defined[in.Label] = true
			case in.IsOp("BRA"):
				if defined[in.A.Sym] {
					if !strings.HasPrefix(in.A.Sym, "draw_line.while.head") {
						t.Errorf("backward branch to %s; want the loop header", in.A.Sym)
					}

					backward++
				}
			}
		}

		if backward != 1 {
			t.Errorf("draw_line has %d backward branches; want 1:\n%s", backward, s)
		}
	}
}

func TestLibcallDivision(t *testing.T) {
	tgt := target.Default()
	tgt.Division.Mode = "libcall"

	m, bodies := generate(t, samples.Features(), tgt)

	tests := []struct {
		fn, routine string
	}{
		{"divide", "__divs"},
		{"modulo", "__modu"},
	}

	for _, test := range tests {
		s := bodyOf(t, m, bodies, test.fn)
		text := s.String()

		if !strings.Contains(text, "JSR "+test.routine) {
			t.Errorf("%s does not call %s:\n%s", test.fn, test.routine, text)
		}

		for _, mn := range []string{"DIV", "DVI", "MOD", "MDI"} {
			for _, in := range s {
				if in.IsOp(mn) {
					t.Errorf("%s uses %s on a target without division", test.fn, mn)
				}
			}
		}
	}

	unit := Module(m, bodies).String()
	for _, test := range tests {
		if !strings.Contains(unit, ".extern "+test.routine+"\n") {
			t.Errorf("module does not declare %s external", test.routine)
		}
	}
}

// buildBinary builds `f(a, b) { return a op b; }` or, for OpCmp,
// `f(a, b) { return a cond b; }`.
func buildBinary(op ir.Opcode, cond ir.Cond) *ir.Func {
	f := ir.NewFunc("f", ir.LinkLocal)
	f.HasResult = true

	a := f.NewParam(ir.WidthWord, true, "a")
	b := f.NewParam(ir.WidthWord, true, "b")

	bld := ir.NewBuilder(f)
	bld.SetBlock(f.NewBlock("entry"))

	var v ir.ValueID
	if op == ir.OpCmp {
		v = bld.Cmp(cond, true, ir.V(a), ir.V(b))
	} else {
		v = bld.Binary(op, ir.V(a), ir.V(b), true)
	}

	ret := ir.V(v)
	bld.Return(&ret)
	return f
}

func TestEmissionRules(t *testing.T) {
	regA := regalloc.Loc{Kind: regalloc.LocReg, Reg: 0}
	regB := regalloc.Loc{Kind: regalloc.LocReg, Reg: 1}
	regC := regalloc.Loc{Kind: regalloc.LocReg, Reg: 2}

	tests := []struct {
		name string
		fn   *ir.Func
		locs []regalloc.Loc
		want []string
	}{
		{
			"sub into the right operand",
			buildBinary(ir.OpSub, 0), []regalloc.Loc{regA, regB, regB},
			[]string{"SET PUSH, A", "SUB PEEK, B", "SET B, POP", "SET A, B"},
		},
		{
			"add into the right operand",
			buildBinary(ir.OpAdd, 0), []regalloc.Loc{regA, regB, regB},
			[]string{"ADD B, A", "SET A, B"},
		},
		{
			"signed division",
			buildBinary(ir.OpDiv, 0), []regalloc.Loc{regA, regB, regC},
			[]string{"SET C, A", "DVI C, B", "SET A, C"},
		},
		{
			"compare less or equal",
			buildBinary(ir.OpCmp, ir.CondLe), []regalloc.Loc{regA, regB, regC},
			[]string{"SET C, 1", "IFA A, B", "SET C, 0", "SET A, C"},
		},
		{
			"compare into an operand",
			buildBinary(ir.OpCmp, ir.CondLt), []regalloc.Loc{regA, regB, regA},
			[]string{"SET PUSH, 0", "IFU A, B", "SET PEEK, 1", "SET A, POP"},
		},
	}

	for _, test := range tests {
		res := &regalloc.Result{Func: test.fn, Locs: test.locs, UsedRegs: []int{0, 1, 2}}

		s, err := Function(res, target.Default())
		if err != nil {
			t.Errorf("%s: Function() failed: %v", test.name, err)
			continue
		}

		// skip the label, the frame setup, and the parameter loads
		var body []string
		for _, in := range s[5 : len(s)-3] {
			body = append(body, strings.TrimSpace(in.String()))
		}

		if strings.Join(body, "; ") != strings.Join(test.want, "; ") {
			t.Errorf("%s: body = %q; want %q", test.name, body, test.want)
		}
	}
}

func TestImmediateTooWide(t *testing.T) {
	f := ir.NewFunc("wide", ir.LinkExported)
	f.HasResult = true

	bld := ir.NewBuilder(f)
	bld.SetBlock(f.NewBlock("entry"))
	ret := ir.V(bld.Const(0x12345, ir.WidthWord, false))
	bld.Return(&ret)

	tgt := target.Default()
	res, err := regalloc.Allocate(f, regalloc.ConfigFor(tgt))
	if err != nil {
		t.Fatalf("Allocate() failed: %v", err)
	}

	_, err = Function(res, tgt)

	var te *report.TargetError
	if !errors.As(err, &te) {
		t.Fatalf("Function() = %v; want a target error", err)
	}

	if te.Func != "wide" || te.Instr == "" {
		t.Errorf("target error names %q at %q; want wide and the constant", te.Func, te.Instr)
	}
}

func TestModuleDirectives(t *testing.T) {
	tgt := target.Default()

	m, bodies := generate(t, samples.Diag(), tgt)
	unit := Module(m, bodies).String()

	for _, want := range []string{".global main\n", ".text\n", ".data\n", "video_ram:\n.dw 0x8000\n", "ch:\n.fill 5, 0\n"} {
		if !strings.Contains(unit, want) {
			t.Errorf("diag unit lacks %q:\n%s", want, unit)
		}
	}

	for _, bad := range []string{".global draw_line", ".global video_ram", ".extern"} {
		if strings.Contains(unit, bad) {
			t.Errorf("diag unit contains %q:\n%s", bad, unit)
		}
	}

	_, app := samples.DiagSplit()
	m, bodies = generate(t, app, tgt)
	unit = Module(m, bodies).String()

	if !strings.Contains(unit, ".extern draw_line\n") {
		t.Errorf("app unit does not import draw_line:\n%s", unit)
	}
}

func TestData(t *testing.T) {
	g := &ir.Global{
		Name: "table",
		Size: 12,
		Init: []ir.DataItem{
			{Value: 1}, {Value: 2}, {Value: 3}, {Value: 4}, {Value: 5},
			{Value: 6}, {Value: 7}, {Value: 8}, {Sym: "table", Value: 2},
		},
		ReadOnly: true,
	}

	want := "table:                       ; read-only\n" +
		".dw 1, 2, 3, 4, 5, 6, 7, 8\n" +
		".dw table+2\n" +
		".fill 3, 0\n"

	if got := Data(g).String(); got != want {
		t.Errorf("Data() =\n%s\nwant\n%s", got, want)
	}
}
