package lower

import (
	"errors"
	"testing"

	"esocc/ast"
	"esocc/ir"
	"esocc/report"
	"esocc/samples"
	"esocc/typing"
)

func mustLower(t *testing.T, unit *ast.TranslationUnit) *ir.Module {
	t.Helper()

	m, err := Lower(unit)
	if err != nil {
		t.Fatalf("Lower(%s) failed: %v", unit.Name, err)
	}

	if violations := ir.Verify(m); len(violations) != 0 {
		t.Fatalf("Lower(%s) produced invalid IR: %v\n%s", unit.Name, violations, m)
	}

	return m
}

// loopHeaders returns the blocks of f that are targets of a back edge.
func loopHeaders(f *ir.Func) []*ir.Block {
	dom := f.Dominators()

	var headers []*ir.Block
	for _, blk := range f.Blocks {
		for _, pred := range blk.Preds {
			if dom.Dominates(blk.ID, pred) {
				headers = append(headers, blk)
				break
			}
		}
	}

	return headers
}

func TestLowerDrawLine(t *testing.T) {
	m := mustLower(t, samples.Diag())

	f := m.Func("draw_line")
	if f == nil {
		t.Fatalf("draw_line was not lowered")
	}

	if f.Linkage != ir.LinkLocal {
		t.Errorf("draw_line linkage = %v; want %v", f.Linkage, ir.LinkLocal)
	}

	headers := loopHeaders(f)
	if len(headers) != 1 {
		t.Fatalf("draw_line has %d loop headers; want 1\n%s", len(headers), f)
	}

	head := headers[0]

	// the advancing pointers are merged in the header while the loop
	// invariant color is not
	if phis := f.Phis(head.ID); len(phis) != 2 {
		t.Errorf("loop header has %d phis; want 2\n%s", len(phis), f)
	}

	term := f.Terminator(head.ID)
	if term == nil || term.Op != ir.OpBranch {
		t.Fatalf("loop header does not end in a branch\n%s", f)
	}

	if term.Cond != ir.CondNe || term.Args[1].IsValue() || term.Args[1].Imm != 0 {
		t.Errorf("loop condition = %s; want a comparison != 0", f.InstrString(head.Instrs[len(head.Instrs)-1]))
	}

	cond := f.Value(term.Args[0].Value)
	if cond.Def == ir.NoInstr || f.Instr(cond.Def).Op != ir.OpLoad {
		t.Errorf("loop condition does not test a loaded character\n%s", f)
	}

	if len(f.Frame) != 0 {
		t.Errorf("draw_line has %d frame objects; want 0", len(f.Frame))
	}
}

func TestLowerSamplesVerify(t *testing.T) {
	lib, app := samples.DiagSplit()

	for _, unit := range []*ast.TranslationUnit{samples.Diag(), samples.Features(), lib, app} {
		t.Run(unit.Name, func(t *testing.T) {
			mustLower(t, unit)
		})
	}
}

func TestLowerImportedFunction(t *testing.T) {
	_, app := samples.DiagSplit()
	m := mustLower(t, app)

	sym, ok := m.Lookup("draw_line")
	if !ok {
		t.Fatalf("draw_line is not declared")
	}

	if sym.Linkage != ir.LinkImported {
		t.Errorf("draw_line linkage = %v; want %v", sym.Linkage, ir.LinkImported)
	}

	if f := m.Func("draw_line"); f == nil || !f.IsDeclaration() {
		t.Errorf("draw_line should be a declaration")
	}

	if sym, _ := m.Lookup("main"); sym == nil || sym.Linkage != ir.LinkExported {
		t.Errorf("main should be exported")
	}
}

func TestLowerUndeclaredSymbol(t *testing.T) {
	ghost := &ast.Symbol{
		Name: "ghost",
		Type: &typing.FuncType{ReturnType: typing.Void},
		Kind: ast.SymFunc,
	}

	unit := &ast.TranslationUnit{
		Name: "broken",
		Decls: []ast.Decl{&ast.FuncDecl{
			Sym: &ast.Symbol{Name: "main", Type: &typing.FuncType{ReturnType: typing.Void}, Kind: ast.SymFunc},
			Body: &ast.Block{Stmts: []ast.Stmt{
				&ast.ExprStmt{X: ast.CallOf(ast.Ref(ghost))},
			}},
		}},
	}

	_, err := Lower(unit)

	var ice *report.InternalError
	if !errors.As(err, &ice) {
		t.Fatalf("Lower returned %v; want an internal error", err)
	}

	if ice.Func != "main" {
		t.Errorf("internal error reported in %q; want %q", ice.Func, "main")
	}
}

func TestLowerFeatures(t *testing.T) {
	m := mustLower(t, samples.Features())

	frameLocals := func(name string) int {
		n := 0
		for _, obj := range m.Func(name).Frame {
			if obj.Kind == ir.FrameLocal {
				n++
			}
		}

		return n
	}

	tests := []struct {
		fn   string
		want int
	}{
		{"sum", 0},
		{"swapped", 2},
		{"area", 2},
		{"partial", 1},
		{"indirect", 0},
	}

	for _, test := range tests {
		if got := frameLocals(test.fn); got != test.want {
			t.Errorf("%s has %d frame locals; want %d", test.fn, got, test.want)
		}
	}

	str := m.Global("__str_0")
	if str == nil {
		t.Fatalf("string literal was not emitted")
	}

	if !str.ReadOnly || str.Size != 6 || str.Init[0].Value != 'h' || str.Init[5].Value != 0 {
		t.Errorf("string literal global = %+v", str)
	}

	if g := m.Global("results"); g == nil || g.Size != len(samples.FeatureResults) || g.Init != nil {
		t.Errorf("results global = %+v", g)
	}
}

func TestLowerSwitchFallthrough(t *testing.T) {
	m := mustLower(t, samples.Features())
	f := m.Func("classify")

	// one equality test per case value
	tests := 0
	for _, blk := range f.Blocks {
		term := f.Terminator(blk.ID)
		if term.Op == ir.OpBranch && term.Cond == ir.CondEq {
			tests++
		}
	}

	if tests != 3 {
		t.Errorf("classify has %d case tests; want 3\n%s", tests, f)
	}

	// the result merges the value set by the second case with the default
	returns := 0
	for _, blk := range f.Blocks {
		if f.Terminator(blk.ID).Op == ir.OpReturn {
			returns++
		}
	}

	if returns != 2 {
		t.Errorf("classify has %d returns; want 2\n%s", returns, f)
	}
}

func TestLowerArrayArguments(t *testing.T) {
	voidFn := &typing.FuncType{ReturnType: typing.Void}
	puts := &ast.Symbol{
		Name: "puts",
		Type: &typing.FuncType{
			ReturnType: typing.Void,
			ParamTypes: []typing.Type{&typing.PointerType{ElemType: typing.CharType}},
		},
		Kind: ast.SymFunc,
	}
	buf := &ast.Symbol{
		Name:    "buf",
		Type:    &typing.ArrayType{ElemType: typing.CharType, Len: 4},
		Kind:    ast.SymGlobal,
		Storage: ast.StorageStatic,
	}

	unit := &ast.TranslationUnit{
		Name: "greet",
		Decls: []ast.Decl{
			&ast.FuncDecl{Sym: puts},
			&ast.VarDecl{Sym: buf},
			&ast.FuncDecl{
				Sym: &ast.Symbol{Name: "main", Type: voidFn, Kind: ast.SymFunc},
				Body: &ast.Block{Stmts: []ast.Stmt{
					&ast.ExprStmt{X: ast.CallOf(ast.Ref(puts), ast.Str("hi"))},
					&ast.ExprStmt{X: ast.CallOf(ast.Ref(puts), ast.Ref(buf))},
				}},
			},
		},
	}

	m := mustLower(t, unit)
	f := m.Func("main")

	addrs := make(map[ir.ValueID]string)
	for _, in := range f.Instrs {
		if in.Op == ir.OpAddr {
			addrs[in.Dest] = in.Sym
		}
	}

	var passed []string
	for _, in := range f.Instrs {
		if in.Op != ir.OpCall || in.Sym != "puts" {
			continue
		}

		if len(in.Args) != 1 || !in.Args[0].IsValue() {
			t.Fatalf("puts called with %v; want one address", in.Args)
		}

		sym, ok := addrs[in.Args[0].Value]
		if !ok {
			t.Fatalf("argument of puts is not an address\n%s", f)
		}

		passed = append(passed, sym)
	}

	if len(passed) != 2 {
		t.Fatalf("main calls puts %d times; want 2", len(passed))
	}

	if g := m.Global(passed[0]); g == nil || passed[0] == "buf" {
		t.Errorf("string argument addresses %q; want an anonymous string global", passed[0])
	}

	if passed[1] != "buf" {
		t.Errorf("array argument addresses %q; want buf", passed[1])
	}
}
