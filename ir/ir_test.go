package ir

import (
	"strings"
	"testing"
)

// buildCountdown builds:
//
//	int countdown(int n) { int s = 0; while (n != 0) { s = s + n; n = n - 1; } return s; }
func buildCountdown() *Func {
	f := NewFunc("countdown", LinkExported)
	f.HasResult = true
	n := f.NewParam(WidthWord, true, "n")

	entry := f.NewBlock("entry")
	head := f.NewBlock("while.head")
	body := f.NewBlock("while.body")
	exit := f.NewBlock("while.exit")

	b := NewBuilder(f)
	b.SetBlock(entry)
	s0 := b.Const(0, WidthWord, true)
	b.Jump(head)

	sPhi, sPhiID := b.Phi(head, WidthWord, true)
	nPhi, nPhiID := b.Phi(head, WidthWord, true)
	b.SetBlock(head)
	b.Branch(CondNe, true, V(nPhi), Imm(0), body, exit)

	b.SetBlock(body)
	s1 := b.Binary(OpAdd, V(sPhi), V(nPhi), true)
	n1 := b.Binary(OpSub, V(nPhi), Imm(1), true)
	b.Jump(head)

	b.AddPhiArg(sPhiID, s0)
	b.AddPhiArg(sPhiID, s1)
	b.AddPhiArg(nPhiID, n)
	b.AddPhiArg(nPhiID, n1)

	b.SetBlock(exit)
	ret := V(sPhi)
	b.Return(&ret)

	return f
}

func TestVerifyAcceptsWellFormed(t *testing.T) {
	f := buildCountdown()

	if violations := VerifyFunc(f); len(violations) != 0 {
		t.Fatalf("VerifyFunc reported %v\n%s", violations, f)
	}
}

func TestVerifyRejects(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(f *Func)
		want    string
	}{
		{
			"value defined twice",
			func(f *Func) {
				body := f.Blocks[2]
				f.Instrs[body.Instrs[1]].Dest = f.Instrs[body.Instrs[0]].Dest
			},
			"defined 2 times",
		},
		{
			"terminator in the middle",
			func(f *Func) {
				entry := f.Blocks[0]
				entry.Instrs = append([]InstrID{entry.Instrs[1]}, entry.Instrs...)
			},
			"is not the last instruction",
		},
		{
			"phi operand count",
			func(f *Func) {
				phi := &f.Instrs[f.Blocks[1].Instrs[0]]
				phi.Args = phi.Args[:1]
			},
			"predecessors",
		},
		{
			"use before definition",
			func(f *Func) {
				body := f.Blocks[2]
				body.Instrs[0], body.Instrs[1] = body.Instrs[1], body.Instrs[0]
				f.Instrs[body.Instrs[0]].Args[0] = V(f.Instrs[body.Instrs[1]].Dest)
			},
			"before its definition",
		},
		{
			"immediate where a value is required",
			func(f *Func) {
				body := f.Blocks[2]
				f.Instrs[body.Instrs[0]].Args[0] = Imm(3)
			},
			"may not be an immediate",
		},
		{
			"missing terminator",
			func(f *Func) {
				exit := f.Blocks[3]
				exit.Instrs = nil
			},
			"block is empty",
		},
	}

	for _, test := range tests {
		f := buildCountdown()
		test.corrupt(f)

		violations := VerifyFunc(f)
		if len(violations) == 0 {
			t.Errorf("%s: VerifyFunc accepted corrupt IR", test.name)
			continue
		}

		found := false
		for _, v := range violations {
			if strings.Contains(v.Message, test.want) {
				found = true
			}
		}

		if !found {
			t.Errorf("%s: violations %v do not mention %q", test.name, violations, test.want)
		}
	}
}

func TestCheckWrapsViolations(t *testing.T) {
	m := NewModule("test")
	f := buildCountdown()
	f.Blocks[3].Instrs = nil
	m.Funcs = append(m.Funcs, f)

	err := Check(m)
	if err == nil {
		t.Fatal("Check succeeded on corrupt module")
	}

	if !strings.Contains(err.Error(), "countdown") {
		t.Errorf("error %q does not name the function", err)
	}
}

func TestDominatorsAndLoops(t *testing.T) {
	f := buildCountdown()
	dt := f.Dominators()

	wantIdom := []BlockID{0, 0, 1, 1}
	for b, want := range wantIdom {
		if dt.Idom[b] != want {
			t.Errorf("idom(b%d) = b%d; want b%d", b, dt.Idom[b], want)
		}
	}

	if !dt.Dominates(1, 2) || dt.Dominates(2, 3) {
		t.Errorf("Dominates gave wrong answers")
	}

	f.ComputeLoopDepths()
	wantDepth := []int{0, 1, 1, 0}
	for b, want := range wantDepth {
		if got := f.Blocks[b].LoopDepth; got != want {
			t.Errorf("LoopDepth(b%d) = %d; want %d", b, got, want)
		}
	}
}

func TestPruneDropsPhiOperands(t *testing.T) {
	f := buildCountdown()

	// add an unreachable block jumping into the loop header
	dead := f.NewBlock("dead")
	b := NewBuilder(f)
	b.SetBlock(dead)
	d := b.Const(7, WidthWord, true)
	b.Jump(1)

	for _, phi := range f.Phis(1) {
		b.AddPhiArg(phi, d)
	}

	if got := f.Prune(); got != 1 {
		t.Fatalf("Prune() = %d; want 1", got)
	}

	for _, phi := range f.Phis(1) {
		if n := len(f.Instrs[phi].Args); n != 2 {
			t.Errorf("phi has %d operands after pruning; want 2", n)
		}
	}

	f.Compact()
	if violations := VerifyFunc(f); len(violations) != 0 {
		t.Errorf("VerifyFunc after prune reported %v", violations)
	}
}

func TestSplitCriticalEdges(t *testing.T) {
	f := NewFunc("pick", LinkExported)
	f.HasResult = true
	x := f.NewParam(WidthWord, true, "x")

	entry := f.NewBlock("entry")
	then := f.NewBlock("then")
	merge := f.NewBlock("merge")

	b := NewBuilder(f)
	b.SetBlock(entry)
	one := b.Const(1, WidthWord, true)
	b.Branch(CondEq, true, V(x), Imm(0), then, merge)

	b.SetBlock(then)
	two := b.Const(2, WidthWord, true)
	b.Jump(merge)

	phi, phiID := b.Phi(merge, WidthWord, true)
	b.AddPhiArg(phiID, one)
	b.AddPhiArg(phiID, two)
	b.SetBlock(merge)
	ret := V(phi)
	b.Return(&ret)

	if got := f.SplitCriticalEdges(); got != 1 {
		t.Fatalf("SplitCriticalEdges() = %d; want 1", got)
	}

	mergeBlk := f.Blocks[merge]
	if mergeBlk.Preds[0] == entry {
		t.Errorf("merge still has entry as its first predecessor")
	}

	if violations := VerifyFunc(f); len(violations) != 0 {
		t.Errorf("VerifyFunc after split reported %v\n%s", violations, f)
	}
}

func TestOpcodeTableComplete(t *testing.T) {
	names := make(map[string]Opcode)
	for op := Opcode(0); op < NumOpcodes; op++ {
		name := op.String()
		if name == "" || name == "<invalid>" {
			t.Errorf("opcode %d has no name", op)
		}

		if prev, ok := names[name]; ok {
			t.Errorf("opcodes %d and %d share the name %q", prev, op, name)
		}
		names[name] = op
	}
}

func TestCondEval(t *testing.T) {
	tests := []struct {
		c      Cond
		a, b   int64
		signed bool
		want   bool
	}{
		{CondLt, -1, 1, true, true},
		{CondLt, -1, 1, false, false},
		{CondGe, 0xffff, 0, false, true},
		{CondLe, 5, 5, true, true},
		{CondNe, 3, 3, false, false},
	}

	for _, test := range tests {
		if got := test.c.Eval(test.a, test.b, test.signed, 16); got != test.want {
			t.Errorf("%s.Eval(%d, %d, signed=%v) = %v; want %v", test.c, test.a, test.b, test.signed, got, test.want)
		}

		if got := test.c.Negate().Eval(test.a, test.b, test.signed, 16); got == test.want {
			t.Errorf("%s.Negate() does not negate", test.c)
		}
	}
}
