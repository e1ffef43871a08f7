// Package peephole rewrites short windows of an assembly stream until no rule
// applies.  Windows never cross a label, a directive, or a control transfer,
// and never touch an instruction that a conditional skip could jump over.
package peephole

import (
	"esocc/asm"
	"esocc/target"
)

// rule is a single rewrite over a window of consecutive instructions.
type rule struct {
	name string
	size int

	// apply returns the replacement for the window and whether the rule
	// matched.
	apply func(o *Optimizer, w []*asm.Instr) ([]*asm.Instr, bool)
}

var rules = []rule{
	{"self-move", 1, selfMove},
	{"identity", 1, identity},
	{"push-pop", 2, pushPop},
	{"store-load", 2, storeLoad},
	{"dead-move", 2, deadMove},
}

// Optimizer applies the peephole rules for a target.
type Optimizer struct {
	tgt *target.Target

	// Applied counts the rewrites performed by each rule.
	Applied map[string]int
}

// New creates an optimizer for a target.
func New(tgt *target.Target) *Optimizer {
	return &Optimizer{tgt: tgt, Applied: make(map[string]int)}
}

// Optimize runs a fresh optimizer over a stream.
func Optimize(s asm.Stream, tgt *target.Target) asm.Stream {
	return New(tgt).Run(s)
}

// Run rewrites a stream to a fixpoint.  The input stream is not modified.
func (o *Optimizer) Run(s asm.Stream) asm.Stream {
	for {
		out, changed := o.pass(s)
		if !changed {
			return out
		}

		s = out
	}
}

// pass makes a single left-to-right pass over the stream.
func (o *Optimizer) pass(s asm.Stream) (asm.Stream, bool) {
	out := make(asm.Stream, 0, len(s))
	changed := false

outer:
	for i := 0; i < len(s); {
		for _, r := range rules {
			if i+r.size > len(s) || !o.windowOK(out, s[i:i+r.size]) {
				continue
			}

			if repl, ok := r.apply(o, s[i:i+r.size]); ok {
				out = append(out, repl...)
				o.Applied[r.name]++
				i += r.size
				changed = true
				continue outer
			}
		}

		out = append(out, s[i])
		i++
	}

	return out, changed
}

// windowOK returns whether a window may be rewritten: it holds only plain
// instructions and the instruction before it is not a conditional skip.
func (o *Optimizer) windowOK(prev asm.Stream, w []*asm.Instr) bool {
	if len(prev) > 0 && o.conditional(prev[len(prev)-1]) {
		return false
	}

	for _, in := range w {
		if in.Kind != asm.KindInstr || in.IsUnary() || in.B.Kind == asm.OpdPC || o.conditional(in) {
			return false
		}
	}

	return true
}

func (o *Optimizer) conditional(in *asm.Instr) bool {
	if in.Kind != asm.KindInstr {
		return false
	}

	op, ok := o.tgt.Opcode(in.Mnemonic)
	return ok && op.Conditional
}

func (o *Optimizer) is(in *asm.Instr, keys ...string) bool {
	for _, key := range keys {
		if in.Mnemonic == o.tgt.Mnemonic(key) {
			return true
		}
	}

	return false
}

// plain returns whether an operand is a location that can be read and
// written without side effects.
func plain(opd asm.Operand) bool {
	switch opd.Kind {
	case asm.OpdReg, asm.OpdMem, asm.OpdMemLit, asm.OpdMemSym:
		return true
	}

	return false
}

// -----------------------------------------------------------------------------

// selfMove deletes `SET x, x`.
func selfMove(o *Optimizer, w []*asm.Instr) ([]*asm.Instr, bool) {
	in := w[0]
	return nil, o.is(in, "move") && plain(in.B) && in.A == in.B
}

// identity deletes arithmetic that leaves its destination unchanged: adding,
// subtracting, or-ing, xor-ing, or shifting by zero, multiplying or dividing
// by one, and and-ing with all ones.
func identity(o *Optimizer, w []*asm.Instr) ([]*asm.Instr, bool) {
	in := w[0]
	if !plain(in.B) && in.B.Kind != asm.OpdSP {
		return nil, false
	}

	switch {
	case o.is(in, "add", "sub", "or", "xor", "shl", "shr-u", "shr-s"):
		return nil, in.A.IsLit(0)
	case o.is(in, "mul-u", "mul-s", "div-u", "div-s"):
		return nil, in.A.IsLit(1)
	case o.is(in, "and"):
		return nil, in.A.IsLit(-1) || in.A.IsLit(o.tgt.UnitMask())
	}

	return nil, false
}

// pushPop deletes `SET PUSH, x; SET x, POP`.
func pushPop(o *Optimizer, w []*asm.Instr) ([]*asm.Instr, bool) {
	push, pop := w[0], w[1]

	return nil, o.is(push, "move") && o.is(pop, "move") &&
		push.B.Kind == asm.OpdPush && pop.A.Kind == asm.OpdPop &&
		plain(push.A) && push.A == pop.B
}

// storeLoad deletes the second instruction of `SET x, y; SET y, x`: after the
// first, both locations already hold the same value.  The first must not
// change the address of y.
func storeLoad(o *Optimizer, w []*asm.Instr) ([]*asm.Instr, bool) {
	first, second := w[0], w[1]

	if first.B.Kind == asm.OpdReg && first.A.Kind == asm.OpdMem && first.A.Reg == first.B.Reg {
		return nil, false
	}

	if o.is(first, "move") && o.is(second, "move") &&
		plain(first.B) && plain(first.A) &&
		first.B == second.A && first.A == second.B {
		return w[:1], true
	}

	return nil, false
}

// deadMove deletes a move into a register that the next instruction
// overwrites without reading it.
func deadMove(o *Optimizer, w []*asm.Instr) ([]*asm.Instr, bool) {
	first, second := w[0], w[1]

	if o.is(first, "move") && o.is(second, "move") &&
		first.B.Kind == asm.OpdReg && second.B == first.B &&
		(plain(first.A) || first.A.Kind == asm.OpdLit || first.A.IsSymbolic()) &&
		!second.A.Uses(first.B.Reg) {
		return w[1:], true
	}

	return nil, false
}
