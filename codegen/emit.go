package codegen

import (
	"esocc/asm"
	"esocc/ir"
	"esocc/regalloc"
)

// binaryKeys maps each binary opcode to the abstract operation names of its
// unsigned and signed forms.
var binaryKeys = map[ir.Opcode][2]string{
	ir.OpAdd: {"add", "add"},
	ir.OpSub: {"sub", "sub"},
	ir.OpMul: {"mul-u", "mul-s"},
	ir.OpDiv: {"div-u", "div-s"},
	ir.OpMod: {"mod-u", "mod-s"},
	ir.OpAnd: {"and", "and"},
	ir.OpOr:  {"or", "or"},
	ir.OpXor: {"xor", "xor"},
	ir.OpShl: {"shl", "shl"},
	ir.OpShr: {"shr-u", "shr-s"},
}

// genInstr emits a single instruction.  next is the block laid out after the
// current one or -1.
func (g *Generator) genInstr(in *ir.Instr, next ir.BlockID) {
	switch in.Op {
	case ir.OpConst:
		g.move(g.loc(in.Dest), g.imm(in.Args[0].Imm))
	case ir.OpCopy:
		g.move(g.loc(in.Dest), g.operand(in.Args[0]))
	case ir.OpConv:
		g.genConv(in)
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpAnd, ir.OpOr, ir.OpXor, ir.OpShl, ir.OpShr:
		g.genBinary(in)
	case ir.OpDiv, ir.OpMod:
		if g.tgt.NativeDivision() {
			g.genBinary(in)
		} else {
			g.genCall(in, asm.Sym(g.divisionRoutine(in), 0), in.Args)
		}
	case ir.OpNeg:
		g.genNeg(in)
	case ir.OpNot:
		d := g.loc(in.Dest)
		g.move(d, g.operand(in.Args[0]))
		g.op("xor", d, asm.Lit(-1))
	case ir.OpCmp:
		g.genCmp(in)
	case ir.OpAddr:
		g.move(g.loc(in.Dest), asm.Sym(in.Sym, in.Offset))
	case ir.OpFrameAddr:
		g.genFrameAddr(in)
	case ir.OpLoad:
		g.genLoad(in)
	case ir.OpStore:
		g.genStore(in)
	case ir.OpCall:
		if in.IsIndirectCall() {
			g.genCall(in, g.operand(in.Args[0]), in.CallArgs())
		} else {
			g.genCall(in, asm.Sym(in.Sym, 0), in.Args)
		}
	case ir.OpPhi:
		g.ice("phi survived register allocation")
	case ir.OpSpill:
		g.move(g.slot(in.Slot, 0), g.operand(in.Args[0]))
	case ir.OpReload:
		g.move(g.loc(in.Dest), g.slot(in.Slot, 0))
	case ir.OpJump:
		if in.Targets[0] != next {
			g.branch(in.Targets[0])
		}
	case ir.OpBranch:
		g.genBranch(in, next)
	case ir.OpReturn:
		if len(in.Args) > 0 {
			g.move(asm.Reg(g.ret), g.operand(in.Args[0]))
		}

		g.epilogue()
	default:
		g.ice("no emission rule for %s", in.Op)
	}
}

// genBinary emits a two-address arithmetic operation `d = a op b`.
func (g *Generator) genBinary(in *ir.Instr) {
	keys := binaryKeys[in.Op]
	key := keys[0]
	if in.Signed {
		key = keys[1]
	}

	d := g.loc(in.Dest)
	a, b := g.operand(in.Args[0]), g.operand(in.Args[1])

	switch {
	case a == d:
		g.op(key, d, b)
	case b == d && in.Op.IsCommutative():
		g.op(key, d, a)
	case b == d:
		// the destination holds the right operand: compute on the stack
		g.move(asm.Push, a)
		g.op(key, asm.Peek, b)
		g.move(d, asm.Pop)
	default:
		g.move(d, a)
		g.op(key, d, b)
	}
}

// genNeg emits `d = -a`.
func (g *Generator) genNeg(in *ir.Instr) {
	d, a := g.loc(in.Dest), g.operand(in.Args[0])

	if d == a {
		g.op("xor", d, asm.Lit(-1))
		g.op("add", d, asm.Lit(1))
	} else {
		g.move(d, asm.Lit(0))
		g.op("sub", d, a)
	}
}

// genConv normalizes a value into the range of its destination width.
func (g *Generator) genConv(in *ir.Instr) {
	d := g.loc(in.Dest)
	g.move(d, g.operand(in.Args[0]))

	if g.fn.Value(in.Dest).Width != ir.WidthByte {
		return
	}

	if in.Signed {
		shift := asm.Lit(int64(g.tgt.UnitBits - 8))
		g.op("shl", d, shift)
		g.op("shr-s", d, shift)
	} else {
		g.op("and", d, asm.Lit(0xff))
	}
}

// condKey returns the conditional skip for a condition.  ok is false for the
// conditions the target cannot test directly.
func condKey(c ir.Cond, signed bool) (string, bool) {
	switch c {
	case ir.CondEq:
		return "if-eq", true
	case ir.CondNe:
		return "if-ne", true
	case ir.CondGt:
		if signed {
			return "if-gt-s", true
		}

		return "if-gt-u", true
	case ir.CondLt:
		if signed {
			return "if-lt-s", true
		}

		return "if-lt-u", true
	}

	return "", false
}

// genCmp materializes a comparison as 1 or 0.
func (g *Generator) genCmp(in *ir.Instr) {
	d := g.loc(in.Dest)
	a, b := g.operand(in.Args[0]), g.operand(in.Args[1])

	on, off := int64(1), int64(0)
	key, ok := condKey(in.Cond, in.Signed)
	if !ok {
		key, _ = condKey(in.Cond.Negate(), in.Signed)
		on, off = off, on
	}

	if d == a || d == b {
		g.move(asm.Push, asm.Lit(off))
		g.op(key, a, b)
		g.move(asm.Peek, asm.Lit(on))
		g.move(d, asm.Pop)
	} else {
		g.move(d, asm.Lit(off))
		g.op(key, a, b)
		g.move(d, asm.Lit(on))
	}
}

// genBranch emits a conditional skip over a jump to the true target followed
// by a jump to the false target.  Jumps to the next block are omitted.
func (g *Generator) genBranch(in *ir.Instr, next ir.BlockID) {
	a, b := g.operand(in.Args[0]), g.operand(in.Args[1])
	t, f := in.Targets[0], in.Targets[1]

	key, ok := condKey(in.Cond, in.Signed)
	negKey, negOK := condKey(in.Cond.Negate(), in.Signed)

	if !ok || t == next && negOK {
		key = negKey
		t, f = f, t
	}

	g.op(key, a, b)
	g.branch(t)

	if f != next {
		g.branch(f)
	}
}

// genFrameAddr emits the address of a frame object.
func (g *Generator) genFrameAddr(in *ir.Instr) {
	d := g.loc(in.Dest)
	disp := g.offsets[in.Slot] + in.Offset

	g.move(d, asm.Reg(g.fp))

	switch {
	case disp > 0:
		g.op("add", d, g.imm(disp))
	case disp < 0:
		g.op("sub", d, g.imm(-disp))
	}
}

// genLoad emits `d = [a + off]`.  A displacement that does not fit in the
// indexed form is added to a scratch register instead.
func (g *Generator) genLoad(in *ir.Instr) {
	d := g.loc(in.Dest)
	base := g.register(in.Args[0])

	if g.tgt.FitsDisplacement(in.Offset) {
		g.move(d, asm.Mem(base, in.Offset))
		return
	}

	r := g.scratch(asm.Reg(base), d)
	g.move(asm.Push, asm.Reg(r))
	g.move(asm.Reg(r), asm.Reg(base))
	g.op("add", asm.Reg(r), g.imm(in.Offset))
	g.move(d, asm.Mem(r, 0))
	g.move(asm.Reg(r), asm.Pop)
}

// genStore emits `[a + off] = b`.
func (g *Generator) genStore(in *ir.Instr) {
	base := g.register(in.Args[0])
	val := g.operand(in.Args[1])

	if g.tgt.FitsDisplacement(in.Offset) {
		g.move(asm.Mem(base, in.Offset), val)
		return
	}

	r := g.scratch(asm.Reg(base), val)
	g.move(asm.Push, asm.Reg(r))
	g.move(asm.Reg(r), asm.Reg(base))
	g.op("add", asm.Reg(r), g.imm(in.Offset))
	g.move(asm.Mem(r, 0), val)
	g.move(asm.Reg(r), asm.Pop)
}

// genCall emits a stackcall: the live caller-saved registers are saved, the
// arguments are pushed right to left, and the caller pops them after the
// call returns.  The result is moved out of the return register.
func (g *Generator) genCall(in *ir.Instr, callee asm.Operand, args []ir.Operand) {
	saved := g.savedAcross(g.cur)

	for _, r := range saved {
		g.move(asm.Push, asm.Reg(r))
	}

	for i := len(args) - 1; i >= 0; i-- {
		g.move(asm.Push, g.operand(args[i]))
	}

	g.emit(asm.Special(g.tgt.Mnemonic("call"), callee))

	if len(args) > 0 {
		g.op("add", asm.SP, g.imm(int64(len(args))))
	}

	if in.Dest != ir.NoValue {
		g.move(g.loc(in.Dest), asm.Reg(g.ret))
	}

	for i := len(saved) - 1; i >= 0; i-- {
		g.move(asm.Reg(saved[i]), asm.Pop)
	}
}

// savedAcross returns the caller-saved registers holding values that are
// live across a call, in allocation order.
func (g *Generator) savedAcross(id ir.InstrID) []string {
	used := make(map[int]bool)
	for _, v := range g.res.LiveAcross[id] {
		if loc := g.res.Loc(v); loc.Kind == regalloc.LocReg {
			used[loc.Reg] = true
		}
	}

	var saved []string
	for c, name := range g.tgt.Registers.Allocatable {
		if used[c] && g.tgt.IsCallerSaved(name) {
			saved = append(saved, name)
		}
	}

	return saved
}

// divisionRoutine returns the runtime routine implementing a division or
// modulo on targets without divide instructions.
func (g *Generator) divisionRoutine(in *ir.Instr) string {
	div := g.tgt.Division

	switch {
	case in.Op == ir.OpDiv && in.Signed:
		return div.SDiv
	case in.Op == ir.OpDiv:
		return div.UDiv
	case in.Signed:
		return div.SMod
	default:
		return div.UMod
	}
}
