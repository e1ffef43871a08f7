// Package codegen translates allocated IR into target assembly under the
// stackcall calling convention.
//
// Frame layout relative to the frame pointer (the stack grows down):
//
//	[FP+2+i]  incoming argument i
//	[FP+1]    return address
//	[FP]      caller's frame pointer
//	[FP-k]    locals, spill slots, and the scratch slot
//	          saved callee-saved registers below the frame
package codegen

import (
	"fmt"

	"esocc/asm"
	"esocc/ir"
	"esocc/regalloc"
	"esocc/report"
	"esocc/target"
)

// frameLink is the number of units between the frame pointer and the first
// incoming argument: the saved frame pointer and the return address.
const frameLink = 2

// Generator converts a single allocated function into an assembly stream.
type Generator struct {
	tgt *target.Target
	res *regalloc.Result
	fn  *ir.Func

	// fp and ret are the names of the frame pointer and return registers.
	fp, ret string

	// offsets is the frame pointer relative offset of each frame object.
	offsets   []int64
	frameSize int64

	// calleeSaved is the callee-saved registers the function writes in the
	// order they are pushed by the prologue.
	calleeSaved []string

	// layout is the emission order of the blocks.
	layout []ir.BlockID
	labels map[ir.BlockID]string

	// referenced is the set of block labels that some branch refers to.
	referenced map[string]bool

	// cur is the instruction being emitted, for error messages.
	cur ir.InstrID

	out asm.Stream
}

// Function generates the assembly for an allocated function.
func Function(res *regalloc.Result, tgt *target.Target) (s asm.Stream, err error) {
	defer report.CatchInternal(&err)

	g := NewGenerator(res, tgt)
	return g.Generate(), nil
}

// NewGenerator creates a generator for an allocated function.
func NewGenerator(res *regalloc.Result, tgt *target.Target) *Generator {
	g := &Generator{
		tgt:        tgt,
		res:        res,
		fn:         res.Func,
		fp:         tgt.Registers.FramePointer,
		ret:        tgt.Registers.Return,
		labels:     make(map[ir.BlockID]string),
		referenced: make(map[string]bool),
		cur:        ir.NoInstr,
	}

	g.layoutFrame()

	for _, c := range res.UsedRegs {
		if name := tgt.Allocatable(c); tgt.IsCalleeSaved(name) {
			g.calleeSaved = append(g.calleeSaved, name)
		}
	}

	g.layout = g.fn.ReversePostorder()
	for _, b := range g.layout {
		name := g.fn.Blocks[b].Name
		if name == "" {
			name = "b"
		}

		g.labels[b] = fmt.Sprintf("%s.%s%d", g.fn.Name, name, b)
	}

	return g
}

// Generate emits the function.  Block labels that no branch refers to are
// left out so that they do not split peephole windows.
func (g *Generator) Generate() asm.Stream {
	g.out = append(g.out, asm.Label(g.fn.Name))
	g.prologue()

	for i, b := range g.layout {
		g.out = append(g.out, asm.Label(g.labels[b]))

		next := ir.BlockID(-1)
		if i+1 < len(g.layout) {
			next = g.layout[i+1]
		}

		for _, id := range g.fn.Blocks[b].Instrs {
			g.cur = id
			g.genInstr(g.fn.Instr(id), next)
		}
	}

	s := make(asm.Stream, 0, len(g.out))
	for i, in := range g.out {
		if i > 0 && in.Kind == asm.KindLabel && !g.referenced[in.Label] {
			continue
		}

		s = append(s, in)
	}

	return s
}

// layoutFrame assigns frame pointer relative offsets to every frame object.
func (g *Generator) layoutFrame() {
	g.offsets = make([]int64, len(g.fn.Frame))

	for i, obj := range g.fn.Frame {
		if obj.Kind == ir.FrameArg {
			g.offsets[i] = int64(frameLink + obj.Arg)
			continue
		}

		g.frameSize += int64(obj.Size)
		g.offsets[i] = -g.frameSize
	}
}

// -----------------------------------------------------------------------------

func (g *Generator) ice(msg string, args ...interface{}) {
	panic(report.ICE("codegen", g.fn.Name, msg, args...))
}

func (g *Generator) capability(msg string, args ...interface{}) {
	instr := ""
	if g.cur != ir.NoInstr {
		instr = g.fn.InstrString(g.cur)
	}

	panic(report.Capability(g.tgt.Name, g.fn.Name, instr, msg, args...))
}

// emit appends an instruction to the output.
func (g *Generator) emit(in *asm.Instr) {
	g.out = append(g.out, in)
}

// op emits a two-operand instruction by its abstract operation name.
func (g *Generator) op(key string, b, a asm.Operand) {
	g.emit(asm.Op(g.tgt.Mnemonic(key), b, a))
}

// move copies a into b unless they are the same location.
func (g *Generator) move(b, a asm.Operand) {
	if b != a {
		g.op("move", b, a)
	}
}

// branch emits an unconditional relative jump to a block.
func (g *Generator) branch(b ir.BlockID) {
	label := g.labels[b]
	g.referenced[label] = true
	g.emit(asm.Special(g.tgt.Mnemonic("branch"), asm.Sym(label, 0)))
}

// loc returns the operand naming the location of a value.
func (g *Generator) loc(v ir.ValueID) asm.Operand {
	loc := g.res.Loc(v)

	switch loc.Kind {
	case regalloc.LocReg:
		return asm.Reg(g.tgt.Allocatable(loc.Reg))
	case regalloc.LocFrame:
		return g.slot(loc.Frame, 0)
	}

	g.ice("value v%d has no location", v)
	return asm.Operand{}
}

// operand returns the operand for an IR operand.
func (g *Generator) operand(o ir.Operand) asm.Operand {
	if o.IsValue() {
		return g.loc(o.Value)
	}

	return g.imm(o.Imm)
}

// imm returns a literal operand, failing if it does not fit.
func (g *Generator) imm(n int64) asm.Operand {
	if !g.tgt.FitsImmediate(n) {
		g.capability("immediate %d is wider than %d bits", n, g.tgt.Immediates.Bits)
	}

	return asm.Lit(n)
}

// slot returns the memory operand of a frame object.
func (g *Generator) slot(obj int, off int64) asm.Operand {
	disp := g.offsets[obj] + off
	if !g.tgt.FitsDisplacement(disp) {
		g.capability("frame offset %d does not fit in a %d bit displacement", disp, g.tgt.Immediates.DisplacementBits)
	}

	return asm.Mem(g.fp, disp)
}

// register returns the register holding a value.  Operands that cannot be
// read from memory are always in registers after allocation.
func (g *Generator) register(o ir.Operand) string {
	opd := g.operand(o)
	if opd.Kind != asm.OpdReg {
		g.ice("operand %s is not in a register", o)
	}

	return opd.Reg
}

// scratch picks an allocatable register none of the given operands use.
func (g *Generator) scratch(avoid ...asm.Operand) string {
outer:
	for _, name := range g.tgt.Registers.Allocatable {
		for _, opd := range avoid {
			if opd.Uses(name) {
				continue outer
			}
		}

		return name
	}

	g.ice("no scratch register available")
	return ""
}

// -----------------------------------------------------------------------------

// prologue saves the caller's frame pointer, reserves the frame, saves the
// callee-saved registers, and loads the register-resident parameters.
func (g *Generator) prologue() {
	fp := asm.Reg(g.fp)

	g.move(asm.Push, fp)
	g.move(fp, asm.SP)

	if g.frameSize > 0 {
		g.emit(asm.Op(g.tgt.Mnemonic("sub"), asm.SP, g.imm(g.frameSize)).WithComment("frame"))
	}

	for _, r := range g.calleeSaved {
		g.move(asm.Push, asm.Reg(r))
	}

	for i, p := range g.fn.Params {
		if loc := g.res.Loc(p); loc.Kind == regalloc.LocReg {
			g.move(g.loc(p), asm.Mem(g.fp, int64(frameLink+i)))
		}
	}
}

// epilogue restores the callee-saved registers and the caller's frame and
// returns.
func (g *Generator) epilogue() {
	for i := len(g.calleeSaved) - 1; i >= 0; i-- {
		g.move(asm.Reg(g.calleeSaved[i]), asm.Pop)
	}

	g.move(asm.SP, asm.Reg(g.fp))
	g.move(asm.Reg(g.fp), asm.Pop)
	g.move(asm.PC, asm.Pop)
}
