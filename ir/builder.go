package ir

// Builder appends instructions to the blocks of a function.
type Builder struct {
	fn  *Func
	cur BlockID
}

// NewBuilder creates a builder positioned nowhere.
func NewBuilder(fn *Func) *Builder {
	return &Builder{fn: fn, cur: -1}
}

// Func returns the function being built.
func (b *Builder) Func() *Func {
	return b.fn
}

// SetBlock positions the builder at the end of a block.
func (b *Builder) SetBlock(id BlockID) {
	b.cur = id
}

// Block returns the current block.
func (b *Builder) Block() BlockID {
	return b.cur
}

// Terminated returns whether the current block already ends in a terminator.
func (b *Builder) Terminated() bool {
	return b.fn.Terminator(b.cur) != nil
}

// emit appends an instruction to the current block.
func (b *Builder) emit(in Instr) InstrID {
	in.Block = b.cur
	id := b.fn.AddInstr(in)
	blk := b.fn.Blocks[b.cur]
	blk.Instrs = append(blk.Instrs, id)
	return id
}

// result allocates a result value and emits the instruction defining it.
func (b *Builder) result(in Instr, width Width, signed bool) ValueID {
	in.Dest = b.fn.NewValue(width, signed)
	b.emit(in)
	return in.Dest
}

// -----------------------------------------------------------------------------

// Const materializes a constant.
func (b *Builder) Const(n int64, width Width, signed bool) ValueID {
	v := b.result(Instr{Op: OpConst, Args: []Operand{Imm(n)}}, width, signed)
	b.fn.Values[v].IsConst = true
	b.fn.Values[v].Const = n
	return v
}

// Copy copies an operand into a new value.
func (b *Builder) Copy(a Operand, width Width, signed bool) ValueID {
	return b.result(Instr{Op: OpCopy, Args: []Operand{a}}, width, signed)
}

// Conv normalizes a value to a new width and signedness.
func (b *Builder) Conv(a ValueID, width Width, signed bool) ValueID {
	return b.result(Instr{Op: OpConv, Args: []Operand{V(a)}, Signed: signed}, width, signed)
}

// Binary emits a two-operand arithmetic or bitwise operation.
func (b *Builder) Binary(op Opcode, x, y Operand, signed bool) ValueID {
	return b.result(Instr{Op: op, Args: []Operand{x, y}, Signed: signed}, WidthWord, signed)
}

// Unary emits a negation or complement.
func (b *Builder) Unary(op Opcode, x ValueID, signed bool) ValueID {
	return b.result(Instr{Op: op, Args: []Operand{V(x)}}, WidthWord, signed)
}

// Cmp emits a comparison producing 0 or 1.
func (b *Builder) Cmp(cond Cond, signed bool, x, y Operand) ValueID {
	return b.result(Instr{Op: OpCmp, Cond: cond, Signed: signed, Args: []Operand{x, y}}, WidthWord, true)
}

// Addr emits the address of a global symbol plus an offset.
func (b *Builder) Addr(sym string, offset int64) ValueID {
	return b.result(Instr{Op: OpAddr, Sym: sym, Offset: offset}, WidthWord, false)
}

// FrameAddr emits the address of a frame object plus an offset.
func (b *Builder) FrameAddr(slot int, offset int64) ValueID {
	return b.result(Instr{Op: OpFrameAddr, Slot: slot, Offset: offset}, WidthWord, false)
}

// Load emits a load from addr+offset.
func (b *Builder) Load(addr ValueID, offset int64, width Width, signed bool) ValueID {
	return b.result(Instr{Op: OpLoad, Args: []Operand{V(addr)}, Offset: offset, Width: width}, width, signed)
}

// Store emits a store of val to addr+offset.
func (b *Builder) Store(addr ValueID, offset int64, val Operand, width Width) {
	b.emit(Instr{Op: OpStore, Dest: NoValue, Args: []Operand{V(addr), val}, Offset: offset, Width: width})
}

// Call emits a direct call to sym.  The result is NoValue if hasResult is
// false.
func (b *Builder) Call(sym string, args []Operand, hasResult bool, width Width, signed bool) ValueID {
	in := Instr{Op: OpCall, Sym: sym, Args: args, Dest: NoValue}
	if hasResult {
		return b.result(in, width, signed)
	}

	b.emit(in)
	return NoValue
}

// CallIndirect emits a call through a function pointer value.
func (b *Builder) CallIndirect(callee ValueID, args []Operand, hasResult bool, width Width, signed bool) ValueID {
	in := Instr{Op: OpCall, Args: append([]Operand{V(callee)}, args...), Dest: NoValue}
	if hasResult {
		return b.result(in, width, signed)
	}

	b.emit(in)
	return NoValue
}

// Phi inserts a phi with no operands after the existing phis of block blk.
// Operands are added with AddPhiArg in predecessor order.
func (b *Builder) Phi(blk BlockID, width Width, signed bool) (ValueID, InstrID) {
	dest := b.fn.NewValue(width, signed)
	id := b.fn.AddInstr(Instr{Op: OpPhi, Dest: dest, Block: blk})

	block := b.fn.Blocks[blk]
	n := len(b.fn.Phis(blk))
	block.Instrs = append(block.Instrs, 0)
	copy(block.Instrs[n+1:], block.Instrs[n:])
	block.Instrs[n] = id

	return dest, id
}

// AddPhiArg appends an incoming value to a phi.
func (b *Builder) AddPhiArg(phi InstrID, v ValueID) {
	b.fn.Instrs[phi].Args = append(b.fn.Instrs[phi].Args, V(v))
}

// ConstAtEntry materializes a constant at the start of the entry block, after
// any phis.  It is used for reads of variables that were never assigned.
func (b *Builder) ConstAtEntry(n int64, width Width, signed bool) ValueID {
	dest := b.fn.NewValue(width, signed)
	b.fn.Values[dest].IsConst = true
	b.fn.Values[dest].Const = n

	id := b.fn.AddInstr(Instr{Op: OpConst, Dest: dest, Args: []Operand{Imm(n)}, Block: 0})

	entry := b.fn.Blocks[0]
	n0 := len(b.fn.Phis(0))
	entry.Instrs = append(entry.Instrs, 0)
	copy(entry.Instrs[n0+1:], entry.Instrs[n0:])
	entry.Instrs[n0] = id

	return dest
}

// -----------------------------------------------------------------------------

// Jump terminates the current block with an unconditional jump.
func (b *Builder) Jump(target BlockID) {
	b.emit(Instr{Op: OpJump, Dest: NoValue, Targets: []BlockID{target}})
	b.fn.AddEdge(b.cur, target)
}

// Branch terminates the current block with a conditional branch.
func (b *Builder) Branch(cond Cond, signed bool, x, y Operand, ifTrue, ifFalse BlockID) {
	b.emit(Instr{
		Op:      OpBranch,
		Dest:    NoValue,
		Cond:    cond,
		Signed:  signed,
		Args:    []Operand{x, y},
		Targets: []BlockID{ifTrue, ifFalse},
	})

	b.fn.AddEdge(b.cur, ifTrue)
	b.fn.AddEdge(b.cur, ifFalse)
}

// Return terminates the current block with a return.  val may be nil.
func (b *Builder) Return(val *Operand) {
	in := Instr{Op: OpReturn, Dest: NoValue}
	if val != nil {
		in.Args = []Operand{*val}
	}

	b.emit(in)
}
