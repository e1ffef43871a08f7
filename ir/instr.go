package ir

// Instr is a single IR instruction.  Which fields are meaningful depends on
// the opcode; unused fields are left zero.
type Instr struct {
	Op Opcode

	// The result value or NoValue.
	Dest ValueID

	// The ordered operands.
	Args []Operand

	// The condition of OpCmp and OpBranch.
	Cond Cond

	// Whether the operation is signed (division, modulo, right shift,
	// comparisons, conversions, and multiplication).
	Signed bool

	// The memory access width of OpLoad and OpStore.
	Width Width

	// The displacement of OpLoad, OpStore, OpAddr, and OpFrameAddr.
	Offset int64

	// The symbol of OpAddr and of direct OpCall instructions.
	Sym string

	// The frame object of OpFrameAddr, OpSpill, and OpReload.
	Slot int

	// The successor blocks of OpJump (one) and OpBranch (true, false).
	Targets []BlockID

	// The block that owns the instruction.
	Block BlockID
}

// IsIndirectCall returns whether the instruction is a call through a value.
// The callee is then the first operand.
func (in *Instr) IsIndirectCall() bool {
	return in.Op == OpCall && in.Sym == ""
}

// CallArgs returns the argument operands of a call, excluding the callee.
func (in *Instr) CallArgs() []Operand {
	if in.IsIndirectCall() {
		return in.Args[1:]
	}

	return in.Args
}

// AllowsImm returns whether operand i may be an immediate.
func (in *Instr) AllowsImm(i int) bool {
	if in.Op == OpCall {
		return !(in.IsIndirectCall() && i == 0)
	}

	return in.Op.AllowsImm(i)
}

// AllowsMemory returns whether operand i may be read directly from a
// memory-resident value.
func (in *Instr) AllowsMemory(i int) bool {
	return in.Op.AllowsMemory(i)
}

// Uses calls fn with every value operand of the instruction.
func (in *Instr) Uses(fn func(i int, v ValueID)) {
	for i, arg := range in.Args {
		if arg.IsValue() {
			fn(i, arg.Value)
		}
	}
}

// ReplaceUses rewrites every use of a value through the mapping function.
func (in *Instr) ReplaceUses(fn func(v ValueID) ValueID) {
	for i, arg := range in.Args {
		if arg.IsValue() {
			in.Args[i].Value = fn(arg.Value)
		}
	}
}

// RegisterOperands counts the distinct value operands that must be held in a
// register at the instruction (those that cannot be read from memory).
func (in *Instr) RegisterOperands() int {
	seen := make(map[ValueID]struct{})
	for i, arg := range in.Args {
		if arg.IsValue() && !in.AllowsMemory(i) {
			seen[arg.Value] = struct{}{}
		}
	}

	return len(seen)
}
