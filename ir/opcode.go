package ir

// Opcode identifies an instruction's operation.  The set is closed: every pass
// that dispatches on opcodes must handle each one, and the tables below are
// sized so that adding an opcode without extending them fails to compile.
type Opcode uint8

// Enumeration of opcodes.
const (
	OpConst     Opcode = iota // dest = imm
	OpCopy                    // dest = a
	OpConv                    // dest = a normalized to dest's width and signedness
	OpAdd                     // dest = a + b
	OpSub                     // dest = a - b
	OpMul                     // dest = a * b
	OpDiv                     // dest = a / b
	OpMod                     // dest = a % b
	OpAnd                     // dest = a & b
	OpOr                      // dest = a | b
	OpXor                     // dest = a ^ b
	OpShl                     // dest = a << b
	OpShr                     // dest = a >> b
	OpNeg                     // dest = -a
	OpNot                     // dest = ^a
	OpCmp                     // dest = a cond b
	OpAddr                    // dest = &sym + offset
	OpFrameAddr               // dest = &frame[slot] + offset
	OpLoad                    // dest = [a + offset]
	OpStore                   // [a + offset] = b
	OpCall                    // [dest =] sym(args) or a(args[1:])
	OpPhi                     // dest = phi(args) one per predecessor
	OpSpill                   // frame[slot] = a
	OpReload                  // dest = frame[slot]
	OpJump                    // goto targets[0]
	OpBranch                  // if a cond b goto targets[0] else targets[1]
	OpReturn                  // return [a]

	NumOpcodes
)

// destRule says whether an opcode produces a value.
type destRule uint8

const (
	destNever destRule = iota
	destAlways
	destOptional
)

// opInfo describes the static shape of an opcode.
type opInfo struct {
	name string
	dest destRule

	// The exact number of operands or -1 if variadic.
	arity int

	// Bit masks over operand positions: which positions may hold an
	// immediate, and which may be read directly from a memory-resident
	// (spilled) value.
	immArgs uint32
	memArgs uint32

	// Whether variadic positions beyond the mask may be immediates or
	// memory-resident.
	variadicImm, variadicMem bool

	commutative bool
	terminator  bool

	// Whether the signed flag of the instruction is meaningful.
	signed bool
}

const (
	arg0 uint32 = 1 << iota
	arg1
)

var opTable = [...]opInfo{
	{name: "const", dest: destAlways, arity: 1, immArgs: arg0},
	{name: "copy", dest: destAlways, arity: 1, immArgs: arg0, memArgs: arg0},
	{name: "conv", dest: destAlways, arity: 1, signed: true},
	{name: "add", dest: destAlways, arity: 2, immArgs: arg1, memArgs: arg1, commutative: true},
	{name: "sub", dest: destAlways, arity: 2, immArgs: arg1, memArgs: arg1},
	{name: "mul", dest: destAlways, arity: 2, immArgs: arg1, memArgs: arg1, commutative: true, signed: true},
	{name: "div", dest: destAlways, arity: 2, immArgs: arg1, memArgs: arg1, signed: true},
	{name: "mod", dest: destAlways, arity: 2, immArgs: arg1, memArgs: arg1, signed: true},
	{name: "and", dest: destAlways, arity: 2, immArgs: arg1, memArgs: arg1, commutative: true},
	{name: "or", dest: destAlways, arity: 2, immArgs: arg1, memArgs: arg1, commutative: true},
	{name: "xor", dest: destAlways, arity: 2, immArgs: arg1, memArgs: arg1, commutative: true},
	{name: "shl", dest: destAlways, arity: 2, immArgs: arg1, memArgs: arg1},
	{name: "shr", dest: destAlways, arity: 2, immArgs: arg1, memArgs: arg1, signed: true},
	{name: "neg", dest: destAlways, arity: 1},
	{name: "not", dest: destAlways, arity: 1},
	{name: "cmp", dest: destAlways, arity: 2, immArgs: arg1, memArgs: arg1, signed: true},
	{name: "addr", dest: destAlways, arity: 0},
	{name: "frameaddr", dest: destAlways, arity: 0},
	{name: "load", dest: destAlways, arity: 1},
	{name: "store", dest: destNever, arity: 2, immArgs: arg1, memArgs: arg1},
	{name: "call", dest: destOptional, arity: -1, memArgs: arg0, variadicImm: true, variadicMem: true},
	{name: "phi", dest: destAlways, arity: -1, variadicMem: true},
	{name: "spill", dest: destNever, arity: 1},
	{name: "reload", dest: destAlways, arity: 0},
	{name: "jump", dest: destNever, arity: 0, terminator: true},
	{name: "branch", dest: destNever, arity: 2, immArgs: arg1, memArgs: arg1, terminator: true, signed: true},
	{name: "return", dest: destNever, arity: -1, immArgs: arg0, memArgs: arg0, terminator: true},
}

// The table must have exactly one entry per opcode.
var _ = [1]struct{}{}[len(opTable)-int(NumOpcodes)]

func (op Opcode) String() string {
	if op < NumOpcodes {
		return opTable[op].name
	}

	return "<invalid>"
}

// IsTerminator returns whether the opcode ends a block.
func (op Opcode) IsTerminator() bool {
	return opTable[op].terminator
}

// IsCommutative returns whether the two operands of a binary opcode may be
// swapped.
func (op Opcode) IsCommutative() bool {
	return opTable[op].commutative
}

// IsBinary returns whether the opcode is a two-operand arithmetic or bitwise
// operation.
func (op Opcode) IsBinary() bool {
	return OpAdd <= op && op <= OpShr
}

// HasSignedness returns whether the opcode's signed flag affects semantics.
func (op Opcode) HasSignedness() bool {
	return opTable[op].signed
}

// AllowsImm returns whether operand position i of the opcode may be an
// immediate.
func (op Opcode) AllowsImm(i int) bool {
	info := opTable[op]
	if i < 32 && info.immArgs&(1<<uint(i)) != 0 {
		return true
	}

	return info.arity < 0 && info.variadicImm && i > 0
}

// AllowsMemory returns whether operand position i of the opcode may read a
// memory-resident value directly instead of requiring a register.
func (op Opcode) AllowsMemory(i int) bool {
	info := opTable[op]
	if i < 32 && info.memArgs&(1<<uint(i)) != 0 {
		return true
	}

	return info.arity < 0 && info.variadicMem
}

// -----------------------------------------------------------------------------

// Cond is a comparison condition.
type Cond uint8

// Enumeration of conditions.
const (
	CondEq Cond = iota
	CondNe
	CondLt
	CondLe
	CondGt
	CondGe
)

var condNames = [...]string{"eq", "ne", "lt", "le", "gt", "ge"}

func (c Cond) String() string {
	return condNames[c]
}

// Negate returns the condition that holds exactly when c does not.
func (c Cond) Negate() Cond {
	switch c {
	case CondEq:
		return CondNe
	case CondNe:
		return CondEq
	case CondLt:
		return CondGe
	case CondLe:
		return CondGt
	case CondGt:
		return CondLe
	default:
		return CondLt
	}
}

// Swap returns the condition that holds for swapped operands.
func (c Cond) Swap() Cond {
	switch c {
	case CondLt:
		return CondGt
	case CondLe:
		return CondGe
	case CondGt:
		return CondLt
	case CondGe:
		return CondLe
	default:
		return c
	}
}

// Eval evaluates the condition on two constants interpreted as signed or
// unsigned values of the given bit width.
func (c Cond) Eval(a, b int64, signed bool, bits int) bool {
	mask := int64(1)<<uint(bits) - 1
	a, b = a&mask, b&mask

	if signed {
		sign := int64(1) << uint(bits-1)
		a, b = (a^sign)-sign, (b^sign)-sign
	}

	switch c {
	case CondEq:
		return a == b
	case CondNe:
		return a != b
	case CondLt:
		return a < b
	case CondLe:
		return a <= b
	case CondGt:
		return a > b
	default:
		return a >= b
	}
}
