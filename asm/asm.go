// Package asm defines the structured assembly stream shared by the code
// generator, the peephole optimizer, and the assembler, along with its text
// form.  Every instruction names its destination operand `B` and its source
// operand `A` after the DCPU-16 convention `OP b, a`.
package asm

// OperandKind enumerates the addressing forms of an operand.
type OperandKind uint8

// Enumeration of operand kinds.
const (
	OpdNone   OperandKind = iota
	OpdReg                // A
	OpdMem                // [A+disp]
	OpdLit                // 42
	OpdMemLit             // [0x8000]
	OpdSym                // label+addend
	OpdMemSym             // [label+addend]
	OpdPush               // PUSH
	OpdPop                // POP
	OpdPeek               // PEEK
	OpdPick               // PICK n
	OpdSP                 // SP
	OpdPC                 // PC
	OpdEX                 // EX
)

// Operand is a single instruction operand.
type Operand struct {
	Kind OperandKind

	// The register of OpdReg and OpdMem operands.
	Reg string

	// The literal of OpdLit and OpdMemLit, the displacement of OpdMem, the
	// addend of symbolic operands, and the offset of OpdPick.
	Value int64

	// The symbol of OpdSym and OpdMemSym operands.
	Sym string
}

// Reg creates a register operand.
func Reg(name string) Operand {
	return Operand{Kind: OpdReg, Reg: name}
}

// Mem creates a register-indirect operand with a displacement.
func Mem(reg string, disp int64) Operand {
	return Operand{Kind: OpdMem, Reg: reg, Value: disp}
}

// Lit creates a literal operand.
func Lit(v int64) Operand {
	return Operand{Kind: OpdLit, Value: v}
}

// MemLit creates an absolute memory operand.
func MemLit(addr int64) Operand {
	return Operand{Kind: OpdMemLit, Value: addr}
}

// Sym creates a symbolic address operand.
func Sym(name string, addend int64) Operand {
	return Operand{Kind: OpdSym, Sym: name, Value: addend}
}

// MemSym creates an operand addressing memory at a symbol.
func MemSym(name string, addend int64) Operand {
	return Operand{Kind: OpdMemSym, Sym: name, Value: addend}
}

// Pick creates a `PICK n` operand: the stack slot n units above SP.
func Pick(n int64) Operand {
	return Operand{Kind: OpdPick, Value: n}
}

// Stack and special register operands.
var (
	Push = Operand{Kind: OpdPush}
	Pop  = Operand{Kind: OpdPop}
	Peek = Operand{Kind: OpdPeek}
	SP   = Operand{Kind: OpdSP}
	PC   = Operand{Kind: OpdPC}
	EX   = Operand{Kind: OpdEX}
)

// IsMemory returns whether the operand reads or writes memory.
func (o Operand) IsMemory() bool {
	switch o.Kind {
	case OpdMem, OpdMemLit, OpdMemSym, OpdPush, OpdPop, OpdPeek, OpdPick:
		return true
	}

	return false
}

// IsSymbolic returns whether the operand needs a symbol resolved.
func (o Operand) IsSymbolic() bool {
	return o.Kind == OpdSym || o.Kind == OpdMemSym
}

// IsLit returns whether the operand is the literal v.
func (o Operand) IsLit(v int64) bool {
	return o.Kind == OpdLit && o.Value == v
}

// Uses returns whether reading or writing the operand reads register r.
func (o Operand) Uses(r string) bool {
	return (o.Kind == OpdReg || o.Kind == OpdMem) && o.Reg == r
}

// -----------------------------------------------------------------------------

// Kind is the kind of a stream entry.
type Kind uint8

// Enumeration of entry kinds.
const (
	KindInstr Kind = iota
	KindLabel
	KindDirective
)

// Instr is a single entry of an assembly stream: an instruction, a label
// definition, or a directive.
type Instr struct {
	Kind Kind

	// The mnemonic of an instruction or the name of a directive including its
	// leading dot.
	Mnemonic string

	// The operands of an instruction.  Special (one-operand) instructions
	// only use A.
	B, A Operand

	// The name of a label.
	Label string

	// The arguments of a directive.
	Args []Operand

	// An optional trailing comment.
	Comment string

	// The source line of parsed entries, or zero.
	Line int
}

// Op creates a two-operand instruction.
func Op(mnemonic string, b, a Operand) *Instr {
	return &Instr{Kind: KindInstr, Mnemonic: mnemonic, B: b, A: a}
}

// Special creates a one-operand instruction.
func Special(mnemonic string, a Operand) *Instr {
	return &Instr{Kind: KindInstr, Mnemonic: mnemonic, A: a}
}

// Label creates a label definition.
func Label(name string) *Instr {
	return &Instr{Kind: KindLabel, Label: name}
}

// Directive creates a directive.
func Directive(name string, args ...Operand) *Instr {
	return &Instr{Kind: KindDirective, Mnemonic: name, Args: args}
}

// IsOp returns whether the entry is an instruction with the given mnemonic.
func (in *Instr) IsOp(mnemonic string) bool {
	return in.Kind == KindInstr && in.Mnemonic == mnemonic
}

// IsUnary returns whether the entry is a one-operand instruction.
func (in *Instr) IsUnary() bool {
	return in.Kind == KindInstr && in.B.Kind == OpdNone
}

// WithComment attaches a comment to the entry and returns it.
func (in *Instr) WithComment(c string) *Instr {
	in.Comment = c
	return in
}

// Directive names.
const (
	DirText   = ".text"
	DirData   = ".data"
	DirGlobal = ".global"
	DirExtern = ".extern"
	DirWord   = ".dw"
	DirFill   = ".fill"
	DirAlign  = ".align"
)

// Stream is a sequence of assembly entries.
type Stream []*Instr
