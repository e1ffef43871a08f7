// Package ir defines the SSA intermediate representation shared by the middle
// and back ends.  Values, instructions, and blocks live in per-function arenas
// and refer to one another through dense integer indices.
package ir

import "fmt"

// ValueID indexes a function's value arena.
type ValueID int32

// BlockID indexes a function's block list.
type BlockID int32

// InstrID indexes a function's instruction arena.
type InstrID int32

// NoValue marks the absence of a result value.
const NoValue ValueID = -1

// NoInstr marks a value with no defining instruction (a parameter).
const NoInstr InstrID = -1

// Width is the width class of a value.  Byte values are stored in a full unit
// but are kept normalized to byte range.
type Width uint8

// Enumeration of widths.
const (
	WidthWord Width = iota
	WidthByte
)

func (w Width) String() string {
	if w == WidthByte {
		return "b"
	}

	return "w"
}

// Value is an SSA-versioned virtual register.
type Value struct {
	ID     ValueID
	Width  Width
	Signed bool

	// Whether the value is a compile-time constant and, if so, its value.
	IsConst bool
	Const   int64

	// The defining instruction or NoInstr for parameters.
	Def InstrID

	// The parameter index or -1.
	Param int

	// An optional source-level name used when printing.
	Name string
}

func (v *Value) String() string {
	return fmt.Sprintf("v%d", v.ID)
}

// -----------------------------------------------------------------------------

// OperandKind distinguishes value operands from immediates.
type OperandKind uint8

// Enumeration of operand kinds.
const (
	OperandValue OperandKind = iota
	OperandImm
)

// Operand is an instruction input: either a value or an immediate constant.
type Operand struct {
	Kind  OperandKind
	Value ValueID
	Imm   int64
}

// V creates a value operand.
func V(id ValueID) Operand {
	return Operand{Kind: OperandValue, Value: id}
}

// Imm creates an immediate operand.
func Imm(n int64) Operand {
	return Operand{Kind: OperandImm, Value: NoValue, Imm: n}
}

// IsValue returns whether the operand references a value.
func (o Operand) IsValue() bool {
	return o.Kind == OperandValue
}

func (o Operand) String() string {
	if o.Kind == OperandImm {
		return fmt.Sprint(o.Imm)
	}

	return fmt.Sprintf("v%d", o.Value)
}
