package ast

import "esocc/typing"

// Expr represents an expression simple or complex. All expression nodes
// implement the `Expr` interface.
type Expr interface {
	Initializer

	// Type is the checked type of the expression.
	Type() typing.Type
}

// ExprBase is the base struct for all expressions.
type ExprBase struct {
	Typ typing.Type
}

func (eb *ExprBase) Type() typing.Type {
	return eb.Typ
}

func (*ExprBase) initNode() {}

// -----------------------------------------------------------------------------

// Oper is a binary or unary operator.
type Oper int

// Enumeration of operators.
const (
	OpNone Oper = iota

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr

	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe

	OpLogAnd
	OpLogOr

	OpNeg
	OpCompl
	OpNot
	OpDeref
	OpAddrOf
	OpPlus
)

var operNames = [...]string{
	"", "+", "-", "*", "/", "%", "&", "|", "^", "<<", ">>",
	"==", "!=", "<", "<=", ">", ">=", "&&", "||",
	"-", "~", "!", "*", "&", "+",
}

func (op Oper) String() string {
	return operNames[op]
}

// IsComparison returns whether op is a relational or equality operator.
func (op Oper) IsComparison() bool {
	return OpEq <= op && op <= OpGe
}

// -----------------------------------------------------------------------------

// IntLit is an integer (or character) constant.
type IntLit struct {
	ExprBase
	Value int64
}

// StringLit is a string literal.  Its type is an array of char.
type StringLit struct {
	ExprBase
	Value string
}

// Ident is a reference to a resolved symbol.
type Ident struct {
	ExprBase
	Sym *Symbol
}

// Binary is a binary operator application.
type Binary struct {
	ExprBase
	Op   Oper
	L, R Expr
}

// Unary is a unary operator application.
type Unary struct {
	ExprBase
	Op Oper
	X  Expr
}

// Assign is an assignment.  Op is OpNone for plain assignment and the
// arithmetic operator for compound assignment.
type Assign struct {
	ExprBase
	Op   Oper
	L, R Expr
}

// IncDec is a prefix or postfix increment or decrement.
type IncDec struct {
	ExprBase
	X    Expr
	Dec  bool
	Post bool
}

// Call is a function call.  Func is either an Ident naming a function or an
// expression of function pointer type.
type Call struct {
	ExprBase
	Func Expr
	Args []Expr
}

// Index is an array subscript.
type Index struct {
	ExprBase
	X, Index Expr
}

// Member is a struct or union member access, through a pointer if Arrow.
type Member struct {
	ExprBase
	X     Expr
	Field string
	Arrow bool
}

// Cast is an explicit or implicit type conversion to the node's type.
type Cast struct {
	ExprBase
	X Expr
}

// Cond is the ternary conditional operator.
type Cond struct {
	ExprBase
	Cond, Then, Else Expr
}

// Comma evaluates its expressions in order and yields the last.
type Comma struct {
	ExprBase
	Exprs []Expr
}
