package ast

// Stmt is a statement.
type Stmt interface {
	stmtNode()
}

// Block is a compound statement.
type Block struct {
	Stmts []Stmt
}

// ExprStmt is an expression evaluated for its side effects.
type ExprStmt struct {
	X Expr
}

// LocalDecl declares a local variable, optionally with an initializer.
type LocalDecl struct {
	Sym  *Symbol
	Init Initializer
}

// If is an `if` statement.  Else may be nil.
type If struct {
	Cond       Expr
	Then, Else Stmt
}

// While is a `while` loop.
type While struct {
	Cond Expr
	Body Stmt
}

// DoWhile is a `do ... while` loop.
type DoWhile struct {
	Body Stmt
	Cond Expr
}

// For is a `for` loop.  Any of Init, Cond, and Post may be nil.
type For struct {
	Init Stmt
	Cond Expr
	Post Expr
	Body Stmt
}

// Case is a group of `case` labels (or `default`) followed by statements.
// Control falls through into the next case unless the statements break.
type Case struct {
	Values  []int64
	Default bool
	Body    []Stmt
}

// Switch is a `switch` statement.
type Switch struct {
	Tag   Expr
	Cases []*Case
}

// Break is a `break` statement.
type Break struct{}

// Continue is a `continue` statement.
type Continue struct{}

// Return is a `return` statement.  Value is nil for bare returns.
type Return struct {
	Value Expr
}

func (*Block) stmtNode()     {}
func (*ExprStmt) stmtNode()  {}
func (*LocalDecl) stmtNode() {}
func (*If) stmtNode()        {}
func (*While) stmtNode()     {}
func (*DoWhile) stmtNode()   {}
func (*For) stmtNode()       {}
func (*Switch) stmtNode()    {}
func (*Break) stmtNode()     {}
func (*Continue) stmtNode()  {}
func (*Return) stmtNode()    {}
