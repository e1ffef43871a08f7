// Package ast defines the typed abstract syntax tree handed to the back end by
// a C front end.  The front end guarantees that every identifier is resolved to
// a Symbol, every expression carries its checked type, implicit conversions are
// explicit Cast nodes, and constant subexpressions are already folded.
package ast

import "esocc/typing"

// TranslationUnit is a single compilation unit: the contents of one
// preprocessed source file.
type TranslationUnit struct {
	// The name of the unit, used as the object module name.
	Name string

	// The top-level declarations in source order.
	Decls []Decl
}

// Decl is a top-level declaration.
type Decl interface {
	declNode()
}

// -----------------------------------------------------------------------------

// SymbolKind enumerates the kinds of named entities.
type SymbolKind int

// Enumeration of symbol kinds.
const (
	SymGlobal SymbolKind = iota
	SymLocal
	SymParam
	SymFunc
)

// Storage is a declaration's storage class.
type Storage int

// Enumeration of storage classes.
const (
	StorageDefault Storage = iota
	StorageStatic
	StorageExtern
)

// Symbol is a resolved named entity.  Symbols are compared by identity: two
// locals with the same name in different scopes are distinct symbols.
type Symbol struct {
	Name    string
	Type    typing.Type
	Kind    SymbolKind
	Storage Storage
}

// -----------------------------------------------------------------------------

// FuncDecl is a function definition or prototype.
type FuncDecl struct {
	Sym *Symbol

	// The parameter symbols in declaration order.
	Params []*Symbol

	// The body of the function.  This is nil for prototypes.
	Body *Block
}

func (*FuncDecl) declNode() {}

// Signature returns the function type of the declaration.
func (fd *FuncDecl) Signature() *typing.FuncType {
	return typing.Func(fd.Sym.Type)
}

// VarDecl is a global variable definition or declaration.
type VarDecl struct {
	Sym *Symbol

	// The initializer.  This may be nil for zero-initialized globals.
	Init Initializer
}

func (*VarDecl) declNode() {}

// -----------------------------------------------------------------------------

// Initializer is either a constant expression or a braced initializer list.
type Initializer interface {
	initNode()
}

// InitList is a braced initializer list.  Missing trailing items are zero.
type InitList struct {
	Items []Initializer
}

func (*InitList) initNode() {}
