package typing

import (
	"fmt"
	"strings"
)

// Type represents a C data type.  All sizes are measured in target units: the
// smallest addressable memory cell of the target (a 16-bit word on word
// oriented machines).
type Type interface {
	// Returns the size of this type in units.
	Size() int

	// Returns the representative string for this type.
	Repr() string
}

// -----------------------------------------------------------------------------

// IntKind enumerates the integral type families.
type IntKind int

// Enumeration of integer kinds.
const (
	Char IntKind = iota
	Short
	Int
)

// IntType represents an integral type.  Every integral type occupies a single
// unit; `char` values are additionally normalized to byte range.
type IntType struct {
	Kind   IntKind
	Signed bool
}

// Common integral types.
var (
	CharType   = &IntType{Kind: Char, Signed: true}
	UCharType  = &IntType{Kind: Char}
	ShortType  = &IntType{Kind: Short, Signed: true}
	UShortType = &IntType{Kind: Short}
	IntT       = &IntType{Kind: Int, Signed: true}
	UIntType   = &IntType{Kind: Int}
)

func (it *IntType) Size() int {
	return 1
}

func (it *IntType) Repr() string {
	var name string
	switch it.Kind {
	case Char:
		name = "char"
	case Short:
		name = "short"
	default:
		name = "int"
	}

	if !it.Signed {
		return "unsigned " + name
	}

	return name
}

// IsByte returns whether values of this type are normalized to byte range.
func (it *IntType) IsByte() bool {
	return it.Kind == Char
}

// -----------------------------------------------------------------------------

// VoidType represents the `void` type.
type VoidType struct{}

// Void is the singleton void type.
var Void = &VoidType{}

func (VoidType) Size() int {
	return 0
}

func (VoidType) Repr() string {
	return "void"
}

// -----------------------------------------------------------------------------

// PointerType represents a pointer type.
type PointerType struct {
	// The element (content) type of the pointer.
	ElemType Type
}

func (pt *PointerType) Size() int {
	return 1
}

func (pt *PointerType) Repr() string {
	return pt.ElemType.Repr() + "*"
}

// -----------------------------------------------------------------------------

// ArrayType represents a fixed-size array type.
type ArrayType struct {
	ElemType Type
	Len      int
}

func (at *ArrayType) Size() int {
	return at.ElemType.Size() * at.Len
}

func (at *ArrayType) Repr() string {
	return fmt.Sprintf("%s[%d]", at.ElemType.Repr(), at.Len)
}

// -----------------------------------------------------------------------------

// Field is a single named member of a struct or union.
type Field struct {
	Name string
	Type Type
}

// StructType represents a named or anonymous struct or union.  Structs may be
// nested; no padding is ever inserted since every scalar occupies a whole
// unit.
type StructType struct {
	Name   string
	Union  bool
	Fields []Field
}

func (st *StructType) Size() int {
	size := 0

	for _, field := range st.Fields {
		if st.Union {
			if fs := field.Type.Size(); fs > size {
				size = fs
			}
		} else {
			size += field.Type.Size()
		}
	}

	return size
}

func (st *StructType) Repr() string {
	kw := "struct"
	if st.Union {
		kw = "union"
	}

	if st.Name != "" {
		return kw + " " + st.Name
	}

	sb := strings.Builder{}
	sb.WriteString(kw)
	sb.WriteString(" { ")
	for _, field := range st.Fields {
		fmt.Fprintf(&sb, "%s %s; ", field.Type.Repr(), field.Name)
	}
	sb.WriteRune('}')

	return sb.String()
}

// Offsetof returns the offset of the named field and its type.  The boolean is
// false if no such field exists.
func (st *StructType) Offsetof(name string) (int, Type, bool) {
	offset := 0

	for _, field := range st.Fields {
		if field.Name == name {
			return offset, field.Type, true
		}

		if !st.Union {
			offset += field.Type.Size()
		}
	}

	return 0, nil, false
}

// -----------------------------------------------------------------------------

// FuncType represents a function type.
type FuncType struct {
	ReturnType Type
	ParamTypes []Type
}

func (ft *FuncType) Size() int {
	return 1
}

func (ft *FuncType) Repr() string {
	params := make([]string, len(ft.ParamTypes))
	for i, pt := range ft.ParamTypes {
		params[i] = pt.Repr()
	}

	return fmt.Sprintf("%s(%s)", ft.ReturnType.Repr(), strings.Join(params, ", "))
}

// -----------------------------------------------------------------------------

// NamedType is a type introduced by a `typedef`.
type NamedType struct {
	Name string
	Type Type
}

func (nt *NamedType) Size() int {
	return nt.Type.Size()
}

func (nt *NamedType) Repr() string {
	return nt.Name
}
